package menu

import (
	"strings"

	"adminka/internal/admin"
)

// GroupMenuName is the only provider name GroupProvider answers to.
const GroupMenuName = "adminka_group_menu"

const defaultLabelCatalogue = "messages"

// Group is one dashboard group (admin.yaml "groups").
type Group struct {
	Label          string      `yaml:"label" json:"label"`
	LabelCatalogue string      `yaml:"label_catalogue" json:"label_catalogue"`
	Icon           string      `yaml:"icon" json:"icon,omitempty"`
	Items          []GroupItem `yaml:"items" json:"items"`
	OnTop          bool        `yaml:"on_top" json:"on_top"`
	KeepOpen       bool        `yaml:"keep_open" json:"keep_open"`
	Roles          []string    `yaml:"roles" json:"roles,omitempty"`
}

// GroupItem links either an admin's list page or a plain route.
type GroupItem struct {
	Admin         string            `yaml:"admin" json:"admin,omitempty"`
	Label         string            `yaml:"label" json:"label,omitempty"`
	Route         string            `yaml:"route" json:"route,omitempty"`
	RouteParams   map[string]string `yaml:"route_params" json:"route_params,omitempty"`
	RouteAbsolute bool              `yaml:"route_absolute" json:"route_absolute,omitempty"`
	Roles         []string          `yaml:"roles" json:"roles,omitempty"`
}

// NamedGroup keeps the group key next to the group.
type NamedGroup struct {
	Name  string
	Group Group
}

// WithDefaults fills the label catalogue and falls back to name for the label.
func (g Group) WithDefaults(name string) Group {
	if g.Label == "" {
		g.Label = name
	}
	if g.LabelCatalogue == "" {
		g.LabelCatalogue = defaultLabelCatalogue
	}
	return g
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Label) == "" {
		return admin.InvalidArgumentf("menu group needs a label")
	}
	for i, it := range g.Items {
		if err := it.Validate(); err != nil {
			return admin.InvalidArgumentf("group %q item %d: %v", g.Label, i, err)
		}
	}
	return nil
}

func (it GroupItem) Validate() error {
	switch {
	case it.Admin != "" && it.Route != "":
		return admin.InvalidArgumentf("item sets both admin %q and route %q", it.Admin, it.Route)
	case it.Admin == "" && it.Route == "":
		return admin.InvalidArgumentf("item needs an admin or a route")
	case it.Route != "" && strings.TrimSpace(it.Label) == "":
		return admin.InvalidArgumentf("route item %q needs a label", it.Route)
	}
	return nil
}
