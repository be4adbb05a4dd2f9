package menu

import (
	"go.uber.org/zap"

	"adminka/internal/admin"
	"adminka/internal/metrics"
	"adminka/internal/security"
)

// AdminPool finds admins by code.
type AdminPool interface {
	Instance(code string) (admin.Admin, error)
}

// GroupProvider turns a dashboard group into a menu tree for the current
// actor. Admin items need the list route and list access; route items need
// the item's and the group's roles.
type GroupProvider struct {
	factory Factory
	pool    AdminPool
	checker security.Checker
	log     *zap.Logger
}

type Option func(*GroupProvider)

func WithChecker(c security.Checker) Option {
	return func(p *GroupProvider) { p.checker = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *GroupProvider) { p.log = l }
}

// NewGroupProvider without WithChecker disables role filtering of route
// items (deprecated legacy mode).
func NewGroupProvider(f Factory, pool AdminPool, opts ...Option) *GroupProvider {
	p := &GroupProvider{factory: f, pool: pool}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.checker == nil {
		p.log.Warn("menu provider created without a permission checker; role filtering of route items is disabled (deprecated)")
		p.checker = security.Bypass{}
	}
	return p
}

// Options of one Get call: Name labels the root item.
type Options struct {
	Name  string
	Group Group
}

func (p *GroupProvider) Has(name string) bool {
	return name == GroupMenuName
}

// Get builds the menu of opts.Group. With on_top and a single item that
// item itself becomes the root. The group label is applied last, in both
// modes.
func (p *GroupProvider) Get(name string, opts Options) (*Item, error) {
	group := opts.Group
	root := p.factory.CreateItem(opts.Name, ItemOptions{})

	switch {
	case !group.OnTop:
		for _, gi := range group.Items {
			it, err := p.generate(gi, group)
			if err != nil {
				return nil, err
			}
			if it != nil {
				root.AddChild(it)
			}
		}
		if !root.HasChildren() {
			root.SetDisplay(false)
			metrics.MenuItemsHidden.WithLabelValues("empty_group").Inc()
		} else if group.KeepOpen {
			root.SetAttribute("class", "keep-open")
			root.SetExtra("keep_open", group.KeepOpen)
		}
	case len(group.Items) == 1:
		it, err := p.generate(group.Items[0], group)
		if err != nil {
			return nil, err
		}
		if it != nil {
			root = it
			root.SetExtra("on_top", group.OnTop)
		} else {
			root.SetDisplay(false)
		}
	}
	root.SetLabel(group.Label)
	return root, nil
}

// generate returns nil for items the actor may not see.
func (p *GroupProvider) generate(gi GroupItem, group Group) (*Item, error) {
	if gi.Admin != "" {
		a, err := p.pool.Instance(gi.Admin)
		if err != nil {
			return nil, err
		}
		if !a.HasRoute("list") {
			metrics.MenuItemsHidden.WithLabelValues("no_list_route").Inc()
			return nil, nil
		}
		if !a.HasAccess("list") {
			metrics.MenuItemsHidden.WithLabelValues("access_denied").Inc()
			return nil, nil
		}
		ro, err := a.GenerateMenuURL("list", nil, gi.RouteAbsolute)
		if err != nil {
			return nil, err
		}
		opts := RouteItemOptions(ro)
		opts.Extras = map[string]any{
			"label_catalogue": a.TranslationDomain(),
			"admin":           a,
		}
		return p.factory.CreateItem(a.Label(), opts), nil
	}

	if (len(gi.Roles) > 0 && !p.checker.IsGranted(gi.Roles...)) ||
		(len(group.Roles) > 0 && !p.checker.IsGranted(group.Roles...)) {
		metrics.MenuItemsHidden.WithLabelValues("role_denied").Inc()
		return nil, nil
	}
	return p.factory.CreateItem(gi.Label, ItemOptions{
		Route:           gi.Route,
		RouteParameters: gi.RouteParams,
		RouteAbsolute:   gi.RouteAbsolute,
		Extras:          map[string]any{"label_catalogue": group.LabelCatalogue},
	}), nil
}

// Sidebar builds every group in order under one root; hidden groups are
// left out.
func (p *GroupProvider) Sidebar(groups []NamedGroup) (*Item, error) {
	root := p.factory.CreateItem("sidebar", ItemOptions{})
	for _, ng := range groups {
		it, err := p.Get(GroupMenuName, Options{Name: ng.Name, Group: ng.Group})
		if err != nil {
			return nil, err
		}
		if !it.IsDisplayed() {
			continue
		}
		it.SetExtra("group", ng.Name)
		if ng.Group.Icon != "" {
			it.SetExtra("icon", ng.Group.Icon)
		}
		root.AddChild(it)
	}
	return root, nil
}
