package dashboard

import (
	"fmt"
	"strings"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
	"adminka/internal/model"
	"adminka/internal/reference"
)

// Issue is one blocking problem of a dashboard configuration.
type Issue struct {
	Admin   string `json:"admin,omitempty"`
	Group   string `json:"group,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	where := i.Admin
	if where == "" {
		where = i.Group
	}
	if i.Field != "" {
		where += "." + i.Field
	}
	return fmt.Sprintf("%s: %s (%s)", where, i.Message, i.Code)
}

// Lint проверяет admin.yaml против DSL и справочников.
func Lint(cfg *Config, entities map[string]*dsl.Entity, catalog reference.Catalog) []Issue {
	var issues []Issue
	manager := model.NewManager(entities, nil)
	filterTypes := datagrid.Factories()

	codes := map[string]struct{}{}
	routes := map[string]struct{}{}
	for _, r := range cfg.Routes {
		routes[r.Name] = struct{}{}
	}

	for _, def := range cfg.Admins {
		if strings.TrimSpace(def.Code) == "" {
			issues = append(issues, Issue{Code: "admin_code_empty", Message: "admin needs a code"})
			continue
		}
		if _, dup := codes[def.Code]; dup {
			issues = append(issues, Issue{
				Admin:   def.Code,
				Code:    "admin_duplicate",
				Message: "admin code is declared more than once",
			})
			continue
		}
		codes[def.Code] = struct{}{}

		// маршруты админки тоже доступны пунктам меню
		if a, err := admin.NewEntityAdmin(def, nil, nil); err == nil {
			for _, r := range a.RouteDefinitions() {
				routes[r.Name] = struct{}{}
			}
		}

		if _, ok := entities[def.Class]; !ok {
			issues = append(issues, Issue{
				Admin:   def.Code,
				Code:    "admin_class_unknown",
				Message: fmt.Sprintf("class %q is not defined in the DSL", def.Class),
			})
			continue
		}

		seen := map[string]struct{}{}
		for _, f := range def.Filters {
			if _, dup := seen[f.Name]; dup {
				issues = append(issues, Issue{
					Admin:   def.Code,
					Field:   f.Name,
					Code:    "filter_duplicate",
					Message: "filter is declared more than once",
				})
				continue
			}
			seen[f.Name] = struct{}{}

			if f.Type != "" {
				if _, ok := filterTypes[f.Type]; !ok {
					issues = append(issues, Issue{
						Admin:   def.Code,
						Field:   f.Name,
						Code:    "filter_type_unknown",
						Message: fmt.Sprintf("unknown filter type %q", f.Type),
					})
				}
			}
			if name, ok := f.Options["catalog"].(string); ok {
				if _, ok := catalog[name]; !ok {
					issues = append(issues, Issue{
						Admin:   def.Code,
						Field:   f.Name,
						Code:    "catalog_unknown",
						Message: fmt.Sprintf("enum catalog %q does not exist", name),
					})
				}
			}
			if _, err := manager.NewFieldDescription(def.Class, f.Name, nil); err != nil {
				issues = append(issues, Issue{
					Admin:   def.Code,
					Field:   f.Name,
					Code:    "filter_field_unknown",
					Message: err.Error(),
				})
			}
		}
	}

	for _, ng := range cfg.Groups {
		if err := ng.Group.Validate(); err != nil {
			issues = append(issues, Issue{Group: ng.Name, Code: "group_invalid", Message: err.Error()})
			continue
		}
		for _, it := range ng.Group.Items {
			switch {
			case it.Admin != "":
				if _, ok := codes[it.Admin]; !ok {
					issues = append(issues, Issue{
						Group:   ng.Name,
						Code:    "group_admin_unknown",
						Message: fmt.Sprintf("admin %q is not declared", it.Admin),
					})
				}
			default:
				if _, ok := routes[it.Route]; !ok {
					issues = append(issues, Issue{
						Group:   ng.Name,
						Code:    "group_route_unknown",
						Message: fmt.Sprintf("route %q is not declared", it.Route),
					})
				}
			}
		}
	}
	return issues
}
