package admin

import (
	"strings"

	"adminka/internal/security"
)

// Admin is one administrated model: its routes, access rules and the field
// descriptions registered for its datagrid filters.
type Admin interface {
	Code() string
	Class() string
	Label() string
	TranslationDomain() string

	HasRoute(action string) bool
	HasAccess(action string) bool
	IsGranted(attribute string) bool
	GenerateMenuURL(action string, params map[string]string, absolute bool) (RouteOptions, error)

	HasFilterFieldDescription(name string) bool
	FilterFieldDescription(name string) (*FieldDescription, bool)
	AddFilterFieldDescription(name string, fd *FieldDescription)
	RemoveFilterFieldDescription(name string)

	ModelManager() ModelManager
}

// ModelManager builds field descriptions from model metadata.
type ModelManager interface {
	NewFieldDescription(class, name string, options map[string]any) (*FieldDescription, error)
}

// Definition is the declarative form of an admin (admin.yaml).
type Definition struct {
	Code              string             `yaml:"code"`
	Class             string             `yaml:"class"`
	Label             string             `yaml:"label"`
	TranslationDomain string             `yaml:"translation_domain"`
	BaseRouteName     string             `yaml:"base_route_name"`
	BaseRoutePattern  string             `yaml:"base_route_pattern"`
	Routes            []string           `yaml:"routes"`
	Filters           []FilterDefinition `yaml:"filters"`
}

// FilterDefinition declares one datagrid filter of an admin.
type FilterDefinition struct {
	Name         string         `yaml:"name"`
	Type         string         `yaml:"type"`
	Options      map[string]any `yaml:"options"`
	FieldType    string         `yaml:"field_type"`
	FieldOptions map[string]any `yaml:"field_options"`
	Role         string         `yaml:"role"`
}

var defaultRoutes = []string{"list", "create", "edit", "delete", "show"}

var routeSuffix = map[string]string{
	"list":   "/list",
	"create": "/create",
	"edit":   "/{id}/edit",
	"delete": "/{id}/delete",
	"show":   "/{id}/show",
	"export": "/export",
}

// EntityAdmin is the Admin backed by a Definition.
type EntityAdmin struct {
	def      Definition
	manager  ModelManager
	security *security.RoleSecurityHandler
	checker  security.Checker
	routes   map[string]Route

	filterFields map[string]*FieldDescription
	filterOrder  []string
}

var _ Admin = (*EntityAdmin)(nil)

// NewEntityAdmin fills defaults from the code and class. Until bound with
// WithChecker the admin grants nothing.
func NewEntityAdmin(def Definition, manager ModelManager, handler *security.RoleSecurityHandler) (*EntityAdmin, error) {
	if strings.TrimSpace(def.Code) == "" {
		return nil, InvalidArgumentf("admin code is required")
	}
	if strings.TrimSpace(def.Class) == "" {
		return nil, InvalidArgumentf("admin %q: class is required", def.Code)
	}
	slug := strings.ToLower(strings.NewReplacer(".", "_", "-", "_").Replace(def.Code))
	if def.Label == "" {
		def.Label = def.Class[strings.LastIndexByte(def.Class, '.')+1:]
	}
	if def.TranslationDomain == "" {
		def.TranslationDomain = "messages"
	}
	if def.BaseRouteName == "" {
		def.BaseRouteName = "admin_" + slug
	}
	if def.BaseRoutePattern == "" {
		def.BaseRoutePattern = "/admin/" + strings.ReplaceAll(strings.ToLower(def.Code), ".", "/")
	}
	if def.Routes == nil {
		def.Routes = append([]string(nil), defaultRoutes...)
	}
	if handler == nil {
		handler = security.NewRoleSecurityHandler()
	}

	a := &EntityAdmin{
		def:          def,
		manager:      manager,
		security:     handler,
		checker:      security.NewRoleChecker(nil, nil),
		routes:       map[string]Route{},
		filterFields: map[string]*FieldDescription{},
	}
	for _, action := range def.Routes {
		suffix, ok := routeSuffix[action]
		if !ok {
			suffix = "/" + action
		}
		a.routes[action] = Route{
			Name:    def.BaseRouteName + "_" + action,
			Pattern: strings.TrimRight(def.BaseRoutePattern, "/") + suffix,
		}
	}
	return a, nil
}

// WithChecker returns a fresh instance bound to the actor's checker. The
// filter registry of the copy starts empty.
func (a *EntityAdmin) WithChecker(c security.Checker) Admin {
	cp := *a
	cp.checker = c
	cp.filterFields = map[string]*FieldDescription{}
	cp.filterOrder = nil
	return &cp
}

func (a *EntityAdmin) Code() string              { return a.def.Code }
func (a *EntityAdmin) Class() string             { return a.def.Class }
func (a *EntityAdmin) Label() string             { return a.def.Label }
func (a *EntityAdmin) TranslationDomain() string { return a.def.TranslationDomain }
func (a *EntityAdmin) Definition() Definition    { return a.def }
func (a *EntityAdmin) ModelManager() ModelManager {
	return a.manager
}

func (a *EntityAdmin) HasRoute(action string) bool {
	_, ok := a.routes[action]
	return ok
}

// RouteDefinitions lists the admin's routes in declaration order.
func (a *EntityAdmin) RouteDefinitions() []Route {
	out := make([]Route, 0, len(a.def.Routes))
	for _, action := range a.def.Routes {
		out = append(out, a.routes[action])
	}
	return out
}

func (a *EntityAdmin) HasAccess(action string) bool {
	return a.security.IsGranted(a.checker, a.def.Code, action)
}

func (a *EntityAdmin) IsGranted(attribute string) bool {
	return a.security.IsGranted(a.checker, a.def.Code, attribute)
}

func (a *EntityAdmin) GenerateMenuURL(action string, params map[string]string, absolute bool) (RouteOptions, error) {
	rt, ok := a.routes[action]
	if !ok {
		return RouteOptions{}, NotFoundf("admin %q has no route %q", a.def.Code, action)
	}
	return RouteOptions{Route: rt.Name, Params: params, Absolute: absolute}, nil
}

func (a *EntityAdmin) HasFilterFieldDescription(name string) bool {
	_, ok := a.filterFields[name]
	return ok
}

func (a *EntityAdmin) FilterFieldDescription(name string) (*FieldDescription, bool) {
	fd, ok := a.filterFields[name]
	return fd, ok
}

func (a *EntityAdmin) AddFilterFieldDescription(name string, fd *FieldDescription) {
	if _, exists := a.filterFields[name]; !exists {
		a.filterOrder = append(a.filterOrder, name)
	}
	a.filterFields[name] = fd
}

func (a *EntityAdmin) RemoveFilterFieldDescription(name string) {
	if _, ok := a.filterFields[name]; !ok {
		return
	}
	delete(a.filterFields, name)
	for i, n := range a.filterOrder {
		if n == name {
			a.filterOrder = append(a.filterOrder[:i:i], a.filterOrder[i+1:]...)
			break
		}
	}
}

// FilterFieldDescriptions returns registered descriptions in insertion order.
func (a *EntityAdmin) FilterFieldDescriptions() []*FieldDescription {
	out := make([]*FieldDescription, 0, len(a.filterOrder))
	for _, n := range a.filterOrder {
		out = append(out, a.filterFields[n])
	}
	return out
}
