// Package dashboard assembles the runtime admin panel from the DSL, the
// enum catalogs and admin.yaml: the admin pool with its routes, the model
// manager, per-admin datagrids and the menu.
package dashboard

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
	"adminka/internal/menu"
	"adminka/internal/model"
	"adminka/internal/reference"
	"adminka/internal/security"
)

// Sources says where a dashboard is read from.
type Sources struct {
	DSLDir      string
	EnumsDir    string
	AdminConfig string
}

// QueriesFunc opens the query backend for a set of entities.
type QueriesFunc func(entities map[string]*dsl.Entity) (datagrid.QueryFactory, error)

// LintError carries the blocking issues found while building.
type LintError struct {
	Issues []Issue
}

func (e *LintError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, it := range e.Issues {
		parts = append(parts, it.String())
	}
	return "admin config has blocking issues: " + strings.Join(parts, "; ")
}

// Dashboard is immutable once built; reloads build a new one.
type Dashboard struct {
	Config   *Config
	Entities map[string]*dsl.Entity
	Catalog  reference.Catalog
	Queries  datagrid.QueryFactory

	pool      *admin.Pool
	manager   *model.Manager
	security  *security.RoleSecurityHandler
	hierarchy security.Hierarchy
	defs      map[string]admin.Definition
	log       *zap.Logger
}

// Load reads all sources and builds the dashboard. Unreadable or invalid
// sources are InvalidArgument.
func Load(src Sources, queries QueriesFunc, log *zap.Logger) (*Dashboard, error) {
	entities, err := dsl.LoadAllEntities(src.DSLDir)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "DSL load error"), admin.ErrInvalidArgument)
	}
	catalog, err := reference.LoadEnumCatalog(src.EnumsDir)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "enum load error"), admin.ErrInvalidArgument)
	}
	cfg, err := LoadConfig(src.AdminConfig)
	if err != nil {
		return nil, errors.Mark(err, admin.ErrInvalidArgument)
	}
	// линтим до открытия хранилища: отклонённая загрузка его не трогает
	if issues := Lint(cfg, entities, catalog); len(issues) > 0 {
		return nil, errors.Mark(&LintError{Issues: issues}, admin.ErrInvalidArgument)
	}
	var qf datagrid.QueryFactory
	if queries != nil {
		if qf, err = queries(entities); err != nil {
			return nil, err
		}
	}
	return Build(cfg, entities, catalog, qf, log)
}

// Build lints cfg and registers every admin. queries may be nil; listings
// then fail with InvalidArgument.
func Build(cfg *Config, entities map[string]*dsl.Entity, catalog reference.Catalog, queries datagrid.QueryFactory, log *zap.Logger) (*Dashboard, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if issues := Lint(cfg, entities, catalog); len(issues) > 0 {
		return nil, errors.Mark(&LintError{Issues: issues}, admin.ErrInvalidArgument)
	}

	router := admin.NewRouter(cfg.BaseURL)
	for _, r := range cfg.Routes {
		if err := router.Add(r); err != nil {
			return nil, err
		}
	}
	d := &Dashboard{
		Config:    cfg,
		Entities:  entities,
		Catalog:   catalog,
		Queries:   queries,
		pool:      admin.NewPool(router),
		manager:   model.NewManager(entities, queries),
		security:  security.NewRoleSecurityHandler(cfg.SuperAdminRoles...),
		hierarchy: security.Hierarchy(cfg.RoleHierarchy),
		defs:      make(map[string]admin.Definition, len(cfg.Admins)),
		log:       log,
	}
	for _, def := range cfg.Admins {
		a, err := admin.NewEntityAdmin(def, d.manager, d.security)
		if err != nil {
			return nil, err
		}
		if err := d.pool.Register(a); err != nil {
			return nil, err
		}
		d.defs[def.Code] = a.Definition()
	}
	log.Info("dashboard built",
		zap.Int("entities", len(entities)),
		zap.Int("admins", len(cfg.Admins)),
		zap.Int("groups", len(cfg.Groups)),
		zap.Int("routes", len(router.Routes())))
	return d, nil
}

func (d *Dashboard) Pool() *admin.Pool       { return d.pool }
func (d *Dashboard) Manager() *model.Manager { return d.manager }

// Checker returns a new permission checker for an actor holding roles. Its
// decision cache lives as long as the checker, i.e. one request; the
// dashboard keeps nothing per actor.
func (d *Dashboard) Checker(roles []string) security.Checker {
	return security.NewCachedChecker(security.NewRoleChecker(roles, d.hierarchy))
}

// IsSuperAdmin reports whether c holds one of the super admin roles.
func (d *Dashboard) IsSuperAdmin(c security.Checker) bool {
	return c.IsGranted(d.security.SuperAdminRoles...)
}

func (d *Dashboard) provider(c security.Checker) *menu.GroupProvider {
	f := menu.NewDefaultFactory(d.pool.Router(), d.log)
	return menu.NewGroupProvider(f, d.pool.Bind(c), menu.WithChecker(c), menu.WithLogger(d.log))
}

// Sidebar builds every group the actor can see.
func (d *Dashboard) Sidebar(c security.Checker) (*menu.Item, error) {
	return d.provider(c).Sidebar(d.Config.Groups)
}

// Menu builds one group. Hidden groups come back with display off.
func (d *Dashboard) Menu(c security.Checker, group string) (*menu.Item, error) {
	g, ok := d.Config.Groups.Lookup(group)
	if !ok {
		return nil, admin.NotFoundf("menu group %q does not exist", group)
	}
	return d.provider(c).Get(menu.GroupMenuName, menu.Options{Name: group, Group: g})
}

// Datagrid builds the filtered listing of the admin code for the actor.
// Filters guarded by a role the actor lacks are left out.
func (d *Dashboard) Datagrid(c security.Checker, code string) (*datagrid.Datagrid, admin.Admin, error) {
	bound := d.pool.Bind(c)
	a, err := bound.Instance(code)
	if err != nil {
		return nil, nil, err
	}
	q, err := d.manager.CreateQuery(a.Class())
	if err != nil {
		return nil, nil, err
	}
	dg := datagrid.New(q)
	m := datagrid.NewMapper(datagrid.NewDefaultBuilder(bound, d.Catalog), dg, a)
	if err := datagrid.Configure(m, d.defs[code].Filters); err != nil {
		return nil, nil, errors.Wrapf(err, "admin %q", code)
	}
	return dg, a, nil
}
