package datagrid

import (
	"strings"

	"adminka/internal/admin"
	"adminka/internal/metrics"
)

// FilterSpec is everything Mapper.Add accepts besides the field.
type FilterSpec struct {
	Type                    string
	Options                 map[string]any
	FieldType               string
	FieldOptions            map[string]any
	FieldDescriptionOptions map[string]any
}

// Mapper registers filters of one admin on its datagrid.
type Mapper struct {
	builder  Builder
	datagrid *Datagrid
	admin    admin.Admin
}

func NewMapper(b Builder, dg *Datagrid, a admin.Admin) *Mapper {
	return &Mapper{builder: b, datagrid: dg, admin: a}
}

func (m *Mapper) Datagrid() *Datagrid { return m.datagrid }

// Add registers a filter for name, which is either a field name (dotted
// paths walk relations) or a ready *admin.FieldDescription. A filter whose
// "role" field option (a role or a list of roles, any one suffices) is not
// granted to the actor is skipped silently.
func (m *Mapper) Add(name any, spec FilterSpec) error {
	filterOptions := make(map[string]any, len(spec.Options)+2)
	for k, v := range spec.Options {
		filterOptions[k] = v
	}
	if spec.FieldType != "" {
		filterOptions["field_type"] = spec.FieldType
	}
	if spec.FieldOptions != nil {
		filterOptions["field_options"] = spec.FieldOptions
	}

	var fd *admin.FieldDescription
	switch n := name.(type) {
	case *admin.FieldDescription:
		if n == nil {
			return admin.InvalidArgumentf("unknown field name in datagrid mapper: nil field description")
		}
		fd = n
		fd.MergeOptions(filterOptions)
	case string:
		if m.admin.HasFilterFieldDescription(n) {
			return admin.DuplicateNamef("duplicate field name %q in datagrid mapper; names should be unique", n)
		}
		if _, ok := filterOptions["field_name"]; !ok {
			filterOptions["field_name"] = n[strings.LastIndexByte(n, '.')+1:]
		}
		merged := make(map[string]any, len(filterOptions)+len(spec.FieldDescriptionOptions))
		for k, v := range filterOptions {
			merged[k] = v
		}
		for k, v := range spec.FieldDescriptionOptions {
			merged[k] = v
		}
		mm := m.admin.ModelManager()
		if mm == nil {
			return admin.InvalidArgumentf("admin %q has no model manager", m.admin.Code())
		}
		created, err := mm.NewFieldDescription(m.admin.Class(), n, merged)
		if err != nil {
			return err
		}
		fd = created
	default:
		return admin.InvalidArgumentf("unknown field name in datagrid mapper: field name should be a string or *admin.FieldDescription, got %T", name)
	}

	granted, err := roleGranted(m.admin, spec.FieldDescriptionOptions["role"])
	if err != nil {
		return err
	}
	if !granted {
		metrics.FiltersSkipped.Inc()
		return nil
	}
	return m.builder.AddFilter(m.datagrid, spec.Type, fd, m.admin)
}

// roleGranted: пустая роль пропускает; для списка достаточно одной из ролей.
func roleGranted(a admin.Admin, raw any) (bool, error) {
	var roles []string
	switch r := raw.(type) {
	case nil:
		return true, nil
	case string:
		if r == "" {
			return true, nil
		}
		roles = []string{r}
	case []string:
		roles = r
	case []any:
		for _, v := range r {
			s, ok := v.(string)
			if !ok {
				return false, admin.InvalidArgumentf("filter role option: expected string items, got %T", v)
			}
			roles = append(roles, s)
		}
	default:
		return false, admin.InvalidArgumentf("filter role option: expected string or list of strings, got %T", raw)
	}
	if len(roles) == 0 {
		return false, admin.InvalidArgumentf("filter role option: empty role list")
	}
	for _, role := range roles {
		if a.IsGranted(role) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mapper) Get(name string) (Filter, error) {
	return m.datagrid.Filter(name)
}

func (m *Mapper) Has(name string) bool {
	return m.datagrid.HasFilter(name)
}

func (m *Mapper) Keys() []string {
	return m.datagrid.FilterNames()
}

// Remove drops the filter and its field description registration.
func (m *Mapper) Remove(name string) {
	m.admin.RemoveFilterFieldDescription(name)
	m.datagrid.RemoveFilter(name)
}

func (m *Mapper) Reorder(keys []string) error {
	return m.datagrid.ReorderFilters(keys)
}
