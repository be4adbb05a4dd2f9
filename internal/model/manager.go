package model

import (
	"sort"
	"strings"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
)

// Manager answers model questions from DSL metadata. Classes are entity
// FQNs ("blog.Post").
type Manager struct {
	entities map[string]*dsl.Entity
	queries  datagrid.QueryFactory
}

var _ admin.ModelManager = (*Manager)(nil)

// NewManager: queries may be nil when listings are not needed (lint, menu).
func NewManager(entities map[string]*dsl.Entity, queries datagrid.QueryFactory) *Manager {
	return &Manager{entities: entities, queries: queries}
}

func (m *Manager) Entity(class string) (*dsl.Entity, bool) {
	e, ok := m.entities[class]
	return e, ok
}

// Classes returns the known entity FQNs, sorted.
func (m *Manager) Classes() []string {
	out := make([]string, 0, len(m.entities))
	for k := range m.entities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewFieldDescription resolves a dotted path from class. Every segment but
// the last has to be a relation.
func (m *Manager) NewFieldDescription(class, name string, options map[string]any) (*admin.FieldDescription, error) {
	ent, ok := m.entities[class]
	if !ok {
		return nil, admin.NotFoundf("model %q is not defined", class)
	}
	segments := strings.Split(name, ".")
	var parents []admin.AssociationMapping
	for _, seg := range segments[:len(segments)-1] {
		f, ok := ent.Field(seg)
		if !ok {
			return nil, admin.NotFoundf("model %q has no field %q (path %q)", ent.FQN(), seg, name)
		}
		if !f.IsRef() || f.IsCollection() {
			return nil, admin.InvalidArgumentf("field %q of %q is not a single relation (path %q)", seg, ent.FQN(), name)
		}
		target := f.RefFQN(ent.Module)
		next, ok := m.entities[target]
		if !ok {
			return nil, admin.NotFoundf("model %q referenced by %s.%s is not defined", target, ent.FQN(), f.Name)
		}
		parents = append(parents, associationMapping(ent, f))
		ent = next
	}

	last := segments[len(segments)-1]
	opts := make(map[string]any, len(options)+1)
	for k, v := range options {
		opts[k] = v
	}

	var fm admin.FieldMapping
	var am admin.AssociationMapping
	if strings.EqualFold(last, "id") {
		fm = admin.FieldMapping{FieldName: "id", Type: "string", ColumnName: "id", ID: true}
	} else {
		f, ok := ent.Field(last)
		if !ok {
			return nil, admin.NotFoundf("model %q has no field %q (path %q)", ent.FQN(), last, name)
		}
		if f.IsRef() {
			am = associationMapping(ent, f)
		} else {
			fm = fieldMapping(f)
		}
		if _, set := opts["label"]; !set && f.Option("label") != "" {
			opts["label"] = f.Option("label")
		}
		if f.Type == "enum" || f.ElemType == "enum" {
			if c := f.Option("catalog"); c != "" {
				if _, set := opts["catalog"]; !set {
					opts["catalog"] = c
				}
			} else if _, set := opts["choices"]; !set && opts["catalog"] == nil && len(f.Enum) > 0 {
				opts["choices"] = append([]string(nil), f.Enum...)
			}
		}
	}
	return admin.NewFieldDescription(name, opts, fm, am, parents)
}

// CreateQuery opens a query over class through the configured factory.
func (m *Manager) CreateQuery(class string) (datagrid.ProxyQuery, error) {
	if _, ok := m.entities[class]; !ok {
		return nil, admin.NotFoundf("model %q is not defined", class)
	}
	if m.queries == nil {
		return nil, admin.InvalidArgumentf("model manager has no query factory")
	}
	return m.queries.CreateQuery(class)
}

func associationMapping(owner *dsl.Entity, f dsl.Field) admin.AssociationMapping {
	typ := admin.MappingManyToOne
	if f.IsCollection() {
		typ = admin.MappingManyToMany
	}
	return admin.AssociationMapping{
		FieldName:   f.Name,
		SourceModel: owner.FQN(),
		TargetModel: f.RefFQN(owner.Module),
		Type:        typ,
	}
}

func fieldMapping(f dsl.Field) admin.FieldMapping {
	return admin.FieldMapping{
		FieldName:  f.Name,
		Type:       f.Type,
		ColumnName: strings.ToLower(f.Name),
		Nullable:   f.Option("required") != "true",
	}
}
