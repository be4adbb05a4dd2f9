package admin

import (
	"reflect"
	"strings"
	"unicode"
)

// Зарезервированные ключи опций: уходят в отдельные поля, а не в общий store.
const (
	optionType     = "type"
	optionTemplate = "template"
)

// FieldDescription describes one field of a model as seen by an admin: its
// name, display options and, for relations, the mapping to the target model.
// Name and field name are fixed at creation.
type FieldDescription struct {
	name      string
	fieldName string

	typ         string
	mappingType string
	template    string
	options     map[string]any

	fieldMapping              FieldMapping
	associationMapping        AssociationMapping
	parentAssociationMappings []AssociationMapping

	admin            Admin
	parent           Admin
	associationAdmin Admin
}

// NewFieldDescription creates a description named name. The field name is
// taken from options["field_name"] when set, otherwise it equals name.
func NewFieldDescription(
	name string,
	options map[string]any,
	fieldMapping FieldMapping,
	associationMapping AssociationMapping,
	parentAssociationMappings []AssociationMapping,
) (*FieldDescription, error) {
	if strings.TrimSpace(name) == "" {
		return nil, InvalidArgumentf("field description name must not be empty")
	}
	fd := &FieldDescription{
		name:                      name,
		fieldName:                 name,
		options:                   map[string]any{},
		fieldMapping:              fieldMapping,
		associationMapping:        associationMapping,
		parentAssociationMappings: append([]AssociationMapping(nil), parentAssociationMappings...),
	}
	if fn, ok := options["field_name"].(string); ok && fn != "" {
		fd.fieldName = fn
	}
	switch {
	case !associationMapping.IsZero():
		fd.mappingType = associationMapping.Type
	case !fieldMapping.IsZero():
		fd.mappingType = fieldMapping.Type
	}
	fd.SetOptions(options)
	return fd, nil
}

func (fd *FieldDescription) Name() string      { return fd.name }
func (fd *FieldDescription) FieldName() string { return fd.fieldName }

func (fd *FieldDescription) Type() string     { return fd.typ }
func (fd *FieldDescription) SetType(t string) { fd.typ = t }

func (fd *FieldDescription) Template() string       { return fd.template }
func (fd *FieldDescription) SetTemplate(tpl string) { fd.template = tpl }

func (fd *FieldDescription) MappingType() string     { return fd.mappingType }
func (fd *FieldDescription) SetMappingType(t string) { fd.mappingType = t }

// Option returns the named option or def when it is absent.
func (fd *FieldDescription) Option(name string, def any) any {
	if v, ok := fd.options[name]; ok {
		return v
	}
	return def
}

func (fd *FieldDescription) HasOption(name string) bool {
	_, ok := fd.options[name]
	return ok
}

func (fd *FieldDescription) SetOption(name string, value any) {
	fd.options[name] = value
}

// Options returns a shallow copy of the generic options.
func (fd *FieldDescription) Options() map[string]any {
	return cloneMap(fd.options)
}

// SetOptions replaces all generic options. "type" and "template" are moved
// into their own fields.
func (fd *FieldDescription) SetOptions(options map[string]any) {
	rest := cloneMap(options)
	if v, ok := rest[optionType]; ok {
		if s, ok := v.(string); ok {
			fd.typ = s
		}
		delete(rest, optionType)
	}
	if v, ok := rest[optionTemplate]; ok {
		if s, ok := v.(string); ok {
			fd.template = s
		}
		delete(rest, optionTemplate)
	}
	fd.options = rest
}

// MergeOption merges sub into the map stored under name, creating it when
// absent. A non-map value under name is an ErrInvalidArgument.
func (fd *FieldDescription) MergeOption(name string, sub map[string]any) error {
	cur, ok := fd.options[name]
	if !ok || cur == nil {
		fd.options[name] = cloneMap(sub)
		return nil
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return InvalidArgumentf("option %q of field %q is a %T, not a map", name, fd.name, cur)
	}
	fd.options[name] = mergeMaps(m, sub)
	return nil
}

// MergeOptions merges options into the current ones: map values are merged
// key by key into existing maps, everything else overwrites.
func (fd *FieldDescription) MergeOptions(options map[string]any) {
	merged := cloneMap(fd.options)
	for k, v := range options {
		sub, isMap := v.(map[string]any)
		if !isMap {
			merged[k] = v
			continue
		}
		if cur, ok := merged[k].(map[string]any); ok {
			merged[k] = mergeMaps(cur, sub)
			continue
		}
		merged[k] = cloneMap(sub)
	}
	fd.SetOptions(merged)
}

// Label falls back to the field name.
func (fd *FieldDescription) Label() string {
	if s, ok := fd.options["label"].(string); ok && s != "" {
		return s
	}
	return fd.fieldName
}

func (fd *FieldDescription) TranslationDomain() string {
	if s, ok := fd.options["translation_domain"].(string); ok && s != "" {
		return s
	}
	if fd.admin != nil {
		return fd.admin.TranslationDomain()
	}
	return "messages"
}

func (fd *FieldDescription) IsSortable() bool {
	b, _ := fd.options["sortable"].(bool)
	return b
}

func (fd *FieldDescription) SortFieldMapping() FieldMapping {
	if m, ok := fd.options["sort_field_mapping"].(FieldMapping); ok {
		return m
	}
	return fd.fieldMapping
}

func (fd *FieldDescription) SortParentAssociationMapping() []AssociationMapping {
	if m, ok := fd.options["sort_parent_association_mappings"].([]AssociationMapping); ok {
		return m
	}
	return fd.ParentAssociationMappings()
}

func (fd *FieldDescription) FieldMapping() FieldMapping             { return fd.fieldMapping }
func (fd *FieldDescription) AssociationMapping() AssociationMapping { return fd.associationMapping }

func (fd *FieldDescription) ParentAssociationMappings() []AssociationMapping {
	return append([]AssociationMapping(nil), fd.parentAssociationMappings...)
}

// TargetModel is empty for non relation fields.
func (fd *FieldDescription) TargetModel() string {
	return fd.associationMapping.TargetModel
}

func (fd *FieldDescription) IsIdentifier() bool { return fd.fieldMapping.ID }

func (fd *FieldDescription) SetAdmin(a Admin) { fd.admin = a }
func (fd *FieldDescription) Admin() Admin     { return fd.admin }
func (fd *FieldDescription) HasAdmin() bool   { return fd.admin != nil }

func (fd *FieldDescription) SetParent(a Admin) { fd.parent = a }
func (fd *FieldDescription) Parent() Admin     { return fd.parent }
func (fd *FieldDescription) HasParent() bool   { return fd.parent != nil }

func (fd *FieldDescription) SetAssociationAdmin(a Admin) { fd.associationAdmin = a }
func (fd *FieldDescription) AssociationAdmin() Admin     { return fd.associationAdmin }
func (fd *FieldDescription) HasAssociationAdmin() bool   { return fd.associationAdmin != nil }

// Accessor overrides how Value reads the field off an object.
type Accessor func(object any) (any, error)

// Value reads the field off object, walking the parent associations first.
func (fd *FieldDescription) Value(object any) (any, error) {
	switch acc := fd.options["accessor"].(type) {
	case Accessor:
		return acc(object)
	case func(any) (any, error):
		return acc(object)
	}
	cur := object
	for _, m := range fd.parentAssociationMappings {
		v, err := fd.FieldValue(cur, m.FieldName)
		if err != nil {
			return nil, err
		}
		if isNil(v) {
			return nil, nil
		}
		cur = v
	}
	return fd.FieldValue(cur, fd.fieldName)
}

// FieldValue resolves fieldName (or the own field name when empty) off
// object by map key, getter method or struct field, without any accessor.
func (fd *FieldDescription) FieldValue(object any, fieldName string) (any, error) {
	if fieldName == "" {
		fieldName = fd.fieldName
	}
	if object == nil {
		return nil, noValuef("cannot read %q of nil", fieldName)
	}
	if m, ok := object.(map[string]any); ok {
		if v, ok := m[fieldName]; ok {
			return v, nil
		}
		for k, v := range m {
			if strings.EqualFold(k, fieldName) {
				return v, nil
			}
		}
		return nil, noValuef("no key %q in map", fieldName)
	}

	rv := reflect.ValueOf(object)
	camel := camelize(fieldName)
	for _, name := range []string{camel, "Get" + camel, "Is" + camel} {
		if v, ok, err := callGetter(rv, name); ok {
			return v, err
		}
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, noValuef("cannot read %q of nil", fieldName)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(n string) bool {
			return strings.EqualFold(n, camel) || strings.EqualFold(n, fieldName)
		})
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			v := rv.MapIndex(reflect.ValueOf(fieldName).Convert(rv.Type().Key()))
			if v.IsValid() {
				return v.Interface(), nil
			}
		}
	}
	return nil, noValuef("cannot resolve %q on %T", fieldName, object)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func callGetter(rv reflect.Value, name string) (any, bool, error) {
	m := rv.MethodByName(name)
	if !m.IsValid() {
		return nil, false, nil
	}
	t := m.Type()
	if t.NumIn() != 0 || t.NumOut() == 0 || t.NumOut() > 2 {
		return nil, false, nil
	}
	out := m.Call(nil)
	if len(out) == 2 {
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return nil, true, err
		}
	}
	return out[0].Interface(), true, nil
}

// camelize: "published_at" -> "PublishedAt"
func camelize(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' || r == '-' || r == '.' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMaps(base, sub map[string]any) map[string]any {
	out := cloneMap(base)
	for k, v := range sub {
		out[k] = v
	}
	return out
}
