package datagrid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"adminka/internal/admin"
)

// Value is what a client submits for one filter: an operator and a value
// (string or []string).
type Value struct {
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// IsEmpty: nothing to filter by.
func (v Value) IsEmpty() bool {
	switch x := v.Value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// Choice is one selectable value of a choice filter.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Filter restricts a datagrid query by one field.
type Filter interface {
	Name() string
	Type() string
	FieldDescription() *admin.FieldDescription
	Label() string
	Options() map[string]any
	// Operators lists the operator tags Apply accepts; the first is the default.
	Operators() []string
	Apply(q ProxyQuery, v Value) error
}

// Factory builds a filter of one type for a field description.
type Factory func(fd *admin.FieldDescription) (Filter, error)

// Factories returns the built-in filter types.
func Factories() map[string]Factory {
	return map[string]Factory{
		"string":  newStringFilter,
		"number":  newNumberFilter,
		"boolean": newBooleanFilter,
		"date":    newDateFilter,
		"choice":  newChoiceFilter,
		"model":   newModelFilter,
	}
}

type baseFilter struct {
	typ       string
	fd        *admin.FieldDescription
	operators []string
}

func (f *baseFilter) Name() string                              { return f.fd.Name() }
func (f *baseFilter) Type() string                              { return f.typ }
func (f *baseFilter) FieldDescription() *admin.FieldDescription { return f.fd }
func (f *baseFilter) Label() string                             { return f.fd.Label() }
func (f *baseFilter) Options() map[string]any                   { return f.fd.Options() }
func (f *baseFilter) Operators() []string                       { return append([]string(nil), f.operators...) }

// operator picks the requested operator or the default one.
func (f *baseFilter) operator(v Value) (Operator, error) {
	if v.Type == "" {
		return Operator(f.operators[0]), nil
	}
	for _, op := range f.operators {
		if strings.EqualFold(op, v.Type) {
			return Operator(op), nil
		}
	}
	return "", admin.InvalidArgumentf("filter %q does not support operator %q", f.Name(), v.Type)
}

func (f *baseFilter) where(q ProxyQuery, op Operator, value any) {
	alias := q.EntityJoin(f.fd.ParentAssociationMappings())
	q.Where(Condition{Alias: alias, Field: f.fd.FieldName(), Op: op, Value: value})
}

func scalar(v Value) string {
	switch x := v.Value.(type) {
	case string:
		return strings.TrimSpace(x)
	case []string:
		if len(x) > 0 {
			return strings.TrimSpace(x[0])
		}
	case []any:
		if len(x) > 0 {
			return strings.TrimSpace(fmt.Sprint(x[0]))
		}
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
	return ""
}

func list(v Value) []string {
	var raw []string
	switch x := v.Value.(type) {
	case []string:
		raw = x
	case []any:
		for _, it := range x {
			raw = append(raw, fmt.Sprint(it))
		}
	case string:
		raw = strings.Split(x, ",")
	case nil:
	default:
		raw = []string{fmt.Sprint(x)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type stringFilter struct{ baseFilter }

func newStringFilter(fd *admin.FieldDescription) (Filter, error) {
	return &stringFilter{baseFilter{typ: "string", fd: fd, operators: []string{"contains", "eq", "neq"}}}, nil
}

func (f *stringFilter) Apply(q ProxyQuery, v Value) error {
	if v.IsEmpty() {
		return nil
	}
	op, err := f.operator(v)
	if err != nil {
		return err
	}
	f.where(q, op, scalar(v))
	return nil
}

type numberFilter struct{ baseFilter }

func newNumberFilter(fd *admin.FieldDescription) (Filter, error) {
	return &numberFilter{baseFilter{typ: "number", fd: fd, operators: []string{"eq", "gt", "gte", "lt", "lte"}}}, nil
}

func (f *numberFilter) Apply(q ProxyQuery, v Value) error {
	if v.IsEmpty() {
		return nil
	}
	op, err := f.operator(v)
	if err != nil {
		return err
	}
	n, err := strconv.ParseFloat(scalar(v), 64)
	if err != nil {
		return admin.InvalidArgumentf("filter %q: %q is not a number", f.Name(), scalar(v))
	}
	f.where(q, op, n)
	return nil
}

type booleanFilter struct{ baseFilter }

func newBooleanFilter(fd *admin.FieldDescription) (Filter, error) {
	return &booleanFilter{baseFilter{typ: "boolean", fd: fd, operators: []string{"eq"}}}, nil
}

func (f *booleanFilter) Apply(q ProxyQuery, v Value) error {
	if v.IsEmpty() {
		return nil
	}
	op, err := f.operator(v)
	if err != nil {
		return err
	}
	var b bool
	switch strings.ToLower(scalar(v)) {
	case "1", "true", "yes", "on":
		b = true
	case "0", "false", "no", "off":
		b = false
	default:
		return admin.InvalidArgumentf("filter %q: %q is not a boolean", f.Name(), scalar(v))
	}
	f.where(q, op, b)
	return nil
}

const dateLayout = "2006-01-02"

type dateFilter struct{ baseFilter }

func newDateFilter(fd *admin.FieldDescription) (Filter, error) {
	return &dateFilter{baseFilter{typ: "date", fd: fd, operators: []string{"eq", "gt", "gte", "lt", "lte"}}}, nil
}

func (f *dateFilter) Apply(q ProxyQuery, v Value) error {
	if v.IsEmpty() {
		return nil
	}
	op, err := f.operator(v)
	if err != nil {
		return err
	}
	raw := scalar(v)
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		if ts, err2 := time.Parse(time.RFC3339, raw); err2 == nil {
			d = ts
		} else {
			return admin.InvalidArgumentf("filter %q: %q is not a date (YYYY-MM-DD)", f.Name(), raw)
		}
	}
	f.where(q, op, d.Format(dateLayout))
	return nil
}

type choiceFilter struct {
	baseFilter
	choices []Choice
}

func newChoiceFilter(fd *admin.FieldDescription) (Filter, error) {
	choices, err := ChoicesOption(fd.Option("choices", nil))
	if err != nil {
		return nil, admin.InvalidArgumentf("filter %q: %v", fd.Name(), err)
	}
	return &choiceFilter{
		baseFilter: baseFilter{typ: "choice", fd: fd, operators: []string{"eq", "in"}},
		choices:    choices,
	}, nil
}

func (f *choiceFilter) Choices() []Choice { return append([]Choice(nil), f.choices...) }

func (f *choiceFilter) Apply(q ProxyQuery, v Value) error {
	if v.IsEmpty() {
		return nil
	}
	op, err := f.operator(v)
	if err != nil {
		return err
	}
	values := list(v)
	if len(values) == 0 {
		return nil
	}
	if op == OpEqual && len(values) > 1 {
		op = OpIn
	}
	for _, s := range values {
		if !f.allowed(s) {
			return admin.InvalidArgumentf("filter %q: %q is not one of the choices", f.Name(), s)
		}
	}
	if op == OpIn {
		f.where(q, op, values)
		return nil
	}
	f.where(q, op, values[0])
	return nil
}

func (f *choiceFilter) allowed(s string) bool {
	if len(f.choices) == 0 {
		return true
	}
	for _, c := range f.choices {
		if c.Value == s {
			return true
		}
	}
	return false
}

// ChoicesOption normalizes the "choices" option: []Choice, []string,
// []any or map value -> label (sorted by value).
func ChoicesOption(raw any) ([]Choice, error) {
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case []Choice:
		return append([]Choice(nil), x...), nil
	case []string:
		out := make([]Choice, 0, len(x))
		for _, s := range x {
			out = append(out, Choice{Value: s, Label: s})
		}
		return out, nil
	case []any:
		out := make([]Choice, 0, len(x))
		for _, it := range x {
			s := fmt.Sprint(it)
			out = append(out, Choice{Value: s, Label: s})
		}
		return out, nil
	case map[string]string:
		out := make([]Choice, 0, len(x))
		for k, l := range x {
			out = append(out, Choice{Value: k, Label: l})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
		return out, nil
	case map[string]any:
		out := make([]Choice, 0, len(x))
		for k, l := range x {
			out = append(out, Choice{Value: k, Label: fmt.Sprint(l)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
		return out, nil
	}
	return nil, errors.Newf("unsupported choices option %T", raw)
}

type modelFilter struct{ baseFilter }

func newModelFilter(fd *admin.FieldDescription) (Filter, error) {
	if fd.TargetModel() == "" {
		return nil, admin.InvalidArgumentf("filter %q: model filter needs a relation field", fd.Name())
	}
	return &modelFilter{baseFilter{typ: "model", fd: fd, operators: []string{"eq", "in"}}}, nil
}

// Apply matches the id stored in the relation field.
func (f *modelFilter) Apply(q ProxyQuery, v Value) error {
	if v.IsEmpty() {
		return nil
	}
	op, err := f.operator(v)
	if err != nil {
		return err
	}
	ids := list(v)
	if len(ids) == 0 {
		return nil
	}
	if op == OpIn || len(ids) > 1 {
		f.where(q, OpIn, ids)
		return nil
	}
	f.where(q, op, ids[0])
	return nil
}
