package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"adminka/internal/dsl"
)

// Коды ошибок полей
const (
	CodeRequired        = "required"
	CodeTypeMismatch    = "type_mismatch"
	CodeUniqueViolation = "unique_violation"
	CodeRefNotFound     = "ref_not_found"
	CodeReadOnly        = "readonly_field"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Entity string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

var systemFields = []string{"id", "version", "created_at", "updated_at"}

// validate нормализует obj под схему и собирает ошибки полей.
func (s *Store) validate(schema *dsl.Entity, entity string, obj map[string]any, exceptID string) []FieldError {
	var errs []FieldError
	for _, k := range systemFields {
		if _, ok := obj[k]; ok {
			errs = append(errs, FieldError{CodeReadOnly, k, "system field is read-only"})
			delete(obj, k)
		}
	}
	for _, f := range schema.Fields {
		if f.Option("required") == "true" {
			if v, ok := obj[f.Name]; !ok || v == nil {
				errs = append(errs, FieldError{CodeRequired, f.Name, "field is required"})
			}
		}
	}

	for name, val := range obj {
		f, ok := schema.Field(name)
		if !ok || val == nil {
			continue
		}
		norm, err := s.coerce(schema.Module, f, val)
		if err != nil {
			code := CodeTypeMismatch
			var refErr *refError
			if errors.As(err, &refErr) {
				code = CodeRefNotFound
			}
			errs = append(errs, FieldError{code, name, err.Error()})
			continue
		}
		obj[name] = norm
	}

	for _, f := range schema.Fields {
		if f.Option("unique") != "true" {
			continue
		}
		if v, ok := obj[f.Name]; ok && s.taken(entity, []string{f.Name}, []any{v}, exceptID) {
			errs = append(errs, FieldError{CodeUniqueViolation, f.Name, "value must be unique"})
		}
	}
	for _, set := range schema.Constraints.Unique {
		values := make([]any, 0, len(set))
		for _, name := range set {
			v, ok := obj[name]
			if !ok {
				break
			}
			values = append(values, v)
		}
		if len(values) == len(set) && s.taken(entity, set, values, exceptID) {
			errs = append(errs, FieldError{CodeUniqueViolation, set[0], fmt.Sprintf("fields %v must be unique together", set)})
		}
	}
	return errs
}

func (s *Store) taken(entity string, fields []string, values []any, exceptID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, rec := range s.data[entity] {
		if id == exceptID {
			continue
		}
		same := true
		for i, name := range fields {
			if fmt.Sprint(rec.Data[name]) != fmt.Sprint(values[i]) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

type refError struct{ target, id string }

func (e *refError) Error() string {
	return fmt.Sprintf("references non-existent %s %q", e.target, e.id)
}

func (s *Store) coerce(module string, f dsl.Field, v any) (any, error) {
	switch f.Type {
	case "string", "text":
		return asString(v)
	case "int":
		return asInt(v)
	case "float", "money":
		return asFloat(v)
	case "bool":
		return asBool(v)
	case "date":
		str, err := asString(v)
		if err != nil {
			return nil, err
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return nil, errors.New("must be a YYYY-MM-DD date")
		}
		return str, nil
	case "datetime":
		str, err := asString(v)
		if err != nil {
			return nil, err
		}
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			return nil, errors.New("must be an RFC3339 datetime")
		}
		return str, nil
	case "enum":
		str, err := asString(v)
		if err != nil {
			return nil, err
		}
		if len(f.Enum) > 0 && !contains(f.Enum, str) {
			return nil, errors.Newf("value %q is not allowed", str)
		}
		return str, nil
	case "ref":
		id, err := asString(v)
		if err != nil {
			return nil, err
		}
		target := f.RefFQN(module)
		if !s.Exists(target, id) {
			return nil, &refError{target: target, id: id}
		}
		return id, nil
	case "array":
		var items []any
		switch arr := v.(type) {
		case []any:
			items = arr
		case []string:
			for _, it := range arr {
				items = append(items, it)
			}
		default:
			return nil, errors.New("must be an array")
		}
		elem := dsl.Field{Name: f.Name, Type: f.ElemType, Enum: f.Enum, RefTarget: f.RefTarget}
		out := make([]any, 0, len(items))
		for i, it := range items {
			norm, err := s.coerce(module, elem, it)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			out = append(out, norm)
		}
		return out, nil
	}
	return v, nil
}

// applyDefaults подставляет default= для отсутствующих полей.
func applyDefaults(schema *dsl.Entity, obj map[string]any) {
	for _, f := range schema.Fields {
		def, ok := f.Options["default"]
		if !ok {
			continue
		}
		if _, exists := obj[f.Name]; exists {
			continue
		}
		obj[f.Name] = def
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func asString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.New("must be a string")
}

func asInt(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, errors.New("must be an integer")
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, errors.New("must be an integer")
		}
		return n, nil
	}
	return 0, errors.New("must be an integer")
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be a number")
		}
		return f, nil
	}
	return 0, errors.New("must be a number")
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
	}
	return false, errors.New("must be a boolean")
}
