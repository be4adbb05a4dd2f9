package dsl

import "strings"

// Entity описывает модель из DSL: модуль, поля и составные ограничения.
type Entity struct {
	Module      string
	Name        string
	Label       string
	Fields      []Field
	Constraints Constraints
}

type Constraints struct {
	Unique [][]string
}

// Field описывает поле модели
type Field struct {
	Name      string
	Type      string            // string, int, float, money, bool, date, datetime, enum, ref, array
	ElemType  string            // для array[...]
	RefTarget string            // для ref[...] и array[ref[...]]
	Enum      []string          // значения enum
	Options   map[string]string // required, unique, default, label, catalog, on_delete ...
}

// FQN возвращает "module.Name".
func (e *Entity) FQN() string {
	return e.Module + "." + e.Name
}

// Field ищет поле по имени (регистронезависимо).
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// IsRef: одиночная ссылка или массив ссылок.
func (f Field) IsRef() bool {
	return strings.EqualFold(f.Type, "ref") ||
		(strings.EqualFold(f.Type, "array") && strings.EqualFold(f.ElemType, "ref"))
}

func (f Field) IsCollection() bool {
	return strings.EqualFold(f.Type, "array")
}

func (f Field) Option(name string) string {
	if f.Options == nil {
		return ""
	}
	return f.Options[strings.ToLower(name)]
}

// RefFQN приводит цель ссылки к "module.Name"; без модуля берём модуль владельца.
func (f Field) RefFQN(ownerModule string) string {
	if f.RefTarget == "" {
		return ""
	}
	if strings.Contains(f.RefTarget, ".") {
		return f.RefTarget
	}
	return ownerModule + "." + f.RefTarget
}
