package admin

// Типы связей
const (
	MappingManyToOne  = "many_to_one"
	MappingManyToMany = "many_to_many"
)

// AssociationMapping describes how a field points at another model.
type AssociationMapping struct {
	FieldName   string // свойство на модели-владельце
	SourceModel string // FQN владельца
	TargetModel string // FQN цели
	Type        string // MappingManyToOne | MappingManyToMany
}

func (m AssociationMapping) IsZero() bool {
	return m.FieldName == "" && m.TargetModel == ""
}

// FieldMapping describes a plain (non relation) field of a model.
type FieldMapping struct {
	FieldName  string
	Type       string
	ColumnName string
	Nullable   bool
	ID         bool
}

func (m FieldMapping) IsZero() bool {
	return m.FieldName == "" && m.Type == ""
}
