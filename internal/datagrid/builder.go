package datagrid

import (
	"strings"

	"adminka/internal/admin"
	"adminka/internal/reference"
)

// Builder materializes a filter for a field description and registers it
// with the admin and the datagrid.
type Builder interface {
	AddFilter(dg *Datagrid, typ string, fd *admin.FieldDescription, a admin.Admin) error
}

// AdminFinder resolves the admin of a related model.
type AdminFinder interface {
	AdminByClass(class string) (admin.Admin, bool)
}

// DefaultBuilder guesses missing filter types from the field mapping.
type DefaultBuilder struct {
	finder    AdminFinder
	catalog   reference.Catalog
	factories map[string]Factory
}

// NewDefaultBuilder: finder and catalog may be nil.
func NewDefaultBuilder(finder AdminFinder, catalog reference.Catalog) *DefaultBuilder {
	return &DefaultBuilder{finder: finder, catalog: catalog, factories: Factories()}
}

// Register adds or replaces a filter type.
func (b *DefaultBuilder) Register(typ string, f Factory) {
	b.factories[typ] = f
}

func (b *DefaultBuilder) AddFilter(dg *Datagrid, typ string, fd *admin.FieldDescription, a admin.Admin) error {
	if typ == "" {
		typ = GuessType(fd)
	}
	factory, ok := b.factories[typ]
	if !ok {
		return admin.InvalidArgumentf("filter %q: unknown filter type %q", fd.Name(), typ)
	}
	if dg.HasFilter(fd.Name()) {
		return admin.DuplicateNamef("filter %q is already registered in the datagrid", fd.Name())
	}
	fd.SetType(typ)
	b.fixFieldDescription(a, fd)
	if err := b.resolveChoices(fd); err != nil {
		return err
	}

	f, err := factory(fd)
	if err != nil {
		return err
	}
	a.AddFilterFieldDescription(fd.Name(), fd)
	return dg.AddFilter(f)
}

func (b *DefaultBuilder) fixFieldDescription(a admin.Admin, fd *admin.FieldDescription) {
	if !fd.HasAdmin() {
		fd.SetAdmin(a)
	}
	if target := fd.TargetModel(); target != "" && b.finder != nil && !fd.HasAssociationAdmin() {
		if aa, ok := b.finder.AdminByClass(target); ok {
			fd.SetAssociationAdmin(aa)
		}
	}
}

// resolveChoices turns the "catalog" option into "choices".
func (b *DefaultBuilder) resolveChoices(fd *admin.FieldDescription) error {
	name, _ := fd.Option("catalog", "").(string)
	if name == "" || fd.HasOption("choices") {
		return nil
	}
	items, ok := b.catalog.Choices(name)
	if !ok {
		return admin.NotFoundf("filter %q: enum catalog %q not found", fd.Name(), name)
	}
	choices := make([]Choice, 0, len(items))
	for _, it := range items {
		label := it.Name
		if label == "" {
			label = it.Code
		}
		choices = append(choices, Choice{Value: it.Code, Label: label})
	}
	fd.SetOption("choices", choices)
	return nil
}

// GuessType maps the field's model type to a filter type.
func GuessType(fd *admin.FieldDescription) string {
	if fd.TargetModel() != "" {
		return "model"
	}
	switch strings.ToLower(fd.FieldMapping().Type) {
	case "int", "float", "money":
		return "number"
	case "bool":
		return "boolean"
	case "date", "datetime":
		return "date"
	case "enum":
		return "choice"
	}
	return "string"
}

// Configure adds the filters declared for an admin, in order.
func Configure(m *Mapper, defs []admin.FilterDefinition) error {
	for _, def := range defs {
		spec := FilterSpec{
			Type:         def.Type,
			Options:      def.Options,
			FieldType:    def.FieldType,
			FieldOptions: def.FieldOptions,
		}
		if def.Role != "" {
			spec.FieldDescriptionOptions = map[string]any{"role": def.Role}
		}
		if err := m.Add(def.Name, spec); err != nil {
			return err
		}
	}
	return nil
}
