package reference

// EnumDirectory описывает один справочник типа enum
type EnumDirectory struct {
	Name  string     `yaml:"name"`
	Items []EnumItem `yaml:"items"`
}

type EnumItem struct {
	Code      string `yaml:"code" json:"code"`
	Name      string `yaml:"name" json:"name"`
	Order     int    `yaml:"order,omitempty" json:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty" json:"validFrom,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"validTo,omitempty"`
}

// Catalog: имя справочника -> справочник.
type Catalog map[string]EnumDirectory

// Choices возвращает code -> name в порядке Order (затем как в файле).
// Используется choice-фильтрами датагрида.
func (c Catalog) Choices(name string) ([]EnumItem, bool) {
	dir, ok := c[name]
	if !ok {
		return nil, false
	}
	items := append([]EnumItem(nil), dir.Items...)
	sortItems(items)
	return items, true
}
