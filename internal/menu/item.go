// Package menu builds navigation trees from dashboard groups.
package menu

import (
	"encoding/json"

	"adminka/internal/admin"
)

// Item is one node of a menu tree. Children keep insertion order; adding a
// child with an existing name replaces it in place.
type Item struct {
	Name       string
	Label      string
	URI        string
	Route      *admin.RouteOptions
	Display    bool
	Attributes map[string]string
	Extras     map[string]any

	parent   *Item
	children []*Item
}

func NewItem(name string) *Item {
	return &Item{
		Name:       name,
		Label:      name,
		Display:    true,
		Attributes: map[string]string{},
		Extras:     map[string]any{},
	}
}

func (i *Item) AddChild(child *Item) *Item {
	child.parent = i
	for n, c := range i.children {
		if c.Name == child.Name {
			i.children[n] = child
			return child
		}
	}
	i.children = append(i.children, child)
	return child
}

func (i *Item) Child(name string) (*Item, bool) {
	for _, c := range i.children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (i *Item) Children() []*Item         { return append([]*Item(nil), i.children...) }
func (i *Item) HasChildren() bool         { return len(i.children) > 0 }
func (i *Item) Parent() *Item             { return i.parent }
func (i *Item) SetLabel(l string)         { i.Label = l }
func (i *Item) SetDisplay(d bool)         { i.Display = d }
func (i *Item) IsDisplayed() bool         { return i.Display }
func (i *Item) Attribute(k string) string { return i.Attributes[k] }

func (i *Item) SetAttribute(k, v string) {
	if i.Attributes == nil {
		i.Attributes = map[string]string{}
	}
	i.Attributes[k] = v
}

func (i *Item) Extra(k string) (any, bool) {
	v, ok := i.Extras[k]
	return v, ok
}

func (i *Item) SetExtra(k string, v any) {
	if i.Extras == nil {
		i.Extras = map[string]any{}
	}
	i.Extras[k] = v
}

// Admin returns the admin an item links to, if any.
func (i *Item) Admin() (admin.Admin, bool) {
	a, ok := i.Extras["admin"].(admin.Admin)
	return a, ok
}

type itemJSON struct {
	Name       string              `json:"name"`
	Label      string              `json:"label"`
	URI        string              `json:"uri,omitempty"`
	Route      *admin.RouteOptions `json:"route,omitempty"`
	Display    bool                `json:"display"`
	Attributes map[string]string   `json:"attributes,omitempty"`
	Extras     map[string]any      `json:"extras,omitempty"`
	Children   []*Item             `json:"children,omitempty"`
}

// MarshalJSON writes the admin back-reference as the admin code.
func (i *Item) MarshalJSON() ([]byte, error) {
	extras := make(map[string]any, len(i.Extras))
	for k, v := range i.Extras {
		if a, ok := v.(admin.Admin); ok {
			v = a.Code()
		}
		extras[k] = v
	}
	return json.Marshal(itemJSON{
		Name:       i.Name,
		Label:      i.Label,
		URI:        i.URI,
		Route:      i.Route,
		Display:    i.Display,
		Attributes: i.Attributes,
		Extras:     extras,
		Children:   i.children,
	})
}
