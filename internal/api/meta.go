package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"adminka/internal/dashboard"
	"adminka/internal/dsl"
)

// ===== META HANDLERS =====

type entityRef struct {
	Module string `json:"module"`
	Entity string `json:"entity"`
	FQN    string `json:"fqn"`
}

// GET /api/meta
func MetaListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		ents := s.Dashboard().Entities
		out := make([]entityRef, 0, len(ents))
		for _, e := range ents {
			out = append(out, entityRef{Module: e.Module, Entity: e.Name, FQN: e.FQN()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].FQN < out[j].FQN })
		c.JSON(http.StatusOK, out)
	}
}

type fieldMeta struct {
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Type     string            `json:"type"`
	ElemType string            `json:"elemType,omitempty"`
	Required bool              `json:"required,omitempty"`
	RefFQN   string            `json:"refFQN,omitempty"` // только если цель описана в DSL
	Enum     []string          `json:"enum,omitempty"`
	Options  map[string]string `json:"options,omitempty"`

	// фильтры админок, построенные на этом поле: "<admin>:<filter>"
	FilteredBy []string `json:"filteredBy,omitempty"`
}

type entityMeta struct {
	entityRef
	Fields []fieldMeta `json:"fields"`
	Unique [][]string  `json:"unique,omitempty"`
	Admins []string    `json:"admins,omitempty"`
}

// lookupEntity: точное FQN, иначе единственное совпадение без учёта регистра.
func lookupEntity(ents map[string]*dsl.Entity, module, name string) (*dsl.Entity, bool) {
	if e, ok := ents[module+"."+name]; ok {
		return e, true
	}
	var hit *dsl.Entity
	for _, e := range ents {
		if !strings.EqualFold(e.Module, module) || !strings.EqualFold(e.Name, name) {
			continue
		}
		if hit != nil {
			return nil, false
		}
		hit = e
	}
	return hit, hit != nil
}

// filterUsage: имя корневого поля -> фильтры админок класса, которые его читают.
func filterUsage(d *dashboard.Dashboard, class string) (admins []string, usage map[string][]string) {
	usage = map[string][]string{}
	for _, def := range d.Config.Admins {
		if def.Class != class {
			continue
		}
		admins = append(admins, def.Code)
		for _, fd := range def.Filters {
			root, _, _ := strings.Cut(fd.Name, ".")
			usage[root] = append(usage[root], def.Code+":"+fd.Name)
		}
	}
	return admins, usage
}

// GET /api/meta/:module/:entity
func MetaEntityHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := s.Dashboard()
		e, ok := lookupEntity(d.Entities, c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		admins, usage := filterUsage(d, e.FQN())

		out := entityMeta{
			entityRef: entityRef{Module: e.Module, Entity: e.Name, FQN: e.FQN()},
			Fields:    make([]fieldMeta, 0, len(e.Fields)),
			Admins:    admins,
		}
		for _, f := range e.Fields {
			fm := fieldMeta{
				Name:       f.Name,
				Label:      f.Name,
				Type:       strings.ToLower(f.Type),
				ElemType:   f.ElemType,
				Required:   f.Option("required") == "true",
				Enum:       append([]string(nil), f.Enum...),
				FilteredBy: usage[f.Name],
			}
			if l := f.Option("label"); l != "" {
				fm.Label = l
			}
			if len(f.Options) > 0 {
				fm.Options = make(map[string]string, len(f.Options))
				for k, v := range f.Options {
					fm.Options[k] = v
				}
			}
			if f.IsRef() {
				if target := f.RefFQN(e.Module); d.Entities[target] != nil {
					fm.RefFQN = target
				}
			}
			out.Fields = append(out.Fields, fm)
		}
		for _, set := range e.Constraints.Unique {
			out.Unique = append(out.Unique, append([]string(nil), set...))
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/catalogs/:name
func MetaCatalogHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		items, ok := s.Dashboard().Catalog.Choices(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": name, "items": items})
	}
}
