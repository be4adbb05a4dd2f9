package pg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"adminka/internal/dsl"
)

// Statement is one named DDL step.
type Statement struct {
	Name string
	SQL  string
}

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

// TableName: схема = модуль, таблица = множественное число сущности;
// ключевые слова получают префикс e_.
func TableName(module, entity string) (schema, table string) {
	table = strings.ToLower(entity)
	if !strings.HasSuffix(table, "s") {
		table += "s"
	}
	if _, ok := reserved[table]; ok {
		table = "e_" + table
	}
	return strings.ToLower(module), table
}

// ident quotes a lower-cased identifier.
func ident(s string) string { return `"` + strings.ToLower(s) + `"` }

func qualified(module, entity string) string {
	schema, table := TableName(module, entity)
	return ident(schema) + "." + ident(table)
}

func columnType(f dsl.Field) (string, error) {
	switch strings.ToLower(f.Type) {
	case "string", "text", "enum", "ref":
		return "text", nil
	case "int":
		return "bigint", nil
	case "float":
		return "double precision", nil
	case "money":
		return "numeric(18,2)", nil
	case "bool":
		return "boolean", nil
	case "date":
		return "date", nil
	case "datetime":
		return "timestamp with time zone", nil
	case "array":
		return "jsonb", nil
	}
	return "", errors.Newf("unknown type %q", f.Type)
}

func onDelete(f dsl.Field) string {
	if strings.EqualFold(strings.TrimSpace(f.Option("on_delete")), "set_null") {
		return "SET NULL"
	}
	return "RESTRICT"
}

var systemColumns = []string{
	`"id" text primary key`,
	`"version" bigint not null`,
	`"created_at" timestamp with time zone not null`,
	`"updated_at" timestamp with time zone not null`,
}

// GenerateDDL строит две фазы: схемы, таблицы и уникальные индексы, затем
// внешние ключи (после того как все таблицы созданы).
func GenerateDDL(entities map[string]*dsl.Entity) ([]Statement, error) {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tables strings.Builder
	var fks []Statement
	schemas := map[string]struct{}{}
	for _, key := range keys {
		e := entities[key]
		schema, table := TableName(e.Module, e.Name)
		if _, ok := schemas[schema]; !ok {
			fmt.Fprintf(&tables, "create schema if not exists %s;\n", ident(schema))
			schemas[schema] = struct{}{}
		}

		cols := append([]string(nil), systemColumns...)
		seen := map[string]struct{}{"id": {}, "version": {}, "created_at": {}, "updated_at": {}}
		for _, f := range e.Fields {
			lower := strings.ToLower(f.Name)
			if _, dup := seen[lower]; dup {
				return nil, errors.Newf("%s: field %q clashes with another column", key, f.Name)
			}
			seen[lower] = struct{}{}

			typ, err := columnType(f)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", key, f.Name)
			}
			col := ident(f.Name) + " " + typ
			if f.Option("required") == "true" {
				col += " not null"
			}
			if dv := strings.TrimSpace(f.Option("default")); dv != "" {
				col += " default '" + strings.ReplaceAll(dv, "'", "''") + "'"
			}
			cols = append(cols, col)
		}
		fmt.Fprintf(&tables, "create table if not exists %s.%s (\n  %s\n);\n",
			ident(schema), ident(table), strings.Join(cols, ",\n  "))

		for _, f := range e.Fields {
			if f.Option("unique") == "true" {
				fmt.Fprintf(&tables, "create unique index if not exists %s on %s.%s(%s);\n",
					ident(e.Name+"_"+f.Name+"_uq"), ident(schema), ident(table), ident(f.Name))
			}
		}
		for _, set := range e.Constraints.Unique {
			parts := make([]string, 0, len(set))
			for _, p := range set {
				parts = append(parts, ident(p))
			}
			fmt.Fprintf(&tables, "create unique index if not exists %s on %s.%s(%s);\n",
				ident(e.Name+"_"+strings.Join(set, "_")+"_uq"), ident(schema), ident(table), strings.Join(parts, ", "))
		}

		for _, f := range e.Fields {
			if f.Type != "ref" || f.RefTarget == "" {
				continue
			}
			refModule, refEntity, ok := strings.Cut(f.RefFQN(e.Module), ".")
			if !ok {
				continue
			}
			name := strings.ToLower(e.Name + "_" + f.Name + "_fk")
			fks = append(fks, Statement{
				Name: name,
				SQL: fmt.Sprintf("alter table %s.%s add constraint %s foreign key (%s) references %s(id) on delete %s;",
					ident(schema), ident(table), ident(name), ident(f.Name), qualified(refModule, refEntity), onDelete(f)),
			})
		}
	}

	// каждый внешний ключ отдельным шагом
	return append([]Statement{{Name: "schemas_and_tables", SQL: tables.String()}}, fks...), nil
}
