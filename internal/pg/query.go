package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
)

// QueryFactory opens SQL queries over the DSL entities.
type QueryFactory struct {
	db       *sql.DB
	entities map[string]*dsl.Entity
}

var _ datagrid.QueryFactory = (*QueryFactory)(nil)

func NewQueryFactory(db *sql.DB, entities map[string]*dsl.Entity) *QueryFactory {
	return &QueryFactory{db: db, entities: entities}
}

func (f *QueryFactory) CreateQuery(class string) (datagrid.ProxyQuery, error) {
	e, ok := f.entities[class]
	if !ok {
		return nil, admin.NotFoundf("entity %q is not defined", class)
	}
	return &Query{QueryState: datagrid.NewQueryState("o"), db: f.db, entities: f.entities, entity: e}, nil
}

// Query is the Postgres ProxyQuery: one SELECT over the entity table with a
// LEFT JOIN per association path.
type Query struct {
	datagrid.QueryState
	db       *sql.DB
	entities map[string]*dsl.Entity
	entity   *dsl.Entity
}

var _ datagrid.ProxyQuery = (*Query)(nil)

// sqlBuilder numbers parameters in order of appearance.
type sqlBuilder struct {
	strings.Builder
	args []any
}

func (b *sqlBuilder) param(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func column(alias, field string) string { return ident(alias) + "." + ident(field) }

// aliasEntity resolves the entity behind a join alias.
func (q *Query) aliasEntity(alias string) (*dsl.Entity, error) {
	if alias == q.Root {
		return q.entity, nil
	}
	j, ok := q.JoinByAlias(alias)
	if !ok {
		return nil, admin.InvalidArgumentf("unknown alias %q", alias)
	}
	e, ok := q.entities[j.Mapping.TargetModel]
	if !ok {
		return nil, admin.NotFoundf("entity %q is not defined", j.Mapping.TargetModel)
	}
	return e, nil
}

func (q *Query) from(b *sqlBuilder) error {
	fmt.Fprintf(b, " from %s as %s", qualified(q.entity.Module, q.entity.Name), ident(q.Root))
	for _, j := range q.Joins {
		target, ok := q.entities[j.Mapping.TargetModel]
		if !ok {
			return admin.NotFoundf("entity %q is not defined", j.Mapping.TargetModel)
		}
		on := fmt.Sprintf("%s = %s", column(j.Alias, "id"), column(j.ParentAlias, j.Mapping.FieldName))
		if j.Mapping.Type == admin.MappingManyToMany {
			on = fmt.Sprintf("%s ? %s", column(j.ParentAlias, j.Mapping.FieldName), column(j.Alias, "id"))
		}
		fmt.Fprintf(b, " left join %s as %s on %s", qualified(target.Module, target.Name), ident(j.Alias), on)
	}
	return nil
}

func (q *Query) where(b *sqlBuilder) error {
	for i, c := range q.Conditions {
		e, err := q.aliasEntity(c.Alias)
		if err != nil {
			return err
		}
		f, _ := e.Field(c.Field)
		expr, err := condition(b, column(c.Alias, c.Field), f, c)
		if err != nil {
			return err
		}
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(expr)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func condition(b *sqlBuilder, col string, f dsl.Field, c datagrid.Condition) (string, error) {
	if f.IsCollection() {
		switch c.Op {
		case datagrid.OpEqual:
			return fmt.Sprintf("%s ? %s", col, b.param(fmt.Sprint(c.Value))), nil
		case datagrid.OpIn:
			return fmt.Sprintf("%s ?| %s", col, b.param(stringList(c.Value))), nil
		}
		return "", admin.InvalidArgumentf("operator %q is not supported on array field %q", c.Op, f.Name)
	}
	if f.Type == "datetime" {
		if s, ok := c.Value.(string); ok && len(s) == len("2006-01-02") {
			col += "::date"
		}
	}
	switch c.Op {
	case datagrid.OpContains:
		return fmt.Sprintf("%s::text ilike %s", col, b.param("%"+likeEscaper.Replace(fmt.Sprint(c.Value))+"%")), nil
	case datagrid.OpIn:
		return fmt.Sprintf("%s = any(%s)", col, b.param(stringList(c.Value))), nil
	}
	ops := map[datagrid.Operator]string{
		datagrid.OpEqual: "=", datagrid.OpNotEqual: "<>",
		datagrid.OpGreater: ">", datagrid.OpGreaterOrEqual: ">=",
		datagrid.OpLess: "<", datagrid.OpLessOrEqual: "<=",
	}
	op, ok := ops[c.Op]
	if !ok {
		return "", admin.InvalidArgumentf("unknown operator %q", c.Op)
	}
	v := c.Value
	if n, isFloat := v.(float64); isFloat && (f.Type == "int") && n == float64(int64(n)) {
		v = int64(n)
	}
	return fmt.Sprintf("%s %s %s", col, op, b.param(v)), nil
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			out = append(out, fmt.Sprint(it))
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

// Build returns the SELECT with its arguments.
func (q *Query) Build() (string, []any, error) {
	b := &sqlBuilder{}
	b.WriteString("select " + ident(q.Root) + ".*")
	if err := q.from(b); err != nil {
		return "", nil, err
	}
	if err := q.where(b); err != nil {
		return "", nil, err
	}
	if q.Sort != "" {
		alias, field := datagrid.SplitSort(q.Sort)
		dir := "asc"
		if q.Order == "DESC" {
			dir = "desc"
		}
		fmt.Fprintf(b, " order by %s %s nulls last, %s", column(alias, field), dir, column(q.Root, "id"))
	} else {
		fmt.Fprintf(b, " order by %s", column(q.Root, "id"))
	}
	if q.Max > 0 {
		fmt.Fprintf(b, " limit %d", q.Max)
	}
	if q.First > 0 {
		fmt.Fprintf(b, " offset %d", q.First)
	}
	return b.String(), b.args, nil
}

// BuildCount returns the count(*) form, without ordering and paging.
func (q *Query) BuildCount() (string, []any, error) {
	b := &sqlBuilder{}
	b.WriteString("select count(*)")
	if err := q.from(b); err != nil {
		return "", nil, err
	}
	if err := q.where(b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

func (q *Query) Execute(ctx context.Context) ([]map[string]any, error) {
	text, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", q.entity.FQN())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrapf(err, "scan %s", q.entity.FQN())
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			f, _ := q.entity.Field(name)
			row[q.fieldName(name)] = decode(f, vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// fieldName maps a lower-cased column back to the DSL field name.
func (q *Query) fieldName(col string) string {
	if f, ok := q.entity.Field(col); ok {
		return f.Name
	}
	return col
}

func decode(f dsl.Field, v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if f.Type == "date" {
			return t.Format("2006-01-02")
		}
		return t.UTC().Format(time.RFC3339)
	case []byte:
		if f.IsCollection() {
			var arr []any
			if json.Unmarshal(t, &arr) == nil {
				return arr
			}
		}
		return decode(f, string(t))
	case string:
		if f.Type == "money" || f.Type == "float" {
			if n, err := strconv.ParseFloat(t, 64); err == nil {
				return n
			}
		}
		if f.IsCollection() {
			var arr []any
			if json.Unmarshal([]byte(t), &arr) == nil {
				return arr
			}
		}
		return t
	}
	return v
}

func (q *Query) SingleScalarResult(ctx context.Context) (int, error) {
	text, args, err := q.BuildCount()
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.db.QueryRowContext(ctx, text, args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", q.entity.FQN())
	}
	return n, nil
}

func (q *Query) SetSortBy(parents []admin.AssociationMapping, field admin.FieldMapping) datagrid.ProxyQuery {
	q.SetSort(parents, field)
	return q
}

func (q *Query) SortBy() string { return q.Sort }

func (q *Query) SetSortOrder(order string) datagrid.ProxyQuery {
	q.SetOrder(order)
	return q
}

func (q *Query) SortOrder() string { return q.Order }

func (q *Query) SetFirstResult(n int) datagrid.ProxyQuery {
	q.First = max(n, 0)
	return q
}

func (q *Query) FirstResult() int { return q.First }

func (q *Query) SetMaxResults(n int) datagrid.ProxyQuery {
	q.Max = max(n, 0)
	return q
}

func (q *Query) MaxResults() int { return q.Max }

func (q *Query) UniqueParameterID() int { return q.NextParameterID() }

func (q *Query) EntityJoin(mappings []admin.AssociationMapping) string { return q.Join(mappings) }

func (q *Query) Where(c datagrid.Condition) datagrid.ProxyQuery {
	q.Conditions = append(q.Conditions, c)
	return q
}
