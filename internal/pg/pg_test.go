package pg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
)

const blogDSL = `
module blog

entity Author:
  name: string required
  email: string unique

entity Post:
  title: string required
  views: int
  status: enum[draft, published] default=draft
  published_at: datetime
  author: ref[Author] on_delete=set_null
  tags: array[string]
  constraints:
    unique(title, author)
`

func blogEntities(t *testing.T) map[string]*dsl.Entity {
	t.Helper()
	ents, err := dsl.Parse(strings.NewReader(blogDSL), "blog.dsl")
	require.NoError(t, err)
	out := map[string]*dsl.Entity{}
	for _, e := range ents {
		out[e.FQN()] = e
	}
	return out
}

func TestTableName(t *testing.T) {
	s, tbl := TableName("Blog", "Post")
	assert.Equal(t, "blog", s)
	assert.Equal(t, "posts", tbl)

	_, tbl = TableName("core", "Values")
	assert.Equal(t, "e_values", tbl)
}

func TestGenerateDDL(t *testing.T) {
	ddl, err := GenerateDDL(blogEntities(t))
	require.NoError(t, err)
	require.Len(t, ddl, 2)

	tables := ddl[0].SQL
	assert.Equal(t, "schemas_and_tables", ddl[0].Name)
	assert.Equal(t, 1, strings.Count(tables, "create schema if not exists \"blog\";"))
	assert.Contains(t, tables, `create table if not exists "blog"."authors"`)
	assert.Contains(t, tables, `"name" text not null`)
	assert.Contains(t, tables, `"views" bigint`)
	assert.Contains(t, tables, `"status" text default 'draft'`)
	assert.Contains(t, tables, `"published_at" timestamp with time zone`)
	assert.Contains(t, tables, `"tags" jsonb`)
	assert.Contains(t, tables, `create unique index if not exists "author_email_uq" on "blog"."authors"("email");`)
	assert.Contains(t, tables, `create unique index if not exists "post_title_author_uq" on "blog"."posts"("title", "author");`)

	assert.Equal(t, "post_author_fk", ddl[1].Name)
	assert.Equal(t,
		`alter table "blog"."posts" add constraint "post_author_fk" foreign key ("author") references "blog"."authors"(id) on delete SET NULL;`,
		ddl[1].SQL)
}

func TestGenerateDDL_ColumnClash(t *testing.T) {
	ents, err := dsl.Parse(strings.NewReader("module m\nentity A:\n  version: int\n"), "m.dsl")
	require.NoError(t, err)
	_, err = GenerateDDL(map[string]*dsl.Entity{"m.A": ents[0]})
	assert.ErrorContains(t, err, "clashes")
}

var authorJoin = []admin.AssociationMapping{{FieldName: "author", SourceModel: "blog.Post", TargetModel: "blog.Author", Type: admin.MappingManyToOne}}

func TestQuery_Build(t *testing.T) {
	qf := NewQueryFactory(nil, blogEntities(t))
	pq, err := qf.CreateQuery("blog.Post")
	require.NoError(t, err)
	q := pq.(*Query)

	alias := q.EntityJoin(authorJoin)
	q.Where(datagrid.Condition{Alias: alias, Field: "name", Op: datagrid.OpContains, Value: "a_n"})
	q.Where(datagrid.Condition{Alias: "o", Field: "views", Op: datagrid.OpGreaterOrEqual, Value: float64(5)})
	q.Where(datagrid.Condition{Alias: "o", Field: "status", Op: datagrid.OpIn, Value: []string{"draft", "published"}})
	q.Where(datagrid.Condition{Alias: "o", Field: "published_at", Op: datagrid.OpLess, Value: "2024-01-01"})
	q.Where(datagrid.Condition{Alias: "o", Field: "tags", Op: datagrid.OpEqual, Value: "go"})
	q.SetSortBy(authorJoin, admin.FieldMapping{FieldName: "name"}).SetSortOrder("desc")
	q.SetFirstResult(20).SetMaxResults(10)

	text, args, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, `select "o".* from "blog"."posts" as "o"`+
		` left join "blog"."authors" as "s_author" on "s_author"."id" = "o"."author"`+
		` where "s_author"."name"::text ilike $1 and "o"."views" >= $2 and "o"."status" = any($3)`+
		` and "o"."published_at"::date < $4 and "o"."tags" ? $5`+
		` order by "s_author"."name" desc nulls last, "o"."id" limit 10 offset 20`, text)
	assert.Equal(t, []any{`%a\_n%`, int64(5), []string{"draft", "published"}, "2024-01-01", "go"}, args)

	text, args, err = q.BuildCount()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, `select count(*) from "blog"."posts" as "o" left join`))
	assert.NotContains(t, text, "order by")
	assert.Len(t, args, 5)
}

func TestQuery_BuildErrors(t *testing.T) {
	qf := NewQueryFactory(nil, blogEntities(t))
	_, err := qf.CreateQuery("blog.Nope")
	require.Error(t, err)

	pq, _ := qf.CreateQuery("blog.Post")
	pq.Where(datagrid.Condition{Alias: "s_ghost", Field: "x", Op: datagrid.OpEqual, Value: 1})
	_, _, err = pq.(*Query).Build()
	assert.Error(t, err)

	pq, _ = qf.CreateQuery("blog.Post")
	pq.Where(datagrid.Condition{Alias: "o", Field: "tags", Op: datagrid.OpGreater, Value: "x"})
	_, _, err = pq.(*Query).Build()
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	assert.Equal(t, 12.5, decode(dsl.Field{Type: "money"}, "12.50"))
	assert.Equal(t, []any{"a", "b"}, decode(dsl.Field{Type: "array", ElemType: "string"}, []byte(`["a","b"]`)))
	assert.Equal(t, "x", decode(dsl.Field{Type: "string"}, []byte("x")))
	assert.Nil(t, decode(dsl.Field{}, nil))
}
