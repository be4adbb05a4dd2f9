package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
)

// databaseURL: DATABASE_URL или одноразовый контейнер.
func databaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("adminka"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("needs postgres")
	}
	ctx := context.Background()
	db, err := Open(ctx, databaseURL(t))
	require.NoError(t, err)
	defer db.Close()

	ents := blogEntities(t)
	ddl, err := GenerateDDL(ents)
	require.NoError(t, err)
	require.NoError(t, ApplyDDL(ctx, db, ddl, zaptest.NewLogger(t)))
	// второй прогон: constraint уже есть
	require.NoError(t, ApplyDDL(ctx, db, ddl, zaptest.NewLogger(t)))

	_, err = db.ExecContext(ctx, `truncate "blog"."posts", "blog"."authors"`)
	require.NoError(t, err)

	ann, err := Insert(ctx, db, ents["blog.Author"], map[string]any{"name": "Ann"})
	require.NoError(t, err)
	bob, err := Insert(ctx, db, ents["blog.Author"], map[string]any{"name": "Bob"})
	require.NoError(t, err)
	for _, p := range []map[string]any{
		{"title": "Go tips", "views": 10, "author": ann, "tags": []string{"go"}},
		{"title": "Rust notes", "views": 5, "author": bob},
		{"title": "Go generics", "author": bob, "tags": []string{"go", "generics"}},
	} {
		_, err := Insert(ctx, db, ents["blog.Post"], p)
		require.NoError(t, err)
	}

	qf := NewQueryFactory(db, ents)
	q, err := qf.CreateQuery("blog.Post")
	require.NoError(t, err)
	q.Where(datagrid.Condition{Alias: q.EntityJoin(authorJoin), Field: "name", Op: datagrid.OpEqual, Value: "Bob"})
	q.SetSortBy(nil, admin.FieldMapping{FieldName: "views"}).SetSortOrder("asc")

	rows, err := q.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Rust notes", rows[0]["title"])
	assert.Equal(t, "Go generics", rows[1]["title"], "nulls last")
	assert.Equal(t, []any{"go", "generics"}, rows[1]["tags"])
	assert.Equal(t, "draft", rows[0]["status"])

	n, err := q.SingleScalarResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	q, _ = qf.CreateQuery("blog.Post")
	q.Where(datagrid.Condition{Alias: "o", Field: "tags", Op: datagrid.OpEqual, Value: "go"})
	n, err = q.SingleScalarResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
