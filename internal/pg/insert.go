package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"

	"adminka/internal/admin"
	"adminka/internal/dsl"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Insert пишет одну запись и возвращает её id. Поля вне схемы
// отклоняются; массивы уходят в jsonb.
func Insert(ctx context.Context, db *sql.DB, e *dsl.Entity, data map[string]any) (string, error) {
	now := time.Now().UTC()
	id := newID(now)

	names := make([]string, 0, len(data))
	for k := range data {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := []string{ident("id"), ident("version"), ident("created_at"), ident("updated_at")}
	args := []any{id, int64(1), now, now}
	for _, name := range names {
		f, ok := e.Field(name)
		if !ok {
			return "", admin.InvalidArgumentf("%s has no field %q", e.FQN(), name)
		}
		v := data[name]
		if f.IsCollection() && v != nil {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", errors.Wrapf(err, "encode %s.%s", e.FQN(), name)
			}
			v = string(raw)
		}
		cols = append(cols, ident(f.Name))
		args = append(args, v)
	}
	marks := make([]string, len(args))
	for i := range args {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	text := "insert into " + qualified(e.Module, e.Name) +
		" (" + strings.Join(cols, ", ") + ") values (" + strings.Join(marks, ", ") + ")"
	if _, err := db.ExecContext(ctx, text, args...); err != nil {
		return "", errors.Wrapf(err, "insert %s", e.FQN())
	}
	return id, nil
}
