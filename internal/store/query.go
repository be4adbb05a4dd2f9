package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
)

// Query is the in-memory ProxyQuery. Joins follow ref ids; a missing
// target behaves like a LEFT JOIN null and fails every condition on it.
type Query struct {
	datagrid.QueryState
	store *Store
	class string
}

var _ datagrid.ProxyQuery = (*Query)(nil)
var _ datagrid.QueryFactory = (*Store)(nil)

func (s *Store) CreateQuery(class string) (datagrid.ProxyQuery, error) {
	if _, ok := s.Schema(class); !ok {
		return nil, admin.NotFoundf("entity %q is not defined", class)
	}
	return &Query{QueryState: datagrid.NewQueryState("o"), store: s, class: class}, nil
}

// scope: alias -> запись (nil, если join ничего не нашёл)
type scope map[string]*Record

func (q *Query) Execute(ctx context.Context) ([]map[string]any, error) {
	rows, err := q.matching(ctx)
	if err != nil {
		return nil, err
	}
	if q.Sort != "" {
		alias, field := datagrid.SplitSort(q.Sort)
		desc := q.Order == "DESC"
		sort.SliceStable(rows, func(i, j int) bool {
			a, okA := fieldOf(rows[i][alias], field)
			b, okB := fieldOf(rows[j][alias], field)
			return less(a, okA, b, okB, desc)
		})
	}
	if q.First > 0 {
		if q.First >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.First:]
		}
	}
	if q.Max > 0 && len(rows) > q.Max {
		rows = rows[:q.Max]
	}
	out := make([]map[string]any, 0, len(rows))
	for _, sc := range rows {
		out = append(out, Flatten(sc[q.Root]))
	}
	return out, nil
}

func (q *Query) SingleScalarResult(ctx context.Context) (int, error) {
	rows, err := q.matching(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (q *Query) matching(ctx context.Context) ([]scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := q.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scope
	for _, rec := range s.records(q.class) {
		sc := scope{q.Root: rec}
		for _, j := range q.Joins {
			sc[j.Alias] = s.follow(sc[j.ParentAlias], j.Mapping)
		}
		ok := true
		for _, c := range q.Conditions {
			v, has := fieldOf(sc[c.Alias], c.Field)
			if !has || !match(v, c) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, sc)
		}
	}
	return out, nil
}

// follow resolves a single relation. Caller holds mu.
func (s *Store) follow(from *Record, m admin.AssociationMapping) *Record {
	if from == nil {
		return nil
	}
	id, _ := from.Data[m.FieldName].(string)
	if id == "" {
		return nil
	}
	return s.data[m.TargetModel][id]
}

func fieldOf(rec *Record, field string) (any, bool) {
	if rec == nil {
		return nil, false
	}
	switch field {
	case "id":
		return rec.ID, true
	case "version":
		return rec.Version, true
	case "created_at":
		return rec.CreatedAt.Format(time.RFC3339), true
	case "updated_at":
		return rec.UpdatedAt.Format(time.RFC3339), true
	}
	v, ok := rec.Data[field]
	return v, ok && v != nil
}

func match(v any, c datagrid.Condition) bool {
	switch arr := v.(type) {
	case []any:
		for _, it := range arr {
			if match(it, c) {
				return true
			}
		}
		return false
	case []string:
		for _, it := range arr {
			if match(it, c) {
				return true
			}
		}
		return false
	}
	switch c.Op {
	case datagrid.OpContains:
		return strings.Contains(strings.ToLower(toString(v)), strings.ToLower(toString(c.Value)))
	case datagrid.OpIn:
		s := toString(v)
		for _, want := range inList(c.Value) {
			if s == want {
				return true
			}
		}
		return false
	}
	rel := compare(v, c.Value)
	switch c.Op {
	case datagrid.OpEqual:
		return rel == 0
	case datagrid.OpNotEqual:
		return rel != 0
	case datagrid.OpGreater:
		return rel > 0
	case datagrid.OpGreaterOrEqual:
		return rel >= 0
	case datagrid.OpLess:
		return rel < 0
	case datagrid.OpLessOrEqual:
		return rel <= 0
	}
	return false
}

func inList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			out = append(out, toString(it))
		}
		return out
	}
	return []string{toString(v)}
}

// compare orders v against want: numerically when both are numbers, bools
// by equality only, everything else as strings (dates by their day part
// when want is a bare date).
func compare(v, want any) int {
	switch w := want.(type) {
	case bool:
		if b, ok := v.(bool); ok && b == w {
			return 0
		}
		return 1
	case float64:
		if f, ok := toFloat(v); ok {
			switch {
			case f < w:
				return -1
			case f > w:
				return 1
			}
			return 0
		}
	}
	s, ws := toString(v), toString(want)
	if len(ws) == len("2006-01-02") && len(s) > len(ws) && s[len(ws)] == 'T' {
		s = s[:len(ws)]
	}
	return strings.Compare(s, ws)
}

// less sorts nulls last in both directions.
func less(a any, okA bool, b any, okB bool, desc bool) bool {
	if !okA || !okB {
		return okA && !okB
	}
	var rel int
	fa, numA := toFloat(a)
	fb, numB := toFloat(b)
	if numA && numB {
		switch {
		case fa < fb:
			rel = -1
		case fa > fb:
			rel = 1
		}
	} else {
		rel = strings.Compare(toString(a), toString(b))
	}
	if desc {
		return rel > 0
	}
	return rel < 0
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

// Setters and accessors of the ProxyQuery contract.

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

func (q *Query) EntityJoin(mappings []admin.AssociationMapping) string {
	return q.Join(mappings)
}

func (q *Query) Where(c datagrid.Condition) datagrid.ProxyQuery {
	q.Conditions = append(q.Conditions, c)
	return q
}
