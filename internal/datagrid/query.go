package datagrid

import (
	"context"
	"strings"

	"adminka/internal/admin"
)

type Operator string

const (
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "neq"
	OpContains       Operator = "contains"
	OpGreater        Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLess           Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpIn             Operator = "in"
)

// Condition restricts a query on alias.field.
type Condition struct {
	Alias string
	Field string
	Op    Operator
	Value any
}

// ProxyQuery is the narrow query contract filters and datagrids work with.
// Setters return the query itself for chaining.
type ProxyQuery interface {
	Execute(ctx context.Context) ([]map[string]any, error)
	// SingleScalarResult counts matching rows, ignoring paging.
	SingleScalarResult(ctx context.Context) (int, error)

	SetSortBy(parentAssociationMappings []admin.AssociationMapping, fieldMapping admin.FieldMapping) ProxyQuery
	SortBy() string
	SetSortOrder(order string) ProxyQuery
	SortOrder() string

	SetFirstResult(n int) ProxyQuery
	FirstResult() int
	// SetMaxResults: 0 means unlimited.
	SetMaxResults(n int) ProxyQuery
	MaxResults() int

	UniqueParameterID() int
	// EntityJoin joins the association path and returns its alias; an
	// empty path is the root alias.
	EntityJoin(associationMappings []admin.AssociationMapping) string
	Where(c Condition) ProxyQuery
}

// QueryFactory creates a fresh query over one model class.
type QueryFactory interface {
	CreateQuery(class string) (ProxyQuery, error)
}

// Join is one LEFT JOIN of an association path.
type Join struct {
	Alias       string
	ParentAlias string
	Mapping     admin.AssociationMapping
}

// QueryState holds the bookkeeping every ProxyQuery implementation needs:
// sorting, paging, parameter ids, joins and conditions.
type QueryState struct {
	Root       string
	Sort       string
	Order      string
	First      int
	Max        int
	Conditions []Condition
	Joins      []Join

	paramID int
	aliases map[string]struct{}
}

func NewQueryState(rootAlias string) QueryState {
	return QueryState{Root: rootAlias, Order: "ASC", aliases: map[string]struct{}{}}
}

// NextParameterID returns 0, 1, 2, ... on successive calls.
func (s *QueryState) NextParameterID() int {
	id := s.paramID
	s.paramID++
	return id
}

func (s *QueryState) Join(mappings []admin.AssociationMapping) string {
	alias := s.Root
	path := make([]string, 0, len(mappings))
	for _, m := range mappings {
		path = append(path, m.FieldName)
		next := "s_" + strings.Join(path, "_")
		if _, ok := s.aliases[next]; !ok {
			if s.aliases == nil {
				s.aliases = map[string]struct{}{}
			}
			s.aliases[next] = struct{}{}
			s.Joins = append(s.Joins, Join{Alias: next, ParentAlias: alias, Mapping: m})
		}
		alias = next
	}
	return alias
}

// JoinByAlias finds the join that produced alias.
func (s *QueryState) JoinByAlias(alias string) (Join, bool) {
	for _, j := range s.Joins {
		if j.Alias == alias {
			return j, true
		}
	}
	return Join{}, false
}

func (s *QueryState) SetSort(parents []admin.AssociationMapping, field admin.FieldMapping) {
	s.Sort = s.Join(parents) + "." + field.FieldName
}

// SetOrder normalizes to ASC/DESC.
func (s *QueryState) SetOrder(order string) {
	if strings.EqualFold(strings.TrimSpace(order), "desc") {
		s.Order = "DESC"
		return
	}
	s.Order = "ASC"
}

// SplitSort breaks "alias.field" apart.
func SplitSort(expr string) (alias, field string) {
	i := strings.LastIndexByte(expr, '.')
	if i < 0 {
		return "", expr
	}
	return expr[:i], expr[i+1:]
}
