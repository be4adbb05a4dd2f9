package store

import (
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"

	"adminka/internal/admin"
	"adminka/internal/dsl"
)

type Record struct {
	ID        string         `json:"id"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Data      map[string]any `json:"data"`
}

// Store держит записи в памяти: FQN -> id -> запись.
type Store struct {
	mu      sync.RWMutex
	schemas map[string]*dsl.Entity
	data    map[string]map[string]*Record
	order   map[string][]string // порядок вставки
	entropy io.Reader
	now     func() time.Time
}

func New(entities map[string]*dsl.Entity) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Store{
		schemas: make(map[string]*dsl.Entity, len(entities)),
		data:    make(map[string]map[string]*Record),
		order:   make(map[string][]string),
		entropy: ulid.Monotonic(src, 0),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for fqn, e := range entities {
		s.schemas[fqn] = e
	}
	return s
}

func (s *Store) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// schemaSet returns the current schema map. The map is replaced on reload,
// never modified.
func (s *Store) schemaSet() map[string]*dsl.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemas
}

func (s *Store) Schema(fqn string) (*dsl.Entity, bool) {
	e, ok := s.schemaSet()[fqn]
	return e, ok
}

// Reload подменяет схемы; записи сохраняются, записи исчезнувших сущностей
// остаются в памяти, но недоступны.
func (s *Store) Reload(entities map[string]*dsl.Entity) {
	schemas := make(map[string]*dsl.Entity, len(entities))
	for fqn, e := range entities {
		schemas[fqn] = e
	}
	s.mu.Lock()
	s.schemas = schemas
	s.mu.Unlock()
}

// Insert validates data against the entity schema and stores a new record.
// Validation failures come back as *ValidationError marked ErrInvalidArgument.
func (s *Store) Insert(entity string, data map[string]any) (*Record, error) {
	schema, ok := s.Schema(entity)
	if !ok {
		return nil, admin.NotFoundf("entity %q is not defined", entity)
	}
	obj := make(map[string]any, len(data))
	for k, v := range data {
		obj[k] = v
	}
	applyDefaults(schema, obj)
	if errs := s.validate(schema, entity, obj, ""); len(errs) > 0 {
		return nil, errors.Mark(&ValidationError{Entity: entity, Errors: errs}, admin.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec := &Record{ID: s.newID(now), Version: 1, CreatedAt: now, UpdatedAt: now, Data: obj}
	if s.data[entity] == nil {
		s.data[entity] = map[string]*Record{}
	}
	s.data[entity][rec.ID] = rec
	s.order[entity] = append(s.order[entity], rec.ID)
	return rec, nil
}

func (s *Store) Get(entity, id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[entity][id]
	return rec, ok
}

func (s *Store) Exists(entity, id string) bool {
	_, ok := s.Get(entity, id)
	return ok
}

func (s *Store) Count(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[entity])
}

// records returns the entity's records in insertion order. Caller holds mu.
func (s *Store) records(entity string) []*Record {
	ids := s.order[entity]
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.data[entity][id])
	}
	return out
}

// NormalizeEntityName возвращает FQN по паре {module, entity}. Без модуля
// имя должно быть уникальным среди всех модулей.
func (s *Store) NormalizeEntityName(module, name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	module, name = strings.TrimSpace(module), strings.TrimSpace(name)
	schemas := s.schemaSet()
	if module != "" {
		if _, ok := schemas[module+"."+name]; ok {
			return module + "." + name, true
		}
	}
	var found []string
	for fqn := range schemas {
		fm, fn, ok := strings.Cut(fqn, ".")
		if !ok || !strings.EqualFold(fn, name) {
			continue
		}
		if module != "" && !strings.EqualFold(fm, module) {
			continue
		}
		found = append(found, fqn)
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// ResolveEntity принимает "module.Name" или просто "Name".
func (s *Store) ResolveEntity(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if m, n, ok := strings.Cut(raw, "."); ok {
		return s.NormalizeEntityName(m, n)
	}
	return s.NormalizeEntityName("", raw)
}

// Entities lists the known FQNs, sorted.
func (s *Store) Entities() []string {
	schemas := s.schemaSet()
	out := make([]string, 0, len(schemas))
	for fqn := range schemas {
		out = append(out, fqn)
	}
	sort.Strings(out)
	return out
}

// Flatten кладёт служебные поля рядом с данными; конфликтующие ключи данных
// уходят под префикс "data.".
func Flatten(rec *Record) map[string]any {
	out := map[string]any{
		"id":         rec.ID,
		"version":    rec.Version,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range rec.Data {
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}
