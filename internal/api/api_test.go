package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"adminka/internal/dashboard"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
	"adminka/internal/store"
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
  author: ref[Author]
`

const statusEnum = `
name: post_status
items:
  - code: draft
    name: Draft
  - code: published
    name: Published
`

const adminYAML = `
role_hierarchy:
  ROLE_EDITOR: [ROLE_BLOG_POST_ALL]
routes:
  - name: dashboard
    pattern: /admin/dashboard
admins:
  - code: blog.post
    class: blog.Post
    label: Posts
    filters:
      - name: title
      - name: status
        options:
          catalog: post_status
      - name: author.name
      - name: views
  - code: blog.author
    class: blog.Author
groups:
  content:
    label: Content
    items:
      - admin: blog.post
      - admin: blog.author
  tools:
    items:
      - route: dashboard
        label: Dashboard
        roles: [ROLE_EDITOR]
`

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*Server
	dir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "dsl", "blog.dsl"), blogDSL)
	write(t, filepath.Join(dir, "enums", "post_status.yaml"), statusEnum)
	write(t, filepath.Join(dir, "admin.yaml"), adminYAML)

	src := dashboard.Sources{
		DSLDir:      filepath.Join(dir, "dsl"),
		EnumsDir:    filepath.Join(dir, "enums"),
		AdminConfig: filepath.Join(dir, "admin.yaml"),
	}
	var st *store.Store
	queries := func(ents map[string]*dsl.Entity) (datagrid.QueryFactory, error) {
		if st == nil {
			st = store.New(ents)
		} else {
			st.Reload(ents)
		}
		return st, nil
	}
	log := zaptest.NewLogger(t)
	d, err := dashboard.Load(src, queries, log)
	require.NoError(t, err)
	return &testServer{
		Server: NewServer(d, Options{Sources: src, Queries: queries, Log: log}),
		dir:    dir,
	}
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (s *testServer) do(t *testing.T, method, target, roles string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, target, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if roles != "" {
		r.Header.Set(RolesHeader, roles)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) create(t *testing.T, code string, data map[string]any) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/admin/"+code+"/records", "ROLE_SUPER_ADMIN", data)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[map[string]any](t, w)["id"].(string)
}

type menuNode struct {
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	URI      string         `json:"uri"`
	Display  bool           `json:"display"`
	Extras   map[string]any `json:"extras"`
	Children []menuNode     `json:"children"`
}

func TestMenu(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/admin/menu", "ROLE_EDITOR", nil)
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[menuNode](t, w)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Content", root.Children[0].Label)
	require.Len(t, root.Children[0].Children, 1)
	posts := root.Children[0].Children[0]
	assert.Equal(t, "/admin/blog/post/list", posts.URI)
	assert.Equal(t, "blog.post", posts.Extras["admin"])

	w = s.do(t, http.MethodGet, "/api/admin/menu", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[menuNode](t, w).Children)

	w = s.do(t, http.MethodGet, "/api/admin/menu/tools", "ROLE_USER", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[menuNode](t, w).Display)

	w = s.do(t, http.MethodGet, "/api/admin/menu/nope", "ROLE_EDITOR", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFilters(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/admin/blog.post/filters", "ROLE_EDITOR", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[[]filterMeta](t, w)
	require.Len(t, got, 4)
	assert.Equal(t, "string", got[0].Type)
	assert.Equal(t, "contains", got[0].Operators[0])
	assert.Equal(t, "choice", got[1].Type)
	assert.Equal(t, []datagrid.Choice{{Value: "draft", Label: "Draft"}, {Value: "published", Label: "Published"}}, got[1].Choices)
	assert.Equal(t, "name", got[2].Field)
	assert.Equal(t, "number", got[3].Type)

	w = s.do(t, http.MethodGet, "/api/admin/blog.post/filters", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodGet, "/api/admin/blog.comment/filters", "ROLE_EDITOR", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	s := newTestServer(t)
	ann := s.create(t, "blog.author", map[string]any{"name": "Ann"})
	bob := s.create(t, "blog.author", map[string]any{"name": "Bob"})
	s.create(t, "blog.post", map[string]any{"title": "One", "status": "published", "author": ann, "views": 5})
	s.create(t, "blog.post", map[string]any{"title": "Two", "author": ann, "views": 50})
	s.create(t, "blog.post", map[string]any{"title": "Three", "status": "published", "author": bob})

	list := func(q url.Values) *httptest.ResponseRecorder {
		return s.do(t, http.MethodGet, "/api/admin/blog.post/list?"+q.Encode(), "ROLE_EDITOR", nil)
	}

	w := list(url.Values{
		"filter[status][value]": {"published"},
		"_sort":                 {"-title"},
		"_per_page":             {"1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	rows := decode[[]map[string]any](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, "Three", rows[0]["title"])

	w = list(url.Values{
		"filter[author.name][value]": {"ANN"},
		"filter[views][value]":       {"10"},
		"filter[views][type]":        {"gt"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows = decode[[]map[string]any](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, "Two", rows[0]["title"])

	w = list(url.Values{"filter[status][value][]": {"draft", "published"}, "_sort": {"author.name"}, "_order": {"desc"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows = decode[[]map[string]any](t, w)
	require.Len(t, rows, 3)
	assert.Equal(t, "Three", rows[0]["title"])

	for name, q := range map[string]url.Values{
		"unknown filter": {"filter[nope][value]": {"x"}},
		"bad number":     {"filter[views][value]": {"many"}},
		"bad operator":   {"filter[title][value]": {"x"}, "filter[title][type]": {"gt"}},
		"bad choice":     {"filter[status][value]": {"archived"}},
		"bad sort":       {"_sort": {"author.email"}},
		"page overflow":  {"_page": {strconv.Itoa(math.MaxInt)}, "_per_page": {"2"}},
	} {
		w := list(q)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	w = s.do(t, http.MethodGet, "/api/admin/blog.author/list", "ROLE_EDITOR", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateRecord_Errors(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "blog.author", map[string]any{"name": "Ann", "email": "ann@example.com"})

	w := s.do(t, http.MethodPost, "/api/admin/blog.author/records", "ROLE_SUPER_ADMIN", map[string]any{"email": "x@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string][]store.FieldError](t, w)
	require.NotEmpty(t, body["errors"])
	assert.Equal(t, store.CodeRequired, body["errors"][0].Code)

	w = s.do(t, http.MethodPost, "/api/admin/blog.author/records", "ROLE_SUPER_ADMIN", map[string]any{"name": "Dup", "email": "ann@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/blog.post/records", "ROLE_EDITOR", map[string]any{"title": "x", "author": "01J0000000000000000000000"})
	assert.Equal(t, http.StatusConflict, w.Code, "editor may create posts, author does not exist")

	w = s.do(t, http.MethodPost, "/api/admin/blog.author/records", "ROLE_EDITOR", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/admin/blog.author/records", strings.NewReader("{"))
	r.Header.Set(RolesHeader, "ROLE_SUPER_ADMIN")
	rw := httptest.NewRecorder()
	s.Handler().ServeHTTP(rw, r)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestMeta(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/meta", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []entityRef{
		{Module: "blog", Entity: "Author", FQN: "blog.Author"},
		{Module: "blog", Entity: "Post", FQN: "blog.Post"},
	}, decode[[]entityRef](t, w))

	w = s.do(t, http.MethodGet, "/api/meta/blog/post", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ent := decode[entityMeta](t, w)
	assert.Equal(t, "Post", ent.Entity)
	assert.Equal(t, []string{"blog.post"}, ent.Admins)
	var author fieldMeta
	for _, f := range ent.Fields {
		if f.Name == "author" {
			author = f
		}
	}
	assert.Equal(t, "blog.Author", author.RefFQN)
	assert.Equal(t, []string{"blog.post:author.name"}, author.FilteredBy)

	w = s.do(t, http.MethodGet, "/api/meta/blog/comment", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/catalogs/post_status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"published"`)
	w = s.do(t, http.MethodGet, "/api/catalogs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReload(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, "blog.author", map[string]any{"name": "Ann"})
	before := s.Dashboard()

	w := s.do(t, http.MethodPost, "/api/admin/_reload", "ROLE_EDITOR", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	write(t, filepath.Join(s.dir, "admin.yaml"), adminYAML+"  broken:\n    items:\n      - admin: blog.comment\n")
	w = s.do(t, http.MethodPost, "/api/admin/_reload", "ROLE_SUPER_ADMIN", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "group_admin_unknown")
	assert.Same(t, before, s.Dashboard(), "rejected reload keeps the dashboard")

	alt := filepath.Join(s.dir, "alt.yaml")
	write(t, alt, strings.Replace(adminYAML, "label: Posts", "label: Articles", 1))
	w = s.do(t, http.MethodPost, "/api/admin/_reload", "ROLE_SUPER_ADMIN", map[string]any{"admin_config": alt})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotSame(t, before, s.Dashboard())

	w = s.do(t, http.MethodGet, "/api/admin/menu/content", "ROLE_EDITOR", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Articles", decode[menuNode](t, w).Children[0].Label)

	w = s.do(t, http.MethodGet, "/api/admin/blog.author/list", "ROLE_SUPER_ADMIN", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]map[string]any](t, w)
	require.Len(t, rows, 1, "memory records survive a reload")
	assert.Equal(t, id, rows[0]["id"])
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/admin/blog.post/list", "ROLE_EDITOR", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adminka_list_duration_seconds")
}

func TestParseListParams(t *testing.T) {
	lp := parseListParams(url.Values{
		"_page":                   {"3"},
		"_per_page":               {"5000"},
		"_sort":                   {"-title"},
		"filter[title]":           {"x"},
		"filter[tags][value][]":   {"a"},
		"filter[views][type]":     {"gte"},
		"filter[views][value]":    {"1", "2"},
		"filter[empty][value]":    {" "},
		"filters[ignored][value]": {"y"},
	})
	assert.Equal(t, 3, lp.Page)
	assert.Equal(t, defaultPerPage, lp.PerPage, "out of range per page falls back")
	assert.Equal(t, "title", lp.Sort)
	assert.Equal(t, "DESC", lp.Order)
	assert.Equal(t, map[string]datagrid.Value{
		"title": {Value: "x"},
		"tags":  {Value: []string{"a"}},
		"views": {Type: "gte", Value: []string{"1", "2"}},
		"empty": {Value: ""},
	}, lp.Filters)
}
