package dashboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
	"adminka/internal/menu"
	"adminka/internal/reference"
	"adminka/internal/security"
	"adminka/internal/store"
)

const blogDSL = `
module blog

entity Author:
  name: string required

entity Post:
  title: string required
  views: int
  status: enum[draft, published] default=draft
  author: ref[Author]
`

const statusEnum = `
name: post_status
items:
  - code: published
    name: Published
    order: 2
  - code: draft
    name: Draft
    order: 1
`

const adminYAML = `
base_url: https://admin.example.org
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
        type: choice
        options:
          catalog: post_status
      - name: author.name
      - name: views
        role: ROLE_STATS
  - code: blog.author
    class: blog.Author
groups:
  content:
    label: Content
    items:
      - admin: blog.post
      - admin: blog.author
  tools:
    icon: wrench
    items:
      - route: dashboard
        label: Dashboard
        roles: [ROLE_EDITOR]
`

func entities(t *testing.T) map[string]*dsl.Entity {
	t.Helper()
	ents, err := dsl.Parse(strings.NewReader(blogDSL), "blog.dsl")
	require.NoError(t, err)
	out := map[string]*dsl.Entity{}
	for _, e := range ents {
		out[e.FQN()] = e
	}
	return out
}

func catalog() reference.Catalog {
	return reference.Catalog{"post_status": {
		Name: "post_status",
		Items: []reference.EnumItem{
			{Code: "published", Name: "Published", Order: 2},
			{Code: "draft", Name: "Draft", Order: 1},
		},
	}}
}

func build(t *testing.T) (*Dashboard, *store.Store) {
	t.Helper()
	cfg, err := ParseConfig(strings.NewReader(adminYAML))
	require.NoError(t, err)
	ents := entities(t)
	st := store.New(ents)
	d, err := Build(cfg, ents, catalog(), st, zaptest.NewLogger(t))
	require.NoError(t, err)
	return d, st
}

func TestParseConfig_KeepsGroupOrder(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
groups:
  zeta:
    items: []
  alpha:
    label: Alpha
    label_catalogue: nav
`))
	require.NoError(t, err)
	require.Len(t, cfg.Groups, 2)
	assert.Equal(t, "zeta", cfg.Groups[0].Name)
	assert.Equal(t, "zeta", cfg.Groups[0].Group.Label, "label defaults to the key")
	assert.Equal(t, "messages", cfg.Groups[0].Group.LabelCatalogue)
	assert.Equal(t, "nav", cfg.Groups[1].Group.LabelCatalogue)

	_, ok := cfg.Groups.Lookup("alpha")
	assert.True(t, ok)
	_, ok = cfg.Groups.Lookup("beta")
	assert.False(t, ok)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("groups: [a, b]\n"))
	assert.True(t, errors.Is(err, admin.ErrInvalidArgument))

	_, err = ParseConfig(strings.NewReader("admins:\n  - code: x\n    colour: red\n"))
	assert.True(t, errors.Is(err, admin.ErrInvalidArgument), "unknown keys are rejected")

	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Admins)
}

func TestLint(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
admins:
  - code: blog.post
    class: blog.Post
    filters:
      - name: title
      - name: title
      - name: author.email
      - name: author
        type: slider
      - name: status
        options:
          catalog: nope
  - code: blog.post
    class: blog.Post
  - code: shop.item
    class: shop.Item
groups:
  broken:
    items:
      - label: nothing
  links:
    items:
      - admin: blog.comment
      - route: reports
        label: Reports
      - admin: blog.post
`))
	require.NoError(t, err)

	var got []string
	for _, it := range Lint(cfg, entities(t), catalog()) {
		got = append(got, it.Code+" "+it.Admin+it.Group+" "+it.Field)
	}
	assert.Equal(t, []string{
		"filter_duplicate blog.post title",
		"filter_field_unknown blog.post author.email",
		"filter_type_unknown blog.post author",
		"catalog_unknown blog.post status",
		"admin_duplicate blog.post ",
		"admin_class_unknown shop.item ",
		"group_invalid broken ",
		"group_admin_unknown links ",
		"group_route_unknown links ",
	}, got)
}

func TestLint_Clean(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(adminYAML))
	require.NoError(t, err)
	assert.Empty(t, Lint(cfg, entities(t), catalog()))
}

func TestBuild_LintError(t *testing.T) {
	cfg := &Config{Admins: []admin.Definition{{Code: "x", Class: "blog.Missing"}}}
	_, err := Build(cfg, entities(t), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, admin.ErrInvalidArgument))

	var lerr *LintError
	require.True(t, errors.As(err, &lerr))
	require.Len(t, lerr.Issues, 1)
	assert.Equal(t, "admin_class_unknown", lerr.Issues[0].Code)
	assert.Contains(t, err.Error(), `x: class "blog.Missing" is not defined in the DSL`)
}

func TestDashboard_Sidebar(t *testing.T) {
	d, _ := build(t)

	root, err := d.Sidebar(d.Checker([]string{"ROLE_EDITOR"}))
	require.NoError(t, err)
	groups := root.Children()
	require.Len(t, groups, 2)

	content := groups[0]
	assert.Equal(t, "Content", content.Label)
	require.Len(t, content.Children(), 1, "author admin is not granted")
	posts := content.Children()[0]
	assert.Equal(t, "Posts", posts.Label)
	assert.Equal(t, "/admin/blog/post/list", posts.URI)

	tools := groups[1]
	assert.Equal(t, "tools", tools.Label)
	icon, _ := tools.Extra("icon")
	assert.Equal(t, "wrench", icon)
	require.Len(t, tools.Children(), 1)
	assert.Equal(t, "/admin/dashboard", tools.Children()[0].URI)

	root, err = d.Sidebar(d.Checker(nil))
	require.NoError(t, err)
	assert.False(t, root.HasChildren())

	// супер-админ видит все админки, но не чужие роли маршрутов
	root, err = d.Sidebar(d.Checker([]string{"ROLE_SUPER_ADMIN"}))
	require.NoError(t, err)
	require.Len(t, root.Children(), 1)
	assert.Len(t, root.Children()[0].Children(), 2)
}

func TestDashboard_Checker(t *testing.T) {
	d, _ := build(t)

	c := d.Checker([]string{"ROLE_EDITOR", "ROLE_X"})
	assert.True(t, c.IsGranted("ROLE_BLOG_POST_ALL"), "hierarchy applies")
	assert.False(t, d.IsSuperAdmin(c))
	assert.True(t, d.IsSuperAdmin(d.Checker([]string{"ROLE_SUPER_ADMIN"})))
}

func TestDashboard_CheckerKeepsNoActorState(t *testing.T) {
	d, _ := build(t)

	first := d.Checker([]string{"ROLE_EDITOR"})
	require.True(t, first.IsGranted("ROLE_BLOG_POST_ALL"))
	assert.Equal(t, 1, first.(*security.CachedChecker).Size())

	for i := 0; i < 1000; i++ {
		d.Checker([]string{fmt.Sprintf("ROLE_X%d", i)}).IsGranted("ROLE_EDITOR")
	}
	again := d.Checker([]string{"ROLE_EDITOR"})
	assert.NotSame(t, first, again)
	assert.Equal(t, 0, again.(*security.CachedChecker).Size(), "each actor starts with an empty decision cache")
	assert.True(t, again.IsGranted("ROLE_BLOG_POST_ALL"))
}

func TestDashboard_Menu(t *testing.T) {
	d, _ := build(t)

	it, err := d.Menu(d.Checker(nil), "content")
	require.NoError(t, err)
	assert.False(t, it.IsDisplayed())
	assert.Equal(t, "Content", it.Label)

	_, err = d.Menu(d.Checker(nil), "missing")
	assert.True(t, errors.Is(err, admin.ErrNotFound))
	assert.True(t, d.Pool().Router().Has("admin_blog_author_list"))
}

func TestDashboard_Datagrid(t *testing.T) {
	d, st := build(t)
	ann, err := st.Insert("blog.Author", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	bob, err := st.Insert("blog.Author", map[string]any{"name": "Bob"})
	require.NoError(t, err)
	for _, p := range []map[string]any{
		{"title": "One", "status": "published", "author": ann.ID, "views": 10},
		{"title": "Two", "status": "draft", "author": ann.ID},
		{"title": "Three", "status": "published", "author": bob.ID},
	} {
		_, err := st.Insert("blog.Post", p)
		require.NoError(t, err)
	}

	dg, a, err := d.Datagrid(d.Checker([]string{"ROLE_EDITOR"}), "blog.post")
	require.NoError(t, err)
	assert.Equal(t, "blog.Post", a.Class())
	assert.Equal(t, []string{"title", "status", "author.name"}, dg.FilterNames(), "views needs ROLE_STATS")

	f, err := dg.Filter("status")
	require.NoError(t, err)
	lister, ok := f.(datagrid.ChoiceLister)
	require.True(t, ok)
	assert.Equal(t, []datagrid.Choice{{Value: "draft", Label: "Draft"}, {Value: "published", Label: "Published"}}, lister.Choices())

	require.NoError(t, dg.SetValue("status", datagrid.Value{Value: "published"}))
	require.NoError(t, dg.SetValue("author.name", datagrid.Value{Value: "an"}))
	rows, err := dg.Results(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "One", rows[0]["title"])

	dg, _, err = d.Datagrid(d.Checker([]string{"ROLE_SUPER_ADMIN"}), "blog.post")
	require.NoError(t, err)
	assert.True(t, dg.HasFilter("views"))
	n, err := dg.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, _, err = d.Datagrid(d.Checker(nil), "blog.comment")
	assert.True(t, errors.Is(err, admin.ErrNotFound))
}

func TestDashboard_DatagridWithoutQueries(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(adminYAML))
	require.NoError(t, err)
	d, err := Build(cfg, entities(t), catalog(), nil, nil)
	require.NoError(t, err)

	_, _, err = d.Datagrid(d.Checker(nil), "blog.post")
	assert.True(t, errors.Is(err, admin.ErrInvalidArgument))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("dsl/blog.dsl", blogDSL)
	write("enums/post_status.yaml", statusEnum)
	write("admin.yaml", adminYAML)

	src := Sources{
		DSLDir:      filepath.Join(dir, "dsl"),
		EnumsDir:    filepath.Join(dir, "enums"),
		AdminConfig: filepath.Join(dir, "admin.yaml"),
	}
	var opened []string
	d, err := Load(src, func(ents map[string]*dsl.Entity) (datagrid.QueryFactory, error) {
		for fqn := range ents {
			opened = append(opened, fqn)
		}
		return store.New(ents), nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"blog.Author", "blog.Post"}, opened)
	assert.Equal(t, []string{"blog.post", "blog.author"}, d.Pool().Codes())
	assert.Len(t, d.Catalog, 1)

	_, ok := d.Config.Groups.Lookup("tools")
	assert.True(t, ok)

	src.AdminConfig = filepath.Join(dir, "missing.yaml")
	_, err = Load(src, nil, nil)
	assert.True(t, errors.Is(err, admin.ErrInvalidArgument))
}

var _ menu.AdminPool = (*admin.Pool)(nil)
