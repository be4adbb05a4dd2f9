package dsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogDSL = `
module blog

entity Author "Authors":
  name: string required label='Full name'
  email: string unique
  active: bool default=true

entity Post:
  title: string required
  status: enum[draft, published] catalog=post_status
  author: ref[Author] on_delete=restrict
  tags: array[ref[core.Tag]]
  published_at: datetime
  constraints:
    unique(title, author)
`

func TestParse(t *testing.T) {
	ents, err := Parse(strings.NewReader(blogDSL), "blog.dsl")
	require.NoError(t, err)
	require.Len(t, ents, 2)

	author := ents[0]
	assert.Equal(t, "blog.Author", author.FQN())
	assert.Equal(t, "Authors", author.Label)
	name, ok := author.Field("NAME")
	require.True(t, ok)
	assert.Equal(t, "string", name.Type)
	assert.Equal(t, "true", name.Option("required"))
	assert.Equal(t, "Full name", name.Option("label"))

	post := ents[1]
	status, _ := post.Field("status")
	assert.Equal(t, "enum", status.Type)
	assert.Equal(t, []string{"draft", "published"}, status.Enum)
	assert.Equal(t, "post_status", status.Option("catalog"))

	ref, _ := post.Field("author")
	assert.True(t, ref.IsRef())
	assert.Equal(t, "blog.Author", ref.RefFQN(post.Module))

	tags, _ := post.Field("tags")
	assert.True(t, tags.IsRef())
	assert.True(t, tags.IsCollection())
	assert.Equal(t, "core.Tag", tags.RefFQN(post.Module))

	assert.Equal(t, [][]string{{"title", "author"}}, post.Constraints.Unique)
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse(strings.NewReader("module m\nentity A:\n  x: blob\n"), "a.dsl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.dsl:3")
	assert.Contains(t, err.Error(), "unknown type")
}

func TestLoadAllEntities(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.dsl"), []byte(blogDSL), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	ents, err := LoadAllEntities(dir)
	require.NoError(t, err)
	assert.Len(t, ents, 2)
	assert.Contains(t, ents, "blog.Post")
}

func TestLoadAllEntities_MissingModule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.dsl"), []byte("entity A:\n  x: string\n"), 0o644))

	_, err := LoadAllEntities(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no module")
}
