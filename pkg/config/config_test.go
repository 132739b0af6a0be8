package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/pkg/schema"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Window.PageSize)
	assert.Equal(t, 100, cfg.Window.ChunkSize)
	assert.Equal(t, "embedded", cfg.Backend.Mode)
	assert.Equal(t, 3, cfg.Grid.RelationDisplayCount)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridloom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
window:
  page_size: 25
  infinite: true
grid:
  relation_display_count: 5
tables:
  - key: articles
    columns:
      - key: id
        type: uuid
        server_managed: true
      - key: title
        type: text
      - key: author
        type: relation
        nullable: true
    relations:
      - field: author
        kind: belongsTo
        target_table: users
        foreign_keys: [author_id]
        display_fields: [name]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Window.PageSize)
	assert.True(t, cfg.Window.Infinite)
	assert.Equal(t, 5, cfg.Grid.RelationDisplayCount)

	metas := cfg.TableMetas()
	require.Len(t, metas, 1)
	meta := metas[0]
	assert.Equal(t, "articles", meta.TableKey)
	assert.Equal(t, []string{"id", "title", "author"}, meta.ColumnOrder)
	assert.True(t, meta.Fields["id"].ServerManaged)
	rel, ok := meta.Relation("author")
	require.True(t, ok)
	assert.Equal(t, schema.BelongsTo, rel.Kind)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Window.PageSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridloom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window:\n  page_size: 25\n"), 0o644))
	t.Setenv("GRIDLOOM_PAGE_SIZE", "75")
	t.Setenv("GRIDLOOM_INFINITE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Window.PageSize)
	assert.True(t, cfg.Window.Infinite)
}

func TestLogging_Enables(t *testing.T) {
	debug := LoggingConfig{Level: "DEBUG"}
	assert.True(t, debug.Enables("DEBUG"))
	assert.True(t, debug.Enables("ERROR"))

	warn := LoggingConfig{Level: "WARN"}
	assert.False(t, warn.Enables("DEBUG"))
	assert.False(t, warn.Enables("INFO"))
	assert.True(t, warn.Enables("WARN"))
	assert.True(t, warn.Enables("ERROR"))
}

func TestValidate_Rejections(t *testing.T) {
	t.Run("page size out of range", func(t *testing.T) {
		cfg := Default()
		cfg.Window.PageSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad backend mode", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.Mode = "carrier-pigeon"
		assert.Error(t, cfg.Validate())
	})

	t.Run("remote mode without endpoint", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.Mode = "remote"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad relation kind", func(t *testing.T) {
		cfg := Default()
		cfg.Tables = []TableConfig{{
			Key:       "articles",
			Columns:   []ColumnConfig{{Key: "id", Type: "uuid"}},
			Relations: []RelationConfig{{Field: "x", Kind: "sideways", TargetTable: "y"}},
		}}
		assert.Error(t, cfg.Validate())
	})
}
