package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func articlesMeta() *TableMeta {
	return &TableMeta{
		TableKey:    "articles",
		ColumnOrder: []string{"id", "title", "views", "author", "createdAt"},
		Fields: map[string]Field{
			"id":        {Key: "id", Type: FieldUUID, ServerManaged: true},
			"title":     {Key: "title", Type: FieldText},
			"views":     {Key: "views", Type: FieldNumber, Nullable: true},
			"author":    {Key: "author", Type: FieldRelation, Nullable: true},
			"createdAt": {Key: "createdAt", Type: FieldTimestamp, ServerManaged: true},
		},
		Relations: map[string]Relation{
			"author": {
				Field:         "author",
				Kind:          BelongsTo,
				TargetTable:   "users",
				ForeignKeys:   []string{"author_id"},
				DisplayFields: []string{"name", "email"},
			},
		},
	}
}

func TestTableMeta_Signature_Stable(t *testing.T) {
	a := articlesMeta()
	b := articlesMeta()
	assert.Equal(t, a.Signature(), b.Signature())
	// Repeated calls on the same meta are stable too.
	assert.Equal(t, a.Signature(), a.Signature())
}

func TestTableMeta_Signature_ChangesWithSchema(t *testing.T) {
	base := articlesMeta().Signature()

	t.Run("column added", func(t *testing.T) {
		m := articlesMeta()
		m.ColumnOrder = append(m.ColumnOrder, "body")
		m.Fields["body"] = Field{Key: "body", Type: FieldText}
		assert.NotEqual(t, base, m.Signature())
	})

	t.Run("type changed", func(t *testing.T) {
		m := articlesMeta()
		m.Fields["views"] = Field{Key: "views", Type: FieldText, Nullable: true}
		assert.NotEqual(t, base, m.Signature())
	})

	t.Run("nullability changed", func(t *testing.T) {
		m := articlesMeta()
		m.Fields["title"] = Field{Key: "title", Type: FieldText, Nullable: true}
		assert.NotEqual(t, base, m.Signature())
	})

	t.Run("relation retargeted", func(t *testing.T) {
		m := articlesMeta()
		rel := m.Relations["author"]
		rel.TargetTable = "accounts"
		m.Relations["author"] = rel
		assert.NotEqual(t, base, m.Signature())
	})
}

func TestTableMeta_Clone_Isolated(t *testing.T) {
	a := articlesMeta()
	b := a.Clone()

	b.Fields["title"] = Field{Key: "title", Type: FieldNumber}
	b.ColumnOrder[0] = "mutated"
	rel := b.Relations["author"]
	rel.ForeignKeys[0] = "mutated"
	b.Relations["author"] = rel

	assert.Equal(t, FieldText, a.Fields["title"].Type)
	assert.Equal(t, "id", a.ColumnOrder[0])
	assert.Equal(t, "author_id", a.Relations["author"].ForeignKeys[0])
}

func TestRelationKind_IsToMany(t *testing.T) {
	assert.False(t, BelongsTo.IsToMany())
	assert.False(t, HasOne.IsToMany())
	assert.True(t, HasMany.IsToMany())
	assert.True(t, ManyToMany.IsToMany())
}

func TestCache_LookupReturnsCopy(t *testing.T) {
	cache := NewCache(nil)
	cache.PutFields(articlesMeta())

	got, ok := cache.Lookup("articles")
	require.True(t, ok)
	got.Fields["title"] = Field{Key: "title", Type: FieldJSON}

	again, ok := cache.Lookup("articles")
	require.True(t, ok)
	assert.Equal(t, FieldText, again.Fields["title"].Type)
}

func TestCache_RelationsArriveLate(t *testing.T) {
	cache := NewCache(nil)

	fieldsOnly := articlesMeta()
	fieldsOnly.Relations = nil
	cache.PutFields(fieldsOnly)

	meta, ok := cache.Lookup("articles")
	require.True(t, ok)
	_, hasRel := meta.Relation("author")
	assert.False(t, hasRel)

	cache.PutRelations("articles", articlesMeta().Relations)

	meta, ok = cache.Lookup("articles")
	require.True(t, ok)
	rel, hasRel := meta.Relation("author")
	require.True(t, hasRel)
	assert.Equal(t, BelongsTo, rel.Kind)
	assert.Equal(t, "users", rel.TargetTable)
}

func TestCache_PutFieldsNilVersusEmptyRelations(t *testing.T) {
	cache := NewCache(nil)
	cache.PutFields(articlesMeta())

	// A fields-only update (nil relations) keeps the cached descriptors.
	fieldsOnly := articlesMeta()
	fieldsOnly.Relations = nil
	cache.PutFields(fieldsOnly)

	meta, ok := cache.Lookup("articles")
	require.True(t, ok)
	_, hasRel := meta.Relation("author")
	assert.True(t, hasRel)

	// An empty map is authoritative: the schema dropped its last relation.
	noRelations := articlesMeta()
	noRelations.Relations = map[string]Relation{}
	cache.PutFields(noRelations)

	meta, ok = cache.Lookup("articles")
	require.True(t, ok)
	_, hasRel = meta.Relation("author")
	assert.False(t, hasRel)
}

func TestCache_SubscribeNotifies(t *testing.T) {
	cache := NewCache(nil)

	var notified []string
	unsub := cache.Subscribe(func(tableKey string) {
		notified = append(notified, tableKey)
	})

	cache.PutFields(articlesMeta())
	cache.PutRelations("articles", articlesMeta().Relations)
	cache.Invalidate("articles")

	assert.Equal(t, []string{"articles", "articles", "articles"}, notified)

	unsub()
	cache.PutFields(articlesMeta())
	assert.Len(t, notified, 3)
}

func TestCache_PutRelationsUnknownTable(t *testing.T) {
	cache := NewCache(nil)
	cache.PutRelations("ghosts", map[string]Relation{"x": {Field: "x", Kind: HasOne}})
	_, ok := cache.Lookup("ghosts")
	assert.False(t, ok)
}
