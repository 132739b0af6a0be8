package rows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/pkg/schema"
)

func ticketsMeta() *schema.TableMeta {
	return &schema.TableMeta{
		TableKey:    "tickets",
		ColumnOrder: []string{"id", "subject", "priority", "open", "assignee", "comments", "createdAt"},
		Fields: map[string]schema.Field{
			"id":        {Key: "id", Type: schema.FieldUUID, ServerManaged: true},
			"subject":   {Key: "subject", Type: schema.FieldText},
			"priority":  {Key: "priority", Type: schema.FieldNumber},
			"open":      {Key: "open", Type: schema.FieldBoolean},
			"assignee":  {Key: "assignee", Type: schema.FieldRelation, Nullable: true},
			"comments":  {Key: "comments", Type: schema.FieldRelation, Nullable: true},
			"createdAt": {Key: "createdAt", Type: schema.FieldTimestamp, ServerManaged: true},
		},
		Relations: map[string]schema.Relation{
			"assignee": {Field: "assignee", Kind: schema.BelongsTo, TargetTable: "users", ForeignKeys: []string{"assignee_id"}, DisplayFields: []string{"name"}},
			"comments": {Field: "comments", Kind: schema.HasMany, TargetTable: "comments", ForeignKeys: []string{"ticket_id"}, DisplayFields: []string{"body"}},
		},
	}
}

func TestDraftStore_CreateSeedsDefaults(t *testing.T) {
	store := NewDraftStore()
	draft := store.CreateDraftRow("tickets", ticketsMeta())

	require.NotEmpty(t, draft.ID)
	assert.Equal(t, DraftEditing, draft.Status)
	assert.Equal(t, "", draft.Values["subject"])
	assert.Equal(t, float64(0), draft.Values["priority"])
	assert.Equal(t, false, draft.Values["open"])
	assert.Nil(t, draft.Values["assignee"])
	assert.Equal(t, []any{}, draft.Values["comments"])
	assert.Nil(t, draft.Values["id"])
	assert.Nil(t, draft.Values["createdAt"])
}

func TestDraftStore_CreationOrderStableUnderEdits(t *testing.T) {
	store := NewDraftStore()
	meta := ticketsMeta()

	first := store.CreateDraftRow("tickets", meta)
	second := store.CreateDraftRow("tickets", meta)
	third := store.CreateDraftRow("tickets", meta)

	// Edits must not reorder drafts.
	store.UpdateDraftCell("tickets", third.ID, "subject", "printer on fire")
	store.UpdateDraftCell("tickets", first.ID, "subject", "login broken")

	drafts := store.Drafts("tickets")
	require.Len(t, drafts, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID},
		[]string{drafts[0].ID, drafts[1].ID, drafts[2].ID})
}

func TestDraftStore_UpdateCellClearsError(t *testing.T) {
	store := NewDraftStore()
	draft := store.CreateDraftRow("tickets", ticketsMeta())

	store.SetDraftRowStatus("tickets", draft.ID, DraftError, map[string]string{
		"subject": "subject is required",
	})

	store.UpdateDraftCell("tickets", draft.ID, "subject", "it broke")

	got, ok := store.Draft("tickets", draft.ID)
	require.True(t, ok)
	assert.Equal(t, DraftEditing, got.Status)
	assert.Equal(t, "it broke", got.Values["subject"])
	assert.NotContains(t, got.Errors, "subject")
}

func TestDraftStore_UpdateMissingDraftIsNoOp(t *testing.T) {
	store := NewDraftStore()
	store.CreateDraftRow("tickets", ticketsMeta())

	assert.NotPanics(t, func() {
		store.UpdateDraftCell("tickets", "no-such-id", "subject", "x")
		store.UpdateDraftCell("other-table", "no-such-id", "subject", "x")
	})
	assert.Equal(t, 1, store.Count("tickets"))
}

func TestDraftStore_RemoveDraftRow(t *testing.T) {
	store := NewDraftStore()
	meta := ticketsMeta()
	a := store.CreateDraftRow("tickets", meta)
	b := store.CreateDraftRow("tickets", meta)

	store.RemoveDraftRow("tickets", a.ID)

	drafts := store.Drafts("tickets")
	require.Len(t, drafts, 1)
	assert.Equal(t, b.ID, drafts[0].ID)
	assert.False(t, store.HasDraft("tickets", a.ID))
}

func TestDraftStore_StatusTransitions(t *testing.T) {
	store := NewDraftStore()
	draft := store.CreateDraftRow("tickets", ticketsMeta())

	store.SetDraftRowStatus("tickets", draft.ID, DraftSubmitting, nil)
	got, _ := store.Draft("tickets", draft.ID)
	assert.Equal(t, DraftSubmitting, got.Status)

	store.SetDraftRowStatus("tickets", draft.ID, DraftError, map[string]string{RowErrorKey: "backend said no"})
	got, _ = store.Draft("tickets", draft.ID)
	assert.Equal(t, DraftError, got.Status)
	assert.Equal(t, "backend said no", got.Errors[RowErrorKey])
}

func TestDraftStore_SyncWithMeta(t *testing.T) {
	store := NewDraftStore()
	meta := ticketsMeta()
	draft := store.CreateDraftRow("tickets", meta)
	store.UpdateDraftCell("tickets", draft.ID, "subject", "keep me")

	// Schema edited underneath the grid: "open" removed, "severity" added.
	next := ticketsMeta()
	next.ColumnOrder = []string{"id", "subject", "priority", "severity", "assignee", "comments", "createdAt"}
	delete(next.Fields, "open")
	next.Fields["severity"] = schema.Field{Key: "severity", Type: schema.FieldNumber}

	store.SyncWithMeta("tickets", next)

	got, ok := store.Draft("tickets", draft.ID)
	require.True(t, ok)
	assert.NotContains(t, got.Values, "open")
	assert.Equal(t, float64(0), got.Values["severity"])
	assert.Equal(t, "keep me", got.Values["subject"])
	assert.Equal(t, next.Signature(), got.MetaSignature)
}

func TestDraftStore_SyncIdempotentPerSignature(t *testing.T) {
	store := NewDraftStore()
	meta := ticketsMeta()
	draft := store.CreateDraftRow("tickets", meta)
	store.UpdateDraftCell("tickets", draft.ID, "subject", "hello")

	next := ticketsMeta()
	next.ColumnOrder = append(next.ColumnOrder, "body")
	next.Fields["body"] = schema.Field{Key: "body", Type: schema.FieldText}

	store.SyncWithMeta("tickets", next)
	after1, _ := store.Draft("tickets", draft.ID)

	// Second sync with the same signature: values must be identical, and a
	// user edit applied between syncs must survive.
	store.UpdateDraftCell("tickets", draft.ID, "body", "details")
	store.SyncWithMeta("tickets", next)
	after2, _ := store.Draft("tickets", draft.ID)

	assert.Equal(t, after1.Values["subject"], after2.Values["subject"])
	assert.Equal(t, "details", after2.Values["body"])
	assert.Equal(t, after1.MetaSignature, after2.MetaSignature)
}

func TestDraftStore_TablesAreIsolated(t *testing.T) {
	store := NewDraftStore()
	meta := ticketsMeta()
	store.CreateDraftRow("tickets", meta)
	store.CreateDraftRow("archive.tickets", meta)

	assert.Equal(t, 1, store.Count("tickets"))
	assert.Equal(t, 1, store.Count("archive.tickets"))

	store.RemoveDraftRow("tickets", store.Drafts("tickets")[0].ID)
	assert.Equal(t, 0, store.Count("tickets"))
	assert.Equal(t, 1, store.Count("archive.tickets"))
}

func TestDraftStore_CopiesAreIsolated(t *testing.T) {
	store := NewDraftStore()
	draft := store.CreateDraftRow("tickets", ticketsMeta())

	// Mutating a returned copy must not leak into the store.
	copy1, _ := store.Draft("tickets", draft.ID)
	copy1.Values["subject"] = "mutated"

	copy2, _ := store.Draft("tickets", draft.ID)
	assert.Equal(t, "", copy2.Values["subject"])
}
