package rows

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridloom/gridloom/pkg/schema"
)

// DraftStatus is the lifecycle state of a draft row.
//
// A draft moves editing -> submitting -> removed on success, or back to
// error on failure; correcting a cell returns it to editing.
type DraftStatus string

const (
	DraftEditing    DraftStatus = "editing"
	DraftSubmitting DraftStatus = "submitting"
	DraftError      DraftStatus = "error"
)

// RowErrorKey is the pseudo-column under which row-level (column-less)
// submission errors are stored in a draft's error map.
const RowErrorKey = "_row"

// DraftRow is a client-only record awaiting submission.
type DraftRow struct {
	// ID is a client-generated identifier, stable for the row's lifetime
	// and never reused. It is not a server id.
	ID string

	// Values holds the editable cell values, keyed by column key.
	Values RowData

	Status DraftStatus

	// Errors maps column keys to validation/submission messages.
	// Row-level errors use RowErrorKey.
	Errors map[string]string

	// CreatedAt orders drafts within the combined sequence.
	CreatedAt time.Time

	// MetaSignature is the metadata signature the draft was last
	// synchronized against.
	MetaSignature string

	seq uint64
}

func (d *DraftRow) clone() *DraftRow {
	out := &DraftRow{
		ID:            d.ID,
		Values:        d.Values.Clone(),
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
		MetaSignature: d.MetaSignature,
		seq:           d.seq,
	}
	if d.Errors != nil {
		out.Errors = make(map[string]string, len(d.Errors))
		for k, v := range d.Errors {
			out.Errors[k] = v
		}
	}
	return out
}

// Row converts the draft into a tagged Row for the combined sequence.
func (d *DraftRow) Row() Row {
	return Row{
		Kind:        KindDraft,
		Data:        d.Values,
		DraftID:     d.ID,
		DraftStatus: d.Status,
		DraftErrors: d.Errors,
	}
}

// DraftStore holds the unsaved rows of every table, keyed by table key.
//
// The store is independent of server data: it never contacts the server and
// survives window refetches. All accessors return deep copies; mutation goes
// through store methods only. Drafts are kept in creation order, which is
// the order they occupy in the combined row sequence.
type DraftStore struct {
	mu     sync.RWMutex
	tables map[string][]*DraftRow
	seq    uint64
}

// NewDraftStore creates an empty draft store.
func NewDraftStore() *DraftStore {
	return &DraftStore{tables: make(map[string][]*DraftRow)}
}

// CreateDraftRow appends a new draft seeded with per-column defaults and
// returns a copy of it. Server-managed columns are seeded nil so rendering
// can show them as pending.
func (s *DraftStore) CreateDraftRow(tableKey string, meta *schema.TableMeta) *DraftRow {
	draft := &DraftRow{
		ID:            uuid.NewString(),
		Values:        seedValues(meta),
		Status:        DraftEditing,
		CreatedAt:     time.Now(),
		MetaSignature: meta.Signature(),
	}

	s.mu.Lock()
	s.seq++
	draft.seq = s.seq
	s.tables[tableKey] = append(s.tables[tableKey], draft)
	s.mu.Unlock()

	return draft.clone()
}

// UpdateDraftCell sets a single cell value, clears any prior error for that
// column, and marks the row editing. A missing draft is a silent no-op: the
// row may have been submitted or discarded while the edit was in flight.
func (s *DraftStore) UpdateDraftCell(tableKey, draftID, column string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.find(tableKey, draftID)
	if draft == nil {
		return
	}
	draft.Values[column] = cloneValue(value)
	delete(draft.Errors, column)
	delete(draft.Errors, RowErrorKey)
	draft.Status = DraftEditing
}

// RemoveDraftRow deletes a draft after successful submission or explicit
// discard. The id is never reused.
func (s *DraftStore) RemoveDraftRow(tableKey, draftID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := s.tables[tableKey]
	for i, d := range drafts {
		if d.ID == draftID {
			s.tables[tableKey] = append(drafts[:i:i], drafts[i+1:]...)
			return
		}
	}
}

// SetDraftRowStatus transitions a draft's status. A non-nil errs replaces
// the draft's error map; passing nil leaves existing errors in place.
func (s *DraftStore) SetDraftRowStatus(tableKey, draftID string, status DraftStatus, errs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.find(tableKey, draftID)
	if draft == nil {
		return
	}
	draft.Status = status
	if errs != nil {
		draft.Errors = make(map[string]string, len(errs))
		for k, v := range errs {
			draft.Errors[k] = v
		}
	}
	if status != DraftError && errs == nil {
		draft.Errors = nil
	}
}

// SyncWithMeta re-validates every draft of a table against new metadata.
// Columns removed from the schema are dropped from draft values; newly added
// columns are seeded with defaults. Idempotent for a given signature: drafts
// already carrying it are left untouched.
func (s *DraftStore) SyncWithMeta(tableKey string, meta *schema.TableMeta) {
	sig := meta.Signature()
	defaults := seedValues(meta)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, draft := range s.tables[tableKey] {
		if draft.MetaSignature == sig {
			continue
		}
		for column := range draft.Values {
			if !meta.HasColumn(column) {
				delete(draft.Values, column)
				delete(draft.Errors, column)
			}
		}
		for column, def := range defaults {
			if _, ok := draft.Values[column]; !ok {
				draft.Values[column] = cloneValue(def)
			}
		}
		draft.MetaSignature = sig
	}
}

// Draft returns a copy of one draft row.
func (s *DraftStore) Draft(tableKey, draftID string) (*DraftRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	draft := s.find(tableKey, draftID)
	if draft == nil {
		return nil, false
	}
	return draft.clone(), true
}

// Drafts returns copies of a table's drafts in creation order.
func (s *DraftStore) Drafts(tableKey string) []*DraftRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drafts := s.tables[tableKey]
	out := make([]*DraftRow, len(drafts))
	for i, d := range drafts {
		out[i] = d.clone()
	}
	return out
}

// Count returns the number of drafts held for a table.
func (s *DraftStore) Count(tableKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[tableKey])
}

// HasDraft reports whether the given client id belongs to any draft of the
// table. Used by submission to reject relation values that point at
// still-unsubmitted drafts.
func (s *DraftStore) HasDraft(tableKey, draftID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(tableKey, draftID) != nil
}

// find returns the live draft; callers must hold the lock.
func (s *DraftStore) find(tableKey, draftID string) *DraftRow {
	for _, d := range s.tables[tableKey] {
		if d.ID == draftID {
			return d
		}
	}
	return nil
}

// seedValues builds the default value record for a table: empty string for
// text, nil for nullable relation/date columns, empty list for to-many
// relations, type zero value otherwise. Server-managed columns seed nil.
func seedValues(meta *schema.TableMeta) RowData {
	values := make(RowData, len(meta.ColumnOrder))
	for _, key := range meta.ColumnOrder {
		field, ok := meta.Field(key)
		if !ok {
			continue
		}
		values[key] = defaultValue(meta, field)
	}
	return values
}

func defaultValue(meta *schema.TableMeta, field schema.Field) any {
	if field.ServerManaged {
		return nil
	}
	switch field.Type {
	case schema.FieldText:
		return ""
	case schema.FieldNumber:
		if field.Nullable {
			return nil
		}
		return float64(0)
	case schema.FieldBoolean:
		return false
	case schema.FieldDate, schema.FieldTimestamp, schema.FieldUUID, schema.FieldGeometry, schema.FieldJSON:
		return nil
	case schema.FieldRelation:
		if rel, ok := meta.Relation(field.Key); ok && rel.Kind.IsToMany() {
			return []any{}
		}
		return nil
	default:
		return nil
	}
}
