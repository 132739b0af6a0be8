// Package edit routes cell edits and submits draft rows.
//
// The CellEditor decides whether a cell coordinate addresses a draft or a
// server row and applies the edit accordingly. The Submitter turns draft
// rows into server creates, with relation remapping and per-row failure
// tracking: one bad row never blocks the rest of a batch.
package edit

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
	"github.com/gridloom/gridloom/pkg/window"
)

// IDColumn is the column carrying a server row's identifier.
const IDColumn = "id"

var (
	// ErrNoMetadata is returned when the table's metadata is not cached yet.
	ErrNoMetadata = errors.New("edit: table metadata not available")
	// ErrRowNotLoaded is returned when the target server row has not been
	// fetched, so there is nothing to edit.
	ErrRowNotLoaded = errors.New("edit: row not loaded")
	// ErrDraftNotFound is returned when a submission names a draft that no
	// longer exists.
	ErrDraftNotFound = errors.New("edit: draft row not found")
)

// Coord addresses one cell: column index into the column order, row index
// into the combined sequence.
type Coord struct {
	Col int
	Row int
}

// EditKind discriminates where an edit landed.
type EditKind int

const (
	// EditDraft means the value went to the draft store; no network call.
	EditDraft EditKind = iota
	// EditServer means a mutation was issued.
	EditServer
)

// EditResult tells the caller how to reconcile its cache. For server edits,
// UpdatedRow carries the server's echo of the full row when available;
// otherwise PatchField/PatchValue identify the single changed field.
type EditResult struct {
	Kind       EditKind
	UpdatedRow rows.RowData
	PatchField string
	PatchValue any
}

// MetaFunc returns the current metadata for the editor's table. Reading it
// at call time keeps edits aligned with the latest metadata signature.
type MetaFunc func() (*schema.TableMeta, bool)

// CellEditor validates and routes a single cell edit.
type CellEditor struct {
	tableKey string
	meta     MetaFunc
	drafts   *rows.DraftStore
	seq      *window.Sequence
	mutator  source.RowMutator
}

// NewCellEditor wires a cell editor for one table.
func NewCellEditor(tableKey string, meta MetaFunc, drafts *rows.DraftStore, win window.Window, mutator source.RowMutator) *CellEditor {
	return &CellEditor{
		tableKey: tableKey,
		meta:     meta,
		drafts:   drafts,
		seq:      window.NewSequence(win, drafts, tableKey),
		mutator:  mutator,
	}
}

// EditCell applies newValue at the coordinate. Draft rows are updated
// locally and never touch the server. Server rows go through the mutator;
// no optimistic value is applied before the server confirms, and mutation
// failures propagate unchanged for the caller to present.
func (e *CellEditor) EditCell(ctx context.Context, coord Coord, newValue any) (EditResult, error) {
	meta, ok := e.meta()
	if !ok {
		return EditResult{}, ErrNoMetadata
	}
	if coord.Col < 0 || coord.Col >= len(meta.ColumnOrder) {
		return EditResult{}, errors.Errorf("edit: column index %d out of range", coord.Col)
	}
	column := meta.ColumnOrder[coord.Col]

	row, state := e.seq.RowAt(coord.Row)
	switch state {
	case window.RowLoading:
		return EditResult{}, ErrRowNotLoaded
	case window.RowMissing:
		return EditResult{}, errors.Errorf("edit: row index %d out of range", coord.Row)
	}

	if row.IsDraft() {
		e.drafts.UpdateDraftCell(e.tableKey, row.DraftID, column, newValue)
		return EditResult{Kind: EditDraft}, nil
	}

	rowID, _ := row.Data[IDColumn].(string)
	if rowID == "" {
		return EditResult{}, errors.Errorf("edit: row %d has no id", coord.Row)
	}

	patch := rows.RowData{column: newValue}
	updated, err := e.mutator.Update(ctx, e.tableKey, rowID, patch)
	if err != nil {
		return EditResult{}, err
	}
	if updated != nil {
		return EditResult{Kind: EditServer, UpdatedRow: updated}, nil
	}
	return EditResult{Kind: EditServer, PatchField: column, PatchValue: newValue}, nil
}
