package grid

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gridloom/gridloom/pkg/edit"
	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
	"github.com/gridloom/gridloom/pkg/window"
)

// Column is one renderable column of the widget.
type Column struct {
	Key   string
	Title string
	Width int
}

// HighlightRegion marks a full-row span the widget styles specially.
type HighlightRegion struct {
	Row int
	// Style is "draft" for unsaved rows and "error" for failed ones.
	Style string
}

// Options configures a Grid.
type Options struct {
	TableKey  string
	MetaCache *schema.Cache
	Drafts    *rows.DraftStore
	Window    window.Window
	Mutator   source.RowMutator
	Feedback  source.Feedback
	Resolver  CellResolver

	// RelationDisplayCount caps bubble labels; 0 means the default.
	RelationDisplayCount int
}

// Grid owns one table's worth of grid state and exposes the callback
// contract of the virtualized widget. All state it holds is scoped to the
// table key; mounting another table means constructing another Grid.
type Grid struct {
	tableKey    string
	metaCache   *schema.Cache
	drafts      *rows.DraftStore
	win         window.Window
	adapter     *Adapter
	editor      *edit.CellEditor
	submitter   *edit.Submitter
	view        *ViewState
	unsubscribe func()
}

// New wires a grid instance for one table.
func New(opts Options) (*Grid, error) {
	if opts.TableKey == "" {
		return nil, errors.New("grid: table key is required")
	}
	if opts.MetaCache == nil || opts.Drafts == nil || opts.Window == nil || opts.Mutator == nil {
		return nil, errors.New("grid: meta cache, draft store, window, and mutator are required")
	}

	g := &Grid{
		tableKey:  opts.TableKey,
		metaCache: opts.MetaCache,
		drafts:    opts.Drafts,
		win:       opts.Window,
		view:      NewViewState(opts.TableKey),
	}
	metaFn := func() (*schema.TableMeta, bool) {
		return opts.MetaCache.Lookup(opts.TableKey)
	}
	g.adapter = NewAdapter(opts.TableKey, opts.MetaCache, opts.Drafts, opts.Window, opts.Resolver, opts.RelationDisplayCount)
	g.editor = edit.NewCellEditor(opts.TableKey, metaFn, opts.Drafts, opts.Window, opts.Mutator)
	g.submitter = edit.NewSubmitter(opts.TableKey, metaFn, opts.Drafts, opts.Mutator, opts.Feedback)

	// Drafts must resynchronize before anything else reads them whenever
	// the table's metadata signature changes underneath the grid.
	g.unsubscribe = opts.MetaCache.Subscribe(func(tableKey string) {
		if tableKey != opts.TableKey {
			return
		}
		if meta, ok := opts.MetaCache.Lookup(tableKey); ok {
			opts.Drafts.SyncWithMeta(tableKey, meta)
		}
	})

	return g, nil
}

// Columns derives the widget's column list from cached metadata and view
// state widths.
func (g *Grid) Columns() []Column {
	meta, ok := g.metaCache.Lookup(g.tableKey)
	if !ok {
		return nil
	}
	cols := make([]Column, 0, len(meta.ColumnOrder))
	for _, key := range meta.ColumnOrder {
		width := g.view.ColumnWidths[key]
		if width == 0 {
			width = 150
		}
		cols = append(cols, Column{Key: key, Title: key, Width: width})
	}
	return cols
}

// RowCount is the combined sequence length.
func (g *Grid) RowCount() int {
	return g.adapter.RowCount()
}

// RowAt resolves a combined-sequence index to its tagged row.
func (g *Grid) RowAt(index int) (rows.Row, window.RowState) {
	return g.adapter.RowAt(index)
}

// CellAt is the widget's getCellContent callback.
func (g *Grid) CellAt(col, row int) Cell {
	return g.adapter.CellAt(col, row)
}

// OnRowAppended creates a new draft row and returns its client id.
func (g *Grid) OnRowAppended() (string, error) {
	meta, ok := g.metaCache.Lookup(g.tableKey)
	if !ok {
		return "", edit.ErrNoMetadata
	}
	draft := g.drafts.CreateDraftRow(g.tableKey, meta)
	return draft.ID, nil
}

// OnCellEdited routes an edit and reconciles the window cache from the
// result: the full echoed row when the server returned one, the single
// field/value pair otherwise. Draft edits need no reconciliation.
func (g *Grid) OnCellEdited(ctx context.Context, coord edit.Coord, newValue any) error {
	result, err := g.editor.EditCell(ctx, coord, newValue)
	if err != nil {
		return err
	}
	if result.Kind != edit.EditServer {
		return nil
	}
	if result.UpdatedRow != nil {
		g.win.PatchRowAt(coord.Row, result.UpdatedRow)
	} else if result.PatchField != "" {
		g.win.PatchRowAt(coord.Row, rows.RowData{result.PatchField: result.PatchValue})
	}
	return nil
}

// OnVisibleRegionChanged forwards scroll updates to the window when the
// strategy fetches on visibility (infinite mode). Paginated windows ignore
// it.
func (g *Grid) OnVisibleRegionChanged(ctx context.Context, region window.Region) error {
	type visibleFetcher interface {
		VisibleRegionChanged(ctx context.Context, r window.Region) error
	}
	if w, ok := g.win.(visibleFetcher); ok {
		return w.VisibleRegionChanged(ctx, region)
	}
	return nil
}

// SubmitDraftRows submits the given drafts and refreshes the window so the
// created rows appear as server rows. A removed draft is the signal that a
// row was created; when every row failed there is nothing new to fetch and
// dropping the cached page would blank the grid until an external reload.
func (g *Grid) SubmitDraftRows(ctx context.Context, draftIDs []string) error {
	before := g.drafts.Count(g.tableKey)
	err := g.submitter.SubmitDraftRows(ctx, draftIDs)
	if g.drafts.Count(g.tableKey) < before {
		g.win.Invalidate()
	}
	return err
}

// SubmitSingleDraftRow submits one draft from the grid UI.
func (g *Grid) SubmitSingleDraftRow(ctx context.Context, draftID string) error {
	err := g.submitter.SubmitSingleDraftRow(ctx, draftID)
	if err == nil {
		g.win.Invalidate()
	}
	return err
}

// Submitter exposes the submission engine for overlay editors that need
// SubmitDraftRowForEditor; the engine is defined first and injected, so no
// forward reference is involved.
func (g *Grid) Submitter() *edit.Submitter {
	return g.submitter
}

// DiscardDraftRow removes a draft without submitting it.
func (g *Grid) DiscardDraftRow(draftID string) {
	g.drafts.RemoveDraftRow(g.tableKey, draftID)
}

// HighlightRegions returns one region per draft row so the widget can tint
// unsaved rows, with a distinct style for failed ones.
func (g *Grid) HighlightRegions() []HighlightRegion {
	serverCount := g.win.ServerRowCount()
	drafts := g.drafts.Drafts(g.tableKey)
	regions := make([]HighlightRegion, 0, len(drafts))
	for i, d := range drafts {
		style := "draft"
		if d.Status == rows.DraftError {
			style = "error"
		}
		regions = append(regions, HighlightRegion{Row: serverCount + i, Style: style})
	}
	return regions
}

// View returns the grid's mutable view state.
func (g *Grid) View() *ViewState {
	return g.view
}

// Close releases the metadata-cache subscription. A discarded grid must not
// keep resyncing its table's drafts on cache changes.
func (g *Grid) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
}
