package grid

import (
	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/window"
)

// DefaultRelationDisplayCount caps the related-record labels in one bubble.
const DefaultRelationDisplayCount = 3

// Adapter produces renderable cells for the combined row sequence: server
// rows by window index, then drafts in creation order. It knows nothing
// about the fetch strategy behind the window.
type Adapter struct {
	tableKey             string
	metaCache            *schema.Cache
	seq                  *window.Sequence
	resolver             CellResolver
	relationDisplayCount int
}

// NewAdapter wires a rendering adapter. resolver may be nil.
func NewAdapter(tableKey string, metaCache *schema.Cache, drafts *rows.DraftStore, win window.Window, resolver CellResolver, relationDisplayCount int) *Adapter {
	if relationDisplayCount <= 0 {
		relationDisplayCount = DefaultRelationDisplayCount
	}
	return &Adapter{
		tableKey:             tableKey,
		metaCache:            metaCache,
		seq:                  window.NewSequence(win, drafts, tableKey),
		resolver:             resolver,
		relationDisplayCount: relationDisplayCount,
	}
}

// RowCount is the combined sequence length: server rows plus drafts.
func (a *Adapter) RowCount() int {
	return a.seq.Len()
}

// RowAt resolves a combined-sequence index to its tagged row.
func (a *Adapter) RowAt(rowIndex int) (rows.Row, window.RowState) {
	return a.seq.RowAt(rowIndex)
}

// CellAt returns the renderable cell for a coordinate. Out-of-range
// coordinates yield an empty non-editable text cell.
func (a *Adapter) CellAt(col, rowIndex int) Cell {
	meta, ok := a.metaCache.Lookup(a.tableKey)
	if !ok || col < 0 || col >= len(meta.ColumnOrder) {
		return Cell{Kind: CellText}
	}
	column := meta.ColumnOrder[col]
	field, _ := meta.Field(column)

	row, state := a.seq.RowAt(rowIndex)
	switch state {
	case window.RowLoading:
		return Cell{Kind: CellLoading}
	case window.RowMissing:
		return Cell{Kind: CellText}
	}

	switch row.Kind {
	case rows.KindDraft:
		return a.draftCell(meta, field, column, row)
	default:
		return a.valueCell(meta, field, column, row.Data[column])
	}
}

// draftCell renders a cell of an unsaved row. Server-managed timestamp
// columns cannot be edited before the row exists, so they render disabled.
func (a *Adapter) draftCell(meta *schema.TableMeta, field schema.Field, column string, row rows.Row) Cell {
	if field.ServerManaged {
		cell := scalarCell(field, row.Data[column])
		cell.AllowOverlay = false
		cell.Disabled = true
		return cell
	}
	return a.valueCell(meta, field, column, row.Data[column])
}

// valueCell is the shared mapping for loaded values, draft or server.
func (a *Adapter) valueCell(meta *schema.TableMeta, field schema.Field, column string, value any) Cell {
	if a.resolver != nil {
		if cell, ok := a.resolver.Resolve(field, value); ok {
			return cell
		}
	}
	if field.IsRelation() {
		if rel, ok := meta.Relation(column); ok {
			return a.bubbleCell(rel, value)
		}
		// Relation descriptor not cached yet: degrade to plain text. The
		// next render after the cache populates recomputes this cell.
		return scalarCell(schema.Field{Key: field.Key, Type: schema.FieldText}, value)
	}
	return scalarCell(field, value)
}

// bubbleCell renders up to relationDisplayCount related-record labels. A
// to-many relation with no related records is an empty bubble, not an
// omitted cell.
func (a *Adapter) bubbleCell(rel schema.Relation, value any) Cell {
	labels := []string{}
	for _, record := range relationRecords(value) {
		if len(labels) == a.relationDisplayCount {
			break
		}
		labels = append(labels, relationLabel(rel, record))
	}
	return Cell{
		Kind:         CellBubble,
		Value:        value,
		Bubble:       labels,
		AllowOverlay: true,
	}
}

// relationRecords normalizes a relation value to a record list: to-many
// values are slices, to-one values a single record or id, nil is empty.
func relationRecords(value any) []any {
	switch tv := value.(type) {
	case nil:
		return nil
	case []any:
		return tv
	default:
		return []any{tv}
	}
}

// relationLabel picks the first available display field of a related
// record, falling back to its id, then to a plain rendering.
func relationLabel(rel schema.Relation, record any) string {
	m, ok := record.(map[string]any)
	if !ok {
		return displayString(record)
	}
	for _, field := range rel.DisplayFields {
		if v, ok := m[field]; ok && v != nil {
			return displayString(v)
		}
	}
	if id, ok := m["id"]; ok {
		return displayString(id)
	}
	return displayString(record)
}
