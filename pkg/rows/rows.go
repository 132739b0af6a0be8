// Package rows defines row values and the draft-row store.
//
// Two kinds of rows flow through the grid: server rows, fetched and owned by
// a data window, and draft rows, client-only records that have not been
// created on the server yet. A Row is an explicit tagged value rather than a
// record with hidden marker fields, so editing and rendering code can switch
// on Kind exhaustively.
package rows

// RowData is a column-key to value record. Values are the decoded wire
// representation: string, float64, bool, nil, nested maps/slices.
type RowData map[string]any

// Clone returns a shallow-per-column deep copy of the record. Nested maps
// and slices are copied one level deep, which covers relation values.
func (d RowData) Clone() RowData {
	if d == nil {
		return nil
	}
	out := make(RowData, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, inner := range tv {
			m[k] = inner
		}
		return m
	case []any:
		s := make([]any, len(tv))
		copy(s, tv)
		return s
	default:
		return v
	}
}

// RowKind discriminates server rows from draft rows.
type RowKind int

const (
	// KindServer is a committed row owned by the data window.
	KindServer RowKind = iota
	// KindDraft is a client-only row awaiting submission.
	KindDraft
)

// Row is one addressable row of the combined sequence.
type Row struct {
	Kind RowKind
	Data RowData

	// Draft-only attributes. Zero-valued for server rows.
	DraftID     string
	DraftStatus DraftStatus
	DraftErrors map[string]string
}

// ServerRow wraps fetched data as a committed row.
func ServerRow(data RowData) Row {
	return Row{Kind: KindServer, Data: data}
}

// IsDraft reports whether the row is an unsaved draft.
func (r Row) IsDraft() bool {
	return r.Kind == KindDraft
}
