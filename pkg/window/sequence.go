package window

import "github.com/gridloom/gridloom/pkg/rows"

// Sequence is the combined row sequence: server rows by window index followed
// by drafts in creation order, addressed by one integer index space. It is
// the indexed accessor the cell editor and the rendering adapter share, and
// returns tagged rows so callers switch on Kind instead of repeating the
// index arithmetic.
type Sequence struct {
	win      Window
	drafts   *rows.DraftStore
	tableKey string
}

// NewSequence joins a window and a draft store into one combined sequence.
func NewSequence(win Window, drafts *rows.DraftStore, tableKey string) *Sequence {
	return &Sequence{win: win, drafts: drafts, tableKey: tableKey}
}

// Len is the combined sequence length: server rows plus drafts.
func (s *Sequence) Len() int {
	return s.win.ServerRowCount() + s.drafts.Count(s.tableKey)
}

// RowAt resolves a combined index to its tagged row. Indices below the
// server row count resolve against the window and carry its load state;
// indices at or above it resolve against the drafts, which are always
// loaded. Out-of-range indices report RowMissing.
func (s *Sequence) RowAt(index int) (rows.Row, RowState) {
	serverCount := s.win.ServerRowCount()
	if index >= serverCount {
		drafts := s.drafts.Drafts(s.tableKey)
		draftIndex := index - serverCount
		if draftIndex < 0 || draftIndex >= len(drafts) {
			return rows.Row{}, RowMissing
		}
		return drafts[draftIndex].Row(), RowLoaded
	}
	data, state := s.win.RowAt(index)
	return rows.ServerRow(data), state
}
