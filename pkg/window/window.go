// Package window presents server rows as a uniform "row at integer index"
// view, backed by either offset pagination or chunked infinite scroll.
//
// Both strategies satisfy Window. The grid picks one at construction time
// via a mode flag; strategies are not switched at runtime for a mounted
// table. Mutations are not part of this package: create/update/delete go
// through source.RowMutator directly, whichever strategy supplies display
// rows. Sequence joins a Window with a draft store into the combined row
// sequence addressed by one integer index space.
//
// Fetch failures surface through Err and the load state; the window never
// retries on its own. Retry/backoff policy belongs to the transport layer.
package window

import "github.com/gridloom/gridloom/pkg/rows"

// RowState reports what RowAt found at an index.
type RowState int

const (
	// RowLoaded means the row is available.
	RowLoaded RowState = iota
	// RowLoading means the index is inside the known total but its chunk
	// has not been fetched yet. The grid renders a loading placeholder.
	RowLoading
	// RowMissing means the index is outside the known server row range.
	RowMissing
)

// Window is the uniform contract the grid consumes.
type Window interface {
	// RowAt returns the row at a window index, without triggering a fetch.
	RowAt(index int) (rows.RowData, RowState)

	// ServerRowCount is the number of addressable server rows: the known
	// total in infinite mode, the fetched page length in paginated mode.
	ServerRowCount() int

	// TotalCount is the table's total row count as last reported.
	TotalCount() int

	// HasCompletedInitialLoad reports whether the first fetch finished.
	HasCompletedInitialLoad() bool

	// PatchRowAt merges patch into the cached row in place, without a
	// refetch. Returns false when the index holds no loaded row.
	PatchRowAt(index int, patch rows.RowData) bool

	// Invalidate drops cached rows so the next load refetches.
	Invalidate()

	// Err returns the last fetch error, or nil.
	Err() error
}

// Region is a visible row range: rows [Y, Y+Height).
type Region struct {
	Y      int
	Height int
}

// clampRegion limits r to [0, limit) row indices.
func clampRegion(r Region, limit int) Region {
	if r.Y < 0 {
		r.Height += r.Y
		r.Y = 0
	}
	if r.Y+r.Height > limit {
		r.Height = limit - r.Y
	}
	if r.Height < 0 {
		r.Height = 0
	}
	return r
}
