package window

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/source"
)

// Infinite fetches rows in server-ordered chunks as the viewport scrolls.
// RowAt never triggers a fetch; VisibleRegionChanged is the only fetch
// entry point and clamps every requested region to the known total before
// forwarding it to the chunk controller.
type Infinite struct {
	mu        sync.RWMutex
	fetcher   source.RowFetcher
	tableKey  string
	chunkSize int

	total   int
	chunks  map[int][]rows.RowData
	loaded  bool
	lastErr error
}

// NewInfinite creates an infinite-scroll window. chunkSize must be positive.
func NewInfinite(fetcher source.RowFetcher, tableKey string, chunkSize int) *Infinite {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &Infinite{
		fetcher:   fetcher,
		tableKey:  tableKey,
		chunkSize: chunkSize,
		chunks:    make(map[int][]rows.RowData),
	}
}

// Init fetches the first chunk and learns the table's total row count.
func (w *Infinite) Init(ctx context.Context) error {
	fetched, total, err := w.fetcher.FetchPage(ctx, w.tableKey, w.chunkSize, 0)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.lastErr = errors.WithMessagef(err, "window: initial load of %q", w.tableKey)
		return w.lastErr
	}
	w.total = total
	w.chunks[0] = fetched
	w.loaded = true
	w.lastErr = nil
	return nil
}

// VisibleRegionChanged fetches the chunks covering the visible rows. The
// region is clamped to [0, ServerRowCount) first, so scrolling past the end
// never requests rows beyond the known total. Already-fetched chunks are
// skipped.
func (w *Infinite) VisibleRegionChanged(ctx context.Context, r Region) error {
	w.mu.RLock()
	total := w.total
	w.mu.RUnlock()

	r = clampRegion(r, total)
	if r.Height == 0 {
		return nil
	}

	firstChunk := r.Y / w.chunkSize
	lastChunk := (r.Y + r.Height - 1) / w.chunkSize

	for chunk := firstChunk; chunk <= lastChunk; chunk++ {
		w.mu.RLock()
		_, have := w.chunks[chunk]
		w.mu.RUnlock()
		if have {
			continue
		}

		start := chunk * w.chunkSize
		end := start + w.chunkSize
		if end > total {
			end = total
		}

		fetched, err := w.fetcher.FetchChunk(ctx, w.tableKey, start, end)
		if err != nil {
			w.mu.Lock()
			w.lastErr = errors.WithMessagef(err, "window: fetch rows [%d,%d) of %q", start, end, w.tableKey)
			w.mu.Unlock()
			return w.lastErr
		}

		w.mu.Lock()
		w.chunks[chunk] = fetched
		w.lastErr = nil
		w.mu.Unlock()
	}
	return nil
}

// RowAt returns the row if its chunk is fetched, a loading sentinel if the
// index is within the total but not yet retrieved, or missing if out of
// range.
func (w *Infinite) RowAt(index int) (rows.RowData, RowState) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if index < 0 || index >= w.total {
		return nil, RowMissing
	}
	chunk, offset := index/w.chunkSize, index%w.chunkSize
	fetched, ok := w.chunks[chunk]
	if !ok || offset >= len(fetched) {
		return nil, RowLoading
	}
	return fetched[offset].Clone(), RowLoaded
}

// ServerRowCount is the known table total.
func (w *Infinite) ServerRowCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.total
}

// TotalCount is the known table total.
func (w *Infinite) TotalCount() int {
	return w.ServerRowCount()
}

// HasCompletedInitialLoad reports whether Init finished.
func (w *Infinite) HasCompletedInitialLoad() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

// PatchRowAt merges patch into the cached row in place, without a refetch.
func (w *Infinite) PatchRowAt(index int, patch rows.RowData) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index < 0 || index >= w.total {
		return false
	}
	chunk, offset := index/w.chunkSize, index%w.chunkSize
	fetched, ok := w.chunks[chunk]
	if !ok || offset >= len(fetched) {
		return false
	}
	for k, v := range patch {
		fetched[offset][k] = v
	}
	return true
}

// Invalidate drops every fetched chunk. The known total is kept so the grid
// keeps its row count while chunks refetch on the next visible-region pass.
func (w *Infinite) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks = make(map[int][]rows.RowData)
}

// NoteRowDeleted adjusts the window after a confirmed server-side delete at
// the given index: the total shrinks by one and every chunk at or after the
// index is dropped, since their rows shifted. Chunks before the index stay
// valid.
func (w *Infinite) NoteRowDeleted(index int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index < 0 || index >= w.total {
		return
	}
	w.total--
	deletedChunk := index / w.chunkSize
	for chunk := range w.chunks {
		if chunk >= deletedChunk {
			delete(w.chunks, chunk)
		}
	}
}

// Err returns the last fetch error.
func (w *Infinite) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

var _ Window = (*Infinite)(nil)
