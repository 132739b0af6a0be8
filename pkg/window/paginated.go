package window

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/source"
)

// Paginated fetches one fixed-size page at a time. Changing the page index
// triggers a new fetch; the previous page's rows are replaced wholesale.
type Paginated struct {
	mu       sync.RWMutex
	fetcher  source.RowFetcher
	tableKey string
	pageSize int

	pageIndex int
	rows      []rows.RowData
	total     int
	loaded    bool
	lastErr   error
}

// NewPaginated creates a paginated window. pageSize must be positive.
func NewPaginated(fetcher source.RowFetcher, tableKey string, pageSize int) *Paginated {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Paginated{
		fetcher:  fetcher,
		tableKey: tableKey,
		pageSize: pageSize,
	}
}

// Load fetches the current page.
func (p *Paginated) Load(ctx context.Context) error {
	p.mu.RLock()
	pageIndex := p.pageIndex
	p.mu.RUnlock()

	fetched, total, err := p.fetcher.FetchPage(ctx, p.tableKey, p.pageSize, pageIndex*p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastErr = errors.WithMessagef(err, "window: load page %d of %q", pageIndex, p.tableKey)
		return p.lastErr
	}
	// A stale response for a superseded page index is discarded; the fetch
	// keyed to the newer index replaces it.
	if pageIndex != p.pageIndex {
		return nil
	}
	p.rows = fetched
	p.total = total
	p.loaded = true
	p.lastErr = nil
	return nil
}

// SetPageIndex moves to another page and fetches it.
func (p *Paginated) SetPageIndex(ctx context.Context, index int) error {
	if index < 0 {
		index = 0
	}
	p.mu.Lock()
	p.pageIndex = index
	p.mu.Unlock()
	return p.Load(ctx)
}

// PageIndex returns the current page index.
func (p *Paginated) PageIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pageIndex
}

// PageCount computes ceil(total/pageSize), never less than 1.
func (p *Paginated) PageCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	count := (p.total + p.pageSize - 1) / p.pageSize
	if count < 1 {
		count = 1
	}
	return count
}

// RowAt returns the row at a page-local index.
func (p *Paginated) RowAt(index int) (rows.RowData, RowState) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.rows) {
		return nil, RowMissing
	}
	return p.rows[index].Clone(), RowLoaded
}

// ServerRowCount is the fetched page length.
func (p *Paginated) ServerRowCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rows)
}

// TotalCount is the table total reported by the last fetch.
func (p *Paginated) TotalCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}

// HasCompletedInitialLoad reports whether any page fetch has finished.
func (p *Paginated) HasCompletedInitialLoad() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// PatchRowAt merges patch into the cached row after a confirmed mutation.
func (p *Paginated) PatchRowAt(index int, patch rows.RowData) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.rows) {
		return false
	}
	for k, v := range patch {
		p.rows[index][k] = v
	}
	return true
}

// Invalidate drops the cached page. The next Load refetches it.
func (p *Paginated) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = nil
	p.loaded = false
}

// Err returns the last fetch error.
func (p *Paginated) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

var _ Window = (*Paginated)(nil)
