// Package source defines the collaborator contracts the grid engine depends
// on: row fetching, row mutations, and operation feedback.
//
// The engine never talks to a transport directly. Implementations decode
// whatever the wire gives them (GraphQL payloads, embedded storage results)
// into these types before anything enters the core, so ad hoc error shapes
// stay at the boundary.
package source

import (
	"context"
	"fmt"

	"github.com/gridloom/gridloom/pkg/rows"
)

// RowFetcher supplies server rows for a data window.
type RowFetcher interface {
	// FetchPage returns one page of rows plus the table's total row count.
	FetchPage(ctx context.Context, tableKey string, limit, offset int) ([]rows.RowData, int, error)

	// FetchChunk returns the rows in [start, end). Callers clamp the range
	// to the known total before calling.
	FetchChunk(ctx context.Context, tableKey string, start, end int) ([]rows.RowData, error)
}

// RowMutator applies row mutations. Update returns the server's echo of the
// full updated row when the backend provides one, or nil when it does not;
// callers then fall back to patching the single edited field locally.
type RowMutator interface {
	Create(ctx context.Context, tableKey string, values rows.RowData) (rows.RowData, error)
	Update(ctx context.Context, tableKey, rowID string, patch rows.RowData) (rows.RowData, error)
	Delete(ctx context.Context, tableKey, rowID string) error
}

// OpStatus is the aggregate outcome of a batch operation.
type OpStatus string

const (
	OpSucceeded OpStatus = "succeeded"
	OpPartial   OpStatus = "partial"
	OpFailed    OpStatus = "failed"
)

// Feedback receives advisory progress for user-visible indicators. It must
// never gate correctness; the engine calls it and moves on.
type Feedback interface {
	// OnStart announces an operation and returns its id.
	OnStart(kind string, total int) string
	// OnProgress reports completed/failed counts so far.
	OnProgress(opID string, completed, failed int)
	// OnComplete reports the final status and a human-readable message.
	OnComplete(opID string, status OpStatus, message string)
}

// NopFeedback discards all progress reports.
type NopFeedback struct{}

func (NopFeedback) OnStart(string, int) string { return "" }

func (NopFeedback) OnProgress(string, int, int) {}

func (NopFeedback) OnComplete(string, OpStatus, string) {}

// ErrorKind classifies engine-visible failures.
type ErrorKind string

const (
	// ErrValidation is a client-side constraint failure; no network call
	// was made. The user corrects the value and resubmits.
	ErrValidation ErrorKind = "validation"
	// ErrMutation is a server-rejected create/update/delete.
	ErrMutation ErrorKind = "mutation"
	// ErrFetch is a failed window/page/metadata query.
	ErrFetch ErrorKind = "fetch"
)

// Error is the tagged error type crossing the collaborator boundary.
type Error struct {
	Kind ErrorKind
	// Code is a machine-readable code when the backend supplies one.
	Code string
	// Column names the offending column for cell-level failures, or "" for
	// row/query-level ones.
	Column  string
	Message string
}

func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s error on column %q: %s", e.Kind, e.Column, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// NewValidationError builds a column-scoped validation error.
func NewValidationError(column, message string) *Error {
	return &Error{Kind: ErrValidation, Column: column, Message: message}
}

// NewMutationError builds a server-rejection error.
func NewMutationError(code, message string) *Error {
	return &Error{Kind: ErrMutation, Code: code, Message: message}
}

// NewFetchError builds a query-failure error.
func NewFetchError(code, message string) *Error {
	return &Error{Kind: ErrFetch, Code: code, Message: message}
}
