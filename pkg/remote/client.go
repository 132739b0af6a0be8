// Package remote implements the engine's collaborator contracts over a
// GraphQL HTTP endpoint.
//
// Every query document the client sends is parsed with gqlparser at
// construction, so a malformed document fails Client creation instead of a
// request at runtime. Responses, including GraphQL error payloads of
// whatever shape the backend produces, are decoded into tagged source.Error
// values before anything crosses into the engine.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
)

// Query documents. Rows travel as an opaque JSON scalar; the backend's
// generated per-table SDK is behind the tableRows/tableMeta surface.
const (
	queryRows = `query Rows($table: String!, $limit: Int!, $offset: Int!) {
  tableRows(table: $table, limit: $limit, offset: $offset) {
    totalCount
    rows
  }
}`

	queryMeta = `query Meta($table: String!) {
  tableMeta(table: $table) {
    tableKey
    columnOrder
    fields
    relations
  }
}`

	mutationCreate = `mutation CreateRow($table: String!, $values: JSON!) {
  createRow(table: $table, values: $values) {
    row
  }
}`

	mutationUpdate = `mutation UpdateRow($table: String!, $id: ID!, $patch: JSON!) {
  updateRow(table: $table, id: $id, patch: $patch) {
    row
  }
}`

	mutationDelete = `mutation DeleteRow($table: String!, $id: ID!) {
  deleteRow(table: $table, id: $id)
}`
)

// Client talks to a GraphQL row/metadata backend. It implements
// source.RowFetcher, source.RowMutator, and schema.MetadataService.
type Client struct {
	endpoint string
	http     *http.Client
	headers  map[string]string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a header to every request (authorization, tenant id).
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// NewClient validates all query documents and builds a client.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("remote: endpoint is required")
	}
	for name, doc := range map[string]string{
		"Rows":      queryRows,
		"Meta":      queryMeta,
		"CreateRow": mutationCreate,
		"UpdateRow": mutationUpdate,
		"DeleteRow": mutationDelete,
	} {
		if _, err := parser.ParseQuery(&ast.Source{Name: name, Input: doc}); err != nil {
			return nil, errors.WithMessagef(err, "remote: invalid query document %s", name)
		}
	}

	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// gqlRequest is the standard GraphQL HTTP POST body.
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// gqlError is the wire shape of one GraphQL error. Extensions are decoded
// leniently; only code and column are consumed.
type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code   string `json:"code"`
		Column string `json:"column"`
	} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do posts a document and decodes data into out. GraphQL errors become a
// tagged source.Error of the given kind.
func (c *Client) do(ctx context.Context, kind source.ErrorKind, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.WithMessage(err, "remote: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithMessage(err, "remote: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &source.Error{Kind: kind, Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &source.Error{Kind: kind, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return &source.Error{Kind: kind, Code: resp.Status, Message: string(payload)}
	}

	var decoded gqlResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return &source.Error{Kind: kind, Message: "malformed response: " + err.Error()}
	}
	if len(decoded.Errors) > 0 {
		first := decoded.Errors[0]
		return &source.Error{
			Kind:    kind,
			Code:    first.Extensions.Code,
			Column:  first.Extensions.Column,
			Message: first.Message,
		}
	}
	if out != nil {
		if err := json.Unmarshal(decoded.Data, out); err != nil {
			return &source.Error{Kind: kind, Message: "malformed data: " + err.Error()}
		}
	}
	return nil
}

// FetchPage implements source.RowFetcher.
func (c *Client) FetchPage(ctx context.Context, tableKey string, limit, offset int) ([]rows.RowData, int, error) {
	var out struct {
		TableRows struct {
			TotalCount int            `json:"totalCount"`
			Rows       []rows.RowData `json:"rows"`
		} `json:"tableRows"`
	}
	err := c.do(ctx, source.ErrFetch, queryRows, map[string]any{
		"table": tableKey, "limit": limit, "offset": offset,
	}, &out)
	if err != nil {
		return nil, 0, err
	}
	return out.TableRows.Rows, out.TableRows.TotalCount, nil
}

// FetchChunk implements source.RowFetcher.
func (c *Client) FetchChunk(ctx context.Context, tableKey string, start, end int) ([]rows.RowData, error) {
	fetched, _, err := c.FetchPage(ctx, tableKey, end-start, start)
	return fetched, err
}

// Create implements source.RowMutator.
func (c *Client) Create(ctx context.Context, tableKey string, values rows.RowData) (rows.RowData, error) {
	var out struct {
		CreateRow struct {
			Row rows.RowData `json:"row"`
		} `json:"createRow"`
	}
	err := c.do(ctx, source.ErrMutation, mutationCreate, map[string]any{
		"table": tableKey, "values": values,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.CreateRow.Row, nil
}

// Update implements source.RowMutator. A backend that does not echo the
// updated row yields nil, and the caller patches the edited field locally.
func (c *Client) Update(ctx context.Context, tableKey, rowID string, patch rows.RowData) (rows.RowData, error) {
	var out struct {
		UpdateRow struct {
			Row rows.RowData `json:"row"`
		} `json:"updateRow"`
	}
	err := c.do(ctx, source.ErrMutation, mutationUpdate, map[string]any{
		"table": tableKey, "id": rowID, "patch": patch,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.UpdateRow.Row, nil
}

// Delete implements source.RowMutator.
func (c *Client) Delete(ctx context.Context, tableKey, rowID string) error {
	return c.do(ctx, source.ErrMutation, mutationDelete, map[string]any{
		"table": tableKey, "id": rowID,
	}, nil)
}

// metaPayload is the wire shape of table metadata.
type metaPayload struct {
	TableMeta struct {
		TableKey    string                  `json:"tableKey"`
		ColumnOrder []string                `json:"columnOrder"`
		Fields      map[string]fieldPayload `json:"fields"`
		Relations   map[string]relPayload   `json:"relations"`
	} `json:"tableMeta"`
}

type fieldPayload struct {
	Type          string `json:"type"`
	Nullable      bool   `json:"nullable"`
	ServerManaged bool   `json:"serverManaged"`
}

type relPayload struct {
	Kind          string   `json:"kind"`
	TargetTable   string   `json:"targetTable"`
	ForeignKeys   []string `json:"foreignKeys"`
	DisplayFields []string `json:"displayFields"`
}

// TableMeta implements schema.MetadataService.
func (c *Client) TableMeta(ctx context.Context, tableKey string) (*schema.TableMeta, error) {
	var out metaPayload
	err := c.do(ctx, source.ErrFetch, queryMeta, map[string]any{"table": tableKey}, &out)
	if err != nil {
		return nil, err
	}

	meta := &schema.TableMeta{
		TableKey:    out.TableMeta.TableKey,
		ColumnOrder: out.TableMeta.ColumnOrder,
		Fields:      make(map[string]schema.Field, len(out.TableMeta.Fields)),
		Relations:   make(map[string]schema.Relation, len(out.TableMeta.Relations)),
	}
	for key, f := range out.TableMeta.Fields {
		meta.Fields[key] = schema.Field{
			Key:           key,
			Type:          schema.FieldType(f.Type),
			Nullable:      f.Nullable,
			ServerManaged: f.ServerManaged,
		}
	}
	for key, r := range out.TableMeta.Relations {
		meta.Relations[key] = schema.Relation{
			Field:         key,
			Kind:          schema.RelationKind(r.Kind),
			TargetTable:   r.TargetTable,
			ForeignKeys:   r.ForeignKeys,
			DisplayFields: r.DisplayFields,
		}
	}
	return meta, nil
}

var (
	_ source.RowFetcher      = (*Client)(nil)
	_ source.RowMutator      = (*Client)(nil)
	_ schema.MetadataService = (*Client)(nil)
)
