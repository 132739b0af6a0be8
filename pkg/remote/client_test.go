package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
)

// fakeBackend answers GraphQL POSTs with canned payloads keyed by the
// operation appearing in the query text.
func fakeBackend(t *testing.T, handler func(query string, variables map[string]any) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body, status := handler(req.Query, req.Variables)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestNewClient_ValidatesDocuments(t *testing.T) {
	c, err := NewClient("http://localhost:8080/graphql")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient("")
	assert.Error(t, err)
}

func TestClient_FetchPage(t *testing.T) {
	srv := fakeBackend(t, func(query string, variables map[string]any) (string, int) {
		assert.Contains(t, query, "tableRows")
		assert.Equal(t, "articles", variables["table"])
		assert.Equal(t, float64(50), variables["limit"])
		return `{"data":{"tableRows":{"totalCount":2,"rows":[
			{"id":"a","title":"first"},
			{"id":"b","title":"second"}
		]}}}`, http.StatusOK
	})
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	fetched, total, err := c.FetchPage(context.Background(), "articles", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, fetched, 2)
	assert.Equal(t, "first", fetched[0]["title"])
}

func TestClient_GraphQLErrorBecomesTaggedError(t *testing.T) {
	srv := fakeBackend(t, func(string, map[string]any) (string, int) {
		return `{"errors":[{"message":"value too long","extensions":{"code":"CHECK_VIOLATION","column":"title"}}]}`, http.StatusOK
	})
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Update(context.Background(), "articles", "a", rows.RowData{"title": "x"})
	require.Error(t, err)

	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.ErrMutation, srcErr.Kind)
	assert.Equal(t, "CHECK_VIOLATION", srcErr.Code)
	assert.Equal(t, "title", srcErr.Column)
	assert.Equal(t, "value too long", srcErr.Message)
}

func TestClient_UpdateWithoutEchoYieldsNil(t *testing.T) {
	srv := fakeBackend(t, func(string, map[string]any) (string, int) {
		return `{"data":{"updateRow":{"row":null}}}`, http.StatusOK
	})
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	row, err := c.Update(context.Background(), "articles", "a", rows.RowData{"title": "x"})
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestClient_HTTPErrorBecomesFetchError(t *testing.T) {
	srv := fakeBackend(t, func(string, map[string]any) (string, int) {
		return `upstream exploded`, http.StatusBadGateway
	})
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, _, err = c.FetchPage(context.Background(), "articles", 10, 0)
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.ErrFetch, srcErr.Kind)
}

func TestClient_TableMeta(t *testing.T) {
	srv := fakeBackend(t, func(query string, variables map[string]any) (string, int) {
		assert.Contains(t, query, "tableMeta")
		return `{"data":{"tableMeta":{
			"tableKey":"articles",
			"columnOrder":["id","title","author"],
			"fields":{
				"id":{"type":"uuid","serverManaged":true},
				"title":{"type":"text"},
				"author":{"type":"relation","nullable":true}
			},
			"relations":{
				"author":{"kind":"belongsTo","targetTable":"users","foreignKeys":["author_id"],"displayFields":["name"]}
			}
		}}}`, http.StatusOK
	})
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	meta, err := c.TableMeta(context.Background(), "articles")
	require.NoError(t, err)
	assert.Equal(t, "articles", meta.TableKey)
	assert.Equal(t, []string{"id", "title", "author"}, meta.ColumnOrder)
	assert.True(t, meta.Fields["id"].ServerManaged)
	rel, ok := meta.Relation("author")
	require.True(t, ok)
	assert.Equal(t, schema.BelongsTo, rel.Kind)
	assert.Equal(t, []string{"name"}, rel.DisplayFields)
}

func TestClient_HeadersApplied(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{"deleteRow":true}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHeader("Authorization", "Bearer tok"))
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), "articles", "a"))
	assert.Equal(t, "Bearer tok", gotAuth)
}
