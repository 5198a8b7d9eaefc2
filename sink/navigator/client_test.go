package navigator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"metasync/internal/catalog"
	"metasync/sink"

	"github.com/stretchr/testify/require"
)

func testConfig(srv *httptest.Server) Config {
	c := Config{Host: "ignored", Username: "admin", Password: "secret", NavigatorURL: srv.URL + "/api/v8"}
	c.ApplyDefaults()
	return c
}

func TestClient_Write(t *testing.T) {
	var got []catalog.Entity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v8/entities", r.URL.Path)
		require.Equal(t, "false", r.URL.Query().Get("autocommit"))
		u, p, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "admin", u)
		require.Equal(t, "secret", p)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := catalog.Entity{ExternalID: "abc", Name: "dataset:ns.d", TagsToAdd: []string{"t"}}
	require.NoError(t, NewClient(testConfig(srv), srv.Client()).Write(context.Background(), e))
	require.Len(t, got, 1)
	require.Equal(t, "abc", got[0].ExternalID)
	require.Equal(t, []string{"t"}, got[0].TagsToAdd)
}

func TestClient_WritePartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errors":[{"field":"newTags","message":"too long"}]}`)
	}))
	defer srv.Close()

	err := NewClient(testConfig(srv), srv.Client()).Write(context.Background(), catalog.Entity{ExternalID: "abc"})
	var we *sink.WriteError
	require.True(t, errors.As(err, &we))
	require.True(t, we.Partial())
	require.Equal(t, []sink.FieldError{{Field: "newTags", Message: "too long"}}, we.Fields)
}

func TestClient_WriteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(testConfig(srv), srv.Client()).Write(context.Background(), catalog.Entity{ExternalID: "abc"})
	var we *sink.WriteError
	require.True(t, errors.As(err, &we))
	require.False(t, we.Partial())
	require.Equal(t, "abc", we.EntityID)
	require.Contains(t, err.Error(), "status 500")
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v8/entities/paging", r.URL.Path)
		require.Equal(t, "name:foo", r.URL.Query().Get("query"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		require.Equal(t, "c1", r.URL.Query().Get("cursorMark"))
		_, _ = io.WriteString(w, `{"cursorMark":"c2","results":[{"name":"foo"}]}`)
	}))
	defer srv.Close()

	page, err := NewClient(testConfig(srv), srv.Client()).Search(context.Background(),
		Query{Query: "name:foo", Limit: 5, CursorMark: "c1"})
	require.NoError(t, err)
	require.JSONEq(t, `{"cursorMark":"c2","results":[{"name":"foo"}]}`, string(page))
}

type stubSearcher struct {
	got  Query
	page string
	err  error
}

func (s *stubSearcher) Search(_ context.Context, q Query) (json.RawMessage, error) {
	s.got = q
	return json.RawMessage(s.page), s.err
}

func TestSearchHandler(t *testing.T) {
	s := &stubSearcher{page: `{"results":[]}`}
	mux := http.NewServeMux()
	mux.Handle("/v1/search/{query}", SearchHandler(s))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/search/tags:pii?cursorMark=x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Query{Query: "tags:pii", Limit: 10, CursorMark: "x"}, s.got)
	require.JSONEq(t, `{"results":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/search/q?limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search/q", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s.err = errors.New("catalog down")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/search/q", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "catalog down"))
}

func TestDriver_PublishThrottledAndRegistered(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := sink.NewAdapter("navigator")
	require.NoError(t, err)
	cfg := testConfig(srv)
	cfg.MaxWritesPerSec = 100
	require.NoError(t, a.Configure(cfg))
	defer a.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Publish(context.Background(), catalog.Entity{ExternalID: "x"}))
	}
	require.Equal(t, 3, n)

	require.Error(t, a.Configure(Config{}))
}
