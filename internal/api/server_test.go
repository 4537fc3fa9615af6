package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/frontier"
)

type fakeLoader struct {
	snap frontier.Snapshot
	err  error
}

func (f fakeLoader) Load(context.Context) (frontier.Snapshot, error) {
	return f.snap, f.err
}

func testSnapshot() frontier.Snapshot {
	snap := frontier.NewSnapshot()
	snap.Crawled["Cat"] = 6678
	snap.Crawled["Ghost"] = crawler.NoPageID
	snap.Pending.Add("Dog", "Ant", "Bee")
	snap.NextPending.Add("Wolf")
	snap.Discarded.Add("Talk:Cat")
	snap.Redirected.Add("Kitty")
	snap.PageIDs = []crawler.PageID{6678}
	snap.Level = 2
	return snap
}

func newTestServer(loader SnapshotLoader, cfg Config) *Server {
	return NewServer(loader, cfg, zap.NewNop())
}

func serve(t *testing.T, s *Server, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{snap: testSnapshot()}, Config{})
	rec := serve(t, s, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(t, s, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	broken := newTestServer(fakeLoader{err: errors.New("permission denied")}, Config{})
	rec = serve(t, broken, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{snap: testSnapshot()}, Config{})
	serve(t, s, "/healthz", nil)
	rec := serve(t, s, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestGetFrontier(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{snap: testSnapshot()}, Config{})
	rec := serve(t, s, "/v1/frontier", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got frontierDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, frontierDTO{
		Level: 2, Crawled: 2, Pending: 3, NextPending: 1, Discarded: 1, Redirected: 1, PageIDs: 1,
	}, got)
}

func TestGetFrontierLoadError(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{err: errors.New("corrupt level file")}, Config{})
	rec := serve(t, s, "/v1/frontier", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(t, newTestServer(nil, Config{}), "/v1/frontier", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListSet(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{snap: testSnapshot()}, Config{})

	tests := []struct {
		name   string
		target string
		code   int
		titles []crawler.Title
		total  int
	}{
		{"Pending", "/v1/frontier/pending", http.StatusOK, []crawler.Title{"Ant", "Bee", "Dog"}, 3},
		{"Paged", "/v1/frontier/pending?limit=1&offset=1", http.StatusOK, []crawler.Title{"Bee"}, 3},
		{"PastEnd", "/v1/frontier/pending?offset=10", http.StatusOK, []crawler.Title{}, 3},
		{"Crawled", "/v1/frontier/crawled", http.StatusOK, []crawler.Title{"Cat", "Ghost"}, 2},
		{"Unknown", "/v1/frontier/held", http.StatusNotFound, nil, 0},
		{"BadLimit", "/v1/frontier/pending?limit=0", http.StatusBadRequest, nil, 0},
		{"BadOffset", "/v1/frontier/pending?offset=-1", http.StatusBadRequest, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, s, tt.target, nil)
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			var body struct {
				Total  int             `json:"total"`
				Titles []crawler.Title `json:"titles"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.total, body.Total)
			assert.Equal(t, tt.titles, body.Titles)
		})
	}
}

func TestGetTitle(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{snap: testSnapshot()}, Config{})

	rec := serve(t, s, "/v1/titles/cat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got titleDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, crawler.Title("Cat"), got.Title)
	assert.Equal(t, SetCrawled, got.Set)
	require.NotNil(t, got.PageID)
	assert.Equal(t, crawler.PageID(6678), *got.PageID)

	rec = serve(t, s, "/v1/titles/Talk:Cat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"set":"discarded"`)

	rec = serve(t, s, "/v1/titles/Nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(fakeLoader{snap: testSnapshot()}, Config{APIKey: "secret"})

	assert.Equal(t, http.StatusForbidden, serve(t, s, "/v1/frontier", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, s, "/v1/frontier", http.Header{"X-Api-Key": {"secret"}}).Code)
	assert.Equal(t, http.StatusOK, serve(t, s, "/v1/frontier?api_key=secret", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, s, "/healthz", nil).Code, "health checks stay open")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, Config{})
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
