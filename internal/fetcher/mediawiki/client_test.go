package mediawiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL + "/w/api.php", UserAgent: "wikiharvest-test", Timeout: 5 * time.Second, MaxRetries: 2}, nil, zap.NewNop())
	require.NoError(t, err)
	c.retry = statusAwarePolicy{fastRetry{crawler.NewExponentialRetryPolicy(3)}}
	return c
}

type fastRetry struct {
	*crawler.ExponentialRetryPolicy
}

func (fastRetry) Backoff(int) time.Duration { return time.Millisecond }

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Endpoint: "w/api.php"}, nil, nil)
	var cfgErr *crawler.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "wiki.api_endpoint", cfgErr.Key)
}

func TestFetch(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wikiharvest-test", r.UserAgent())
		q := r.URL.Query()
		assert.Equal(t, "parse", q.Get("action"))
		assert.Equal(t, "2", q.Get("formatversion"))
		switch q.Get("page") {
		case "Kitty":
			writeJSON(t, w, map[string]any{"parse": map[string]any{
				"title": "Cat", "pageid": 6678, "revid": 99,
				"redirects": []map[string]string{{"from": "Kitty", "to": "Cat"}},
				"wikitext":  "The '''cat''' [[Felidae]]", "text": "<p>cat</p>",
			}})
		default:
			writeJSON(t, w, map[string]any{"error": map[string]string{"code": "missingtitle", "info": "The page you specified doesn't exist."}})
		}
	})

	t.Run("FollowsRedirect", func(t *testing.T) {
		t.Parallel()
		a, err := c.Fetch(context.Background(), "Kitty")
		require.NoError(t, err)
		assert.Equal(t, crawler.Title("Cat"), a.Title)
		assert.Equal(t, crawler.PageID(6678), a.PageID)
		assert.Equal(t, int64(99), a.RevisionID)
		assert.Equal(t, "The '''cat''' [[Felidae]]", a.Text)
		assert.Equal(t, "<p>cat</p>", a.HTML)
		require.NotNil(t, a.Redirect)
		assert.Equal(t, crawler.Title("Kitty"), a.RequestedTitle())
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		_, err := c.Fetch(context.Background(), "Nope")
		assert.ErrorIs(t, err, crawler.ErrNotFound)
	})
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]any{"parse": map[string]any{"title": "Cat", "pageid": 1, "wikitext": "x"}})
	})

	a, err := c.Fetch(context.Background(), "Cat")
	require.NoError(t, err)
	assert.Equal(t, crawler.PageID(1), a.PageID)
	assert.Nil(t, a.Redirect)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, map[string]any{"error": map[string]string{"code": "missingtitle"}})
	})

	_, err := c.Fetch(context.Background(), "Nope")
	require.ErrorIs(t, err, crawler.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Fetch(context.Background(), "Cat")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchManyMergesContinuations(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "Cat|Dog|EBay|Kitty|Nope", q.Get("titles"))
		if q.Get("rvcontinue") == "" {
			writeJSON(t, w, map[string]any{
				"continue": map[string]any{"rvcontinue": "20|200", "continue": "||"},
				"query": map[string]any{
					"normalized": []map[string]string{{"from": "EBay", "to": "EBay"}},
					"redirects":  []map[string]string{{"from": "Kitty", "to": "Cat"}},
					"pages": []map[string]any{
						{"pageid": 10, "title": "Cat", "lastrevid": 100, "revisions": []map[string]any{
							{"revid": 100, "slots": map[string]any{"main": map[string]any{"content": "cat text"}}},
						}},
						{"pageid": 20, "title": "Dog", "lastrevid": 200},
						{"pageid": 30, "title": "EBay", "lastrevid": 300, "revisions": []map[string]any{
							{"revid": 300, "slots": map[string]any{"main": map[string]any{"content": "ebay text"}}},
						}},
						{"title": "Nope", "missing": true},
					},
				},
			})
			return
		}
		assert.Equal(t, "20|200", q.Get("rvcontinue"))
		writeJSON(t, w, map[string]any{
			"query": map[string]any{
				"pages": []map[string]any{
					{"pageid": 10, "title": "Cat", "lastrevid": 100},
					{"pageid": 20, "title": "Dog", "lastrevid": 200, "revisions": []map[string]any{
						{"revid": 200, "slots": map[string]any{"main": map[string]any{"content": "dog text"}}},
					}},
					{"title": "Nope", "missing": true},
				},
			},
		})
	})

	articles, err := c.FetchMany(context.Background(), []crawler.Title{"Cat", "Dog", "EBay", "Kitty", "Nope"})
	require.NoError(t, err)
	require.Len(t, articles, 4)

	byRequested := map[crawler.Title]crawler.Article{}
	for _, a := range articles {
		byRequested[a.RequestedTitle()] = a
	}
	assert.Equal(t, "cat text", byRequested["Cat"].Text)
	assert.Equal(t, "dog text", byRequested["Dog"].Text)
	assert.Equal(t, int64(200), byRequested["Dog"].RevisionID)
	assert.Equal(t, "ebay text", byRequested["EBay"].Text)
	kitty := byRequested["Kitty"]
	assert.Equal(t, crawler.Title("Cat"), kitty.Title)
	assert.Equal(t, crawler.PageID(10), kitty.PageID)
	assert.True(t, kitty.IsServerRedirect())
	assert.NotContains(t, byRequested, crawler.Title("Nope"))
}

func TestResolveAlias(t *testing.T) {
	t.Parallel()

	aliases := map[string]string{"a": "b", "b": "c", "x": "y", "y": "x"}
	assert.Equal(t, "c", resolveAlias(aliases, "a"))
	assert.Equal(t, "z", resolveAlias(aliases, "z"))
	assert.Equal(t, "x", resolveAlias(aliases, "x"))
}
