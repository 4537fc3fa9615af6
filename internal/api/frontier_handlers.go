package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/frontier"
)

const (
	defaultTitleLimit = 100
	maxTitleLimit     = 5000
	loadTimeout       = 5 * time.Second
)

// Frontier set names accepted by ListSet.
const (
	SetCrawled     = "crawled"
	SetPending     = "pending"
	SetNextPending = "next_pending"
	SetDiscarded   = "discarded"
	SetRedirected  = "redirected"
)

// FrontierHandler exposes read-only frontier endpoints.
type FrontierHandler struct {
	loader  SnapshotLoader
	timeout time.Duration
	logger  *zap.Logger
}

// NewFrontierHandler wires the loader and logger.
func NewFrontierHandler(loader SnapshotLoader, logger *zap.Logger) *FrontierHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrontierHandler{loader: loader, timeout: loadTimeout, logger: logger}
}

var errNoLoader = errors.New("frontier loader unavailable")

func (h *FrontierHandler) load(ctx context.Context) (frontier.Snapshot, error) {
	if h.loader == nil {
		return frontier.Snapshot{}, errNoLoader
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.loader.Load(ctx)
}

// loadOrFail writes the error response and returns false when the snapshot
// cannot be read.
func (h *FrontierHandler) loadOrFail(w http.ResponseWriter, r *http.Request) (frontier.Snapshot, bool) {
	snap, err := h.load(r.Context())
	if errors.Is(err, errNoLoader) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return snap, false
	}
	if err != nil {
		h.logger.Error("load frontier failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load frontier")
		return snap, false
	}
	return snap, true
}

type frontierDTO struct {
	Level       int `json:"level"`
	Crawled     int `json:"crawled"`
	Pending     int `json:"pending"`
	NextPending int `json:"next_pending"`
	Discarded   int `json:"discarded"`
	Redirected  int `json:"redirected"`
	PageIDs     int `json:"page_ids"`
}

// GetFrontier handles GET /v1/frontier.
func (h *FrontierHandler) GetFrontier(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadOrFail(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, frontierDTO{
		Level:       snap.Level,
		Crawled:     len(snap.Crawled),
		Pending:     snap.Pending.Len(),
		NextPending: snap.NextPending.Len(),
		Discarded:   snap.Discarded.Len(),
		Redirected:  snap.Redirected.Len(),
		PageIDs:     len(snap.PageIDs),
	})
}

func setOf(snap frontier.Snapshot, name string) (crawler.TitleSet, bool) {
	switch name {
	case SetCrawled:
		set := crawler.NewTitleSet()
		for t := range snap.Crawled {
			set.Add(t)
		}
		return set, true
	case SetPending:
		return snap.Pending, true
	case SetNextPending:
		return snap.NextPending, true
	case SetDiscarded:
		return snap.Discarded, true
	case SetRedirected:
		return snap.Redirected, true
	}
	return nil, false
}

// ListSet handles GET /v1/frontier/{set}?limit=&offset=. It returns
// {"set": name, "total": n, "titles": [...]} with titles sorted, 404 for an
// unknown set or 400 for bad paging parameters.
func (h *FrontierHandler) ListSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "set")
	limit, offset, err := parseLimitOffset(r, defaultTitleLimit, maxTitleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := h.loadOrFail(w, r)
	if !ok {
		return
	}
	set, ok := setOf(snap, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown set")
		return
	}
	titles := set.Sorted()
	total := len(titles)
	start := min(offset, total)
	end := min(start+limit, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"set":    name,
		"total":  total,
		"titles": titles[start:end],
	})
}

type titleDTO struct {
	Title  crawler.Title   `json:"title"`
	Set    string          `json:"set"`
	PageID *crawler.PageID `json:"page_id,omitempty"`
}

// GetTitle handles GET /v1/titles/{title}. The title is normalized before
// lookup; 404 means it is in no set.
func (h *FrontierHandler) GetTitle(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "title"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid title")
		return
	}
	title := crawler.NormalizeTitle(raw)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	snap, ok := h.loadOrFail(w, r)
	if !ok {
		return
	}
	if id, found := snap.Crawled[title]; found {
		writeJSON(w, http.StatusOK, titleDTO{Title: title, Set: SetCrawled, PageID: &id})
		return
	}
	for _, name := range []string{SetPending, SetNextPending, SetDiscarded, SetRedirected} {
		set, _ := setOf(snap, name)
		if set.Has(title) {
			writeJSON(w, http.StatusOK, titleDTO{Title: title, Set: name})
			return
		}
	}
	writeError(w, http.StatusNotFound, "title not found")
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
