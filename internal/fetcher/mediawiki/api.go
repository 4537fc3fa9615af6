package mediawiki

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// APIError is an error object returned in an API response body.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Is maps missing and invalid titles to crawler.ErrNotFound.
func (e *APIError) Is(target error) bool {
	if target != crawler.ErrNotFound {
		return false
	}
	switch e.Code {
	case "missingtitle", "invalidtitle", "nosuchpageid":
		return true
	}
	return false
}

// Transient reports whether retrying the same request may succeed.
func (e *APIError) Transient() bool {
	switch e.Code {
	case "maxlag", "ratelimited", "readonly":
		return true
	}
	return strings.HasPrefix(e.Code, "internal_api_error")
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

func decodeAPIError(body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	if env.Error != nil {
		return env.Error
	}
	return nil
}

type redirect struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// parseResponse is the action=parse payload with formatversion=2.
type parseResponse struct {
	Parse struct {
		Title     string     `json:"title"`
		PageID    int64      `json:"pageid"`
		RevID     int64      `json:"revid"`
		Redirects []redirect `json:"redirects"`
		Text      string     `json:"text"`
		Wikitext  string     `json:"wikitext"`
	} `json:"parse"`
}

// queryResponse is the action=query payload with formatversion=2.
type queryResponse struct {
	Continue map[string]any `json:"continue"`
	Query    struct {
		Normalized []redirect  `json:"normalized"`
		Redirects  []redirect  `json:"redirects"`
		Pages      []queryPage `json:"pages"`
	} `json:"query"`
}

type queryPage struct {
	PageID    int64           `json:"pageid"`
	Title     string          `json:"title"`
	Missing   bool            `json:"missing"`
	Invalid   bool            `json:"invalid"`
	LastRevID int64           `json:"lastrevid"`
	Revisions []queryRevision `json:"revisions"`
}

type queryRevision struct {
	RevID int64 `json:"revid"`
	Slots struct {
		Main struct {
			Content string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}
