package search

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/captionist/captionist/internal/unsplash"
)

var (
	ErrEmptyQuery    = unsplash.ErrEmptyQuery
	ErrUnknownPhoto  = errors.New("photo is not in the current results")
	NoResultsMessage = "No images found. Try another search term."
)

// Searcher is satisfied by *unsplash.Client.
type Searcher interface {
	Search(ctx context.Context, query string, page, perPage int) (*unsplash.Page, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusResults Status = "results"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Snapshot is what the search view renders.
type Snapshot struct {
	Status Status           `json:"status"`
	Query  string           `json:"query"`
	Photos []unsplash.Photo `json:"photos"`
	Notice string           `json:"notice,omitempty"`
	Err    error            `json:"-"`
	Error  string           `json:"error,omitempty"`

	// Stale is set on the snapshot returned to a superseded Submit. Its
	// response was discarded and the visible state was left untouched.
	Stale bool `json:"stale,omitempty"`
}

// View holds the visible state of the search screen. Only the response to
// the most recent Submit may update it.
type View struct {
	searcher Searcher
	perPage  int

	mu      sync.Mutex
	seq     uint64
	current Snapshot
}

func NewView(s Searcher, perPage int) *View {
	if perPage < 1 {
		perPage = unsplash.DefaultPerPage
	}
	return &View{
		searcher: s,
		perPage:  perPage,
		current:  Snapshot{Status: StatusIdle},
	}
}

// Submit runs a search and returns the resulting snapshot. A blank query
// reports ErrEmptyQuery without calling the searcher.
func (v *View) Submit(ctx context.Context, query string) Snapshot {
	query = strings.TrimSpace(query)

	v.mu.Lock()
	v.seq++
	seq := v.seq
	if query == "" {
		v.current = Snapshot{Status: StatusError, Err: ErrEmptyQuery, Error: "Enter a search term!"}
		snap := v.current
		v.mu.Unlock()
		return snap
	}
	v.current = Snapshot{Status: StatusLoading, Query: query, Photos: v.current.Photos}
	v.mu.Unlock()

	page, err := v.searcher.Search(ctx, query, 1, v.perPage)

	v.mu.Lock()
	defer v.mu.Unlock()

	next := Snapshot{Query: query}
	switch {
	case err != nil:
		next.Status = StatusError
		next.Err = err
		next.Error = "Failed to fetch images"
	case page.Empty():
		next.Status = StatusEmpty
		next.Photos = []unsplash.Photo{}
		next.Notice = NoResultsMessage
	default:
		next.Status = StatusResults
		next.Photos = page.Photos
	}

	if seq != v.seq {
		next.Stale = true
		return next
	}
	v.current = next
	return next
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Select returns the editor navigation path for a photo in the visible results.
func (v *View) Select(photoID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.current.Photos {
		if p.ID == photoID {
			return EditorPath(p.FullURL), nil
		}
	}
	return "", ErrUnknownPhoto
}

// EditorPath builds the navigation target handing fullURL to the editor view.
func EditorPath(fullURL string) string {
	return "/editor?image=" + url.QueryEscape(fullURL)
}
