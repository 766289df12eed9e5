package unsplash

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "total": 2,
  "total_pages": 1,
  "results": [
    {"id": "a1", "width": 800, "height": 600, "alt_description": "a red fox",
     "urls": {"small": "https://img.test/a1-small", "full": "https://img.test/a1-full"},
     "links": {"html": "https://unsplash.test/a1"}, "user": {"name": "Ann"}},
    {"id": "b2", "description": "mountains",
     "urls": {"small": "https://img.test/b2-small", "full": "https://img.test/b2-full"}}
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "key-123")
	require.NoError(t, err)
	return c, &calls
}

func TestSearchSendsKeyedRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/photos", r.URL.Path)
		assert.Equal(t, "cats", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Client-ID key-123", r.Header.Get("Authorization"))
		assert.Equal(t, "v1", r.Header.Get("Accept-Version"))
		w.Write([]byte(sampleResponse))
	})

	page, err := c.Search(context.Background(), "  cats ", 2, 5)
	require.NoError(t, err)

	require.Len(t, page.Photos, 2)
	assert.False(t, page.Empty())
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, Photo{
		ID:           "a1",
		ThumbnailURL: "https://img.test/a1-small",
		FullURL:      "https://img.test/a1-full",
		AltText:      "a red fox",
		Width:        800,
		Height:       600,
		Author:       "Ann",
		HTMLURL:      "https://unsplash.test/a1",
	}, page.Photos[0])
	assert.Equal(t, "mountains", page.Photos[1].AltText)
}

func TestSearchBlankQueryNeverDispatches(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleResponse))
	})

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := c.Search(context.Background(), q, 1, 10)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0,"total_pages":0,"results":[]}`))
	})

	page, err := c.Search(context.Background(), "zzzz", 1, 10)
	require.NoError(t, err)
	assert.True(t, page.Empty())
}

func TestSearchClampsPaging(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("per_page"))
		w.Write([]byte(sampleResponse))
	})

	page, err := c.Search(context.Background(), "dogs", 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 30, page.PerPage)
}

func TestSearchStatusErrorIsNetworkError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":["OAuth error: The access token is invalid"]}`))
	})

	_, err := c.Search(context.Background(), "cats", 1, 10)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
	assert.Contains(t, err.Error(), "access token is invalid")
}

func TestSearchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, "key")
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "cats", 1, 10)
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Zero(t, netErr.StatusCode)
}

func TestSearchUndecodableBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := c.Search(context.Background(), "cats", 1, 10)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "decode", netErr.Op)
}

func TestNewRequiresCredential(t *testing.T) {
	_, err := New("", "  ")
	assert.ErrorIs(t, err, ErrMissingCredential)

	c, err := New("", "k")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
