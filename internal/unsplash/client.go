// Package unsplash is a minimal client for the photo search endpoint.
//
// A Search call issues exactly one request. There is no retry, caching or
// rate-limit handling.
package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.unsplash.com"
	DefaultPerPage = 10
	MaxPerPage     = 30

	maxResponseSize = 4 << 20 // 4MB
)

var (
	ErrEmptyQuery        = errors.New("search query is empty")
	ErrMissingCredential = errors.New("missing API credential")
)

// NetworkError wraps any failure to obtain a usable response: transport
// errors, non-2xx statuses and undecodable bodies.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unsplash %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("unsplash %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Photo is the metadata the search view needs for one result.
type Photo struct {
	ID           string `json:"id"`
	ThumbnailURL string `json:"thumbnailUrl"`
	FullURL      string `json:"fullUrl"`
	AltText      string `json:"altText"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Author       string `json:"author,omitempty"`
	HTMLURL      string `json:"htmlUrl,omitempty"`
}

// Page is one page of search results in API order.
type Page struct {
	Query      string  `json:"query"`
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
	Photos     []Photo `json:"photos"`
}

// Empty reports the zero-results state. It is a notice, not an error.
func (p *Page) Empty() bool { return p == nil || len(p.Photos) == 0 }

type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client. An empty baseURL selects DefaultBaseURL; an empty
// access key is rejected with ErrMissingCredential.
func New(baseURL, accessKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(accessKey) == "" {
		return nil, ErrMissingCredential
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: strings.TrimSpace(accessKey),
		http:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// wire format of GET /search/photos
type searchResponse struct {
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	Results    []photoRecord `json:"results"`
}

type photoRecord struct {
	ID             string `json:"id"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Small string `json:"small"`
		Full  string `json:"full"`
	} `json:"urls"`
	Links struct {
		HTML string `json:"html"`
	} `json:"links"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

func (r photoRecord) toPhoto() Photo {
	alt := r.AltDescription
	if alt == "" {
		alt = r.Description
	}
	return Photo{
		ID:           r.ID,
		ThumbnailURL: r.URLs.Small,
		FullURL:      r.URLs.Full,
		AltText:      alt,
		Width:        r.Width,
		Height:       r.Height,
		Author:       r.User.Name,
		HTMLURL:      r.Links.HTML,
	}
}

// Search queries one page of photos. A blank query returns ErrEmptyQuery
// without dispatching a request.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &NetworkError{
			Op:         "search",
			StatusCode: resp.StatusCode,
			Err:        errors.New(apiErrorMessage(body, resp.Status)),
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&sr); err != nil {
		return nil, &NetworkError{Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}

	out := &Page{
		Query:      query,
		Page:       page,
		PerPage:    perPage,
		Total:      sr.Total,
		TotalPages: sr.TotalPages,
		Photos:     make([]Photo, 0, len(sr.Results)),
	}
	for _, r := range sr.Results {
		out.Photos = append(out.Photos, r.toPhoto())
	}
	return out, nil
}

// apiErrorMessage extracts {"errors": [...]} from an error body.
func apiErrorMessage(body []byte, status string) string {
	var e struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &e); err == nil && len(e.Errors) > 0 {
		return strings.Join(e.Errors, "; ")
	}
	return status
}
