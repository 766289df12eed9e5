package search

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/captionist/captionist/internal/unsplash"
)

type Handler struct {
	searcher Searcher
	perPage  int
	// credErr is reported instead of searching when the client could not be built.
	credErr error
}

// NewHandler serves GET /api/search. A nil searcher answers every request
// with credErr.
func NewHandler(s Searcher, perPage int, credErr error) *Handler {
	if perPage < 1 {
		perPage = unsplash.DefaultPerPage
	}
	return &Handler{searcher: s, perPage: perPage, credErr: credErr}
}

type photoResponse struct {
	unsplash.Photo
	EditorPath string `json:"editorPath"`
}

type searchResponse struct {
	Query      string          `json:"query"`
	Page       int             `json:"page"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
	Photos     []photoResponse `json:"photos"`
	Notice     string          `json:"notice,omitempty"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": h.credErr.Error()})
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil {
		perPage = h.perPage
	}

	result, err := h.searcher.Search(r.Context(), q.Get("query"), page, perPage)
	if err != nil {
		handleSearchError(w, err)
		return
	}

	resp := searchResponse{
		Query:      result.Query,
		Page:       result.Page,
		Total:      result.Total,
		TotalPages: result.TotalPages,
		Photos:     make([]photoResponse, 0, len(result.Photos)),
	}
	for _, p := range result.Photos {
		resp.Photos = append(resp.Photos, photoResponse{Photo: p, EditorPath: EditorPath(p.FullURL)})
	}
	if result.Empty() {
		resp.Notice = NoResultsMessage
	}

	writeJSON(w, http.StatusOK, resp)
}

func handleSearchError(w http.ResponseWriter, err error) {
	var netErr *unsplash.NetworkError
	switch {
	case errors.Is(err, unsplash.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Enter a search term!"})
	case errors.As(err, &netErr):
		slog.Warn("search failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to fetch images"})
	default:
		slog.Error("search error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
