package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/storage"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *search.Service
	provider storage.Provider
}

// NewHandler creates a new Handler.
func NewHandler(svc *search.Service, provider storage.Provider) *Handler {
	return &Handler{svc: svc, provider: provider}
}

// docPath extracts the document path from the URL (everything after
// /api/documents/). Supports encoded slashes from OpenAPI clients
// (e.g. topics%2Fnote.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Search handles POST /api/search.
//
//	@Summary		Execute a compound search query
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Query operations"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Operations) == 0 {
		writeError(w, http.StatusBadRequest, "at least one operation is required")
		return
	}

	results, err := h.svc.Query(req.Operations)
	if err != nil {
		slog.Error("search failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, search.Paginate(results, req.Page, req.Limit))
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents with pagination
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, total, err := h.svc.ListDocuments(limit, offset)
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a single indexed document by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	detail, err := h.svc.GetDocument(path)
	if err != nil {
		slog.Error("get document failed", slog.String("path", path), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	resp := DocumentResponse{
		Document:   detail.Document,
		Properties: detail.Properties,
	}
	if storage.IsText(path) {
		if data, err := h.provider.Read(path); err == nil {
			resp.Content = string(data)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reindex handles POST /api/reindex.
//
//	@Summary		Rebuild the whole index from the vault
//	@Tags			index
//	@Produce		json
//	@Success		202	{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/reindex [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reindex(r.Context()); err != nil {
		slog.Error("reindex failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reindexed"})
}

// Stats handles GET /api/stats.
//
//	@Summary		Index statistics
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats()
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
