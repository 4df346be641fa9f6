// Package api holds the HTTP handlers. They are thin: parse the request,
// call the query service or pipeline, map errors to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/server/pagination"
	"lurnetreau/newsapi/internal/server/query"
	"lurnetreau/newsapi/internal/storage"
)

// SubscriberStore captures new newsletter subscribers.
type SubscriberStore interface {
	InsertSubscriberIfAbsent(ctx context.Context, email string) (bool, error)
}

// IngestRunner triggers one ingestion pass.
type IngestRunner interface {
	Run(ctx context.Context) (int, error)
}

// Handler holds dependencies for the API handlers.
type Handler struct {
	svc    *query.Service
	subs   SubscriberStore
	ingest IngestRunner
}

// NewHandler creates a new handler instance.
func NewHandler(svc *query.Service, subs SubscriberStore, ingest IngestRunner) *Handler {
	return &Handler{svc: svc, subs: subs, ingest: ingest}
}

// statusMessage is the envelope used for non-payload responses.
type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

// articleResponse wraps a single article lookup with its related picks.
type articleResponse struct {
	Article *models.Article  `json:"article"`
	Related []models.Article `json:"related"`
}

// ListArticles handles GET /api/v1/articles: the paginated global feed.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	params, err := pagination.FromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	articles, err := h.svc.GlobalFeed(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("Global feed query failed")
		writeError(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, articles)
}

// ListCategoryArticles handles GET /api/v1/articles/category/{category}.
func (h *Handler) ListCategoryArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	category := r.PathValue("category")

	params, err := pagination.FromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	articles, err := h.svc.CategoryFeed(r.Context(), category, params)
	if err != nil {
		if errors.Is(err, storage.ErrUnknownCategory) {
			writeError(w, http.StatusNotFound, "Category not found.")
			return
		}
		log.Error().Err(err).Str("category", category).Msg("Category feed query failed")
		writeError(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, articles)
}

// GetArticle handles GET /api/v1/articles/category/{category}/{slug}.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	category := r.PathValue("category")
	slug := r.PathValue("slug")

	article, related, err := h.svc.ArticleWithRelated(r.Context(), category, slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrUnknownCategory) {
			writeError(w, http.StatusNotFound, "Article not found.")
			return
		}
		log.Error().Err(err).Str("category", category).Str("slug", slug).Msg("Article lookup failed")
		writeError(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, articleResponse{Article: article, Related: related})
}

// SearchArticles handles GET /api/v1/search?q=...
func (h *Handler) SearchArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Search query 'q' is required.")
		return
	}

	results, err := h.svc.Search(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("Search failed")
		writeError(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// Subscribe handles POST /api/v1/subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Email is required.")
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required.")
		return
	}

	created, err := h.subs.InsertSubscriberIfAbsent(r.Context(), email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save subscriber")
		writeError(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	if created {
		writeJSON(w, http.StatusCreated, statusMessage{Status: "success", Message: "Successfully subscribed!"})
		return
	}
	writeJSON(w, http.StatusOK, statusMessage{Status: "exists", Message: "This email is already subscribed."})
}

// GenerateAndSave handles POST /api/v1/generate-and-save: it runs one
// ingestion pass synchronously and reports how many articles were
// persisted. Per-item failures are already absorbed by the pipeline, so
// the pass itself always reports success.
func (h *Handler) GenerateAndSave(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	count, err := h.ingest.Run(r.Context())
	if err != nil {
		log.Warn().Err(err).Int("count", count).Msg("Ingestion pass interrupted")
	}

	msg := fmt.Sprintf("Generated and saved %d articles.", count)
	if count == 0 {
		msg = "No new articles to process."
	}
	writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: msg, Count: &count})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonBytes)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusMessage{Status: "error", Message: message})
}
