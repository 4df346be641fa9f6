package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lurnetreau/newsapi/internal/database"
	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/server/query"
	"lurnetreau/newsapi/internal/storage"
)

type stubRunner struct {
	count int
	err   error
}

func (s *stubRunner) Run(ctx context.Context) (int, error) {
	return s.count, s.err
}

// newTestMux builds the handler over a real in-memory database, routed
// the same way the server routes it.
func newTestMux(t *testing.T, runner IngestRunner) (*http.ServeMux, *storage.Repository) {
	t.Helper()

	cfg := database.NewConfig(":memory:")
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	db, err := database.NewDB(cfg)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := storage.NewRepository(db)
	h := NewHandler(query.NewService(repo), repo, runner)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/articles", h.ListArticles)
	mux.HandleFunc("GET /api/v1/articles/category/{category}", h.ListCategoryArticles)
	mux.HandleFunc("GET /api/v1/articles/category/{category}/{slug}", h.GetArticle)
	mux.HandleFunc("GET /api/v1/search", h.SearchArticles)
	mux.HandleFunc("POST /api/v1/subscribe", h.Subscribe)
	mux.HandleFunc("POST /api/v1/generate-and-save", h.GenerateAndSave)
	return mux, repo
}

func seedArticle(t *testing.T, repo *storage.Repository, category, title, slug string) models.Article {
	t.Helper()
	a := models.Article{Title: title, Content: "body of " + title, Category: category, Slug: slug}
	if err := repo.InsertArticle(context.Background(), &a); err != nil {
		t.Fatalf("seeding %q: %v", slug, err)
	}
	time.Sleep(2 * time.Millisecond)
	return a
}

func doRequest(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestListArticles(t *testing.T) {
	mux, repo := newTestMux(t, &stubRunner{})
	seedArticle(t, repo, "Tech", "Older", "older")
	seedArticle(t, repo, "Sports", "Newer", "newer")

	rec := doRequest(mux, http.MethodGet, "/api/v1/articles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var articles []models.Article
	if err := json.Unmarshal(rec.Body.Bytes(), &articles); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles; want 2", len(articles))
	}
	if articles[0].Slug != "newer" {
		t.Errorf("feed[0] = %s; want the newest article first", articles[0].Slug)
	}
}

func TestListArticlesBadPagination(t *testing.T) {
	mux, _ := newTestMux(t, &stubRunner{})

	rec := doRequest(mux, http.MethodGet, "/api/v1/articles?page=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", rec.Code)
	}
}

func TestListCategoryArticles(t *testing.T) {
	mux, repo := newTestMux(t, &stubRunner{})
	seedArticle(t, repo, "World News", "Summit Opens", "summit-opens")

	// The category segment accepts both the display name and the
	// collection form.
	for _, path := range []string{
		"/api/v1/articles/category/World%20News",
		"/api/v1/articles/category/world_news",
	} {
		rec := doRequest(mux, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d; want 200", path, rec.Code)
		}
		var articles []models.Article
		if err := json.Unmarshal(rec.Body.Bytes(), &articles); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if len(articles) != 1 || articles[0].Slug != "summit-opens" {
			t.Errorf("GET %s returned %v", path, articles)
		}
	}
}

func TestListCategoryArticlesUnknown(t *testing.T) {
	mux, _ := newTestMux(t, &stubRunner{})

	rec := doRequest(mux, http.MethodGet, "/api/v1/articles/category/gardening", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
	var msg struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if msg.Status != "error" || msg.Message != "Category not found." {
		t.Errorf("body = %+v", msg)
	}
}

func TestGetArticle(t *testing.T) {
	mux, repo := newTestMux(t, &stubRunner{})
	seedArticle(t, repo, "Tech", "Main Story", "main-story")
	seedArticle(t, repo, "Tech", "Side Story", "side-story")

	rec := doRequest(mux, http.MethodGet, "/api/v1/articles/category/tech/main-story", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var payload struct {
		Article *models.Article  `json:"article"`
		Related []models.Article `json:"related"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if payload.Article == nil || payload.Article.Slug != "main-story" {
		t.Fatalf("article = %v", payload.Article)
	}
	if len(payload.Related) != 1 || payload.Related[0].Slug != "side-story" {
		t.Errorf("related = %v; want just side-story", payload.Related)
	}
}

func TestGetArticleNotFound(t *testing.T) {
	mux, _ := newTestMux(t, &stubRunner{})

	for _, path := range []string{
		"/api/v1/articles/category/tech/never-written",
		"/api/v1/articles/category/gardening/anything",
	} {
		rec := doRequest(mux, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d; want 404", path, rec.Code)
		}
	}
}

func TestSearchArticles(t *testing.T) {
	mux, repo := newTestMux(t, &stubRunner{})
	seedArticle(t, repo, "Business", "Merger Announced", "merger-announced")

	rec := doRequest(mux, http.MethodGet, "/api/v1/search?q=merger", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var results []storage.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "merger-announced" {
		t.Errorf("results = %v", results)
	}
}

func TestSearchArticlesMissingQuery(t *testing.T) {
	mux, _ := newTestMux(t, &stubRunner{})

	for _, target := range []string{"/api/v1/search", "/api/v1/search?q=%20%20"} {
		rec := doRequest(mux, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d; want 400", target, rec.Code)
		}
	}
}

func TestSubscribe(t *testing.T) {
	mux, _ := newTestMux(t, &stubRunner{})

	rec := doRequest(mux, http.MethodPost, "/api/v1/subscribe", `{"email": "reader@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first subscribe status = %d; want 201", rec.Code)
	}
	var msg struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if msg.Status != "success" {
		t.Errorf("status = %q; want success", msg.Status)
	}

	rec = doRequest(mux, http.MethodPost, "/api/v1/subscribe", `{"email": "reader@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat subscribe status = %d; want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if msg.Status != "exists" {
		t.Errorf("status = %q; want exists", msg.Status)
	}
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	mux, _ := newTestMux(t, &stubRunner{})

	for _, body := range []string{``, `{}`, `{"email": "  "}`, `not json`} {
		rec := doRequest(mux, http.MethodPost, "/api/v1/subscribe", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("subscribe with body %q status = %d; want 400", body, rec.Code)
		}
	}
}

func TestGenerateAndSave(t *testing.T) {
	tests := []struct {
		name    string
		runner  *stubRunner
		message string
		count   int
	}{
		{"articles saved", &stubRunner{count: 4}, "Generated and saved 4 articles.", 4},
		{"nothing new", &stubRunner{count: 0}, "No new articles to process.", 0},
		{"interrupted pass", &stubRunner{count: 2, err: errors.New("canceled")}, "Generated and saved 2 articles.", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newTestMux(t, tt.runner)

			rec := doRequest(mux, http.MethodPost, "/api/v1/generate-and-save", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d; want 200", rec.Code)
			}
			var msg struct {
				Status  string `json:"status"`
				Message string `json:"message"`
				Count   *int   `json:"count"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if msg.Message != tt.message {
				t.Errorf("message = %q; want %q", msg.Message, tt.message)
			}
			if msg.Count == nil || *msg.Count != tt.count {
				t.Errorf("count = %v; want %d", msg.Count, tt.count)
			}
		})
	}
}
