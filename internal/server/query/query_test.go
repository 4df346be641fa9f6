package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/server/pagination"
	"lurnetreau/newsapi/internal/storage"
)

// fakeReader serves canned per-category articles and search results.
type fakeReader struct {
	recent  map[string][]models.Article
	search  map[string][]storage.SearchResult
	related []models.Article
	article *models.Article
	err     error
}

func (f *fakeReader) QueryRecent(ctx context.Context, category string, limit int) ([]models.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	articles := f.recent[category]
	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (f *fakeReader) QueryPage(ctx context.Context, category string, page, pageSize int) ([]models.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recent[category], nil
}

func (f *fakeReader) FindBySlug(ctx context.Context, category, slug string) (*models.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.article == nil || f.article.Slug != slug {
		return nil, storage.ErrNotFound
	}
	return f.article, nil
}

func (f *fakeReader) QueryRelated(ctx context.Context, category, excludeID string, count int) ([]models.Article, error) {
	return f.related, nil
}

func (f *fakeReader) TextSearch(ctx context.Context, category, query string) ([]storage.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.search[category], nil
}

// articleAt builds an article published the given number of minutes ago.
func articleAt(category, slug string, minutesAgo int) models.Article {
	return models.Article{
		ID:          slug,
		Title:       slug,
		Category:    category,
		Slug:        slug,
		PublishedAt: time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func TestGlobalFeedMergesNewestFirst(t *testing.T) {
	reader := &fakeReader{recent: map[string][]models.Article{
		"Tech": {
			articleAt("Tech", "tech-newest", 1),
			articleAt("Tech", "tech-older", 30),
		},
		"Sports": {
			articleAt("Sports", "sports-newest", 5),
		},
	}}
	svc := NewService(reader)

	feed, err := svc.GlobalFeed(context.Background(), pagination.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("GlobalFeed: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("feed has %d articles; want 3", len(feed))
	}

	want := []string{"tech-newest", "sports-newest", "tech-older"}
	for i, slug := range want {
		if feed[i].Slug != slug {
			t.Errorf("feed[%d] = %s; want %s", i, feed[i].Slug, slug)
		}
	}
}

func TestGlobalFeedCapsPerCategory(t *testing.T) {
	// Five fresh Tech articles against one old Sports article. Only the
	// top three per category feed the merge, so tech-4 and tech-5 must
	// never appear even though they are newer than the Sports article.
	tech := make([]models.Article, 0, 5)
	for i := 1; i <= 5; i++ {
		tech = append(tech, articleAt("Tech", fmt.Sprintf("tech-%d", i), i))
	}
	reader := &fakeReader{recent: map[string][]models.Article{
		"Tech":   tech,
		"Sports": {articleAt("Sports", "sports-1", 60)},
	}}
	svc := NewService(reader)

	feed, err := svc.GlobalFeed(context.Background(), pagination.Params{Page: 1, Limit: 50})
	if err != nil {
		t.Fatalf("GlobalFeed: %v", err)
	}
	if len(feed) != 4 {
		t.Fatalf("feed has %d articles; want 4", len(feed))
	}
	for _, a := range feed {
		if a.Slug == "tech-4" || a.Slug == "tech-5" {
			t.Errorf("feed includes %s, which is outside its category's top three", a.Slug)
		}
	}
	if feed[3].Slug != "sports-1" {
		t.Errorf("feed[3] = %s; want sports-1", feed[3].Slug)
	}
}

func TestGlobalFeedPaginates(t *testing.T) {
	reader := &fakeReader{recent: map[string][]models.Article{
		"Tech": {
			articleAt("Tech", "a", 1), articleAt("Tech", "b", 2), articleAt("Tech", "c", 3),
		},
		"Sports": {
			articleAt("Sports", "d", 4), articleAt("Sports", "e", 5),
		},
	}}
	svc := NewService(reader)

	page2, err := svc.GlobalFeed(context.Background(), pagination.Params{Page: 2, Limit: 3})
	if err != nil {
		t.Fatalf("GlobalFeed: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("page 2 has %d articles; want 2", len(page2))
	}
	if page2[0].Slug != "d" || page2[1].Slug != "e" {
		t.Errorf("page 2 = [%s %s]; want [d e]", page2[0].Slug, page2[1].Slug)
	}
}

func TestGlobalFeedPropagatesErrors(t *testing.T) {
	reader := &fakeReader{err: storage.ErrUnavailable}
	svc := NewService(reader)

	_, err := svc.GlobalFeed(context.Background(), pagination.Params{Page: 1, Limit: 10})
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected the storage error to surface, got %v", err)
	}
}

func TestArticleWithRelated(t *testing.T) {
	anchor := articleAt("Tech", "anchor", 1)
	reader := &fakeReader{
		article: &anchor,
		related: []models.Article{
			articleAt("Tech", "r1", 2),
			articleAt("Tech", "r2", 3),
		},
	}
	svc := NewService(reader)

	article, related, err := svc.ArticleWithRelated(context.Background(), "Tech", "anchor")
	if err != nil {
		t.Fatalf("ArticleWithRelated: %v", err)
	}
	if article.Slug != "anchor" {
		t.Errorf("article = %s; want anchor", article.Slug)
	}
	if len(related) != 2 {
		t.Errorf("got %d related articles; want 2", len(related))
	}

	_, _, err = svc.ArticleWithRelated(context.Background(), "Tech", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchMergesByScore(t *testing.T) {
	result := func(slug string, score float64) storage.SearchResult {
		return storage.SearchResult{
			Article: models.Article{Slug: slug},
			Score:   score,
		}
	}
	reader := &fakeReader{search: map[string][]storage.SearchResult{
		"Tech":     {result("tech-hit", 4.2), result("tech-weak", 0.3)},
		"Business": {result("biz-hit", 2.8)},
	}}
	svc := NewService(reader)

	results, err := svc.Search(context.Background(), "markets")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results; want 3", len(results))
	}
	want := []string{"tech-hit", "biz-hit", "tech-weak"}
	for i, slug := range want {
		if results[i].Slug != slug {
			t.Errorf("results[%d] = %s; want %s", i, results[i].Slug, slug)
		}
	}
}

func TestSearchNoMatches(t *testing.T) {
	svc := NewService(&fakeReader{})

	results, err := svc.Search(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results == nil {
		t.Error("empty search should return an empty slice, not nil")
	}
	if len(results) != 0 {
		t.Errorf("got %d results; want 0", len(results))
	}
}
