// Package query implements the read path: global feed, category listings,
// single-article lookup with related picks, and ranked search.
package query

import (
	"context"
	"sort"

	"lurnetreau/newsapi/internal/categories"
	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/server/pagination"
	"lurnetreau/newsapi/internal/storage"
)

const (
	// recentPerCategory bounds the global feed candidate pool: the feed is
	// built from the top N most recent articles of each category, then
	// sorted and paginated in memory. An article ranked below N within its
	// own category never reaches the global feed.
	recentPerCategory = 3

	// relatedCount is how many related articles accompany a single lookup.
	relatedCount = 3
)

// ArticleReader is the slice of the storage layer the read path needs.
type ArticleReader interface {
	QueryRecent(ctx context.Context, category string, limit int) ([]models.Article, error)
	QueryPage(ctx context.Context, category string, page, pageSize int) ([]models.Article, error)
	FindBySlug(ctx context.Context, category, slug string) (*models.Article, error)
	QueryRelated(ctx context.Context, category, excludeID string, count int) ([]models.Article, error)
	TextSearch(ctx context.Context, category, query string) ([]storage.SearchResult, error)
}

// Service answers read requests by scatter-gathering over the per-category
// collections. It is stateless and safe for concurrent use.
type Service struct {
	repo ArticleReader
}

// NewService creates a read query service over a repository.
func NewService(repo ArticleReader) *Service {
	return &Service{repo: repo}
}

// GlobalFeed returns one page of the merged cross-category feed: the most
// recent articles of every category, merged and sorted newest first in
// memory, then paginated. An error from any category fails the request;
// no partial feed is synthesized.
func (s *Service) GlobalFeed(ctx context.Context, p pagination.Params) ([]models.Article, error) {
	merged := make([]models.Article, 0, recentPerCategory*len(categories.All))
	for _, cat := range categories.All {
		articles, err := s.repo.QueryRecent(ctx, cat.Name, recentPerCategory)
		if err != nil {
			return nil, err
		}
		merged = append(merged, articles...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	return pagination.Slice(merged, p), nil
}

// CategoryFeed returns one page of a single category's articles.
func (s *Service) CategoryFeed(ctx context.Context, category string, p pagination.Params) ([]models.Article, error) {
	return s.repo.QueryPage(ctx, category, p.Page, p.Limit)
}

// ArticleWithRelated looks up one article by category and slug and fetches
// up to three related articles from the same category, excluding the found
// article itself.
func (s *Service) ArticleWithRelated(ctx context.Context, category, slug string) (*models.Article, []models.Article, error) {
	article, err := s.repo.FindBySlug(ctx, category, slug)
	if err != nil {
		return nil, nil, err
	}

	related, err := s.repo.QueryRelated(ctx, article.Category, article.ID, relatedCount)
	if err != nil {
		return nil, nil, err
	}
	return article, related, nil
}

// Search runs ranked text search across every category collection and
// merges the results by descending relevance.
func (s *Service) Search(ctx context.Context, q string) ([]storage.SearchResult, error) {
	merged := []storage.SearchResult{}
	for _, cat := range categories.All {
		results, err := s.repo.TextSearch(ctx, cat.Name, q)
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged, nil
}
