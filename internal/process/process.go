// Package process runs the article ingestion pipeline: fetch source
// stories, rewrite them, illustrate them, and persist the results.
package process

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"lurnetreau/newsapi/internal/categories"
	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/slug"
	"lurnetreau/newsapi/internal/storage"
)

// FeedSource fetches the newest source story per category, skipping
// categories that fail.
type FeedSource interface {
	FetchLatest(ctx context.Context) []models.RawFeedItem
}

// Rewriter produces an original article from a source story.
type Rewriter interface {
	Rewrite(ctx context.Context, headline, body string) (*models.GeneratedArticle, error)
}

// Illustrator produces an image URL for an article title in a style.
type Illustrator interface {
	Generate(ctx context.Context, title, style string) (string, error)
}

// ArticleStore persists finished articles.
type ArticleStore interface {
	InsertArticle(ctx context.Context, a *models.Article) error
}

// Pipeline orchestrates one ingestion pass. Partial success is the normal
// outcome: a failure on any single item never stops the remaining items.
type Pipeline struct {
	feeds    FeedSource
	rewriter Rewriter
	images   Illustrator
	store    ArticleStore

	persisted atomic.Int64
	skipped   atomic.Int64
}

// NewPipeline wires the pipeline dependencies.
func NewPipeline(feeds FeedSource, rewriter Rewriter, images Illustrator, store ArticleStore) *Pipeline {
	return &Pipeline{
		feeds:    feeds,
		rewriter: rewriter,
		images:   images,
		store:    store,
	}
}

// Stats returns the cumulative persisted and skipped counts across passes.
func (p *Pipeline) Stats() (persisted, skipped int64) {
	return p.persisted.Load(), p.skipped.Load()
}

// Run executes a single ingestion pass and returns the number of articles
// actually persisted. An empty feed yields zero, not an error; the only
// error Run returns is context cancellation.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	items := p.feeds.FetchLatest(ctx)
	if len(items) == 0 {
		log.Info().Msg("No new source stories to process")
		return 0, ctx.Err()
	}
	log.Info().Int("items", len(items)).Msg("Fetched source stories")

	count := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if p.processItem(ctx, item) {
			count++
			p.persisted.Add(1)
		} else {
			p.skipped.Add(1)
		}
	}

	log.Info().Int("persisted", count).Int("skipped", len(items)-count).Msg("Ingestion pass complete")
	return count, nil
}

// processItem takes one source story end to end. It reports whether an
// article was persisted; every failure reason is a skip, never an abort.
func (p *Pipeline) processItem(ctx context.Context, item models.RawFeedItem) bool {
	generated, err := p.rewriter.Rewrite(ctx, item.Headline, item.Body)
	if err != nil {
		log.Warn().Err(err).Str("category", item.Category).Msg("Skipping item, rewrite failed")
		return false
	}

	article := &models.Article{
		Title:    generated.Title,
		Content:  generated.Content,
		Category: item.Category,
		Slug:     slug.MakeWithFallback(generated.Title),
	}

	if url := p.illustrate(ctx, item, generated.Title); url != "" {
		article.ImageURL = &url
	}

	if err := p.store.InsertArticle(ctx, article); err != nil {
		if errors.Is(err, storage.ErrDuplicateSlug) {
			// Expected dedupe outcome, not a fault.
			log.Debug().Str("slug", article.Slug).Str("category", article.Category).Msg("Skipping duplicate article")
		} else {
			log.Warn().Err(err).Str("category", article.Category).Msg("Skipping item, insert failed")
		}
		return false
	}

	log.Info().Str("slug", article.Slug).Str("category", article.Category).Msg("Article published")
	return true
}

// illustrate asks the image model for an illustration and falls back to
// the source story's thumbnail. An empty return means no image; backfill
// can repair that later.
func (p *Pipeline) illustrate(ctx context.Context, item models.RawFeedItem, title string) string {
	style := ""
	if cat, ok := categories.ByName(item.Category); ok {
		style = cat.Style
	}

	url, err := p.images.Generate(ctx, title, style)
	if err == nil && url != "" {
		return url
	}
	if err != nil {
		log.Debug().Err(err).Str("category", item.Category).Msg("Image generation failed, falling back to thumbnail")
	}
	return item.Thumbnail
}
