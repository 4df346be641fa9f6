// Package backfill repairs articles that were published without an image.
package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"lurnetreau/newsapi/internal/categories"
	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/storage"
)

// Illustrator produces an image URL for an article title in a style.
type Illustrator interface {
	Generate(ctx context.Context, title, style string) (string, error)
}

// ImageStore finds and repairs articles missing an image.
type ImageStore interface {
	ArticlesMissingImage(ctx context.Context, category string) ([]models.Article, error)
	SetImageURL(ctx context.Context, category, id, imageURL string) error
}

// Job walks every category collection, generates an image for each article
// that has none, and sets it once. The job is idempotent: it only touches
// articles still missing an image, so it can be interrupted and re-run.
type Job struct {
	store  ImageStore
	images Illustrator
	delay  time.Duration // pacing between model calls to respect rate limits
}

// NewJob wires a backfill job.
func NewJob(store ImageStore, images Illustrator, delay time.Duration) *Job {
	return &Job{store: store, images: images, delay: delay}
}

// Run processes all categories to completion, returning the number of
// articles updated. It stops early only on context cancellation.
func (j *Job) Run(ctx context.Context) (int, error) {
	updated := 0

	for _, cat := range categories.All {
		articles, err := j.store.ArticlesMissingImage(ctx, cat.Name)
		if err != nil {
			log.Error().Err(err).Str("category", cat.Name).Msg("Failed to list articles missing images")
			continue
		}
		if len(articles) == 0 {
			log.Debug().Str("category", cat.Name).Msg("No articles without images")
			continue
		}
		log.Info().Int("articles", len(articles)).Str("category", cat.Name).Msg("Backfilling images")

		for _, a := range articles {
			if err := j.fill(ctx, cat, a); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return updated, err
				}
				if errors.Is(err, storage.ErrNotFound) {
					// Repaired since we listed it; nothing to do.
					log.Debug().Str("id", a.ID).Str("category", cat.Name).Msg("Article already has an image")
				} else {
					log.Warn().Err(err).Str("id", a.ID).Str("category", cat.Name).Msg("Could not backfill image")
				}
			} else {
				updated++
			}

			if err := j.pause(ctx); err != nil {
				return updated, err
			}
		}
	}

	log.Info().Int("updated", updated).Msg("Backfill finished")
	return updated, nil
}

func (j *Job) fill(ctx context.Context, cat categories.Category, a models.Article) error {
	url, err := j.images.Generate(ctx, a.Title, cat.Style)
	if err != nil {
		return err
	}
	return j.store.SetImageURL(ctx, cat.Name, a.ID, url)
}

// pause waits the configured delay between model calls, returning early on
// cancellation.
func (j *Job) pause(ctx context.Context) error {
	if j.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(j.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
