package models

import "time"

// Article represents one published piece, stored in its category's
// collection. Articles are immutable after insertion except for ImageURL,
// which the backfill job may set once when it is initially absent.
type Article struct {
	ID          string    `db:"id" json:"_id"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	Category    string    `db:"category" json:"category"`
	Slug        string    `db:"slug" json:"slug"`
	ImageURL    *string   `db:"image_url" json:"imageUrl"`
	PublishedAt time.Time `db:"published_at" json:"publishedAt"`
}

// Subscriber represents one opted-in newsletter email.
type Subscriber struct {
	Email        string    `db:"email" json:"email"`
	SubscribedAt time.Time `db:"subscribed_at" json:"subscribedAt"`
}

// RawFeedItem is the transient output of the feed client: one upstream
// story as fetched, before any rewriting. It is never persisted.
type RawFeedItem struct {
	Headline  string
	Body      string
	Category  string // display name of the category the item was fetched for
	Thumbnail string // optional; empty when the upstream item has none
}

// GeneratedArticle is the transient output of the rewrite client: the
// structured response of the text model. A non-empty Title is required
// before the article may be persisted.
type GeneratedArticle struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
