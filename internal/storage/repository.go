// Package storage implements the per-category article collections and the
// subscriber collection on top of sqlite.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/xid"

	"lurnetreau/newsapi/internal/categories"
	"lurnetreau/newsapi/internal/database"
	"lurnetreau/newsapi/internal/models"
)

const articleColumns = "id, title, content, category, slug, image_url, published_at"

// SearchResult pairs an article with its full-text relevance score.
// Higher scores rank higher.
type SearchResult struct {
	models.Article
	Score float64 `db:"-" json:"score"`
}

// Repository exposes the per-category article collections plus the
// subscriber collection. It is safe for concurrent use; the read path
// never blocks on writers thanks to WAL mode.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// collectionFor resolves a category name (display or collection form) to
// its table name. Table names only ever come from the fixed category set,
// never from raw request input.
func collectionFor(category string) (categories.Category, string, error) {
	c, ok := categories.Lookup(category)
	if !ok {
		return categories.Category{}, "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return c, c.Collection(), nil
}

// InsertArticle validates the article, assigns its id and publication
// timestamp, and inserts it into its category's collection. It fails with
// ErrDuplicateSlug when the slug is already taken. The pre-insert
// existence check and the insert are not atomic; the unique index on slug
// is the safety net for the remaining race window.
func (r *Repository) InsertArticle(ctx context.Context, a *models.Article) error {
	cat, table, err := collectionFor(a.Category)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("article title is required")
	}
	if a.Content == "" {
		return fmt.Errorf("article content is required")
	}
	if a.Slug == "" {
		return fmt.Errorf("article slug is required")
	}
	a.Category = cat.Name
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	a.PublishedAt = time.Now().UTC()

	var count int
	err = r.db.GetContext(ctx, &count,
		fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE slug = ?", table), a.Slug)
	if err != nil {
		return unavailable("checking slug", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateSlug, table, a.Slug)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("beginning insert", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)", table, articleColumns),
		a.ID, a.Title, a.Content, a.Category, a.Slug, a.ImageURL, a.PublishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateSlug, table, a.Slug)
		}
		return unavailable("inserting article", err)
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return unavailable("resolving rowid", err)
	}

	// Keep the search index in step with the collection.
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s_fts (docid, title, content) VALUES (?, ?, ?)", table),
		rowid, a.Title, a.Content)
	if err != nil {
		return unavailable("indexing article", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("committing insert", err)
	}
	return nil
}

// QueryRecent returns the most recent articles of one category, newest first.
func (r *Repository) QueryRecent(ctx context.Context, category string, limit int) ([]models.Article, error) {
	_, table, err := collectionFor(category)
	if err != nil {
		return nil, err
	}

	articles := []models.Article{}
	err = r.db.SelectContext(ctx, &articles,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY published_at DESC LIMIT ?", articleColumns, table),
		limit)
	if err != nil {
		return nil, unavailable("querying recent articles", err)
	}
	return articles, nil
}

// QueryPage returns one page of a category's articles, newest first, using
// offset pagination: skip = (page-1)*pageSize.
func (r *Repository) QueryPage(ctx context.Context, category string, page, pageSize int) ([]models.Article, error) {
	_, table, err := collectionFor(category)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	articles := []models.Article{}
	err = r.db.SelectContext(ctx, &articles,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY published_at DESC LIMIT ? OFFSET ?", articleColumns, table),
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, unavailable("querying article page", err)
	}
	return articles, nil
}

// FindBySlug looks up one article by slug within a category.
func (r *Repository) FindBySlug(ctx context.Context, category, slug string) (*models.Article, error) {
	_, table, err := collectionFor(category)
	if err != nil {
		return nil, err
	}

	var a models.Article
	err = r.db.GetContext(ctx, &a,
		fmt.Sprintf("SELECT %s FROM %s WHERE slug = ?", articleColumns, table), slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, table, slug)
	}
	if err != nil {
		return nil, unavailable("finding article by slug", err)
	}
	return &a, nil
}

// QueryRelated returns the most recent articles in the same category,
// excluding one article by id.
func (r *Repository) QueryRelated(ctx context.Context, category, excludeID string, count int) ([]models.Article, error) {
	_, table, err := collectionFor(category)
	if err != nil {
		return nil, err
	}

	articles := []models.Article{}
	err = r.db.SelectContext(ctx, &articles,
		fmt.Sprintf("SELECT %s FROM %s WHERE id != ? ORDER BY published_at DESC LIMIT ?", articleColumns, table),
		excludeID, count)
	if err != nil {
		return nil, unavailable("querying related articles", err)
	}
	return articles, nil
}

// TextSearch runs ranked full-text search scoped to one category's
// collection. Results come back ordered by descending relevance.
func (r *Repository) TextSearch(ctx context.Context, category, query string) ([]SearchResult, error) {
	_, table, err := collectionFor(category)
	if err != nil {
		return nil, err
	}
	match := ftsMatchExpr(query)
	if match == "" {
		return []SearchResult{}, nil
	}

	cols := "a.id, a.title, a.content, a.category, a.slug, a.image_url, a.published_at"
	q := fmt.Sprintf(
		"SELECT %s, matchinfo(%[2]s_fts, 'pcx') AS info FROM %[2]s_fts JOIN %[2]s a ON a.rowid = %[2]s_fts.docid WHERE %[2]s_fts MATCH ?",
		cols, table)

	rows := []struct {
		models.Article
		Info []byte `db:"info"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, q, match); err != nil {
		return nil, unavailable("searching articles", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, SearchResult{Article: row.Article, Score: matchRank(row.Info)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// matchRank scores one matched row from its FTS4 matchinfo blob, format
// 'pcx': phrase count, column count, then three uint32 counters per
// phrase/column pair, of which the first two are this row's hits and the
// collection-wide hits. The score sums hits/global per pair, so repeated
// hits rank a row higher and hits on rare terms weigh more.
func matchRank(info []byte) float64 {
	if len(info) < 8 {
		return 0
	}
	word := func(i int) int {
		return int(binary.LittleEndian.Uint32(info[i*4:]))
	}
	phrases, columns := word(0), word(1)

	score := 0.0
	for p := 0; p < phrases; p++ {
		for c := 0; c < columns; c++ {
			i := 2 + 3*(p*columns+c)
			if (i+2)*4 > len(info) {
				return score
			}
			hits, global := word(i), word(i+1)
			if hits > 0 && global > 0 {
				score += float64(hits) / float64(global)
			}
		}
	}
	return score
}

// ftsMatchExpr turns a raw user query into a safe FTS match expression:
// each term is quoted as a string literal and terms are OR-ed, so operator
// characters in user input cannot change the query structure.
func ftsMatchExpr(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// InsertSubscriberIfAbsent records a subscriber email, enforcing global
// uniqueness. It returns true when a new subscriber was created and false
// when the email was already subscribed; the latter is a normal outcome.
func (r *Repository) InsertSubscriberIfAbsent(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(1) FROM subscribers WHERE email = ?", email)
	if err != nil {
		return false, unavailable("checking subscriber", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO subscribers (email, subscribed_at) VALUES (?, ?)",
		email, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race to a concurrent subscribe; same outcome.
			return false, nil
		}
		return false, unavailable("inserting subscriber", err)
	}
	return true, nil
}

// ArticlesMissingImage returns the articles of one category that have no
// image yet, for the backfill job.
func (r *Repository) ArticlesMissingImage(ctx context.Context, category string) ([]models.Article, error) {
	_, table, err := collectionFor(category)
	if err != nil {
		return nil, err
	}

	articles := []models.Article{}
	err = r.db.SelectContext(ctx, &articles,
		fmt.Sprintf("SELECT %s FROM %s WHERE image_url IS NULL OR image_url = ''", articleColumns, table))
	if err != nil {
		return nil, unavailable("querying articles missing images", err)
	}
	return articles, nil
}

// SetImageURL sets an article's image once, only while it is still absent.
// It returns ErrNotFound when the article does not exist or already has an
// image, which keeps the backfill job idempotent.
func (r *Repository) SetImageURL(ctx context.Context, category, id, imageURL string) error {
	_, table, err := collectionFor(category)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET image_url = ? WHERE id = ? AND (image_url IS NULL OR image_url = '')", table),
		imageURL, id)
	if err != nil {
		return unavailable("setting image url", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("setting image url", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s has no image to set", ErrNotFound, table, id)
	}
	return nil
}

// PurgeAllArticles deletes every article from every category collection
// and clears the search indexes. Subscribers are untouched.
func (r *Repository) PurgeAllArticles(ctx context.Context) (int64, error) {
	var total int64
	for _, c := range categories.All {
		table := c.Collection()
		res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return total, unavailable("purging collection "+table, err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return total, unavailable("purging collection "+table, err)
		}
		total += deleted

		// Rebuilding from the now-empty content table clears the index.
		_, err = r.db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %[1]s_fts (%[1]s_fts) VALUES ('rebuild')", table))
		if err != nil {
			return total, unavailable("clearing search index for "+table, err)
		}
	}
	return total, nil
}

// unavailable tags an unexpected database failure as a connectivity error.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
