package backfill

import (
	"context"
	"errors"
	"testing"

	"lurnetreau/newsapi/internal/models"
	"lurnetreau/newsapi/internal/storage"
)

type fakeStore struct {
	missing map[string][]models.Article
	set     map[string]string
	listErr error
	setErr  error
}

func (f *fakeStore) ArticlesMissingImage(ctx context.Context, category string) ([]models.Article, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.missing[category], nil
}

func (f *fakeStore) SetImageURL(ctx context.Context, category, id, imageURL string) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.set == nil {
		f.set = make(map[string]string)
	}
	f.set[id] = imageURL
	return nil
}

type fakeIllustrator struct {
	styles  map[string]string
	err     error
	calls   int
	cancels context.CancelFunc
}

func (f *fakeIllustrator) Generate(ctx context.Context, title, style string) (string, error) {
	f.calls++
	if f.styles == nil {
		f.styles = make(map[string]string)
	}
	f.styles[title] = style
	if f.cancels != nil {
		f.cancels()
	}
	if f.err != nil {
		return "", f.err
	}
	return "https://img.example/" + title + ".png", nil
}

func TestRunFillsMissingImages(t *testing.T) {
	store := &fakeStore{missing: map[string][]models.Article{
		"Tech":   {{ID: "t1", Title: "one"}, {ID: "t2", Title: "two"}},
		"Sports": {{ID: "s1", Title: "three"}},
	}}
	images := &fakeIllustrator{}
	job := NewJob(store, images, 0)

	updated, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if updated != 3 {
		t.Fatalf("updated %d articles; want 3", updated)
	}
	if store.set["t1"] != "https://img.example/one.png" {
		t.Errorf("t1 image = %q", store.set["t1"])
	}
	if len(store.set) != 3 {
		t.Errorf("set %d images; want 3", len(store.set))
	}
}

func TestRunUsesCategoryStyle(t *testing.T) {
	store := &fakeStore{missing: map[string][]models.Article{
		"Sports": {{ID: "s1", Title: "cup final"}},
	}}
	images := &fakeIllustrator{}
	job := NewJob(store, images, 0)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := images.styles["cup final"]; got != "dynamic action photography" {
		t.Errorf("style = %q; want the category's own style", got)
	}
}

func TestRunToleratesPerArticleFailures(t *testing.T) {
	store := &fakeStore{missing: map[string][]models.Article{
		"Tech": {{ID: "t1", Title: "one"}},
	}}
	images := &fakeIllustrator{err: errors.New("quota exhausted")}
	job := NewJob(store, images, 0)

	updated, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("a failed generation must not abort the job: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated %d articles; want 0", updated)
	}
}

func TestRunSkipsAlreadyRepairedArticles(t *testing.T) {
	// The listing can go stale while the job runs; SetImageURL refuses
	// with ErrNotFound once an article has an image.
	store := &fakeStore{
		missing: map[string][]models.Article{
			"Tech": {{ID: "t1", Title: "one"}, {ID: "t2", Title: "two"}},
		},
		setErr: storage.ErrNotFound,
	}
	images := &fakeIllustrator{}
	job := NewJob(store, images, 0)

	updated, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("an already repaired article must not abort the job: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated %d articles; want 0", updated)
	}
	if images.calls != 2 {
		t.Errorf("generator called %d times; both articles should still be attempted", images.calls)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{missing: map[string][]models.Article{
		"Tech": {{ID: "t1", Title: "one"}, {ID: "t2", Title: "two"}},
	}}
	// Cancel during the first generation; the second article must not be
	// attempted.
	images := &fakeIllustrator{cancels: cancel, err: context.Canceled}
	job := NewJob(store, images, 0)

	_, err := job.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if images.calls != 1 {
		t.Errorf("generator called %d times after cancellation; want 1", images.calls)
	}
}
