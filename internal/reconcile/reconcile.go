// Package reconcile upserts extracted articles by URL and records a
// field-level history of what changed between scrapes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/newsmonitor/internal/category"
	"github.com/IshaanNene/newsmonitor/internal/dates"
	"github.com/IshaanNene/newsmonitor/internal/events"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// Outcome says what an upsert did to the store.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the stored article after an upsert and the changes it recorded.
type Result struct {
	Article *types.Article
	Outcome Outcome
	Changes []types.ChangeRecord
}

// Reconciler inserts new articles and diffs re-extracted ones against the store.
type Reconciler struct {
	store     storage.ArticleStore
	publisher events.Publisher
	metrics   *observability.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Reconciler over store.
func New(store storage.ArticleStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		publisher: events.NopPublisher{},
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "reconciler"),
	}
}

// SetPublisher sets the sink that receives change events after each update.
func (r *Reconciler) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.NopPublisher{}
	}
	r.publisher = p
}

// SetMetrics sets the metrics collector.
func (r *Reconciler) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// Upsert stores ex as a new article, or updates the existing article with
// the same URL. Only updates produce change records; an update with no
// differing field writes nothing.
func (r *Reconciler) Upsert(ctx context.Context, ex *types.ExtractedArticle) (*Result, error) {
	if err := validate(ex); err != nil {
		return nil, err
	}

	existing, err := r.store.GetArticleByURL(ctx, ex.URL)
	switch {
	case errors.Is(err, types.ErrArticleNotFound):
		res, err := r.insert(ctx, ex)
		if !errors.Is(err, types.ErrDuplicateURL) {
			return res, r.count(res, err)
		}
		// Lost an insert race; diff against the winner instead.
		existing, err = r.store.GetArticleByURL(ctx, ex.URL)
		if err != nil {
			return nil, r.count(nil, err)
		}
	case err != nil:
		return nil, r.count(nil, err)
	}

	res, err := r.update(ctx, existing, ex)
	return res, r.count(res, err)
}

func (r *Reconciler) insert(ctx context.Context, ex *types.ExtractedArticle) (*Result, error) {
	now := r.now()
	article := &types.Article{
		ID:          uuid.NewString(),
		URL:         ex.URL,
		Source:      strings.TrimSpace(ex.Source),
		Title:       strings.TrimSpace(ex.Title),
		Content:     strings.TrimSpace(ex.Content),
		PublishedAt: parseDate(ex.PublishDate),
		ImageURL:    types.StringPtr(strings.TrimSpace(ex.ImageURL)),
		Category:    types.StringPtr(category.Resolve(ex.Category)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.InsertArticle(ctx, article); err != nil {
		return nil, err
	}
	r.logger.Debug("article inserted", "url", article.URL, "id", article.ID)
	return &Result{Article: article, Outcome: OutcomeInserted}, nil
}

func (r *Reconciler) update(ctx context.Context, article *types.Article, ex *types.ExtractedArticle) (*Result, error) {
	now := r.now()
	var changes []types.ChangeRecord
	stage := func(field, oldValue, newValue string) {
		changes = append(changes, types.ChangeRecord{
			ID:         uuid.NewString(),
			ArticleID:  article.ID,
			Field:      field,
			OldValue:   oldValue,
			NewValue:   newValue,
			DetectedAt: now,
		})
	}

	if title := strings.TrimSpace(ex.Title); title != "" && title != article.Title {
		stage(types.FieldTitle, article.Title, title)
		article.Title = title
	}
	if content := strings.TrimSpace(ex.Content); content != "" && content != article.Content {
		stage(types.FieldContent, article.Content, content)
		article.Content = content
	}
	if image := strings.TrimSpace(ex.ImageURL); image != "" && image != types.Deref(article.ImageURL) {
		stage(types.FieldImage, types.Deref(article.ImageURL), image)
		article.ImageURL = &image
	}
	if published := parseDate(ex.PublishDate); published != nil {
		oldValue := formatDate(article.PublishedAt)
		if newValue := formatDate(published); newValue != oldValue {
			stage(types.FieldPublishedAt, oldValue, newValue)
			article.PublishedAt = published
		}
	}
	if strings.TrimSpace(ex.Category) != "" {
		gated := category.Resolve(ex.Category)
		if gated != types.Deref(article.Category) {
			stage(types.FieldCategory, types.Deref(article.Category), gated)
			article.Category = &gated
		}
	}

	if len(changes) == 0 {
		return &Result{Article: article, Outcome: OutcomeUnchanged}, nil
	}

	article.UpdatedAt = now
	if err := r.store.UpdateArticle(ctx, article, changes); err != nil {
		return nil, err
	}

	r.logger.Info("article changed", "url", article.URL, "changes", len(changes))
	r.publish(ctx, article, changes)
	return &Result{Article: article, Outcome: OutcomeUpdated, Changes: changes}, nil
}

// publish sends change events. Failures are logged and never fail the upsert.
func (r *Reconciler) publish(ctx context.Context, article *types.Article, changes []types.ChangeRecord) {
	evs := events.FromChanges(article, changes)
	if err := r.publisher.Publish(ctx, evs); err != nil {
		r.logger.Warn("change event publish failed", "url", article.URL, "sink", r.publisher.Name(), "error", err)
		if r.metrics != nil {
			r.metrics.EventErrors.Add(1)
		}
		return
	}
	if r.metrics != nil {
		r.metrics.EventsPublished.Add(int64(len(evs)))
	}
}

func (r *Reconciler) count(res *Result, err error) error {
	if r.metrics == nil {
		return err
	}
	if err != nil {
		r.metrics.UpsertErrors.Add(1)
		return err
	}
	switch res.Outcome {
	case OutcomeInserted:
		r.metrics.ArticlesInserted.Add(1)
	case OutcomeUpdated:
		r.metrics.ArticlesUpdated.Add(1)
		r.metrics.ChangesRecorded.Add(int64(len(res.Changes)))
	case OutcomeUnchanged:
		r.metrics.ArticlesUnchanged.Add(1)
	}
	return nil
}

func validate(ex *types.ExtractedArticle) error {
	if ex == nil {
		return &types.ValidationError{Field: "url"}
	}
	required := []struct {
		field string
		value string
	}{
		{"url", ex.URL},
		{"source", ex.Source},
		{types.FieldTitle, ex.Title},
		{types.FieldContent, ex.Content},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &types.ValidationError{URL: ex.URL, Field: r.field}
		}
	}
	return nil
}

// parseDate returns nil for blank or unparseable dates.
func parseDate(raw string) *time.Time {
	t, ok := dates.Parse(raw)
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return dates.Format(*t)
}
