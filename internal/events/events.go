// Package events publishes article change events to external sinks.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// TypeArticleChanged is the event type for a field-level article change.
const TypeArticleChanged = "article.changed"

// Event is the published form of one ChangeRecord.
type Event struct {
	Type       string    `json:"type"`
	ChangeID   string    `json:"change_id"`
	ArticleID  string    `json:"article_id"`
	URL        string    `json:"url"`
	Source     string    `json:"source"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// FromChanges builds one event per change record of article.
func FromChanges(article *types.Article, changes []types.ChangeRecord) []Event {
	out := make([]Event, 0, len(changes))
	for _, c := range changes {
		out = append(out, Event{
			Type:       TypeArticleChanged,
			ChangeID:   c.ID,
			ArticleID:  c.ArticleID,
			URL:        article.URL,
			Source:     article.Source,
			Field:      c.Field,
			OldValue:   c.OldValue,
			NewValue:   c.NewValue,
			DetectedAt: c.DetectedAt,
		})
	}
	return out
}

// Publisher is the interface for all event sinks.
type Publisher interface {
	// Publish delivers a batch of events.
	Publish(ctx context.Context, events []Event) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the sink identifier.
	Name() string
}

// New builds the publisher described by cfg. With no sink configured it
// returns a publisher that discards everything.
func New(cfg *config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	var sinks []Publisher

	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
	}
	if cfg.JSONLPath != "" {
		p, err := NewJSONLPublisher(cfg.JSONLPath, logger)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, p)
	}

	switch len(sinks) {
	case 0:
		return NopPublisher{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiPublisher(sinks, logger), nil
	}
}

func closeAll(sinks []Publisher) {
	for _, s := range sinks {
		s.Close()
	}
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []Event) error { return nil }
func (NopPublisher) Close() error                           { return nil }
func (NopPublisher) Name() string                           { return "nop" }

// --- Multi-Publisher Fan-Out ---

// MultiPublisher delivers events to several sinks.
type MultiPublisher struct {
	sinks  []Publisher
	logger *slog.Logger
}

// NewMultiPublisher creates a publisher that fans out to multiple sinks.
func NewMultiPublisher(sinks []Publisher, logger *slog.Logger) *MultiPublisher {
	return &MultiPublisher{
		sinks:  sinks,
		logger: logger.With("component", "multi_publisher"),
	}
}

func (p *MultiPublisher) Name() string { return "multi" }

// Publish tries every sink and returns the first error.
func (p *MultiPublisher) Publish(ctx context.Context, events []Event) error {
	var firstErr error
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, events); err != nil {
			p.logger.Error("sink publish failed", "sink", sink.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *MultiPublisher) Close() error {
	var firstErr error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
