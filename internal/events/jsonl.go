package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONLPublisher appends events to a file as newline-delimited JSON.
type JSONLPublisher struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLPublisher opens (creating if needed) outputPath for appending.
func NewJSONLPublisher(outputPath string, logger *slog.Logger) (*JSONLPublisher, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}

	return &JSONLPublisher{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_publisher"),
	}, nil
}

func (p *JSONLPublisher) Name() string { return "jsonl" }

func (p *JSONLPublisher) Publish(_ context.Context, events []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range events {
		if err := p.enc.Encode(e); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
		p.count++
	}
	return nil
}

func (p *JSONLPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("JSONL events written", "path", p.path, "events", p.count)
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
