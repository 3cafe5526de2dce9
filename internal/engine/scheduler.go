package engine

import (
	"context"
	"sync"
	"time"

	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// SourceResult is the outcome of scraping one registered source.
type SourceResult struct {
	Source    types.Source
	Summaries []types.Summary
	// Err is set when the listing page could not be fetched or parsed.
	Err      error
	Duration time.Duration
}

// Processed is the number of articles that passed through upsert.
func (r SourceResult) Processed() int {
	return len(r.Summaries)
}

// ScrapeSources scrapes every enabled source. Sources run one at a time
// unless engine.source_concurrency is above one, in which case a bounded
// worker pool is used. Results keep the order of the source list.
func (e *Engine) ScrapeSources(ctx context.Context) ([]SourceResult, error) {
	enabled := true
	sources, err := e.store.ListSources(ctx, storage.SourceFilter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}

	workers := e.cfg.Engine.SourceConcurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(sources) {
		workers = len(sources)
	}
	e.logger.Info("scraping sources", "sources", len(sources), "workers", workers)

	results := make([]SourceResult, len(sources))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.scrapeSource(ctx, sources[i])
			}
		}()
	}

	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Sources never dispatched because of cancellation.
	for i := range results {
		if results[i].Source.ID == "" {
			results[i] = SourceResult{Source: sources[i], Err: ctx.Err()}
		}
	}
	return results, nil
}

func (e *Engine) scrapeSource(ctx context.Context, src types.Source) SourceResult {
	start := time.Now()
	label := src.Name
	if label == "" {
		label = hostLabel(src.URL)
	}

	summaries, err := e.run(ctx, src.URL, label)
	if summaries == nil {
		summaries = []types.Summary{}
	}

	// Marked after every attempt, successful or not.
	if merr := e.store.MarkSourceScraped(ctx, src.ID, time.Now().UTC()); merr != nil {
		e.logger.Warn("mark source scraped failed", "source", src.Name, "error", merr)
	}

	return SourceResult{
		Source:    src,
		Summaries: summaries,
		Err:       err,
		Duration:  time.Since(start),
	}
}
