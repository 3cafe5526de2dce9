package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL      = errors.New("invalid URL")
	ErrMaxRetries      = errors.New("max retries exceeded")
	ErrBlockedByRobots = errors.New("blocked by robots.txt")
	ErrEmptyResponse   = errors.New("empty response body")

	// ErrNotAnArticle means the page failed the is-article check. It is a skip, not a failure.
	ErrNotAnArticle = errors.New("page is not an article")
	// ErrExtractionEmpty means every extraction strategy produced no text.
	ErrExtractionEmpty = errors.New("no text extracted")

	ErrArticleNotFound = errors.New("article not found")
	ErrSourceNotFound  = errors.New("source not found")
	ErrDuplicateURL    = errors.New("record with this URL already exists")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
	Attempts   int
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a required article field that is missing or blank.
type ValidationError struct {
	URL   string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: field %q is required", e.URL, e.Field)
}

// StorageError wraps errors that occur in a storage backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s, %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the article middleware chain.
type PipelineError struct {
	Stage string
	URL   string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsSkip reports whether err is an ordinary extraction skip outcome.
func IsSkip(err error) bool {
	return errors.Is(err, ErrNotAnArticle) || errors.Is(err, ErrExtractionEmpty)
}
