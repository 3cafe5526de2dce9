package fetcher

import (
	"context"

	"github.com/IshaanNene/newsmonitor/internal/types"
)

// Fetcher is the interface for page fetchers.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	// Non-2xx responses and exhausted retries return a *types.FetchError.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
