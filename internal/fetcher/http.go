package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/observability"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// HTTPFetcher implements Fetcher using net/http with a retry budget,
// exponential backoff and a shared RateLimiter.
type HTTPFetcher struct {
	client        *http.Client
	cfg           *config.FetcherConfig
	limiter       *RateLimiter
	robots        *RobotsGate
	retryStatuses map[int]bool
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher. A nil limiter gets one built
// from cfg.Fetcher.RateLimit; pass a shared limiter to throttle several
// fetchers together.
func NewHTTPFetcher(cfg *config.Config, limiter *RateLimiter, logger *slog.Logger) (*HTTPFetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if limiter == nil {
		limiter = NewRateLimiter(cfg.Fetcher.RateLimit)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decoded below, brotli included
	}

	maxRedirects := cfg.Fetcher.MaxRedirects
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}

	statuses := make(map[int]bool, len(cfg.Fetcher.RetryStatuses))
	for _, code := range cfg.Fetcher.RetryStatuses {
		statuses[code] = true
	}

	f := &HTTPFetcher{
		client:        client,
		cfg:           &cfg.Fetcher,
		limiter:       limiter,
		retryStatuses: statuses,
		logger:        logger.With("component", "http_fetcher"),
	}
	if cfg.Fetcher.RespectRobotsTxt {
		f.robots = NewRobotsGate(client, limiter, cfg.Fetcher.UserAgent, logger)
	}
	return f, nil
}

// SetMetrics attaches counters for retries and downloaded bytes.
func (f *HTTPFetcher) SetMetrics(m *observability.Metrics) {
	f.metrics = m
}

// Fetch issues a GET, retrying transient failures up to the retry budget.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, req.URL) {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrBlockedByRobots}
	}

	start := time.Now()
	var last *types.FetchError

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := f.backoff(attempt)
			if last.RetryAfter > wait {
				wait = last.RetryAfter
			}
			f.logger.Debug("retrying fetch",
				"host", req.Domain(),
				"url", req.URLString(),
				"attempt", attempt+1,
				"wait", wait,
				"error", last.Err,
			)
			if f.metrics != nil {
				f.metrics.FetchRetries.Add(1)
			}
			if err := sleepContext(ctx, wait); err != nil {
				return nil, &types.FetchError{URL: req.URLString(), Err: err, Attempts: attempt}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &types.FetchError{URL: req.URLString(), Err: err, Attempts: attempt}
		}

		resp, ferr := f.do(ctx, req)
		if ferr == nil {
			resp.Attempts = attempt + 1
			resp.FetchDuration = time.Since(start)
			return resp, nil
		}

		ferr.Attempts = attempt + 1
		last = ferr
		if !ferr.IsRetryable() {
			return nil, ferr
		}
	}

	return nil, &types.FetchError{
		URL:        req.URLString(),
		StatusCode: last.StatusCode,
		Err:        fmt.Errorf("%w (%d attempts): %v", types.ErrMaxRetries, last.Attempts, last.Err),
		Attempts:   last.Attempts,
	}
}

// do performs a single HTTP round trip.
func (f *HTTPFetcher) do(ctx context.Context, req *types.Request) (*types.Response, *types.FetchError) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "es-419,es;q=0.9,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		// An attempt that hit its own deadline is retryable; a cancelled caller is not.
		attemptTimedOut := ctx.Err() == nil && attemptCtx.Err() != nil
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: attemptTimedOut || isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	if f.retryStatuses[httpResp.StatusCode] {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		ferr := &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body))),
			Retryable:  true,
		}
		if httpResp.StatusCode == http.StatusTooManyRequests {
			ferr.RetryAfter = parseRetryAfter(httpResp.Header.Get("Retry-After"))
		}
		return nil, ferr
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", httpResp.StatusCode),
		}
	}

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        err,
			Retryable:  ctx.Err() == nil,
		}
	}
	if len(body) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: types.ErrEmptyResponse}
	}

	if f.metrics != nil {
		f.metrics.BytesDownloaded.Add(int64(len(body)))
	}

	duration := time.Since(start)
	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", httpResp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return types.NewResponse(req, httpResp, body, duration), nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// backoff returns factor * 2^(attempt-1) seconds for the given retry number.
func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	if f.cfg.BackoffFactor <= 0 || attempt < 1 {
		return 0
	}
	secs := f.cfg.BackoffFactor * math.Pow(2, float64(attempt-1))
	return time.Duration(secs * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decompressReader wraps a reader with the decoder named by Content-Encoding.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value, seconds or HTTP-date.
// Missing or unparseable values return zero so the regular backoff applies.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs > 120 {
			secs = 120
		}
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 0
}
