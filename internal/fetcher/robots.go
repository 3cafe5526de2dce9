package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGate checks URLs against each host's robots.txt. Rules are fetched
// once per scheme+host and cached; an unreachable robots.txt allows all.
type RobotsGate struct {
	client  *http.Client
	limiter *RateLimiter
	agent   string
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
	logger  *slog.Logger
}

// NewRobotsGate creates a gate that identifies as agent. robots.txt
// requests go through limiter like any other fetch.
func NewRobotsGate(client *http.Client, limiter *RateLimiter, agent string, logger *slog.Logger) *RobotsGate {
	return &RobotsGate{
		client:  client,
		limiter: limiter,
		agent:   agent,
		cache:   make(map[string]*robotstxt.RobotsData),
		logger:  logger.With("component", "robots_gate"),
	}
}

// Allowed reports whether the agent may fetch u.
func (g *RobotsGate) Allowed(ctx context.Context, u *url.URL) bool {
	if u == nil {
		return true
	}
	data := g.rules(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, g.agent)
}

func (g *RobotsGate) rules(ctx context.Context, origin string) *robotstxt.RobotsData {
	g.mu.Lock()
	data, ok := g.cache[origin]
	g.mu.Unlock()
	if ok {
		return data
	}

	data = g.fetch(ctx, origin)

	g.mu.Lock()
	g.cache[origin] = data
	g.mu.Unlock()
	return data
}

func (g *RobotsGate) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.agent)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil
		}
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt unreachable, allowing all", "origin", origin, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.logger.Debug("robots.txt unparseable, allowing all", "origin", origin, "error", err)
		return nil
	}
	return data
}
