// Package robots enforces robots.txt directives for outbound fetches.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// Policy answers whether a URL may be fetched and how long to wait
// between fetches on its host. A zero CrawlDelay means the host did not
// ask for one.
type Policy interface {
	Allowed(ctx context.Context, rawURL string) bool
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

// Enforcer fetches and caches robots.txt per host. An unreachable or
// unparseable robots file allows access; a malformed target URL denies.
type Enforcer struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

// NewEnforcer builds a Policy respecting the config toggle.
func NewEnforcer(respect bool, userAgent string, logger *zap.Logger) Policy {
	if !respect {
		return &allowAllPolicy{}
	}
	return &Enforcer{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed implements Policy.
func (e *Enforcer) Allowed(ctx context.Context, rawURL string) bool {
	if e == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data, err := e.load(ctx, parsed)
	if err != nil {
		e.logger.Warn("robots fetch failed; allowing access", zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	group := data.FindGroup(e.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func (e *Enforcer) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if data, ok := e.cache.Load(hostKey); ok {
		cached, assertOK := data.(*robotstxt.RobotsData)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", data)
		}
		return cached, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	e.cache.Store(hostKey, data)
	return data, nil
}

// CrawlDelay implements Policy.
func (e *Enforcer) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	if e == nil {
		return 0
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	data, err := e.load(ctx, parsed)
	if err != nil {
		return 0
	}
	group := data.FindGroup(e.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

type allowAllPolicy struct{}

func (a *allowAllPolicy) Allowed(context.Context, string) bool { return true }

func (a *allowAllPolicy) CrawlDelay(context.Context, string) time.Duration { return 0 }
