// Package fetchutil is the static-HTML client used where a full browser
// render is unnecessary, detail-page enrichment mostly. Built on a
// colly collector so retries, pooling, and per-request timeouts match
// the rest of the fetch surface.
package fetchutil

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Client fetches single pages over plain HTTP.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
}

// Response is the body of one fetched page.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// New builds a Client with a pooled transport.
func New(cfg Config) *Client {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, baseCollector: c}
}

// Get fetches one URL and returns the raw body.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.IgnoreRobotsTxt = false
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Response{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return Response{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		return result, nil
	}
}

// GetDocument fetches one URL and parses the body as HTML.
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
