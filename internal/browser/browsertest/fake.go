// Package browsertest provides a scripted Renderer for fetcher tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/palbase/palbase-sync/internal/browser"
)

// FakeRenderer serves canned pages keyed by URL substring and records
// every request it sees.
type FakeRenderer struct {
	mu       sync.Mutex
	pages    []stub
	requests []browser.Request
	closed   bool
}

type stub struct {
	urlContains string
	page        browser.Page
	err         error
}

// NewFake returns an empty fake; unmatched URLs fail the render.
func NewFake() *FakeRenderer {
	return &FakeRenderer{}
}

// Stub serves page for any URL containing urlContains. Stubs are tried
// in registration order, so register specific ones before catch-alls.
func (f *FakeRenderer) Stub(urlContains string, page browser.Page) *FakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, stub{urlContains: urlContains, page: page})
	return f
}

// StubHTML is Stub with just a document body.
func (f *FakeRenderer) StubHTML(urlContains, html string) *FakeRenderer {
	return f.Stub(urlContains, browser.Page{HTML: html, StatusCode: 200})
}

// StubErr makes any URL containing urlContains fail.
func (f *FakeRenderer) StubErr(urlContains string, err error) *FakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, stub{urlContains: urlContains, err: err})
	return f
}

// Render implements browser.Renderer.
func (f *FakeRenderer) Render(ctx context.Context, req browser.Request) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return browser.Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	for _, s := range f.pages {
		if strings.Contains(req.URL, s.urlContains) {
			if s.err != nil {
				return browser.Page{}, s.err
			}
			page := s.page
			if page.FinalURL == "" {
				page.FinalURL = req.URL
			}
			if page.StatusCode == 0 {
				page.StatusCode = 200
			}
			return page, nil
		}
	}
	return browser.Page{}, fmt.Errorf("no stub for %s", req.URL)
}

// Close implements browser.Renderer.
func (f *FakeRenderer) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Requests returns a copy of every request rendered so far.
func (f *FakeRenderer) Requests() []browser.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Request(nil), f.requests...)
}
