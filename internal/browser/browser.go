// Package browser renders JavaScript-heavy pages in headless Chrome and
// hands back the settled DOM plus any captured network responses.
package browser

import (
	"context"
	"strings"
	"time"
)

// Request describes one page render.
type Request struct {
	// URL to navigate to.
	URL string
	// WaitSelector, when set, is a CSS selector the render waits on
	// before snapshotting. Absence is tolerated after WaitPatience.
	WaitSelector string
	// WaitPatience bounds the WaitSelector wait. Zero means 10s.
	WaitPatience time.Duration
	// ScrollRounds scrolls to the bottom of the page this many times to
	// trigger lazy-loaded content, pausing ScrollPause between rounds.
	ScrollRounds int
	ScrollPause  time.Duration
	// ClickSelector, when set, is clicked once after the waits. Used for
	// cookie banners and load-more buttons. A missing element is not an
	// error.
	ClickSelector string
	// CapturePatterns are substrings matched against response URLs; the
	// bodies of matching XHR/fetch responses are returned in
	// Page.Captures. Used for sites whose listings arrive as JSON.
	CapturePatterns []string
}

// Capture is one network response recorded during a render.
type Capture struct {
	URL  string
	Body []byte
}

// Page is the outcome of a render.
type Page struct {
	// HTML is the outer HTML of the settled document.
	HTML string
	// FinalURL is the document URL after redirects.
	FinalURL string
	// StatusCode is the status of the top-level document response, or
	// 200 when the browser did not report one.
	StatusCode int
	Captures   []Capture
}

// Renderer is the capability the fetchers program against. Exactly one
// real implementation exists; tests substitute canned pages.
type Renderer interface {
	Render(ctx context.Context, req Request) (Page, error)
	Close(ctx context.Context) error
}

// matchesAny reports whether rawURL contains any of the patterns.
func matchesAny(patterns []string, rawURL string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(rawURL, p) {
			return true
		}
	}
	return false
}
