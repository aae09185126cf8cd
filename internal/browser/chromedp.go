package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRendererDisabled indicates rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// Config controls the Chrome renderer.
type Config struct {
	// RemoteURL is a DevTools websocket endpoint (a Browserless-style
	// service). Empty launches a local Chrome process.
	RemoteURL string
	UserAgent string
	// Timeout bounds one full render, navigation and waits included.
	Timeout time.Duration
	// MaxConcurrency caps simultaneous tabs. <= 0 disables the renderer.
	MaxConcurrency int
	// DomainQPS is a per-host request budget; 0 means unmetered.
	DomainQPS float64
}

// ChromeRenderer renders pages in headless Chrome via chromedp. One
// browser process, one tab per Render call.
type ChromeRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	timeout         time.Duration
	domainQPS       float64
	domainLimiters  sync.Map
	userAgent       string
}

// NewChromeRenderer connects to the remote endpoint when configured,
// otherwise launches a local headless Chrome.
func NewChromeRenderer(cfg Config, logger *zap.Logger) (*ChromeRenderer, error) {
	if cfg.MaxConcurrency <= 0 {
		return nil, ErrRendererDisabled
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var (
		allocatorCtx    context.Context
		allocatorCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocatorCtx, allocatorCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		opts := chromedp.DefaultExecAllocatorOptions[:]
		opts = append(opts,
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.UserAgent(cfg.UserAgent),
		)
		allocatorCtx, allocatorCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromeRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		timeout:         cfg.Timeout,
		domainQPS:       cfg.DomainQPS,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *ChromeRenderer) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

// Render implements Renderer.
func (r *ChromeRenderer) Render(ctx context.Context, req Request) (Page, error) {
	if r == nil {
		return Page{}, ErrRendererDisabled
	}

	release, err := r.acquireSlot(ctx)
	if err != nil {
		return Page{}, err
	}
	defer release()

	if waitErr := r.waitDomainBudget(ctx, req.URL); waitErr != nil {
		return Page{}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	recorder := newTabRecorder(req.CapturePatterns)
	recorder.listen(tabCtx)

	var (
		html     string
		finalURL string
	)
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.userAgent),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if req.WaitSelector != "" {
		tasks = append(tasks, waitVisibleWithin(req.WaitSelector, req.WaitPatience))
	}
	if req.ClickSelector != "" {
		tasks = append(tasks, clickIfPresent(req.ClickSelector))
	}
	if req.ScrollRounds > 0 {
		tasks = append(tasks, scrollUntilSettled(req.ScrollRounds, scrollPause(req.ScrollPause)))
	}
	tasks = append(tasks,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		recorder.collectBodies(),
	)

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	return Page{
		HTML:       html,
		FinalURL:   firstNonEmpty(finalURL, req.URL),
		StatusCode: recorder.documentStatus(),
		Captures:   recorder.captures,
	}, nil
}

func (r *ChromeRenderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *ChromeRenderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.domainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.domainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// tabRecorder accumulates the document status and the request ids of
// responses matching the capture patterns while the tab loads.
type tabRecorder struct {
	mu       sync.Mutex
	patterns []string
	status   int
	matched  []matchedResponse
	captures []Capture
}

type matchedResponse struct {
	requestID network.RequestID
	url       string
}

func newTabRecorder(patterns []string) *tabRecorder {
	return &tabRecorder{patterns: patterns}
}

func (t *tabRecorder) listen(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Response == nil {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if resp.Type == network.ResourceTypeDocument && t.status == 0 {
			t.status = int(resp.Response.Status)
		}
		if matchesAny(t.patterns, resp.Response.URL) {
			t.matched = append(t.matched, matchedResponse{requestID: resp.RequestID, url: resp.Response.URL})
		}
	})
}

// collectBodies pulls the bodies of matched responses once the page has
// settled. A body that is already evicted from the browser cache is
// skipped, not fatal.
func (t *tabRecorder) collectBodies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		t.mu.Lock()
		matched := append([]matchedResponse(nil), t.matched...)
		t.mu.Unlock()
		for _, m := range matched {
			body, err := network.GetResponseBody(m.requestID).Do(ctx)
			if err != nil {
				continue
			}
			t.captures = append(t.captures, Capture{URL: m.url, Body: body})
		}
		return nil
	})
}

func (t *tabRecorder) documentStatus() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

// waitVisibleWithin waits for the selector but gives up after patience
// without failing the render; sources tolerate empty result pages.
func waitVisibleWithin(selector string, patience time.Duration) chromedp.Action {
	if patience <= 0 {
		patience = 10 * time.Second
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, patience)
		defer cancel()
		err := chromedp.WaitVisible(selector, chromedp.ByQuery).Do(waitCtx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil
		}
		return err
	})
}

// scrollUntilSettled scrolls to the bottom of the page, pausing between
// rounds for lazy content, and stops once document.body.scrollHeight
// stops growing. rounds bounds the loop for pages that grow forever.
func scrollUntilSettled(rounds int, pause time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		measure := func(ctx context.Context) (int, error) {
			var height int
			err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx)
			return height, err
		}
		scroll := func(ctx context.Context) error {
			if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx); err != nil {
				return err
			}
			return chromedp.Sleep(pause).Do(ctx)
		}
		return scrollLoop(ctx, rounds, measure, scroll)
	})
}

// scrollLoop measures before each round and exits when the height no
// longer changes.
func scrollLoop(ctx context.Context, rounds int, measure func(context.Context) (int, error), scroll func(context.Context) error) error {
	lastHeight := -1
	for i := 0; i < rounds; i++ {
		height, err := measure(ctx)
		if err != nil {
			return fmt.Errorf("measure page height: %w", err)
		}
		if height == lastHeight {
			return nil
		}
		lastHeight = height
		if err := scroll(ctx); err != nil {
			return fmt.Errorf("scroll page: %w", err)
		}
	}
	return nil
}

// clickIfPresent clicks the first match and swallows its absence.
func clickIfPresent(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		clickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible).Do(clickCtx)
		if err != nil && ctx.Err() == nil {
			return nil
		}
		return err
	})
}

func scrollPause(pause time.Duration) time.Duration {
	if pause <= 0 {
		return 500 * time.Millisecond
	}
	return pause
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
