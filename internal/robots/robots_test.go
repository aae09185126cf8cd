package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEnforcer(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	allowAll := NewEnforcer(false, "test-agent", logger)
	if !allowAll.Allowed(ctx, "https://example.com/whatever") {
		t.Fatal("allow-all policy should permit URLs")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprintln(w, "User-agent: *\nDisallow: /admin\nCrawl-delay: 2")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enforcer := NewEnforcer(true, "test-agent", logger)
	if !enforcer.Allowed(ctx, srv.URL+"/pets/search") {
		t.Fatal("expected allowed path to pass robots")
	}
	if enforcer.Allowed(ctx, srv.URL+"/admin") {
		t.Fatal("expected blocked path to be denied")
	}
	if got := enforcer.CrawlDelay(ctx, srv.URL+"/pets/search"); got != 2*time.Second {
		t.Fatalf("expected 2s crawl delay, got %v", got)
	}
}

func TestEnforcerCachesPerHost(t *testing.T) {
	ctx := context.Background()
	var fetches atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			fmt.Fprintln(w, "User-agent: *\nDisallow:")
		}
	}))
	defer srv.Close()

	enforcer := NewEnforcer(true, "test-agent", zap.NewNop())
	for i := 0; i < 5; i++ {
		if !enforcer.Allowed(ctx, fmt.Sprintf("%s/pets/%d", srv.URL, i)) {
			t.Fatalf("expected path %d to be allowed", i)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected a single robots fetch, got %d", got)
	}
}

func TestEnforcerUnreachableHostAllows(t *testing.T) {
	enforcer := NewEnforcer(true, "test-agent", zap.NewNop())
	if !enforcer.Allowed(context.Background(), "http://127.0.0.1:1/anything") {
		t.Fatal("unreachable robots should fail open")
	}
	if enforcer.Allowed(context.Background(), "http://bad host/") {
		t.Fatal("unparseable URL should be denied")
	}
}
