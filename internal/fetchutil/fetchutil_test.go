package fetchutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pal-agent", r.UserAgent())
		fmt.Fprint(w, "<html><body><h1>Buddy</h1></body></html>")
	}))
	defer srv.Close()

	client := New(Config{UserAgent: "pal-agent", Timeout: 5 * time.Second})
	resp, err := client.Get(context.Background(), srv.URL+"/pet/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "Buddy")
}

func TestGetDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="pet-name">Mittens</div></body></html>`)
	}))
	defer srv.Close()

	client := New(Config{UserAgent: "pal-agent"})
	doc, err := client.GetDocument(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Mittens", doc.Find(".pet-name").Text())
}

func TestGetServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Config{UserAgent: "pal-agent"})
	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)
}
