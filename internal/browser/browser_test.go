package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMatchesAny(t *testing.T) {
	t.Parallel()

	patterns := []string{"/v2/animals", "api/search"}
	require.True(t, matchesAny(patterns, "https://www.petfinder.com/v2/animals?page=1"))
	require.True(t, matchesAny(patterns, "https://example.org/api/search?q=dog"))
	require.False(t, matchesAny(patterns, "https://example.org/static/app.js"))
	require.False(t, matchesAny(nil, "https://example.org/"))
	require.False(t, matchesAny([]string{""}, "https://example.org/"))
}

func TestDocumentStatusDefaultsTo200(t *testing.T) {
	t.Parallel()

	rec := newTabRecorder(nil)
	require.Equal(t, 200, rec.documentStatus())

	rec.status = 404
	require.Equal(t, 404, rec.documentStatus())
}

func TestScrollPauseDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, 500*time.Millisecond, scrollPause(0))
	require.Equal(t, time.Second, scrollPause(time.Second))
}

func TestScrollLoopStopsWhenHeightSettles(t *testing.T) {
	t.Parallel()

	heights := []int{1000, 2400, 2400}
	measures, scrolls := 0, 0
	measure := func(context.Context) (int, error) {
		h := heights[min(measures, len(heights)-1)]
		measures++
		return h, nil
	}
	scroll := func(context.Context) error {
		scrolls++
		return nil
	}

	require.NoError(t, scrollLoop(context.Background(), 10, measure, scroll))
	// round 3 measures the same height as round 2 and exits early
	require.Equal(t, 3, measures)
	require.Equal(t, 2, scrolls)
}

func TestScrollLoopHonorsRoundCap(t *testing.T) {
	t.Parallel()

	height := 0
	scrolls := 0
	measure := func(context.Context) (int, error) {
		height += 500 // the page never stops growing
		return height, nil
	}
	scroll := func(context.Context) error {
		scrolls++
		return nil
	}

	require.NoError(t, scrollLoop(context.Background(), 4, measure, scroll))
	require.Equal(t, 4, scrolls)
}

func TestScrollLoopPropagatesMeasureError(t *testing.T) {
	t.Parallel()

	boom := errors.New("target closed")
	measure := func(context.Context) (int, error) { return 0, boom }
	scroll := func(context.Context) error { return nil }

	err := scrollLoop(context.Background(), 3, measure, scroll)
	require.ErrorIs(t, err, boom)
}

func TestNewChromeRendererDisabled(t *testing.T) {
	t.Parallel()

	_, err := NewChromeRenderer(Config{MaxConcurrency: 0}, nil)
	require.ErrorIs(t, err, ErrRendererDisabled)
}
