package politeness

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayerBounds(t *testing.T) {
	t.Parallel()

	d := NewDelayer(20*time.Millisecond, 50*time.Millisecond)
	for i := 0; i < 200; i++ {
		got := d.Next(0)
		require.GreaterOrEqual(t, got, 20*time.Millisecond)
		require.LessOrEqual(t, got, 50*time.Millisecond)
	}
}

func TestDelayerFloor(t *testing.T) {
	t.Parallel()

	d := NewDelayer(10*time.Millisecond, 20*time.Millisecond)
	require.Equal(t, time.Second, d.Next(time.Second))
}

func TestDelayerInvertedBounds(t *testing.T) {
	t.Parallel()

	d := NewDelayer(30*time.Millisecond, 10*time.Millisecond)
	for i := 0; i < 50; i++ {
		require.Equal(t, 30*time.Millisecond, d.Next(0))
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	d := NewDelayer(time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := d.Wait(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestSeenSet(t *testing.T) {
	t.Parallel()

	s := NewSeenSet()
	require.True(t, s.MarkIfNew("petfinder:123"))
	require.False(t, s.MarkIfNew("petfinder:123"))
	require.True(t, s.MarkIfNew("petfinder:456"))
	require.False(t, s.MarkIfNew(""))
}

func TestSeenSetConcurrent(t *testing.T) {
	t.Parallel()

	s := NewSeenSet()
	const workers = 16
	wins := make(chan int, workers)
	for w := 0; w < workers; w++ {
		go func() {
			n := 0
			for i := 0; i < 100; i++ {
				if s.MarkIfNew(fmt.Sprintf("pet-%d", i)) {
					n++
				}
			}
			wins <- n
		}()
	}
	total := 0
	for w := 0; w < workers; w++ {
		total += <-wins
	}
	require.Equal(t, 100, total)
}
