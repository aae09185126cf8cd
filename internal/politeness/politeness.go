// Package politeness paces outbound requests so sources never see
// machine-gun traffic: a randomized delay between fetches, raised to the
// host's crawl-delay when robots.txt asks for more.
package politeness

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delayer sleeps a random duration in [min, max] between requests.
type Delayer struct {
	mu  sync.Mutex
	rnd *rand.Rand
	min time.Duration
	max time.Duration
}

// NewDelayer builds a Delayer. Inverted or negative bounds collapse to
// a fixed min delay.
func NewDelayer(min, max time.Duration) *Delayer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Delayer{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		min: min,
		max: max,
	}
}

// Next picks the delay for the upcoming request. The floor argument is
// the host's robots crawl-delay; it wins when longer than the random
// draw.
func (d *Delayer) Next(floor time.Duration) time.Duration {
	d.mu.Lock()
	delay := d.min
	if span := d.max - d.min; span > 0 {
		delay += time.Duration(d.rnd.Int63n(int64(span) + 1))
	}
	d.mu.Unlock()
	if floor > delay {
		return floor
	}
	return delay
}

// Wait blocks for Next(floor) or until ctx is cancelled.
func (d *Delayer) Wait(ctx context.Context, floor time.Duration) error {
	delay := d.Next(floor)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SeenSet is a thread-safe first-time tracker. Fetchers use it to drop
// duplicate listings surfaced by overlapping result pages within a run.
type SeenSet struct {
	seen sync.Map
}

// NewSeenSet returns an empty tracker.
func NewSeenSet() *SeenSet {
	return &SeenSet{}
}

// MarkIfNew stores key if unseen and reports whether it was new. The
// empty key is never new.
func (s *SeenSet) MarkIfNew(key string) bool {
	if key == "" {
		return false
	}
	_, loaded := s.seen.LoadOrStore(key, struct{}{})
	return !loaded
}
