// Package countdown derives a smoothly advancing remaining time between the
// server's authoritative ticks.
package countdown

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is how often the local countdown is recomputed.
const DefaultInterval = time.Second

// Remaining returns max(0, seconds - whole seconds elapsed since anchor). An
// anchor in the future counts as no time elapsed.
func Remaining(seconds int, anchor, now time.Time) int {
	elapsed := now.Sub(anchor)
	if elapsed < 0 {
		elapsed = 0
	}
	left := seconds - int(elapsed/time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// Target receives periodic recompute requests.
type Target interface {
	Extrapolate(now time.Time)
}

// Run calls target.Extrapolate on every interval until ctx is done.
func Run(ctx context.Context, clock clockwork.Clock, interval time.Duration, target Target) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			target.Extrapolate(now)
		}
	}
}
