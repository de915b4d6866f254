package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRemaining(t *testing.T) {
	anchor := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		seconds int
		elapsed time.Duration
		want    int
	}{
		{"at start", 12, 0, 12},
		{"partial second rounds down elapsed", 12, 900 * time.Millisecond, 12},
		{"one second", 12, time.Second, 11},
		{"exactly done", 12, 12 * time.Second, 0},
		{"overrun clamps to zero", 12, time.Minute, 0},
		{"anchor in future", 12, -5 * time.Second, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remaining(tt.seconds, anchor, anchor.Add(tt.elapsed))
			if got != tt.want {
				t.Fatalf("Remaining(%d, +%v) = %d, want %d", tt.seconds, tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestRemaining_NonIncreasing(t *testing.T) {
	anchor := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := Remaining(90, anchor, anchor)
	for step := 1; step <= 200; step++ {
		got := Remaining(90, anchor, anchor.Add(time.Duration(step)*700*time.Millisecond))
		if got > prev {
			t.Fatalf("Remaining increased from %d to %d at step %d", prev, got, step)
		}
		if got < 0 {
			t.Fatalf("Remaining negative (%d) at step %d", got, step)
		}
		prev = got
	}
}

type recordingTarget struct {
	calls chan time.Time
}

func (r *recordingTarget) Extrapolate(now time.Time) {
	r.calls <- now
}

func TestRun_CallsTargetEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := &recordingTarget{calls: make(chan time.Time, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, clock, time.Second, target)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("ticker never registered: %v", err)
	}

	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		select {
		case <-target.calls:
		case <-time.After(time.Second):
			t.Fatalf("Extrapolate not called after tick %d", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
