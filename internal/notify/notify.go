// Package notify fans out countdown and lifecycle cues to whoever plays them.
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Signal is a cue raised by the room store.
type Signal int

const (
	Start Signal = iota + 1
	Warn60
	Warn30
	TimeUp
)

func (s Signal) String() string {
	switch s {
	case Start:
		return "start"
	case Warn60:
		return "warn60s"
	case Warn30:
		return "warn30s"
	case TimeUp:
		return "timeUp"
	default:
		return "unknown"
	}
}

// Bus delivers each Signal to every subscriber without blocking the sender.
// The zero value is ready to use.
type Bus struct {
	mu   sync.Mutex
	subs []chan Signal
}

// Subscribe returns a channel receiving future signals. A subscriber that
// falls more than buffer signals behind misses the overflow.
func (b *Bus) Subscribe(buffer int) <-chan Signal {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Signal, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Notify implements the store's notifier.
func (b *Bus) Notify(sig Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- sig:
		default:
			log.Warn().Str("signal", sig.String()).Msg("notification subscriber full, dropping signal")
		}
	}
}
