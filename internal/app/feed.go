package app

import (
	"sync"

	"quiz-session-service/internal/domain"
)

// ResultFeed fans completed-session results out to subscribers (the
// websocket result stream). It owns no session state.
type ResultFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.SessionResult]struct{}
}

func NewResultFeed() *ResultFeed {
	return &ResultFeed{subscribers: make(map[chan domain.SessionResult]struct{})}
}

// Subscribe returns a channel receiving completion events. The caller must
// invoke the returned cancel function to avoid leaks.
func (f *ResultFeed) Subscribe() (<-chan domain.SessionResult, func()) {
	ch := make(chan domain.SessionResult, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a result to all subscribers. A slow subscriber loses its
// oldest undelivered event rather than blocking the publisher.
func (f *ResultFeed) Publish(result domain.SessionResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- result:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- result
		}
	}
}
