package httpapi

import (
	"sync"

	"github.com/ent0n29/musebot/internal/protocol"
)

// Feed fans outbound messages out to connected websocket observers. Slow
// subscribers lose messages rather than stall the webhook path.
type Feed struct {
	mu   sync.Mutex
	subs map[chan protocol.Outbound]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan protocol.Outbound]struct{})}
}

// Subscribe registers a new observer channel.
func (f *Feed) Subscribe() chan protocol.Outbound {
	ch := make(chan protocol.Outbound, 64)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (f *Feed) Unsubscribe(ch chan protocol.Outbound) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}

// Publish delivers msg to every subscriber, dropping it for any whose buffer
// is full.
func (f *Feed) Publish(msg protocol.Outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
