package audit

import (
	"sync"

	"github.com/markgromer/titan-mcp-server/internal/store"
)

// subscriberBuffer bounds how far a live-tail consumer may fall behind
// before it starts missing records.
const subscriberBuffer = 32

// Bus distributes freshly written audit records to live subscribers,
// chiefly the SSE tail endpoint.
type Bus struct {
	mu   sync.RWMutex
	subs map[<-chan *store.AuditRecord]chan *store.AuditRecord
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[<-chan *store.AuditRecord]chan *store.AuditRecord),
	}
}

// Subscribe registers a listener. Callers must Unsubscribe when done or
// the channel leaks.
func (b *Bus) Subscribe() <-chan *store.AuditRecord {
	ch := make(chan *store.AuditRecord, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe drops a listener and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan *store.AuditRecord) {
	b.mu.Lock()
	if send, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(send)
	}
	b.mu.Unlock()
}

// Publish delivers rec to every subscriber with buffer room. Recording a
// tool call must never stall on a stuck tail, so delivery is best effort
// and a lagging subscriber misses records instead of applying backpressure.
func (b *Bus) Publish(rec *store.AuditRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}
