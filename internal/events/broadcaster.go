package events

import (
	"sync"
	"time"
)

// Kind names what changed in the ledger.
type Kind string

const (
	KindIncomes Kind = "incomes"
	KindTrades  Kind = "trades"
	KindBalance Kind = "balance"
)

// LedgerEvent announces a ledger change for one account.
// Amounts are strings to avoid float precision issues in consumers.
type LedgerEvent struct {
	Timestamp time.Time `json:"ts"`
	Account   string    `json:"account"`
	Kind      Kind      `json:"kind"`
	Symbol    string    `json:"symbol,omitempty"`
	Count     int64     `json:"count,omitempty"`
	Total     string    `json:"total,omitempty"`
}

// Broadcaster fans out ledger events to all subscribers via buffered channels.
// A nil Broadcaster drops everything.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan LedgerEvent]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan LedgerEvent]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
func (b *Broadcaster) Publish(e LedgerEvent) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan LedgerEvent {
	ch := make(chan LedgerEvent, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan LedgerEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
