package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(2)
	a, c := b.Subscribe(), b.Subscribe()

	b.Publish(LedgerEvent{Account: "main", Kind: KindIncomes, Count: 3})

	for _, ch := range []chan LedgerEvent{a, c} {
		e := <-ch
		assert.Equal(t, "main", e.Account)
		assert.Equal(t, int64(3), e.Count)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(LedgerEvent{Account: "a"})
	b.Publish(LedgerEvent{Account: "b"})

	e := <-ch
	assert.Equal(t, "a", e.Account)
	assert.Empty(t, ch)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(0)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	require.False(t, open)
}

func TestBroadcaster_NilIsNoop(t *testing.T) {
	var b *Broadcaster
	assert.NotPanics(t, func() { b.Publish(LedgerEvent{}) })
}
