package broker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	b := NewBroker[int]()
	require.ErrorIs(t, b.Publish(1), ErrNoSubscribers)

	fast := b.Subscribe("fast", 10)
	slow := b.Subscribe("slow", 1)

	for i := range 3 {
		require.NoError(t, b.Publish(i))
	}

	require.Equal(t, 0, <-fast)
	require.Equal(t, 1, <-fast)
	require.Equal(t, 2, <-fast)
	require.Equal(t, 0, <-slow)
	require.Equal(t, uint64(0), b.Dropped("fast"))
	require.Equal(t, uint64(2), b.Dropped("slow"))

	b.Unsubscribe("slow")
	_, ok := <-slow
	require.False(t, ok)

	b.Close()
	_, ok = <-fast
	require.False(t, ok)

	_, ok = <-b.Subscribe("late", 1)
	require.False(t, ok)
	require.ErrorIs(t, b.Publish(4), ErrNoSubscribers)
}

func TestBrokerResubscribe(t *testing.T) {
	b := NewBroker[string]()
	first := b.Subscribe("ui", 1)
	second := b.Subscribe("ui", 1)

	_, ok := <-first
	require.False(t, ok)

	require.NoError(t, b.Publish("OK"))
	require.Equal(t, "OK", <-second)
}
