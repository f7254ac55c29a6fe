package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitEventReachesMatchingListener(t *testing.T) {
	defer RemoveAllListeners()

	received := make(chan interface{}, 1)
	AddEventListener(ActionCommittedEvent, func(msg interface{}) {
		received <- msg
	})
	AddEventListener(ListingUpdatedEvent, func(msg interface{}) {
		t.Errorf("unexpected listing event %v", msg)
	})

	EmitEvent(ActionCommittedEvent, "committed")

	select {
	case msg := <-received:
		assert.Equal(t, "committed", msg)
	case <-time.After(time.Second):
		require.Fail(t, "event was not delivered")
	}
}

func TestEmitEventWithoutListeners(t *testing.T) {
	RemoveAllListeners()
	assert.NotPanics(t, func() {
		EmitEvent(ListingUpdatedEvent, nil)
	})
}

func TestEmitEventKeepsOrder(t *testing.T) {
	defer RemoveAllListeners()

	const count = bufferSize * 2
	received := make(chan interface{}, count)
	AddEventListener(ActionCommittedEvent, func(msg interface{}) {
		received <- msg
	})

	for i := 0; i < count; i++ {
		EmitEvent(ActionCommittedEvent, i)
	}

	for i := 0; i < count; i++ {
		select {
		case msg := <-received:
			require.Equal(t, i, msg)
		case <-time.After(time.Second):
			require.Failf(t, "event was not delivered", "event %d", i)
		}
	}
}
