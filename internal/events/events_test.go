package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()

	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(RoleChanged{Role: RoleEmitter})

	assert.Equal(t, RoleChanged{Role: RoleEmitter}, <-a)
	assert.Equal(t, RoleChanged{Role: RoleEmitter}, <-b)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()

	slow, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(RoleChanged{Role: RoleEmitter})
	bus.Publish(RoleChanged{Role: RoleNone})

	assert.Equal(t, RoleChanged{Role: RoleEmitter}, <-slow)
	select {
	case ev := <-slow:
		t.Fatalf("overflow event should have been dropped, got %v", ev)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe(4)
	cancel()
	cancel()

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel must not panic
	bus.Publish(RoleChanged{Role: RoleReceiver})
}

func TestDefaultBufferSize(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe(0)
	defer cancel()

	for i := 0; i < 16; i++ {
		bus.Publish(PeerDiscovered{})
	}
	assert.Len(t, ch, 16)
}
