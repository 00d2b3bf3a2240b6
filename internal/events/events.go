// Package events carries the engine's notification stream to observers
// (typically a UI layer). The notification set is closed; each category is
// a concrete variant type so observers never see untyped payloads.
package events

import (
	"sync"

	"github.com/nexpay/offline-wallet/internal/token"
	"github.com/nexpay/offline-wallet/internal/transport"
)

// Role is the pairing session's function. Roles are mutually exclusive: a
// wallet is idle, sending, or receiving, never more than one at a time.
type Role string

const (
	RoleNone     Role = "none"
	RoleEmitter  Role = "emitter"
	RoleReceiver Role = "receiver"
)

// Event is the closed set of notifications the engine publishes
type Event interface {
	event()
}

// RoleChanged is published when the pairing role transitions
type RoleChanged struct {
	Role Role
}

// ConnectionChanged is published when the active connection is established
// or torn down
type ConnectionChanged struct {
	Connected bool
	Peer      *transport.Peer
}

// PeerDiscovered is published for each newly seen peer during a scan
type PeerDiscovered struct {
	Peer transport.Peer
}

// PeerLost is published when a previously seen peer disconnects
type PeerLost struct {
	Peer transport.Peer
}

// PaymentReceived is published when a verified-decodable token arrives
type PaymentReceived struct {
	Token *token.OfflineToken
}

func (RoleChanged) event()       {}
func (ConnectionChanged) event() {}
func (PeerDiscovered) event()    {}
func (PeerLost) event()          {}
func (PaymentReceived) event()   {}

// Bus fans events out to subscribers. Subscribers receive over buffered
// channels; a subscriber that falls behind loses events rather than
// blocking the engine.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new observer. The returned cancel function
// unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber buffer full, drop
		}
	}
}
