package ble

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexpay/offline-wallet/internal/transport"
)

// LoopbackLink is an in-memory Link implementation. Two links created as a
// pair behave like two radios in range of each other: one side listening
// is discoverable by the other, writes surface as notifications on the
// peer. Used by tests and the CLI demo mode.
type LoopbackLink struct {
	mu            sync.Mutex
	name          string
	peer          *LoopbackLink
	listening     bool
	acceptFn      func(transport.Peer)
	handlers      map[string]func([]byte)
	onPeerDropped func(string)
	connectedTo   *LoopbackLink
}

// NewLoopbackPair creates two links wired to each other
func NewLoopbackPair(nameA, nameB string) (*LoopbackLink, *LoopbackLink) {
	a := &LoopbackLink{name: nameA, handlers: make(map[string]func([]byte))}
	b := &LoopbackLink{name: nameB, handlers: make(map[string]func([]byte))}
	a.peer = b
	b.peer = a
	return a, b
}

// Availability reports the loopback radio as present and enabled
func (l *LoopbackLink) Availability(ctx context.Context) (bool, bool, error) {
	return true, true, nil
}

// Scan reports the peer if it is currently listening
func (l *LoopbackLink) Scan(ctx context.Context, found func(transport.Peer)) error {
	l.peer.mu.Lock()
	listening := l.peer.listening
	name := l.peer.name
	l.peer.mu.Unlock()

	if listening {
		found(transport.Peer{ID: name, Name: name})
	}
	return nil
}

// Connect attaches to the named peer if it is listening
func (l *LoopbackLink) Connect(ctx context.Context, peerID string) error {
	l.peer.mu.Lock()
	listening := l.peer.listening
	accept := l.peer.acceptFn
	l.peer.mu.Unlock()

	if l.peer.name != peerID {
		return fmt.Errorf("no peer %s in range", peerID)
	}
	if !listening {
		return fmt.Errorf("peer %s is not accepting connections", peerID)
	}

	l.mu.Lock()
	l.connectedTo = l.peer
	l.mu.Unlock()
	l.peer.mu.Lock()
	l.peer.connectedTo = l
	l.peer.mu.Unlock()

	if accept != nil {
		accept(transport.Peer{ID: l.name, Name: l.name})
	}
	return nil
}

// Listen makes this link discoverable and connectable until ctx ends
func (l *LoopbackLink) Listen(ctx context.Context, accepted func(transport.Peer)) error {
	l.mu.Lock()
	l.listening = true
	l.acceptFn = accepted
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		l.listening = false
		l.acceptFn = nil
		l.mu.Unlock()
	}()
	return nil
}

// Write delivers data to the peer's notification handler for the
// characteristic
func (l *LoopbackLink) Write(ctx context.Context, characteristic string, data []byte) error {
	l.mu.Lock()
	peer := l.connectedTo
	l.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("not connected")
	}

	peer.mu.Lock()
	handler := peer.handlers[characteristic]
	peer.mu.Unlock()

	if handler != nil {
		handler(append([]byte(nil), data...))
	}
	return nil
}

// Notify registers a notification handler for a characteristic
func (l *LoopbackLink) Notify(characteristic string, fn func(data []byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[characteristic] = fn
	return nil
}

// OnPeerDisconnected registers the peer-loss callback
func (l *LoopbackLink) OnPeerDisconnected(fn func(peerID string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onPeerDropped = fn
}

// Disconnect drops the active connection on both ends
func (l *LoopbackLink) Disconnect() error {
	l.mu.Lock()
	peer := l.connectedTo
	l.connectedTo = nil
	l.mu.Unlock()

	if peer != nil {
		peer.mu.Lock()
		peer.connectedTo = nil
		dropped := peer.onPeerDropped
		peer.mu.Unlock()
		if dropped != nil {
			dropped(l.name)
		}
	}
	return nil
}
