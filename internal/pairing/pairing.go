// Package pairing drives the role lifecycle of an offline payment session:
// idle, emitter (sender) or receiver. One manager owns one transport; the
// role is a single value, so at most one outbound transfer or inbound
// listen session can exist per wallet at a time.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nexpay/offline-wallet/internal/events"
	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/token"
	"github.com/nexpay/offline-wallet/internal/transport"
	"github.com/nexpay/offline-wallet/lib/codec"
)

var (
	// ErrRoleMismatch means the operation is not valid in the current
	// role, or requires an active connection that is not there
	ErrRoleMismatch = errors.New("operation not valid in current role")

	// ErrPeerNotFound means the requested peer is not among the
	// discovered peers
	ErrPeerNotFound = errors.New("peer not found")
)

// Receipt is the acknowledgment a receiver writes back after accepting a
// payment
type Receipt struct {
	TokenID   string `json:"tokenId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Manager is the transport-agnostic pairing state machine
type Manager struct {
	mu            sync.Mutex
	role          events.Role
	tr            transport.Transport
	bus           *events.Bus
	discovered    map[string]transport.Peer
	active        *transport.Peer
	lastConnected string
	cancelListen  context.CancelFunc
}

// NewManager wires a manager to its transport. Incoming payloads are
// decoded and published as payment-received events; they are only
// accepted while a role that can receive is active.
func NewManager(tr transport.Transport, bus *events.Bus) *Manager {
	m := &Manager{
		role:       events.RoleNone,
		tr:         tr,
		bus:        bus,
		discovered: make(map[string]transport.Peer),
	}

	tr.OnDataReceived(m.handleData)
	tr.OnConnectionChanged(m.handleConnectionChanged)
	return m
}

// Role returns the current pairing role
func (m *Manager) Role() events.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// ActivePeer returns the connected peer, if any
func (m *Manager) ActivePeer() *transport.Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	p := *m.active
	return &p
}

// DiscoveredPeers returns the peers seen during the current emitter session
func (m *Manager) DiscoveredPeers() []transport.Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.Peer, 0, len(m.discovered))
	for _, p := range m.discovered {
		out = append(out, p)
	}
	return out
}

// CheckAvailability probes the underlying transport; it never fails
func (m *Manager) CheckAvailability(ctx context.Context) transport.Availability {
	return m.tr.CheckAvailability(ctx)
}

// StartAsEmitter moves the session from idle to the sender role. Discovery
// state from any previous session is cleared; nothing is connected yet.
func (m *Manager) StartAsEmitter() error {
	m.mu.Lock()
	if m.role != events.RoleNone {
		m.mu.Unlock()
		return fmt.Errorf("%w: already %s", ErrRoleMismatch, m.role)
	}
	m.role = events.RoleEmitter
	m.discovered = make(map[string]transport.Peer)
	m.mu.Unlock()

	m.bus.Publish(events.RoleChanged{Role: events.RoleEmitter})
	return nil
}

// Scan discovers peers while in the emitter role. Each newly seen peer is
// added to the discovered set and announced; duplicates are not re-added.
func (m *Manager) Scan(ctx context.Context) error {
	m.mu.Lock()
	if m.role != events.RoleEmitter {
		m.mu.Unlock()
		return fmt.Errorf("%w: must be emitter to scan", ErrRoleMismatch)
	}
	m.mu.Unlock()

	return m.tr.Discover(ctx, func(p transport.Peer) {
		m.mu.Lock()
		if m.role != events.RoleEmitter {
			m.mu.Unlock()
			return
		}
		if _, seen := m.discovered[p.ID]; seen {
			m.mu.Unlock()
			return
		}
		m.discovered[p.ID] = p
		m.mu.Unlock()

		m.bus.Publish(events.PeerDiscovered{Peer: p})
	})
}

// ConnectToPeer connects to a previously discovered peer
func (m *Manager) ConnectToPeer(ctx context.Context, peerID string) error {
	m.mu.Lock()
	if m.role != events.RoleEmitter {
		m.mu.Unlock()
		return fmt.Errorf("%w: must be emitter to connect", ErrRoleMismatch)
	}
	if _, ok := m.discovered[peerID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	m.mu.Unlock()

	if err := m.tr.Connect(ctx, peerID); err != nil {
		return err
	}

	m.mu.Lock()
	m.lastConnected = peerID
	m.mu.Unlock()
	return nil
}

// TryReconnect re-establishes the connection to the last connected peer,
// scanning first if it is no longer in the discovered set
func (m *Manager) TryReconnect(ctx context.Context) error {
	m.mu.Lock()
	last := m.lastConnected
	role := m.role
	_, known := m.discovered[last]
	m.mu.Unlock()

	if last == "" || role != events.RoleEmitter {
		return nil
	}

	if !known {
		if err := m.Scan(ctx); err != nil {
			return err
		}
	}
	if err := m.ConnectToPeer(ctx, last); err != nil {
		logger.Warnf("Failed to reconnect to last peer %s: %v", last, err)
		return err
	}
	return nil
}

// AdvertiseAsReceiver moves the session from idle to the receiver role and
// puts the transport into accept mode. An inbound connection becomes the
// active connection. A listen failure resets the role to idle.
func (m *Manager) AdvertiseAsReceiver(ctx context.Context) error {
	m.mu.Lock()
	if m.role != events.RoleNone {
		m.mu.Unlock()
		return fmt.Errorf("%w: already %s", ErrRoleMismatch, m.role)
	}
	m.role = events.RoleReceiver
	listenCtx, cancel := context.WithCancel(ctx)
	m.cancelListen = cancel
	m.mu.Unlock()

	m.bus.Publish(events.RoleChanged{Role: events.RoleReceiver})

	if err := m.tr.Listen(listenCtx); err != nil {
		m.mu.Lock()
		m.role = events.RoleNone
		m.cancelListen = nil
		m.mu.Unlock()
		cancel()

		m.bus.Publish(events.RoleChanged{Role: events.RoleNone})
		return err
	}
	return nil
}

// SendToken encodes, frames and sends a token to the connected peer.
// Valid only while the emitter role holds an active connection; a chunk
// write failure aborts the transfer but leaves the connection up so the
// caller may retry.
func (m *Manager) SendToken(ctx context.Context, t *token.OfflineToken) error {
	m.mu.Lock()
	if m.role != events.RoleEmitter {
		m.mu.Unlock()
		return fmt.Errorf("%w: must be emitter to send", ErrRoleMismatch)
	}
	if m.active == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no active connection", ErrRoleMismatch)
	}
	m.mu.Unlock()

	data, err := codec.Encode(t)
	if err != nil {
		return err
	}

	chunkSize := m.tr.MaxChunkSize()
	if chunkSize <= 0 {
		chunkSize = len(data)
	}
	chunks, err := codec.Frame(data, chunkSize)
	if err != nil {
		return err
	}

	logger.Infof("Sending token %s in %d chunks over %s", t.TransferID, len(chunks), m.tr.Kind())
	return m.tr.SendFramed(ctx, chunks)
}

// AcknowledgePayment writes a receipt for an accepted token back to the
// sender. Valid only while the receiver role holds an active connection.
func (m *Manager) AcknowledgePayment(ctx context.Context, t *token.OfflineToken) error {
	m.mu.Lock()
	if m.role != events.RoleReceiver || m.active == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: not in receiver mode or not connected", ErrRoleMismatch)
	}
	m.mu.Unlock()

	receipt, err := json.Marshal(Receipt{
		TokenID:   t.TokenID,
		Status:    "received",
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return m.tr.SendAck(ctx, receipt)
}

// ResetRole tears down the active connection, clears discovery state and
// returns the session to idle. Idempotent: calling it from idle is a
// no-op, not an error.
func (m *Manager) ResetRole() error {
	m.mu.Lock()
	if m.role == events.RoleNone {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancelListen
	m.cancelListen = nil
	m.role = events.RoleNone
	m.discovered = make(map[string]transport.Peer)
	m.active = nil
	m.lastConnected = ""
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := m.tr.Disconnect(); err != nil {
		logger.Warnf("Error disconnecting transport during role reset: %v", err)
	}

	m.bus.Publish(events.RoleChanged{Role: events.RoleNone})
	return nil
}

// handleData decodes an incoming payload and publishes it. Payloads are
// only accepted while a session is active; data arriving in the idle role
// is dropped.
func (m *Manager) handleData(data []byte) {
	m.mu.Lock()
	role := m.role
	m.mu.Unlock()
	if role == events.RoleNone {
		logger.Warn("Dropping payload received outside an active session")
		return
	}

	t, err := codec.Decode(data)
	if err != nil {
		logger.Warnf("Error decoding received payload: %v", err)
		return
	}

	logger.Infof("Payment received: transfer %s amount %s %s", t.TransferID, t.Amount, t.Symbol)
	m.bus.Publish(events.PaymentReceived{Token: t})
}

func (m *Manager) handleConnectionChanged(connected bool, peer transport.Peer) {
	m.mu.Lock()
	if connected {
		m.active = &peer
	} else {
		m.active = nil
	}
	m.mu.Unlock()

	if connected {
		m.bus.Publish(events.ConnectionChanged{Connected: true, Peer: &peer})
	} else {
		m.bus.Publish(events.PeerLost{Peer: peer})
		m.bus.Publish(events.ConnectionChanged{Connected: false, Peer: &peer})
	}
}
