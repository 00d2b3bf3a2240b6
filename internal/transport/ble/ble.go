// Package ble adapts the streaming low-energy transport to the common
// transport contract. Payloads move through a token characteristic in
// 20-byte chunks with a small pacing delay between writes; acknowledgments
// move through a separate approval characteristic.
package ble

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/transport"
)

// Service and characteristic identifiers shared by both peers
const (
	ServiceUUID      = "00001234-0000-1000-8000-00805f9b34fb"
	TokenCharUUID    = "00001235-0000-1000-8000-00805f9b34fb"
	ApprovalCharUUID = "00001236-0000-1000-8000-00805f9b34fb"

	// MaxChunkSize matches a conservative low-energy MTU
	MaxChunkSize = 20

	// maxReassemblySize bounds the receive buffer against a peer that
	// streams chunks without ever completing a payload
	maxReassemblySize = 64 * 1024
)

// Link is the opaque hardware primitive the adapter drives: scanning,
// connecting, characteristic writes and notifications. The real
// implementation talks to the radio stack; tests and the CLI demo use the
// in-memory loopback pair.
type Link interface {
	Availability(ctx context.Context) (available, enabled bool, err error)
	Scan(ctx context.Context, found func(transport.Peer)) error
	Connect(ctx context.Context, peerID string) error
	Listen(ctx context.Context, accepted func(transport.Peer)) error
	Write(ctx context.Context, characteristic string, data []byte) error
	Notify(characteristic string, fn func(data []byte)) error
	OnPeerDisconnected(fn func(peerID string))
	Disconnect() error
}

// Adapter implements transport.Transport over a Link
type Adapter struct {
	mu         sync.Mutex
	link       Link
	chunkDelay time.Duration
	onData     func([]byte)
	onConn     func(bool, transport.Peer)
	rxBuf      []byte
	connected  *transport.Peer
}

// NewAdapter wraps a link. The inter-chunk pacing delay is read from
// configuration (chunk_send_delay_ms, default 50).
func NewAdapter(link Link) *Adapter {
	delay := viper.GetInt("chunk_send_delay_ms")
	if delay <= 0 {
		delay = 50
	}

	a := &Adapter{
		link:       link,
		chunkDelay: time.Duration(delay) * time.Millisecond,
	}
	link.OnPeerDisconnected(a.handlePeerDisconnected)
	return a
}

// Kind names the transport
func (a *Adapter) Kind() string { return "ble" }

// MaxChunkSize is the largest payload one characteristic write may carry
func (a *Adapter) MaxChunkSize() int { return MaxChunkSize }

// CheckAvailability probes the radio. Any underlying error degrades to
// unavailable rather than surfacing.
func (a *Adapter) CheckAvailability(ctx context.Context) transport.Availability {
	available, enabled, err := a.link.Availability(ctx)
	if err != nil {
		logger.Warnf("BLE availability check failed: %v", err)
		return transport.Availability{}
	}
	return transport.Availability{Available: available, Enabled: enabled}
}

// Discover scans for advertising peers. Context cancellation is an
// idempotent, non-error stop.
func (a *Adapter) Discover(ctx context.Context, found func(transport.Peer)) error {
	err := a.link.Scan(ctx, found)
	if err == nil || err == context.Canceled || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%w: scan: %v", transport.ErrTransportUnavailable, err)
}

// Connect establishes the link to a peer and wires up notifications so the
// emitter can hear acknowledgments
func (a *Adapter) Connect(ctx context.Context, peerID string) error {
	if err := a.link.Connect(ctx, peerID); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionFailed, err)
	}

	peer := transport.Peer{ID: peerID, Connected: true}
	a.mu.Lock()
	a.connected = &peer
	onConn := a.onConn
	a.mu.Unlock()

	if onConn != nil {
		onConn(true, peer)
	}
	return nil
}

// Listen puts the link into accept mode. Payment notifications are wired
// up as soon as an inbound connection arrives.
func (a *Adapter) Listen(ctx context.Context) error {
	if err := a.link.Notify(TokenCharUUID, a.handleChunk); err != nil {
		return fmt.Errorf("%w: notifications: %v", transport.ErrTransportUnavailable, err)
	}

	err := a.link.Listen(ctx, func(peer transport.Peer) {
		peer.Connected = true
		a.mu.Lock()
		a.connected = &peer
		a.rxBuf = nil
		onConn := a.onConn
		a.mu.Unlock()

		if onConn != nil {
			onConn(true, peer)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: listen: %v", transport.ErrTransportUnavailable, err)
	}
	return nil
}

// SendFramed writes chunks strictly in order with the pacing delay between
// writes. A failed write aborts the rest of the transfer; the connection
// stays up so the caller may retry.
func (a *Adapter) SendFramed(ctx context.Context, chunks [][]byte) error {
	for i, chunk := range chunks {
		if len(chunk) > MaxChunkSize {
			return fmt.Errorf("%w: chunk %d exceeds %d bytes", transport.ErrChunkWriteFailed, i, MaxChunkSize)
		}
		if err := a.link.Write(ctx, TokenCharUUID, chunk); err != nil {
			return fmt.Errorf("%w: chunk %d/%d: %v", transport.ErrChunkWriteFailed, i+1, len(chunks), err)
		}

		if i < len(chunks)-1 {
			select {
			case <-time.After(a.chunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// SendAck writes a receipt to the approval characteristic
func (a *Adapter) SendAck(ctx context.Context, receipt []byte) error {
	if err := a.link.Write(ctx, ApprovalCharUUID, receipt); err != nil {
		return fmt.Errorf("%w: ack: %v", transport.ErrChunkWriteFailed, err)
	}
	return nil
}

// OnDataReceived registers the reassembled-payload callback
func (a *Adapter) OnDataReceived(fn func(data []byte)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onData = fn
}

// OnConnectionChanged registers the connection lifecycle callback
func (a *Adapter) OnConnectionChanged(fn func(connected bool, peer transport.Peer)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onConn = fn
}

// Disconnect tears down the active connection
func (a *Adapter) Disconnect() error {
	err := a.link.Disconnect()

	a.mu.Lock()
	peer := a.connected
	a.connected = nil
	a.rxBuf = nil
	onConn := a.onConn
	a.mu.Unlock()

	if peer != nil && onConn != nil {
		peer.Connected = false
		onConn(false, *peer)
	}
	return err
}

// handleChunk accumulates notification payloads until they form a complete
// JSON document, then delivers the reassembled bytes. Chunks carry no
// headers; the transport's ordered delivery is what makes this valid.
func (a *Adapter) handleChunk(data []byte) {
	a.mu.Lock()
	a.rxBuf = append(a.rxBuf, data...)
	if len(a.rxBuf) > maxReassemblySize {
		logger.Warnf("BLE reassembly buffer overflow, dropping %d bytes: %v", len(a.rxBuf), transport.ErrReassemblyFailed)
		a.rxBuf = nil
		a.mu.Unlock()
		return
	}
	if !json.Valid(a.rxBuf) {
		a.mu.Unlock()
		return
	}

	payload := a.rxBuf
	a.rxBuf = nil
	onData := a.onData
	a.mu.Unlock()

	if onData != nil {
		onData(payload)
	}
}

func (a *Adapter) handlePeerDisconnected(peerID string) {
	a.mu.Lock()
	peer := a.connected
	if peer == nil || peer.ID != peerID {
		a.mu.Unlock()
		return
	}
	a.connected = nil
	a.rxBuf = nil
	onConn := a.onConn
	a.mu.Unlock()

	if onConn != nil {
		p := *peer
		p.Connected = false
		onConn(false, p)
	}
}
