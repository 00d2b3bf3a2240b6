// Package transport defines the capability contract the pairing state
// machine drives. Each physical transport (chunked streaming, single-shot
// tap) implements the same contract, keeping the state machine and ledger
// transport-agnostic.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrTransportUnavailable means the hardware or platform API is absent
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrPermissionDenied means the user declined access to the transport
	ErrPermissionDenied = errors.New("transport permission denied")

	// ErrConnectionFailed means connecting to a peer failed
	ErrConnectionFailed = errors.New("connection failed")

	// ErrChunkWriteFailed means a chunk write failed mid-transfer; the
	// whole transfer is aborted, the connection is left up for retry
	ErrChunkWriteFailed = errors.New("chunk write failed")

	// ErrReassemblyFailed means received chunks did not reassemble into a
	// parseable payload
	ErrReassemblyFailed = errors.New("reassembly failed")
)

// Availability is the result of a hardware availability probe. Probes never
// fail; any underlying error degrades to {false, false}.
type Availability struct {
	Available bool `json:"available"`
	Enabled   bool `json:"enabled"`
}

// Peer describes a discovered or connected remote device
type Peer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Transport is the capability contract implemented once per transport kind
type Transport interface {
	// Kind names the transport ("ble", "nfc")
	Kind() string

	// CheckAvailability probes the hardware. It never returns an error.
	CheckAvailability(ctx context.Context) Availability

	// MaxChunkSize is the largest payload one write may carry. Zero means
	// the transport takes the whole payload in a single shot.
	MaxChunkSize() int

	// Discover scans for peers on the emitter side, invoking found for
	// each descriptor seen. It returns when the scan completes or ctx is
	// cancelled; cancellation is a non-error stop.
	Discover(ctx context.Context, found func(Peer)) error

	// Connect establishes the connection to a discovered peer
	Connect(ctx context.Context, peerID string) error

	// Listen puts the transport into accept mode on the receiver side.
	// Inbound connections surface through OnConnectionChanged. The listen
	// session lasts until ctx is cancelled.
	Listen(ctx context.Context) error

	// SendFramed writes chunks in order, honoring the transport's payload
	// limit. A failed write aborts the remaining chunks.
	SendFramed(ctx context.Context, chunks [][]byte) error

	// SendAck writes a small acknowledgment payload to the peer
	SendAck(ctx context.Context, receipt []byte) error

	// OnDataReceived registers the callback that receives reassembled
	// payload bytes
	OnDataReceived(fn func(data []byte))

	// OnConnectionChanged registers the callback invoked when a
	// connection is established or lost
	OnConnectionChanged(fn func(connected bool, peer Peer))

	// Disconnect tears down the active connection, if any
	Disconnect() error
}
