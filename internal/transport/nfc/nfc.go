// Package nfc adapts the single-shot tap transport to the common transport
// contract. A transfer is one NDEF-style message carrying the token twice:
// a structured application/json record and a plain-text fallback with the
// same JSON, so a reader can use whichever record type it supports.
package nfc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/transport"
)

const (
	RecordTypeMime = "mime"
	RecordTypeText = "text"
	MediaTypeJSON  = "application/json"

	// paymentTokenTag distinguishes real transfers from accidental or
	// foreign tap data
	paymentTokenTag = "payment_token"

	// tapPeerID is the synthetic descriptor for the device in tap range;
	// proximity itself is the discovery and the connection
	tapPeerID = "nfc-tap"
)

// Record is one entry of a tap message
type Record struct {
	RecordType string
	MediaType  string
	Data       []byte
}

// Message is the single-shot payload exchanged on a tap
type Message struct {
	Records []Record
}

// Device is the opaque hardware primitive the adapter drives. The real
// implementation talks to the NFC controller; tests use the simulated
// pair.
type Device interface {
	Availability(ctx context.Context) (available, enabled bool, err error)
	RequestPermission(ctx context.Context) error
	Write(ctx context.Context, msg Message) error
	Scan(ctx context.Context, onMessage func(Message)) error
}

// Adapter implements transport.Transport over a Device
type Adapter struct {
	mu        sync.Mutex
	device    Device
	onData    func([]byte)
	onConn    func(bool, transport.Peer)
	connected *transport.Peer
}

// NewAdapter wraps an NFC device
func NewAdapter(device Device) *Adapter {
	return &Adapter{device: device}
}

// Kind names the transport
func (a *Adapter) Kind() string { return "nfc" }

// MaxChunkSize is zero: the tap message takes the whole payload in one shot
func (a *Adapter) MaxChunkSize() int { return 0 }

// CheckAvailability probes the NFC controller. Any underlying error
// degrades to unavailable.
func (a *Adapter) CheckAvailability(ctx context.Context) transport.Availability {
	available, enabled, err := a.device.Availability(ctx)
	if err != nil {
		logger.Warnf("NFC availability check failed: %v", err)
		return transport.Availability{}
	}
	return transport.Availability{Available: available, Enabled: enabled}
}

// Discover reports the synthetic tap target. Proximity is the real
// discovery mechanism, so there is nothing to scan for.
func (a *Adapter) Discover(ctx context.Context, found func(transport.Peer)) error {
	found(transport.Peer{ID: tapPeerID, Name: "Device in tap range"})
	return nil
}

// Connect requests permission and marks the tap target as the active
// connection
func (a *Adapter) Connect(ctx context.Context, peerID string) error {
	if peerID != tapPeerID {
		return fmt.Errorf("%w: unknown tap target %s", transport.ErrConnectionFailed, peerID)
	}
	if err := a.device.RequestPermission(ctx); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPermissionDenied, err)
	}

	peer := transport.Peer{ID: tapPeerID, Name: "Device in tap range", Connected: true}
	a.mu.Lock()
	a.connected = &peer
	onConn := a.onConn
	a.mu.Unlock()

	if onConn != nil {
		onConn(true, peer)
	}
	return nil
}

// Listen starts reading taps. The first valid payment message also marks
// the tapping device as connected so a receipt can be written back.
func (a *Adapter) Listen(ctx context.Context) error {
	if err := a.device.RequestPermission(ctx); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPermissionDenied, err)
	}
	if err := a.device.Scan(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("%w: scan: %v", transport.ErrTransportUnavailable, err)
	}
	return nil
}

// SendFramed writes the whole payload as one tap message. Chunking does
// not apply to the tap transport, so the chunks are joined back together.
func (a *Adapter) SendFramed(ctx context.Context, chunks [][]byte) error {
	var payload []byte
	for _, c := range chunks {
		payload = append(payload, c...)
	}

	wire, err := encodeTapPayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrChunkWriteFailed, err)
	}

	msg := Message{Records: []Record{
		{RecordType: RecordTypeMime, MediaType: MediaTypeJSON, Data: wire},
		{RecordType: RecordTypeText, Data: wire},
	}}
	if err := a.device.Write(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrChunkWriteFailed, err)
	}
	return nil
}

// SendAck writes a receipt back on the next tap
func (a *Adapter) SendAck(ctx context.Context, receipt []byte) error {
	msg := Message{Records: []Record{
		{RecordType: RecordTypeMime, MediaType: MediaTypeJSON, Data: receipt},
	}}
	if err := a.device.Write(ctx, msg); err != nil {
		return fmt.Errorf("%w: ack: %v", transport.ErrChunkWriteFailed, err)
	}
	return nil
}

// OnDataReceived registers the payload callback
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

// Disconnect clears the tap association
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	peer := a.connected
	a.connected = nil
	onConn := a.onConn
	a.mu.Unlock()

	if peer != nil && onConn != nil {
		p := *peer
		p.Connected = false
		onConn(false, p)
	}
	return nil
}

// handleMessage extracts the first record that validates as a payment
// token. Records that fail to parse or carry foreign data are skipped.
func (a *Adapter) handleMessage(msg Message) {
	for _, record := range msg.Records {
		var candidate []byte
		switch {
		case record.RecordType == RecordTypeMime && record.MediaType == MediaTypeJSON:
			candidate = record.Data
		case record.RecordType == RecordTypeText:
			candidate = record.Data
		default:
			continue
		}

		payload, err := decodeTapPayload(candidate)
		if err != nil {
			logger.Debugf("Ignoring tap record: %v", err)
			continue
		}

		peer := transport.Peer{ID: tapPeerID, Name: "Device in tap range", Connected: true}
		a.mu.Lock()
		wasConnected := a.connected != nil
		a.connected = &peer
		onConn := a.onConn
		onData := a.onData
		a.mu.Unlock()

		if !wasConnected && onConn != nil {
			onConn(true, peer)
		}
		if onData != nil {
			onData(payload)
		}
		return
	}
	logger.Warn("No valid token data found in tap message")
}

// encodeTapPayload tags canonical token JSON for the tap wire: the type
// field carries the payment_token tag and the asset kind moves to its own
// field so no information is lost.
func encodeTapPayload(tokenJSON []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(tokenJSON, &fields); err != nil {
		return nil, fmt.Errorf("payload is not a token object: %v", err)
	}

	if kind, ok := fields["type"]; ok {
		fields["assetKind"] = kind
	}
	fields["type"] = json.RawMessage(`"` + paymentTokenTag + `"`)
	return json.Marshal(fields)
}

// decodeTapPayload validates a tap record and returns canonical token
// JSON. A record is a payment token only if it is an object with a string
// amount, a string contractAddress and the payment_token type tag.
func decodeTapPayload(data []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("not a JSON object: %v", err)
	}

	var tag string
	if err := json.Unmarshal(fields["type"], &tag); err != nil || tag != paymentTokenTag {
		return nil, fmt.Errorf("missing payment token tag")
	}
	var amount string
	if err := json.Unmarshal(fields["amount"], &amount); err != nil {
		return nil, fmt.Errorf("amount is not a string")
	}
	var contract string
	if err := json.Unmarshal(fields["contractAddress"], &contract); err != nil {
		return nil, fmt.Errorf("contractAddress is not a string")
	}

	if kind, ok := fields["assetKind"]; ok {
		fields["type"] = kind
		delete(fields, "assetKind")
	} else {
		fields["type"] = json.RawMessage(`"ERC20"`)
	}
	return json.Marshal(fields)
}
