package nfc

import (
	"context"
	"fmt"
	"sync"
)

// SimulatedDevice is an in-memory Device implementation. Two devices
// created as a pair behave like two phones held together: a write on one
// side surfaces as a scanned message on the other. Used by tests and the
// CLI demo mode.
type SimulatedDevice struct {
	mu             sync.Mutex
	peer           *SimulatedDevice
	scanning       bool
	onMessage      func(Message)
	DenyPermission bool
}

// NewSimulatedPair creates two devices in tap range of each other
func NewSimulatedPair() (*SimulatedDevice, *SimulatedDevice) {
	a := &SimulatedDevice{}
	b := &SimulatedDevice{}
	a.peer = b
	b.peer = a
	return a, b
}

// Availability reports the simulated controller as present and enabled
func (d *SimulatedDevice) Availability(ctx context.Context) (bool, bool, error) {
	return true, true, nil
}

// RequestPermission honors the DenyPermission test switch
func (d *SimulatedDevice) RequestPermission(ctx context.Context) error {
	if d.DenyPermission {
		return fmt.Errorf("nfc permission denied by user")
	}
	return nil
}

// Write delivers the message to the peer if it is scanning
func (d *SimulatedDevice) Write(ctx context.Context, msg Message) error {
	d.peer.mu.Lock()
	scanning := d.peer.scanning
	handler := d.peer.onMessage
	d.peer.mu.Unlock()

	if !scanning || handler == nil {
		return fmt.Errorf("no device in tap range")
	}
	handler(msg)
	return nil
}

// Scan registers the message handler until ctx ends
func (d *SimulatedDevice) Scan(ctx context.Context, onMessage func(Message)) error {
	d.mu.Lock()
	d.scanning = true
	d.onMessage = onMessage
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.scanning = false
		d.onMessage = nil
		d.mu.Unlock()
	}()
	return nil
}
