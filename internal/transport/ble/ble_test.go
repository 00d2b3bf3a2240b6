package ble

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexpay/offline-wallet/internal/transport"
)

func newAdapterPair(t *testing.T) (*Adapter, *Adapter) {
	t.Helper()
	viper.Set("chunk_send_delay_ms", 1)
	t.Cleanup(func() { viper.Set("chunk_send_delay_ms", 0) })

	linkA, linkB := NewLoopbackPair("sender", "receiver")
	return NewAdapter(linkA), NewAdapter(linkB)
}

func connectPair(t *testing.T, ctx context.Context, sender, receiver *Adapter) {
	t.Helper()
	require.NoError(t, receiver.Listen(ctx))

	var discovered []transport.Peer
	require.NoError(t, sender.Discover(ctx, func(p transport.Peer) {
		discovered = append(discovered, p)
	}))
	require.Len(t, discovered, 1)
	require.NoError(t, sender.Connect(ctx, discovered[0].ID))
}

func TestAvailability(t *testing.T) {
	sender, _ := newAdapterPair(t)

	avail := sender.CheckAvailability(context.Background())
	assert.True(t, avail.Available)
	assert.True(t, avail.Enabled)
}

func TestDiscoverFindsListeningPeer(t *testing.T) {
	sender, receiver := newAdapterPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nobody listening yet
	var found []transport.Peer
	require.NoError(t, sender.Discover(ctx, func(p transport.Peer) { found = append(found, p) }))
	assert.Empty(t, found)

	require.NoError(t, receiver.Listen(ctx))
	require.NoError(t, sender.Discover(ctx, func(p transport.Peer) { found = append(found, p) }))
	require.Len(t, found, 1)
	assert.Equal(t, "receiver", found[0].ID)
}

func TestConnectToAbsentPeer(t *testing.T) {
	sender, _ := newAdapterPair(t)

	err := sender.Connect(context.Background(), "ghost")
	assert.ErrorIs(t, err, transport.ErrConnectionFailed)
}

func TestSendFramedReassembles(t *testing.T) {
	sender, receiver := newAdapterPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	receiver.OnDataReceived(func(data []byte) { received <- data })
	connectPair(t, ctx, sender, receiver)

	payload := []byte(`{"tokenId":"t1","amount":"100","padding":"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}`)
	chunks := [][]byte{}
	for len(payload) > 0 {
		n := MaxChunkSize
		if n > len(payload) {
			n = len(payload)
		}
		chunks = append(chunks, payload[:n])
		payload = payload[n:]
	}
	require.Greater(t, len(chunks), 1)

	require.NoError(t, sender.SendFramed(ctx, chunks))

	select {
	case data := <-received:
		assert.True(t, bytes.HasPrefix(data, []byte(`{"tokenId":"t1"`)))
	case <-time.After(time.Second):
		t.Fatal("payload never reassembled")
	}
}

func TestSendFramedRejectsOversizedChunk(t *testing.T) {
	sender, receiver := newAdapterPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connectPair(t, ctx, sender, receiver)

	oversized := bytes.Repeat([]byte("x"), MaxChunkSize+1)
	err := sender.SendFramed(ctx, [][]byte{oversized})
	assert.ErrorIs(t, err, transport.ErrChunkWriteFailed)
}

func TestSendFramedWithoutConnection(t *testing.T) {
	sender, _ := newAdapterPair(t)

	err := sender.SendFramed(context.Background(), [][]byte{[]byte("data")})
	assert.ErrorIs(t, err, transport.ErrChunkWriteFailed)
}

func TestAckReachesSender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	senderLink, receiverLink := NewLoopbackPair("sender", "receiver")
	sender := NewAdapter(senderLink)
	receiver := NewAdapter(receiverLink)

	acks := make(chan []byte, 1)
	require.NoError(t, senderLink.Notify(ApprovalCharUUID, func(data []byte) { acks <- data }))

	connectPair(t, ctx, sender, receiver)
	require.NoError(t, receiver.SendAck(ctx, []byte(`{"status":"received"}`)))

	select {
	case data := <-acks:
		assert.JSONEq(t, `{"status":"received"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("ack never arrived")
	}
}

func TestConnectionCallbacks(t *testing.T) {
	sender, receiver := newAdapterPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type change struct {
		connected bool
		peer      transport.Peer
	}
	senderChanges := make(chan change, 4)
	receiverChanges := make(chan change, 4)
	sender.OnConnectionChanged(func(c bool, p transport.Peer) { senderChanges <- change{c, p} })
	receiver.OnConnectionChanged(func(c bool, p transport.Peer) { receiverChanges <- change{c, p} })

	connectPair(t, ctx, sender, receiver)

	got := <-senderChanges
	assert.True(t, got.connected)
	assert.Equal(t, "receiver", got.peer.ID)

	got = <-receiverChanges
	assert.True(t, got.connected)
	assert.Equal(t, "sender", got.peer.ID)

	// Receiver side observes the drop through the link callback
	require.NoError(t, sender.Disconnect())
	got = <-senderChanges
	assert.False(t, got.connected)
	got = <-receiverChanges
	assert.False(t, got.connected)
}

func TestGarbageChunksAreBounded(t *testing.T) {
	sender, receiver := newAdapterPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	receiver.OnDataReceived(func(data []byte) { received <- data })
	connectPair(t, ctx, sender, receiver)

	// Never-completing JSON: the buffer fills, overflows, and is dropped
	junk := bytes.Repeat([]byte("["), MaxChunkSize)
	for i := 0; i < maxReassemblySize/MaxChunkSize+1; i++ {
		require.NoError(t, sender.SendFramed(ctx, [][]byte{junk}))
	}

	select {
	case <-received:
		t.Fatal("junk must never surface as a payload")
	default:
	}

	// A valid payload still goes through afterwards
	require.NoError(t, sender.SendFramed(ctx, [][]byte{[]byte(`{"ok":true}`)}))
	select {
	case data := <-received:
		assert.JSONEq(t, `{"ok":true}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("recovery payload never arrived")
	}
}
