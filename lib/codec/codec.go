// Package codec serializes offline tokens and frames them for
// size-constrained transports. Framing adds no headers or sequence
// numbers: the transport's ordered-delivery guarantee is relied upon for
// reassembly order.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/nexpay/offline-wallet/internal/token"
)

// Encode serializes a token to its canonical JSON byte representation.
// Field order is irrelevant here; this is wire encoding, not the signed
// payload.
func Encode(t *token.OfflineToken) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("error encoding token: %w", err)
	}
	return data, nil
}

// Decode parses a wire representation back into a token. Returns
// ErrMalformedToken when required fields are absent or structurally
// invalid.
func Decode(data []byte) (*token.OfflineToken, error) {
	var t token.OfflineToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrMalformedToken, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Frame splits data into chunks of at most maxChunkSize octets, preserving
// order. The last chunk may be shorter. maxChunkSize must be at least 1.
func Frame(data []byte, maxChunkSize int) ([][]byte, error) {
	if maxChunkSize < 1 {
		return nil, fmt.Errorf("invalid chunk size %d", maxChunkSize)
	}

	chunks := make([][]byte, 0, (len(data)+maxChunkSize-1)/maxChunkSize)
	for i := 0; i < len(data); i += maxChunkSize {
		end := i + maxChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks, nil
}

// Reassemble concatenates chunks in receipt order
func Reassemble(chunks [][]byte) []byte {
	var size int
	for _, c := range chunks {
		size += len(c)
	}

	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
