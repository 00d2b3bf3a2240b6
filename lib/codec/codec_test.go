package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexpay/offline-wallet/internal/token"
)

func sampleToken() *token.OfflineToken {
	to := "0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc"
	st := token.StatusPending
	return &token.OfflineToken{
		TokenID:         "d3f1a2b4-1111-2222-3333-444455556666",
		ContractAddress: "0xabc",
		AssetKind:       token.AssetFungible,
		Amount:          "100",
		Decimals:        18,
		Symbol:          "TOKEN",
		FromAddress:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		ToAddress:       &to,
		TransferID:      "0x0123456789abcdef0123456789abcdef",
		Timestamp:       1717171717000,
		Signature:       "0xdeadbeef",
		OnchainStatus:   &st,
	}
}

func TestRoundTrip(t *testing.T) {
	original := sampleToken()

	data, err := Encode(original)
	require.NoError(t, err)

	for _, chunkSize := range []int{1, 2, 7, 19, 20, 21, len(data), len(data) + 100} {
		chunks, err := Frame(data, chunkSize)
		require.NoError(t, err, "chunk size %d", chunkSize)

		decoded, err := Decode(Reassemble(chunks))
		require.NoError(t, err, "chunk size %d", chunkSize)
		assert.Equal(t, original, decoded, "chunk size %d", chunkSize)
	}
}

func TestFrameChunkLengths(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 47)

	chunks, err := Frame(payload, 20)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 20)
	assert.Len(t, chunks[1], 20)
	assert.Len(t, chunks[2], 7)
	assert.Equal(t, payload, Reassemble(chunks))
}

func TestFrameRejectsInvalidChunkSize(t *testing.T) {
	_, err := Frame([]byte("data"), 0)
	assert.Error(t, err)
	_, err = Frame([]byte("data"), -1)
	assert.Error(t, err)
}

func TestFrameEmptyPayload(t *testing.T) {
	chunks, err := Frame(nil, 20)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, Reassemble(chunks))
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        "chunky garbage",
		"missing tokenId": `{"contractAddress":"0xabc","amount":"100","transferId":"0x01"}`,
		"missing amount":  `{"tokenId":"t1","contractAddress":"0xabc","transferId":"0x01"}`,
		"float amount":    `{"tokenId":"t1","contractAddress":"0xabc","amount":"1.5","transferId":"0x01"}`,
		"numeric amount":  `{"tokenId":"t1","contractAddress":"0xabc","amount":100,"transferId":"0x01"}`,
	}

	for name, payload := range cases {
		_, err := Decode([]byte(payload))
		assert.ErrorIs(t, err, token.ErrMalformedToken, name)
	}
}

func TestEncodeRejectsInvalidToken(t *testing.T) {
	bad := sampleToken()
	bad.TokenID = ""
	_, err := Encode(bad)
	assert.ErrorIs(t, err, token.ErrMalformedToken)
}

func TestEncodePreservesNullFields(t *testing.T) {
	tok := sampleToken()
	tok.ToAddress = nil
	tok.OnchainStatus = nil

	data, err := Encode(tok)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"toAddress":null`)
	assert.Contains(t, string(data), `"onchainStatus":null`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.ToAddress)
	assert.Nil(t, decoded.OnchainStatus)
}
