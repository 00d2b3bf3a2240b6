package token

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// personalMessagePrefix is the EIP-191 prefix for a 32-byte message, the
// same framing ethers.js applies in signMessage. Both peers must agree on
// it for recovery to produce the issuer's address.
const personalMessagePrefix = "\x19Ethereum Signed Message:\n32"

// Signer issues and verifies offline tokens on behalf of one wallet key.
// Verification is stateless and works on tokens from any issuer; signing
// always uses the wallet's own key.
type Signer struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewSigner wraps a secp256k1 private key
func NewSigner(priv *ecdsa.PrivateKey) *Signer {
	return &Signer{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Address returns the wallet's public address in checksummed hex
func (s *Signer) Address() string {
	return s.address.Hex()
}

// CreateToken allocates a new transfer, signs it and returns it ready for
// the wire. The available balance is supplied by the caller (the ledger
// owns balance state, not the signer); amounts above it fail with
// ErrInsufficientBalance.
func (s *Signer) CreateToken(amount, contractAddress, symbol string, decimals int, kind AssetKind, available string) (*OfflineToken, error) {
	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok || amt.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %q is not a positive decimal integer", ErrMalformedToken, amount)
	}
	avail, ok := new(big.Int).SetString(available, 10)
	if !ok {
		return nil, fmt.Errorf("%w: available balance %q is not a decimal integer", ErrMalformedToken, available)
	}
	if amt.Cmp(avail) > 0 {
		return nil, ErrInsufficientBalance
	}

	transferID, err := newTransferID()
	if err != nil {
		return nil, fmt.Errorf("error generating transfer id: %w", err)
	}

	t := &OfflineToken{
		TokenID:         uuid.NewString(),
		ContractAddress: contractAddress,
		AssetKind:       kind,
		Amount:          amount,
		Decimals:        decimals,
		Symbol:          symbol,
		FromAddress:     s.Address(),
		ToAddress:       nil,
		TransferID:      transferID,
		Timestamp:       time.Now().UnixMilli(),
		OnchainStatus:   nil,
	}

	sig, err := s.Sign(t)
	if err != nil {
		return nil, err
	}
	t.Signature = sig

	return t, nil
}

// Sign computes the recoverable signature over the token's canonical
// payload with the wallet's private key
func (s *Signer) Sign(t *OfflineToken) (string, error) {
	sig, err := crypto.Sign(signingDigest(t), s.priv)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	// Shift the recovery id to the 27/28 convention used on the wire
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// Verify recomputes the canonical payload from the token's current field
// values, recovers the signer from the signature and compares it to the
// declared fromAddress. It is total over malformed input: any parse or
// recovery error yields false, never an error.
func Verify(t *OfflineToken) bool {
	if t == nil || t.Signature == "" || t.FromAddress == "" {
		return false
	}

	sig, err := hexutil.Decode(t.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	// Accept both raw (0/1) and shifted (27/28) recovery ids
	if sig[64] >= 27 {
		sig = append(bytes.Clone(sig[:64]), sig[64]-27)
	}

	pub, err := crypto.SigToPub(signingDigest(t), sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), t.FromAddress)
}

// ReceiveToken claims an incoming token for this wallet. The signature is
// checked against the payload as sent (toAddress still null); a copy is
// returned with toAddress set to this wallet and status pending.
func (s *Signer) ReceiveToken(t *OfflineToken) (*OfflineToken, error) {
	if !Verify(t) {
		return nil, ErrInvalidSignature
	}

	received := t.Clone()
	addr := s.Address()
	received.ToAddress = &addr
	st := StatusPending
	received.OnchainStatus = &st
	return received, nil
}

// signingDigest hashes the canonical payload and applies the personal
// message prefix, mirroring solidityPackedKeccak256 + signMessage on the
// issuing side.
func signingDigest(t *OfflineToken) []byte {
	hash := crypto.Keccak256(signingPayload(t))
	return crypto.Keccak256([]byte(personalMessagePrefix), hash)
}

// signingPayload concatenates, in fixed field order, every economically
// meaningful field: transferId, contractAddress, amount, timestamp,
// fromAddress and a numeric encoding of toAddress (zero while unclaimed).
// Strings are packed as raw UTF-8 bytes, integers as 32-byte big-endian
// words, matching Solidity tight packing.
func signingPayload(t *OfflineToken) []byte {
	to := new(big.Int)
	if t.ToAddress != nil {
		if addr, ok := new(big.Int).SetString(strings.TrimPrefix(*t.ToAddress, "0x"), 16); ok {
			to = addr
		}
	}

	var buf bytes.Buffer
	buf.WriteString(t.TransferID)
	buf.WriteString(t.ContractAddress)
	buf.WriteString(t.Amount)
	buf.Write(common.LeftPadBytes(new(big.Int).SetInt64(t.Timestamp).Bytes(), 32))
	buf.WriteString(t.FromAddress)
	buf.Write(common.LeftPadBytes(to.Bytes(), 32))
	return buf.Bytes()
}

// newTransferID returns a random 128-bit identifier as 0x-prefixed hex
func newTransferID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}
