package token

import (
	"math/big"
)

// AssetKind identifies the class of asset a token moves. Wire values follow
// the Ethereum contract standards the contract addresses point at.
type AssetKind string

const (
	// AssetFungible is a fungible token (ERC20-style)
	AssetFungible AssetKind = "ERC20"
	// AssetNonFungible is a non-fungible token (ERC721-style)
	AssetNonFungible AssetKind = "ERC721"
	// AssetMultiToken is a multi-token asset (ERC1155-style)
	AssetMultiToken AssetKind = "ERC1155"
)

// Status is the on-chain lifecycle state of a claimed token. An unclaimed
// token carries no status (nil pointer, JSON null).
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// OfflineToken is a signed, self-contained value-transfer claim usable
// without network connectivity. Once signed it is immutable: the signature
// covers every field except Signature and OnchainStatus, so any mutation of
// the economic fields invalidates it.
type OfflineToken struct {
	TokenID         string    `json:"tokenId"`
	ContractAddress string    `json:"contractAddress"`
	AssetKind       AssetKind `json:"type"`
	Amount          string    `json:"amount"`
	Decimals        int       `json:"decimals"`
	Symbol          string    `json:"symbol"`
	FromAddress     string    `json:"fromAddress"`
	ToAddress       *string   `json:"toAddress"`
	TransferID      string    `json:"transferId"`
	Timestamp       int64     `json:"timestamp"`
	Signature       string    `json:"signature"`
	OnchainStatus   *Status   `json:"onchainStatus"`
}

// Clone returns a deep copy of the token so callers can hand copies to
// observers without exposing their own mutable record.
func (t *OfflineToken) Clone() *OfflineToken {
	c := *t
	if t.ToAddress != nil {
		to := *t.ToAddress
		c.ToAddress = &to
	}
	if t.OnchainStatus != nil {
		st := *t.OnchainStatus
		c.OnchainStatus = &st
	}
	return &c
}

// Validate checks the structural invariants a token must satisfy before it
// can enter the ledger or the wire. Returns ErrMalformedToken when a
// required field is missing or the amount is not a decimal integer string.
func (t *OfflineToken) Validate() error {
	if t.TokenID == "" {
		return ErrMalformedToken
	}
	if t.ContractAddress == "" {
		return ErrMalformedToken
	}
	if t.TransferID == "" {
		return ErrMalformedToken
	}
	if !validAmount(t.Amount) {
		return ErrMalformedToken
	}
	return nil
}

// CanTransition reports whether an on-chain status change is legal:
// null -> pending -> {confirmed, failed}, no reverse transitions and no
// skipping pending.
func CanTransition(from *Status, to Status) bool {
	if from == nil {
		return to == StatusPending
	}
	if *from == StatusPending {
		return to == StatusConfirmed || to == StatusFailed
	}
	return false
}

// validAmount accepts non-negative decimal integer strings only. Amounts
// never pass through a native float so precision is preserved.
func validAmount(s string) bool {
	if s == "" {
		return false
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return false
	}
	return n.Sign() >= 0
}
