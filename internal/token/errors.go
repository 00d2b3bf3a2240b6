package token

import "errors"

var (
	// ErrInsufficientBalance means the requested amount exceeds the
	// spendable balance supplied by the caller.
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")

	// ErrInvalidSignature means the recovered signer does not match the
	// token's declared fromAddress.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrMalformedToken means a required field is missing or structurally
	// invalid.
	ErrMalformedToken = errors.New("malformed token")
)
