package wallet

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/token"
)

// Store is the durable key-value capability the ledger persists through.
// The database package provides the production implementation; tests may
// pass nil to keep the ledger in memory only.
type Store interface {
	SaveToken(t *token.OfflineToken) error
	LoadTokens() ([]*token.OfflineToken, error)
}

// Ledger owns this wallet's view of the token set: every token it has
// issued or received, keyed by transferId. Tokens are never deleted;
// status transitions represent lifecycle, not removal.
type Ledger struct {
	mu             sync.Mutex
	address        string
	initialBalance *big.Int
	tokens         map[string]*token.OfflineToken
	lastUpdated    time.Time
	store          Store
	subscribers    []func()
}

// NewLedger creates a ledger for the given wallet address with a known
// initial issued balance
func NewLedger(address, initialBalance string, store Store) (*Ledger, error) {
	initial, ok := new(big.Int).SetString(initialBalance, 10)
	if !ok || initial.Sign() < 0 {
		return nil, fmt.Errorf("invalid initial balance %q", initialBalance)
	}

	return &Ledger{
		address:        address,
		initialBalance: initial,
		tokens:         make(map[string]*token.OfflineToken),
		store:          store,
	}, nil
}

// Address returns the wallet address this ledger reconciles for
func (l *Ledger) Address() string {
	return l.address
}

// Subscribe registers a callback invoked after every ledger mutation
func (l *Ledger) Subscribe(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// RecordCreated records a token this wallet has issued. The upsert is
// idempotent: re-recording the same transferId replaces the entry.
func (l *Ledger) RecordCreated(t *token.OfflineToken) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return l.upsert(t)
}

// RecordReceived records a token claimed by this wallet
func (l *Ledger) RecordReceived(t *token.OfflineToken) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return l.upsert(t)
}

// UpdateStatus applies an on-chain status transition to a stored token.
// Only forward transitions are applied; re-applying the current status is
// a no-op, anything else is rejected. The transition is committed to
// memory only after the store accepts it, so a persist failure leaves the
// ledger and the store in agreement.
func (l *Ledger) UpdateStatus(transferID string, status token.Status) error {
	l.mu.Lock()
	t, ok := l.tokens[transferID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("unknown transfer %s", transferID)
	}

	if t.OnchainStatus != nil && *t.OnchainStatus == status {
		l.mu.Unlock()
		return nil
	}
	if !token.CanTransition(t.OnchainStatus, status) {
		l.mu.Unlock()
		return fmt.Errorf("illegal status transition for transfer %s", transferID)
	}

	updated := t.Clone()
	st := status
	updated.OnchainStatus = &st
	if err := l.persistLocked(updated); err != nil {
		l.mu.Unlock()
		return err
	}
	l.tokens[transferID] = updated
	l.lastUpdated = time.Now()
	subs := append([]func(){}, l.subscribers...)
	l.mu.Unlock()

	l.notify(subs)
	return nil
}

// ComputeBalance derives the spendable balance:
//
//	initial − Σ sent (not failed) + Σ received confirmed
//
// Sent tokens are deducted immediately on issuance (optimistic debit) so
// the same funds cannot be spent twice while a transfer is in flight;
// failed sends are credited back by exclusion from the debit sum.
// Pending received tokens do not count until confirmed. This call never
// fails: unparseable amounts are skipped.
func (l *Ledger) ComputeBalance() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := new(big.Int).Set(l.initialBalance)
	for _, t := range l.tokens {
		amount, ok := new(big.Int).SetString(t.Amount, 10)
		if !ok {
			logger.Warnf("Skipping token %s with unparseable amount in balance computation", t.TransferID)
			continue
		}

		if strings.EqualFold(t.FromAddress, l.address) {
			if t.OnchainStatus == nil || *t.OnchainStatus != token.StatusFailed {
				balance.Sub(balance, amount)
			}
			continue
		}
		if t.ToAddress != nil && strings.EqualFold(*t.ToAddress, l.address) {
			if t.OnchainStatus != nil && *t.OnchainStatus == token.StatusConfirmed {
				balance.Add(balance, amount)
			}
		}
	}
	return balance.String()
}

// ConfirmedBalance sums the confirmed subset of received tokens
func (l *Ledger) ConfirmedBalance() string {
	return l.receivedSum(token.StatusConfirmed)
}

// PendingBalance sums the pending subset of received tokens
func (l *Ledger) PendingBalance() string {
	return l.receivedSum(token.StatusPending)
}

// Tokens returns a copy of every known token, oldest first
func (l *Ledger) Tokens() []*token.OfflineToken {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*token.OfflineToken, 0, len(l.tokens))
	for _, t := range l.tokens {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Get returns a copy of a single token by transferId
func (l *Ledger) Get(transferID string) (*token.OfflineToken, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[transferID]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// LastUpdated returns the time of the last ledger mutation
func (l *Ledger) LastUpdated() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUpdated
}

// Restore reloads the persisted token set at startup. Malformed stored
// records were already skipped by the store; whatever parses is adopted.
func (l *Ledger) Restore() error {
	if l.store == nil {
		return nil
	}

	stored, err := l.store.LoadTokens()
	if err != nil {
		return fmt.Errorf("error restoring ledger: %w", err)
	}

	l.mu.Lock()
	for _, t := range stored {
		l.tokens[t.TransferID] = t
	}
	l.lastUpdated = time.Now()
	subs := append([]func(){}, l.subscribers...)
	l.mu.Unlock()

	if len(stored) > 0 {
		logger.Infof("Restored %d tokens from ledger store", len(stored))
		l.notify(subs)
	}
	return nil
}

func (l *Ledger) upsert(t *token.OfflineToken) error {
	l.mu.Lock()
	stored := t.Clone()
	l.tokens[stored.TransferID] = stored
	l.lastUpdated = time.Now()
	if err := l.persistLocked(stored); err != nil {
		l.mu.Unlock()
		return err
	}
	subs := append([]func(){}, l.subscribers...)
	l.mu.Unlock()

	l.notify(subs)
	return nil
}

func (l *Ledger) persistLocked(t *token.OfflineToken) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveToken(t); err != nil {
		return fmt.Errorf("error persisting token %s: %w", t.TransferID, err)
	}
	return nil
}

func (l *Ledger) receivedSum(status token.Status) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum := new(big.Int)
	for _, t := range l.tokens {
		if t.ToAddress == nil || !strings.EqualFold(*t.ToAddress, l.address) {
			continue
		}
		if t.OnchainStatus == nil || *t.OnchainStatus != status {
			continue
		}
		amount, ok := new(big.Int).SetString(t.Amount, 10)
		if !ok {
			continue
		}
		sum.Add(sum, amount)
	}
	return sum.String()
}

// notify runs subscriber callbacks outside the ledger lock
func (l *Ledger) notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
