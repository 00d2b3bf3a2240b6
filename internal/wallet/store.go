package wallet

import (
	ledgerdb "github.com/nexpay/offline-wallet/internal/database"
	"github.com/nexpay/offline-wallet/internal/token"
)

// dbStore routes ledger persistence to the active database backend
type dbStore struct{}

// DBStore returns a Store backed by the initialized ledger database
func DBStore() Store {
	return dbStore{}
}

func (dbStore) SaveToken(t *token.OfflineToken) error {
	return ledgerdb.SaveToken(t)
}

func (dbStore) LoadTokens() ([]*token.OfflineToken, error) {
	return ledgerdb.LoadTokens()
}
