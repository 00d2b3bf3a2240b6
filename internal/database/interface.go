package ledgerdb

import "github.com/nexpay/offline-wallet/internal/token"

// DatabaseType represents the type of database backend to use
type DatabaseType string

const (
	// DBTypeGraviton represents the Graviton database backend
	DBTypeGraviton DatabaseType = "graviton"
	// DBTypeSQLite represents the SQLite database backend
	DBTypeSQLite DatabaseType = "sqlite"
)

// DBBackend is the global variable that holds the active database backend
var DBBackend DatabaseType = DBTypeGraviton

// SetDatabaseBackend sets the database backend type
func SetDatabaseBackend(dbType DatabaseType) {
	DBBackend = dbType
}

// InitializeDatabase initializes the database using the specified backend
func InitializeDatabase(dbPath string) error {
	switch DBBackend {
	case DBTypeSQLite:
		return InitSQLiteDB(dbPath)
	default:
		return InitDB(dbPath)
	}
}

// SaveToken upserts a token record keyed by its transferId
func SaveToken(t *token.OfflineToken) error {
	switch DBBackend {
	case DBTypeSQLite:
		return SaveTokenToSQLite(t)
	default:
		return SaveTokenToGraviton(t)
	}
}

// GetToken retrieves a single token record by transferId
func GetToken(transferID string) (*token.OfflineToken, error) {
	switch DBBackend {
	case DBTypeSQLite:
		return GetTokenFromSQLite(transferID)
	default:
		return GetTokenFromGraviton(transferID)
	}
}

// LoadTokens returns every stored token record. Malformed stored records
// are skipped with a logged warning rather than aborting the whole reload.
func LoadTokens() ([]*token.OfflineToken, error) {
	switch DBBackend {
	case DBTypeSQLite:
		return LoadTokensFromSQLite()
	default:
		return LoadTokensFromGraviton()
	}
}
