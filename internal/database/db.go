package ledgerdb

import (
	"encoding/json"
	"fmt"

	"github.com/deroproject/graviton"

	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/token"
)

const (
	// TokensTreeName is the graviton tree holding the persisted ledger
	TokensTreeName = "offline_tokens"
)

// Store is the global Graviton store instance
var Store *graviton.Store

// InitDB opens (or creates) the Graviton store at dbPath
func InitDB(dbPath string) error {
	store, err := graviton.NewDiskStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open graviton store: %w", err)
	}
	Store = store
	return nil
}

// SaveTokenToGraviton upserts a token into the tokens tree keyed by its
// transferId and commits the tree.
func SaveTokenToGraviton(t *token.OfflineToken) error {
	tree, err := tokensTree()
	if err != nil {
		return err
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to serialize token %s: %w", t.TransferID, err)
	}

	if err := tree.Put([]byte(t.TransferID), data); err != nil {
		return fmt.Errorf("failed to store token %s: %w", t.TransferID, err)
	}

	if _, err := graviton.Commit(tree); err != nil {
		return fmt.Errorf("failed to commit tokens tree: %w", err)
	}
	return nil
}

// GetTokenFromGraviton retrieves a single token by transferId
func GetTokenFromGraviton(transferID string) (*token.OfflineToken, error) {
	tree, err := tokensTree()
	if err != nil {
		return nil, err
	}

	data, err := tree.Get([]byte(transferID))
	if err != nil {
		return nil, fmt.Errorf("token %s not found: %w", transferID, err)
	}

	var t token.OfflineToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse stored token %s: %w", transferID, err)
	}
	return &t, nil
}

// LoadTokensFromGraviton walks the tokens tree and returns every record
// that still parses. Records that fail to parse are skipped with a warning
// so one corrupt entry cannot take down the whole reload.
func LoadTokensFromGraviton() ([]*token.OfflineToken, error) {
	tree, err := tokensTree()
	if err != nil {
		return nil, err
	}

	var tokens []*token.OfflineToken
	cursor := tree.Cursor()
	for k, v, err := cursor.First(); err == nil; k, v, err = cursor.Next() {
		var t token.OfflineToken
		if err := json.Unmarshal(v, &t); err != nil {
			logger.Warnf("Skipping malformed stored token %s: %v", string(k), err)
			continue
		}
		if t.Validate() != nil {
			logger.Warnf("Skipping invalid stored token %s", string(k))
			continue
		}
		tokens = append(tokens, &t)
	}
	return tokens, nil
}

func tokensTree() (*graviton.Tree, error) {
	if Store == nil {
		return nil, fmt.Errorf("graviton store not initialized")
	}

	ss, err := Store.LoadSnapshot(0)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	tree, err := ss.GetTree(TokensTreeName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens tree: %w", err)
	}
	return tree, nil
}
