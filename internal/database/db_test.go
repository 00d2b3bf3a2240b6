package ledgerdb

import (
	"path/filepath"
	"testing"

	"github.com/deroproject/graviton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexpay/offline-wallet/internal/token"
)

func storedToken(transferID string) *token.OfflineToken {
	to := "0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc"
	st := token.StatusPending
	return &token.OfflineToken{
		TokenID:         "tok-" + transferID,
		ContractAddress: "0xabc",
		AssetKind:       token.AssetFungible,
		Amount:          "100",
		Decimals:        18,
		Symbol:          "TOKEN",
		FromAddress:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		ToAddress:       &to,
		TransferID:      transferID,
		Timestamp:       1717171717000,
		Signature:       "0xsig",
		OnchainStatus:   &st,
	}
}

func initGraviton(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "ledger")))
	t.Cleanup(func() { Store = nil })
}

func TestGravitonRoundTrip(t *testing.T) {
	initGraviton(t)

	original := storedToken("0x01")
	require.NoError(t, SaveTokenToGraviton(original))

	got, err := GetTokenFromGraviton("0x01")
	require.NoError(t, err)
	assert.Equal(t, original, got)

	_, err = GetTokenFromGraviton("0xmissing")
	assert.Error(t, err)
}

func TestGravitonUpsert(t *testing.T) {
	initGraviton(t)

	tok := storedToken("0x01")
	require.NoError(t, SaveTokenToGraviton(tok))

	st := token.StatusConfirmed
	tok.OnchainStatus = &st
	require.NoError(t, SaveTokenToGraviton(tok))

	tokens, err := LoadTokensFromGraviton()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, token.StatusConfirmed, *tokens[0].OnchainStatus)
}

func TestGravitonLoadSkipsCorruptRecords(t *testing.T) {
	initGraviton(t)

	require.NoError(t, SaveTokenToGraviton(storedToken("0x01")))
	require.NoError(t, SaveTokenToGraviton(storedToken("0x02")))

	// Plant a record that is not a token at all
	ss, err := Store.LoadSnapshot(0)
	require.NoError(t, err)
	tree, err := ss.GetTree(TokensTreeName)
	require.NoError(t, err)
	require.NoError(t, tree.Put([]byte("0xjunk"), []byte("not json")))
	require.NoError(t, tree.Put([]byte("0xbad"), []byte(`{"tokenId":"t","amount":"nope"}`)))
	_, err = graviton.Commit(tree)
	require.NoError(t, err)

	tokens, err := LoadTokensFromGraviton()
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestGravitonUninitialized(t *testing.T) {
	Store = nil

	assert.Error(t, SaveTokenToGraviton(storedToken("0x01")))
	_, err := LoadTokensFromGraviton()
	assert.Error(t, err)
}

func initSQLite(t *testing.T) {
	t.Helper()
	require.NoError(t, InitSQLiteDB(filepath.Join(t.TempDir(), "ledger.db")))
	t.Cleanup(func() { DB = nil })
}

func TestSQLiteRoundTrip(t *testing.T) {
	initSQLite(t)

	original := storedToken("0x01")
	require.NoError(t, SaveTokenToSQLite(original))

	got, err := GetTokenFromSQLite("0x01")
	require.NoError(t, err)
	assert.Equal(t, original, got)

	_, err = GetTokenFromSQLite("0xmissing")
	assert.Error(t, err)
}

func TestSQLiteUpsert(t *testing.T) {
	initSQLite(t)

	tok := storedToken("0x01")
	require.NoError(t, SaveTokenToSQLite(tok))

	st := token.StatusFailed
	tok.OnchainStatus = &st
	require.NoError(t, SaveTokenToSQLite(tok))

	tokens, err := LoadTokensFromSQLite()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, token.StatusFailed, *tokens[0].OnchainStatus)
}

func TestSQLiteLoadSkipsInvalidRows(t *testing.T) {
	initSQLite(t)

	require.NoError(t, SaveTokenToSQLite(storedToken("0x01")))

	// A row that violates the amount invariant
	bad := SQLiteToken{TransferID: "0xbad", TokenID: "t", ContractAddress: "0xabc", Amount: "nope"}
	require.NoError(t, DB.Save(&bad).Error)

	tokens, err := LoadTokensFromSQLite()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestBackendDispatch(t *testing.T) {
	prev := DBBackend
	t.Cleanup(func() { DBBackend = prev })

	SetDatabaseBackend(DBTypeSQLite)
	require.NoError(t, InitializeDatabase(filepath.Join(t.TempDir(), "ledger.db")))
	t.Cleanup(func() { DB = nil })

	tok := storedToken("0x01")
	require.NoError(t, SaveToken(tok))

	got, err := GetToken("0x01")
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	tokens, err := LoadTokens()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}
