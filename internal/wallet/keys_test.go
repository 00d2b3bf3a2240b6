package wallet

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "legal winner thank year wave sausage worth useful legal winner thank year wave sausage worth useful legal winner thank year wave sausage worth title"

func useTempWalletDir(t *testing.T) {
	t.Helper()
	viper.Set("wallet_dir", t.TempDir())
	t.Cleanup(func() { viper.Set("wallet_dir", "") })
}

func TestCreateAndLoadWallet(t *testing.T) {
	useTempWalletDir(t)

	created, err := CreateNewWallet("alice", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, created.Mnemonic)
	require.True(t, WalletExists("alice"))

	loaded, err := LoadWallet("alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.Mnemonic, loaded.Mnemonic)
	assert.Equal(t, created.Address(), loaded.Address())
}

func TestLoadWalletWrongPassword(t *testing.T) {
	useTempWalletDir(t)

	_, err := CreateNewWallet("alice", "correct horse")
	require.NoError(t, err)

	_, err = LoadWallet("alice", "wrong horse")
	assert.Error(t, err)
}

func TestLoadWalletMissing(t *testing.T) {
	useTempWalletDir(t)

	_, err := LoadWallet("nobody", "password")
	assert.Error(t, err)
	assert.False(t, WalletExists("nobody"))
}

func TestImportWalletDeterministicAddress(t *testing.T) {
	useTempWalletDir(t)

	first, err := ImportWallet("alice", testMnemonic, "pw")
	require.NoError(t, err)
	second, err := ImportWallet("bob", testMnemonic, "other-pw")
	require.NoError(t, err)

	// Same seed phrase, same key, same address
	assert.Equal(t, first.Address(), second.Address())
}

func TestImportWalletRejectsInvalidMnemonic(t *testing.T) {
	useTempWalletDir(t)

	_, err := ImportWallet("alice", "definitely not a valid seed phrase", "pw")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext := encrypt("the secret seed", "password")
	require.NotEqual(t, "the secret seed", ciphertext)

	plaintext, err := decrypt(ciphertext, "password")
	require.NoError(t, err)
	assert.Equal(t, "the secret seed", plaintext)

	_, err = decrypt(ciphertext, "not the password")
	assert.Error(t, err)
}
