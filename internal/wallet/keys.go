package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tyler-smith/go-bip39"

	"github.com/nexpay/offline-wallet/internal/token"
)

// Keys holds the wallet's key material. It is created once from a seed
// phrase, persisted encrypted, and never regenerated while valid state
// exists: the derived address must stay stable across sessions.
type Keys struct {
	Mnemonic   string
	PrivateKey *ecdsa.PrivateKey
}

// Signer returns a token signer bound to this wallet's key
func (k *Keys) Signer() *token.Signer {
	return token.NewSigner(k.PrivateKey)
}

// Address returns the wallet's public address
func (k *Keys) Address() string {
	return crypto.PubkeyToAddress(k.PrivateKey.PublicKey).Hex()
}

// CreateNewWallet generates a fresh seed phrase, derives the signing key
// and saves the encrypted seed to the wallet directory. The mnemonic is
// returned so the caller can present it for backup.
func CreateNewWallet(walletName, password string) (*Keys, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, fmt.Errorf("error generating entropy: %v", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("error generating mnemonic: %v", err)
	}

	keys, err := keysFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}

	if err := saveWalletData(walletName, encrypt(mnemonic, password)); err != nil {
		return nil, err
	}
	return keys, nil
}

// ImportWallet derives the signing key from an existing seed phrase and
// saves it under the given wallet name
func ImportWallet(walletName, mnemonic, password string) (*Keys, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid seed phrase")
	}

	keys, err := keysFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}

	if err := saveWalletData(walletName, encrypt(mnemonic, password)); err != nil {
		return nil, err
	}
	return keys, nil
}

// LoadWallet decrypts the stored seed phrase and re-derives the signing key
func LoadWallet(walletName, password string) (*Keys, error) {
	envFile := walletFile(walletName)
	env, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("error loading wallet file: %v", err)
	}

	encryptedSeed := env["ENCRYPTED_SEED_PHRASE"]
	if encryptedSeed == "" {
		return nil, fmt.Errorf("encrypted wallet data not found")
	}

	mnemonic, err := decrypt(encryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("error decrypting seed phrase: %v", err)
	}

	return keysFromMnemonic(mnemonic)
}

// WalletExists reports whether a wallet file with the given name is present
func WalletExists(walletName string) bool {
	_, err := os.Stat(walletFile(walletName))
	return err == nil
}

// keysFromMnemonic deterministically derives the secp256k1 signing key
// from the seed phrase. The same phrase always yields the same key and
// therefore the same address.
func keysFromMnemonic(mnemonic string) (*Keys, error) {
	seed := bip39.NewSeed(mnemonic, "")
	priv, err := crypto.ToECDSA(crypto.Keccak256(seed))
	if err != nil {
		return nil, fmt.Errorf("error deriving private key: %v", err)
	}
	return &Keys{Mnemonic: mnemonic, PrivateKey: priv}, nil
}

func saveWalletData(walletName, encryptedSeedPhrase string) error {
	dir := walletDir()
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating wallet directory: %v", err)
	}

	envFile := walletFile(walletName)
	err := godotenv.Write(map[string]string{
		"ENCRYPTED_SEED_PHRASE": encryptedSeedPhrase,
	}, envFile)
	if err != nil {
		return fmt.Errorf("error saving encrypted data: %v", err)
	}
	return nil
}

func walletDir() string {
	dir := viper.GetString("wallet_dir")
	if dir == "" {
		dir = "./wallets"
	}
	return dir
}

func walletFile(walletName string) string {
	return filepath.Join(walletDir(), walletName+".env")
}
