package ledgerdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/token"
)

// DB is the global SQLite database instance
var DB *gorm.DB

// SQLiteToken is the relational form of an offline token record
type SQLiteToken struct {
	TransferID      string  `gorm:"primaryKey"`
	TokenID         string  `gorm:"not null"`
	ContractAddress string  `gorm:"not null"`
	AssetKind       string  `gorm:"not null"`
	Amount          string  `gorm:"not null"`
	Decimals        int     `gorm:"not null"`
	Symbol          string
	FromAddress     string  `gorm:"index"`
	ToAddress       *string `gorm:"index"`
	Timestamp       int64
	Signature       string
	OnchainStatus   *string
}

// InitSQLiteDB initializes the SQLite database
func InitSQLiteDB(dbPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	// Configure GORM to be less verbose
	config := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	if err := DB.AutoMigrate(&SQLiteToken{}); err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}
	return nil
}

// SaveTokenToSQLite upserts a token row keyed by transferId
func SaveTokenToSQLite(t *token.OfflineToken) error {
	row := rowFromToken(t)
	result := DB.Save(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to store token %s: %v", t.TransferID, result.Error)
	}
	return nil
}

// GetTokenFromSQLite retrieves a single token by transferId
func GetTokenFromSQLite(transferID string) (*token.OfflineToken, error) {
	var row SQLiteToken
	result := DB.First(&row, "transfer_id = ?", transferID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("token %s not found", transferID)
		}
		return nil, fmt.Errorf("failed to query token %s: %v", transferID, result.Error)
	}
	return tokenFromRow(&row), nil
}

// LoadTokensFromSQLite returns every stored token row. Rows that no longer
// satisfy the token invariants are skipped with a warning.
func LoadTokensFromSQLite() ([]*token.OfflineToken, error) {
	var rows []SQLiteToken
	result := DB.Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load tokens: %v", result.Error)
	}

	var tokens []*token.OfflineToken
	for i := range rows {
		t := tokenFromRow(&rows[i])
		if t.Validate() != nil {
			logger.Warnf("Skipping invalid stored token %s", rows[i].TransferID)
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func rowFromToken(t *token.OfflineToken) SQLiteToken {
	row := SQLiteToken{
		TransferID:      t.TransferID,
		TokenID:         t.TokenID,
		ContractAddress: t.ContractAddress,
		AssetKind:       string(t.AssetKind),
		Amount:          t.Amount,
		Decimals:        t.Decimals,
		Symbol:          t.Symbol,
		FromAddress:     t.FromAddress,
		ToAddress:       t.ToAddress,
		Timestamp:       t.Timestamp,
		Signature:       t.Signature,
	}
	if t.OnchainStatus != nil {
		st := string(*t.OnchainStatus)
		row.OnchainStatus = &st
	}
	return row
}

func tokenFromRow(row *SQLiteToken) *token.OfflineToken {
	t := &token.OfflineToken{
		TransferID:      row.TransferID,
		TokenID:         row.TokenID,
		ContractAddress: row.ContractAddress,
		AssetKind:       token.AssetKind(row.AssetKind),
		Amount:          row.Amount,
		Decimals:        row.Decimals,
		Symbol:          row.Symbol,
		FromAddress:     row.FromAddress,
		ToAddress:       row.ToAddress,
		Timestamp:       row.Timestamp,
		Signature:       row.Signature,
	}
	if row.OnchainStatus != nil {
		st := token.Status(*row.OnchainStatus)
		t.OnchainStatus = &st
	}
	return t
}
