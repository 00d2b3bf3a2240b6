package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("ledger_db_path", "./dev_ledger.db")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("ledger_db_path", "/var/lib/offline-wallet/ledger.db")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("wallet_name", "")
	viper.SetDefault("wallet_dir", "./wallets")
	viper.SetDefault("log_file", "wallet.log")
	viper.SetDefault("ledger_backend", "graviton") // or "sqlite"
	viper.SetDefault("initial_balance", "1000")
	viper.SetDefault("default_contract_address", "0x0000000000000000000000000000000000000000")
	viper.SetDefault("default_symbol", "TOKEN")
	viper.SetDefault("default_decimals", 18)
	viper.SetDefault("chunk_send_delay_ms", 50)
	viper.SetDefault("availability_poll_interval", "5s")
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	// Write the default configuration to a file
	err := viper.SafeWriteConfigAs("config.json")
	if err != nil {
		if os.IsExist(err) {
			// If the config already exists, attempt to overwrite it
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	return nil
}
