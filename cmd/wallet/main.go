package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nexpay/offline-wallet/internal/config"
	ledgerdb "github.com/nexpay/offline-wallet/internal/database"
	"github.com/nexpay/offline-wallet/internal/logger"
	"github.com/nexpay/offline-wallet/internal/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "offline-wallet",
	Short: "Offline Payment Wallet CLI",
	Long:  `A wallet for exchanging signed value tokens between two devices without a live network connection.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(createWalletCmd)
	rootCmd.AddCommand(importWalletCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(createTokenCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(demoSendCmd)
	rootCmd.AddCommand(demoTapCmd)
	rootCmd.AddCommand(statusCmd)
}

func initConfig() {
	err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
}

func main() {
	initConfig()
	if len(os.Args) > 1 {
		// CLI mode
		if err := rootCmd.Execute(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	} else {
		// Interactive mode
		interactiveMode()
	}
}

func interactiveMode() {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOffline Payment Wallet")
		fmt.Println("1. Create a new wallet")
		fmt.Println("2. Import an existing wallet")
		fmt.Println("3. Show balance")
		fmt.Println("4. Transfer history")
		fmt.Println("5. Exit")
		fmt.Print("\nEnter your choice (1-5): ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			name, password := promptNameAndPassword(reader)
			keys, err := wallet.CreateNewWallet(name, password)
			if err != nil {
				log.Printf("Error creating wallet: %s", err)
				continue
			}
			fmt.Println("Your new seed phrase is:")
			fmt.Println(keys.Mnemonic)
			fmt.Println("Please write this down and keep it safe.")
			fmt.Printf("Wallet address: %s\n", keys.Address())
		case "2":
			name, password := promptNameAndPassword(reader)
			fmt.Print("Enter your seed phrase: ")
			mnemonic, _ := reader.ReadString('\n')
			keys, err := wallet.ImportWallet(name, strings.TrimSpace(mnemonic), password)
			if err != nil {
				log.Printf("Error importing wallet: %s", err)
				continue
			}
			fmt.Printf("Wallet imported. Address: %s\n", keys.Address())
		case "3":
			name, password := promptNameAndPassword(reader)
			if err := printBalances(name, password); err != nil {
				log.Printf("Error reading balance: %s", err)
			}
		case "4":
			name, password := promptNameAndPassword(reader)
			if err := printHistory(name, password); err != nil {
				log.Printf("Error reading history: %s", err)
			}
		case "5":
			fmt.Println("Exiting program. Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

func promptNameAndPassword(reader *bufio.Reader) (string, string) {
	fmt.Print("Wallet name: ")
	name, _ := reader.ReadString('\n')
	password := promptPassword()
	return strings.TrimSpace(name), password
}

// openLedger loads the wallet keys, initializes the configured ledger
// backend and restores the persisted token set
func openLedger(walletName, password string) (*wallet.Keys, *wallet.Ledger, error) {
	keys, err := wallet.LoadWallet(walletName, password)
	if err != nil {
		return nil, nil, err
	}

	backend := ledgerdb.DatabaseType(viper.GetString("ledger_backend"))
	ledgerdb.SetDatabaseBackend(backend)
	if err := ledgerdb.InitializeDatabase(viper.GetString("ledger_db_path")); err != nil {
		return nil, nil, err
	}

	ledger, err := wallet.NewLedger(keys.Address(), viper.GetString("initial_balance"), wallet.DBStore())
	if err != nil {
		return nil, nil, err
	}
	if err := ledger.Restore(); err != nil {
		return nil, nil, err
	}
	return keys, ledger, nil
}
