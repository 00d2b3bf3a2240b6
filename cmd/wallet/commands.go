package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/nexpay/offline-wallet/internal/token"
	"github.com/nexpay/offline-wallet/internal/wallet"
)

var createWalletCmd = &cobra.Command{
	Use:   "create [wallet-name] [password]",
	Short: "Create a new wallet",
	Long: `Create a new wallet with the given name and password.
	The generated seed phrase is printed once for backup.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		password := passwordArg(args, 1)

		if wallet.WalletExists(walletName) {
			fmt.Fprintf(os.Stderr, "Wallet %s already exists\n", walletName)
			os.Exit(1)
		}

		keys, err := wallet.CreateNewWallet(walletName, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating wallet: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Your new seed phrase is:")
		fmt.Println(keys.Mnemonic)
		fmt.Println("Please write this down and keep it safe.")
		fmt.Printf("Wallet address: %s\n", keys.Address())
	},
}

var importWalletCmd = &cobra.Command{
	Use:   "import [wallet-name] [password] [seed-phrase...]",
	Short: "Import an existing wallet from its seed phrase",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		password := args[1]
		mnemonic := strings.Join(args[2:], " ")

		keys, err := wallet.ImportWallet(walletName, mnemonic, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing wallet: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wallet imported. Address: %s\n", keys.Address())
	},
}

var addressCmd = &cobra.Command{
	Use:   "address [wallet-name] [password]",
	Short: "Show the wallet address and copy it to the clipboard",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		keys, err := wallet.LoadWallet(args[0], passwordArg(args, 1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening wallet: %v\n", err)
			os.Exit(1)
		}

		addr := keys.Address()
		fmt.Println(addr)
		if err := clipboard.WriteAll(addr); err == nil {
			fmt.Println("Address copied to clipboard.")
		}
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [wallet-name] [password]",
	Short: "Show spendable, confirmed and pending balances",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := printBalances(args[0], passwordArg(args, 1)); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading balance: %v\n", err)
			os.Exit(1)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [wallet-name] [password]",
	Short: "List every token this wallet has issued or received",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := printHistory(args[0], passwordArg(args, 1)); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			os.Exit(1)
		}
	},
}

var createTokenCmd = &cobra.Command{
	Use:   "create-token [wallet-name] [password] [amount]",
	Short: "Issue and sign an offline token without sending it",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		keys, ledger, err := openLedger(args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening wallet: %v\n", err)
			os.Exit(1)
		}

		t, err := keys.Signer().CreateToken(
			args[2],
			viper.GetString("default_contract_address"),
			viper.GetString("default_symbol"),
			viper.GetInt("default_decimals"),
			token.AssetFungible,
			ledger.ComputeBalance(),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating token: %v\n", err)
			os.Exit(1)
		}
		if err := ledger.RecordCreated(t); err != nil {
			fmt.Fprintf(os.Stderr, "Error recording token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Created token %s for %s %s\n", t.TransferID, t.Amount, t.Symbol)
		fmt.Printf("Spendable balance is now %s\n", ledger.ComputeBalance())
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [wallet-name] [password] [transfer-id] [status]",
	Short: "Apply an on-chain status transition to a stored token",
	Long:  `Apply a status transition (pending, confirmed, failed) to a token in the ledger.`,
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		_, ledger, err := openLedger(args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening wallet: %v\n", err)
			os.Exit(1)
		}

		if err := ledger.UpdateStatus(args[2], token.Status(args[3])); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating status: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Transfer %s is now %s\n", args[2], args[3])
	},
}

func printBalances(walletName, password string) error {
	_, ledger, err := openLedger(walletName, password)
	if err != nil {
		return err
	}

	fmt.Printf("Spendable: %s\n", ledger.ComputeBalance())
	fmt.Printf("Confirmed received: %s\n", ledger.ConfirmedBalance())
	fmt.Printf("Pending received: %s\n", ledger.PendingBalance())
	return nil
}

func printHistory(walletName, password string) error {
	_, ledger, err := openLedger(walletName, password)
	if err != nil {
		return err
	}

	tokens := ledger.Tokens()
	if len(tokens) == 0 {
		fmt.Println("No transfers yet.")
		return nil
	}

	for _, t := range tokens {
		direction := "sent"
		if t.ToAddress != nil && strings.EqualFold(*t.ToAddress, ledger.Address()) {
			direction = "received"
		}
		status := "unclaimed"
		if t.OnchainStatus != nil {
			status = string(*t.OnchainStatus)
		}
		fmt.Printf("%s  %s  %s %s  [%s]\n", t.TransferID, direction, t.Amount, t.Symbol, status)
	}
	return nil
}

// passwordArg returns the password argument if present, otherwise prompts
// for it without echo
func passwordArg(args []string, index int) string {
	if len(args) > index {
		return args[index]
	}
	return promptPassword()
}

func promptPassword() string {
	fmt.Print("Enter your wallet password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(passwordBytes))
}
