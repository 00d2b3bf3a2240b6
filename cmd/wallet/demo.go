package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nexpay/offline-wallet/internal/events"
	"github.com/nexpay/offline-wallet/internal/pairing"
	"github.com/nexpay/offline-wallet/internal/token"
	"github.com/nexpay/offline-wallet/internal/transport"
	"github.com/nexpay/offline-wallet/internal/transport/ble"
	"github.com/nexpay/offline-wallet/internal/transport/nfc"
)

// The demo commands run both ends of a transfer in one process over the
// in-memory links, exercising the full protocol path: issue, sign, frame,
// send, reassemble, verify, claim, acknowledge.

var demoSendCmd = &cobra.Command{
	Use:   "demo-send [wallet-name] [password] [amount]",
	Short: "Send a token to a simulated peer over the streaming transport",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		linkA, linkB := ble.NewLoopbackPair("sender", "receiver")
		if err := runDemoTransfer(args[0], args[1], args[2], ble.NewAdapter(linkA), ble.NewAdapter(linkB)); err != nil {
			fmt.Fprintf(os.Stderr, "Demo transfer failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var demoTapCmd = &cobra.Command{
	Use:   "demo-tap [wallet-name] [password] [amount]",
	Short: "Send a token to a simulated peer over the tap transport",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		devA, devB := nfc.NewSimulatedPair()
		if err := runDemoTransfer(args[0], args[1], args[2], nfc.NewAdapter(devA), nfc.NewAdapter(devB)); err != nil {
			fmt.Fprintf(os.Stderr, "Demo transfer failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe each transport once and report availability",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		linkA, _ := ble.NewLoopbackPair("local", "probe")
		devA, _ := nfc.NewSimulatedPair()
		for _, tr := range []transport.Transport{ble.NewAdapter(linkA), nfc.NewAdapter(devA)} {
			avail := tr.CheckAvailability(ctx)
			fmt.Printf("%s: available=%t enabled=%t\n", tr.Kind(), avail.Available, avail.Enabled)
		}
	},
}

func runDemoTransfer(walletName, password, amount string, senderTr, receiverTr transport.Transport) error {
	keys, ledger, err := openLedger(walletName, password)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The receiving side gets an ephemeral key; its ledger is not persisted
	receiverKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	receiverSigner := token.NewSigner(receiverKey)

	senderBus := events.NewBus()
	receiverBus := events.NewBus()
	sender := pairing.NewManager(senderTr, senderBus)
	receiver := pairing.NewManager(receiverTr, receiverBus)

	avail := sender.CheckAvailability(ctx)
	if !avail.Available || !avail.Enabled {
		return fmt.Errorf("transport not available")
	}

	receiverEvents, unsubscribe := receiverBus.Subscribe(8)
	defer unsubscribe()

	if err := receiver.AdvertiseAsReceiver(ctx); err != nil {
		return err
	}
	if err := sender.StartAsEmitter(); err != nil {
		return err
	}
	if err := sender.Scan(ctx); err != nil {
		return err
	}

	peers := sender.DiscoveredPeers()
	if len(peers) == 0 {
		return fmt.Errorf("no peers discovered")
	}
	if err := sender.ConnectToPeer(ctx, peers[0].ID); err != nil {
		return err
	}
	fmt.Printf("Connected to %s\n", peers[0].ID)

	t, err := keys.Signer().CreateToken(
		amount,
		viper.GetString("default_contract_address"),
		viper.GetString("default_symbol"),
		viper.GetInt("default_decimals"),
		token.AssetFungible,
		ledger.ComputeBalance(),
	)
	if err != nil {
		return err
	}
	if err := ledger.RecordCreated(t); err != nil {
		return err
	}
	if err := sender.SendToken(ctx, t); err != nil {
		return err
	}

	incoming, err := waitForPayment(ctx, receiverEvents)
	if err != nil {
		return err
	}

	received, err := receiverSigner.ReceiveToken(incoming)
	if err != nil {
		return err
	}
	if err := receiver.AcknowledgePayment(ctx, received); err != nil {
		return err
	}

	fmt.Printf("Peer received and acknowledged token %s (%s %s)\n", received.TransferID, received.Amount, received.Symbol)
	fmt.Printf("Sender spendable balance is now %s\n", ledger.ComputeBalance())

	sender.ResetRole()
	receiver.ResetRole()
	return nil
}

func waitForPayment(ctx context.Context, ch <-chan events.Event) (*token.OfflineToken, error) {
	for {
		select {
		case ev := <-ch:
			if pr, ok := ev.(events.PaymentReceived); ok {
				return pr.Token, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for payment: %w", ctx.Err())
		}
	}
}
