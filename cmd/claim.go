package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgectl/pkg/claim"
	"bridgectl/pkg/types"
)

var claimIndex uint64

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim a delayed withdrawal on the root chain",
	Long: `Claim a withdrawal that passed its flow-rate delay. The wallet must be
able to sign on the root chain; custodial wallets cannot and must
reconnect as a standard wallet first.

Examples:
  bridgectl claim --index 3`,
	Run: runClaim,
}

func init() {
	rootCmd.AddCommand(claimCmd)

	claimCmd.Flags().Uint64Var(&claimIndex, "index", 0, "Withdrawal index to claim (see 'bridgectl withdrawals')")
	_ = claimCmd.MarkFlagRequired("index")
}

func runClaim(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	verbose, _ := cmd.Flags().GetBool("verbose")

	a, err := buildApp(types.WalletStandard)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	go drainEvents(a, verbose)

	if _, err := a.orch.ConnectFrom(ctx, a.wallet); err != nil {
		printError(err)
		os.Exit(1)
	}

	record, err := findWithdrawal(ctx, a, claimIndex)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := a.orch.StartClaim(*record); err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Claiming withdrawal..."
	s.Start()
	result, err := a.orch.ExecuteClaim(ctx, *record)
	s.Stop()

	if err != nil {
		if claim.IsTopUpRequired(err) {
			color.Yellow("\nNot enough native balance on the root chain to pay for claim gas.")
			color.Yellow("Top up %s and run the claim again.\n", a.wallet.Address().Hex())
			os.Exit(1)
		}
		printError(err)
		os.Exit(1)
	}

	printSuccess("Withdrawal claimed!")
	fmt.Printf("  Tx Hash: %s\n", color.CyanString(result.TxHash.Hex()))
}

func findWithdrawal(ctx context.Context, a *app, index uint64) (*types.WithdrawalRecord, error) {
	records, err := a.orch.PendingWithdrawals(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Index == index {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("withdrawal with index %d not found. Run 'bridgectl withdrawals' to list them", index)
}
