package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgectl/pkg/types"
)

var (
	watchWithdrawals bool
	watchInterval    int
)

var withdrawalsCmd = &cobra.Command{
	Use:   "withdrawals",
	Short: "List pending withdrawals for the configured wallet",
	Long: `List bridge withdrawals that are still in progress or awaiting a claim
on the root chain.

Examples:
  bridgectl withdrawals
  bridgectl withdrawals --watch
  bridgectl withdrawals --watch --interval 30`,
	Run: runWithdrawals,
}

func init() {
	rootCmd.AddCommand(withdrawalsCmd)

	withdrawalsCmd.Flags().BoolVarP(&watchWithdrawals, "watch", "w", false, "Watch withdrawal status continuously")
	withdrawalsCmd.Flags().IntVar(&watchInterval, "interval", 15, "Polling interval in seconds (when watching)")
}

func runWithdrawals(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := buildApp(types.WalletStandard)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	if _, err := a.orch.ConnectFrom(ctx, a.wallet); err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchWithdrawals {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}

		fmt.Printf("\nWatching withdrawals for %s\n", color.CyanString(a.wallet.Address().Hex()))
		fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n", watchInterval)

		ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
		defer ticker.Stop()

		// Check immediately first
		listWithdrawals(ctx, a, false)

		// Then check periodically
		for range ticker.C {
			listWithdrawals(ctx, a, false)
		}
		return
	}

	listWithdrawals(ctx, a, jsonOutput)
}

func listWithdrawals(ctx context.Context, a *app, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching withdrawals..."
		s.Start()
	}

	records, err := a.orch.PendingWithdrawals(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		if jsonOutput {
			fmt.Printf(`{"error": %q}`+"\n", err.Error())
			return
		}
		color.Red("Error: %v", err)
		return
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo pending withdrawals.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     PENDING WITHDRAWALS")
	fmt.Println(strings.Repeat("=", 70))

	for _, record := range records {
		fmt.Printf("\n  Index:    %d\n", record.Index)
		fmt.Printf("  Amount:   %s %s\n", types.FormatUnits(record.Units, record.Token.Decimals), record.Token.Symbol)
		fmt.Printf("  Status:   %s\n", coloredWithdrawalStatus(record.Status))
		fmt.Printf("  Tx Hash:  %s\n", color.HiBlackString(record.TxHash.Hex()))
		if record.ReadyAt != nil {
			fmt.Printf("  Ready At: %s\n", record.ReadyAt.Format("2006-01-02 15:04:05"))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredWithdrawalStatus(status types.WithdrawalStatus) string {
	switch status {
	case types.WithdrawalPending:
		return color.YellowString(string(status))
	case types.WithdrawalInProgress:
		return color.CyanString(string(status))
	case types.WithdrawalClaimed:
		return color.GreenString(string(status))
	default:
		return string(status)
	}
}
