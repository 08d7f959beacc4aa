package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/parser"
	"bridgectl/pkg/quote"
	"bridgectl/pkg/types"
)

var (
	tokenAddress  string
	tokenDecimals uint8
	custodial     bool
	noConfirm     bool
	maxRetries    int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge <amount> <token> to <root|child>",
	Short: "Bridge or transfer tokens between the root and child chains",
	Long: `Move tokens between the root chain and the child rollup. The wallet
signs an approval first when the token needs one, then the bridge
transaction. Withdrawals to the root chain may be delayed by
flow-rate policy; delayed amounts are claimed later with 'bridgectl claim'.

Examples:
  # Deposit to the child rollup
  bridgectl bridge 100 USDC to child --token-address 0xA0b8...

  # Withdraw native tokens back to the root chain
  bridgectl bridge 0.5 IMX to root

  # Skip the confirmation prompt
  bridgectl bridge 100 USDC to child --token-address 0xA0b8... --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeCmd.Flags().StringVar(&tokenAddress, "token-address", "", "ERC-20 contract address (omit for the native token)")
	bridgeCmd.Flags().Uint8Var(&tokenDecimals, "decimals", 18, "Token decimals")
	bridgeCmd.Flags().BoolVar(&custodial, "custodial", false, "Connect as a custodial managed wallet (pinned to the child chain)")
	bridgeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	bridgeCmd.Flags().IntVar(&maxRetries, "retries", 2, "Retries offered after a rejected wallet prompt")
}

func runBridge(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	req, err := parser.ParseBridgeCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	a, err := buildApp(walletKind())
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	go drainEvents(a, verbose)

	token := types.TokenInfo{
		Symbol:   parser.NormalizeTokenSymbol(req.TokenSymbol),
		Decimals: tokenDecimals,
	}
	if tokenAddress != "" {
		if !common.IsHexAddress(tokenAddress) {
			printError(fmt.Errorf("invalid token address: %s", tokenAddress))
			os.Exit(1)
		}
		addr := common.HexToAddress(tokenAddress)
		token.Address = &addr
	}

	// Source is the opposite side of the requested destination.
	source := types.RoleRoot
	if req.Destination == types.RoleRoot {
		source = types.RoleChild
	}

	if err := selectWallets(ctx, a, source); err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching quote..."
	s.Start()

	err = a.orch.SetToken(ctx, token, req.Amount)
	if err == nil {
		err = a.orch.Review(ctx)
	}
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	q, notice := a.orch.Quote()
	displayQuote(a, q, req, token)
	displayNotice(notice, token)

	if !noConfirm && !confirmBridge() {
		fmt.Println("\nBridge cancelled.")
		a.orch.Close()
		os.Exit(0)
	}

	result, err := executeWithRetries(ctx, a)
	if err != nil {
		color.Red("\nBridge failed: %v", err)
		os.Exit(1)
	}

	printSuccess("Transaction settled!")
	fmt.Printf("  Tx Hash: %s\n", color.CyanString(result.TxHash.Hex()))
	if !result.IsTransfer && req.Destination == types.RoleRoot {
		color.Yellow("\nWithdrawals to the root chain may require a claim once ready:")
		color.Cyan("  bridgectl withdrawals\n")
	}
}

// selectWallets connects the keyed wallet on both sides of the
// session. The "to" side reuses the same identity, so its network is
// auto-derived by the selector.
func selectWallets(ctx context.Context, a *app, source types.NetworkRole) error {
	needsChoice, err := a.orch.ConnectFrom(ctx, a.wallet)
	if err != nil {
		return err
	}
	if needsChoice {
		if err := a.orch.ChooseFromNetwork(source); err != nil {
			return err
		}
	}

	if _, err := a.orch.ConnectTo(ctx, a.wallet); err != nil {
		return err
	}
	return nil
}

// executeWithRetries confirms the sequence, re-offering the step on a
// rejection and switching networks explicitly on a mismatch.
func executeWithRetries(ctx context.Context, a *app) (*types.SequenceResult, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)

	for attempt := 0; ; attempt++ {
		if a.orch.ChainMismatch() {
			color.Yellow("\nWallet is on the wrong network, requesting a switch...")
			if serr := a.orch.SwitchToSource(ctx); serr != nil {
				return nil, serr
			}
		}

		s.Suffix = " Executing transactions..."
		s.Start()
		result, err := a.orch.Confirm(ctx)
		s.Stop()

		if err == nil {
			return result, nil
		}

		switch {
		case errors.Is(err, errs.ErrNetworkMismatch):
			color.Yellow("\nWallet is on the wrong network, requesting a switch...")
			if serr := a.orch.SwitchToSource(ctx); serr != nil {
				return nil, serr
			}
			continue

		case errors.Is(err, errs.ErrUserRejected):
			if attempt >= maxRetries {
				return nil, err
			}
			if !noConfirm && !promptRetry() {
				return nil, err
			}
			// Retry against the same reviewed bundle; a settled
			// approval must not be paid for twice.
			continue

		default:
			return nil, err
		}
	}
}

func walletKind() types.WalletKind {
	if custodial {
		return types.WalletCustodialManaged
	}
	return types.WalletStandard
}

func drainEvents(a *app, verbose bool) {
	for event := range a.emitter.Events() {
		if verbose {
			fmt.Printf("\n[event] %s %s %s\n", event.Kind, event.TxHash.Hex(), event.Reason)
		}
	}
}

func displayQuote(a *app, q *types.QuoteResult, req *parser.BridgeRequest, token types.TokenInfo) {
	if q == nil {
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	if q.IsTransfer {
		color.Green("                   TRANSFER QUOTE")
	} else {
		color.Green("                    BRIDGE QUOTE")
	}
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Amount:       %s %s\n", req.Amount, color.YellowString(token.Symbol))
	fmt.Printf("  Destination:  %s chain\n", req.Destination)

	for symbol, fee := range q.BreakdownBySymbol {
		line := fmt.Sprintf("  Fee (%s):%s%s", symbol, strings.Repeat(" ", 6-min(6, len(symbol))), types.FormatUnits(fee, 18))
		if price, ok := q.FiatValue[symbol]; ok {
			native, _ := new(big.Float).SetInt(fee).Float64()
			line += fmt.Sprintf("  (~$%.2f)", native/1e18*price)
		}
		fmt.Println(line)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayNotice(notice *quote.WithdrawalNotice, token types.TokenInfo) {
	if notice == nil {
		return
	}

	switch notice.Type {
	case quote.NoticeActiveQueue:
		color.Yellow("  Note: the withdrawal queue is active; every withdrawal is delayed.")
	case quote.NoticeThreshold:
		color.Yellow("  Note: amounts above %s %s are delayed. You may proceed or reduce the amount.",
			types.FormatUnits(notice.Threshold, token.Decimals), token.Symbol)
	}
	fmt.Println()
}

func confirmBridge() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with bridge? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func promptRetry() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nTransaction was rejected. Retry? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
