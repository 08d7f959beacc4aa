package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "A CLI for moving tokens between a root chain and its child rollup",
	Long: `bridgectl drives token bridging between an L1 root chain and its L2
child rollup: wallet and network selection, fee quoting, the
approve-then-bridge transaction sequence, flow-rate delay notices, and
claiming delayed withdrawals on the root chain.

Examples:
  bridgectl bridge 100 USDC to child --token-address 0xA0b8...
  bridgectl bridge 0.5 ETH to root
  bridgectl withdrawals
  bridgectl claim --index 3`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
