package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgectl/config"
	"bridgectl/pkg/registry"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "Show the configured root and child chains",
	Run:   runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	reg, err := registry.New(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out := map[string]interface{}{
			"environment": reg.Environment(),
			"root": map[string]interface{}{
				"chainId":      reg.Root().ChainID.String(),
				"nativeSymbol": reg.Root().NativeSymbol,
				"rpcUrl":       reg.Root().RPCUrl,
			},
			"child": map[string]interface{}{
				"chainId":      reg.Child().ChainID.String(),
				"nativeSymbol": reg.Child().NativeSymbol,
				"rpcUrl":       reg.Child().RPCUrl,
			},
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 CONFIGURED CHAINS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Environment: %s\n", reg.Environment())
	fmt.Printf("\n  Root chain:\n")
	fmt.Printf("    Chain ID:       %s\n", reg.Root().ChainID)
	fmt.Printf("    Native symbol:  %s\n", reg.Root().NativeSymbol)
	fmt.Printf("    RPC:            %s\n", reg.Root().RPCUrl)
	fmt.Printf("\n  Child chain:\n")
	fmt.Printf("    Chain ID:       %s\n", reg.Child().ChainID)
	fmt.Printf("    Native symbol:  %s\n", reg.Child().NativeSymbol)
	fmt.Printf("    RPC:            %s\n", reg.Child().RPCUrl)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
