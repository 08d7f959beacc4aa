package parser

import (
	"fmt"
	"regexp"
	"strings"

	"bridgectl/pkg/types"
)

// BridgeRequest is a parsed bridge command before wallet and network
// resolution.
type BridgeRequest struct {
	Amount      string
	TokenSymbol string
	Destination types.NetworkRole
}

// Pattern: <amount> <token> TO <root|child>
// Matches: "100 USDC TO CHILD", "0.5 ETH TO ROOT"
var bridgePattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+(ROOT|CHILD)$`)

// ParseBridgeCommand parses a natural language bridge command
// Examples:
//   - "bridge 100 USDC to child"
//   - "0.5 ETH to root"
func ParseBridgeCommand(command string) (*BridgeRequest, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "BRIDGE ")

	matches := bridgePattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid bridge command format. Expected: '<amount> <token> to <root|child>' (e.g., '100 USDC to child')")
	}

	destination := types.RoleChild
	if matches[3] == "ROOT" {
		destination = types.RoleRoot
	}

	return &BridgeRequest{
		Amount:      matches[1],
		TokenSymbol: matches[2],
		Destination: destination,
	}, nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common wrapped aliases
	aliases := map[string]string{
		"WETH": "ETH",
		"WIMX": "IMX",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
