package types

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkRole identifies which side of the bridge a chain sits on.
type NetworkRole string

const (
	RoleRoot  NetworkRole = "root"  // L1 settlement chain
	RoleChild NetworkRole = "child" // L2 rollup
)

// WalletKind tags how a connected signer is managed.
type WalletKind string

const (
	WalletStandard         WalletKind = "standard"
	WalletCustodialManaged WalletKind = "custodial" // managed wallet, pinned to the child chain
)

// TokenInfo describes a bridgeable token. A nil Address means the
// chain's native currency.
type TokenInfo struct {
	Address  *common.Address `json:"address,omitempty"`
	Symbol   string          `json:"symbol"`
	Decimals uint8           `json:"decimals"`
}

// IsNative returns true for the chain's native currency.
func (t TokenInfo) IsNative() bool {
	return t.Address == nil
}

// TokenSelection is the token and amount chosen on the form step.
// Amount is kept as the raw decimal string the user typed; Units is
// the fixed-point value scaled by the token's decimals.
type TokenSelection struct {
	Token  TokenInfo
	Amount string
	Units  *big.Int
}

// Endpoint is one side of a bridge session: a wallet on a network.
type Endpoint struct {
	Address common.Address
	Kind    WalletKind
	ChainID *big.Int
}

// BridgeSession is the resolved from/to pair. It is replaced
// wholesale whenever selection restarts, never partially mutated.
type BridgeSession struct {
	From Endpoint
	To   Endpoint
}

// IsTransfer reports whether the session stays on a single chain,
// which downgrades the operation from a bridge to a plain transfer.
func (s BridgeSession) IsTransfer() bool {
	if s.From.ChainID == nil || s.To.ChainID == nil {
		return false
	}
	return s.From.ChainID.Cmp(s.To.ChainID) == 0
}

// UnsignedTx is a chain-agnostic unsigned transaction produced by the
// bridging capability or the fee estimator. The wallet session signs
// and submits it.
type UnsignedTx struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// FeeData is the authoritative fee breakdown attached to a bundle.
// All values are in the source chain's native currency (wei).
type FeeData struct {
	ApprovalFee    *big.Int
	SourceChainGas *big.Int
	BridgeFee      *big.Int
	OperatorFee    *big.Int
	TotalFees      *big.Int
}

// BridgeTransactionBundle is the ordered transaction set for one
// TokenSelection+BridgeSession pair. Immutable once produced; any
// change to amount or token invalidates it and forces a re-quote.
type BridgeTransactionBundle struct {
	ApproveTx *UnsignedTx // nil when no approval is required
	BridgeTx  UnsignedTx
	Fees      FeeData

	// Flow-rate flags reported alongside the bundle.
	WithdrawalQueueActivated   bool
	DelayWithdrawalLargeAmount bool
	LargeTransferThreshold     *big.Int // token units, nil when unset
}

// QuoteResult is the fee quote shown on the review step. Each refresh
// replaces the previous value entirely.
type QuoteResult struct {
	TotalFeeNative    *big.Int
	BreakdownBySymbol map[string]*big.Int
	FiatValue         map[string]float64 // best-effort overlay, may be empty
	IsTransfer        bool
	Bundle            *BridgeTransactionBundle // nil in transfer mode
}

// WithdrawalStatus is the observed lifecycle stage of a bridge-out.
type WithdrawalStatus string

const (
	WithdrawalInProgress WithdrawalStatus = "IN_PROGRESS"
	WithdrawalPending    WithdrawalStatus = "WITHDRAWAL_PENDING"
	WithdrawalClaimed    WithdrawalStatus = "CLAIMED"
)

// WithdrawalRecord is a persisted pending withdrawal observed through
// the transaction history service.
type WithdrawalRecord struct {
	Recipient common.Address   `json:"recipient"`
	Index     uint64           `json:"index"`
	Status    WithdrawalStatus `json:"status"`
	Token     TokenInfo        `json:"token"`
	Units     *big.Int         `json:"units"`
	TxHash    common.Hash      `json:"txHash"`
	ReadyAt   *time.Time       `json:"readyAt,omitempty"`
}

// SequenceResult is the outcome of a completed transaction sequence.
type SequenceResult struct {
	TxHash     common.Hash
	IsTransfer bool
}

// ClaimResult is the outcome of a submitted withdrawal claim.
type ClaimResult struct {
	TxHash common.Hash
}

// ParseUnits converts a decimal string amount into fixed-point token
// units scaled by decimals. It rejects empty, negative, and
// over-precise inputs.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is required")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount must be positive: %s", amount)
	}

	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	units, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}
	return units, nil
}

// FormatUnits renders fixed-point token units as a decimal string,
// trimming trailing zeros.
func FormatUnits(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	s := units.String()
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if len(s) <= int(decimals) {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	cut := len(s) - int(decimals)
	out := s[:cut]
	frac := strings.TrimRight(s[cut:], "0")
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
