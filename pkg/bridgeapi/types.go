package bridgeapi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"bridgectl/pkg/types"
)

// BundleRequest asks the bridging service for an unsigned
// approval+bridge transaction set.
type BundleRequest struct {
	Sender             common.Address
	Recipient          common.Address
	Token              types.TokenInfo
	Units              *big.Int
	SourceChainID      *big.Int
	DestinationChainID *big.Int
}

// PendingWithdrawal is the service's view of a delayed withdrawal,
// resolved by {recipient, index}.
type PendingWithdrawal struct {
	CanWithdraw bool
	ClaimTx     *types.UnsignedTx
}

// Wire DTOs. Amounts travel as hex quantities, addresses as hex
// strings, calldata as 0x-prefixed bytes.

type bundleRequestDTO struct {
	Sender             string `json:"sender"`
	Recipient          string `json:"recipient"`
	TokenAddress       string `json:"tokenAddress,omitempty"`
	Amount             string `json:"amount"`
	SourceChainID      string `json:"sourceChainId"`
	DestinationChainID string `json:"destinationChainId"`
}

type unsignedTxDTO struct {
	To       string `json:"to"`
	Value    string `json:"value,omitempty"`
	Data     string `json:"data,omitempty"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

type feeDataDTO struct {
	ApprovalFee    string `json:"approvalFee"`
	SourceChainGas string `json:"sourceChainGas"`
	BridgeFee      string `json:"bridgeFee"`
	OperatorFee    string `json:"operatorFee"`
	TotalFees      string `json:"totalFees"`
}

type bundleResponseDTO struct {
	ApproveTx *unsignedTxDTO `json:"unsignedApprovalTx,omitempty"`
	BridgeTx  unsignedTxDTO  `json:"unsignedBridgeTx"`
	Fees      feeDataDTO     `json:"feeData"`

	WithdrawalQueueActivated   bool   `json:"withdrawalQueueActivated"`
	DelayWithdrawalLargeAmount bool   `json:"delayWithdrawalLargeAmount"`
	LargeTransferThreshold     string `json:"largeTransferThresholds,omitempty"`
}

type pendingWithdrawalDTO struct {
	CanWithdraw bool           `json:"canWithdraw"`
	ClaimTx     *unsignedTxDTO `json:"unsignedClaimTx,omitempty"`
}

func (d unsignedTxDTO) toUnsignedTx() (*types.UnsignedTx, error) {
	if !common.IsHexAddress(d.To) {
		return nil, fmt.Errorf("invalid transaction recipient: %s", d.To)
	}
	tx := &types.UnsignedTx{
		To:       common.HexToAddress(d.To),
		Value:    big.NewInt(0),
		GasLimit: d.GasLimit,
	}
	if d.Value != "" {
		value, err := hexutil.DecodeBig(d.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction value %q: %w", d.Value, err)
		}
		tx.Value = value
	}
	if d.Data != "" {
		data, err := hexutil.Decode(d.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction data: %w", err)
		}
		tx.Data = data
	}
	return tx, nil
}

func decodeQuantity(field, value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	n, err := hexutil.DecodeBig(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return n, nil
}
