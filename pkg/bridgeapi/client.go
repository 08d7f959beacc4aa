package bridgeapi

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/types"
)

// Provider is the bridging capability: it builds unsigned transaction
// bundles with authoritative fee data and resolves pending
// withdrawals for claiming.
type Provider interface {
	BuildBundle(ctx context.Context, req BundleRequest) (*types.BridgeTransactionBundle, error)
	PendingWithdrawal(ctx context.Context, recipient common.Address, index uint64) (*PendingWithdrawal, error)
}

// Client talks to the bridging service over REST.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates a bridging service client.
func NewClient(baseURL string, log *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{http: http, log: log}
}

// BuildBundle requests the unsigned approval+bridge transaction set
// for a transfer. The response's fee data is authoritative; when no
// approval is required the approval fee is zeroed out of the total.
func (c *Client) BuildBundle(ctx context.Context, req BundleRequest) (*types.BridgeTransactionBundle, error) {
	dto := bundleRequestDTO{
		Sender:             req.Sender.Hex(),
		Recipient:          req.Recipient.Hex(),
		Amount:             hexutil.EncodeBig(req.Units),
		SourceChainID:      hexutil.EncodeBig(req.SourceChainID),
		DestinationChainID: hexutil.EncodeBig(req.DestinationChainID),
	}
	if req.Token.Address != nil {
		dto.TokenAddress = req.Token.Address.Hex()
	}

	var out bundleResponseDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(dto).
		SetResult(&out).
		Post("/v1/bridge/bundle")
	if err != nil {
		return nil, fmt.Errorf("bridge bundle request failed: %w", errs.ErrServiceUnavailable)
	}
	if resp.IsError() {
		c.log.Warn("bridge bundle request rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return nil, fmt.Errorf("bridge service returned status %d: %w", resp.StatusCode(), errs.ErrServiceUnavailable)
	}

	bundle := &types.BridgeTransactionBundle{
		WithdrawalQueueActivated:   out.WithdrawalQueueActivated,
		DelayWithdrawalLargeAmount: out.DelayWithdrawalLargeAmount,
	}

	bridgeTx, err := out.BridgeTx.toUnsignedTx()
	if err != nil {
		return nil, err
	}
	bundle.BridgeTx = *bridgeTx

	if out.ApproveTx != nil {
		approveTx, err := out.ApproveTx.toUnsignedTx()
		if err != nil {
			return nil, err
		}
		bundle.ApproveTx = approveTx
	}

	if out.LargeTransferThreshold != "" {
		threshold, err := decodeQuantity("largeTransferThresholds", out.LargeTransferThreshold)
		if err != nil {
			return nil, err
		}
		bundle.LargeTransferThreshold = threshold
	}

	fees, err := decodeFees(out.Fees)
	if err != nil {
		return nil, err
	}
	if bundle.ApproveTx == nil && fees.ApprovalFee.Sign() > 0 {
		// No approval step means its fee does not apply.
		fees.TotalFees = new(big.Int).Sub(fees.TotalFees, fees.ApprovalFee)
		fees.ApprovalFee = big.NewInt(0)
	}
	bundle.Fees = *fees

	return bundle, nil
}

// PendingWithdrawal resolves a delayed withdrawal by recipient and
// index, returning the service's readiness flag and claim transaction.
func (c *Client) PendingWithdrawal(ctx context.Context, recipient common.Address, index uint64) (*PendingWithdrawal, error) {
	var out pendingWithdrawalDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"recipient": recipient.Hex(),
			"index":     fmt.Sprintf("%d", index),
		}).
		SetResult(&out).
		Get("/v1/bridge/withdrawals/{recipient}/{index}")
	if err != nil {
		return nil, fmt.Errorf("withdrawal lookup failed: %w", errs.ErrServiceUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bridge service returned status %d: %w", resp.StatusCode(), errs.ErrServiceUnavailable)
	}

	pw := &PendingWithdrawal{CanWithdraw: out.CanWithdraw}
	if out.ClaimTx != nil {
		claimTx, err := out.ClaimTx.toUnsignedTx()
		if err != nil {
			return nil, err
		}
		pw.ClaimTx = claimTx
	}
	return pw, nil
}

func decodeFees(dto feeDataDTO) (*types.FeeData, error) {
	approval, err := decodeQuantity("approvalFee", dto.ApprovalFee)
	if err != nil {
		return nil, err
	}
	sourceGas, err := decodeQuantity("sourceChainGas", dto.SourceChainGas)
	if err != nil {
		return nil, err
	}
	bridgeFee, err := decodeQuantity("bridgeFee", dto.BridgeFee)
	if err != nil {
		return nil, err
	}
	operatorFee, err := decodeQuantity("operatorFee", dto.OperatorFee)
	if err != nil {
		return nil, err
	}
	total, err := decodeQuantity("totalFees", dto.TotalFees)
	if err != nil {
		return nil, err
	}
	return &types.FeeData{
		ApprovalFee:    approval,
		SourceChainGas: sourceGas,
		BridgeFee:      bridgeFee,
		OperatorFee:    operatorFee,
		TotalFees:      total,
	}, nil
}
