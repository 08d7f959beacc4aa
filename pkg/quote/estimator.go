package quote

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"bridgectl/pkg/bridgeapi"
	"bridgectl/pkg/errs"
	"bridgectl/pkg/pricing"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

const nativeTransferGas = 21000

// Estimator computes fee quotes. Same-chain sessions get a plain
// transfer estimate against the wallet; cross-chain sessions get an
// authoritative bundle from the bridging capability.
type Estimator struct {
	provider bridgeapi.Provider
	pricer   pricing.Converter
	reg      *registry.Registry
	log      *zap.Logger
}

// NewEstimator creates a fee estimator.
func NewEstimator(provider bridgeapi.Provider, pricer pricing.Converter, reg *registry.Registry, log *zap.Logger) *Estimator {
	return &Estimator{provider: provider, pricer: pricer, reg: reg, log: log}
}

// Estimate produces a QuoteResult for the session and token
// selection. Each call produces a complete replacement quote; callers
// never merge a new quote into an old one.
func (e *Estimator) Estimate(ctx context.Context, ws wallet.Session, session types.BridgeSession, sel types.TokenSelection) (*types.QuoteResult, error) {
	if session.IsTransfer() {
		return e.estimateTransfer(ctx, ws, session, sel)
	}
	return e.estimateBridge(ctx, session, sel)
}

// estimateTransfer prices a single-chain send: native gas for a plain
// transfer, or an estimated ERC-20 transfer call, times the current
// gas price.
func (e *Estimator) estimateTransfer(ctx context.Context, ws wallet.Session, session types.BridgeSession, sel types.TokenSelection) (*types.QuoteResult, error) {
	gasPrice, err := ws.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("transfer quote: %w", errs.Classify(err))
	}

	var gasLimit uint64
	if sel.Token.IsNative() {
		gasLimit = nativeTransferGas
	} else {
		data, err := wallet.PackTransfer(session.To.Address, sel.Units)
		if err != nil {
			return nil, err
		}
		msg := ethereum.CallMsg{
			From: session.From.Address,
			To:   sel.Token.Address,
			Data: data,
		}
		gasLimit, err = ws.EstimateGas(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("transfer quote: %w", errs.Classify(err))
		}
	}

	total := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	role, err := e.reg.RoleOf(session.From.ChainID)
	if err != nil {
		return nil, err
	}
	chain, err := e.reg.ByRole(role)
	if err != nil {
		return nil, err
	}

	result := &types.QuoteResult{
		TotalFeeNative:    total,
		BreakdownBySymbol: map[string]*big.Int{chain.NativeSymbol: total},
		IsTransfer:        true,
	}
	e.annotateFiat(ctx, result)
	return result, nil
}

// estimateBridge fetches the unsigned bundle; its fee data is
// authoritative. Source-chain denominated fees are grouped under the
// source native symbol, the operator fee under the child chain's.
func (e *Estimator) estimateBridge(ctx context.Context, session types.BridgeSession, sel types.TokenSelection) (*types.QuoteResult, error) {
	bundle, err := e.provider.BuildBundle(ctx, bridgeapi.BundleRequest{
		Sender:             session.From.Address,
		Recipient:          session.To.Address,
		Token:              sel.Token,
		Units:              sel.Units,
		SourceChainID:      session.From.ChainID,
		DestinationChainID: session.To.ChainID,
	})
	if err != nil {
		return nil, err
	}

	role, err := e.reg.RoleOf(session.From.ChainID)
	if err != nil {
		return nil, err
	}
	source, err := e.reg.ByRole(role)
	if err != nil {
		return nil, err
	}
	child := e.reg.Child()

	sourceFees := new(big.Int).Add(bundle.Fees.ApprovalFee, bundle.Fees.SourceChainGas)
	sourceFees.Add(sourceFees, bundle.Fees.BridgeFee)

	breakdown := map[string]*big.Int{source.NativeSymbol: sourceFees}
	if bundle.Fees.OperatorFee.Sign() > 0 {
		if existing, ok := breakdown[child.NativeSymbol]; ok {
			breakdown[child.NativeSymbol] = new(big.Int).Add(existing, bundle.Fees.OperatorFee)
		} else {
			breakdown[child.NativeSymbol] = bundle.Fees.OperatorFee
		}
	}

	result := &types.QuoteResult{
		TotalFeeNative:    bundle.Fees.TotalFees,
		BreakdownBySymbol: breakdown,
		IsTransfer:        false,
		Bundle:            bundle,
	}
	e.annotateFiat(ctx, result)
	return result, nil
}

// annotateFiat attaches best-effort USD values. A pricing failure
// never blocks the quote.
func (e *Estimator) annotateFiat(ctx context.Context, result *types.QuoteResult) {
	if e.pricer == nil {
		return
	}
	symbols := make([]string, 0, len(result.BreakdownBySymbol))
	for symbol := range result.BreakdownBySymbol {
		symbols = append(symbols, symbol)
	}
	prices := e.pricer.Prices(ctx, symbols)
	if len(prices) > 0 {
		result.FiatValue = prices
	}
}
