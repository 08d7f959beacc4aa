package claim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"bridgectl/pkg/bridgeapi"
	"bridgectl/pkg/errs"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

// Conservative fallback when the node cannot estimate the claim;
// finalizing a withdrawal is a storage-heavy call.
const fallbackClaimGas = uint64(200000)

// Eligibility is the resolver's verdict on a pending withdrawal.
type Eligibility struct {
	Eligible bool

	// Ready is the record's own readiness (readyAt <= now).
	Ready bool

	// CanWithdraw is the bridging capability's flag. Both it and
	// Ready must agree for the claim to be eligible.
	CanWithdraw bool

	// ReadyIn is a human-readable wait estimate ("in 45 minutes"),
	// empty once ready.
	ReadyIn string
}

// Resolver determines whether a delayed withdrawal can be claimed and
// submits the claim on the root chain.
type Resolver struct {
	provider bridgeapi.Provider
	reg      *registry.Registry
	failOpen bool
	log      *zap.Logger
	now      func() time.Time
}

// NewResolver creates a claim resolver. failOpen controls whether a
// failed withdrawal-data fetch reads as "not ready yet" instead of an
// error; the caller's poll loop retries either way.
func NewResolver(provider bridgeapi.Provider, reg *registry.Registry, failOpen bool, log *zap.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		reg:      reg,
		failOpen: failOpen,
		log:      log,
		now:      time.Now,
	}
}

// Resolve evaluates claim eligibility. Both the record's readiness
// timestamp and the capability's canWithdraw flag must agree; a
// mismatch in either direction yields ineligible.
func (r *Resolver) Resolve(ctx context.Context, record types.WithdrawalRecord) (*Eligibility, error) {
	elig := &Eligibility{}

	if record.Status == types.WithdrawalPending && record.ReadyAt != nil {
		now := r.now()
		if !record.ReadyAt.After(now) {
			elig.Ready = true
		} else {
			elig.ReadyIn = relativeTime(record.ReadyAt.Sub(now))
		}
	}

	pending, err := r.provider.PendingWithdrawal(ctx, record.Recipient, record.Index)
	if err != nil {
		if r.failOpen {
			r.log.Warn("withdrawal data fetch failed, treating as not ready",
				zap.Uint64("index", record.Index), zap.Error(err))
			return elig, nil
		}
		return nil, err
	}

	elig.CanWithdraw = pending.CanWithdraw
	elig.Eligible = elig.Ready && elig.CanWithdraw
	return elig, nil
}

// Claim submits the withdrawal claim through the wallet. Custodial
// wallets cannot sign the root-chain claim and must re-authenticate
// with a standard wallet first. The wallet must be on the root chain;
// if not, an explicit switch is requested and the claim proceeds only
// when it succeeds.
func (r *Resolver) Claim(ctx context.Context, ws wallet.Session, record types.WithdrawalRecord) (*types.ClaimResult, error) {
	if ws.Kind() == types.WalletCustodialManaged {
		return nil, fmt.Errorf("custodial wallet cannot sign a root-chain claim, reconnect with a standard wallet: %w", errs.ErrUserRejected)
	}

	pending, err := r.provider.PendingWithdrawal(ctx, record.Recipient, record.Index)
	if err != nil {
		return nil, err
	}
	if !pending.CanWithdraw || pending.ClaimTx == nil {
		return nil, fmt.Errorf("withdrawal %d is not claimable yet", record.Index)
	}

	root := r.reg.Root()
	chainID, err := ws.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet chain: %w", errs.Classify(err))
	}
	if chainID.Cmp(root.ChainID) != 0 {
		if err := ws.SwitchChain(ctx, root.ChainID); err != nil {
			return nil, fmt.Errorf("claim requires the root chain: %w", errs.Classify(err))
		}
	}

	gasLimit := r.estimateClaimGas(ctx, ws, pending.ClaimTx)

	if err := r.checkGasFunds(ctx, ws, gasLimit); err != nil {
		return nil, err
	}

	claimTx := *pending.ClaimTx
	claimTx.GasLimit = gasLimit

	hash, err := ws.SendTransaction(ctx, &claimTx)
	if err != nil {
		return nil, fmt.Errorf("claim submission failed: %w", errs.Classify(err))
	}

	r.log.Info("claim submitted",
		zap.Uint64("index", record.Index),
		zap.String("hash", hash.Hex()))
	return &types.ClaimResult{TxHash: hash}, nil
}

// estimateClaimGas tries a live estimate and falls back to the
// conservative constant rather than blocking the flow.
func (r *Resolver) estimateClaimGas(ctx context.Context, ws wallet.Session, tx *types.UnsignedTx) uint64 {
	msg := ethereum.CallMsg{
		From:  ws.Address(),
		To:    &tx.To,
		Value: tx.Value,
		Data:  tx.Data,
	}
	gas, err := ws.EstimateGas(ctx, msg)
	if err != nil {
		r.log.Warn("claim gas estimate failed, using fallback",
			zap.Uint64("fallback", fallbackClaimGas), zap.Error(err))
		return fallbackClaimGas
	}
	return gas
}

// checkGasFunds is the advisory-but-blocking balance check: failing
// to perform the check does not block the claim, but a successful
// check showing insufficient native balance does.
func (r *Resolver) checkGasFunds(ctx context.Context, ws wallet.Session, gasLimit uint64) error {
	gasPrice, err := ws.SuggestGasPrice(ctx)
	if err != nil {
		r.log.Warn("gas price lookup failed, skipping balance check", zap.Error(err))
		return nil
	}
	balance, err := ws.BalanceAt(ctx, ws.Address())
	if err != nil {
		r.log.Warn("balance lookup failed, skipping balance check", zap.Error(err))
		return nil
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	if balance.Cmp(cost) < 0 {
		return fmt.Errorf("need %s wei for claim gas, have %s: %w",
			cost.String(), balance.String(), errs.ErrInsufficientFunds)
	}
	return nil
}

// IsTopUpRequired reports whether a claim error should route to the
// top-up affordance instead of a failure view.
func IsTopUpRequired(err error) bool {
	return errors.Is(err, errs.ErrInsufficientFunds)
}
