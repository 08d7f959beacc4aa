package claim

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bridgectl/config"
	"bridgectl/pkg/bridgeapi"
	"bridgectl/pkg/errs"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

var (
	rootChain  = big.NewInt(11155111)
	childChain = big.NewInt(13473)
	claimant   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	exitHelper = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type fakeProvider struct {
	pending *bridgeapi.PendingWithdrawal
	err     error
	calls   int
}

func (f *fakeProvider) BuildBundle(ctx context.Context, req bridgeapi.BundleRequest) (*types.BridgeTransactionBundle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) PendingWithdrawal(ctx context.Context, recipient common.Address, index uint64) (*bridgeapi.PendingWithdrawal, error) {
	f.calls++
	return f.pending, f.err
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(&config.Config{
		Environment: "testnet",
		RootChain:   config.ChainConfig{ChainID: 11155111, RPCUrl: "https://rpc.example/root", NativeSymbol: "ETH"},
		ChildChain:  config.ChainConfig{ChainID: 13473, RPCUrl: "https://rpc.example/child", NativeSymbol: "IMX"},
	})
	require.NoError(t, err)
	return reg
}

func pendingRecord(readyAt time.Time) types.WithdrawalRecord {
	return types.WithdrawalRecord{
		Recipient: claimant,
		Index:     7,
		Status:    types.WithdrawalPending,
		Units:     big.NewInt(1e18),
		ReadyAt:   &readyAt,
	}
}

func claimableWithdrawal() *bridgeapi.PendingWithdrawal {
	return &bridgeapi.PendingWithdrawal{
		CanWithdraw: true,
		ClaimTx:     &types.UnsignedTx{To: exitHelper, Value: big.NewInt(0)},
	}
}

func TestResolveEligibilityMatrix(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		readyAt     time.Time
		canWithdraw bool
		eligible    bool
	}{
		{name: "ready and withdrawable", readyAt: now.Add(-time.Minute), canWithdraw: true, eligible: true},
		{name: "ready but capability says no", readyAt: now.Add(-time.Minute), canWithdraw: false, eligible: false},
		{name: "withdrawable but not ready", readyAt: now.Add(time.Hour), canWithdraw: true, eligible: false},
		{name: "neither", readyAt: now.Add(time.Hour), canWithdraw: false, eligible: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{pending: &bridgeapi.PendingWithdrawal{CanWithdraw: tt.canWithdraw}}
			r := NewResolver(provider, testRegistry(t), false, zap.NewNop())
			r.now = func() time.Time { return now }

			elig, err := r.Resolve(context.Background(), pendingRecord(tt.readyAt))
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, elig.Eligible)
		})
	}
}

func TestResolveReadyInEstimate(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{pending: &bridgeapi.PendingWithdrawal{CanWithdraw: false}}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())
	r.now = func() time.Time { return now }

	elig, err := r.Resolve(context.Background(), pendingRecord(now.Add(45*time.Minute)))
	require.NoError(t, err)
	assert.False(t, elig.Ready)
	assert.Equal(t, "in 1 hour", elig.ReadyIn)

	elig, err = r.Resolve(context.Background(), pendingRecord(now.Add(3*24*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "in 3 days", elig.ReadyIn)

	elig, err = r.Resolve(context.Background(), pendingRecord(now.Add(-time.Second)))
	require.NoError(t, err)
	assert.True(t, elig.Ready)
	assert.Empty(t, elig.ReadyIn)
}

func TestResolveFetchFailurePolicy(t *testing.T) {
	now := time.Now()
	record := pendingRecord(now.Add(-time.Minute))
	provider := &fakeProvider{err: errs.ErrServiceUnavailable}

	// Fail-open: readiness is reported, eligibility is not.
	r := NewResolver(provider, testRegistry(t), true, zap.NewNop())
	elig, err := r.Resolve(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, elig.Ready)
	assert.False(t, elig.Eligible)

	// Fail-closed surfaces the error.
	r = NewResolver(provider, testRegistry(t), false, zap.NewNop())
	_, err = r.Resolve(context.Background(), record)
	assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
}

func TestResolveIgnoresNonPendingStatus(t *testing.T) {
	now := time.Now()
	record := pendingRecord(now.Add(-time.Hour))
	record.Status = types.WithdrawalClaimed
	provider := &fakeProvider{pending: &bridgeapi.PendingWithdrawal{CanWithdraw: true}}

	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())
	elig, err := r.Resolve(context.Background(), record)
	require.NoError(t, err)
	assert.False(t, elig.Ready)
	assert.False(t, elig.Eligible)
}

func TestClaimSubmitsOnRootChain(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, rootChain)
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	result, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, result.TxHash)
	require.Equal(t, 1, ws.SentCount())
	assert.Equal(t, exitHelper, ws.Sent[0].To)
	assert.Equal(t, ws.GasLimit, ws.Sent[0].GasLimit)
	assert.Empty(t, ws.Switched)
}

func TestClaimSwitchesToRootFirst(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, childChain)
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	require.Len(t, ws.Switched, 1)
	assert.Equal(t, rootChain.String(), ws.Switched[0].String())
}

func TestClaimRejectedSwitchAborts(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, childChain)
	ws.SwitchErrs = []error{errors.New("user rejected the request")}
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, errs.ErrUserRejected)
	assert.Equal(t, 0, ws.SentCount())
}

func TestClaimCustodialWalletRefused(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, childChain)
	ws.WalletKind = types.WalletCustodialManaged
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	require.Error(t, err)
	assert.Equal(t, 0, provider.calls)
}

func TestClaimNotClaimable(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, rootChain)
	provider := &fakeProvider{pending: &bridgeapi.PendingWithdrawal{CanWithdraw: false}}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	assert.Error(t, err)
	assert.Equal(t, 0, ws.SentCount())
}

func TestClaimGasEstimateFallback(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, rootChain)
	ws.EstimateErrs = []error{errors.New("execution reverted")}
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	require.Equal(t, 1, ws.SentCount())
	assert.Equal(t, fallbackClaimGas, ws.Sent[0].GasLimit)
}

func TestClaimInsufficientGasFunds(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, rootChain)
	ws.NativeBalance = big.NewInt(1) // cannot cover 50k gas at 1 gwei
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.True(t, IsTopUpRequired(err))
	assert.Equal(t, 0, ws.SentCount())
}

func TestClaimBalanceCheckFailureDoesNotBlock(t *testing.T) {
	ws := wallet.NewFakeSession(claimant, rootChain)
	ws.BalanceErr = errors.New("rpc timeout")
	provider := &fakeProvider{pending: claimableWithdrawal()}
	r := NewResolver(provider, testRegistry(t), false, zap.NewNop())

	_, err := r.Claim(context.Background(), ws, pendingRecord(time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, ws.SentCount())
}
