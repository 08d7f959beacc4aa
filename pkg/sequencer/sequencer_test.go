package sequencer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

var (
	rootChain  = big.NewInt(11155111)
	childChain = big.NewInt(13473)
	sender     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender    = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func bridgeBundle(withApproval bool) *types.BridgeTransactionBundle {
	bundle := &types.BridgeTransactionBundle{
		BridgeTx: types.UnsignedTx{To: spender, Value: big.NewInt(0), GasLimit: 150_000},
	}
	if withApproval {
		bundle.ApproveTx = &types.UnsignedTx{To: spender, Value: big.NewInt(0), GasLimit: 60_000}
	}
	return bundle
}

func bridgeSession() types.BridgeSession {
	return types.BridgeSession{
		From: types.Endpoint{Address: sender, ChainID: rootChain},
		To:   types.Endpoint{Address: sender, ChainID: childChain},
	}
}

func TestExecuteApproveThenBridge(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	seq := New(zap.NewNop())

	result, err := seq.Execute(context.Background(), ws, bridgeBundle(true), bridgeSession())
	require.NoError(t, err)
	assert.False(t, result.IsTransfer)
	assert.NotEqual(t, common.Hash{}, result.TxHash)

	// Approval first, then the bridge transaction.
	require.Equal(t, 2, ws.SentCount())
	assert.Equal(t, uint64(60_000), ws.Sent[0].GasLimit)
	assert.Equal(t, uint64(150_000), ws.Sent[1].GasLimit)
	assert.Equal(t, StateSettled, seq.State())
}

func TestExecuteSkipsApprovalWhenAbsent(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	seq := New(zap.NewNop())

	_, err := seq.Execute(context.Background(), ws, bridgeBundle(false), bridgeSession())
	require.NoError(t, err)
	assert.Equal(t, 1, ws.SentCount())
}

func TestExecuteNetworkMismatchDoesNotSwitch(t *testing.T) {
	ws := wallet.NewFakeSession(sender, childChain)
	seq := New(zap.NewNop())

	_, err := seq.Execute(context.Background(), ws, bridgeBundle(true), bridgeSession())
	assert.ErrorIs(t, err, errs.ErrNetworkMismatch)
	assert.Equal(t, 0, ws.SentCount())
	assert.Empty(t, ws.Switched)
}

func TestExecuteRejectedApprovalIsRetryable(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	ws.SendErrs = []error{errors.New("user rejected transaction")}
	seq := New(zap.NewNop())
	bundle := bridgeBundle(true)

	_, err := seq.Execute(context.Background(), ws, bundle, bridgeSession())
	assert.ErrorIs(t, err, errs.ErrUserRejected)
	assert.True(t, errs.Retryable(err))
	assert.Equal(t, 0, ws.SentCount())

	// Retrying the same bundle runs approval then bridge, once each.
	result, err := seq.Execute(context.Background(), ws, bundle, bridgeSession())
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, result.TxHash)
	assert.Equal(t, 2, ws.SentCount())
}

func TestExecuteRejectedBridgeKeepsApproval(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	// Approval succeeds, bridge rejected.
	ws.SendErrs = []error{nil, errors.New("user denied transaction signature")}
	seq := New(zap.NewNop())
	bundle := bridgeBundle(true)

	_, err := seq.Execute(context.Background(), ws, bundle, bridgeSession())
	assert.ErrorIs(t, err, errs.ErrUserRejected)
	assert.Equal(t, 1, ws.SentCount())
	assert.Equal(t, StateApproved, seq.State())

	// The retry never re-sends the settled approval.
	_, err = seq.Execute(context.Background(), ws, bundle, bridgeSession())
	require.NoError(t, err)
	assert.Equal(t, 2, ws.SentCount())
	assert.Equal(t, uint64(60_000), ws.Sent[0].GasLimit)
	assert.Equal(t, uint64(150_000), ws.Sent[1].GasLimit)
}

func TestExecuteNewBundleResetsProgress(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	ws.SendErrs = []error{nil, errors.New("user rejected transaction")}
	seq := New(zap.NewNop())

	first := bridgeBundle(true)
	_, err := seq.Execute(context.Background(), ws, first, bridgeSession())
	require.ErrorIs(t, err, errs.ErrUserRejected)
	require.Equal(t, 1, ws.SentCount())

	// A fresh bundle discards the old approval progress.
	second := bridgeBundle(true)
	_, err = seq.Execute(context.Background(), ws, second, bridgeSession())
	require.NoError(t, err)
	assert.Equal(t, 3, ws.SentCount())
}

func TestExecuteApprovalRevertIsTerminal(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	ws.ReceiptStatuses = []uint64{ethtypes.ReceiptStatusFailed}
	seq := New(zap.NewNop())

	_, err := seq.Execute(context.Background(), ws, bridgeBundle(true), bridgeSession())
	assert.ErrorIs(t, err, errs.ErrOnChainRevert)
	assert.False(t, errs.Retryable(err))
	assert.Equal(t, StateFailed, seq.State())
	// The bridge transaction never goes out after a reverted approval.
	assert.Equal(t, 1, ws.SentCount())
}

func TestExecuteBridgeRevert(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	ws.ReceiptStatuses = []uint64{ethtypes.ReceiptStatusSuccessful, ethtypes.ReceiptStatusFailed}
	seq := New(zap.NewNop())

	_, err := seq.Execute(context.Background(), ws, bridgeBundle(true), bridgeSession())
	assert.ErrorIs(t, err, errs.ErrOnChainRevert)
	assert.Equal(t, StateFailed, seq.State())
}

func TestExecuteNilBundle(t *testing.T) {
	ws := wallet.NewFakeSession(sender, rootChain)
	seq := New(zap.NewNop())

	_, err := seq.Execute(context.Background(), ws, nil, bridgeSession())
	assert.Error(t, err)
}

func TestExecuteTransferResult(t *testing.T) {
	ws := wallet.NewFakeSession(sender, childChain)
	seq := New(zap.NewNop())

	session := types.BridgeSession{
		From: types.Endpoint{Address: sender, ChainID: childChain},
		To:   types.Endpoint{Address: sender, ChainID: childChain},
	}
	result, err := seq.Execute(context.Background(), ws, bridgeBundle(false), session)
	require.NoError(t, err)
	assert.True(t, result.IsTransfer)
}
