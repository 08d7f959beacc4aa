package selector

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bridgectl/config"
	"bridgectl/pkg/errs"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

var (
	rootChain  = big.NewInt(11155111)
	childChain = big.NewInt(13473)
	alice      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob        = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeChecker struct {
	sanctioned map[common.Address]bool
	err        error
}

func (f *fakeChecker) IsSanctioned(ctx context.Context, address common.Address, environment string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.sanctioned[address], nil
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

func newSelector(t *testing.T, checker *fakeChecker) *Selector {
	t.Helper()
	if checker == nil {
		checker = &fakeChecker{}
	}
	return New(testRegistry(t), checker, zap.NewNop())
}

func TestSelectFromStandardNeedsNetworkChoice(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, rootChain)

	sel, err := s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, sel.NeedsNetworkChoice)
	assert.Nil(t, sel.Endpoint.ChainID)

	require.NoError(t, s.ChooseFromNetwork(types.RoleRoot))
	_, err = s.Session()
	assert.Error(t, err) // "to" still unresolved
}

func TestSelectFromCustodialPinnedToChild(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, childChain)
	ws.WalletKind = types.WalletCustodialManaged

	sel, err := s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	assert.False(t, sel.NeedsNetworkChoice)
	assert.Equal(t, childChain.String(), sel.Endpoint.ChainID.String())

	// Moving a custodial wallet to the root chain is refused.
	assert.Error(t, s.ChooseFromNetwork(types.RoleRoot))
	assert.NoError(t, s.ChooseFromNetwork(types.RoleChild))
}

func TestSelectToSameIdentityDerivesNetwork(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, rootChain)

	_, err := s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	require.NoError(t, s.ChooseFromNetwork(types.RoleRoot))

	// Same identity on the root chain: "to" lands on the child.
	sel, err := s.SelectTo(context.Background(), ws)
	require.NoError(t, err)
	assert.False(t, sel.NeedsNetworkChoice)
	assert.Equal(t, childChain.String(), sel.Endpoint.ChainID.String())

	session, err := s.Session()
	require.NoError(t, err)
	assert.False(t, session.IsTransfer())
}

func TestSelectToSameIdentityFromChildDerivesRoot(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, childChain)

	_, err := s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	require.NoError(t, s.ChooseFromNetwork(types.RoleChild))

	sel, err := s.SelectTo(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, rootChain.String(), sel.Endpoint.ChainID.String())
}

func TestSelectToDifferentIdentityNeedsChoice(t *testing.T) {
	s := newSelector(t, nil)
	from := wallet.NewFakeSession(alice, rootChain)
	to := wallet.NewFakeSession(bob, rootChain)

	_, err := s.SelectFrom(context.Background(), from)
	require.NoError(t, err)
	require.NoError(t, s.ChooseFromNetwork(types.RoleRoot))

	sel, err := s.SelectTo(context.Background(), to)
	require.NoError(t, err)
	assert.True(t, sel.NeedsNetworkChoice)

	require.NoError(t, s.ChooseToNetwork(types.RoleRoot))
	session, err := s.Session()
	require.NoError(t, err)
	assert.True(t, session.IsTransfer())
}

func TestSelectToRequiresCompleteFrom(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, rootChain)

	_, err := s.SelectTo(context.Background(), ws)
	assert.Error(t, err)

	_, err = s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	// Network still unchosen.
	_, err = s.SelectTo(context.Background(), ws)
	assert.Error(t, err)
}

func TestChangingFromClearsTo(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, rootChain)

	_, err := s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	require.NoError(t, s.ChooseFromNetwork(types.RoleRoot))
	_, err = s.SelectTo(context.Background(), ws)
	require.NoError(t, err)
	_, err = s.Session()
	require.NoError(t, err)

	// Re-picking "from" invalidates the completed pair.
	_, err = s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	_, err = s.Session()
	assert.Error(t, err)
}

func TestSanctionedAddressBlocksSelection(t *testing.T) {
	checker := &fakeChecker{sanctioned: map[common.Address]bool{bob: true}}
	s := newSelector(t, checker)

	_, err := s.SelectFrom(context.Background(), wallet.NewFakeSession(bob, rootChain))
	assert.ErrorIs(t, err, errs.ErrSanctionedAddress)

	_, err = s.SelectFrom(context.Background(), wallet.NewFakeSession(alice, rootChain))
	require.NoError(t, err)
	require.NoError(t, s.ChooseFromNetwork(types.RoleRoot))

	_, err = s.SelectTo(context.Background(), wallet.NewFakeSession(bob, rootChain))
	assert.ErrorIs(t, err, errs.ErrSanctionedAddress)
}

func TestScreeningOutageBlocksSelection(t *testing.T) {
	checker := &fakeChecker{err: errors.New("screening backend down")}
	s := newSelector(t, checker)

	_, err := s.SelectFrom(context.Background(), wallet.NewFakeSession(alice, rootChain))
	assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
}

func TestReset(t *testing.T) {
	s := newSelector(t, nil)
	ws := wallet.NewFakeSession(alice, rootChain)

	_, err := s.SelectFrom(context.Background(), ws)
	require.NoError(t, err)
	require.NoError(t, s.ChooseFromNetwork(types.RoleRoot))
	_, err = s.SelectTo(context.Background(), ws)
	require.NoError(t, err)

	s.Reset()
	_, err = s.Session()
	assert.Error(t, err)
}

func TestSwallowRejection(t *testing.T) {
	s := newSelector(t, nil)
	assert.True(t, s.SwallowRejection(errors.New("user rejected the request")))
	assert.False(t, s.SwallowRejection(errors.New("connection refused")))
}
