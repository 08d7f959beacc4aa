package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"bridgectl/pkg/types"
)

// FakeSession is an in-memory Session for tests. Error queues are
// consumed one entry per call, so a scripted rejection followed by a
// retry is easy to express.
type FakeSession struct {
	Addr       common.Address
	WalletKind types.WalletKind

	mu            sync.Mutex
	Chain         *big.Int
	GasPrice      *big.Int
	GasLimit      uint64
	NativeBalance *big.Int
	CallResult    []byte

	EstimateErrs []error
	SendErrs     []error
	SwitchErrs   []error
	BalanceErr   error

	ReceiptStatuses []uint64 // defaults to success when exhausted

	Sent     []*types.UnsignedTx
	Switched []*big.Int

	changed  chan *big.Int
	hashSeed uint64
}

var _ Session = (*FakeSession)(nil)

// NewFakeSession creates a fake standard wallet on the given chain.
func NewFakeSession(addr common.Address, chain *big.Int) *FakeSession {
	return &FakeSession{
		Addr:          addr,
		WalletKind:    types.WalletStandard,
		Chain:         chain,
		GasPrice:      big.NewInt(1_000_000_000),
		GasLimit:      50_000,
		NativeBalance: new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		changed:       make(chan *big.Int, 4),
	}
}

func (f *FakeSession) Address() common.Address { return f.Addr }

func (f *FakeSession) Kind() types.WalletKind { return f.WalletKind }

func (f *FakeSession) ChainID(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.Chain), nil
}

func (f *FakeSession) SwitchChain(ctx context.Context, chainID *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.SwitchErrs); err != nil {
		return err
	}
	f.Chain = new(big.Int).Set(chainID)
	f.Switched = append(f.Switched, new(big.Int).Set(chainID))
	select {
	case f.changed <- new(big.Int).Set(chainID):
	default:
	}
	return nil
}

func (f *FakeSession) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.EstimateErrs); err != nil {
		return 0, err
	}
	return f.GasLimit, nil
}

func (f *FakeSession) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.GasPrice), nil
}

func (f *FakeSession) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	return new(big.Int).Set(f.NativeBalance), nil
}

func (f *FakeSession) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CallResult, nil
}

func (f *FakeSession) SendTransaction(ctx context.Context, tx *types.UnsignedTx) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.SendErrs); err != nil {
		return common.Hash{}, err
	}
	f.Sent = append(f.Sent, tx)
	f.hashSeed++
	return common.HexToHash(fmt.Sprintf("0x%064x", f.hashSeed)), nil
}

func (f *FakeSession) WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := ethtypes.ReceiptStatusSuccessful
	if len(f.ReceiptStatuses) > 0 {
		status = f.ReceiptStatuses[0]
		f.ReceiptStatuses = f.ReceiptStatuses[1:]
	}
	return &ethtypes.Receipt{Status: status, TxHash: txHash}, nil
}

func (f *FakeSession) ChainChanged() <-chan *big.Int { return f.changed }

// SentCount returns how many transactions were submitted.
func (f *FakeSession) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}
