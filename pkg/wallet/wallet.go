package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"bridgectl/pkg/types"
)

// Session is the wallet session provider capability: a connected
// signer plus the chain operations the bridge flow needs. All
// blocking operations take a context.
type Session interface {
	// Address returns the signer's account address.
	Address() common.Address

	// Kind reports how the wallet is managed. Custodial wallets are
	// pinned to the child chain and cannot sign root-chain claims.
	Kind() types.WalletKind

	// ChainID returns the wallet's currently active chain id.
	ChainID(ctx context.Context) (*big.Int, error)

	// SwitchChain asks the wallet to change its active chain. The
	// user may decline, which surfaces as errs.ErrUserRejected.
	SwitchChain(ctx context.Context, chainID *big.Int) error

	// EstimateGas estimates the gas limit for a call.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// SuggestGasPrice returns the current gas price on the active chain.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// BalanceAt returns the native balance of an account on the
	// active chain.
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)

	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	// SendTransaction signs and submits an unsigned transaction on
	// the active chain and returns its hash.
	SendTransaction(ctx context.Context, tx *types.UnsignedTx) (common.Hash, error)

	// WaitForReceipt blocks until the transaction is mined or the
	// context is cancelled.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)

	// ChainChanged returns a channel that receives the new chain id
	// whenever the wallet's active chain changes.
	ChainChanged() <-chan *big.Int
}
