package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/types"
)

const receiptPollInterval = 2 * time.Second

// KeyedSession is a Session backed by a local private key and one RPC
// client per registered chain. Switching chains re-points the session
// at the other chain's client; there is no wallet UI to decline, so
// SwitchChain always succeeds here.
type KeyedSession struct {
	kind       types.WalletKind
	privateKey *ecdsa.PrivateKey
	address    common.Address
	reg        *registry.Registry
	log        *zap.Logger

	mu      sync.RWMutex
	active  registry.Chain
	clients map[string]*ethclient.Client // keyed by chain id string
	changed chan *big.Int
}

var _ Session = (*KeyedSession)(nil)

// NewKeyedSession connects a private-key signer. Custodial sessions
// start pinned to the child chain; standard ones start on the root.
func NewKeyedSession(privateKeyHex string, kind types.WalletKind, reg *registry.Registry, log *zap.Logger) (*KeyedSession, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to derive public key")
	}

	active := reg.Root()
	if kind == types.WalletCustodialManaged {
		active = reg.Child()
	}

	s := &KeyedSession{
		kind:       kind,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		reg:        reg,
		log:        log,
		active:     active,
		clients:    make(map[string]*ethclient.Client),
		changed:    make(chan *big.Int, 4),
	}
	return s, nil
}

// Address returns the signer's account address.
func (s *KeyedSession) Address() common.Address {
	return s.address
}

// Kind reports how the wallet is managed.
func (s *KeyedSession) Kind() types.WalletKind {
	return s.kind
}

// ChainID returns the active chain id.
func (s *KeyedSession) ChainID(ctx context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.active.ChainID), nil
}

// SwitchChain re-points the session at the requested chain.
// Custodial wallets are pinned to the child chain and refuse to move.
func (s *KeyedSession) SwitchChain(ctx context.Context, chainID *big.Int) error {
	role, err := s.reg.RoleOf(chainID)
	if err != nil {
		return err
	}
	target, err := s.reg.ByRole(role)
	if err != nil {
		return err
	}
	if s.kind == types.WalletCustodialManaged && target.Role != types.RoleChild {
		return fmt.Errorf("custodial wallet cannot leave the child chain: %w", errs.ErrUserRejected)
	}

	s.mu.Lock()
	s.active = target
	s.mu.Unlock()

	s.log.Info("switched active chain", zap.String("chainId", chainID.String()))
	select {
	case s.changed <- new(big.Int).Set(chainID):
	default:
	}
	return nil
}

// EstimateGas estimates the gas limit for a call on the active chain.
func (s *KeyedSession) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	client, err := s.client(ctx)
	if err != nil {
		return 0, err
	}
	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// SuggestGasPrice returns the current gas price on the active chain.
func (s *KeyedSession) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// BalanceAt returns the native balance on the active chain.
func (s *KeyedSession) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// CallContract executes a read-only contract call on the active chain.
func (s *KeyedSession) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, nil)
}

// SendTransaction signs and submits an unsigned transaction on the
// active chain.
func (s *KeyedSession) SendTransaction(ctx context.Context, utx *types.UnsignedTx) (common.Hash, error) {
	s.mu.RLock()
	chain := s.active
	s.mu.RUnlock()

	client, err := s.client(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := utx.GasLimit
	if gasLimit == 0 {
		msg := ethereum.CallMsg{
			From:  s.address,
			To:    &utx.To,
			Value: utx.Value,
			Data:  utx.Data,
		}
		estimated, err := client.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100 // 20% buffer
	}

	value := utx.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := ethtypes.NewTransaction(nonce, utx.To, value, gasLimit, gasPrice, utx.Data)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chain.ChainID), s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	s.log.Info("transaction submitted",
		zap.String("hash", signedTx.Hash().Hex()),
		zap.String("chainId", chain.ChainID.String()))
	return signedTx.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined or the context
// is cancelled.
func (s *KeyedSession) WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ChainChanged returns the chain-change notification channel.
func (s *KeyedSession) ChainChanged() <-chan *big.Int {
	return s.changed
}

// Close releases all RPC client connections.
func (s *KeyedSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[string]*ethclient.Client)
}

// client returns (dialing lazily) the RPC client for the active chain.
func (s *KeyedSession) client(ctx context.Context) (*ethclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.active.ChainID.String()
	if client, ok := s.clients[key]; ok {
		return client, nil
	}

	client, err := ethclient.DialContext(ctx, s.active.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	s.clients[key] = client
	return client, nil
}
