package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/screening"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

// Selection is the outcome of picking one side of the bridge. When
// NeedsNetworkChoice is set the endpoint's chain is still undecided
// and ChooseFromNetwork / ChooseToNetwork must follow.
type Selection struct {
	Endpoint           types.Endpoint
	NeedsNetworkChoice bool
}

// Selector resolves the from/to (wallet, network) pair under the
// bridge's domain constraints. It owns the in-progress selection;
// the completed BridgeSession is read-only everywhere else.
type Selector struct {
	reg    *registry.Registry
	screen screening.Checker
	log    *zap.Logger

	mu   sync.Mutex
	from *types.Endpoint
	to   *types.Endpoint
}

// New creates a selector.
func New(reg *registry.Registry, screen screening.Checker, log *zap.Logger) *Selector {
	return &Selector{reg: reg, screen: screen, log: log}
}

// SelectFrom accepts a candidate "from" wallet. Screening strictly
// precedes acceptance. Custodial wallets are pinned to the child
// chain and skip the explicit network choice; any other wallet must
// choose a network before the selection is usable. Choosing a new
// "from" always clears a previously chosen "to".
func (s *Selector) SelectFrom(ctx context.Context, session wallet.Session) (*Selection, error) {
	if err := s.screenAddress(ctx, session.Address()); err != nil {
		return nil, err
	}

	endpoint := types.Endpoint{
		Address: session.Address(),
		Kind:    session.Kind(),
	}

	needsChoice := true
	if session.Kind() == types.WalletCustodialManaged {
		endpoint.ChainID = s.reg.Child().ChainID
		needsChoice = false
	}

	s.mu.Lock()
	s.from = &endpoint
	s.to = nil // one-directional invalidation
	s.mu.Unlock()

	return &Selection{Endpoint: endpoint, NeedsNetworkChoice: needsChoice}, nil
}

// ChooseFromNetwork pins the previously selected "from" wallet to a
// network role.
func (s *Selector) ChooseFromNetwork(role types.NetworkRole) error {
	chain, err := s.reg.ByRole(role)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.from == nil {
		return fmt.Errorf("no from wallet selected")
	}
	if s.from.Kind == types.WalletCustodialManaged && role != types.RoleChild {
		return fmt.Errorf("custodial wallet is pinned to the child chain")
	}
	s.from.ChainID = chain.ChainID
	s.to = nil
	return nil
}

// SelectTo accepts a candidate "to" wallet. If its account identity
// matches "from" exactly, the network is auto-derived: child unless
// "from" is already on the child chain, in which case root. That
// models "deposit to self" vs "withdraw to self". A different
// identity still needs an explicit network choice.
func (s *Selector) SelectTo(ctx context.Context, session wallet.Session) (*Selection, error) {
	s.mu.Lock()
	from := s.from
	s.mu.Unlock()

	if from == nil || from.ChainID == nil {
		return nil, fmt.Errorf("from wallet and network must be selected first")
	}

	if err := s.screenAddress(ctx, session.Address()); err != nil {
		return nil, err
	}

	endpoint := types.Endpoint{
		Address: session.Address(),
		Kind:    session.Kind(),
	}

	if endpoint.Address == from.Address {
		child := s.reg.Child()
		if from.ChainID.Cmp(child.ChainID) == 0 {
			endpoint.ChainID = s.reg.Root().ChainID
		} else {
			endpoint.ChainID = child.ChainID
		}

		s.mu.Lock()
		s.to = &endpoint
		s.mu.Unlock()
		return &Selection{Endpoint: endpoint}, nil
	}

	if endpoint.Kind == types.WalletCustodialManaged {
		endpoint.ChainID = s.reg.Child().ChainID
		s.mu.Lock()
		s.to = &endpoint
		s.mu.Unlock()
		return &Selection{Endpoint: endpoint}, nil
	}

	s.mu.Lock()
	s.to = &endpoint
	s.mu.Unlock()
	return &Selection{Endpoint: endpoint, NeedsNetworkChoice: true}, nil
}

// ChooseToNetwork pins the previously selected "to" wallet to a
// network role.
func (s *Selector) ChooseToNetwork(role types.NetworkRole) error {
	chain, err := s.reg.ByRole(role)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.to == nil {
		return fmt.Errorf("no to wallet selected")
	}
	if s.to.Kind == types.WalletCustodialManaged && role != types.RoleChild {
		return fmt.Errorf("custodial wallet is pinned to the child chain")
	}
	s.to.ChainID = chain.ChainID
	return nil
}

// Session returns the completed BridgeSession, or an error while
// either side is unresolved.
func (s *Selector) Session() (types.BridgeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.from == nil || s.from.ChainID == nil {
		return types.BridgeSession{}, fmt.Errorf("from selection is incomplete")
	}
	if s.to == nil || s.to.ChainID == nil {
		return types.BridgeSession{}, fmt.Errorf("to selection is incomplete")
	}
	return types.BridgeSession{From: *s.from, To: *s.to}, nil
}

// Reset discards any in-progress selection. Used when navigation
// returns to the wallet selection view; the session is replaced
// wholesale, never patched.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from = nil
	s.to = nil
}

// SwallowRejection reports whether a wallet-connect error was a plain
// user rejection, which is logged and otherwise ignored.
func (s *Selector) SwallowRejection(err error) bool {
	if errors.Is(errs.Classify(err), errs.ErrUserRejected) {
		s.log.Info("wallet connect rejected by user", zap.Error(err))
		return true
	}
	return false
}

// screenAddress blocks selection of sanctioned addresses. Screening
// failures follow the checker's configured policy; a positive match
// is terminal.
func (s *Selector) screenAddress(ctx context.Context, address common.Address) error {
	sanctioned, err := s.screen.IsSanctioned(ctx, address, s.reg.Environment())
	if err != nil {
		return fmt.Errorf("screening unavailable for %s: %w", address.Hex(), errs.ErrServiceUnavailable)
	}
	if sanctioned {
		return fmt.Errorf("wallet %s: %w", address.Hex(), errs.ErrSanctionedAddress)
	}
	return nil
}
