package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

// State is the sequencer's position in the approve-then-send set.
type State string

const (
	StateIdle       State = "idle"
	StateApproving  State = "approving"
	StateApproved   State = "approved"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateSettled    State = "settled"
	StateFailed     State = "failed"
)

// Sequencer executes the ordered {approve?, bridge|transfer}
// transaction set against a connected wallet. Progress is tracked per
// bundle so a retry after a rejected step resumes exactly where it
// left off: a completed approval is never re-sent, and the bridge
// transaction is never sent before a successful approval exists.
type Sequencer struct {
	log *zap.Logger

	mu       sync.Mutex
	running  bool
	state    State
	bundle   *types.BridgeTransactionBundle
	approved bool
}

// New creates an idle sequencer.
func New(log *zap.Logger) *Sequencer {
	return &Sequencer{log: log, state: StateIdle}
}

// State returns the current sequencing state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Execute runs the transaction set for the bundle. The wallet's
// active chain is re-checked against the session before anything is
// sent; a mismatch suspends execution with errs.ErrNetworkMismatch
// rather than switching silently. User rejection of either step is
// retryable by calling Execute again with the same bundle.
func (s *Sequencer) Execute(ctx context.Context, ws wallet.Session, bundle *types.BridgeTransactionBundle, session types.BridgeSession) (*types.SequenceResult, error) {
	if bundle == nil {
		return nil, fmt.Errorf("no transaction bundle to execute")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("a transaction sequence is already in flight")
	}
	if s.bundle != bundle {
		// New bundle: forget any progress from a prior attempt.
		s.bundle = bundle
		s.approved = false
		s.state = StateIdle
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	chainID, err := ws.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet chain: %w", errs.Classify(err))
	}
	if session.From.ChainID == nil || chainID.Cmp(session.From.ChainID) != 0 {
		s.log.Warn("wallet chain does not match session source",
			zap.String("wallet", chainID.String()),
			zap.String("session", session.From.ChainID.String()))
		return nil, errs.ErrNetworkMismatch
	}

	if bundle.ApproveTx != nil && !s.isApproved() {
		if err := s.runApproval(ctx, ws, bundle.ApproveTx); err != nil {
			return nil, err
		}
	}

	hash, err := s.runSubmission(ctx, ws, &bundle.BridgeTx)
	if err != nil {
		return nil, err
	}

	return &types.SequenceResult{TxHash: hash, IsTransfer: session.IsTransfer()}, nil
}

// runApproval sends the approval and waits for its receipt. The
// dependent transaction must not be sent until this settles
// successfully.
func (s *Sequencer) runApproval(ctx context.Context, ws wallet.Session, tx *types.UnsignedTx) error {
	s.setState(StateApproving)

	hash, err := ws.SendTransaction(ctx, tx)
	if err != nil {
		classified := errs.Classify(err)
		if errors.Is(classified, errs.ErrUserRejected) {
			// Retryable: stay at the approval step.
			s.setState(StateIdle)
			return classified
		}
		s.setState(StateFailed)
		return fmt.Errorf("approval failed: %w", classified)
	}

	s.log.Info("approval submitted", zap.String("hash", hash.Hex()))

	receipt, err := ws.WaitForReceipt(ctx, hash)
	if err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("approval receipt: %w", errs.Classify(err))
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		s.setState(StateFailed)
		return fmt.Errorf("approval %s: %w", hash.Hex(), errs.ErrOnChainRevert)
	}

	s.mu.Lock()
	s.approved = true
	s.state = StateApproved
	s.mu.Unlock()
	return nil
}

// runSubmission sends the bridge or transfer transaction and waits
// for settlement.
func (s *Sequencer) runSubmission(ctx context.Context, ws wallet.Session, tx *types.UnsignedTx) (hash common.Hash, err error) {
	s.setState(StateSubmitting)

	hash, err = ws.SendTransaction(ctx, tx)
	if err != nil {
		classified := errs.Classify(err)
		if errors.Is(classified, errs.ErrUserRejected) {
			// Retryable: the approval (if any) remains valid.
			s.setState(StateApproved)
			return common.Hash{}, classified
		}
		s.setState(StateFailed)
		return common.Hash{}, fmt.Errorf("submission failed: %w", classified)
	}

	s.setState(StateSubmitted)
	s.log.Info("transaction submitted", zap.String("hash", hash.Hex()))

	receipt, err := ws.WaitForReceipt(ctx, hash)
	if err != nil {
		s.setState(StateFailed)
		return common.Hash{}, fmt.Errorf("settlement receipt: %w", errs.Classify(err))
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		s.setState(StateFailed)
		return common.Hash{}, fmt.Errorf("transaction %s: %w", hash.Hex(), errs.ErrOnChainRevert)
	}

	s.setState(StateSettled)
	return hash, nil
}

func (s *Sequencer) isApproved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approved
}

func (s *Sequencer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
