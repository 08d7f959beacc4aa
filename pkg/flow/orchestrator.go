package flow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgectl/pkg/claim"
	"bridgectl/pkg/errs"
	"bridgectl/pkg/history"
	"bridgectl/pkg/quote"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/selector"
	"bridgectl/pkg/sequencer"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

// Orchestrator sequences the guided bridge flow: wallet selection,
// the amount form, fee review with periodic refresh, the
// approve-then-send transaction set, and withdrawal claiming. It owns
// the BridgeSession and TokenSelection snapshots; only the active
// view's operation mutates them, everything else reads.
type Orchestrator struct {
	reg      *registry.Registry
	selector *selector.Selector
	est      *quote.Estimator
	seq      *sequencer.Sequencer
	resolver *claim.Resolver
	hist     history.Service
	emitter  Emitter
	log      *zap.Logger

	quoteInterval   time.Duration
	balanceInterval time.Duration

	mu          sync.Mutex
	view        ViewState
	session     *types.BridgeSession
	tokenSel    *types.TokenSelection
	latestQuote *types.QuoteResult
	notice      *quote.WithdrawalNotice
	ws          wallet.Session
	walletChain *big.Int
	watchCancel context.CancelFunc
	requiredGas *big.Int
	gasBalance  *big.Int

	quoteTask   *Task
	balanceTask *Task
}

// NewOrchestrator wires the flow together.
func NewOrchestrator(
	reg *registry.Registry,
	sel *selector.Selector,
	est *quote.Estimator,
	seq *sequencer.Sequencer,
	resolver *claim.Resolver,
	hist history.Service,
	emitter Emitter,
	quoteInterval, balanceInterval time.Duration,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		reg:             reg,
		selector:        sel,
		est:             est,
		seq:             seq,
		resolver:        resolver,
		hist:            hist,
		emitter:         emitter,
		log:             log,
		quoteInterval:   quoteInterval,
		balanceInterval: balanceInterval,
		view:            NewViewState(),
	}
}

// CurrentView returns the active view tag.
func (o *Orchestrator) CurrentView() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view.Current()
}

// Session returns the latest BridgeSession snapshot, if complete.
func (o *Orchestrator) Session() (types.BridgeSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return types.BridgeSession{}, false
	}
	return *o.session, true
}

// Quote returns the latest quote snapshot and flow-rate notice.
func (o *Orchestrator) Quote() (*types.QuoteResult, *quote.WithdrawalNotice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latestQuote, o.notice
}

// ConnectFrom accepts the "from" wallet. A plain user rejection is
// swallowed and logged; a sanctions hit or screening outage routes to
// the terminal service-unavailable view. The returned flag asks the
// caller to open the network choice next.
func (o *Orchestrator) ConnectFrom(ctx context.Context, ws wallet.Session) (needsNetworkChoice bool, err error) {
	sel, err := o.selector.SelectFrom(ctx, ws)
	if err != nil {
		o.routeSelectionError(err)
		return false, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	if o.watchCancel != nil {
		o.watchCancel()
	}
	o.watchCancel = cancel
	o.ws = ws
	o.walletChain = nil
	o.session = nil
	o.tokenSel = nil
	o.latestQuote = nil
	o.notice = nil
	o.mu.Unlock()

	go o.watchChainChanges(watchCtx, ws)

	return sel.NeedsNetworkChoice, nil
}

// watchChainChanges consumes the wallet's chain-changed notifications
// for the lifetime of the connection, so a mid-flow network switch is
// observable without polling the wallet.
func (o *Orchestrator) watchChainChanges(ctx context.Context, ws wallet.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case chainID, ok := <-ws.ChainChanged():
			if !ok {
				return
			}
			o.mu.Lock()
			o.walletChain = chainID
			session := o.session
			o.mu.Unlock()

			if session != nil && session.From.ChainID != nil && chainID.Cmp(session.From.ChainID) != 0 {
				o.log.Warn("wallet left the session source chain",
					zap.String("chainId", chainID.String()))
			}
		}
	}
}

// ChainMismatch reports whether the wallet was last observed on a
// chain other than the session's source.
func (o *Orchestrator) ChainMismatch() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil || o.session.From.ChainID == nil || o.walletChain == nil {
		return false
	}
	return o.walletChain.Cmp(o.session.From.ChainID) != 0
}

// ChooseFromNetwork pins the "from" side to a network role.
func (o *Orchestrator) ChooseFromNetwork(role types.NetworkRole) error {
	return o.selector.ChooseFromNetwork(role)
}

// ConnectTo accepts the "to" wallet; when the selection completes the
// flow advances to the bridge form.
func (o *Orchestrator) ConnectTo(ctx context.Context, ws wallet.Session) (needsNetworkChoice bool, err error) {
	sel, err := o.selector.SelectTo(ctx, ws)
	if err != nil {
		o.routeSelectionError(err)
		return false, err
	}
	if sel.NeedsNetworkChoice {
		return true, nil
	}
	return false, o.completeSelection()
}

// ChooseToNetwork pins the "to" side and completes the selection.
func (o *Orchestrator) ChooseToNetwork(role types.NetworkRole) error {
	if err := o.selector.ChooseToNetwork(role); err != nil {
		return err
	}
	return o.completeSelection()
}

func (o *Orchestrator) completeSelection() error {
	session, err := o.selector.Session()
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.session = &session
	o.mu.Unlock()

	return o.apply(UpdateView(ViewBridgeForm))
}

// SetToken validates and records the form step's token selection.
// Amounts above the wallet's balance are rejected before any quote is
// produced, and any prior quote/bundle is invalidated.
func (o *Orchestrator) SetToken(ctx context.Context, token types.TokenInfo, amount string) error {
	o.mu.Lock()
	session := o.session
	ws := o.ws
	o.mu.Unlock()

	if session == nil || ws == nil {
		return fmt.Errorf("wallet and network selection is not complete")
	}

	units, err := types.ParseUnits(amount, token.Decimals)
	if err != nil {
		return err
	}
	if units.Sign() == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	balance, err := o.tokenBalance(ctx, ws, token, session.From)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", errs.Classify(err))
	}
	if units.Cmp(balance) > 0 {
		return fmt.Errorf("amount %s exceeds balance %s: %w",
			amount, types.FormatUnits(balance, token.Decimals), errs.ErrInsufficientFunds)
	}

	o.mu.Lock()
	o.tokenSel = &types.TokenSelection{Token: token, Amount: amount, Units: units}
	// A changed amount or token makes any previous bundle stale.
	o.latestQuote = nil
	o.notice = nil
	o.mu.Unlock()
	return nil
}

// Review quotes the pending operation and advances to the review
// view. The flow-rate policy is evaluated once per bundle fetch here;
// the periodic refresh only replaces fee numbers.
func (o *Orchestrator) Review(ctx context.Context) error {
	o.mu.Lock()
	session, tokenSel, ws := o.session, o.tokenSel, o.ws
	o.mu.Unlock()

	if session == nil || tokenSel == nil || ws == nil {
		return fmt.Errorf("token selection is not complete")
	}

	result, err := o.est.Estimate(ctx, ws, *session, *tokenSel)
	if err != nil {
		return err
	}

	var notice *quote.WithdrawalNotice
	if result.Bundle != nil {
		notice = quote.EvaluateWithdrawalPolicy(result.Bundle, tokenSel.Units)
	}

	o.mu.Lock()
	o.latestQuote = result
	o.notice = notice
	o.mu.Unlock()

	if err := o.apply(UpdateView(ViewBridgeReview)); err != nil {
		return err
	}

	o.startQuoteRefresh()
	return nil
}

// startQuoteRefresh runs the fixed-interval re-quote while the review
// view is mounted. Every tick replaces the quote wholesale; it is
// cancelled, not merely ignored, when the view is left.
func (o *Orchestrator) startQuoteRefresh() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.quoteTask != nil && o.quoteTask.Running() {
		return
	}
	o.quoteTask = NewTask("quote-refresh", o.quoteInterval, o.refreshQuote, o.log)
	o.quoteTask.Start()
}

func (o *Orchestrator) refreshQuote(ctx context.Context) {
	o.mu.Lock()
	session, tokenSel, ws := o.session, o.tokenSel, o.ws
	o.mu.Unlock()
	if session == nil || tokenSel == nil || ws == nil {
		return
	}

	result, err := o.est.Estimate(ctx, ws, *session, *tokenSel)
	if err != nil {
		o.log.Warn("quote refresh failed", zap.Error(err))
		return
	}

	o.mu.Lock()
	// A refresh replaces the fee numbers; the transaction set stays
	// bound to the bundle that was reviewed.
	if o.latestQuote != nil && o.latestQuote.Bundle != nil {
		result.Bundle = o.latestQuote.Bundle
	}
	o.latestQuote = result
	o.mu.Unlock()
}

// Confirm executes the reviewed operation. User rejection leaves the
// flow on the same step for a retry; terminal failures emit the
// failure event and land on the failure view.
func (o *Orchestrator) Confirm(ctx context.Context) (*types.SequenceResult, error) {
	o.mu.Lock()
	session, tokenSel, q, ws := o.session, o.tokenSel, o.latestQuote, o.ws
	o.mu.Unlock()

	if session == nil || tokenSel == nil || ws == nil {
		return nil, fmt.Errorf("nothing to confirm")
	}
	if q == nil {
		return nil, fmt.Errorf("quote is stale, review the transfer again")
	}

	o.stopQuoteRefresh()

	bundle := q.Bundle
	if bundle == nil {
		var err error
		bundle, err = o.buildTransferBundle(*session, *tokenSel)
		if err != nil {
			return nil, err
		}
		// Keep the synthesized bundle so a retry resumes it.
		o.mu.Lock()
		q.Bundle = bundle
		o.mu.Unlock()
	}

	if bundle.ApproveTx != nil {
		if err := o.apply(UpdateView(ViewApproveTransaction)); err != nil {
			return nil, err
		}
	}
	if err := o.apply(UpdateView(ViewInProgress)); err != nil {
		return nil, err
	}

	result, err := o.seq.Execute(ctx, ws, bundle, *session)
	if err != nil {
		if errs.Retryable(err) {
			// Re-offer the same step: back to review, with its quote
			// refresh running again.
			if nerr := o.apply(GoBackTo(ViewBridgeReview)); nerr != nil {
				o.log.Warn("failed to rewind to review", zap.Error(nerr))
			} else {
				o.startQuoteRefresh()
			}
			return nil, err
		}
		o.emitter.Emit(Event{Kind: EventFailure, Reason: err.Error()})
		_ = o.apply(UpdateView(ViewBridgeFailure))
		return nil, err
	}

	o.emitter.Emit(Event{Kind: EventTransactionSent, TxHash: result.TxHash})
	return result, o.apply(UpdateView(ViewTransactions))
}

// SwitchToSource asks the wallet to move to the session's source
// chain after a network mismatch. The switch is always explicit,
// never silent.
func (o *Orchestrator) SwitchToSource(ctx context.Context) error {
	o.mu.Lock()
	session, ws := o.session, o.ws
	o.mu.Unlock()
	if session == nil || ws == nil {
		return fmt.Errorf("no active session")
	}
	if err := ws.SwitchChain(ctx, session.From.ChainID); err != nil {
		return errs.Classify(err)
	}
	return nil
}

// PendingWithdrawals lists the wallet's claimable and in-flight
// withdrawals from the history service.
func (o *Orchestrator) PendingWithdrawals(ctx context.Context) ([]types.WithdrawalRecord, error) {
	o.mu.Lock()
	ws := o.ws
	o.mu.Unlock()
	if ws == nil {
		return nil, fmt.Errorf("no wallet connected")
	}
	return o.hist.PendingWithdrawals(ctx, ws.Address())
}

// StartClaim opens the claim view for a pending withdrawal.
func (o *Orchestrator) StartClaim(record types.WithdrawalRecord) error {
	return o.apply(UpdateView(ViewClaimWithdrawal))
}

// ExecuteClaim resolves eligibility and submits the claim. An
// insufficient gas balance routes to the top-up view with a balance
// poller instead of failing outright.
func (o *Orchestrator) ExecuteClaim(ctx context.Context, record types.WithdrawalRecord) (*types.ClaimResult, error) {
	o.mu.Lock()
	ws := o.ws
	o.mu.Unlock()
	if ws == nil {
		return nil, fmt.Errorf("no wallet connected")
	}

	elig, err := o.resolver.Resolve(ctx, record)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		if elig.ReadyIn != "" {
			return nil, fmt.Errorf("withdrawal not ready, try again %s", elig.ReadyIn)
		}
		return nil, fmt.Errorf("withdrawal %d is not claimable", record.Index)
	}

	if err := o.apply(UpdateView(ViewClaimInProgress)); err != nil {
		return nil, err
	}

	result, err := o.resolver.Claim(ctx, ws, record)
	if err != nil {
		if claim.IsTopUpRequired(err) {
			o.enterTopUp(ws)
			return nil, err
		}
		o.emitter.Emit(Event{Kind: EventClaimFailure, TxHash: record.TxHash, Reason: err.Error()})
		_ = o.apply(UpdateView(ViewClaimFailure))
		return nil, err
	}

	receipt, err := ws.WaitForReceipt(ctx, result.TxHash)
	if err != nil || receipt.Status != ethtypes.ReceiptStatusSuccessful {
		reason := "claim reverted on chain"
		if err != nil {
			reason = err.Error()
		}
		o.emitter.Emit(Event{Kind: EventClaimFailure, TxHash: result.TxHash, Reason: reason})
		_ = o.apply(UpdateView(ViewClaimFailure))
		return nil, fmt.Errorf("claim %s: %w", result.TxHash.Hex(), errs.ErrOnChainRevert)
	}

	o.emitter.Emit(Event{Kind: EventClaimSuccess, TxHash: result.TxHash})
	return result, o.apply(UpdateView(ViewClaimSuccess))
}

// enterTopUp opens the top-up view and starts the zero-retry balance
// poller; the tick itself is the retry mechanism.
func (o *Orchestrator) enterTopUp(ws wallet.Session) {
	_ = o.apply(UpdateView(ViewTopUpGas))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.balanceTask != nil && o.balanceTask.Running() {
		return
	}
	o.balanceTask = NewTask("gas-balance", o.balanceInterval, func(ctx context.Context) {
		balance, err := ws.BalanceAt(ctx, ws.Address())
		if err != nil {
			o.log.Debug("balance poll failed", zap.Error(err))
			return
		}
		o.mu.Lock()
		o.gasBalance = balance
		o.mu.Unlock()
	}, o.log)
	o.balanceTask.Start()
}

// GasBalance returns the most recent balance seen by the top-up
// poller.
func (o *Orchestrator) GasBalance() *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gasBalance
}

// Back pops one view. State accumulated by the popped view is
// discarded and its timers are cancelled; transactions already
// submitted to the wallet are left alone.
func (o *Orchestrator) Back() error {
	return o.apply(GoBack())
}

// BackTo truncates navigation to the named ancestor view, clearing
// any session or token selection accumulated since it.
func (o *Orchestrator) BackTo(target View) error {
	return o.apply(GoBackTo(target))
}

// Close tears the flow down: all pollers are cancelled and the close
// signal is emitted. A transaction already submitted on chain is not
// cancelled.
func (o *Orchestrator) Close() {
	o.stopQuoteRefresh()
	o.stopBalancePoll()

	o.mu.Lock()
	if o.watchCancel != nil {
		o.watchCancel()
		o.watchCancel = nil
	}
	o.mu.Unlock()

	o.emitter.Emit(Event{Kind: EventClose})
}

// apply runs the pure transition and performs the side effects owed
// for the views that were left.
func (o *Orchestrator) apply(cmd Command) error {
	o.mu.Lock()
	next, popped, err := Transition(o.view, cmd)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.view = next
	o.mu.Unlock()

	for _, v := range popped {
		o.cleanupView(v)
	}
	return nil
}

// cleanupView cancels resources owned by a view that navigation left.
func (o *Orchestrator) cleanupView(v View) {
	switch v {
	case ViewBridgeReview:
		o.stopQuoteRefresh()
	case ViewTopUpGas:
		o.stopBalancePoll()
	case ViewBridgeForm:
		o.mu.Lock()
		o.tokenSel = nil
		o.latestQuote = nil
		o.notice = nil
		o.mu.Unlock()
	case ViewWalletNetworkSelection:
		// Selection restarts from scratch; the session is replaced
		// wholesale, never patched.
		o.selector.Reset()
		o.mu.Lock()
		o.session = nil
		o.tokenSel = nil
		o.latestQuote = nil
		o.notice = nil
		o.mu.Unlock()
	}
}

func (o *Orchestrator) stopQuoteRefresh() {
	o.mu.Lock()
	task := o.quoteTask
	o.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

func (o *Orchestrator) stopBalancePoll() {
	o.mu.Lock()
	task := o.balanceTask
	o.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

// routeSelectionError moves terminal selection failures to their
// block views. Plain rejections are swallowed by the selector.
func (o *Orchestrator) routeSelectionError(err error) {
	switch {
	case errors.Is(err, errs.ErrSanctionedAddress), errors.Is(err, errs.ErrServiceUnavailable):
		_ = o.apply(UpdateView(ViewServiceUnavailable))
	case o.selector.SwallowRejection(err):
		// The user simply closed the wallet prompt.
	default:
		_ = o.apply(UpdateView(ViewError))
	}
}

// buildTransferBundle synthesizes the single-transaction bundle for a
// same-chain send: a native value transfer or an ERC-20 transfer
// call, never an approval.
func (o *Orchestrator) buildTransferBundle(session types.BridgeSession, sel types.TokenSelection) (*types.BridgeTransactionBundle, error) {
	if sel.Token.IsNative() {
		return &types.BridgeTransactionBundle{
			BridgeTx: types.UnsignedTx{
				To:       session.To.Address,
				Value:    sel.Units,
				GasLimit: 21000,
			},
		}, nil
	}

	data, err := wallet.PackTransfer(session.To.Address, sel.Units)
	if err != nil {
		return nil, err
	}
	return &types.BridgeTransactionBundle{
		BridgeTx: types.UnsignedTx{
			To:   *sel.Token.Address,
			Data: data,
		},
	}, nil
}

// tokenBalance reads the native or ERC-20 balance for the session's
// source wallet.
func (o *Orchestrator) tokenBalance(ctx context.Context, ws wallet.Session, token types.TokenInfo, from types.Endpoint) (*big.Int, error) {
	if token.IsNative() {
		return ws.BalanceAt(ctx, from.Address)
	}
	return wallet.ERC20Balance(ctx, ws, *token.Address, from.Address)
}
