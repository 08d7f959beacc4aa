package flow

import "fmt"

// View tags every screen the guided flow can be on.
type View string

const (
	ViewWalletNetworkSelection View = "WALLET_NETWORK_SELECTION"
	ViewBridgeForm             View = "BRIDGE_FORM"
	ViewBridgeReview           View = "BRIDGE_REVIEW"
	ViewApproveTransaction     View = "APPROVE_TRANSACTION"
	ViewInProgress             View = "IN_PROGRESS"
	ViewBridgeFailure          View = "BRIDGE_FAILURE"
	ViewTransactions           View = "TRANSACTIONS"
	ViewTopUpGas               View = "TOP_UP_GAS"
	ViewClaimWithdrawal        View = "CLAIM_WITHDRAWAL"
	ViewClaimInProgress        View = "CLAIM_WITHDRAWAL_IN_PROGRESS"
	ViewClaimSuccess           View = "CLAIM_WITHDRAWAL_SUCCESS"
	ViewClaimFailure           View = "CLAIM_WITHDRAWAL_FAILURE"
	ViewError                  View = "ERROR_VIEW"
	ViewServiceUnavailable     View = "SERVICE_UNAVAILABLE"
)

// Terminal reports whether the flow ends at this view.
func (v View) Terminal() bool {
	switch v {
	case ViewBridgeFailure, ViewClaimSuccess, ViewClaimFailure, ViewError, ViewServiceUnavailable:
		return true
	}
	return false
}

// CommandKind enumerates navigation commands.
type CommandKind int

const (
	CmdUpdateView CommandKind = iota
	CmdGoBack
	CmdGoBackTo
)

// Command is a typed navigation instruction for the state machine.
type Command struct {
	Kind   CommandKind
	Target View // for CmdUpdateView and CmdGoBackTo
}

// UpdateView pushes a new view.
func UpdateView(v View) Command { return Command{Kind: CmdUpdateView, Target: v} }

// GoBack pops to the previous view.
func GoBack() Command { return Command{Kind: CmdGoBack} }

// GoBackTo truncates history to the nearest ancestor with this tag.
func GoBackTo(v View) Command { return Command{Kind: CmdGoBackTo, Target: v} }

// ViewState is the navigation state: the back-stack with the current
// view last. Invariant: no two consecutive entries share a tag.
type ViewState struct {
	Stack []View
}

// NewViewState starts the flow at wallet/network selection.
func NewViewState() ViewState {
	return ViewState{Stack: []View{ViewWalletNetworkSelection}}
}

// Current returns the active view.
func (s ViewState) Current() View {
	if len(s.Stack) == 0 {
		return ViewWalletNetworkSelection
	}
	return s.Stack[len(s.Stack)-1]
}

// Depth returns the size of the back-stack.
func (s ViewState) Depth() int {
	return len(s.Stack)
}

// Transition is the pure navigation function: it returns the next
// ViewState without mutating its input. popped lists the views left
// behind, so the caller can cancel timers those views owned.
func Transition(s ViewState, cmd Command) (next ViewState, popped []View, err error) {
	switch cmd.Kind {
	case CmdUpdateView:
		if cmd.Target == "" {
			return s, nil, fmt.Errorf("update requires a target view")
		}
		if s.Current() == cmd.Target {
			// Re-pushing the active view would break the
			// no-consecutive-duplicates invariant.
			return s, nil, nil
		}
		next.Stack = append(append([]View{}, s.Stack...), cmd.Target)
		return next, nil, nil

	case CmdGoBack:
		if len(s.Stack) <= 1 {
			return s, nil, fmt.Errorf("nothing to go back to")
		}
		next.Stack = append([]View{}, s.Stack[:len(s.Stack)-1]...)
		return next, []View{s.Current()}, nil

	case CmdGoBackTo:
		if cmd.Target == "" {
			return s, nil, fmt.Errorf("go-back-to requires a target view")
		}
		for i := len(s.Stack) - 1; i >= 0; i-- {
			if s.Stack[i] == cmd.Target {
				popped = append([]View{}, s.Stack[i+1:]...)
				next.Stack = append([]View{}, s.Stack[:i+1]...)
				return next, popped, nil
			}
		}
		return s, nil, fmt.Errorf("view %s is not in the back-stack", cmd.Target)

	default:
		return s, nil, fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}
