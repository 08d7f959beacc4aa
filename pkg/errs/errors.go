package errs

import (
	"context"
	"errors"
	"strings"
)

// Bridge flow error taxonomy. Every failure crossing a component
// boundary is mapped onto exactly one of these sentinels.
var (
	// ErrUserRejected means the signer declined a request. Retryable:
	// the same step may be offered again.
	ErrUserRejected = errors.New("user rejected request")

	// ErrInsufficientFunds means the wallet cannot cover value + gas.
	// Terminal for the attempt; route to top-up.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNetworkMismatch means the wallet's active chain differs from
	// the one the operation targets. Recoverable via explicit switch.
	ErrNetworkMismatch = errors.New("wallet is on the wrong network")

	// ErrUnpredictableGas means gas estimation failed in a way that
	// suggests the transaction would revert.
	ErrUnpredictableGas = errors.New("cannot estimate gas")

	// ErrOnChainRevert means a submitted transaction was mined with a
	// failed status.
	ErrOnChainRevert = errors.New("transaction reverted on chain")

	// ErrServiceUnavailable means a required collaborator is down or
	// refused service.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrSanctionedAddress means screening matched the address.
	ErrSanctionedAddress = errors.New("address failed screening")

	// ErrUnknown is the catch-all for unclassifiable failures.
	ErrUnknown = errors.New("unknown error")
)

// Provider error strings worth matching on. Wallet backends and nodes
// disagree on codes, so classification is substring based, the same
// way browser wallets are sniffed in practice.
var (
	rejectionMarkers = []string{
		"user rejected",
		"user denied",
		"rejected by user",
		"action_rejected",
	}
	insufficientMarkers = []string{
		"insufficient funds",
		"insufficient balance",
	}
	gasMarkers = []string{
		"cannot estimate gas",
		"unpredictable_gas_limit",
		"gas required exceeds allowance",
		"execution reverted",
	}
)

// Classify maps a raw wallet/RPC error onto one taxonomy member.
// Already-classified errors pass through unchanged. Anything that
// cannot be recognized becomes ErrUnknown rather than crashing the
// flow.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrUserRejected, ErrInsufficientFunds, ErrNetworkMismatch,
		ErrUnpredictableGas, ErrOnChainRevert, ErrServiceUnavailable,
		ErrSanctionedAddress, ErrUnknown,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrServiceUnavailable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case matchesAny(msg, rejectionMarkers):
		return ErrUserRejected
	case matchesAny(msg, insufficientMarkers):
		return ErrInsufficientFunds
	case matchesAny(msg, gasMarkers):
		return ErrUnpredictableGas
	default:
		return ErrUnknown
	}
}

// Retryable reports whether the flow may re-offer the failed step.
func Retryable(err error) bool {
	return errors.Is(err, ErrUserRejected) || errors.Is(err, ErrNetworkMismatch)
}

func matchesAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
