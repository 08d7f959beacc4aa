package quote

import (
	"math/big"

	"bridgectl/pkg/types"
)

// WithdrawalNoticeType classifies flow-rate advisories attached to a
// bridge-out.
type WithdrawalNoticeType string

const (
	// NoticeActiveQueue means the network-wide withdrawal queue is on:
	// every withdrawal is delayed, regardless of amount.
	NoticeActiveQueue WithdrawalNoticeType = "ACTIVE_QUEUE"

	// NoticeThreshold means this amount crosses the per-transfer delay
	// threshold. Advisory: the user may proceed or reduce the amount.
	NoticeThreshold WithdrawalNoticeType = "THRESHOLD"
)

// WithdrawalNotice is the result of evaluating flow-rate policy for a
// bundle. A nil notice means no delay applies.
type WithdrawalNotice struct {
	Type      WithdrawalNoticeType
	Threshold *big.Int // token units, set for NoticeThreshold only
}

// EvaluateWithdrawalPolicy inspects a bundle's flow-rate flags. It
// runs once per successful bundle fetch, not per refresh tick.
//
// The active-queue flag wins over the threshold: when the global
// queue is on, the per-amount comparison is irrelevant.
func EvaluateWithdrawalPolicy(bundle *types.BridgeTransactionBundle, units *big.Int) *WithdrawalNotice {
	if bundle == nil {
		return nil
	}

	if bundle.WithdrawalQueueActivated {
		return &WithdrawalNotice{Type: NoticeActiveQueue}
	}

	if bundle.DelayWithdrawalLargeAmount && bundle.LargeTransferThreshold != nil {
		if units != nil && units.Cmp(bundle.LargeTransferThreshold) > 0 {
			return &WithdrawalNotice{
				Type:      NoticeThreshold,
				Threshold: bundle.LargeTransferThreshold,
			}
		}
	}

	return nil
}
