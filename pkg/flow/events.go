package flow

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EventKind enumerates the widget-level notifications the
// orchestrator emits. All are fire-and-forget.
type EventKind string

const (
	EventTransactionSent EventKind = "transaction-sent"
	EventFailure         EventKind = "failure"
	EventClaimSuccess    EventKind = "claim-success"
	EventClaimFailure    EventKind = "claim-failure"
	EventClose           EventKind = "close"
)

// Event is one outbound notification.
type Event struct {
	Kind   EventKind
	TxHash common.Hash
	Reason string
}

// Emitter is the outbound message interface. Implementations must not
// block the flow.
type Emitter interface {
	Emit(Event)
}

// ChannelEmitter delivers events on a buffered channel, dropping on
// overflow rather than blocking; there is no acknowledgement
// protocol.
type ChannelEmitter struct {
	ch  chan Event
	log *zap.Logger
}

// NewChannelEmitter creates an emitter with the given buffer size.
func NewChannelEmitter(buffer int, log *zap.Logger) *ChannelEmitter {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelEmitter{ch: make(chan Event, buffer), log: log}
}

// Emit publishes an event without blocking.
func (e *ChannelEmitter) Emit(event Event) {
	select {
	case e.ch <- event:
	default:
		e.log.Warn("event dropped, subscriber too slow", zap.String("kind", string(event.Kind)))
	}
}

// Events returns the subscription channel.
func (e *ChannelEmitter) Events() <-chan Event {
	return e.ch
}
