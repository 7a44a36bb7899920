// Package reliability implements the stop-and-wait delivery engine used by
// the datagram binding: at most one outstanding non-Confirm send at a
// time, retransmitted on timeout up to a configured limit, with duplicate
// suppression for inbound messages.
//
// The engine is pure state. It does not own a socket; the caller supplies
// send/receive side effects by inspecting the Actions an engine method
// returns, mirroring the pure transition-table FSM pattern used elsewhere
// in this codebase.
package reliability

import (
	"time"

	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/wire"
)

// Action is a side effect the caller must execute after an engine call.
type Action uint8

const (
	// ActionTransmit instructs the caller to put Result.Outstanding on
	// the wire (initial send or retransmission).
	ActionTransmit Action = iota + 1

	// ActionSendConfirm instructs the caller to send a Confirm for
	// Result.LastConfirmID.
	ActionSendConfirm

	// ActionDeliver instructs the caller to hand Result.Delivered to the
	// conversation engine.
	ActionDeliver

	// ActionDeliveryFailed indicates the retry limit was exceeded for the
	// outstanding send; the caller should treat this as a local error and
	// terminate the conversation.
	ActionDeliveryFailed
)

// Result carries the side effects of a single engine call. Actions may
// combine (e.g. ActionSendConfirm and ActionDeliver together).
type Result struct {
	Actions       []Action
	Outstanding   message.Message
	LastConfirmID uint16
	Delivered     message.Message

	// Duplicate reports whether OnReceive saw an already-seen ID; the
	// Confirm is still emitted, but delivery is skipped either way.
	Duplicate bool
}

// Engine holds the single-outstanding-send slot and the duplicate-ID set
// for one conversation (Section 4.8).
type Engine struct {
	Timeout         time.Duration
	MaxRetransmits  int

	outstanding message.Message
	confirmed   bool
	retryCount  int
	sentAt      time.Time

	seen wire.DupSet

	// deferredQueue holds non-Confirm messages received while confirmed
	// is false; they have already been Confirmed but not yet delivered.
	deferredQueue []message.Message
}

// New returns an Engine with no outstanding send (confirmed=true).
func New(timeout time.Duration, maxRetransmits int) *Engine {
	return &Engine{
		Timeout:        timeout,
		MaxRetransmits: maxRetransmits,
		confirmed:      true,
	}
}

// Idle reports whether there is no unconfirmed outstanding send, i.e. it
// is safe to terminate the conversation (Section 4.8 contract 5).
func (e *Engine) Idle() bool {
	return e.confirmed
}

// Send stores msg in the outstanding slot and requests transmission
// (contract 1).
func (e *Engine) Send(msg message.Message, now time.Time) Result {
	e.outstanding = msg
	e.confirmed = false
	e.retryCount = 0
	e.sentAt = now
	return Result{Actions: []Action{ActionTransmit}, Outstanding: msg}
}

// OnConfirm processes an inbound Confirm message (contract 2).
func (e *Engine) OnConfirm(refID uint16) Result {
	if !e.confirmed && refID == e.outstanding.ID {
		e.confirmed = true
		e.retryCount = 0
		if len(e.deferredQueue) > 0 {
			next := e.deferredQueue[0]
			e.deferredQueue = e.deferredQueue[1:]
			return Result{Actions: []Action{ActionDeliver}, Delivered: next}
		}
	}
	return Result{}
}

// OnReceive processes an inbound non-Confirm message (contract 3). A
// Confirm for msg.ID is always emitted, even for a duplicate. Delivery to
// the conversation engine happens immediately if the outstanding send is
// already confirmed, or is deferred until it becomes confirmed.
func (e *Engine) OnReceive(msg message.Message) Result {
	res := Result{Actions: []Action{ActionSendConfirm}, LastConfirmID: msg.ID}

	if e.seen.Contains(msg.ID) {
		res.Duplicate = true
		return res
	}
	e.seen.Insert(msg.ID)

	if e.confirmed {
		res.Actions = append(res.Actions, ActionDeliver)
		res.Delivered = msg
	} else {
		e.deferredQueue = append(e.deferredQueue, msg)
	}
	return res
}

// OnTimeout is called when NextTimeout has elapsed (contract 4).
func (e *Engine) OnTimeout(now time.Time) Result {
	if e.confirmed {
		return Result{}
	}

	if e.retryCount >= e.MaxRetransmits {
		return Result{Actions: []Action{ActionDeliveryFailed}}
	}

	e.retryCount++
	e.sentAt = now
	return Result{Actions: []Action{ActionTransmit}, Outstanding: e.outstanding}
}

// NextTimeout reports the duration until the outstanding send needs
// retransmission, or a negative duration if nothing is outstanding.
func (e *Engine) NextTimeout(now time.Time) time.Duration {
	if e.confirmed {
		return -1
	}
	remaining := e.Timeout - now.Sub(e.sentAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
