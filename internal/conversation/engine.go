// Package conversation implements the client's conversation engine
// (Section 4.10): the Start/Auth/Open/Error/End state machine that
// composes the command parser, the codecs (via Transport), and the
// reliability engine (on the datagram binding) into correct end-to-end
// behavior.
package conversation

import (
	"fmt"
	"io"
	"time"

	"github.com/ipk24chat/client/internal/command"
	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/reliability"
	"github.com/ipk24chat/client/internal/transport"
)

// ExitKind mirrors Section 7's "non-zero encodes the terminating error
// kind"; a local ExitKind enumerates the handful this client can reach.
type ExitKind int

const (
	ExitClean         ExitKind = 0
	ExitConnection    ExitKind = 1
	ExitInvalidInput  ExitKind = 2
	ExitDeliveryFail  ExitKind = 3
	ExitProtocolError ExitKind = 4
)

// metricsReporter is the subset of metricsx.Collector the conversation
// engine needs. Kept as a small local interface so this package does not
// import metricsx directly; satisfied by *metricsx.Collector.
type metricsReporter interface {
	IncSent(kind message.Kind)
	IncReceived(kind message.Kind)
	IncRetransmission()
	IncDuplicateSuppressed()
}

type noopMetrics struct{}

func (noopMetrics) IncSent(message.Kind)     {}
func (noopMetrics) IncReceived(message.Kind) {}
func (noopMetrics) IncRetransmission()       {}
func (noopMetrics) IncDuplicateSuppressed()  {}

// Engine drives one conversation from Start to End.
type Engine struct {
	state       State
	displayName string
	nextID      uint16

	transport   transport.Transport
	reliability *reliability.Engine // nil on the reliable (TCP) binding
	metrics     metricsReporter

	stdout io.Writer
	stderr io.Writer

	exitKind ExitKind
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMetrics attaches a metricsReporter to the engine. If m is nil, the
// default no-op reporter is used.
func WithMetrics(m metricsReporter) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New returns an Engine in state Start. rel is nil for the TCP binding.
func New(t transport.Transport, rel *reliability.Engine, stdout, stderr io.Writer, opts ...Option) *Engine {
	e := &Engine{
		state:       StateStart,
		transport:   t,
		reliability: rel,
		metrics:     noopMetrics{},
		stdout:      stdout,
		stderr:      stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current conversation state.
func (e *Engine) State() State { return e.state }

// Done reports whether the conversation has fully terminated: state is
// End and, on the datagram binding, the reliability engine has no
// unconfirmed outstanding send.
func (e *Engine) Done() bool {
	if e.state != StateEnd {
		return false
	}
	return e.reliability == nil || e.reliability.Idle()
}

// ExitKind reports the terminating condition, valid once Done() is true.
func (e *Engine) ExitKind() ExitKind { return e.exitKind }

// NextTimeout reports the duration until the reliability engine's next
// retransmission deadline, or a negative duration if there is none (and
// always a negative duration on the reliable binding).
func (e *Engine) NextTimeout(now time.Time) time.Duration {
	if e.reliability == nil {
		return -1
	}
	return e.reliability.NextTimeout(now)
}

func (e *Engine) allocID() uint16 {
	id := e.nextID
	e.nextID++
	return id
}

func (e *Engine) printStdout(format string, args ...any) {
	fmt.Fprintf(e.stdout, format, args...)
}

func (e *Engine) printStderr(format string, args ...any) {
	fmt.Fprintf(e.stderr, format, args...)
}

// sendOutgoing transmits msg, routing it through the reliability engine
// on the datagram binding (contract 1: store outstanding, transmit) or
// sending it directly on the reliable binding.
func (e *Engine) sendOutgoing(msg message.Message, now time.Time) {
	if e.reliability == nil {
		if err := e.transport.Send(msg); err != nil {
			e.printStderr("ERR: %v\n", err)
			e.state = StateEnd
			e.exitKind = ExitConnection
			return
		}
		e.metrics.IncSent(msg.Kind)
		return
	}

	res := e.reliability.Send(msg, now)
	for _, a := range res.Actions {
		if a == reliability.ActionTransmit {
			if err := e.transport.Send(res.Outstanding); err != nil {
				e.printStderr("ERR: %v\n", err)
				e.state = StateEnd
				e.exitKind = ExitConnection
				continue
			}
			e.metrics.IncSent(res.Outstanding.Kind)
		}
	}
}

// ReadyForInput reports whether the engine will currently accept a new
// parsed command or chat line from stdin. Input is masked while waiting
// for the server's Auth reply, and (datagram binding only) while a
// previously sent message has not yet been confirmed: the protocol
// allows at most one non-Confirm message in flight at a time (Section 3).
func (e *Engine) ReadyForInput() bool {
	if e.state == StateAuth {
		return false
	}
	if e.reliability != nil && !e.reliability.Idle() {
		return false
	}
	return true
}

// HandleCommand processes one parsed input line (Section 4.10's
// command-sourced transitions). The caller is expected to poll
// ReadyForInput before reading the next line of stdin; HandleCommand
// enforces the same check so it is safe to call regardless.
func (e *Engine) HandleCommand(cmd command.Command, now time.Time) {
	if !e.ReadyForInput() {
		e.printStderr("ERR: still waiting on a previous message, try again\n")
		return
	}

	if cmd.Type == command.TypeHelp {
		e.printStdout("%s\n", command.HelpText)
		return
	}
	if cmd.Type == command.TypeClear {
		e.printStdout("\x1bc")
		return
	}
	if cmd.Type == command.TypeExit {
		e.terminate(now)
		return
	}

	event, openOnly := e.classifyCommand(cmd)
	if openOnly && e.state != StateOpen {
		e.printStderr("ERR: you have to authenticate and be in a channel first\n")
		return
	}

	next, actions := Apply(e.state, event)
	e.state = next
	e.runCommandActions(actions, cmd, now)
}

// classifyCommand maps a parsed Command onto the FSM event it triggers,
// and reports whether that event is accepted only in state Open (the
// resolved Open Question in Section 9: /join and chat lines gate on
// Open specifically, matching the original client's own gate).
func (e *Engine) classifyCommand(cmd command.Command) (Event, bool) {
	switch cmd.Type {
	case command.TypeAuth:
		if e.state != StateStart {
			return EventOtherCmdRequiringSession, false
		}
		return EventAuthCmd, false
	case command.TypeJoin:
		return EventJoinCmd, true
	case command.TypeRename:
		return EventRenameCmd, false
	case command.TypeNone:
		return EventChatLine, true
	default:
		return EventOtherCmdRequiringSession, false
	}
}

func (e *Engine) runCommandActions(actions []Action, cmd command.Command, now time.Time) {
	for _, a := range actions {
		switch a {
		case ActionRecordDisplayNameSendAuth:
			e.displayName = cmd.DisplayName
			e.sendOutgoing(message.Auth(e.allocID(), cmd.Username, cmd.DisplayName, cmd.Secret), now)
		case ActionRejectLocal:
			e.printStderr("ERR: you have to authenticate and be in a channel first\n")
		case ActionSendMsgEchoLocal:
			e.printStdout("%s: %s\n", e.displayName, cmd.Content)
			e.sendOutgoing(message.Msg(e.allocID(), e.displayName, cmd.Content), now)
		case ActionSendJoin:
			e.sendOutgoing(message.Join(e.allocID(), cmd.ChannelID, e.displayName), now)
		case ActionUpdateDisplayName:
			e.displayName = cmd.DisplayName
		}
	}
}

// HandleCommandError reports a command-parsing failure (Section 4.9:
// "reported; the conversation continues").
func (e *Engine) HandleCommandError(err error) {
	e.printStderr("ERR: %v\n", err)
}

// HandleEOF processes end-of-input on stdin.
func (e *Engine) HandleEOF(now time.Time) {
	e.terminate(now)
}

// HandleSIGINT processes a received interrupt signal (Section 5).
func (e *Engine) HandleSIGINT(now time.Time) {
	e.applyTerminalEvent(EventSigint, now)
}

// terminate handles the /exit command and EOF on stdin: both end the
// conversation the same way a SIGINT does, by routing EventExitOrEOF
// through the transition table.
func (e *Engine) terminate(now time.Time) {
	e.applyTerminalEvent(EventExitOrEOF, now)
}

func (e *Engine) applyTerminalEvent(event Event, now time.Time) {
	if e.state == StateEnd {
		return
	}
	next, actions := Apply(e.state, event)
	e.state = next
	e.runActions(actions, message.Message{}, now)
}

// HandleTimeout processes a reliability-engine retransmission deadline
// (datagram binding only; the reliable binding never calls this).
func (e *Engine) HandleTimeout(now time.Time) {
	if e.reliability == nil {
		return
	}
	res := e.reliability.OnTimeout(now)
	for _, a := range res.Actions {
		switch a {
		case reliability.ActionTransmit:
			if err := e.transport.Send(res.Outstanding); err != nil {
				e.printStderr("ERR: %v\n", err)
				e.state = StateEnd
				e.exitKind = ExitConnection
				continue
			}
			e.metrics.IncSent(res.Outstanding.Kind)
			e.metrics.IncRetransmission()
		case reliability.ActionDeliveryFailed:
			e.printStderr("ERR: delivery failure, no confirmation received\n")
			e.state = StateEnd
			e.exitKind = ExitDeliveryFail
		}
	}
}

// HandleInbound processes one message received from the transport. On
// the datagram binding it is first routed through the reliability engine
// (Confirm emission, duplicate suppression, deferral while an outstanding
// send is unconfirmed); on the reliable binding it is delivered directly.
func (e *Engine) HandleInbound(msg message.Message, now time.Time) {
	if e.reliability == nil {
		e.metrics.IncReceived(msg.Kind)
		e.deliver(msg, now)
		return
	}

	if msg.Kind == message.KindConfirm {
		res := e.reliability.OnConfirm(msg.ID)
		for _, a := range res.Actions {
			if a == reliability.ActionDeliver {
				e.deliver(res.Delivered, now)
			}
		}
		if e.state == StateError && e.reliability.Idle() {
			e.applyOutstandingConfirmed(now)
		}
		return
	}

	res := e.reliability.OnReceive(msg)
	if res.Duplicate {
		e.metrics.IncDuplicateSuppressed()
	} else {
		e.metrics.IncReceived(msg.Kind)
	}
	for _, a := range res.Actions {
		switch a {
		case reliability.ActionSendConfirm:
			if err := e.transport.Send(message.Confirm(res.LastConfirmID)); err != nil {
				e.printStderr("ERR: %v\n", err)
				e.state = StateEnd
				e.exitKind = ExitConnection
				continue
			}
			e.metrics.IncSent(message.KindConfirm)
		case reliability.ActionDeliver:
			e.deliver(res.Delivered, now)
		}
	}

	if e.state == StateError && e.reliability.Idle() {
		e.applyOutstandingConfirmed(now)
	}
}

func (e *Engine) applyOutstandingConfirmed(now time.Time) {
	next, actions := Apply(e.state, EventOutstandingConfirmed)
	e.state = next
	e.runActions(actions, message.Message{}, now)
}

// deliver maps one inbound payload through the FSM table and executes
// the resulting actions.
func (e *Engine) deliver(msg message.Message, now time.Time) {
	event, ok := e.classify(msg)
	if !ok {
		// Malformed/unsolicited payload the classifier could not map
		// onto a known event: treat as a malformed-payload protocol
		// error (Section 8 scenario S5).
		e.printStderr("ERR: received malformed payload\n")
		e.sendOutgoing(message.Err(e.allocID(), e.displayName, "Received malformed payload"), now)
		e.state = StateError
		e.exitKind = ExitProtocolError
		return
	}

	next, actions := Apply(e.state, event)
	e.state = next
	e.runActions(actions, msg, now)
}

func (e *Engine) classify(msg message.Message) (Event, bool) {
	switch msg.Kind {
	case message.KindReply:
		if e.state == StateAuth {
			if msg.Success {
				return EventReplyOK, true
			}
			return EventReplyNOK, true
		}
		return EventReplyRecv, true

	case message.KindErr:
		return EventErrRecv, true

	case message.KindMsg:
		if e.state == StateOpen {
			return EventMsgRecv, true
		}
		return 0, false

	case message.KindBye:
		return EventByeRecv, true

	case message.KindAuth, message.KindJoin:
		return EventUnexpectedAuthOrJoin, true

	default:
		return 0, false
	}
}

func (e *Engine) runActions(actions []Action, msg message.Message, now time.Time) {
	for _, a := range actions {
		switch a {
		case ActionPrintSuccess:
			e.printStderr("Success: %s\n", msg.Content)
		case ActionPrintFailure:
			e.printStderr("Failure: %s\n", msg.Content)
		case ActionPrintErrSendBye:
			e.printStderr("ERR FROM %s: %s\n", msg.DisplayName, msg.Content)
			e.sendOutgoing(message.Bye(e.allocID()), now)
		case ActionSendErrSetError:
			e.sendOutgoing(message.Err(e.allocID(), e.displayName, "Received malformed payload"), now)
			e.exitKind = ExitProtocolError
		case ActionPrintMsg:
			e.printStdout("%s: %s\n", msg.DisplayName, msg.Content)
		case ActionPrintReply:
			if msg.Success {
				e.printStderr("Success: %s\n", msg.Content)
			} else {
				e.printStderr("Failure: %s\n", msg.Content)
			}
		case ActionSendBye:
			e.sendOutgoing(message.Bye(e.allocID()), now)
		}
	}
}
