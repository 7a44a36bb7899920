package conversation

// This file implements the conversation FSM (Section 4.10) as a pure
// function over a map[stateEvent]transition table. The FSM itself
// carries no payload data and
// performs no I/O; Engine pairs each transition's Actions with the
// triggering message/command to produce concrete side effects.

// Event is an abstract stimulus driving the conversation FSM. Events that
// need payload data (a Reply's content, a chat message's sender) are the
// same Event regardless of payload; the payload travels alongside the
// event through Engine, not through the FSM.
type Event uint8

const (
	EventAuthCmd Event = iota
	EventOtherCmdRequiringSession
	EventReplyOK
	EventReplyNOK
	EventErrRecv
	EventUnexpectedAuthOrJoin
	EventChatLine
	EventJoinCmd
	EventRenameCmd
	EventMsgRecv
	EventReplyRecv
	EventByeRecv
	EventOutstandingConfirmed
	EventExitOrEOF
	EventSigint
)

// Action is a side effect Engine executes after a transition.
type Action uint8

const (
	ActionRecordDisplayNameSendAuth Action = iota + 1
	ActionRejectLocal
	ActionPrintSuccess
	ActionPrintFailure
	ActionPrintErrSendBye
	ActionSendErrSetError
	ActionSendMsgEchoLocal
	ActionSendJoin
	ActionUpdateDisplayName
	ActionPrintMsg
	ActionPrintReply
	ActionSendBye
	ActionNone
)

type stateEvent struct {
	state State
	event Event
}

type transition struct {
	next    State
	actions []Action
}

var fsmTable = map[stateEvent]transition{
	{StateStart, EventAuthCmd}:                  {StateAuth, []Action{ActionRecordDisplayNameSendAuth}},
	{StateStart, EventOtherCmdRequiringSession}: {StateStart, []Action{ActionRejectLocal}},
	{StateStart, EventSigint}:                   {StateEnd, nil},
	{StateStart, EventExitOrEOF}:                {StateEnd, nil},

	// An /auth issued while already authenticating or already open is
	// rejected the same way (Section 4.10 lists this generically as
	// "any other cmd requiring session"; re-authenticating mid-session
	// falls under the same rule).
	{StateAuth, EventOtherCmdRequiringSession}: {StateAuth, []Action{ActionRejectLocal}},
	{StateOpen, EventOtherCmdRequiringSession}: {StateOpen, []Action{ActionRejectLocal}},

	{StateAuth, EventReplyOK}:              {StateOpen, []Action{ActionPrintSuccess}},
	{StateAuth, EventReplyNOK}:             {StateStart, []Action{ActionPrintFailure}},
	{StateAuth, EventErrRecv}:              {StateEnd, []Action{ActionPrintErrSendBye}},
	{StateAuth, EventUnexpectedAuthOrJoin}: {StateError, []Action{ActionSendErrSetError}},
	// Bye received in Auth (and in Error, below) is answered with the
	// client's own Bye rather than silently dropped (original client.c
	// behavior). Start has no ByeRecv row, so a Bye there changes nothing.
	{StateAuth, EventByeRecv}:    {StateEnd, []Action{ActionSendBye}},
	{StateAuth, EventSigint}:     {StateEnd, []Action{ActionSendBye}},
	{StateAuth, EventExitOrEOF}:  {StateEnd, []Action{ActionSendBye}},

	{StateOpen, EventChatLine}:             {StateOpen, []Action{ActionSendMsgEchoLocal}},
	{StateOpen, EventJoinCmd}:              {StateOpen, []Action{ActionSendJoin}},
	{StateOpen, EventRenameCmd}:            {StateOpen, []Action{ActionUpdateDisplayName}},
	{StateOpen, EventMsgRecv}:              {StateOpen, []Action{ActionPrintMsg}},
	{StateOpen, EventReplyRecv}:            {StateOpen, []Action{ActionPrintReply}},
	{StateOpen, EventErrRecv}:              {StateEnd, []Action{ActionPrintErrSendBye}},
	{StateOpen, EventByeRecv}:              {StateEnd, nil},
	{StateOpen, EventUnexpectedAuthOrJoin}: {StateError, []Action{ActionSendErrSetError}},
	{StateOpen, EventSigint}:               {StateEnd, []Action{ActionSendBye}},
	{StateOpen, EventExitOrEOF}:            {StateEnd, []Action{ActionSendBye}},

	{StateError, EventOutstandingConfirmed}: {StateEnd, []Action{ActionSendBye}},
	{StateError, EventByeRecv}:              {StateEnd, []Action{ActionSendBye}},
	{StateError, EventSigint}:               {StateEnd, []Action{ActionSendBye}},
	{StateError, EventExitOrEOF}:            {StateEnd, []Action{ActionSendBye}},
}

// Apply is the FSM's pure step function. Unlisted (state, event) pairs
// return the current state unchanged with no actions; this covers
// EventSigint/EventExitOrEOF arriving in StateEnd, which is already
// terminal and needs no further action.
func Apply(state State, event Event) (State, []Action) {
	if t, ok := fsmTable[stateEvent{state, event}]; ok {
		return t.next, t.actions
	}
	return state, nil
}
