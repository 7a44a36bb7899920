package reliability_test

import (
	"testing"
	"time"

	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/reliability"
)

func hasAction(actions []reliability.Action, want reliability.Action) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func TestSendThenConfirmClearsOutstanding(t *testing.T) {
	t.Parallel()

	e := reliability.New(250*time.Millisecond, 3)
	now := time.Unix(0, 0)

	res := e.Send(message.Join(1, "general", "Duy"), now)
	if !hasAction(res.Actions, reliability.ActionTransmit) {
		t.Fatalf("expected ActionTransmit, got %v", res.Actions)
	}
	if e.Idle() {
		t.Fatalf("expected not idle after Send")
	}

	e.OnConfirm(1)
	if !e.Idle() {
		t.Fatalf("expected idle after matching Confirm")
	}
}

func TestConfirmWithNonMatchingIDIgnored(t *testing.T) {
	t.Parallel()

	e := reliability.New(250*time.Millisecond, 3)
	e.Send(message.Join(1, "general", "Duy"), time.Unix(0, 0))

	e.OnConfirm(99)
	if e.Idle() {
		t.Fatalf("expected still not idle after non-matching Confirm")
	}
}

func TestOnReceiveAlwaysConfirmsEvenDuplicate(t *testing.T) {
	t.Parallel()

	e := reliability.New(250*time.Millisecond, 3)

	res := e.OnReceive(message.Msg(5, "bob", "hi"))
	if !hasAction(res.Actions, reliability.ActionSendConfirm) {
		t.Fatalf("expected ActionSendConfirm, got %v", res.Actions)
	}
	if !hasAction(res.Actions, reliability.ActionDeliver) {
		t.Fatalf("expected ActionDeliver for first receipt, got %v", res.Actions)
	}

	res = e.OnReceive(message.Msg(5, "bob", "hi"))
	if !hasAction(res.Actions, reliability.ActionSendConfirm) {
		t.Fatalf("expected ActionSendConfirm on duplicate, got %v", res.Actions)
	}
	if hasAction(res.Actions, reliability.ActionDeliver) {
		t.Fatalf("duplicate must not be delivered, got %v", res.Actions)
	}
}

func TestReceiveDeferredUntilOutstandingConfirmed(t *testing.T) {
	t.Parallel()

	e := reliability.New(250*time.Millisecond, 3)
	now := time.Unix(0, 0)
	e.Send(message.Auth(1, "u", "d", "s"), now)

	res := e.OnReceive(message.Reply(2, true, 1, "Success"))
	if !hasAction(res.Actions, reliability.ActionSendConfirm) {
		t.Fatalf("expected confirm even while unconfirmed, got %v", res.Actions)
	}
	if hasAction(res.Actions, reliability.ActionDeliver) {
		t.Fatalf("must defer delivery while outstanding unconfirmed, got %v", res.Actions)
	}

	res = e.OnConfirm(1)
	if !hasAction(res.Actions, reliability.ActionDeliver) {
		t.Fatalf("expected deferred message delivered once confirmed, got %v", res.Actions)
	}
	if res.Delivered.ID != 2 {
		t.Fatalf("delivered wrong message: %+v", res.Delivered)
	}
}

func TestTimeoutRetransmitsThenFails(t *testing.T) {
	t.Parallel()

	e := reliability.New(10*time.Millisecond, 2)
	now := time.Unix(0, 0)
	e.Send(message.Join(1, "general", "Duy"), now)

	res := e.OnTimeout(now.Add(11 * time.Millisecond))
	if !hasAction(res.Actions, reliability.ActionTransmit) {
		t.Fatalf("retry 1: expected ActionTransmit, got %v", res.Actions)
	}

	res = e.OnTimeout(now.Add(22 * time.Millisecond))
	if !hasAction(res.Actions, reliability.ActionTransmit) {
		t.Fatalf("retry 2: expected ActionTransmit, got %v", res.Actions)
	}

	res = e.OnTimeout(now.Add(33 * time.Millisecond))
	if !hasAction(res.Actions, reliability.ActionDeliveryFailed) {
		t.Fatalf("expected ActionDeliveryFailed after exceeding retry limit, got %v", res.Actions)
	}
}

func TestNextTimeoutNoneWhenIdle(t *testing.T) {
	t.Parallel()

	e := reliability.New(250*time.Millisecond, 3)
	if d := e.NextTimeout(time.Unix(0, 0)); d >= 0 {
		t.Fatalf("expected negative NextTimeout when idle, got %v", d)
	}
}
