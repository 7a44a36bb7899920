package conversation_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ipk24chat/client/internal/command"
	"github.com/ipk24chat/client/internal/conversation"
	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/reliability"
)

// fakeTransport records every message handed to Send for assertions.
type fakeTransport struct {
	sent []message.Message
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }

func (f *fakeTransport) Send(msg message.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Receive() (message.Message, error) {
	return message.Message{}, errors.New("not implemented")
}

func (f *fakeTransport) Disconnect() error { return nil }

func TestAuthHappyPathTCP(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	e := conversation.New(tr, nil, &stdout, &stderr)
	now := time.Unix(0, 0)

	cmd, err := command.Parse("/auth alice alice123 s3cret")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e.HandleCommand(cmd, now)

	if e.State() != conversation.StateAuth {
		t.Fatalf("expected state Auth, got %v", e.State())
	}
	if len(tr.sent) != 1 || tr.sent[0].Kind != message.KindAuth {
		t.Fatalf("expected one Auth sent, got %+v", tr.sent)
	}

	e.HandleInbound(message.Reply(0, true, 0, "Welcome"), now)
	if e.State() != conversation.StateOpen {
		t.Fatalf("expected state Open, got %v", e.State())
	}
	if !strings.Contains(stderr.String(), "Success: Welcome") {
		t.Fatalf("expected success line on stderr, got %q", stderr.String())
	}

	chatCmd, err := command.Parse("hello")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e.HandleCommand(chatCmd, now)
	if !strings.Contains(stdout.String(), "alice123: hello") {
		t.Fatalf("expected local echo on stdout, got %q", stdout.String())
	}

	e.HandleInbound(message.Msg(0, "bob", "hi"), now)
	if !strings.Contains(stdout.String(), "bob: hi") {
		t.Fatalf("expected received message on stdout, got %q", stdout.String())
	}
}

func TestJoinRejectedBeforeOpen(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	e := conversation.New(tr, nil, &stdout, &stderr)

	cmd, _ := command.Parse("/join general")
	e.HandleCommand(cmd, time.Unix(0, 0))

	if len(tr.sent) != 0 {
		t.Fatalf("expected no network traffic, got %+v", tr.sent)
	}
	if !strings.Contains(stderr.String(), "ERR:") {
		t.Fatalf("expected local rejection on stderr, got %q", stderr.String())
	}
}

func TestRenameDoesNotTraffic(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	e := conversation.New(tr, nil, &stdout, &stderr)
	now := time.Unix(0, 0)

	authCmd, _ := command.Parse("/auth alice alice123 s3cret")
	e.HandleCommand(authCmd, now)
	e.HandleInbound(message.Reply(0, true, 0, "Welcome"), now)

	renameCmd, _ := command.Parse("/rename carol")
	e.HandleCommand(renameCmd, now)

	chatCmd, _ := command.Parse("hello")
	e.HandleCommand(chatCmd, now)

	var lastMsg message.Message
	for _, m := range tr.sent {
		if m.Kind == message.KindMsg {
			lastMsg = m
		}
	}
	if lastMsg.DisplayName != "carol" {
		t.Fatalf("expected renamed display name on outgoing Msg, got %+v", lastMsg)
	}
}

func TestMalformedDatagramGoesToErrorThenEnd(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	rel := reliability.New(100*time.Millisecond, 3)
	e := conversation.New(tr, rel, &stdout, &stderr)
	now := time.Unix(0, 0)

	authCmd, _ := command.Parse("/auth alice alice123 s3cret")
	e.HandleCommand(authCmd, now)
	e.HandleInbound(message.Confirm(0), now)
	e.HandleInbound(message.Reply(10, true, 0, "Welcome"), now)
	e.HandleInbound(message.Confirm(10), now)

	if e.State() != conversation.StateOpen {
		t.Fatalf("setup: expected Open, got %v", e.State())
	}

	// Server sends an unexpected Join while Open: malformed per Section 8 S5.
	e.HandleInbound(message.Join(20, "x", "y"), now)

	if e.State() != conversation.StateError {
		t.Fatalf("expected state Error after unexpected Join, got %v", e.State())
	}

	// Once the outgoing Err (ID 1) is confirmed, the engine sends Bye and ends.
	e.HandleInbound(message.Confirm(1), now)

	if e.State() != conversation.StateEnd {
		t.Fatalf("expected state End once the Err is confirmed, got %v", e.State())
	}
	if last := tr.sent[len(tr.sent)-1]; last.Kind != message.KindBye {
		t.Fatalf("expected Bye as the last message sent, got %+v", last)
	}
}

func TestStdinMaskedWhileUDPSendUnconfirmed(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	rel := reliability.New(100*time.Millisecond, 3)
	e := conversation.New(tr, rel, &stdout, &stderr)
	now := time.Unix(0, 0)

	authCmd, _ := command.Parse("/auth alice alice123 s3cret")
	e.HandleCommand(authCmd, now)
	e.HandleInbound(message.Confirm(0), now)
	e.HandleInbound(message.Reply(10, true, 0, "Welcome"), now)
	e.HandleInbound(message.Confirm(10), now)

	if e.State() != conversation.StateOpen {
		t.Fatalf("setup: expected Open, got %v", e.State())
	}

	firstChat, _ := command.Parse("first line")
	e.HandleCommand(firstChat, now)

	countMsgs := func() int {
		n := 0
		for _, m := range tr.sent {
			if m.Kind == message.KindMsg {
				n++
			}
		}
		return n
	}

	if n := countMsgs(); n != 1 {
		t.Fatalf("expected one Msg sent so far, got %d", n)
	}

	// A second chat line arrives before the first is confirmed: it must
	// be rejected locally instead of clobbering the outstanding send.
	secondChat, _ := command.Parse("second line")
	e.HandleCommand(secondChat, now)

	if n := countMsgs(); n != 1 {
		t.Fatalf("expected masked send to be rejected, still one Msg sent, got %d", n)
	}
	if !strings.Contains(stderr.String(), "ERR:") {
		t.Fatalf("expected rejection message on stderr, got %q", stderr.String())
	}

	// Once confirmed, input is accepted again.
	e.HandleInbound(message.Confirm(1), now)
	e.HandleCommand(secondChat, now)
	if n := countMsgs(); n != 2 {
		t.Fatalf("expected second Msg sent after confirmation, got %d", n)
	}
}

func TestSIGINTBeforeAuthSendsNoBye(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	e := conversation.New(tr, nil, &stdout, &stderr)

	e.HandleSIGINT(time.Unix(0, 0))

	if e.State() != conversation.StateEnd {
		t.Fatalf("expected state End, got %v", e.State())
	}
	if len(tr.sent) != 0 {
		t.Fatalf("expected no Bye sent, got %+v", tr.sent)
	}
}

func TestSIGINTAfterAuthSendsBye(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	var stdout, stderr bytes.Buffer
	e := conversation.New(tr, nil, &stdout, &stderr)
	now := time.Unix(0, 0)

	authCmd, _ := command.Parse("/auth alice alice123 s3cret")
	e.HandleCommand(authCmd, now)

	e.HandleSIGINT(now)

	if e.State() != conversation.StateEnd {
		t.Fatalf("expected state End, got %v", e.State())
	}

	var sawBye bool
	for _, m := range tr.sent {
		if m.Kind == message.KindBye {
			sawBye = true
		}
	}
	if !sawBye {
		t.Fatalf("expected a Bye sent, got %+v", tr.sent)
	}
}
