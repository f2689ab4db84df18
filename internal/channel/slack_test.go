package channel

import (
	"context"
	"strings"
	"testing"
	"time"

	"babas/internal/assistant"
)

func newTestSlack(r *echoReplier) *Slack {
	return NewSlack(SlackConfig{BotToken: "xoxb-test", AppToken: "xapp-test", Loop: newTestLoop(r), Logger: testLogger()})
}

func TestSlack_CommandQuestion(t *testing.T) {
	s := newTestSlack(&echoReplier{})
	if got := s.command(context.Background(), "C1", "qual a receita?"); got != "eco: qual a receita?" {
		t.Fatalf("unexpected answer %q", got)
	}
	if n := len(s.loop.History(slackKey("C1"))); n != 2 {
		t.Fatalf("expected 2 messages under slack:C1, got %d", n)
	}
}

func TestSlack_CommandClearResetsChannel(t *testing.T) {
	s := newTestSlack(&echoReplier{})
	ctx := context.Background()
	s.reply(ctx, "C1", "oi")
	s.reply(ctx, "C2", "outro")

	if got := s.command(ctx, "C1", " clear "); !strings.Contains(got, "apagada") {
		t.Fatalf("unexpected clear answer %q", got)
	}
	if s.loop.History(slackKey("C1")) != nil {
		t.Fatal("slack:C1 should be cleared")
	}
	if n := len(s.loop.History(slackKey("C2"))); n != 2 {
		t.Fatalf("slack:C2 should be untouched, got %d messages", n)
	}
}

func TestSlack_EmptyTextSendsNothing(t *testing.T) {
	s := newTestSlack(&echoReplier{})
	if got := s.command(context.Background(), "C1", "   "); got != "" {
		t.Fatalf("expected no answer, got %q", got)
	}
}

func TestSlack_FailureApology(t *testing.T) {
	s := newTestSlack(&echoReplier{outcome: assistant.OutcomeError})
	if got := s.reply(context.Background(), "C1", "oi"); got != assistant.FailureApology {
		t.Fatalf("expected apology, got %q", got)
	}
	if msgs := s.loop.History(slackKey("C1")); !msgs[1].IsError {
		t.Fatal("apology should be stored as an error message")
	}
}

func TestSlack_BusyChannel(t *testing.T) {
	r := &echoReplier{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	release := r.block
	s := newTestSlack(r)
	ctx := context.Background()

	done := make(chan string, 1)
	go func() { done <- s.reply(ctx, "C1", "primeira") }()
	select {
	case <-r.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first message never reached the assistant")
	}

	if got := s.command(ctx, "C1", "segunda"); !strings.Contains(got, "Ainda estou respondendo") {
		t.Fatalf("expected busy notice, got %q", got)
	}
	close(release)
	if got := <-done; got != "eco: primeira" {
		t.Fatalf("unexpected first answer %q", got)
	}
}
