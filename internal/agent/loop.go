package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"babas/internal/assistant"
	"babas/internal/conversation"
	"babas/internal/domain"
	"babas/internal/metrics"
)

var (
	// ErrEmptyMessage is returned for blank input; nothing is recorded.
	ErrEmptyMessage = errors.New("empty message")
	// ErrBusy is returned while the session is still awaiting a reply.
	ErrBusy = errors.New("a reply is still pending for this session")
)

// Replier produces a displayable reply for a user turn. *assistant.Gateway
// implements it.
type Replier interface {
	ReplyOutcome(ctx context.Context, userText string, prior []domain.Turn) (string, assistant.Outcome)
}

// Exchange is the result of one completed turn.
type Exchange struct {
	User    domain.Message    `json:"user"`
	Reply   domain.Message    `json:"reply"`
	Outcome assistant.Outcome `json:"outcome"`
}

// Loop drives the chat flow shared by every channel: record the user turn,
// ask the assistant with the earlier history, record the reply.
type Loop struct {
	sessions  *SessionManager
	assistant Replier
	logger    *slog.Logger
}

type LoopConfig struct {
	Sessions  *SessionManager
	Assistant Replier
	Logger    *slog.Logger
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		sessions:  cfg.Sessions,
		assistant: cfg.Assistant,
		logger:    cfg.Logger,
	}
}

func (l *Loop) Sessions() *SessionManager { return l.sessions }

// Submit runs one turn for the session identified by key. It blocks until
// the assistant answers; the returned Exchange always carries a displayable
// reply.
func (l *Loop) Submit(ctx context.Context, key, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess := l.sessions.GetOrCreate(key)
	if !sess.begin() {
		metrics.BusyRejections.Inc()
		return nil, ErrBusy
	}
	defer sess.end()

	// Snapshot before appending: the new text travels as the prompt only.
	prior := sess.store.Turns()

	userMsg := conversation.NewUserMessage(text)
	sess.store.Append(userMsg)
	metrics.MessagesTotal.Inc()

	l.logger.Info("chat turn", "session", key, "history_len", len(prior), "text_len", len(text))

	replyText, outcome := l.assistant.ReplyOutcome(ctx, text, prior)
	reply := conversation.NewModelMessage(replyText, outcome.IsError())
	sess.store.Append(reply)

	return &Exchange{User: userMsg, Reply: reply, Outcome: outcome}, nil
}

// History returns the messages of a session, or nil if it does not exist.
func (l *Loop) History(key string) []domain.Message {
	sess, ok := l.sessions.Get(key)
	if !ok {
		return nil
	}
	return sess.Messages()
}

// Reset discards the conversation of a session.
func (l *Loop) Reset(key string) {
	l.sessions.Clear(key)
}
