package channel

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"babas/internal/agent"
	"babas/internal/assistant"
	"babas/internal/content"
	"babas/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoReplier answers "eco: <text>" and records the history it was given.
type echoReplier struct {
	mu      sync.Mutex
	outcome assistant.Outcome
	priors  [][]domain.Turn
	block   chan struct{}
	entered chan struct{}
}

func (e *echoReplier) ReplyOutcome(ctx context.Context, text string, prior []domain.Turn) (string, assistant.Outcome) {
	e.mu.Lock()
	e.priors = append(e.priors, prior)
	block, entered := e.block, e.entered
	e.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if e.outcome != "" && e.outcome != assistant.OutcomeOK {
		return assistant.FailureApology, e.outcome
	}
	return "eco: " + text, assistant.OutcomeOK
}

func newTestLoop(r agent.Replier) *agent.Loop {
	return agent.NewLoop(agent.LoopConfig{
		Sessions:  agent.NewSessionManager(agent.SessionConfig{Logger: testLogger()}),
		Assistant: r,
		Logger:    testLogger(),
	})
}

func mustPitch() *content.Pitch {
	p, err := content.Load()
	if err != nil {
		panic(err)
	}
	return p
}
