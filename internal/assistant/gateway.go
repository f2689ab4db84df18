// Package assistant forwards chat turns to the language model and turns every
// outcome into a string that can be shown to the user.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"babas/internal/domain"
	"babas/internal/metrics"
)

// Outcome classifies how a reply was produced.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeEmpty        Outcome = "empty"
	OutcomeError        Outcome = "error"
	OutcomeNoCredential Outcome = "no_credential"
)

// IsError reports whether the reply text is a fallback rather than a model answer.
func (o Outcome) IsError() bool { return o != OutcomeOK }

// Gateway sends one user turn plus its prior history to a provider.
// It holds no conversation state and never returns an error.
type Gateway struct {
	provider    domain.Provider
	system      string
	model       string
	temperature float64
	logger      *slog.Logger
}

type GatewayConfig struct {
	Provider    domain.Provider // nil behaves like a provider with no credential
	System      string          // defaults to SystemInstruction
	Model       string          // empty = provider default
	Temperature float64
	Logger      *slog.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.System == "" {
		cfg.System = SystemInstruction
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		provider:    cfg.Provider,
		system:      cfg.System,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Configured reports whether replies will reach the model.
func (g *Gateway) Configured() bool {
	return g.provider != nil && g.provider.Configured()
}

// Reply returns the model's answer to userText, or one of the fixed fallback
// strings.
func (g *Gateway) Reply(ctx context.Context, userText string, prior []domain.Turn) string {
	text, _ := g.ReplyOutcome(ctx, userText, prior)
	return text
}

// ReplyOutcome is Reply plus the outcome, so callers can flag placeholders.
// prior must not contain userText: it is sent separately as the current turn.
func (g *Gateway) ReplyOutcome(ctx context.Context, userText string, prior []domain.Turn) (string, Outcome) {
	if !g.Configured() {
		g.logger.Warn("assistant called without API key")
		metrics.Replies(string(OutcomeNoCredential)).Inc()
		return MissingKeyWarning, OutcomeNoCredential
	}

	history := make([]domain.Turn, len(prior))
	copy(history, prior)

	temperature := g.temperature
	start := time.Now()
	resp, err := g.provider.Chat(ctx, domain.ChatRequest{
		System:      g.system,
		History:     history,
		Prompt:      userText,
		Model:       g.model,
		Temperature: &temperature,
	})
	metrics.ModelLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		g.logger.Error("model request failed",
			"provider", g.provider.Name(),
			"history_len", len(history),
			"err", err,
		)
		metrics.Replies(string(OutcomeError)).Inc()
		return FailureApology, OutcomeError
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		g.logger.Warn("model returned empty answer", "provider", g.provider.Name())
		metrics.Replies(string(OutcomeEmpty)).Inc()
		return EmptyReplyFallback, OutcomeEmpty
	}

	g.logger.Debug("model replied",
		"provider", g.provider.Name(),
		"latency_ms", resp.LatencyMs,
		"tokens", resp.Usage.TotalTokens,
	)
	metrics.Replies(string(OutcomeOK)).Inc()
	return resp.Text, OutcomeOK
}
