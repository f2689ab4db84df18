package main

import (
	"context"
	"log/slog"
	"testing"

	"babas/internal/config"
)

func TestNewLogger_Level(t *testing.T) {
	l := newLogger(config.GeneralConfig{LogLevel: "warn", LogFormat: "json"})
	ctx := context.Background()
	if l.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn should be enabled")
	}
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	l := newLogger(config.GeneralConfig{LogLevel: "loud"})
	if !l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info level")
	}
}

func TestBuildStack_NoCredential(t *testing.T) {
	for _, name := range config.APIKeyEnvVars {
		t.Setenv(name, "")
	}
	logger = slog.New(slog.DiscardHandler)
	cfg := config.Defaults()
	st, err := buildStack(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if st.gateway.Configured() {
		t.Error("gateway should report no credential")
	}
	ex, err := st.loop.Submit(context.Background(), "t", "Olá")
	if err != nil {
		t.Fatal(err)
	}
	if !ex.Reply.IsError {
		t.Error("warning reply should be flagged as error")
	}
}

func TestBuildStack_UnknownProvider(t *testing.T) {
	logger = slog.New(slog.DiscardHandler)
	cfg := config.Defaults()
	cfg.Assistant.Provider = "nope"
	if _, err := buildStack(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}
