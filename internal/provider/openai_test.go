package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"babas/internal/domain"
)

func TestOpenAI_ChatMapsRoles(t *testing.T) {
	var got oaiRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Olá!"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "sk-test", APIBase: srv.URL, Model: "m", Client: srv.Client(), Logger: testLogger()})
	resp, err := o.Chat(context.Background(), domain.ChatRequest{
		System:  "briefing",
		History: []domain.Turn{{Role: domain.RoleUser, Text: "A"}, {Role: domain.RoleModel, Text: "B"}},
		Prompt:  "C",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Olá!" || resp.Usage.TotalTokens != 4 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	want := []oaiMessage{
		{Role: "system", Content: "briefing"},
		{Role: "user", Content: "A"},
		{Role: "assistant", Content: "B"},
		{Role: "user", Content: "C"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got.Messages))
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Fatalf("message %d: expected %+v, got %+v", i, want[i], got.Messages[i])
		}
	}
	if got.Temperature != nil {
		t.Fatalf("unset temperature should be omitted, got %v", *got.Temperature)
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Client: srv.Client(), Logger: testLogger()})
	resp, err := o.Chat(context.Background(), domain.ChatRequest{Prompt: "Oi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "" {
		t.Fatalf("expected empty text, got %q", resp.Text)
	}
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Client: srv.Client(), Logger: testLogger()})
	if _, err := o.Chat(context.Background(), domain.ChatRequest{Prompt: "Oi"}); err == nil {
		t.Fatal("expected error")
	}
}

func ptr(v float64) *float64 { return &v }

func TestOpenAI_ZeroTemperatureIsSent(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Client: srv.Client(), Logger: testLogger()})
	if _, err := o.Chat(context.Background(), domain.ChatRequest{Prompt: "oi", Temperature: ptr(0)}); err != nil {
		t.Fatal(err)
	}
	if v, ok := raw["temperature"]; !ok || v != float64(0) {
		t.Fatalf("expected temperature 0 in body, got %v (present=%v)", v, ok)
	}
}
