package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"babas/internal/agent"
	"babas/internal/assistant"
	"babas/internal/config"
)

// testSessionID has the format of an issued browser session id.
var testSessionID = "web_" + strings.Repeat("ab", 16)

func newTestWeb(r *echoReplier) (*Web, *agent.Loop) {
	loop := newTestLoop(r)
	w := NewWeb(WebConfig{
		Host:        "127.0.0.1",
		Loop:        loop,
		Pitch:       mustPitch(),
		Config:      config.Defaults(),
		Version:     "1.2.3",
		MetricsPath: "/metrics",
		Logger:      testLogger(),
	})
	return w, loop
}

func postJSON(h http.Handler, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHandleSend_ReturnsExchange(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	rec := postJSON(w.Handler(), "/chat/send", `{"message":"Qual a receita?"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var ex agent.Exchange
	if err := json.Unmarshal(rec.Body.Bytes(), &ex); err != nil {
		t.Fatal(err)
	}
	if ex.User.Text != "Qual a receita?" || ex.Reply.Text != "eco: Qual a receita?" {
		t.Fatalf("unexpected exchange %+v", ex)
	}
	if ex.Outcome != assistant.OutcomeOK {
		t.Fatalf("unexpected outcome %s", ex.Outcome)
	}
	sessionCookie(t, rec)
}

func TestHandleSend_FormEncoded(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	form := url.Values{"message": {"oi"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "eco: oi") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHandleSend_EmptyMessage_Returns400(t *testing.T) {
	r := &echoReplier{}
	w, _ := newTestWeb(r)
	rec := postJSON(w.Handler(), "/chat/send", `{"message":"   "}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(r.priors) != 0 {
		t.Fatal("assistant should not be called for empty input")
	}
}

func TestHandleSend_InvalidJSON_Returns400(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	rec := postJSON(w.Handler(), "/chat/send", `{"message":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSend_BusyReturns409(t *testing.T) {
	r := &echoReplier{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	release := r.block
	w, _ := newTestWeb(r)
	h := w.Handler()
	cookie := &http.Cookie{Name: sessionCookieName, Value: testSessionID}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- postJSON(h, "/chat/send", `{"message":"primeira"}`, cookie) }()

	select {
	case <-r.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the assistant")
	}

	rec := postJSON(h, "/chat/send", `{"message":"segunda"}`, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	close(release)
	if first := <-done; first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", first.Code)
	}
}

func TestHandleHistory_FollowsCookie(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	h := w.Handler()

	first := postJSON(h, "/chat/send", `{"message":"A"}`, nil)
	cookie := sessionCookie(t, first)
	postJSON(h, "/chat/send", `{"message":"C"}`, cookie)

	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Text != "A" || resp.Messages[3].Text != "eco: C" {
		t.Fatalf("unexpected history %+v", resp.Messages)
	}
	if resp.Awaiting {
		t.Fatal("session should not be awaiting")
	}
}

func TestHandleHistory_NoCookie(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Fatalf("expected empty messages array, got %s", rec.Body.String())
	}
}

func TestHandleClear_ResetsSession(t *testing.T) {
	w, loop := newTestWeb(&echoReplier{})
	h := w.Handler()

	first := postJSON(h, "/chat/send", `{"message":"A"}`, nil)
	cookie := sessionCookie(t, first)

	rec := postJSON(h, "/chat/clear", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := loop.History(webKey(cookie.Value)); got != nil {
		t.Fatalf("expected cleared history, got %v", got)
	}
	if c := sessionCookie(t, rec); c.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got MaxAge %d", c.MaxAge)
	}
}

func TestIndex_RendersPitchAndWidget(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Inovação em Cuidado Infantil",
		"R$ 1.900,00",
		"R$ 9,20",
		"Total: R$ 400 - R$ 800",
		"RECOMENDADO",
		"Pergunte sobre nosso plano...",
		`id="value-prop"`,
		"<rect",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestIndex_UnknownPathIs404(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPitchAPI(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	req := httptest.NewRequest(http.MethodGet, "/api/pitch", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	var resp struct {
		RevenueTotal float64            `json:"revenueTotal"`
		CloudCost    map[string]float64 `json:"cloudCost"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RevenueTotal != 1900 || resp.CloudCost["min"] != 400 || resp.CloudCost["max"] != 800 {
		t.Fatalf("unexpected pitch totals %+v", resp)
	}
}

func TestConfigAPI_MasksSecrets(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	w.cfg.Assistant.APIKey = "AIzaSyVeryLongSecretKey"
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "AIzaSyVeryLongSecretKey") {
		t.Fatal("api key leaked")
	}
}

func TestStatus_ReturnsJSON(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"ok"`) || !strings.Contains(body, "1.2.3") {
		t.Fatalf("unexpected status body %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w, _ := newTestWeb(&echoReplier{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "babas_messages_total") {
		t.Fatalf("metrics output missing counter: %s", rec.Body.String())
	}
}

func TestSession_ForgedCookieCannotReachOtherChannels(t *testing.T) {
	w, loop := newTestWeb(&echoReplier{})
	h := w.Handler()
	ctx := context.Background()

	if _, err := loop.Submit(ctx, sessionKey(424242), "segredo"); err != nil {
		t.Fatal(err)
	}
	if _, err := loop.Submit(ctx, CLISession, "terminal"); err != nil {
		t.Fatal(err)
	}

	for _, forged := range []string{"tg:424242", "direct", "web:" + testSessionID, "web_xyz"} {
		cookie := &http.Cookie{Name: sessionCookieName, Value: forged}

		req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if strings.Contains(rec.Body.String(), "segredo") || strings.Contains(rec.Body.String(), "terminal") {
			t.Fatalf("cookie %q read another session: %s", forged, rec.Body.String())
		}

		send := postJSON(h, "/chat/send", `{"message":"intruso"}`, cookie)
		if send.Code != http.StatusOK {
			t.Fatalf("cookie %q: expected 200, got %d", forged, send.Code)
		}
		if issued := sessionCookie(t, send); !webSessionID.MatchString(issued.Value) {
			t.Fatalf("cookie %q: issued malformed id %q", forged, issued.Value)
		}

		postJSON(h, "/chat/clear", "", cookie)
	}

	if got := loop.History(sessionKey(424242)); len(got) != 2 || got[0].Text != "segredo" {
		t.Fatalf("telegram session changed: %+v", got)
	}
	if got := loop.History(CLISession); len(got) != 2 || got[0].Text != "terminal" {
		t.Fatalf("terminal session changed: %+v", got)
	}
}

func TestSession_WebKeysAreNamespaced(t *testing.T) {
	w, loop := newTestWeb(&echoReplier{})
	rec := postJSON(w.Handler(), "/chat/send", `{"message":"oi"}`, nil)
	id := sessionCookie(t, rec).Value

	if loop.History(id) != nil {
		t.Fatal("raw cookie value must not be a session key")
	}
	if got := loop.History(webKey(id)); len(got) != 2 {
		t.Fatalf("expected 2 messages under the web key, got %d", len(got))
	}
}
