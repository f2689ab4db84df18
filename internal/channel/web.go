package channel

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"regexp"
	"time"

	"babas/internal/agent"
	"babas/internal/config"
	"babas/internal/content"
	"babas/internal/domain"
	"babas/internal/metrics"
)

const (
	maxBodySize       = 64 << 10
	chartHeight       = 240
	sessionCookieName = "babas_session"
	sessionMaxAge     = 86400 // one day; conversations live in memory only
)

//go:embed web_templates/*.html
var templateFS embed.FS

// Web serves the pitch page with the chat widget and its JSON/WebSocket API.
type Web struct {
	host        string
	port        int
	loop        *agent.Loop
	pitch       *content.Pitch
	cfg         *config.Config
	metricsPath string
	ready       func() bool
	logger      *slog.Logger
	server      *http.Server
	tmpl        *htmltemplate.Template
	version     string
	hub         *wsHub
	listener    net.Listener
}

type WebConfig struct {
	Host    string
	Port    int
	Loop    *agent.Loop
	Pitch   *content.Pitch
	Config  *config.Config // shown sanitized at /api/config; optional
	Version string
	// MetricsPath mounts the metrics registry when non-empty.
	MetricsPath string
	// AssistantReady reports whether a model credential is configured.
	AssistantReady func() bool
	Logger         *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AssistantReady == nil {
		cfg.AssistantReady = func() bool { return true }
	}

	tmpl := htmltemplate.Must(htmltemplate.New("").Funcs(templateFuncs).ParseFS(templateFS, "web_templates/*.html"))

	w := &Web{
		host:        cfg.Host,
		port:        cfg.Port,
		loop:        cfg.Loop,
		pitch:       cfg.Pitch,
		cfg:         cfg.Config,
		metricsPath: cfg.MetricsPath,
		ready:       cfg.AssistantReady,
		logger:      cfg.Logger,
		tmpl:        tmpl,
		version:     cfg.Version,
	}
	w.hub = newWSHub(w.loop, w.logger)
	return w
}

var templateFuncs = htmltemplate.FuncMap{
	"brl": func(v float64) string { return content.FormatAmount(v, false) },
	"brlCents": func(v float64) string { return content.FormatAmount(v, true) },
	"add": func(a, b int) int { return a + b },
	"chartWidth": content.ChartWidth,
}

func (w *Web) Name() string { return "web" }

// Handler returns the HTTP routes without starting a server.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", w.handleIndex)
	mux.HandleFunc("POST /chat/send", w.handleSend)
	mux.HandleFunc("GET /chat/history", w.handleHistory)
	mux.HandleFunc("POST /chat/clear", w.handleClear)
	mux.HandleFunc("GET /ws", w.handleWS)
	mux.HandleFunc("GET /api/pitch", w.handlePitch)
	mux.HandleFunc("GET /api/config", w.handleGetConfig)
	mux.HandleFunc("GET /status", w.handleStatus)
	if w.metricsPath != "" {
		mux.Handle("GET "+w.metricsPath, metrics.Collector.Handler())
	}
	return mux
}

// Listen binds the server socket. Start calls it when needed; callers that
// need the bound address before serving (port 0) call it first.
func (w *Web) Listen() (net.Addr, error) {
	if w.listener != nil {
		return w.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", w.host, w.port))
	if err != nil {
		return nil, fmt.Errorf("web listen: %w", err)
	}
	w.listener = ln
	return ln.Addr(), nil
}

// Start serves until ctx is cancelled.
func (w *Web) Start(ctx context.Context) error {
	addr, err := w.Listen()
	if err != nil {
		return err
	}

	w.server = &http.Server{
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Info("web UI started", "addr", "http://"+addr.String(), "assistant_ready", w.ready())

	go func() {
		<-ctx.Done()
		w.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.Serve(w.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

// webSessionID matches the ids issued by newSessionID. Anything else in the
// cookie is ignored and replaced.
var webSessionID = regexp.MustCompile(`^web_[0-9a-f]{32}$`)

// webKey maps a browser session id into its own key namespace, apart from
// the tg:, discord:, slack: and direct sessions of the other channels.
func webKey(id string) string { return "web:" + id }

// sessionID returns the session id carried by the cookie when it has the
// issued format.
func sessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && webSessionID.MatchString(c.Value) {
		return c.Value
	}
	return ""
}

func (w *Web) newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		w.logger.Warn("rand.Read failed, using fallback session ID", "err", err)
		return fmt.Sprintf("web_%032x", time.Now().UnixNano())
	}
	return "web_" + hex.EncodeToString(b)
}

func newSessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// getOrCreateSession returns the session id from the cookie, issuing a new
// one when absent or malformed.
func (w *Web) getOrCreateSession(r *http.Request, rw http.ResponseWriter) string {
	if id := sessionID(r); id != "" {
		return id
	}
	id := w.newSessionID()
	http.SetCookie(rw, newSessionCookie(id))
	w.logger.Debug("new web session", "session", id)
	return id
}

func (w *Web) handleIndex(rw http.ResponseWriter, r *http.Request) {
	id := w.getOrCreateSession(r, rw)

	lo, hi := w.pitch.CloudCostRange()
	bars := w.pitch.Bars(chartHeight)
	data := map[string]any{
		"Pitch":        w.pitch,
		"Bars":         bars,
		"ChartHeight":  chartHeight,
		"RevenueTotal": w.pitch.RevenueTotal(),
		"CloudLo":      lo,
		"CloudHi":      hi,
		"Messages":     w.loop.History(webKey(id)),
		"Ready":        w.ready(),
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := w.tmpl.ExecuteTemplate(rw, "index.html", data); err != nil {
		w.logger.Error("template error", "template", "index", "err", err)
	}
}

type sendRequest struct {
	Message string `json:"message"`
}

// readMessage accepts a JSON body or a form field named "message".
func readMessage(rw http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(rw, r.Body, maxBodySize)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		var req sendRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
		return req.Message, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("parse form: %w", err)
	}
	return r.FormValue("message"), nil
}

func (w *Web) handleSend(rw http.ResponseWriter, r *http.Request) {
	message, err := readMessage(rw, r)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id := w.getOrCreateSession(r, rw)
	ex, err := w.loop.Submit(r.Context(), webKey(id), message)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, agent.ErrBusy):
		writeJSON(rw, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		w.logger.Error("chat submit failed", "session", id, "err", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(rw, http.StatusOK, ex)
	}
}

type historyResponse struct {
	Messages []domain.Message `json:"messages"`
	Awaiting bool             `json:"awaiting"`
}

func (w *Web) handleHistory(rw http.ResponseWriter, r *http.Request) {
	resp := historyResponse{Messages: []domain.Message{}}
	if id := sessionID(r); id != "" {
		if sess, ok := w.loop.Sessions().Get(webKey(id)); ok {
			resp.Messages = sess.Messages()
			resp.Awaiting = sess.Awaiting()
		}
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (w *Web) handleClear(rw http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		w.loop.Reset(webKey(id))
	}
	// Expire the cookie so the next request starts a fresh session.
	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(rw, http.StatusOK, map[string]string{"status": "session cleared"})
}

func (w *Web) handlePitch(rw http.ResponseWriter, r *http.Request) {
	lo, hi := w.pitch.CloudCostRange()
	writeJSON(rw, http.StatusOK, map[string]any{
		"pitch":        w.pitch,
		"revenueTotal": w.pitch.RevenueTotal(),
		"cloudCost":    map[string]float64{"min": lo, "max": hi},
	})
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         w.version,
		"assistant_ready": w.ready(),
		"sessions":        w.loop.Sessions().Count(),
		"uptime":          metrics.Collector.Uptime().Round(time.Second).String(),
		"time":            time.Now().Format(time.RFC3339),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

