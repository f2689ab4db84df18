// Package export renders the pitch page to PDF with headless Chrome.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Exporter drives a headless Chrome instance.
type Exporter struct {
	execPath string
	timeout  time.Duration
	logger   *slog.Logger
}

type Config struct {
	// ExecPath overrides Chrome discovery; empty uses chromedp's lookup.
	ExecPath string
	Timeout  time.Duration
	Logger   *slog.Logger
}

func New(cfg Config) *Exporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{
		execPath: cfg.ExecPath,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// newContext starts a throwaway browser. The caller MUST call cancel.
func (e *Exporter) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.WindowSize(1280, 1024),
	)
	if e.execPath != "" {
		opts = append(opts, chromedp.ExecPath(e.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(taskCtx, e.timeout)

	return timeoutCtx, func() {
		timeoutCancel()
		taskCancel()
		allocCancel()
	}
}

// PDF loads url, waits for the hero section and returns the printed page.
func (e *Exporter) PDF(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("export: empty url")
	}

	taskCtx, cancel := e.newContext(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("#hero", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := printParams().Do(ctx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf, nil
}

// A4 portrait in inches with the page backgrounds kept.
func printParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(8.27).
		WithPaperHeight(11.69).
		WithMarginTop(0.4).
		WithMarginBottom(0.4).
		WithMarginLeft(0.4).
		WithMarginRight(0.4)
}

// WriteFile renders url into path, creating parent directories.
func (e *Exporter) WriteFile(ctx context.Context, url, path string) error {
	if path == "" {
		return errors.New("export: empty output path")
	}
	data, err := e.PDF(ctx, url)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	e.logger.Info("pitch exported", "path", path, "bytes", len(data))
	return nil
}

// Serve exposes h on an ephemeral loopback port for the browser to load.
// The returned stop function shuts the server down.
func Serve(h http.Handler) (baseURL string, stop func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("export listen: %w", err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	stop = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String() + "/", stop, nil
}
