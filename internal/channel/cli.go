package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"babas/internal/agent"
)

// CLISession is the session key used by the terminal chat.
const CLISession = "direct"

// CLI is an interactive terminal chat against the same loop the web uses.
type CLI struct {
	loop      *agent.Loop
	welcome   string
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer
	spinner   bool
	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
	thinkDone chan struct{}
}

type CLIConfig struct {
	Loop    *agent.Loop
	Welcome string
	Logger  *slog.Logger
	In      io.Reader
	Out     io.Writer
	// Spinner animates while waiting for a reply; off for pipes and tests.
	Spinner bool
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		loop:    cfg.Loop,
		welcome: cfg.Welcome,
		logger:  cfg.Logger,
		in:      cfg.In,
		out:     cfg.Out,
		spinner: cfg.Spinner,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the REPL until EOF, /quit or ctx cancellation.
func (c *CLI) Start(ctx context.Context) error {
	_, _ = fmt.Fprintln(c.out, "Babás do Futuro. Digite sua pergunta e pressione Enter. /clear limpa, /quit sai.")
	if c.welcome != "" {
		c.printReply(c.welcome)
	}
	_, _ = fmt.Fprint(c.out, "Você> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			_, _ = fmt.Fprint(c.out, "Você> ")
			continue
		case "/quit", "/exit", "/q":
			c.logger.Info("user requested quit")
			return nil
		case "/clear":
			c.loop.Reset(CLISession)
			_, _ = fmt.Fprintln(c.out, "Conversa apagada.")
			_, _ = fmt.Fprint(c.out, "Você> ")
			continue
		}

		c.startThinking()
		ex, err := c.loop.Submit(ctx, CLISession, line)
		c.stopThinking()
		switch {
		case errors.Is(err, agent.ErrEmptyMessage):
		case err != nil:
			_, _ = fmt.Fprintln(c.out, "erro:", err)
		default:
			c.printReply(ex.Reply.Text)
		}
		_, _ = fmt.Fprint(c.out, "Você> ")
	}
}

func (c *CLI) printReply(text string) {
	_, _ = fmt.Fprintln(c.out, "--- Assistente ---")
	_, _ = fmt.Fprintln(c.out, text)
	_, _ = fmt.Fprintln(c.out, "------------------")
}

func (c *CLI) startThinking() {
	if !c.spinner {
		return
	}
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	c.thinkDone = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				_, _ = fmt.Fprint(c.out, "\r\033[K")
				return
			case <-ticker.C:
				_, _ = fmt.Fprintf(c.out, "\r%s Pensando...", frames[i%len(frames)])
				i++
			}
		}
	}(c.thinkStop, c.thinkDone)
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
	<-c.thinkDone
}

// Stop is a no-op; Start returns on EOF or /quit.
func (c *CLI) Stop() error { return nil }
