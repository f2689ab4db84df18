package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"babas/internal/agent"
	"babas/internal/assistant"
	"babas/internal/channel"
	"babas/internal/config"
	"babas/internal/content"
	"babas/internal/domain"
	"babas/internal/export"
	"babas/internal/provider"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "babas",
		Short: "Babás do Futuro: pitch site with an AI business assistant",
		Long:  "Serves the Babás do Futuro pitch page and its chat assistant over Web, WebSocket, Telegram, Discord, Slack and the terminal.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.babas/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// newLogger builds the process logger from the general config section.
func newLogger(gc config.GeneralConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(gc.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(gc.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// loadConfig reads .env files, then the config file (defaults when it does
// not exist), and swaps in the configured logger.
func loadConfig() (*config.Config, error) {
	envFiles := config.LoadEnvFiles()

	cfgPath := resolveConfigPath()
	cfg, found, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger = newLogger(cfg.General)
	slog.SetDefault(logger)
	if len(envFiles) > 0 {
		logger.Debug("env files loaded", "files", envFiles)
	}
	if !found {
		logger.Warn("config not found, using defaults", "path", cfgPath)
	}
	return cfg, nil
}

// stack is the wired chat pipeline shared by every command.
type stack struct {
	provider domain.Provider
	gateway  *assistant.Gateway
	sessions *agent.SessionManager
	loop     *agent.Loop
}

func buildStack(cfg *config.Config) (*stack, error) {
	prov, err := provider.New(cfg.Assistant, logger)
	if err != nil {
		return nil, err
	}
	gw := assistant.NewGateway(assistant.GatewayConfig{
		Provider:    prov,
		Model:       cfg.Assistant.Model,
		Temperature: cfg.Assistant.Temperature,
		Logger:      logger,
	})
	if !gw.Configured() {
		logger.Warn("no model credential configured; the assistant will answer with a warning",
			"env", strings.Join(config.APIKeyEnvVars, ", "))
	}

	sessions := agent.NewSessionManager(agent.SessionConfig{
		IdleTimeout: time.Duration(cfg.Session.IdleMinutes) * time.Minute,
		MaxSessions: cfg.Session.MaxSessions,
		Logger:      logger,
	})
	loop := agent.NewLoop(agent.LoopConfig{
		Sessions:  sessions,
		Assistant: gw,
		Logger:    logger,
	})
	return &stack{provider: prov, gateway: gw, sessions: sessions, loop: loop}, nil
}

func newWeb(cfg *config.Config, st *stack, pitch *content.Pitch) *channel.Web {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}
	return channel.NewWeb(channel.WebConfig{
		Host:           cfg.Channels.Web.Host,
		Port:           cfg.Channels.Web.Port,
		Loop:           st.loop,
		Pitch:          pitch,
		Config:         cfg,
		Version:        version,
		MetricsPath:    metricsPath,
		AssistantReady: st.gateway.Configured,
		Logger:         logger,
	})
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath,
				"hint", "set GEMINI_API_KEY in the environment or .env.local")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func serveCmd() *cobra.Command {
	var pitchFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pitch page and start every enabled chat channel",
		Long:  "Starts the web UI (with /chat and /ws) plus Telegram, Discord and Slack when enabled. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(pitchFile)
		},
	}
	cmd.Flags().StringVar(&pitchFile, "pitch", "", "YAML file overriding the built-in pitch content")
	return cmd
}

func runServe(pitchFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pitch, err := content.LoadFile(pitchFile)
	if err != nil {
		return err
	}
	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go st.sessions.Run(ctx)

	var channels []domain.Channel
	if cfg.Channels.Web.Enabled {
		channels = append(channels, newWeb(cfg, st, pitch))
	}
	if cfg.Channels.Telegram.Enabled {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			Welcome:   pitch.Chat.Welcome,
			Loop:      st.loop,
			Logger:    logger,
		}))
	}
	if cfg.Channels.Discord.Enabled {
		channels = append(channels, channel.NewDiscord(channel.DiscordConfig{
			Token:   cfg.Channels.Discord.Token,
			GuildID: cfg.Channels.Discord.GuildID,
			Loop:    st.loop,
			Logger:  logger,
		}))
	}
	if cfg.Channels.Slack.Enabled {
		channels = append(channels, channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
			Loop:     st.loop,
			Logger:   logger,
		}))
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels enabled; enable channels.web or a bot channel")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		logger.Info("channel enabled", "channel", ch.Name())
		g.Go(func() error {
			if err := ch.Start(gctx); err != nil {
				return fmt.Errorf("%s channel: %w", ch.Name(), err)
			}
			return nil
		})
	}

	logger.Info("babas started. Press Ctrl+C to stop.", "version", version, "assistant_ready", st.gateway.Configured())

	<-gctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
		for _, ch := range channels {
			if err := ch.Stop(); err != nil {
				logger.Warn("channel stop", "channel", ch.Name(), "err", err)
			}
		}
		return fmt.Errorf("shutdown timed out")
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			pitch, err := content.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cli := channel.NewCLI(channel.CLIConfig{
				Loop:    st.loop,
				Welcome: pitch.Chat.Welcome,
				Logger:  logger,
				Spinner: isatty.IsTerminal(os.Stdout.Fd()),
			})
			return cli.Start(ctx)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and assistant reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}

			fmt.Printf("config:     %s\n", resolveConfigPath())
			fmt.Printf("provider:   %s (%s)\n", st.provider.Name(), cfg.Assistant.Model)
			fmt.Printf("credential: %v\n", st.gateway.Configured())
			if st.gateway.Configured() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := st.provider.Healthy(ctx); err != nil {
					fmt.Printf("reachable:  false (%v)\n", err)
				} else {
					fmt.Printf("reachable:  true\n")
				}
			}
			web := cfg.Channels.Web
			fmt.Printf("web:        %v (http://%s:%d)\n", web.Enabled, web.Host, web.Port)
			fmt.Printf("telegram:   %v\n", cfg.Channels.Telegram.Enabled)
			fmt.Printf("discord:    %v\n", cfg.Channels.Discord.Enabled)
			fmt.Printf("slack:      %v\n", cfg.Channels.Slack.Enabled)
			if cfg.Metrics.Enabled {
				fmt.Printf("metrics:    %s\n", cfg.Metrics.Endpoint)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var output, chromePath, pitchFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the pitch page to PDF with headless Chrome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.Export.Output
			}
			pitch, err := content.LoadFile(pitchFile)
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}

			base, stopServer, err := export.Serve(newWeb(cfg, st, pitch).Handler())
			if err != nil {
				return err
			}
			defer stopServer()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exp := export.New(export.Config{
				ExecPath: chromePath,
				Timeout:  time.Duration(cfg.Export.TimeoutSeconds) * time.Second,
				Logger:   logger,
			})
			out := config.ExpandPath(output)
			if err := exp.WriteFile(ctx, base, out); err != nil {
				return err
			}
			if info, err := os.Stat(out); err == nil {
				fmt.Printf("Exported %s (%s)\n", out, humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PDF path (default: export.output)")
	cmd.Flags().StringVar(&chromePath, "chrome", "", "Chrome/Chromium executable (default: auto-detect)")
	cmd.Flags().StringVar(&pitchFile, "pitch", "", "YAML file overriding the built-in pitch content")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. assistant.model)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. channels.web.port 9000)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.ReadRaw(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			config.NormalizeAPIBase(cfg)
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(config.ExpandPath(cfgPath), cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
