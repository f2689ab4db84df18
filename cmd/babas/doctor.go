package main

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"babas/internal/config"
	"babas/internal/content"
	"babas/internal/provider"

	"github.com/spf13/cobra"
)

// chromeCandidates are looked up on PATH for the export check.
var chromeCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your babas installation",
		Long: `Verifies that the configuration, model credential, pitch content and
web port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("babas doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			config.LoadEnvFiles()

			// 1. Config file
			cfg, found, err := config.LoadOrDefaults(cfgPath)
			switch {
			case err != nil:
				printFail("Config validation", err.Error())
				failed++
			case !found:
				printWarn("Config file", fmt.Sprintf("not found at %s (using defaults)", cfgPath))
				warned++
			default:
				printPass("Config file", cfgPath)
				passed++
			}

			if cfg == nil {
				fmt.Printf("\nRun 'babas init' to create a default configuration.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}

			// 2. Pitch content
			if pitch, err := content.Load(); err != nil {
				printFail("Pitch content", err.Error())
				failed++
			} else {
				printPass("Pitch content", fmt.Sprintf("%d sections", len(pitch.Sections)))
				passed++
			}

			// 3. Credential and reachability
			prov, err := provider.New(cfg.Assistant, logger)
			switch {
			case err != nil:
				printFail("Provider", err.Error())
				failed++
			case !prov.Configured():
				printWarn("API key", "not set; the chat will answer with a warning ("+strings.Join(config.APIKeyEnvVars, ", ")+")")
				warned++
			default:
				printPass("API key", "configured")
				passed++
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := prov.Healthy(ctx); err != nil {
					printFail("Provider: "+prov.Name(), err.Error())
					failed++
				} else {
					printPass("Provider: "+prov.Name(), cfg.Assistant.Model+" reachable")
					passed++
				}
				cancel()
			}

			// 4. Web port
			if cfg.Channels.Web.Enabled {
				addr := fmt.Sprintf("%s:%d", cfg.Channels.Web.Host, cfg.Channels.Web.Port)
				if err := checkAddr(addr); err != nil {
					printWarn("Web port", fmt.Sprintf("%s may be in use: %v", addr, err))
					warned++
				} else {
					printPass("Web port", addr+" available")
					passed++
				}
			}

			// 5. Bot channels
			for name, enabled := range map[string]bool{
				"Telegram": cfg.Channels.Telegram.Enabled,
				"Discord":  cfg.Channels.Discord.Enabled,
				"Slack":    cfg.Channels.Slack.Enabled,
			} {
				if enabled {
					printPass(name, "enabled")
					passed++
				}
			}

			// 6. Chrome for export
			if path := findChrome(); path == "" {
				printWarn("Chrome", "not found on PATH; 'babas export' needs --chrome")
				warned++
			} else {
				printPass("Chrome", path)
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running babas.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nbabas should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Run 'babas serve'.\n")
			}
			return nil
		},
	}
}

func findChrome() string {
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
