package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"babas/internal/config"

	"github.com/spf13/cobra"
)

// providerMeta describes a provider option for the wizard.
type providerMeta struct {
	Name         string
	EnvVar       string
	APIBase      string
	DefaultModel string
}

var knownProviders = []providerMeta{
	{Name: "gemini", EnvVar: "GEMINI_API_KEY", APIBase: config.GeminiAPIBase, DefaultModel: "gemini-2.5-flash"},
	{Name: "openai", EnvVar: "GEMINI_API_KEY", APIBase: config.GeminiOpenAIAPIBase, DefaultModel: "gemini-2.5-flash"},
}

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: provider → web port → bot channels → save config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.ReadRaw(cfgPath)
			if err != nil {
				cfg = config.Defaults()
			}
			if err := runWizard(cfg, os.Stdin, os.Stdout); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(config.ExpandPath(cfgPath)), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if err := config.Save(config.ExpandPath(cfgPath), cfg); err != nil {
				return err
			}
			fmt.Printf("\nConfig saved to %s\n", cfgPath)
			fmt.Println("Next: run 'babas doctor', then 'babas serve'.")
			return nil
		},
	}
}

// runWizard asks the setup questions on in and updates cfg. The result is
// validated with env references left unexpanded.
func runWizard(cfg *config.Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	prompt := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}

	// Step 1: Provider
	fmt.Fprintln(out, "\n--- Step 1: Model provider ---")
	for i, p := range knownProviders {
		fmt.Fprintf(out, "  %d) %s (%s)\n", i+1, p.Name, p.APIBase)
	}
	defNum := "1"
	for i, p := range knownProviders {
		if p.Name == cfg.Assistant.Provider {
			defNum = strconv.Itoa(i + 1)
		}
	}
	choice, err := prompt(fmt.Sprintf("Choose provider (1-%d)", len(knownProviders)), defNum)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(knownProviders) {
		idx = 1
	}
	prov := knownProviders[idx-1]
	if cfg.Assistant.Provider != prov.Name {
		cfg.Assistant.APIBase = prov.APIBase
	}
	cfg.Assistant.Provider = prov.Name
	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = prov.DefaultModel
	}

	key, err := prompt("API key (paste key, ${VAR}, or leave empty to read "+prov.EnvVar+")", cfg.Assistant.APIKey)
	if err != nil {
		return err
	}
	cfg.Assistant.APIKey = key

	// Step 2: Web
	fmt.Fprintln(out, "\n--- Step 2: Web ---")
	port, err := prompt("Web port", strconv.Itoa(cfg.Channels.Web.Port))
	if err != nil {
		return err
	}
	if n, err := strconv.Atoi(port); err == nil {
		cfg.Channels.Web.Port = n
	}

	// Step 3: Telegram
	fmt.Fprintln(out, "\n--- Step 3: Telegram (optional) ---")
	tok, err := prompt("Telegram bot token from @BotFather (empty to skip)", cfg.Channels.Telegram.Token)
	if err != nil {
		return err
	}
	cfg.Channels.Telegram.Token = tok
	cfg.Channels.Telegram.Enabled = tok != ""

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	fmt.Fprintf(out, "\n  provider: %s (%s)\n  web: %s:%d\n  telegram: %v\n",
		cfg.Assistant.Provider, cfg.Assistant.Model, cfg.Channels.Web.Host, cfg.Channels.Web.Port, cfg.Channels.Telegram.Enabled)
	return nil
}
