package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"axe/cmd/axe/chat"
	"axe/internal/agent"
	"axe/internal/config"
	"axe/internal/logging"
	"axe/internal/provider"
	"axe/internal/store"
	"axe/internal/tools"
)

const version = "v0.3.0"

var (
	flagProvider string
	flagModel    string
	flagAgent    string
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:   "axe",
	Short: "axe - AI assistant in your terminal",
	Long: `axe is a terminal AI assistant with sessions, streaming responses,
and tools: filesystem access, shell commands, and web search.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Path())
		if err != nil {
			return err
		}
		applyFlagOverrides(cfg)
		debug := flagDebug || cfg.Logging.DebugMode
		if err := logging.Initialize(config.LogsDir(), debug, cfg.Logging.Level); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(config.FromContext(cmd.Context()))
	},
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single prompt and print the response",
	Long: `Run one conversation turn without the TUI. The turn joins the current
directory's session, so follow-up runs and the interactive chat share
history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the axe version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("axe " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "model provider (gemini, openai, anthropic, groq, ...)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model name (defaults to the provider's first catalog entry)")
	rootCmd.PersistentFlags().StringVar(&flagAgent, "agent", "", "agent variant (general, coder, researcher, or from agents.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging to ~/.axe/logs")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func applyFlagOverrides(cfg *config.UserConfig) {
	if flagProvider != "" {
		cfg.Provider = flagProvider
		if flagModel == "" {
			if models := provider.Models(flagProvider); len(models) > 0 {
				cfg.Model = models[0]
			}
		}
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagAgent != "" {
		cfg.Agent = flagAgent
	}
}

// buildOrchestrator opens the session store and wires the turn pipeline.
func buildOrchestrator(cfg *config.UserConfig, workDir string) (*agent.Orchestrator, *store.Store, error) {
	st, err := store.Open(config.StorePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	registry := provider.NewRegistry(cfg.APIKey)
	newPool := func() agent.ToolPool {
		return tools.NewPool(tools.DefaultProviders(workDir, cfg.Tools), cfg.Tools.Strict, cfg.Tools.Disabled)
	}
	orch := agent.New(st, registry.Resolve, newPool, workDir, cfg.Turn)
	return orch, st, nil
}

func runInteractive(cfg *config.UserConfig) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	orch, st, err := buildOrchestrator(cfg, workDir)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.EnsureSession(workDir)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	agents, err := config.LoadAgents(config.AgentsPath())
	if err != nil {
		return err
	}
	logging.Session("interactive start: session=%s dir=%s provider=%s", sess.ID, workDir, cfg.Provider)

	m := chat.New(chat.Options{
		Config:     cfg,
		ConfigPath: config.Path(),
		Store:      st,
		Runner:     orch,
		Agents:     agents,
		SessionID:  sess.ID,
		WorkDir:    workDir,
		Version:    version,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	watcher, err := config.WatchConfig(config.Path())
	if err == nil {
		defer watcher.Close()
		go func() {
			for updated := range watcher.Changes() {
				p.Send(chat.ConfigReloadedMsg{Config: updated})
			}
		}()
	} else {
		logging.Session("config watcher unavailable: %v", err)
	}

	_, err = p.Run()
	return err
}

func runOneShot(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	orch, st, err := buildOrchestrator(cfg, workDir)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.EnsureSession(workDir)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	agents, err := config.LoadAgents(config.AgentsPath())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt := ""
	for i, a := range args {
		if i > 0 {
			prompt += " "
		}
		prompt += a
	}

	out, err := orch.Run(ctx, agent.TurnRequest{
		SessionID: sess.ID,
		Input:     prompt,
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Agent:     config.FindAgent(agents, cfg.Agent),
	})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
