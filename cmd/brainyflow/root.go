package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/alt-coder/brainyflow-go/cookbook"
	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/internal/config"
	"github.com/alt-coder/brainyflow-go/internal/logging"
	"github.com/alt-coder/brainyflow-go/internal/tracing"
	"github.com/alt-coder/brainyflow-go/providers"
	"github.com/alt-coder/brainyflow-go/tools"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootFlags struct {
	configPath    string
	provider      string
	model         string
	logLevel      string
	logFormat     string
	traceEndpoint string
	question      string
	concurrency   int
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:          "brainyflow",
		Short:        "Run graph workflows from the brainyflow cookbook",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&flags.provider, "provider", "", fmt.Sprintf("LLM provider %v", providers.Names()))
	pf.StringVar(&flags.model, "model", "", "Model name, overriding the provider's default")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&flags.traceEndpoint, "trace-endpoint", "", "OTLP/HTTP endpoint for spans, host:port or URL")

	root.AddCommand(newListCmd(), newRunCmd(&flags))
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the cookbook recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range cookbook.Catalog() {
				kind := "local"
				if r.UsesLLM {
					kind = "llm"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, kind, r.Description)
			}
			return w.Flush()
		},
	}
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <recipe>",
		Short: "Run a cookbook recipe",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			var names []string
			for _, r := range cookbook.Catalog() {
				names = append(names, r.Name)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipe(cmd, flags, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.question, "question", "q", "", "Question, text or URL list passed to the recipe")
	f.IntVar(&flags.concurrency, "concurrency", 0, "Limit for parallel batches, 0 for the configured value")
	return cmd
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("provider") {
		cfg.Provider = flags.provider
	}
	if changed("model") {
		cfg.Model = flags.model
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if changed("trace-endpoint") {
		cfg.Tracing.Endpoint = flags.traceEndpoint
	}
	if changed("concurrency") {
		cfg.Concurrency = flags.concurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRecipe(cmd *cobra.Command, flags *rootFlags, name string) error {
	recipe, ok := cookbook.Find(name)
	if !ok {
		return fmt.Errorf("unknown recipe %q, see 'brainyflow list'", name)
	}
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	core.SetLogger(logger)

	ctx := cmd.Context()
	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer tracing.Close(shutdown, logger)

	provider, err := providers.New(ctx, providers.Spec{Name: cfg.Provider, Model: cfg.Model}, logger)
	if err != nil {
		return err
	}
	deps := cookbook.Deps{
		Provider:    provider,
		Logger:      logger,
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
		Input:       flags.question,
		Concurrency: cfg.Concurrency,
	}

	if len(cfg.MCP.Servers) > 0 {
		mcp := tools.NewMCPManager(&cfg.MCP, logger)
		if err := mcp.Initialize(ctx); err != nil {
			return err
		}
		defer func() {
			if err := mcp.Close(); err != nil {
				logger.Warn("closing MCP servers", zap.Error(err))
			}
		}()
		deps.Remote = mcp
	}

	logger.Info("running recipe",
		zap.String("recipe", recipe.Name),
		zap.String("provider", provider.Name()),
		zap.Int("concurrency", cfg.Concurrency))
	return recipe.Run(ctx, deps)
}
