// Package cmd implements the planmd command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/steveyegge/planmd/internal/config"
	"github.com/steveyegge/planmd/internal/hooks"
	"github.com/steveyegge/planmd/internal/planner"
	"github.com/steveyegge/planmd/internal/templates"
)

// generatorFactory builds the text generator for generate/modify.
type generatorFactory func(cfg *config.Config) (planner.TextGenerator, error)

// app carries state shared by all subcommands of one root command.
type app struct {
	configPath   string
	verbose      bool
	newGenerator generatorFactory

	cfg    *config.Config
	logger *slog.Logger
	hooks  *hooks.HookRunner
}

// NewRootCmd builds the planmd command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(openAIGenerator)
}

func newRootCmd(gen generatorFactory) *cobra.Command {
	a := &app{newGenerator: gen}

	root := &cobra.Command{
		Use:   "planmd",
		Short: "Parse, format, validate and edit markdown task plans",
		Long: `planmd works with task plans written in a small markdown dialect:

  # Plan title
  Optional one-line description

  ## Step 1: Step title
  Optional one-line description

  ### Todo List
  - [ ] A todo item

Plans can be formatted, validated, edited step by step, and generated or
modified with a language model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr(), cmd.Flags().Changed("config"))
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultFileName, "Path to the TOML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newFmtCmd(a),
		newValidateCmd(),
		newShowCmd(),
		newJSONCmd(),
		newStepCmd(a),
		newGenerateCmd(a),
		newModifyCmd(a),
	)

	return root
}

// Execute runs the root command.
func Execute(version string) error {
	root := NewRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// init sets up logging and loads the config. Only an explicit --config
// must exist; the default file is optional.
func (a *app) init(stderr io.Writer, explicitConfig bool) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	load := config.LoadOrDefault
	if explicitConfig {
		load = config.Load
	}
	cfg, err := load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.hooks = hooks.NewHookRunner(filepath.Dir(a.configPath), cfg.HookMap())
	return nil
}

// planner builds a Planner from the loaded config.
func (a *app) planner() (*planner.Planner, error) {
	gen, err := a.newGenerator(a.cfg)
	if err != nil {
		return nil, err
	}

	prompts := templates.Default()
	if a.cfg.PromptsFile != "" {
		path := a.cfg.PromptsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(a.configPath), path)
		}
		prompts, err = templates.LoadPromptSet(path)
		if err != nil {
			return nil, err
		}
	}

	return planner.New(gen,
		planner.WithModel(a.cfg.GetModel()),
		planner.WithTemperature(a.cfg.GetTemperature()),
		planner.WithMaxTokens(a.cfg.GetMaxTokens()),
		planner.WithTimeout(a.cfg.GetTimeout()),
		planner.WithPrompts(prompts),
		planner.WithLogger(a.logger),
	), nil
}

// openAIGenerator connects to OpenAI or an OpenAI-compatible endpoint.
// The API key comes from OPENAI_API_KEY.
func openAIGenerator(cfg *config.Config) (planner.TextGenerator, error) {
	opts := []openai.Option{openai.WithModel(cfg.GetModel())}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return planner.NewLLMGenerator(llm), nil
}
