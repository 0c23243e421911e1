package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gubarz/cachebust/internal/config"
	"github.com/gubarz/cachebust/internal/hook"
	"github.com/gubarz/cachebust/internal/icons"
	"github.com/gubarz/cachebust/internal/inject"
	"github.com/gubarz/cachebust/internal/report"
	"github.com/gubarz/cachebust/internal/rewrite"
	"github.com/gubarz/cachebust/internal/watch"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "0.1.0"

var (
	cfgFile string
	logger  *zap.Logger
	styles  = report.DefaultStyles()
)

var rootCmd = &cobra.Command{
	Use:   "cachebust [root]",
	Short: "Add cache-busting headers to API mutation responses",
	Long: `Scans JavaScript API handlers and inserts Cache-Control, Pragma and
Expires headers before every mutation response:

  return res.status(201).json(...)   always
  return res.status(200).json(...)   inside a PUT, POST, DELETE or PATCH branch

Files that already carry the headers are left alone, so running it again
changes nothing.`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInject,
}

var iconsCmd = &cobra.Command{
	Use:   "icons [source]",
	Short: "Generate 192x192 and 512x512 PWA icons from a source image",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIcons,
}

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Add headers to handler files as they change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(iconsCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: cachebust.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Report changes without writing files")
	iconsCmd.Flags().StringP("out", "o", "", "Output directory for icons")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))
	viper.BindPFlag("icon_dir", iconsCmd.Flags().Lookup("out"))
}

// setup loads config and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	if err := config.Init(cfgFile); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	styles.LoadFromConfig()

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if config.GetVerbose() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func newRewriter(p *report.Printer) (*rewrite.Rewriter, error) {
	rules := inject.DefaultRules()
	rules.GuardWindow = config.GetGuardWindow()
	rules.MutationWindow = config.GetMutationWindow()
	engine, err := inject.NewEngine(rules)
	if err != nil {
		return nil, err
	}

	return rewrite.New(afero.NewOsFs(), engine, rewrite.Options{
		Extension: config.GetExtension(),
		Exclude:   config.GetExclude(),
		DryRun:    config.GetDryRun(),
		OnFile:    p.File,
	}, logger), nil
}

func rootArg(args []string) string {
	if len(args) > 0 {
		config.SetRoot(args[0])
	}
	return config.GetRoot()
}

func runInject(cmd *cobra.Command, args []string) error {
	root := rootArg(args)
	p := report.NewPrinter(cmd.OutOrStdout(), styles, config.GetDryRun())

	rw, err := newRewriter(p)
	if err != nil {
		return err
	}

	summary, err := rw.Run(root)
	if err != nil {
		if summary != nil {
			// Files already rewritten stay rewritten; show how far the run got.
			p.Summary(summary)
		}
		return err
	}
	p.Summary(summary)

	if config.GetDryRun() {
		return nil
	}
	out, err := hook.New(config.GetPostHook(), config.GetShell(), logger).Run(summary.ModifiedPaths())
	if out != "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
	}
	return err
}

func runIcons(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		config.SetIconSource(args[0])
	}
	p := report.NewPrinter(cmd.OutOrStdout(), styles, false)

	generated, err := icons.NewGenerator(afero.NewOsFs()).Generate(
		config.GetIconSource(), config.GetIconDir(), config.GetIconSizes())
	if err != nil {
		return err
	}
	for _, icon := range generated {
		logger.Debug("Generated icon", zap.Int("size", icon.Size), zap.String("path", icon.Path))
		p.Icon(icon)
	}
	p.IconsDone()
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := rootArg(args)
	p := report.NewPrinter(cmd.OutOrStdout(), styles, config.GetDryRun())

	rw, err := newRewriter(p)
	if err != nil {
		return err
	}
	w, err := watch.New(rw, config.GetWatchDebounce(), logger)
	if err != nil {
		return err
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s. Press Ctrl+C to stop\n", root)
	return w.Run(ctx)
}

func main() {
	rootCmd.Version = version
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		report.NewPrinter(os.Stderr, styles, false).Error(err)
		os.Exit(1)
	}
}
