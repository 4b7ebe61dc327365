// Package commands implements CLI command handlers for prunefang.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/prunefang/internal/config"
	"github.com/Sumatoshi-tech/prunefang/internal/engine"
	"github.com/Sumatoshi-tech/prunefang/internal/journal"
	"github.com/Sumatoshi-tech/prunefang/internal/observability"
	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
	"github.com/Sumatoshi-tech/prunefang/internal/parse"
	"github.com/Sumatoshi-tech/prunefang/internal/report"
	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// outputSuffix is appended to the input path when --output is not given.
const outputSuffix = ".reduced"

// outputFilePerm is the permission for the reduced output file.
const outputFilePerm = 0o644

// metricsReadHeaderTimeout bounds header reads on the metrics listener.
const metricsReadHeaderTimeout = 5 * time.Second

// Sentinel errors for the reduce command.
var (
	// ErrMissingTestCommand indicates no test command after the -- separator.
	ErrMissingTestCommand = errors.New(
		"no test command given. Usage: prunefang reduce <file> -- <test-command...>",
	)

	// ErrInputNotInteresting indicates the unreduced input already fails the
	// interestingness test; reduction has nothing to preserve.
	ErrInputNotInteresting = errors.New("initial input is not interesting; nothing to reduce")
)

// ReduceCommand holds configuration and dependencies for the reduce command.
type ReduceCommand struct {
	configPath  string
	output      string
	language    string
	profilePath string
	journalDir  string
	metricsAddr string
	plotPath    string
	jobs        int
	cacheSize   int
	noCache     bool
	showDiff    bool
}

// NewReduceCommand creates the reduce command.
func NewReduceCommand() *cobra.Command {
	rc := &ReduceCommand{}

	cmd := &cobra.Command{
		Use:   "reduce <file> -- <test-command...>",
		Short: "Reduce an input file against an interestingness test command",
		Long: `Reduce parses the input file, then repeatedly deletes optional nodes,
shrinks lists, and hoists subtrees, keeping every change the test command
still accepts (exit status 0 = still interesting). A {} in the test
command is replaced by a candidate file path; otherwise candidates are
piped to stdin.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if cmd.ArgsLenAtDash() != 1 {
				return ErrMissingTestCommand
			}

			if len(args) < 2 {
				return ErrMissingTestCommand
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.run(cmd, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&rc.configPath, "config", "", "config file path")
	cmd.Flags().StringVarP(&rc.output, "output", "o", "", "output path (default <file>.reduced)")
	cmd.Flags().StringVarP(&rc.language, "language", "l", "", "input language (default: detected)")
	cmd.Flags().StringVar(&rc.profilePath, "profile", "", "reduction profile JSON overriding the bundled one")
	cmd.Flags().StringVar(&rc.journalDir, "journal-dir", "", "persist every committed snapshot to this directory")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&rc.plotPath, "plot", "", "write a size-over-time HTML chart to this path")
	cmd.Flags().IntVarP(&rc.jobs, "jobs", "j", 0, "worker count (default: config, then NumCPU)")
	cmd.Flags().IntVar(&rc.cacheSize, "cache-size", 0, "verdict cache entry bound")
	cmd.Flags().BoolVar(&rc.noCache, "no-cache", false, "disable the oracle verdict cache")
	cmd.Flags().BoolVar(&rc.showDiff, "diff", false, "print a diff between original and reduced input")

	return cmd
}

// run executes the reduction end to end.
func (rc *ReduceCommand) run(cmd *cobra.Command, inputPath string, testArgv []string) error {
	ctx := cmd.Context()

	cfg, err := rc.resolveConfig(cmd)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	tree, lang, err := rc.parseInput(ctx, cfg, inputPath, source)
	if err != nil {
		return err
	}

	orc, cached, err := rc.buildOracle(cfg, testArgv)
	if err != nil {
		return err
	}

	// Precondition: the unreduced input must itself be interesting.
	interesting, err := orc.Test(ctx, source)
	if err != nil {
		return fmt.Errorf("initial interestingness check: %w", err)
	}

	if !interesting {
		return ErrInputNotInteresting
	}

	metrics, err := rc.startMetrics(cfg)
	if err != nil {
		return err
	}

	jnl, err := journal.New(cfg.JournalDir, slog.Default())
	if err != nil {
		return err
	}

	final, stats, err := engine.Reduce(ctx, tree, orc, engine.Options{
		Jobs:       cfg.Jobs,
		BackoffMin: cfg.BackoffMin,
		BackoffMax: cfg.BackoffMax,
		Metrics:    metrics,
		OnCommit:   jnl.RecordCommit,
	})
	if err != nil {
		return err
	}

	closeErr := jnl.Close()
	if closeErr != nil {
		slog.Default().Warn("failed to close journal", "error", closeErr)
	}

	return rc.writeResults(inputPath, source, final, lang, stats, cached, jnl)
}

// resolveConfig loads the config file and overlays explicitly set flags.
func (rc *ReduceCommand) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("jobs") {
		cfg.Jobs = rc.jobs
	}

	if flags.Changed("cache-size") {
		cfg.CacheSize = rc.cacheSize
	}

	if flags.Changed("no-cache") {
		cfg.NoCache = rc.noCache
	}

	if flags.Changed("journal-dir") {
		cfg.JournalDir = rc.journalDir
	}

	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = rc.metricsAddr
	}

	if flags.Changed("language") {
		cfg.Language = rc.language
	}

	if flags.Changed("profile") {
		cfg.Profile = rc.profilePath
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return cfg, nil
}

// parseInput detects the language and parses the source into the initial
// snapshot.
func (rc *ReduceCommand) parseInput(
	ctx context.Context,
	cfg *config.Config,
	inputPath string,
	source []byte,
) (*syntree.Tree, string, error) {
	lang, err := parse.DetectLanguage(cfg.Language, inputPath, source)
	if err != nil {
		return nil, "", err
	}

	var profile *parse.Profile

	if cfg.Profile != "" {
		profile, err = parse.LoadProfileFile(cfg.Profile)
		if err != nil {
			return nil, "", err
		}
	}

	parser, err := parse.NewParser(lang, profile)
	if err != nil {
		return nil, "", err
	}

	tree, err := parser.Parse(ctx, source)
	if err != nil {
		return nil, "", err
	}

	slog.Default().Info("parsed input", "language", lang, "weight", tree.Weight())

	return tree, lang, nil
}

// buildOracle assembles the command oracle and optional verdict cache.
func (rc *ReduceCommand) buildOracle(cfg *config.Config, testArgv []string) (oracle.Oracle, *oracle.Cached, error) {
	cmdOracle, err := oracle.NewCommand(testArgv)
	if err != nil {
		return nil, nil, err
	}

	if cfg.NoCache {
		return cmdOracle, nil, nil
	}

	cached := oracle.NewCached(cmdOracle, cfg.CacheSize)

	return cached, cached, nil
}

// startMetrics brings up the Prometheus listener when configured.
func (rc *ReduceCommand) startMetrics(cfg *config.Config) (*observability.EngineMetrics, error) {
	if cfg.MetricsAddr == "" {
		return nil, nil
	}

	meter, handler, err := observability.NewPrometheusMeter()
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewEngineMetrics(meter)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Default().Warn("metrics listener stopped", "error", serveErr)
		}
	}()

	return metrics, nil
}

// writeResults persists the reduced output and renders the requested
// reports.
func (rc *ReduceCommand) writeResults(
	inputPath string,
	source []byte,
	final *syntree.Tree,
	lang string,
	stats engine.Stats,
	cached *oracle.Cached,
	jnl *journal.Journal,
) error {
	reduced := final.Render()

	outputPath := rc.output
	if outputPath == "" {
		outputPath = inputPath + outputSuffix
	}

	err := os.WriteFile(outputPath, reduced, outputFilePerm)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	slog.Default().Info("wrote reduced input", "path", outputPath, "weight", final.Weight())

	summary := report.Summary{Language: lang, Stats: stats}
	if cached != nil {
		cacheStats := cached.Stats()
		summary.Cache = &cacheStats
	}

	report.WriteSummary(os.Stdout, summary)

	if rc.showDiff {
		report.WriteDiff(os.Stdout, source, reduced)
	}

	if rc.plotPath != "" {
		plotFile, createErr := os.Create(rc.plotPath)
		if createErr != nil {
			return fmt.Errorf("create plot file: %w", createErr)
		}

		plotErr := report.WritePlot(plotFile, stats.InitialWeight, jnl.Samples())

		closeErr := plotFile.Close()
		if plotErr != nil {
			return plotErr
		}

		if closeErr != nil {
			return fmt.Errorf("close plot file: %w", closeErr)
		}
	}

	return nil
}
