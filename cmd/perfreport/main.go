package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/internal/logging"
	"github.com/ogulcanaydogan/perfreport/internal/parse"
	"github.com/ogulcanaydogan/perfreport/internal/pipeline"
	"github.com/ogulcanaydogan/perfreport/internal/policy"
	"github.com/ogulcanaydogan/perfreport/internal/report"
	"github.com/ogulcanaydogan/perfreport/internal/server"
	"github.com/ogulcanaydogan/perfreport/internal/store"
	"github.com/ogulcanaydogan/perfreport/internal/watch"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

const (
	exitError          = 1
	exitMissingInput   = 10
	exitHealthGate     = 13
	exitMalformedInput = 14
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "perfreport",
		Short:         "Turn load-test results into a health assessment and report",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInitCommand())
	root.AddCommand(newGenerateCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newSummaryCommand())
	root.AddCommand(newGateCommand())
	root.AddCommand(newPushCommand())
	root.AddCommand(newWatchCommand())
	root.AddCommand(newServeCommand())
	return root
}

// commonOptions are the flags every report-reading command shares.
type commonOptions struct {
	configPath  string
	envFile     string
	logLevel    string
	logFormat   string
	inPath      string
	inputFormat string
	schemaPath  string
}

func (o *commonOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.configPath, "config", config.DefaultFile, "defaults file (ignored when absent)")
	cmd.Flags().StringVar(&o.envFile, "env-file", ".env", "dotenv file with PERFREPORT_* overrides")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&o.logFormat, "log-format", logging.FormatConsole, "log format (json|console)")
	cmd.Flags().StringVar(&o.inPath, "in", "report.json", "load-test results input")
	cmd.Flags().StringVar(&o.inputFormat, "input-format", string(pipeline.InputArtillery), "input format (artillery|vegeta)")
	cmd.Flags().StringVar(&o.schemaPath, "schema", "", "JSON schema overriding the embedded report schema")
}

func (o *commonOptions) defaults() (config.Defaults, error) {
	d, err := config.LoadOptional(o.configPath)
	if err != nil {
		return config.Defaults{}, err
	}
	return config.ApplyEnv(d, o.envFile)
}

// setup resolves configuration and returns a ready pipeline and logger.
func (o *commonOptions) setup() (*pipeline.Pipeline, *zap.Logger, error) {
	logger, err := logging.New(o.logLevel, o.logFormat)
	if err != nil {
		return nil, nil, err
	}
	d, err := o.defaults()
	if err != nil {
		return nil, nil, err
	}
	input, err := pipeline.ParseInputFormat(o.inputFormat)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(d, logger, pipeline.Options{InputFormat: input, SchemaPath: o.schemaPath}), logger, nil
}

// inputError maps input failures to their exit codes.
func inputError(err error) error {
	switch {
	case errors.Is(err, parse.ErrMissingInput):
		return cliError{code: exitMissingInput, err: err}
	case errors.Is(err, parse.ErrMalformedInput):
		return cliError{code: exitMalformedInput, err: err}
	default:
		return err
	}
}

func newInitCommand() *cobra.Command {
	var path string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a defaults file with the built-in thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fileExists(path) && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
				return nil
			}
			raw, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			if err := store.WriteArtifact(path, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", config.DefaultFile, "defaults file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newGenerateCommand() *cobra.Command {
	var opts commonOptions
	var format, outPath, failOn, policyPath string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report from load-test results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			gate, err := parseFailOn(failOn)
			if err != nil {
				return err
			}
			var pol *policy.Policy
			if policyPath != "" {
				loaded, err := policy.LoadPolicy(policyPath)
				if err != nil {
					return err
				}
				pol = &loaded
			}
			p, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			doc, err := p.Run(opts.inPath)
			if err != nil {
				return inputError(err)
			}
			if outPath == "" {
				outPath = defaultOutPath(f)
			}
			if err := writeDocument(cmd, doc, f, outPath); err != nil {
				return err
			}
			logger.Info("report generated",
				zap.String("in", opts.inPath),
				zap.String("out", outPath),
				zap.String("tier", string(doc.Verdict.Tier)),
			)
			if pipeline.Gate(doc, gate) {
				return cliError{code: exitHealthGate, err: fmt.Errorf("health gate failed: run is %s (fail-on %s)", doc.Verdict.Tier, gate)}
			}
			if pol != nil {
				return enforce(cmd, *pol, doc)
			}
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(report.FormatHTML), "output format (json|md|html|text|prom)")
	cmd.Flags().StringVar(&outPath, "out", "", "output path, - for stdout (default report.<ext>)")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit 13 when the tier is at least this severe (degraded|critical)")
	cmd.Flags().StringVar(&policyPath, "policy", "", "gate policy YAML evaluated after the report is written")
	return cmd
}

// enforce prints every policy violation and fails with the gate exit code.
func enforce(cmd *cobra.Command, pol policy.Policy, doc types.Document) error {
	violations := policy.Evaluate(pol, doc)
	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return cliError{code: exitHealthGate, err: fmt.Errorf("policy gate failed: %d violation(s)", len(violations))}
}

func newGateCommand() *cobra.Command {
	var opts commonOptions
	var policyPath string
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate a gate policy and return non-zero on violations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if policyPath == "" {
				return fmt.Errorf("--policy is required")
			}
			pol, err := policy.LoadPolicy(policyPath)
			if err != nil {
				return err
			}
			p, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			doc, err := p.Run(opts.inPath)
			if err != nil {
				return inputError(err)
			}
			if err := enforce(cmd, pol, doc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "policy gate passed")
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&policyPath, "policy", "", "gate policy YAML path")
	return cmd
}

func writeDocument(cmd *cobra.Command, doc types.Document, f report.Format, outPath string) error {
	if f == report.FormatProm && outPath != "-" {
		if err := report.WritePrometheus(outPath, doc); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), outPath)
		return nil
	}
	raw, err := report.Render(doc, f)
	if err != nil {
		return err
	}
	if outPath == "-" {
		_, err := cmd.OutOrStdout().Write(raw)
		return err
	}
	if err := store.WriteArtifact(outPath, raw); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), outPath)
	return nil
}

func defaultOutPath(f report.Format) string {
	ext := string(f)
	if f == report.FormatText {
		ext = "txt"
	}
	return "report." + ext
}

func parseFailOn(s string) (types.Tier, error) {
	if s == "" {
		return "", nil
	}
	t, ok := types.ParseTier(s)
	if !ok {
		return "", fmt.Errorf("unsupported --fail-on %q (want excellent|degraded|critical)", s)
	}
	return t, nil
}

func newValidateCommand() *cobra.Command {
	var opts commonOptions
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that load-test results can be parsed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			raw, err := p.Load(opts.inPath)
			if err != nil {
				var me *parse.MalformedInputError
				if errors.As(err, &me) {
					for _, v := range me.Violations {
						fmt.Fprintln(cmd.OutOrStdout(), v)
					}
				}
				return inputError(err)
			}
			doc := p.Generate(raw)
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %.0f requests, %d endpoints, %d intervals, %d warnings\n",
				doc.Headline.TotalRequests, len(doc.Endpoints), doc.Run.IntervalCount, len(doc.Warnings))
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func newSummaryCommand() *cobra.Command {
	var opts commonOptions
	var width int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a terminal summary of load-test results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			doc, err := p.Run(opts.inPath)
			if err != nil {
				return inputError(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.BuildText(doc, width))
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&width, "width", report.DefaultTextWidth, "plot width in columns")
	return cmd
}

func newPushCommand() *cobra.Command {
	var opts commonOptions
	var gateway, job string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push report metrics to a Prometheus Pushgateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if gateway == "" {
				gateway = os.Getenv("PERFREPORT_PUSHGATEWAY_URL")
			}
			if gateway == "" {
				return fmt.Errorf("--gateway is required")
			}
			p, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			doc, err := p.Run(opts.inPath)
			if err != nil {
				return inputError(err)
			}
			if err := store.PushMetrics(cmd.Context(), gateway, job, report.Registry(doc)); err != nil {
				return err
			}
			logger.Info("metrics pushed", zap.String("gateway", gateway), zap.String("job", job))
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s to %s\n", job, gateway)
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&gateway, "gateway", "", "Pushgateway URL (or PERFREPORT_PUSHGATEWAY_URL)")
	cmd.Flags().StringVar(&job, "job", "perfreport", "Pushgateway job name")
	return cmd
}

func newWatchCommand() *cobra.Command {
	var opts commonOptions
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the report whenever the results file changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			p, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if outPath == "" {
				outPath = defaultOutPath(f)
			}

			regenerate := func(path string) error {
				doc, err := p.Run(path)
				if err != nil {
					return err
				}
				return writeDocument(cmd, doc, f, outPath)
			}
			if err := regenerate(opts.inPath); err != nil {
				logger.Warn("initial generation failed", zap.Error(err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch.New(opts.inPath, watch.DefaultDebounce, regenerate, logger).Run(ctx)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(report.FormatHTML), "output format (json|md|html|text|prom)")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (default report.<ext>)")
	return cmd
}

func newServeCommand() *cobra.Command {
	var opts commonOptions
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve report generation over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			d, err := opts.defaults()
			if err != nil {
				return err
			}
			cfg := server.DefaultConfig()
			cfg.Addr = addr
			cfg.Defaults = d
			cfg.SchemaPath = opts.schemaPath

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(cfg, logger).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", config.DefaultFile, "defaults file (ignored when absent)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with PERFREPORT_* overrides")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", logging.FormatJSON, "log format (json|console)")
	cmd.Flags().StringVar(&opts.schemaPath, "schema", "", "JSON schema overriding the embedded report schema")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
