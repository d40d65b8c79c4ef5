package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/hotspots/internal/analyzer"
	"github.com/getsentry/hotspots/internal/config"
	"github.com/getsentry/hotspots/internal/logutil"
	"github.com/getsentry/hotspots/internal/render"
)

const (
	exitNoFindings = 0
	exitFailure    = 1
	exitFindings   = 2
)

// errFindings ends a successful run that found something to report.
var errFindings = errors.New("findings present")

var (
	release string

	configPath string
	format     string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:               "hotspots",
	Short:             "Find what a compiler spent its time on",
	Long:              `Analyze the traces written by tsc --generateTrace and report hot spots, duplicate packages and unterminated events`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "configuration file (yaml, toml or json)")
	flags.StringVar(&format, "format", "text", "output format (text|json)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("log-level", "info", "log level")
	flags.Int("skip-millis", 100, "drop events shorter than this while reading traces")
	flags.Int("force-millis", 500, "always report events at least this long")
	flags.Float64("min-percentage", 0.6, "report shorter events taking at least this fraction of their parent")
	flags.Int("import-threshold", 10, "suggest a static import from this many dynamic imports of a module")
	flags.Bool("expand-types", true, "expand referenced types in type trees")
	flags.Int("workers", 0, "max projects analyzed at once (0=auto)")
}

// setup loads the configuration, lets explicitly set flags override it and
// configures logging and error reporting.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	overrides := []struct {
		name  string
		apply func() error
	}{
		{"color", func() (err error) { cfg.Color, err = flags.GetString("color"); return }},
		{"log-level", func() (err error) { cfg.LogLevel, err = flags.GetString("log-level"); return }},
		{"skip-millis", func() (err error) { cfg.SkipMillis, err = flags.GetInt("skip-millis"); return }},
		{"force-millis", func() (err error) { cfg.ForceMillis, err = flags.GetInt("force-millis"); return }},
		{"min-percentage", func() (err error) { cfg.MinPercentage, err = flags.GetFloat64("min-percentage"); return }},
		{"import-threshold", func() (err error) { cfg.ImportExpressionThreshold, err = flags.GetInt("import-threshold"); return }},
		{"expand-types", func() (err error) { cfg.ExpandTypes, err = flags.GetBool("expand-types"); return }},
		{"workers", func() (err error) { cfg.Workers, err = flags.GetInt("workers"); return }},
	}
	for _, o := range overrides {
		if !flags.Changed(o.name) {
			continue
		}
		if err := o.apply(); err != nil {
			return fmt.Errorf("failed to get %s flag: %w", o.name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	logutil.ConfigureLogger(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			Environment:      cfg.Environment,
			Release:          release,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			return fmt.Errorf("can't initialize sentry: %w", err)
		}
	}
	return nil
}

func analyzerOptions() analyzer.Options {
	return analyzer.OptionsFromConfig(cfg)
}

func useColor() bool {
	return render.UseColor(cfg.Color, os.Stdout)
}

func main() {
	rootCmd.Version = release
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(analyzeDirCmd)
	rootCmd.AddCommand(printTypesCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	sentry.Flush(5 * time.Second)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitNoFindings
	case errors.Is(err, errFindings):
		return exitFindings
	default:
		log.Error().Err(err).Msg("hotspots failed")
		return exitFailure
	}
}
