package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"deckharvest/internal/components/telemetry"
	"deckharvest/internal/config"
	"deckharvest/internal/pagecache"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	debug        bool
	cacheDir     string
	cacheBackend string
	noCache      bool
)

// set up by the root command before any subcommand runs
var (
	cfg       config.Config
	tel       telemetry.API = telemetry.SlogAPI{}
	otelSetup telemetry.Otel
)

var rootCmd = &cobra.Command{
	Use:   "deckharvest",
	Short: "deckharvest harvests presentation listings from speakerdeck.",
	// errors are printed by ExecuteContext
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(debug)

		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}

		setupOtel(cmd.Context())
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file to read, by default deckharvest.json5 is searched for from the working directory upwards.")
	flags.BoolVar(&debug, "debug", false, "Log debug messages.")
	flags.StringVar(&cacheDir, "cache-dir", "", "Directory to cache fetched pages in.")
	flags.StringVar(&cacheBackend, "cache-backend", "", "Page cache backend: file, sqlite or none.")
	flags.BoolVar(&noCache, "no-cache", false, "Do not read or write the page cache.")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	var overrides config.Overrides
	flags := cmd.Flags()
	if flags.Changed("cache-dir") {
		overrides.Cache.Dir = cacheDir
	}
	if flags.Changed("cache-backend") {
		overrides.Cache.Backend = cacheBackend
	}
	if noCache {
		overrides.Cache.Backend = string(pagecache.BackendNone)
	}
	return loaded.Apply(overrides)
}

// setupOtel exports traces and metrics when a telemetry.json5 can be found,
// otherwise only slog is used.
func setupOtel(ctx context.Context) {
	setup, err := telemetry.SetupFromEnv(ctx, "deckharvest")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("telemetry.json5 not found, otel export disabled")
		return
	}
	// a partial setup still has to be shut down
	otelSetup = setup
	if err != nil {
		slog.Warn("failed to setup otel, continuing without it", "err", err)
		return
	}

	otelApi, err := telemetry.NewOtelAPI(telemetry.SlogAPI{})
	if err != nil {
		slog.Warn("failed to create otel telemetry api", "err", err)
		return
	}
	tel = otelApi
	telemetry.InstrumentPerfStats(ctx, tel)
}

// shutdownOtel flushes pending spans and metrics, it is a no-op when otel
// was never set up.
func shutdownOtel() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := otelSetup.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to shutdown telemetry", "err", err)
	}
}

// execute runs the command line in args and flushes otel afterwards, also
// when the command failed.
func execute(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	shutdownOtel()
	return err
}

func ExecuteContext(ctx context.Context) {
	err := execute(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
