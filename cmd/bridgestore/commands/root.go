package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/DrSkyle/bridgestore/pkg/config"
	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/DrSkyle/bridgestore/pkg/logging"
	"github.com/DrSkyle/bridgestore/pkg/storage"
	"github.com/DrSkyle/bridgestore/pkg/telemetry"
	"github.com/DrSkyle/bridgestore/pkg/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	envFile          string
	backends         string
	verbose          bool
	jsonLogs         bool
	compressionLevel int

	cfg      config.Config
	logger   *slog.Logger
	driver   datastore.Driver
	store    *datastore.Store
	shutdown func(context.Context) error
}

// Option customizes the root command, mainly for tests.
type Option func(*app)

// WithDriver makes every command use d instead of selecting a backend.
func WithDriver(d datastore.Driver) Option {
	return func(a *app) { a.driver = d }
}

func Execute() {
	a := &app{}
	err := a.command().Execute()
	// PersistentPostRunE is skipped when a command fails.
	err = errors.Join(err, a.close(context.Background()))
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// NewRootCmd builds the bridgestore command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}
	return a.command()
}

func (a *app) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bridgestore",
		Short: "Backend-agnostic object storage for Bridge",
		Long: `bridgestore - Bridge data store driver

Store, fetch and list named objects on whichever backend is configured.`,
		Version:           version.Current,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Dotenv file read beneath the environment")
	flags.StringVar(&a.backends, "backend", "", "Comma-separated backend order (s3,dynamodb,sqlite,local,memory)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging, including every AWS API call")
	flags.BoolVar(&a.jsonLogs, "json-logs", false, "Emit logs as JSON")
	flags.IntVar(&a.compressionLevel, "compression-level", 0, "zstd level for compressed uploads (1-22)")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})

	rootCmd.AddCommand(
		newLsCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newBackendsCmd(a),
		newCompletionCmd(rootCmd),
	)
	return rootCmd
}

// setup loads configuration and the logger. Backend selection is deferred
// to open so that commands like backends can inspect candidates first.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}

	if a.backends != "" {
		cfg.Backends = config.SplitList(a.backends)
	}
	if a.verbose {
		cfg.Verbose = true
		cfg.Log.Level = "debug"
	}
	if a.jsonLogs {
		cfg.Log.JSON = true
	}
	if cmd.Flags().Changed("compression-level") {
		cfg.CompressionLevel = a.compressionLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.JSON)

	shutdown, err := telemetry.Init(cmd.Context(), version.AppName, version.Current, cfg.Telemetry.Endpoint)
	if err != nil {
		a.logger.Warn("Telemetry disabled", "error", err)
	} else {
		a.shutdown = shutdown
	}
	return nil
}

// open returns the driver, selecting a backend on first use.
func (a *app) open(ctx context.Context) (datastore.Driver, error) {
	if a.driver != nil {
		return a.driver, nil
	}

	store, err := storage.Open(ctx, a.cfg, a.logger)
	if err != nil {
		if errors.Is(err, storage.ErrNoBackend) {
			return nil, fmt.Errorf("no storage backend is configured; set %s, %s, %s and %s or another backend's variables: %w",
				config.EnvVar("aws.access_key_id"), config.EnvVar("aws.secret_access_key"),
				config.EnvVar("aws.region"), config.EnvVar("aws.bucket"), err)
		}
		return nil, err
	}

	a.store = store
	a.driver = datastore.Instrument(store)
	return a.driver, nil
}

// close releases the selected backend and flushes telemetry. It is safe to
// call more than once.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	return errors.Join(errs...)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF99")).
			MarginBottom(1)

	flagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF99"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))
)

func renderHelp(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("BRIDGESTORE %s", version.Current)))
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else {
		fmt.Fprintln(w, cmd.Short)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	if cmd.Example != "" {
		fmt.Fprintln(w, titleStyle.Render("EXAMPLES"))
		fmt.Fprintln(w, cmd.Example)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	visit := func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		line := fmt.Sprintf("  --%-18s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			line += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(line))
	}
	cmd.LocalFlags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)
	fmt.Fprintln(w)
}
