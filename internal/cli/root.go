// Package cli implements the habitgrid command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/habitgrid/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app carries the state shared by one invocation of the root command.
type app struct {
	flags     rootFlags
	configDir string
	cfg       *viper.Viper
	logger    *zap.Logger
	now       func() time.Time
}

// Option adjusts the root command; tests use it to pin the clock.
type Option func(*app)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *app) { a.now = now }
}

// WithLogger supplies a logger instead of building a production one.
func WithLogger(logger *zap.Logger) Option {
	return func(a *app) { a.logger = logger }
}

// NewRootCmd creates the top-level "habitgrid" command with global flags
// and all subcommands registered.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "habitgrid",
		Short: "Track daily habits on a grid of recent days",
		Long: "habitgrid keeps a list of habits and the days each was completed,\n" +
			"and shows them as a grid over a trailing window of days.",
		Version: Version,
		// Errors are printed once by Execute with their exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "journal directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newCheckCmd(a, "check", "Mark a habit completed on a day", setChecked(true)))
	root.AddCommand(newCheckCmd(a, "uncheck", "Clear a habit's completion on a day", setChecked(false)))
	root.AddCommand(newCheckCmd(a, "toggle", "Flip a habit's completion on a day", flipChecked))
	root.AddCommand(newShowCmd(a))

	return root
}

// setup builds the logger and loads config.yaml before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	if a.logger == nil {
		config := zap.NewProductionConfig()
		if a.flags.verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := config.Build()
		if err != nil {
			return sysError(fmt.Errorf("initialize logger: %w", err))
		}
		a.logger = logger
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = configDir

	cfg, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	a.cfg = cfg

	a.logger.Debug("configuration loaded",
		zap.String("config_dir", configDir),
		zap.String("config_file", cfg.ConfigFileUsed()))
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(context.Background(), NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args, prints any error to stderr, and returns the
// process exit code.
func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(stderr, "habitgrid: %s\n", errorMessage(err))
	return exitCode(err)
}

// exitError pairs an error with the process exit code it maps to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// exitCode maps an error returned by a command to an exit code. Errors that
// carry no code come from cobra itself (bad flags or arguments).
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
