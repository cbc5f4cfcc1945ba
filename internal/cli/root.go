package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/config"
	"github.com/roach88/slotbind/internal/engine"
	"github.com/roach88/slotbind/internal/store"
)

// RootOptions holds global flags for all commands. Defaults come from
// SLOTBIND_* environment variables; flags override them.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	DB          string // journal path
	LogLevel    string
	MaxSteps    int
	MetricsFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the slotbind CLI.
func NewRootCommand() *cobra.Command {
	cfg, cfgErr := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "slotbind",
		Short: "slotbind - policy-bound slots with reactions",
		Long: `Declare hosts of named slots in CUE, bind a policy to each slot
(observe, veto, validate, transform, present), and react to writes.
Every write is journaled to SQLite and can be traced and replayed.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.MaxSteps < 1 {
				return NewExitError(ExitCommandError, fmt.Sprintf("--max-steps must be at least 1, got %d", opts.MaxSteps))
			}
			if _, err := (config.Config{LogLevel: opts.LogLevel}).Level(); err != nil {
				return WrapExitError(ExitCommandError, "invalid --log-level", err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", cfg.Format, "output format (json|text) [SLOTBIND_FORMAT]")
	flags.StringVar(&opts.DB, "db", cfg.DB, "path to the SQLite journal [SLOTBIND_DB]")
	flags.StringVar(&opts.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error) [SLOTBIND_LOG_LEVEL]")
	flags.IntVar(&opts.MaxSteps, "max-steps", cfg.MaxSteps, "max changes per flow [SLOTBIND_MAX_STEPS]")
	flags.StringVar(&opts.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this file on exit [SLOTBIND_METRICS_FILE]")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// dbPath returns the journal path, defaulting like SLOTBIND_DB.
func (o *RootOptions) dbPath() string {
	if o.DB == "" {
		return "slotbind.db"
	}
	return o.DB
}

// logger writes engine logs to w. Verbose lowers the level to debug.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level, err := (config.Config{LogLevel: o.LogLevel}).Level()
	if err != nil || o.LogLevel == "" {
		level = slog.LevelWarn
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	return config.NewLogger(w, o.Format, level)
}

// engineOptions wires an engine to the journal, a recorder and the
// configured logger and quota.
func (o *RootOptions) engineOptions(logOut io.Writer, st *store.Store, rec engine.Recorder) []engine.Option {
	opts := []engine.Option{
		engine.WithJournal(st),
		engine.WithLogger(o.logger(logOut)),
	}
	if rec != nil {
		opts = append(opts, engine.WithRecorder(rec))
	}
	if o.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(o.MaxSteps))
	}
	return opts
}

// openStore opens the journal for read-only commands.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.dbPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
