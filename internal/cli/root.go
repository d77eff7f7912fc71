package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/roach88/datoms/internal/config"
	"github.com/roach88/datoms/internal/logging"
	"github.com/roach88/datoms/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // explicit config file

	viper  *viper.Viper
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the datoms CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "datoms",
		Short: "datoms - Datalog queries over an EAVT fact store",
		Long: `Author Datalog queries as attribute maps, compile them to canonical
query documents and run them against a SQLite-backed fact store.

Settings come from datoms.yaml (or --config), DATOMS_* environment
variables and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			_, err := opts.Config()
			return err
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ./datoms.yaml if present)")
	flags.String("db", "", "path to SQLite database (default from config, datoms.db)")
	flags.Bool("lenient", false, "skip orphan-symbol and wildcard checks")
	flags.Bool("schemaless", false, "install unknown attributes on first use")
	_ = opts.viper.BindPFlag(config.KeyDBPath, flags.Lookup("db"))
	_ = opts.viper.BindPFlag("lenient", flags.Lookup("lenient"))
	_ = opts.viper.BindPFlag("schemaless", flags.Lookup("schemaless"))

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTransactCommand(opts))
	cmd.AddCommand(NewDatomsCommand(opts))
	cmd.AddCommand(NewEntityCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewPartitionsCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Config loads the configuration once. Commands built without the root
// command (as in tests) load it on first use.
func (o *RootOptions) Config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	if o.viper == nil {
		o.viper = config.New()
	}
	v := o.viper
	cfg, err := config.Load(v, o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if v.GetBool("lenient") {
		cfg.Strict = false
	}
	if v.GetBool("schemaless") {
		cfg.EnforceSchema = false
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.cfg = cfg
	return cfg, nil
}

// Logger returns the process logger. Logs go to stderr so JSON output on
// stdout stays parseable.
func (o *RootOptions) Logger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	if o.logger != nil {
		return o.logger, nil
	}
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	logger, err := logging.New(lc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	o.logger = logger
	return logger, nil
}

// OpenStore opens the configured database.
func (o *RootOptions) OpenStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	logger, err := o.Logger(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DBPath, cfg.StoreOptions(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
