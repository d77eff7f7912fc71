package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/entity"
	"github.com/roach88/datoms/internal/store"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	System bool
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "List installed attributes",
		Long: `List the installed attributes in entity id order with their value
type, cardinality and uniqueness. Bootstrap attributes such as :db/ident
are hidden unless --system is given.

Examples:
  datoms schema --db people.db
  datoms schema --db people.db --system --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.System, "system", false, "include bootstrap attributes")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	attrs := entity.Schema(st, opts.System)
	if formatter.Format == "json" {
		if attrs == nil {
			attrs = []entity.AttrInfo{}
		}
		return formatter.SuccessAt(attrs, st.Db().BasisT)
	}
	if len(attrs) == 0 {
		fmt.Fprintln(formatter.Writer, "No attributes installed.")
		return nil
	}
	for _, a := range attrs {
		fmt.Fprintf(formatter.Writer, "%-24s %-18s %-22s %s\n", a.Ident, a.ValueType, a.Cardinality, a.Unique)
		if a.Doc != "" && opts.Verbose {
			fmt.Fprintf(formatter.Writer, "  %s\n", a.Doc)
		}
	}
	return nil
}

// NewPartitionsCommand creates the partitions command.
func NewPartitionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partitions",
		Short: "List partitions and their next entity sequence",
		Args:  cobra.NoArgs,
		Example: `  datoms partitions --db people.db
  datoms partitions --db people.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitions(rootOpts, cmd)
		},
	}
	return cmd
}

func runPartitions(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	parts, err := st.Partitions(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read partitions", err)
	}
	if formatter.Format == "json" {
		if parts == nil {
			parts = []store.Partition{}
		}
		return formatter.SuccessAt(parts, st.Db().BasisT)
	}
	for _, p := range parts {
		fmt.Fprintf(formatter.Writer, "%-3d %-22s next=%d\n", p.Index, p.Ident, p.NextSeq)
	}
	return nil
}
