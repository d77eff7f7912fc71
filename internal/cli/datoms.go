package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/entity"
	"github.com/roach88/datoms/internal/querysql"
)

// DatomsOptions holds flags for the datoms command.
type DatomsOptions struct {
	*RootOptions
	AsOf  int64 // -1 means the current database
	Limit int   // 0 means no limit
}

// NewDatomsCommand creates the datoms command.
func NewDatomsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DatomsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "datoms <eavt|aevt|avet|vaet> [components...]",
		Short: "Scan an index of current datoms",
		Long: `Scan the datoms of the database in index order. Components constrain
the leading index columns positionally. Integers are read as numbers,
true and false as booleans, and :ns/name as keywords (idents in entity
or attribute position). Anything else is a string.

Examples:
  datoms datoms eavt --db people.db
  datoms datoms aevt :person/name --db people.db
  datoms datoms avet :person/email joe@example.com --db people.db
  datoms datoms eavt 8796093022209 --as-of 2 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatoms(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.AsOf, "as-of", -1, "scan the database as of this transaction")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many datoms")

	return cmd
}

func runDatoms(opts *DatomsOptions, indexArg string, compArgs []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	index, err := querysql.ParseIndex(indexArg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	components := make([]any, len(compArgs))
	for i, arg := range compArgs {
		components[i] = parseComponent(arg)
	}

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	db := st.Db()
	if opts.AsOf >= 0 {
		if db, err = st.AsOf(opts.AsOf); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}

	datoms, err := st.Datoms(cmd.Context(), db, index, components...)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeQuery, err.Error(), nil)
	}
	if opts.Limit > 0 && len(datoms) > opts.Limit {
		datoms = datoms[:opts.Limit]
	}
	facts := entity.Facts(st, datoms)

	if formatter.Format == "json" {
		if facts == nil {
			facts = []entity.Fact{}
		}
		return formatter.SuccessAt(facts, db.BasisT)
	}
	for _, f := range facts {
		fmt.Fprintln(formatter.Writer, f)
	}
	formatter.VerboseLog("%d datom(s) in %s of %s", len(facts), index, db)
	return nil
}

// parseComponent reads an index component typed on the command line.
func parseComponent(arg string) any {
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n
	}
	switch arg {
	case "true":
		return true
	case "false":
		return false
	}
	return arg
}
