package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/entity"
	"github.com/roach88/datoms/internal/ir"
)

// EntityOptions holds flags for the entity command.
type EntityOptions struct {
	*RootOptions
	AsOf int64 // -1 means the current database
}

// NewEntityCommand creates the entity command.
func NewEntityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "entity <eid|ident>",
		Short: "Show every attribute of an entity",
		Long: `Show every current attribute of an entity, named by entity id or by
keyword ident. Refs to entities with an ident are shown as that ident.

Examples:
  datoms entity 8796093022209 --db people.db
  datoms entity :person/name --db people.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntity(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.AsOf, "as-of", -1, "read the entity as of this transaction")

	return cmd
}

func runEntity(opts *EntityOptions, ref string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

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

	ctx := cmd.Context()
	eid, err := entity.Resolve(ctx, st, db, ref)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	obj, err := entity.Touch(ctx, st, db, eid)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeQuery, err.Error(), nil)
	}

	if formatter.Format == "json" {
		data, err := ir.MarshalCanonical(obj)
		if err != nil {
			return err
		}
		return formatter.SuccessAt(json.RawMessage(data), db.BasisT)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(formatter.Writer, "%-24s %s\n", k, ir.Format(obj[k]))
	}
	return nil
}
