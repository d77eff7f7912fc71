package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/store"
	"github.com/roach88/datoms/internal/txdata"
)

// TransactResult reports a committed transaction.
type TransactResult struct {
	T       int64             `json:"t"`
	Datoms  int               `json:"datoms"`
	Tempids map[string]ir.Eid `json:"tempids,omitempty"`
	Hash    string            `json:"hash"`
}

// NewTransactCommand creates the transact command.
func NewTransactCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transact <tx-file.yaml>",
		Short: "Apply a YAML transaction to the database",
		Long: `Apply the transaction data of a YAML file atomically.

Each list element names its item kind with a leading key: partition,
attribute, entity, add or retract.

Exit codes:
  0 - Transaction committed
  1 - Transaction rejected (unique conflict, unknown attribute, etc.)
  2 - Command error (file not found, invalid YAML, etc.)

Examples:
  datoms transact schema.yaml --db people.db
  datoms transact people.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransact(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTransact(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("reading %s: %v", path, err), nil)
	}
	items, err := txdata.ParseYAML(data)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, err.Error(), nil)
	}

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := st.Transact(cmd.Context(), items)
	if err != nil {
		var details any
		if code := store.CodeOf(err); code != "" {
			details = string(code)
		}
		return formatter.Fail(ExitFailure, ErrCodeTransact, err.Error(), details)
	}

	result := TransactResult{
		T:       report.DBAfter.BasisT,
		Datoms:  len(report.TxData),
		Tempids: report.Tempids,
		Hash:    report.Hash,
	}

	if formatter.Format == "json" {
		return formatter.SuccessAt(result, result.T)
	}

	fmt.Fprintf(formatter.Writer, "✓ Committed t=%d (%d datoms)\n", result.T, result.Datoms)
	names := make([]string, 0, len(result.Tempids))
	for name := range result.Tempids {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "  %s => %d\n", name, result.Tempids[name])
	}
	formatter.VerboseLog("tx %d hash %s", ir.TxEid(result.T), result.Hash)
	return nil
}
