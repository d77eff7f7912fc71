package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/entity"
	"github.com/roach88/datoms/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Attr string // optional - filter to one attribute
}

// TraceResult holds everything one transaction wrote.
type TraceResult struct {
	T      int64         `json:"t"`
	Tx     ir.Eid        `json:"tx"`
	Hash   string        `json:"hash"`
	Datoms []entity.Fact `json:"datoms"`
	Stats  TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Asserted  int `json:"asserted"`
	Retracted int `json:"retracted"`
	Entities  int `json:"entities"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <t>",
		Short: "Show the datoms one transaction wrote",
		Long: `Show every datom transaction t asserted or retracted, in write order,
with attribute ids rendered as idents.

The output includes:
- Datoms: [e a v tx op] with op + for assertions and - for retractions
- Stats: assertion and retraction counts and the entities touched

Examples:
  datoms trace 2 --db people.db
  datoms trace 2 --db people.db --attr :person/age
  datoms trace 0 --db people.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Attr, "attr", "", "show only datoms of this attribute")

	return cmd
}

func runTrace(opts *TraceOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	t, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || t < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid transaction %q: want a t such as 3", arg), nil)
	}

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	txs, err := st.Log(ctx, t, t)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}
	if len(txs) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no transaction t=%d (basis is %d)", t, st.Db().BasisT), nil)
	}

	datoms, err := st.TxDatoms(ctx, t)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transaction", err)
	}

	result := TraceResult{T: t, Tx: ir.TxEid(t), Hash: txs[0].Hash, Datoms: []entity.Fact{}}
	touched := make(map[ir.Eid]bool)
	for _, f := range entity.Facts(st, datoms) {
		if opts.Attr != "" && f.A != opts.Attr {
			continue
		}
		result.Datoms = append(result.Datoms, f)
		touched[f.E] = true
		if f.Added {
			result.Stats.Asserted++
		} else {
			result.Stats.Retracted++
		}
	}
	result.Stats.Entities = len(touched)

	if formatter.Format == "json" {
		return formatter.SuccessAt(result, st.Db().BasisT)
	}
	outputTraceText(formatter.Writer, result)
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Transaction t=%d (tx %d)\n", result.T, result.Tx)
	fmt.Fprintf(w, "Hash: %s\n", result.Hash)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Datoms ===")
	if len(result.Datoms) == 0 {
		fmt.Fprintln(w, "  (no datoms)")
	}
	for _, f := range result.Datoms {
		fmt.Fprintf(w, "  %s\n", f)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Asserted:  %d\n", result.Stats.Asserted)
	fmt.Fprintf(w, "  Retracted: %d\n", result.Stats.Retracted)
	fmt.Fprintf(w, "  Entities:  %d\n", result.Stats.Entities)
}
