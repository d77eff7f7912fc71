package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/store"
	"github.com/roach88/datoms/internal/txdata"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	From int64
	To   int64 // -1 means the current basis
}

// LogEntry is one committed transaction as shown by the log command.
type LogEntry struct {
	T       int64  `json:"t"`
	Instant string `json:"instant"`
	Hash    string `json:"hash"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List committed transactions",
		Long: `List committed transactions oldest first, with their instant and
content hash. Transaction 0 is the bootstrap transaction.

Examples:
  datoms log --db people.db
  datoms log --db people.db --from 2 --to 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.From, "from", 0, "first transaction to list")
	cmd.Flags().Int64Var(&opts.To, "to", -1, "last transaction to list (default: current basis)")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	basis := st.Db().BasisT
	to := opts.To
	if to < 0 {
		to = basis
	}
	txs, err := st.Log(cmd.Context(), opts.From, to)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	entries := make([]LogEntry, len(txs))
	for i, tx := range txs {
		entries[i] = LogEntry{
			T:       tx.T,
			Instant: time.UnixMilli(tx.Instant).UTC().Format(txdata.InstantLayout),
			Hash:    tx.Hash,
		}
	}

	if formatter.Format == "json" {
		return formatter.SuccessAt(entries, basis)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No transactions in range.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%6d  %s  %s\n", e.T, e.Instant, e.Hash)
	}
	return nil
}

// VerifyResult holds the outcome of a log verification.
type VerifyResult struct {
	Transactions int                 `json:"transactions"`
	Intact       bool                `json:"intact"`
	Mismatches   []store.LogMismatch `json:"mismatches"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the transaction log against its content hashes",
		Long: `Recompute the content hash of every committed transaction from its
datoms and compare it with the hash recorded at commit.

Exit codes:
  0 - Every transaction matches its recorded hash
  1 - At least one transaction differs
  2 - Command error (database not found, etc.)

Examples:
  datoms verify --db people.db
  datoms verify --db people.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	mismatches, err := st.VerifyLog(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to verify log", err)
	}
	basis := st.Db().BasisT
	result := VerifyResult{
		Transactions: int(basis) + 1,
		Intact:       len(mismatches) == 0,
		Mismatches:   mismatches,
	}
	if result.Mismatches == nil {
		result.Mismatches = []store.LogMismatch{}
	}

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result, BasisT: basis}
		if !result.Intact {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeTampered,
				Message: fmt.Sprintf("%d transaction(s) differ from their recorded hash", len(mismatches)),
			}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	} else {
		for _, m := range mismatches {
			fmt.Fprintf(formatter.Writer, "✗ t=%d\n  recorded: %s\n  actual:   %s\n", m.T, m.Recorded, m.Actual)
		}
		if result.Intact {
			fmt.Fprintf(formatter.Writer, "✓ %d transaction(s) verified\n", result.Transactions)
		}
	}

	if !result.Intact {
		return NewExitError(ExitFailure, "log verification failed")
	}
	return nil
}
