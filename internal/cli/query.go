package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
	"github.com/roach88/datoms/internal/shape"
	"github.com/roach88/datoms/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Name  string // run only this query
	Shape string // tuples | maps | rows
	AsOf  int64  // -1 means the current database
	Jobs  int    // concurrent queries
}

// QueryResult is the shaped answer of one query.
type QueryResult struct {
	Name    string            `json:"name"`
	Shape   string            `json:"shape"`
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`

	values ir.IRArray
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query-file>",
		Short: "Compile and run queries against the database",
		Long: `Compile the queries of a file, run them against the database and shape
the results.

The $ input is bound to the database (as of --as-of when given) and % to
the rules defined in the file. Every other let binding keeps its source.

Shapes:
  tuples - distinct result tuples (default)
  maps   - distinct maps keyed by the yielded variable names
  rows   - rows exactly as the engine returns them

Exit codes:
  0 - Every query ran
  1 - A query failed to compile or was rejected by the engine
  2 - Command error (file not found, database not found, etc.)

Examples:
  datoms query queries.cue --db people.db
  datoms query queries.yaml --name adults --shape maps
  datoms query queries.cue --as-of 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "run only the named query")
	cmd.Flags().StringVar(&opts.Shape, "shape", "tuples", "result shape (tuples|maps|rows)")
	cmd.Flags().Int64Var(&opts.AsOf, "as-of", -1, "query the database as of this transaction")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 4, "queries to run concurrently")

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	policy, err := shape.ParsePolicy(opts.Shape)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	file, err := LoadQueries(path)
	if err != nil {
		return formatter.FailLoad(err)
	}
	queries, err := file.Select(opts.Name)
	if err != nil {
		return formatter.FailLoad(err)
	}

	st, err := opts.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	db := st.Db()
	if opts.AsOf >= 0 {
		db, err = st.AsOf(opts.AsOf)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}
	formatter.VerboseLog("Running %d query(ies) against %s", len(queries), db)
	log, err := opts.Logger(cmd)
	if err != nil {
		return err
	}

	results := make([]QueryResult, len(queries))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(opts.Jobs, 1))
	for i, q := range queries {
		g.Go(func() error {
			qc, _ := q.Context.WithInput(queryir.SourceSymbol, db)
			qc, _ = qc.WithInput(queryir.RulesSymbol, file.Rules)
			if policy != shape.OrderedRowList {
				warnPullDedup(log, q.Name, qc, policy, cfg.CompilerOptions())
			}
			res, err := compiler.CompileAndRun(ctx, st, qc, policy, cfg.CompilerOptions())
			if err != nil {
				return &queryError{name: q.Name, err: err}
			}
			out, err := newQueryResult(q.Name, policy, res)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputQueryError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessAt(results, db.BasisT)
	}
	return outputQueryText(formatter, results)
}

// warnPullDedup warns when a set shape is asked of a query that projects a
// pull expression: pulled maps can repeat or carry meaning in their order,
// which only the rows shape keeps. Compile errors are left to CompileAndRun.
func warnPullDedup(log *zap.SugaredLogger, name string, qc compiler.Context, policy shape.Policy, opts compiler.Options) {
	compiled, err := compiler.Compile(qc, opts)
	if err != nil || !queryir.HasPull(compiled.Document.Find) {
		return
	}
	log.Warnw("pull projection under a set shape; duplicates are dropped and order is lost (use --shape rows)",
		"query", name, "shape", policy.String())
}

// queryError names the query that failed.
type queryError struct {
	name string
	err  error
}

func (e *queryError) Error() string { return e.name + ": " + e.err.Error() }

func (e *queryError) Unwrap() error { return e.err }

// newQueryResult renders every shaped value as canonical JSON.
func newQueryResult(name string, policy shape.Policy, res shape.Result) (QueryResult, error) {
	values := res.Values()
	out := QueryResult{
		Name:    name,
		Shape:   policy.String(),
		Count:   res.Len(),
		Results: make([]json.RawMessage, len(values)),
		values:  values,
	}
	for i, v := range values {
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return QueryResult{}, fmt.Errorf("%s: result %d: %w", name, i, err)
		}
		out.Results[i] = data
	}
	return out, nil
}

// outputQueryText prints each query's results, one per line.
func outputQueryText(formatter *OutputFormatter, results []QueryResult) error {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		if len(results) > 1 {
			fmt.Fprintf(formatter.Writer, "%s (%s, %d)\n", r.Name, r.Shape, r.Count)
		}
		for _, v := range r.values {
			fmt.Fprintln(formatter.Writer, ir.Format(v))
		}
	}
	return nil
}

// outputQueryError reports a failed query. Compile errors keep their
// symbol lists; engine errors carry the store's error code.
func outputQueryError(formatter *OutputFormatter, err error) error {
	if kind := compiler.KindOf(err); kind != "" {
		return formatter.Fail(ExitFailure, MapKindToErrorCode(kind), err.Error(), symbolsOf(err))
	}
	var details any
	if code := store.CodeOf(err); code != "" {
		details = string(code)
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return formatter.Fail(ExitFailure, ErrCodeQuery, msg, details)
}
