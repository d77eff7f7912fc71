package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Name   string // compile only this query
	Output string // output file path
}

// CompiledQuery is one compiled query.
type CompiledQuery struct {
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	Document json.RawMessage `json:"document"`
	EDN      string          `json:"edn"`
}

// CompilationResult holds every compiled query of a file.
type CompilationResult struct {
	Queries []CompiledQuery `json:"queries"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile query files to canonical documents",
		Long: `Compile the queries of a CUE or YAML query file to canonical query
documents without touching a database.

Every structural check runs; symbol-usage checks run unless --lenient
(or strict: false in the config) is set.

Examples:
  datoms compile queries.cue
  datoms compile queries.yaml --name adults --format json
  datoms compile queries.cue -o compiled.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "compile only the named query")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

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
	formatter.VerboseLog("Loaded %d query(ies) from %s", len(file.Queries), path)

	result := CompilationResult{Queries: make([]CompiledQuery, 0, len(queries))}
	var failures []error
	for _, q := range queries {
		formatter.VerboseLog("Compiling query: %s", q.Name)
		compiled, err := compileQuery(q, cfg.CompilerOptions())
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", q.Name, err))
			continue
		}
		result.Queries = append(result.Queries, compiled)
	}

	if len(failures) > 0 {
		return outputCompileErrors(formatter, failures)
	}

	if opts.Output != "" {
		if err := writeCompiledToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileQuery compiles one query and renders its canonical forms.
func compileQuery(q NamedQuery, copts compiler.Options) (CompiledQuery, error) {
	compiled, err := compiler.Compile(q.Context, copts)
	if err != nil {
		return CompiledQuery{}, err
	}
	canonical, err := compiled.Document.Canonical()
	if err != nil {
		return CompiledQuery{}, err
	}
	id, err := compiled.Document.ID()
	if err != nil {
		return CompiledQuery{}, err
	}
	return CompiledQuery{
		Name:     q.Name,
		ID:       id,
		Document: canonical,
		EDN:      compiled.Document.String(),
	}, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d query(ies)\n\n", len(result.Queries))
	for _, q := range result.Queries {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", q.Name, q.EDN)
	}
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical documents to %s\n", outputFile)
	}

	return nil
}

// outputCompileErrors outputs every query that failed to compile.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			cliErrors[i] = CLIError{
				Code:    MapKindToErrorCode(compiler.KindOf(err)),
				Message: err.Error(),
				Details: symbolsOf(err),
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %v\n\n", MapKindToErrorCode(compiler.KindOf(err)), err)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// symbolsOf returns the offending names of a symbol-usage error, or nil.
func symbolsOf(err error) any {
	var names []string
	for _, kind := range []compiler.ErrorKind{compiler.ErrOrphanSymbol, compiler.ErrOverusedWildcard} {
		if ce := compiler.AsKind(err, kind); ce != nil {
			names = append(names, ce.Symbols...)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// writeCompiledToFile writes the compiled documents as indented JSON.
func writeCompiledToFile(result CompilationResult, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling documents: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
