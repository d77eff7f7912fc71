package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
	"github.com/roach88/datoms/internal/store"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema bool // check attributes against the database schema
}

// ValidationIssue is one problem found in a query.
type ValidationIssue struct {
	Query   string `json:"query"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Check queries without running them",
		Long: `Compile every query of a file and check it stays inside the portable
fragment: projected and filtered variables bound, known comparison
operators, recognised inputs.

With --schema, every attribute named by a pattern must be installed in the
database, and literal values must fit the attribute's value type.

Exit codes:
  0 - All queries valid
  1 - One or more queries have issues
  2 - Command error (file not found, database not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Schema, "schema", false, "check attributes against the database schema")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	file, err := LoadQueries(path)
	if err != nil {
		return formatter.FailLoad(err)
	}

	var st *store.Store
	if opts.Schema {
		st, err = opts.OpenStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	var issues []ValidationIssue
	for _, q := range file.Queries {
		formatter.VerboseLog("Validating query: %s", q.Name)
		issues = append(issues, validateQuery(q, cfg.CompilerOptions(), st)...)
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, issues)
	}
	return outputValidateSuccess(formatter, len(file.Queries))
}

// validateQuery compiles q and collects its issues. st may be nil.
func validateQuery(q NamedQuery, copts compiler.Options, st *store.Store) []ValidationIssue {
	compiled, err := compiler.Compile(q.Context, copts)
	if err != nil {
		return []ValidationIssue{{
			Query:   q.Name,
			Code:    MapKindToErrorCode(compiler.KindOf(err)),
			Message: err.Error(),
		}}
	}

	var issues []ValidationIssue
	for _, w := range queryir.Validate(compiled.Document).Warnings {
		issues = append(issues, ValidationIssue{Query: q.Name, Code: ErrCodeInvalidQuery, Message: w})
	}
	if st != nil {
		for _, msg := range schemaIssues(st, compiled.Document.Patterns()) {
			issues = append(issues, ValidationIssue{Query: q.Name, Code: ErrCodeSchema, Message: msg})
		}
	}
	return issues
}

// schemaIssues checks every literal attribute of patterns against the
// installed schema.
func schemaIssues(st *store.Store, patterns []queryir.Pattern) []string {
	var out []string
	for _, p := range patterns {
		lit, ok := p.A.(queryir.Literal)
		if !ok {
			continue
		}
		kw, ok := lit.Value.(ir.IRKeyword)
		if !ok {
			out = append(out, fmt.Sprintf("%s: attribute %s is not a keyword", p, ir.Format(lit.Value)))
			continue
		}
		attr, ok := st.Attribute(string(kw))
		if !ok {
			out = append(out, fmt.Sprintf("%s: attribute %s is not installed", p, kw))
			continue
		}
		if v, ok := p.V.(queryir.Literal); ok && !literalFits(attr.ValueType, v.Value) {
			out = append(out, fmt.Sprintf("%s: %s does not fit %s", p, ir.Format(v.Value), attr.ValueType.Ident()))
		}
	}
	return out
}

// literalFits reports whether a pattern literal can match values of type vt.
func literalFits(vt ir.ValueType, v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString:
		return vt == ir.TypeString || vt == ir.TypeUUID || vt == ir.TypeInstant
	case ir.IRKeyword:
		// Keywords also name ref targets by ident.
		return vt == ir.TypeKeyword || vt == ir.TypeRef
	case ir.IRInt:
		return vt == ir.TypeLong || vt == ir.TypeRef || vt == ir.TypeInstant
	case ir.IRBool:
		return vt == ir.TypeBoolean
	}
	return false
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d query(ies) valid\n", count)
	return nil
}

// outputValidationIssues outputs every validation issue.
func outputValidationIssues(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Issues: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", issue.Code, issue.Query, issue.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
