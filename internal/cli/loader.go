package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/queryir"
)

// NamedQuery is one query context from a query file.
type NamedQuery struct {
	Name    string
	Context compiler.Context
}

// QueryFile is a loaded query file: named queries in file order plus the
// rule set bound to %.
type QueryFile struct {
	Path    string
	Queries []NamedQuery
	Rules   queryir.RuleSet
}

// Lookup returns the query called name.
func (f *QueryFile) Lookup(name string) (NamedQuery, bool) {
	for _, q := range f.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return NamedQuery{}, false
}

// Select returns the query called name, or every query when name is empty.
func (f *QueryFile) Select(name string) ([]NamedQuery, error) {
	if name == "" {
		return f.Queries, nil
	}
	q, ok := f.Lookup(name)
	if !ok {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no query named %q in %s", name, f.Path)}
	}
	return []NamedQuery{q}, nil
}

// LoadError represents an error that occurred during query file loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadQueries reads a query file. CUE files (or a directory of them) and
// YAML files share one layout:
//
//	queries: {
//	    adults: {let: ["$", "db", "%", "rules"], yield: ["?name"], ...}
//	}
//	rules: [{head: ["adult", "?p"], ...}]
//
// A file without a queries field is a single query named after the file.
func LoadQueries(path string) (*QueryFile, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}

	var file *QueryFile
	switch ext := filepath.Ext(path); {
	case info.IsDir() || ext == ".cue":
		file, err = loadCUEQueries(path, info.IsDir())
	case ext == ".yaml" || ext == ".yml":
		file, err = loadYAMLQueries(path)
	default:
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("unsupported query file %s: want .cue, .yaml or .yml", path)}
	}
	if err != nil {
		return nil, err
	}
	if len(file.Queries) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no queries found in %s", path)}
	}
	return file, nil
}

// loadCUEQueries builds the CUE instance at path.
func loadCUEQueries(path string, isDir bool) (*QueryFile, error) {
	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !isDir {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	file := &QueryFile{Path: path}
	queriesVal := value.LookupPath(cue.ParsePath("queries"))
	if !queriesVal.Exists() {
		qc, err := compiler.ContextFromCUE(value)
		if err != nil {
			return nil, convertCompileError(err, "query")
		}
		file.Queries = []NamedQuery{{Name: baseName(path), Context: qc}}
		return file, nil
	}

	// In a multi-query file, rules holds definitions rather than calls.
	if rulesVal := value.LookupPath(cue.ParsePath("rules")); rulesVal.Exists() {
		rs, err := compiler.RuleSetFromCUE(rulesVal)
		if err != nil {
			return nil, convertCompileError(err, "rules")
		}
		file.Rules = rs
	}

	iter, err := queriesVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", err)}
	}
	for iter.Next() {
		qc, err := compiler.ContextFromCUE(iter.Value())
		if err != nil {
			return nil, convertCompileError(err, "queries."+iter.Selector().String())
		}
		file.Queries = append(file.Queries, NamedQuery{Name: iter.Selector().Unquoted(), Context: qc})
	}
	return file, nil
}

// yamlQueryFile is the YAML layout. Queries stays a node so mapping order
// is kept.
type yamlQueryFile struct {
	Queries yaml.Node            `yaml:"queries"`
	Rules   compiler.YAMLRuleSet `yaml:"rules"`
}

func loadYAMLQueries(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var head struct {
		Queries yaml.Node `yaml:"queries"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, convertCompileError(err, path)
	}
	if head.Queries.Kind == 0 {
		qc, err := compiler.ContextFromYAML(data)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return &QueryFile{Path: path, Queries: []NamedQuery{{Name: baseName(path), Context: qc}}}, nil
	}

	var raw yamlQueryFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, convertCompileError(err, path)
	}
	file := &QueryFile{Path: path, Rules: raw.Rules.Rules}

	if raw.Queries.Kind != yaml.MappingNode {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("line %d: queries must be a mapping of name to query", raw.Queries.Line)}
	}
	for i := 0; i+1 < len(raw.Queries.Content); i += 2 {
		name := raw.Queries.Content[i].Value
		var q compiler.YAMLQuery
		if err := raw.Queries.Content[i+1].Decode(&q); err != nil {
			return nil, convertCompileError(err, "queries."+name)
		}
		file.Queries = append(file.Queries, NamedQuery{Name: name, Context: q.Context})
	}
	return file, nil
}

// baseName is the file name without its extension.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var cueErr *compiler.CUEError
	if errors.As(err, &cueErr) {
		return &LoadError{
			Code:    ErrCodeInvalidQuery,
			Message: fmt.Sprintf("%s: %s", cueErr.Field, cueErr.Message),
			Pos:     cueErr.Pos,
		}
	}
	if kind := compiler.KindOf(err); kind != "" {
		return &LoadError{
			Code:    MapKindToErrorCode(kind),
			Message: fmt.Sprintf("%s: %v", context, err),
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNoFiles      = "E003" // No queries found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path or query not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeInvalidQuery = "E008" // Query file content error

	// Compile errors
	ErrCodeMalformedClause   = "E101" // Malformed where/yield/preds/rules section
	ErrCodeMalformedLet      = "E102" // Malformed let binding list
	ErrCodeOrphanSymbol      = "E103" // Variable used only once
	ErrCodeOverusedWildcard  = "E104" // Wildcard used more than once
	ErrCodeInvalidProjection = "E105" // Projection cannot be labeled

	// Store errors
	ErrCodeTransact = "E201" // Transaction rejected
	ErrCodeQuery    = "E202" // Engine rejected the query
	ErrCodeSchema   = "E203" // Query names an attribute the schema lacks
	ErrCodeTampered = "E204" // Transaction log differs from its recorded hashes

	// Scenario errors (E3xx)
	ErrCodeTestFailed = "E301" // One or more scenarios failed
)

// MapKindToErrorCode maps a compile error kind to an error code.
func MapKindToErrorCode(kind compiler.ErrorKind) string {
	switch kind {
	case compiler.ErrMalformedClauseShape:
		return ErrCodeMalformedClause
	case compiler.ErrMalformedBindingList:
		return ErrCodeMalformedLet
	case compiler.ErrOrphanSymbol:
		return ErrCodeOrphanSymbol
	case compiler.ErrOverusedWildcard:
		return ErrCodeOverusedWildcard
	case compiler.ErrInvalidProjection:
		return ErrCodeInvalidProjection
	default:
		return ErrCodeGeneric
	}
}
