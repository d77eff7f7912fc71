package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/shape"
	"github.com/roach88/datoms/internal/txdata"
)

// Scenario is a conformance scenario: transactions applied to a fresh
// store, then queries whose shaped results are checked.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// EnforceSchema overrides the store's schema enforcement. Nil keeps the
	// default (enforced).
	EnforceSchema *bool `yaml:"enforce_schema,omitempty"`

	// Rules is bound to the % input of every query that declares one.
	Rules compiler.YAMLRuleSet `yaml:"rules,omitempty"`

	// Transactions run in order before any query.
	Transactions []TxStep `yaml:"transactions"`

	// Queries run in order against the resulting database.
	Queries []QueryStep `yaml:"queries"`
}

// TxStep is one transaction.
type TxStep struct {
	Name string        `yaml:"name"`
	Tx   txdata.YAMLTx `yaml:"tx"`

	// Error is the store error code the transaction must fail with, such as
	// UNIQUE_CONFLICT. Empty means it must commit.
	Error string `yaml:"error,omitempty"`
}

// QueryStep is one query and its expected answer.
type QueryStep struct {
	Name  string             `yaml:"name"`
	Query compiler.YAMLQuery `yaml:"query"`

	// Shape is tuples (default), maps or rows.
	Shape string `yaml:"shape,omitempty"`

	// AsOf runs the query against the database as of this transaction.
	AsOf *int64 `yaml:"as_of,omitempty"`

	// Lenient turns off the symbol-usage checks.
	Lenient bool `yaml:"lenient,omitempty"`

	// Expect lists the expected rows (tuples, rows) or maps (maps). Set
	// shapes compare without regard to order; rows compare in order.
	Expect []any `yaml:"expect,omitempty"`

	// Error is the error kind or code the query must fail with, such as
	// ORPHAN_SYMBOL. When set, Expect is ignored.
	Error string `yaml:"error,omitempty"`
}

// Policy returns the step's shaping policy.
func (q QueryStep) Policy() (shape.Policy, error) {
	if q.Shape == "" {
		return shape.UniqueTupleSet, nil
	}
	return shape.ParsePolicy(q.Shape)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "query:" vs "queries:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	for i, tx := range s.Transactions {
		if len(tx.Tx.Items) == 0 {
			return fmt.Errorf("transactions[%d]: tx must list at least one item", i)
		}
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if _, err := q.Policy(); err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
		if q.AsOf != nil && *q.AsOf < 0 {
			return fmt.Errorf("queries[%d]: as_of must be non-negative", i)
		}
	}

	return nil
}
