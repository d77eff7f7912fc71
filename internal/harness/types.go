package harness

import (
	"github.com/roach88/datoms/internal/ir"
)

// Trace event types.
const (
	EventTransact = "transact"
	EventQuery    = "query"
)

// TraceEvent records one transaction or query of a scenario run.
type TraceEvent struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`

	// Transactions: the basis t committed and the resolved tempids.
	T       int64             `json:"t,omitempty"`
	Tempids map[string]ir.Eid `json:"tempids,omitempty"`

	// Queries: the shape and the shaped values. Set shapes are sorted by
	// canonical encoding so traces are reproducible.
	Shape string     `json:"shape,omitempty"`
	Rows  ir.IRArray `json:"rows,omitempty"`

	// Error is the error kind or code of a failed step.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every transaction and query matched its expectation.
	Pass bool `json:"pass"`

	// Trace contains every step in order, for golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTransactTrace records a committed or rejected transaction.
func (r *Result) AddTransactTrace(name string, t int64, tempids map[string]ir.Eid, errCode string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventTransact,
		Name:    name,
		T:       t,
		Tempids: tempids,
		Error:   errCode,
	})
}

// AddQueryTrace records a query's shaped answer or its failure.
func (r *Result) AddQueryTrace(name, shapeName string, rows ir.IRArray, errCode string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:  EventQuery,
		Name:  name,
		Shape: shapeName,
		Rows:  rows,
		Error: errCode,
	})
}
