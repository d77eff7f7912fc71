package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
	"github.com/roach88/datoms/internal/shape"
	"github.com/roach88/datoms/internal/store"
	"github.com/roach88/datoms/internal/testutil"
	"github.com/roach88/datoms/internal/txdata"
)

// ClockStep is how far the deterministic clock advances per transaction.
const ClockStep = time.Second

// Harness is the test execution engine.
// It runs scenarios against a fresh store with a deterministic clock.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	logger *zap.SugaredLogger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes store logs to l.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create a fresh in-memory store whose clock starts at testutil.Epoch
//  2. Apply every transaction in order, checking expected failures
//  3. Compile and run every query, shaping and comparing its answer
//
// A mismatch is recorded in the result; the returned error is reserved for
// failures of the harness itself.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		clock:  testutil.NewDeterministicClock(testutil.Epoch, ClockStep),
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(h)
	}

	storeOpts := store.DefaultOptions()
	if scenario.EnforceSchema != nil {
		storeOpts.EnforceSchema = *scenario.EnforceSchema
	}
	storeOpts.Logger = h.logger
	storeOpts.Now = h.clock.Now

	st, err := store.Open(":memory:", storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()
	h.store = st

	result := NewResult()

	for i, step := range scenario.Transactions {
		if err := h.executeTransaction(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("transactions[%d]: %w", i, err)
		}
	}

	for i, step := range scenario.Queries {
		if err := h.executeQuery(ctx, step, scenario.Rules.Rules, result); err != nil {
			return nil, fmt.Errorf("queries[%d] %s: %w", i, step.Name, err)
		}
	}

	h.logger.Debugw("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// executeTransaction applies one transaction and checks its outcome.
func (h *Harness) executeTransaction(ctx context.Context, i int, step TxStep, result *Result) error {
	name := step.Name
	if name == "" {
		name = fmt.Sprintf("tx-%d", i)
	}

	report, err := h.store.Transact(ctx, step.Tx.Items)
	if err != nil {
		code := ErrorCode(err)
		if code == "" {
			return err
		}
		result.AddTransactTrace(name, 0, nil, code)
		if step.Error == "" {
			result.AddError(fmt.Sprintf("transaction %s: unexpected error: %v", name, err))
		} else if step.Error != code {
			result.AddError(fmt.Sprintf("transaction %s: expected error %s, got %s", name, step.Error, code))
		}
		return nil
	}

	result.AddTransactTrace(name, report.DBAfter.BasisT, report.Tempids, "")
	if step.Error != "" {
		result.AddError(fmt.Sprintf("transaction %s: expected error %s, but it committed at t=%d", name, step.Error, report.DBAfter.BasisT))
	}
	return nil
}

// executeQuery runs one query and compares its shaped answer.
func (h *Harness) executeQuery(ctx context.Context, step QueryStep, rules queryir.RuleSet, result *Result) error {
	policy, err := step.Policy()
	if err != nil {
		return err
	}

	db := h.store.Db()
	if step.AsOf != nil {
		db, err = h.store.AsOf(*step.AsOf)
		if err != nil {
			return err
		}
	}

	qc, _ := step.Query.Context.WithInput(queryir.SourceSymbol, db)
	qc, _ = qc.WithInput(queryir.RulesSymbol, rules)

	shaped, err := compiler.CompileAndRun(ctx, h.store, qc, policy, compiler.Options{Strict: !step.Lenient})
	if err != nil {
		code := ErrorCode(err)
		if code == "" {
			return err
		}
		result.AddQueryTrace(step.Name, policy.String(), nil, code)
		switch {
		case step.Error == "":
			result.AddError(fmt.Sprintf("query %s: unexpected error: %v", step.Name, err))
		case step.Error != code:
			result.AddError(fmt.Sprintf("query %s: expected error %s, got %s", step.Name, step.Error, code))
		}
		return nil
	}

	values := shaped.Values()
	if policy != shape.OrderedRowList {
		values, err = sortCanonical(values)
		if err != nil {
			return err
		}
	}
	result.AddQueryTrace(step.Name, policy.String(), values, "")

	if step.Error != "" {
		result.AddError(fmt.Sprintf("query %s: expected error %s, but it returned %d results", step.Name, step.Error, shaped.Len()))
		return nil
	}
	if err := compareRows(policy, step.Expect, values); err != nil {
		result.AddError(fmt.Sprintf("query %s: %v", step.Name, err))
	}
	return nil
}

// ErrorCode classifies err as a compile error kind, a store error code or a
// transaction-data error kind. It returns "" for any other error.
func ErrorCode(err error) string {
	if kind := compiler.KindOf(err); kind != "" {
		return string(kind)
	}
	if code := store.CodeOf(err); code != "" {
		return string(code)
	}
	if kind := txdata.KindOf(err); kind != "" {
		return string(kind)
	}
	return ""
}

// sortCanonical orders values by their canonical encoding.
func sortCanonical(values ir.IRArray) (ir.IRArray, error) {
	keyed, err := canonicalKeys(values)
	if err != nil {
		return nil, err
	}
	out := make(ir.IRArray, len(keyed))
	for i, k := range keyed {
		out[i] = k.value
	}
	return out, nil
}
