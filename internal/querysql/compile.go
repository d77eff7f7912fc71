package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/queryir"
)

// MaxBranches caps how many conjunctive branches rule expansion may produce.
const MaxBranches = 256

// SQLCompiler compiles query documents to parameterized SQL for SQLite.
//
// Every query reads the as-of facts view: datoms asserted at or before
// BasisTx and not retracted at or before it.
//
// CRITICAL: ALL queries end in ORDER BY over every output column so rows come
// back in a deterministic order.
// CRITICAL: All values are parameterized (never interpolated). Only the
// compiler's own constants (value type codes, system entity ids, column
// aliases) appear in SQL text.
type SQLCompiler struct {
	// BasisTx is the transaction entity the facts view is taken at.
	BasisTx ir.Eid

	// Rules is the rule set bound to the % input.
	Rules queryir.RuleSet

	// BoundValues holds scalar inputs by variable name ("?min").
	BoundValues map[string]ir.IRValue

	fresh int
}

// NewSQLCompiler creates a compiler reading the database as of basisTx.
func NewSQLCompiler(basisTx ir.Eid) *SQLCompiler {
	return &SQLCompiler{
		BasisTx:     basisTx,
		BoundValues: make(map[string]ir.IRValue),
	}
}

// FactsCTE is the as-of view every query and scan selects from. Its two
// parameters are both the basis transaction id.
const FactsCTE = `WITH facts AS (` +
	`SELECT d.e, d.a, d.v, d.vt, d.tx FROM datoms d ` +
	`WHERE d.added = 1 AND d.tx <= ? ` +
	`AND NOT EXISTS (SELECT 1 FROM datoms r WHERE r.added = 0 AND r.e = d.e AND r.a = d.a ` +
	`AND r.v = d.v AND r.vt = d.vt AND r.tx > d.tx AND r.tx <= ?))`

// Compile converts a document to SQL. Each find element produces two result
// columns: the value (cN) and its value type code (tN).
//
// Rule invocations are expanded inline from Rules. A name with several
// definitions becomes one UNION ALL branch per definition.
func (c *SQLCompiler) Compile(doc *queryir.Document) (string, []any, error) {
	if doc == nil {
		return "", nil, fmt.Errorf("cannot compile nil document")
	}
	if len(doc.Find) == 0 {
		return "", nil, fmt.Errorf("document has an empty find list")
	}

	branches, err := c.expand(doc.Where, nil)
	if err != nil {
		return "", nil, err
	}

	params := []any{c.BasisTx, c.BasisTx}
	parts := make([]string, 0, len(branches))
	for i, clauses := range branches {
		sql, branchParams, err := c.compileBranch(doc.Find, clauses)
		if err != nil {
			if len(branches) > 1 {
				return "", nil, fmt.Errorf("branch %d: %w", i, err)
			}
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, branchParams...)
	}

	var sb strings.Builder
	sb.WriteString(FactsCTE)
	sb.WriteByte(' ')
	sb.WriteString(strings.Join(parts, " UNION ALL "))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(stableOrderKey(len(doc.Find)))
	return sb.String(), params, nil
}

// stableOrderKey orders by every output column.
// MANDATORY: every query MUST call this function.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func stableOrderKey(n int) string {
	keys := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		keys = append(keys,
			fmt.Sprintf("c%d COLLATE BINARY ASC", i),
			fmt.Sprintf("t%d ASC", i))
	}
	return strings.Join(keys, ", ")
}

// binding is where a variable's value lives in a branch.
type binding struct {
	expr   string // value expression, e.g. "f0.v"
	vtExpr string // value type column or constant code
}

// branch accumulates one conjunctive SELECT.
type branch struct {
	from        []string
	where       []string
	whereParams []any
	vars        map[string]binding
}

func (b *branch) cond(sql string, params ...any) {
	b.where = append(b.where, sql)
	b.whereParams = append(b.whereParams, params...)
}

// compileBranch compiles patterns and predicates with no rule calls left.
func (c *SQLCompiler) compileBranch(find []queryir.Projection, clauses []queryir.Clause) (string, []any, error) {
	b := &branch{vars: make(map[string]binding)}

	var preds []queryir.Predicate
	for _, clause := range clauses {
		switch cl := clause.(type) {
		case queryir.Pattern:
			if err := c.compilePattern(b, cl); err != nil {
				return "", nil, err
			}
		case queryir.PredicateClause:
			preds = append(preds, cl.Predicate)
		default:
			return "", nil, fmt.Errorf("unsupported clause type: %T", clause)
		}
	}
	if len(b.from) == 0 {
		return "", nil, fmt.Errorf("query has no data patterns")
	}

	// Predicates run after every pattern has bound its variables.
	for _, p := range preds {
		if err := c.compilePredicate(b, p); err != nil {
			return "", nil, err
		}
	}

	cols := make([]string, 0, len(find))
	var selectParams []any
	for i, p := range find {
		name, ok := projectionVar(p)
		if !ok {
			return "", nil, fmt.Errorf("unsupported projection: %s", p)
		}
		if lit, ok := c.BoundValues[name]; ok {
			param, err := irValueToParam(lit)
			if err != nil {
				return "", nil, fmt.Errorf("input %s: %w", name, err)
			}
			vt, err := literalType(lit)
			if err != nil {
				return "", nil, fmt.Errorf("input %s: %w", name, err)
			}
			cols = append(cols, fmt.Sprintf("? AS c%d, %d AS t%d", i, vt, i))
			selectParams = append(selectParams, param)
			continue
		}
		bound, ok := b.vars[name]
		if !ok {
			return "", nil, fmt.Errorf("find variable %s is not bound by any pattern", name)
		}
		cols = append(cols, fmt.Sprintf("%s AS c%d, %s AS t%d", bound.expr, i, bound.vtExpr, i))
	}

	sql := "SELECT " + strings.Join(cols, ", ") +
		" FROM " + strings.Join(b.from, ", ")
	if len(b.where) > 0 {
		sql += " WHERE " + strings.Join(b.where, " AND ")
	}
	return sql, append(selectParams, b.whereParams...), nil
}

// compilePattern adds one facts alias and its constraints.
func (c *SQLCompiler) compilePattern(b *branch, p queryir.Pattern) error {
	alias := "f" + strconv.Itoa(len(b.from))
	b.from = append(b.from, "facts "+alias)

	refType := strconv.Itoa(int(ir.TypeRef))
	if err := c.constrainRef(b, p.E, alias+".e", refType); err != nil {
		return fmt.Errorf("%s entity: %w", p, err)
	}
	if err := c.constrainRef(b, p.A, alias+".a", refType); err != nil {
		return fmt.Errorf("%s attribute: %w", p, err)
	}
	if err := c.constrainValue(b, p.V, alias+".v", alias+".vt"); err != nil {
		return fmt.Errorf("%s value: %w", p, err)
	}
	return nil
}

// constrainRef handles the entity and attribute positions, which always
// hold entity ids.
func (c *SQLCompiler) constrainRef(b *branch, t queryir.Term, col, vt string) error {
	t = c.resolveInput(t)
	if name, ok := queryir.VariableName(t); ok {
		if bound, seen := b.vars[name]; seen {
			b.cond(col + " = " + bound.expr)
			if bound.vtExpr != vt {
				b.cond(bound.vtExpr + " = " + vt)
			}
			return nil
		}
		b.vars[name] = binding{expr: col, vtExpr: vt}
		return nil
	}

	lit := t.(queryir.Literal)
	switch v := lit.Value.(type) {
	case ir.IRInt:
		b.cond(col+" = ?", int64(v))
	case ir.IRKeyword:
		b.cond(col+" = "+identSubquery, string(v))
	default:
		return fmt.Errorf("%s is not an entity id or ident", lit)
	}
	return nil
}

// constrainValue handles the value position, whose type varies per datom.
func (c *SQLCompiler) constrainValue(b *branch, t queryir.Term, col, vtCol string) error {
	t = c.resolveInput(t)
	if name, ok := queryir.VariableName(t); ok {
		if bound, seen := b.vars[name]; seen {
			b.cond(col + " = " + bound.expr)
			b.cond(vtCol + " = " + bound.vtExpr)
			return nil
		}
		b.vars[name] = binding{expr: col, vtExpr: vtCol}
		return nil
	}

	lit := t.(queryir.Literal)
	switch v := lit.Value.(type) {
	case ir.IRInt:
		b.cond(fmt.Sprintf("%s = ? AND %s IN (%d, %d, %d)", col, vtCol, ir.TypeRef, ir.TypeLong, ir.TypeInstant), int64(v))
	case ir.IRBool:
		b.cond(fmt.Sprintf("%s = ? AND %s = %d", col, vtCol, ir.TypeBoolean), boolParam(bool(v)))
	case ir.IRString:
		b.cond(fmt.Sprintf("%s = ? AND %s IN (%d, %d)", col, vtCol, ir.TypeString, ir.TypeUUID), string(v))
	case ir.IRKeyword:
		// A keyword matches keyword values and refs to the entity it names.
		b.cond(fmt.Sprintf("((%s = %d AND %s = ?) OR (%s = %d AND %s = %s))",
			vtCol, ir.TypeKeyword, col, vtCol, ir.TypeRef, col, identSubquery), string(v), string(v))
	default:
		return fmt.Errorf("%s cannot be matched as a value", lit)
	}
	return nil
}

// identSubquery resolves a keyword ident parameter to its entity id.
var identSubquery = fmt.Sprintf("(SELECT i.e FROM facts i WHERE i.a = %d AND i.vt = %d AND i.v = ?)",
	ir.EidIdent, ir.TypeKeyword)

// sqlOperators maps predicate functions to SQL comparison operators.
var sqlOperators = map[string]string{
	queryir.OpEQ:  "=",
	queryir.OpNE:  "<>",
	queryir.OpLT:  "<",
	queryir.OpLTE: "<=",
	queryir.OpGT:  ">",
	queryir.OpGTE: ">=",
}

// compilePredicate compiles a comparison over bound variables and literals.
// CRITICAL: literal operands are NEVER interpolated.
func (c *SQLCompiler) compilePredicate(b *branch, p queryir.Predicate) error {
	op, ok := sqlOperators[p.Fn]
	if !ok {
		return fmt.Errorf("unsupported predicate function %q", p.Fn)
	}
	if len(p.Args) != 2 {
		return fmt.Errorf("predicate %s takes 2 arguments, got %d", p, len(p.Args))
	}

	sides := make([]string, 2)
	var params []any
	for i, arg := range p.Args {
		arg = c.resolveInput(arg)
		if name, ok := queryir.VariableName(arg); ok {
			bound, seen := b.vars[name]
			if !seen {
				return fmt.Errorf("predicate %s: variable %s is not bound by any pattern", p, name)
			}
			sides[i] = bound.expr
			continue
		}
		param, err := irValueToParam(arg.(queryir.Literal).Value)
		if err != nil {
			return fmt.Errorf("predicate %s: %w", p, err)
		}
		sides[i] = "?"
		params = append(params, param)
	}

	b.cond(sides[0]+" "+op+" "+sides[1], params...)
	return nil
}

// resolveInput replaces variables bound to scalar inputs with literals.
func (c *SQLCompiler) resolveInput(t queryir.Term) queryir.Term {
	if name, ok := queryir.VariableName(t); ok {
		if v, bound := c.BoundValues[name]; bound {
			return queryir.Literal{Value: v}
		}
	}
	return t
}

func projectionVar(p queryir.Projection) (string, bool) {
	term := queryir.ProjectionTerm(p)
	if term == nil {
		return "", false
	}
	return queryir.VariableName(term)
}

// literalType returns the value type a literal is stored as.
func literalType(v ir.IRValue) (ir.ValueType, error) {
	switch v.(type) {
	case ir.IRInt:
		return ir.TypeLong, nil
	case ir.IRString:
		return ir.TypeString, nil
	case ir.IRBool:
		return ir.TypeBoolean, nil
	case ir.IRKeyword:
		return ir.TypeKeyword, nil
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", v)
	}
}

func boolParam(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Supports string, keyword, int and bool. Arrays and objects are not
// directly supported as SQL parameters.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRKeyword:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return boolParam(bool(val)), nil
	case ir.IRNull:
		return nil, fmt.Errorf("IRNull cannot be used as SQL parameter")
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
