// Package policy implements PolicyEvaluator: a restricted arithmetic/
// boolean expression language evaluated against a fixed, whitelisted
// context (§4.9). It backs trait-emergence rule conditions/deltas and
// optional pluggable economic formula policies.
//
// The grammar is spec.md's, not CEL's: rule authors write `and`/`or`/
// `not`, `//`, and `**`; this package translates that surface into a
// github.com/google/cel-go expression before compiling, so the engine
// never depends on CEL's own keyword spelling. Declaring only the
// whitelisted identifiers as CEL variables makes every non-whitelisted
// identifier (including any `_`-prefixed name) a compile-time error for
// free, rather than a second hand-rolled check.
//
// Grounded on internal/heuristics/risk_roles.go's restricted-rule-engine
// shape (named conditions evaluated against a fixed attribute set).
package policy

import (
	"fmt"
	"math"
	"regexp"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/rawblock/bff-engine/internal/econ"
)

// Whitelisted identifiers, exactly as enumerated in §4.9.
var whitelist = []string{
	"id", "role", "currency", "employer", "retainer_fee", "bribe_threshold",
	"wealth", "compute", "copy", "defend", "raid", "trade", "sense", "adapt",
	"tick",
}

var stringIdentifiers = map[string]bool{"id": true, "role": true, "employer": true}

// PolicyError reports a rejected expression: parse failure or reference
// to a non-whitelisted identifier/construct.
type PolicyError struct {
	Expr string
	Err  error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy: rejected expression %q: %v", e.Expr, e.Err)
}
func (e *PolicyError) Unwrap() error { return e.Err }

// NameError reports a whitelisted identifier absent from the evaluation
// context.
type NameError struct {
	Name string
}

func (e *NameError) Error() string { return fmt.Sprintf("policy: missing identifier %q", e.Name) }

var (
	keywordAnd = regexp.MustCompile(`\band\b`)
	keywordOr  = regexp.MustCompile(`\bor\b`)
	keywordNot = regexp.MustCompile(`\bnot\b`)
	opPow      = regexp.MustCompile(`([A-Za-z0-9_.]+|\([^()]*\))\s*\*\*\s*([A-Za-z0-9_.]+|\([^()]*\))`)
	opIntDiv   = regexp.MustCompile(`([A-Za-z0-9_.]+|\([^()]*\))\s*//\s*([A-Za-z0-9_.]+|\([^()]*\))`)
)

// translate rewrites spec.md's surface grammar into CEL's, leaving
// everything else (identifiers, comparisons, + - * /, %) untouched since
// CEL already accepts those verbatim.
func translate(expr string) string {
	out := expr
	// ** and // bind tighter than and/or/not, so rewrite them first.
	for opPow.MatchString(out) {
		out = opPow.ReplaceAllString(out, `pow($1, $2)`)
	}
	for opIntDiv.MatchString(out) {
		out = opIntDiv.ReplaceAllString(out, `int_div($1, $2)`)
	}
	out = keywordNot.ReplaceAllString(out, "!")
	out = keywordAnd.ReplaceAllString(out, "&&")
	out = keywordOr.ReplaceAllString(out, "||")
	return out
}

var (
	sharedEnv     *cel.Env
	sharedEnvErr  error
	sharedEnvOnce sync.Once
)

func buildEnv() (*cel.Env, error) {
	decls := make([]cel.EnvOption, 0, len(whitelist)+8)
	for _, name := range whitelist {
		if stringIdentifiers[name] {
			decls = append(decls, cel.Variable(name, cel.StringType))
		} else {
			decls = append(decls, cel.Variable(name, cel.DoubleType))
		}
	}

	unaryDouble := func(fn func(float64) float64) func(ref.Val) ref.Val {
		return func(v ref.Val) ref.Val {
			d, ok := v.(types.Double)
			if !ok {
				return types.NewErr("policy: expected double argument")
			}
			return types.Double(fn(float64(d)))
		}
	}
	binaryDouble := func(fn func(a, b float64) float64) func(ref.Val, ref.Val) ref.Val {
		return func(a, b ref.Val) ref.Val {
			da, ok1 := a.(types.Double)
			db, ok2 := b.(types.Double)
			if !ok1 || !ok2 {
				return types.NewErr("policy: expected double arguments")
			}
			return types.Double(fn(float64(da), float64(db)))
		}
	}

	decls = append(decls,
		cel.Function("abs", cel.Overload("abs_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(unaryDouble(math.Abs)))),
		cel.Function("sqrt", cel.Overload("sqrt_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(unaryDouble(math.Sqrt)))),
		cel.Function("exp", cel.Overload("exp_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(unaryDouble(math.Exp)))),
		cel.Function("log", cel.Overload("log_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(unaryDouble(math.Log)))),
		cel.Function("sigmoid", cel.Overload("sigmoid_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(unaryDouble(econ.Sigmoid)))),
		cel.Function("min", cel.Overload("min_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(binaryDouble(math.Min)))),
		cel.Function("max", cel.Overload("max_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(binaryDouble(math.Max)))),
		cel.Function("pow", cel.Overload("pow_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(binaryDouble(math.Pow)))),
		cel.Function("int_div", cel.Overload("int_div_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(binaryDouble(func(a, b float64) float64 { return math.Trunc(a / b) })))),
		cel.Function("clamp", cel.Overload("clamp_double", []*cel.Type{cel.DoubleType, cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.FunctionBinding(func(args ...ref.Val) ref.Val {
				v, ok1 := args[0].(types.Double)
				lo, ok2 := args[1].(types.Double)
				hi, ok3 := args[2].(types.Double)
				if !ok1 || !ok2 || !ok3 {
					return types.NewErr("policy: clamp expects double arguments")
				}
				return types.Double(econ.Clamp(float64(v), float64(lo), float64(hi)))
			}))),
	)

	return cel.NewEnv(decls...)
}

func sharedCelEnv() (*cel.Env, error) {
	sharedEnvOnce.Do(func() { sharedEnv, sharedEnvErr = buildEnv() })
	return sharedEnv, sharedEnvErr
}

// Program is one compiled, whitelist-checked expression, ready to
// evaluate repeatedly against different contexts.
type Program struct {
	source     string
	translated string
	prg        cel.Program
}

// Compile parses and type-checks expr against the whitelisted grammar,
// returning a PolicyError for anything outside it (unknown identifiers,
// disallowed constructs, syntax errors).
func Compile(expr string) (*Program, error) {
	env, err := sharedCelEnv()
	if err != nil {
		return nil, fmt.Errorf("policy: environment build failed: %w", err)
	}

	translated := translate(expr)
	ast, issues := env.Compile(translated)
	if issues != nil && issues.Err() != nil {
		return nil, &PolicyError{Expr: expr, Err: issues.Err()}
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, &PolicyError{Expr: expr, Err: err}
	}

	return &Program{source: expr, translated: translated, prg: prg}, nil
}

// Context is the evaluation-time variable binding. Numeric values are
// coerced to CEL doubles; string-typed whitelist entries (id, role,
// employer) are passed through as-is.
type Context map[string]any

// Eval evaluates the compiled program against ctx, returning a bool,
// float64, or string depending on the expression's result type. Missing
// whitelisted identifiers produce a NameError; CEL runtime errors
// (type mismatches) are returned as-is.
func (p *Program) Eval(ctx Context) (any, error) {
	vars := make(map[string]any, len(whitelist))
	for _, name := range whitelist {
		v, ok := ctx[name]
		if !ok {
			continue
		}
		if stringIdentifiers[name] {
			vars[name] = v
			continue
		}
		vars[name] = toFloat64(v)
	}

	out, _, err := p.prg.Eval(vars)
	if err != nil {
		if missing := missingIdentifier(err.Error()); missing != "" {
			return nil, &NameError{Name: missing}
		}
		return nil, fmt.Errorf("policy: evaluation failed for %q: %w", p.source, err)
	}

	switch v := out.Value().(type) {
	case bool:
		return v, nil
	case float64:
		return v, nil
	case string:
		return v, nil
	default:
		return out.Value(), nil
	}
}

// EvalBool evaluates the compiled program and requires a boolean result,
// as used for trait-emergence rule conditions.
func (p *Program) EvalBool(ctx Context) (bool, error) {
	v, err := p.Eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("policy: expression %q did not evaluate to a boolean", p.source)
	}
	return b, nil
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

var missingRef = regexp.MustCompile(`no such attribute\(s\): ?([A-Za-z0-9_]+)|undeclared reference to '([A-Za-z0-9_]+)'`)

func missingIdentifier(msg string) string {
	m := missingRef.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// EvaluateRule evaluates a trait-emergence rule's condition string
// against ctx; rule application silently skips agents whose expression
// fails, per §4.9, so callers should treat any error as "does not
// apply" rather than fatal.
func EvaluateRule(condition string, ctx Context) (bool, error) {
	prg, err := Compile(condition)
	if err != nil {
		return false, err
	}
	return prg.EvalBool(ctx)
}

// Whitelist returns the identifiers PolicyEvaluator accepts, for callers
// that need to check rule text up front.
func Whitelist() []string {
	out := make([]string, len(whitelist))
	copy(out, whitelist)
	return out
}
