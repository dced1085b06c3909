package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"github.com/google/cel-go/interpreter/functions"

	"github.com/invoiceworks/ruleflow/lookup"
)

// Evaluator compiles and evaluates rule expressions. Checked ASTs are cached
// behind an RWMutex keyed on the expression text, so the cache stays bounded
// by the rule set; expressions whose text was changed by the lookup rewrite
// embed per-document literals and are compiled without caching.
//
// The db.<table>.<field>[...] lookup syntax is rewritten to literals before
// compilation; expressions that prefer a first-class call can use
// lookup(table, field, conditions) instead.
type Evaluator struct {
	env        *cel.Env
	classifier Classifier
	lookups    lookup.Adapter
	asts       map[string]*cel.Ast
	mu         sync.RWMutex
}

// NewEvaluator builds the CEL environment with the rule vocabulary: the
// invoice/item/company variables, string extensions and the classification
// and lookup functions. The lookup function is declared late-bound so each
// evaluation can supply an implementation closed over its context.
func NewEvaluator(classifier Classifier, lookups lookup.Adapter) (*Evaluator, error) {
	e := &Evaluator{
		classifier: classifier,
		lookups:    lookups,
		asts:       make(map[string]*cel.Ast),
	}

	env, err := cel.NewEnv(
		cel.Variable("invoice", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("item", cel.DynType),
		cel.Variable("company", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
		// Context amounts are float64 while rule text mixes int and double
		// literals freely.
		cel.CrossTypeNumericComparisons(true),
		cel.Function("get_tax_rate",
			cel.Overload("get_tax_rate_string", []*cel.Type{cel.StringType}, cel.DoubleType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					s, _ := arg.Value().(string)
					return types.Double(e.classifier.TaxRate(s))
				}))),
		cel.Function("get_tax_category",
			cel.Overload("get_tax_category_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					s, _ := arg.Value().(string)
					return types.String(e.classifier.TaxCategory(s))
				}))),
		cel.Function("get_standard_name",
			cel.Overload("get_standard_name_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					s, _ := arg.Value().(string)
					return types.String(e.classifier.StandardName(s))
				}))),
		cel.Function("get_product_info",
			cel.Overload("get_product_info_string", []*cel.Type{cel.StringType},
				cel.MapType(cel.StringType, cel.DynType),
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					s, _ := arg.Value().(string)
					return types.DefaultTypeAdapter.NativeToValue(e.classifier.ProductInfo(s).asMap())
				}))),
		cel.Function("lookup",
			cel.Overload("lookup_table_field_conditions",
				[]*cel.Type{cel.StringType, cel.StringType, cel.MapType(cel.StringType, cel.DynType)},
				cel.DynType,
				cel.LateFunctionBinding())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e.env = env
	return e, nil
}

// lookupOverload builds the per-evaluation lookup() implementation, closed
// over the evaluation context so adapter deadlines hold. Source failures
// degrade to the field default so the function never raises into rule
// evaluation.
func (e *Evaluator) lookupOverload(ctx context.Context) *functions.Overload {
	return &functions.Overload{
		Operator: "lookup",
		Function: func(args ...ref.Val) ref.Val {
			table, _ := args[0].Value().(string)
			field, _ := args[1].Value().(string)

			conds := lookup.Conditions{}
			if raw, err := args[2].ConvertToNative(reflect.TypeOf(map[string]any{})); err == nil {
				if m, ok := raw.(map[string]any); ok {
					for k, v := range m {
						conds[k] = v
					}
				}
			}

			value, err := e.lookups.Lookup(ctx, table, field, conds)
			if err != nil {
				value = lookup.DefaultValue(field)
			}
			return types.DefaultTypeAdapter.NativeToValue(value)
		},
	}
}

// Evaluate runs one expression against the context and returns its native
// result. Compile failures wrap ErrCompile, runtime failures ErrEval; a
// panicking extension function is caught and reported as ErrEval.
func (e *Evaluator) Evaluate(ctx context.Context, expr string, vars map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = evalErr(expr, fmt.Errorf("panic during evaluation: %v", r))
		}
	}()

	rewritten, err := rewriteLookups(ctx, expr, vars, e.lookups)
	if err != nil {
		return nil, err
	}

	ast, err := e.compile(rewritten, rewritten == expr)
	if err != nil {
		return nil, err
	}

	prog, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(1000000),
		cel.Functions(e.lookupOverload(ctx)),
	)
	if err != nil {
		return nil, compileErr(expr, err)
	}

	out, _, err := prog.ContextEval(ctx, vars)
	if err != nil {
		return nil, evalErr(expr, err)
	}

	return nativize(out), nil
}

// EvaluateBool runs one expression and requires a strict boolean result.
func (e *Evaluator) EvaluateBool(ctx context.Context, expr string, vars map[string]any) (bool, error) {
	v, err := e.Evaluate(ctx, expr, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, evalErr(expr, fmt.Errorf("result is not a boolean: %v", v))
	}
	return b, nil
}

// Check compiles an expression without evaluating it, for rule authoring
// surfaces. Lookup occurrences are stubbed with a dyn literal since their
// results are only known against a concrete document.
func (e *Evaluator) Check(expr string) error {
	stubbed := dbQueryPattern.ReplaceAllString(expr, `dyn("")`)
	ast, issues := e.env.Compile(stubbed)
	if issues != nil && issues.Err() != nil {
		return compileErr(expr, issues.Err())
	}
	if _, err := e.env.Program(ast); err != nil {
		return compileErr(expr, err)
	}
	return nil
}

// compile type-checks an expression, caching the AST when the text is stable
// rule text. Rewritten lookup results vary per document, so caching them
// would grow the map without bound.
func (e *Evaluator) compile(expr string, cacheable bool) (*cel.Ast, error) {
	if cacheable {
		e.mu.RLock()
		ast, ok := e.asts[expr]
		e.mu.RUnlock()
		if ok {
			return ast, nil
		}
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, compileErr(expr, issues.Err())
	}

	if cacheable {
		e.mu.Lock()
		e.asts[expr] = ast
		e.mu.Unlock()
	}
	return ast, nil
}

// nativize converts a CEL result onto the small Go vocabulary the rest of
// the engine consumes: bool, float64, string, map[string]any, []any, nil.
func nativize(out ref.Val) any {
	if _, isNull := out.(types.Null); isNull {
		return nil
	}
	switch v := out.Value().(type) {
	case bool:
		return v
	case string:
		return v
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	if m, err := out.ConvertToNative(reflect.TypeOf(map[string]any{})); err == nil {
		return m
	}
	if l, err := out.ConvertToNative(reflect.TypeOf([]any{})); err == nil {
		return l
	}
	return out.Value()
}

// truthy implements apply_to semantics: nil is false, booleans are
// themselves, numbers are true when non-zero, strings when non-blank, and
// any other value is true.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return strings.TrimSpace(x) != ""
	default:
		return true
	}
}
