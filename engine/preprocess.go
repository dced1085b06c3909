package engine

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/invoiceworks/ruleflow/lookup"
)

// dbQueryPattern matches the symbolic lookup syntax
// db.<table>.<field>[<k>=<v>, ...] inside rule expressions.
var dbQueryPattern = regexp.MustCompile(`db\.([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)\[([^\]]+)\]`)

// rewriteLookups replaces every db.table.field[...] occurrence in the
// expression with a quoted literal of the lookup result. The rewrite runs
// before compilation, so the compiler only ever sees plain CEL.
func rewriteLookups(ctx context.Context, expr string, vars map[string]any, src lookup.Adapter) (string, error) {
	if !strings.Contains(expr, "db.") {
		return expr, nil
	}

	var rewriteErr error
	out := dbQueryPattern.ReplaceAllStringFunc(expr, func(occurrence string) string {
		if rewriteErr != nil {
			return occurrence
		}
		groups := dbQueryPattern.FindStringSubmatch(occurrence)
		table, field, rawConds := groups[1], groups[2], groups[3]

		conds := parseConditions(rawConds, vars)
		value, err := src.Lookup(ctx, table, field, conds)
		if err != nil {
			rewriteErr = fmt.Errorf("%w: %s.%s: %v", ErrLookup, table, field, err)
			return occurrence
		}
		return celLiteral(value)
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}
	return out, nil
}

// parseConditions splits "k1=v1, k2=v2" into a condition map. Values are
// either quoted string literals or dotted context paths; pairs without an
// equals sign are ignored.
func parseConditions(raw string, vars map[string]any) lookup.Conditions {
	conds := lookup.Conditions{}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		conds[key] = resolveValue(value, vars)
	}
	return conds
}

// resolveValue interprets one condition value: a quoted literal stays
// literal, anything else is resolved as a dotted path into the evaluation
// context. An unresolvable path yields nil, matching nothing.
func resolveValue(expr string, vars map[string]any) any {
	if len(expr) >= 2 {
		if (expr[0] == '"' && expr[len(expr)-1] == '"') ||
			(expr[0] == '\'' && expr[len(expr)-1] == '\'') {
			return expr[1 : len(expr)-1]
		}
	}
	return nestedValue(vars, expr)
}

func nestedValue(vars map[string]any, path string) any {
	var current any = vars
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// celLiteral renders a lookup result as CEL source text. Whole floats are
// written with a decimal point so the substituted literal stays a double and
// comparisons against coerced context values keep their types aligned.
func celLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return fmt.Sprintf("%d.0", x)
	case int64:
		return fmt.Sprintf("%d.0", x)
	case string:
		return strconv.Quote(x)
	default:
		return strconv.Quote(fmt.Sprint(x))
	}
}
