// Package lookup resolves db.<table>.<field>[...] references in rule
// expressions against reference data sources.
package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Conditions is the equality filter of one lookup: column name to expected
// value.
type Conditions map[string]any

// Adapter answers reference-data lookups. A missing row is not an error:
// implementations return the field's documented default instead. An error
// return means the source itself failed (unreachable database, bad query).
type Adapter interface {
	Lookup(ctx context.Context, table, field string, conds Conditions) (any, error)
}

// DefaultValue returns the fallback for a field when no row matches. These
// defaults keep rule evaluation total: a failed lookup degrades to a neutral
// value rather than an evaluation error.
func DefaultValue(field string) any {
	switch strings.ToLower(field) {
	case "tax_number", "name":
		return ""
	case "category":
		return "GENERAL"
	case "rate":
		return 0.06
	default:
		return nil
	}
}

// Key renders a canonical cache key for one lookup call. Conditions are
// ordered so equal lookups always produce equal keys.
func Key(table, field string, conds Conditions) string {
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(table)
	b.WriteByte('.')
	b.WriteString(field)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, conds[k])
	}
	return b.String()
}

// looseEqual compares a row value against a condition value. Reference data
// and rule conditions arrive through different decoders, so numbers are
// compared by rendered value rather than by Go type.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
