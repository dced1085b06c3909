package lookup

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/invoiceworks/ruleflow/internal/logger"
)

// TableSpec whitelists one queryable reference table. Identifiers in SQL are
// assembled from rule text, so only registered tables and columns ever reach
// the query builder.
type TableSpec struct {
	Name    string
	Columns []string
}

func (t TableSpec) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// PostgresSource serves lookups from reference tables in PostgreSQL.
type PostgresSource struct {
	db     *sql.DB
	tables map[string]TableSpec
}

// DefaultTableSpecs registers the reference tables the seed migrations
// create.
func DefaultTableSpecs() []TableSpec {
	return []TableSpec{
		{Name: "companies", Columns: []string{"name", "tax_number", "category", "company_type", "status"}},
		{Name: "tax_rates", Columns: []string{"category", "rate", "description"}},
	}
}

// NewPostgresSource creates a database-backed source limited to the given
// table specs.
func NewPostgresSource(db *sql.DB, specs []TableSpec) *PostgresSource {
	tables := make(map[string]TableSpec, len(specs))
	for _, s := range specs {
		tables[s.Name] = s
	}
	return &PostgresSource{db: db, tables: tables}
}

// Lookup queries the first matching row's field. Unknown tables or columns
// and empty result sets fall back to the field default; only a failed query
// is an error.
func (s *PostgresSource) Lookup(ctx context.Context, table, field string, conds Conditions) (any, error) {
	spec, ok := s.tables[table]
	if !ok || !spec.hasColumn(field) {
		logger.WarnLookupFallback()
		return DefaultValue(field), nil
	}

	cols := make([]string, 0, len(conds))
	for c := range conds {
		if !spec.hasColumn(c) {
			logger.WarnLookupFallback()
			return DefaultValue(field), nil
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", field, table)
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = $%d", c, i+1)
		args = append(args, fmt.Sprintf("%v", conds[c]))
	}
	b.WriteString(" LIMIT 1")

	var raw any
	err := s.db.QueryRowContext(ctx, b.String(), args...).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		logger.WarnLookupFallback()
		return DefaultValue(field), nil
	case err != nil:
		return nil, fmt.Errorf("lookup query on %s.%s failed: %w", table, field, err)
	}

	return normalizeScan(raw), nil
}

// normalizeScan maps driver scan types onto the small value vocabulary rule
// expressions use.
func normalizeScan(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int64:
		return float64(x)
	default:
		return x
	}
}
