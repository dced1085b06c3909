package lookup

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/invoiceworks/ruleflow/internal/logger"
)

// StaticSource serves lookups from reference tables loaded out of a YAML
// file. Used standalone in tests and as the fallback when no database is
// configured.
type StaticSource struct {
	tables map[string][]map[string]any
}

type staticConfig struct {
	Tables map[string][]map[string]any `yaml:"tables"`
}

// NewStaticSource creates a source over in-memory tables.
func NewStaticSource(tables map[string][]map[string]any) *StaticSource {
	if tables == nil {
		tables = map[string][]map[string]any{}
	}
	return &StaticSource{tables: tables}
}

// NewStaticSourceFromFile loads reference tables from a YAML file with a
// top-level tables map.
func NewStaticSourceFromFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup data %s: %w", path, err)
	}
	var cfg staticConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse lookup data %s: %w", path, err)
	}
	logger.Info("lookup data loaded", "path", path, "tables", len(cfg.Tables))
	return NewStaticSource(cfg.Tables), nil
}

// Lookup scans the table for the first row matching every condition and
// returns its field value. No matching row, unknown table and unknown field
// all fall back to the field default.
func (s *StaticSource) Lookup(ctx context.Context, table, field string, conds Conditions) (any, error) {
	rows, ok := s.tables[table]
	if !ok {
		logger.WarnLookupFallback()
		return DefaultValue(field), nil
	}

	for _, row := range rows {
		matched := true
		for k, want := range conds {
			if !looseEqual(row[k], want) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if v, ok := row[field]; ok && v != nil {
			return v, nil
		}
		break
	}

	logger.WarnLookupFallback()
	return DefaultValue(field), nil
}
