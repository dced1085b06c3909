package rules

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/invoiceworks/ruleflow/internal/logger"
)

// PostgresStore loads rules from the business_rules table. Rows live in one
// table discriminated by rule_type ('completion' or 'validation').
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed rule store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load fetches every rule row and builds a snapshot. A failed query fails the
// load; a row that cannot be scanned is dropped with a warning.
func (s *PostgresStore) Load(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_type, rule_name, apply_to, target_field, field_path,
		       rule_expression, error_message, priority, active
		FROM business_rules
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query business_rules: %v", ErrConfig, err)
	}
	defer rows.Close()

	var completion []CompletionRule
	var validation []ValidationRule

	for rows.Next() {
		var (
			id, ruleType, name            string
			applyTo, targetField          sql.NullString
			fieldPath, expr, errorMessage sql.NullString
			priority                      int
			active                        bool
		)
		if err := rows.Scan(&id, &ruleType, &name, &applyTo, &targetField,
			&fieldPath, &expr, &errorMessage, &priority, &active); err != nil {
			logger.WarnDroppedRule()
			logger.Warn("dropping unreadable rule row", "error", err)
			continue
		}

		switch ruleType {
		case "completion":
			if targetField.String == "" || expr.String == "" {
				logger.WarnDroppedRule()
				logger.Warn("dropping malformed completion rule", "id", id)
				continue
			}
			completion = append(completion, CompletionRule{
				ID:          id,
				Name:        name,
				ApplyTo:     applyTo.String,
				TargetField: targetField.String,
				Expression:  expr.String,
				Priority:    priority,
				Active:      active,
			})
		case "validation":
			if expr.String == "" {
				logger.WarnDroppedRule()
				logger.Warn("dropping malformed validation rule", "id", id)
				continue
			}
			validation = append(validation, ValidationRule{
				ID:           id,
				Name:         name,
				ApplyTo:      applyTo.String,
				FieldPath:    fieldPath.String,
				Expression:   expr.String,
				ErrorMessage: errorMessage.String,
				Priority:     priority,
				Active:       active,
			})
		default:
			logger.WarnDroppedRule()
			logger.Warn("dropping rule with unknown rule_type", "id", id, "rule_type", ruleType)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating business_rules: %v", ErrConfig, err)
	}

	return newSnapshot(completion, validation), nil
}
