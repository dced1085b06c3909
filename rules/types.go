// Package rules defines the rule records the engines execute and the stores
// that load them from configuration.
package rules

import "time"

// CompletionRule computes and writes a document field when its condition
// holds.
type CompletionRule struct {
	ID          string `json:"id"`
	Name        string `json:"rule_name"`
	ApplyTo     string `json:"apply_to,omitempty"`
	TargetField string `json:"target_field"`
	Expression  string `json:"rule_expression"`
	Priority    int    `json:"priority"`
	Active      bool   `json:"active"`
}

// ValidationRule checks a boolean condition and records an error when it
// fails. FieldPath is diagnostic only; the engine never writes through it.
type ValidationRule struct {
	ID           string `json:"id"`
	Name         string `json:"rule_name"`
	ApplyTo      string `json:"apply_to,omitempty"`
	FieldPath    string `json:"field_path,omitempty"`
	Expression   string `json:"rule_expression"`
	ErrorMessage string `json:"error_message,omitempty"`
	Priority     int    `json:"priority"`
	Active       bool   `json:"active"`
}

// Status is the terminal outcome of one rule execution.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
	StatusError   Status = "ERROR"
)

// LogEntry records one rule outcome. Broadcast rules produce one entry per
// line item, carrying the item's index in both ItemIndex and FieldPath.
type LogEntry struct {
	RuleID    string `json:"rule_id"`
	RuleName  string `json:"rule_name"`
	Status    Status `json:"status"`
	FieldPath string `json:"field_path,omitempty"`
	ItemIndex *int   `json:"item_index,omitempty"`
	Value     any    `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message"`
}

// ValidationIssue is one recorded validation error or warning.
type ValidationIssue struct {
	RuleID    string `json:"rule_id"`
	Message   string `json:"message"`
	FieldPath string `json:"field_path,omitempty"`
}

// ValidationReport aggregates every issue found in one validation pass.
// Errors are facts that failed; warnings are rules that could not be
// evaluated.
type ValidationReport struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
	Summary  string            `json:"summary"`
}

// Snapshot is one immutable rule set: active rules only, ordered by priority
// descending with load order breaking ties. Engines hold a snapshot for the
// whole of a document run.
type Snapshot struct {
	Completion []CompletionRule
	Validation []ValidationRule
	LoadedAt   time.Time
}
