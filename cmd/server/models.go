package main

import (
	"time"

	"github.com/invoiceworks/ruleflow/domain"
	"github.com/invoiceworks/ruleflow/rules"
)

// InvoiceRequest is the request body for the invoice endpoints.
type InvoiceRequest struct {
	Invoice *domain.Invoice `json:"invoice"`
}

// ProcessResponse is the combined completion-plus-validation result.
type ProcessResponse struct {
	RunID          string                  `json:"run_id"`
	Document       *domain.Invoice         `json:"document"`
	ExecutionLog   []rules.LogEntry        `json:"execution_log"`
	Validation     *rules.ValidationReport `json:"validation"`
	ProcessingTime string                  `json:"processing_time"`
}

// CompleteResponse is the completion-only result.
type CompleteResponse struct {
	RunID          string           `json:"run_id"`
	Document       *domain.Invoice  `json:"document"`
	ExecutionLog   []rules.LogEntry `json:"execution_log"`
	ProcessingTime string           `json:"processing_time"`
}

// CheckExpressionRequest asks whether a rule expression compiles.
type CheckExpressionRequest struct {
	Expression string `json:"expression"`
}

// CheckExpressionResponse reports the compile outcome.
type CheckExpressionResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// RulesResponse lists the active rule snapshot.
type RulesResponse struct {
	Completion []rules.CompletionRule `json:"completion_rules"`
	Validation []rules.ValidationRule `json:"validation_rules"`
	LoadedAt   time.Time              `json:"loaded_at"`
}
