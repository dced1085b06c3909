package engine

import (
	"context"
	"fmt"

	"github.com/invoiceworks/ruleflow/domain"
	"github.com/invoiceworks/ruleflow/internal/logger"
	"github.com/invoiceworks/ruleflow/rules"
)

// CompletionResult is the outcome of one completion pass: the mutated
// working copy and one log entry per rule outcome.
type CompletionResult struct {
	Document *domain.Invoice  `json:"document"`
	Log      []rules.LogEntry `json:"execution_log"`
}

// Processor runs completion and validation passes over invoice documents.
// Stateless across runs; each pass gets its own working copy and context
// cache, so concurrent calls on different documents are safe.
type Processor struct {
	eval *Evaluator
}

// NewProcessor creates a processor over the given evaluator.
func NewProcessor(eval *Evaluator) *Processor {
	return &Processor{eval: eval}
}

// Complete runs the completion rules against a working copy of the document.
// Rules execute strictly in snapshot order; any failure is confined to its
// rule and logged, never aborting the pass. The input document is not
// mutated.
func (p *Processor) Complete(ctx context.Context, doc *domain.Invoice, ruleSet []rules.CompletionRule) *CompletionResult {
	work := doc.Clone()
	builder := NewContextBuilder(work)
	log := make([]rules.LogEntry, 0, len(ruleSet))

	for _, rule := range ruleSet {
		target, err := parseTarget(rule.TargetField)
		if err != nil {
			log = append(log, failedEntry(rule, rule.TargetField, nil, err))
			continue
		}

		if target.broadcast {
			log = append(log, p.completeBroadcast(ctx, work, builder, rule, target)...)
			continue
		}

		vars := builder.Build()

		if rule.ApplyTo != "" {
			applies, err := p.applies(ctx, rule.ApplyTo, vars)
			if err != nil {
				log = append(log, errorEntry(rule, target.raw, nil, err))
				continue
			}
			if !applies {
				log = append(log, skippedEntry(rule, target.raw, nil))
				continue
			}
		}

		value, err := p.eval.Evaluate(ctx, rule.Expression, vars)
		if err != nil {
			log = append(log, errorEntry(rule, target.raw, nil, err))
			continue
		}

		written, err := writeField(work, target, value)
		if err != nil {
			log = append(log, failedEntry(rule, target.raw, nil, err))
			continue
		}

		// Later rules may read this write, so the cached context must go
		// stale now.
		work.Touch()
		log = append(log, successEntry(rule, written, nil, value))
	}

	return &CompletionResult{Document: work, Log: log}
}

// completeBroadcast fans one items[].<f> rule out over every line item. The
// apply_to condition is re-evaluated per item with that item bound, so a
// per-item predicate selects exactly the items it matches.
func (p *Processor) completeBroadcast(ctx context.Context, work *domain.Invoice, builder *ContextBuilder, rule rules.CompletionRule, target targetPath) []rules.LogEntry {
	if len(work.Items) == 0 {
		return []rules.LogEntry{skippedEntry(rule, target.raw, nil)}
	}

	entries := make([]rules.LogEntry, 0, len(work.Items))
	for i := range work.Items {
		index := i
		vars := builder.BuildForItem(index)

		if rule.ApplyTo != "" {
			applies, err := p.applies(ctx, rule.ApplyTo, vars)
			if err != nil {
				entries = append(entries, errorEntry(rule, target.raw, &index, err))
				continue
			}
			if !applies {
				entries = append(entries, skippedEntry(rule, fmt.Sprintf("items[%d].%s", index, target.field), &index))
				continue
			}
		}

		value, err := p.eval.Evaluate(ctx, rule.Expression, vars)
		if err != nil {
			entries = append(entries, errorEntry(rule, target.raw, &index, err))
			continue
		}

		written, err := writeItemField(work, index, target.field, value)
		if err != nil {
			entries = append(entries, failedEntry(rule, fmt.Sprintf("items[%d].%s", index, target.field), &index, err))
			continue
		}

		work.Touch()
		entries = append(entries, successEntry(rule, written, &index, value))
	}
	return entries
}

// applies evaluates an apply_to condition with truthy semantics.
func (p *Processor) applies(ctx context.Context, expr string, vars map[string]any) (bool, error) {
	v, err := p.eval.Evaluate(ctx, expr, vars)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func successEntry(rule rules.CompletionRule, fieldPath string, itemIndex *int, value any) rules.LogEntry {
	return rules.LogEntry{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Status:    rules.StatusSuccess,
		FieldPath: fieldPath,
		ItemIndex: itemIndex,
		Value:     value,
		Message:   fmt.Sprintf("wrote %s", fieldPath),
	}
}

func skippedEntry(rule rules.CompletionRule, fieldPath string, itemIndex *int) rules.LogEntry {
	return rules.LogEntry{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Status:    rules.StatusSkipped,
		FieldPath: fieldPath,
		ItemIndex: itemIndex,
		Message:   "condition not met",
	}
}

func failedEntry(rule rules.CompletionRule, fieldPath string, itemIndex *int, err error) rules.LogEntry {
	return rules.LogEntry{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Status:    rules.StatusFailed,
		FieldPath: fieldPath,
		ItemIndex: itemIndex,
		Error:     err.Error(),
		Message:   fmt.Sprintf("could not write %s", fieldPath),
	}
}

func errorEntry(rule rules.CompletionRule, fieldPath string, itemIndex *int, err error) rules.LogEntry {
	logger.WarnRuleEval()
	return rules.LogEntry{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Status:    rules.StatusError,
		FieldPath: fieldPath,
		ItemIndex: itemIndex,
		Error:     err.Error(),
		Message:   "rule evaluation failed",
	}
}
