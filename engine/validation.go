package engine

import (
	"context"
	"fmt"

	"github.com/invoiceworks/ruleflow/domain"
	"github.com/invoiceworks/ruleflow/internal/logger"
	"github.com/invoiceworks/ruleflow/rules"
)

// Validate checks the document against the validation rules without mutating
// it. A rule whose expression yields false records an error; a rule that
// cannot be evaluated at all records a warning instead — not knowing is a
// different failure class from a fact actually failing.
func (p *Processor) Validate(ctx context.Context, doc *domain.Invoice, ruleSet []rules.ValidationRule) *rules.ValidationReport {
	builder := NewContextBuilder(doc)
	vars := builder.Build()

	report := &rules.ValidationReport{
		Errors:   []rules.ValidationIssue{},
		Warnings: []rules.ValidationIssue{},
	}

	for _, rule := range ruleSet {
		if rule.ApplyTo != "" {
			applies, err := p.applies(ctx, rule.ApplyTo, vars)
			if err != nil {
				logger.WarnRuleEval()
				report.Warnings = append(report.Warnings, issue(rule, fmt.Sprintf("condition could not be evaluated: %v", err)))
				continue
			}
			if !applies {
				continue
			}
		}

		ok, err := p.eval.EvaluateBool(ctx, rule.Expression, vars)
		if err != nil {
			logger.WarnRuleEval()
			report.Warnings = append(report.Warnings, issue(rule, fmt.Sprintf("rule could not be evaluated: %v", err)))
			continue
		}
		if !ok {
			msg := rule.ErrorMessage
			if msg == "" {
				msg = fmt.Sprintf("validation rule %s failed", rule.ID)
			}
			report.Errors = append(report.Errors, issue(rule, msg))
		}
	}

	report.Valid = len(report.Errors) == 0
	report.Summary = fmt.Sprintf("%d rules evaluated, %d errors, %d warnings",
		len(ruleSet), len(report.Errors), len(report.Warnings))
	return report
}

func issue(rule rules.ValidationRule, msg string) rules.ValidationIssue {
	return rules.ValidationIssue{
		RuleID:    rule.ID,
		Message:   msg,
		FieldPath: rule.FieldPath,
	}
}
