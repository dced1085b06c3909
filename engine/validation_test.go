package engine

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/invoiceworks/ruleflow/domain"
	"github.com/invoiceworks/ruleflow/rules"
)

func TestValidateReportsErrors(t *testing.T) {
	doc := &domain.Invoice{InvoiceNumber: "INV-001", TotalAmount: -5}
	ruleSet := []rules.ValidationRule{
		{ID: "positive-total", Name: "positive total", FieldPath: "total_amount", Expression: `invoice.total_amount > 0.0`, ErrorMessage: "total must be positive", Priority: 100, Active: true},
		{ID: "has-number", Name: "has number", Expression: `invoice.invoice_number != ''`, Priority: 50, Active: true},
	}

	p := newTestProcessor(t)
	report := p.Validate(context.Background(), doc, ruleSet)

	if report.Valid {
		t.Error("report should be invalid")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(report.Errors))
	}
	if report.Errors[0].Message != "total must be positive" {
		t.Errorf("error message = %q", report.Errors[0].Message)
	}
	if report.Errors[0].FieldPath != "total_amount" {
		t.Errorf("field path = %q", report.Errors[0].FieldPath)
	}
	if !strings.Contains(report.Summary, "1 errors") {
		t.Errorf("summary = %q", report.Summary)
	}
}

func TestValidateEvalErrorBecomesWarning(t *testing.T) {
	doc := &domain.Invoice{TotalAmount: 100}
	ruleSet := []rules.ValidationRule{
		{ID: "broken", Name: "broken rule", Expression: `invoice.no_such_key == 'x'`, Priority: 100, Active: true},
		{ID: "fine", Name: "fine rule", Expression: `invoice.total_amount > 0.0`, Priority: 50, Active: true},
	}

	p := newTestProcessor(t)
	report := p.Validate(context.Background(), doc, ruleSet)

	if !report.Valid {
		t.Error("warnings alone should not invalidate the document")
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(report.Warnings))
	}
	if report.Warnings[0].RuleID != "broken" {
		t.Errorf("warning rule = %s", report.Warnings[0].RuleID)
	}
	if len(report.Errors) != 0 {
		t.Errorf("errors = %+v, want none", report.Errors)
	}
}

func TestValidateNonBooleanBecomesWarning(t *testing.T) {
	doc := &domain.Invoice{InvoiceNumber: "INV-001"}
	ruleSet := []rules.ValidationRule{
		{ID: "not-bool", Name: "yields string", Expression: `invoice.invoice_number`, Priority: 50, Active: true},
	}

	p := newTestProcessor(t)
	report := p.Validate(context.Background(), doc, ruleSet)

	if len(report.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(report.Warnings))
	}
	if !report.Valid {
		t.Error("non-boolean rule should warn, not error")
	}
}

func TestValidateApplyToSkips(t *testing.T) {
	doc := &domain.Invoice{Country: "US", Supplier: &domain.Party{}}
	ruleSet := []rules.ValidationRule{
		{ID: "cn-only", Name: "CN tax number", ApplyTo: `invoice.country == 'CN'`, Expression: `invoice.supplier.tax_no != ''`, Priority: 50, Active: true},
	}

	p := newTestProcessor(t)
	report := p.Validate(context.Background(), doc, ruleSet)

	if !report.Valid || len(report.Errors) != 0 || len(report.Warnings) != 0 {
		t.Errorf("skipped rule produced output: %+v", report)
	}
}

func TestValidateDefaultErrorMessage(t *testing.T) {
	doc := &domain.Invoice{}
	ruleSet := []rules.ValidationRule{
		{ID: "no-message", Name: "nameless check", Expression: `invoice.total_amount > 0.0`, Priority: 50, Active: true},
	}

	p := newTestProcessor(t)
	report := p.Validate(context.Background(), doc, ruleSet)

	if len(report.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(report.Errors))
	}
	if !strings.Contains(report.Errors[0].Message, "no-message") {
		t.Errorf("generated message = %q, should name the rule", report.Errors[0].Message)
	}
}

func TestValidateNeverMutates(t *testing.T) {
	doc := &domain.Invoice{
		InvoiceNumber: "INV-001",
		TotalAmount:   100,
		Country:       "CN",
		Supplier:      &domain.Party{Name: "Acme"},
		Items:         []domain.Item{{Name: "widget", Category: "food"}},
		Extensions:    domain.Extensions{"flag": domain.BoolValue(true)},
	}
	before := doc.Clone()

	ruleSet := []rules.ValidationRule{
		{ID: "r1", Name: "total", Expression: `invoice.total_amount > 0.0`, Priority: 100, Active: true},
		{ID: "r2", Name: "fails", Expression: `invoice.total_amount > 5000.0`, Priority: 90, Active: true},
		{ID: "r3", Name: "broken", Expression: `invoice.missing == 1`, Priority: 80, Active: true},
	}

	p := newTestProcessor(t)
	p.Validate(context.Background(), doc, ruleSet)

	if !reflect.DeepEqual(doc, before) {
		t.Error("Validate mutated the document")
	}
}
