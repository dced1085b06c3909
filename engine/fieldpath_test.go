package engine

import (
	"errors"
	"testing"

	"github.com/invoiceworks/ruleflow/domain"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		scope     string
		field     string
		broadcast bool
		wantErr   bool
	}{
		{"header", "total_amount", "header", "total_amount", false, false},
		{"header with prefix", "invoice.currency", "header", "currency", false, false},
		{"camel case header", "invoiceNumber", "header", "invoice_number", false, false},
		{"supplier", "supplier.tax_no", "supplier", "tax_no", false, false},
		{"supplier camel case", "supplier.taxNo", "supplier", "tax_no", false, false},
		{"customer", "customer.standard_name", "customer", "standard_name", false, false},
		{"extensions", "extensions.anything_goes", "extensions", "anything_goes", false, false},
		{"broadcast", "items[].tax_rate", "items", "tax_rate", true, false},
		{"broadcast camel case", "items[].taxRate", "items", "tax_rate", true, false},
		{"unknown header", "bogus_field", "", "", false, true},
		{"unknown party field", "supplier.bogus", "", "", false, true},
		{"unknown item field", "items[].bogus", "", "", false, true},
		{"nested too deep", "supplier.address.city", "", "", false, true},
		{"empty", "", "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTarget(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrPath) {
					t.Errorf("parseTarget(%q): got err %v, want ErrPath", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTarget(%q) failed: %v", tt.raw, err)
			}
			if got.scope != tt.scope || got.field != tt.field || got.broadcast != tt.broadcast {
				t.Errorf("parseTarget(%q) = %+v", tt.raw, got)
			}
		})
	}
}

func TestWriteFieldHeader(t *testing.T) {
	doc := &domain.Invoice{}
	target, _ := parseTarget("total_amount")

	written, err := writeField(doc, target, 123.45)
	if err != nil {
		t.Fatalf("writeField() failed: %v", err)
	}
	if written != "total_amount" {
		t.Errorf("written path = %q", written)
	}
	if doc.TotalAmount != 123.45 {
		t.Errorf("TotalAmount = %v", doc.TotalAmount)
	}
}

func TestWriteFieldNumericStringCoerced(t *testing.T) {
	doc := &domain.Invoice{}
	target, _ := parseTarget("tax_rate")

	if _, err := writeField(doc, target, "0.13"); err != nil {
		t.Fatalf("writeField() failed: %v", err)
	}
	if doc.TaxRate != 0.13 {
		t.Errorf("TaxRate = %v, want 0.13", doc.TaxRate)
	}
}

func TestWriteFieldTypeMismatch(t *testing.T) {
	doc := &domain.Invoice{}
	target, _ := parseTarget("total_amount")

	if _, err := writeField(doc, target, "not a number"); !errors.Is(err, ErrPath) {
		t.Errorf("expected ErrPath for non-numeric write, got %v", err)
	}
}

func TestWriteFieldCreatesParty(t *testing.T) {
	doc := &domain.Invoice{}
	target, _ := parseTarget("supplier.taxNo")

	written, err := writeField(doc, target, "91000000000000000X")
	if err != nil {
		t.Fatalf("writeField() failed: %v", err)
	}
	if written != "supplier.tax_no" {
		t.Errorf("written path = %q", written)
	}
	if doc.Supplier == nil || doc.Supplier.TaxNo != "91000000000000000X" {
		t.Errorf("supplier = %+v", doc.Supplier)
	}
}

func TestWriteFieldExtensions(t *testing.T) {
	doc := &domain.Invoice{}
	target, _ := parseTarget("extensions.risk_score")

	if _, err := writeField(doc, target, 7.5); err != nil {
		t.Fatalf("writeField() failed: %v", err)
	}

	v, ok := doc.Extensions["risk_score"]
	if !ok || v.Kind != domain.KindNumber || v.Num != 7.5 {
		t.Errorf("extension = %+v", v)
	}
}

func TestWriteItemField(t *testing.T) {
	doc := &domain.Invoice{Items: []domain.Item{{Name: "a"}, {Name: "b"}}}

	written, err := writeItemField(doc, 1, "tax_rate", 0.06)
	if err != nil {
		t.Fatalf("writeItemField() failed: %v", err)
	}
	if written != "items[1].tax_rate" {
		t.Errorf("written path = %q", written)
	}
	if doc.Items[1].TaxRate != 0.06 {
		t.Errorf("TaxRate = %v", doc.Items[1].TaxRate)
	}
	if doc.Items[0].TaxRate != 0 {
		t.Error("wrong item written")
	}

	if _, err := writeItemField(doc, 5, "tax_rate", 0.06); !errors.Is(err, ErrPath) {
		t.Errorf("expected ErrPath for out-of-range index, got %v", err)
	}
	if _, err := writeItemField(doc, 0, "quantity", "many"); !errors.Is(err, ErrPath) {
		t.Errorf("expected ErrPath for non-numeric quantity, got %v", err)
	}
}

func TestCamelToSnake(t *testing.T) {
	tests := []struct{ in, want string }{
		{"taxNo", "tax_no"},
		{"invoiceNumber", "invoice_number"},
		{"already_snake", "already_snake"},
		{"name", "name"},
		{"TaxNo", "tax_no"},
	}
	for _, tt := range tests {
		if got := camelToSnake(tt.in); got != tt.want {
			t.Errorf("camelToSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
