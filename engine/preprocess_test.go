package engine

import (
	"context"
	"testing"

	"github.com/invoiceworks/ruleflow/lookup"
)

func testLookupSource() lookup.Adapter {
	return lookup.NewStaticSource(map[string][]map[string]any{
		"companies": {
			{"name": "Acme", "tax_number": "123456789", "category": "TRAVEL_SERVICE"},
		},
		"tax_rates": {
			{"category": "FOOD", "rate": 0.06},
		},
	})
}

func TestRewriteLookups(t *testing.T) {
	src := testLookupSource()
	vars := map[string]any{
		"invoice": map[string]any{
			"supplier": map[string]any{"name": "Acme"},
		},
	}
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		want string
	}{
		{
			"path condition",
			`db.companies.tax_number[name=invoice.supplier.name]`,
			`"123456789"`,
		},
		{
			"quoted condition",
			`db.companies.category[name="Acme"] == 'TRAVEL_SERVICE'`,
			`"TRAVEL_SERVICE" == 'TRAVEL_SERVICE'`,
		},
		{
			"single-quoted condition",
			`db.tax_rates.rate[category='FOOD']`,
			`0.06`,
		},
		{
			"multiple occurrences",
			`db.companies.tax_number[name="Acme"] != '' && db.tax_rates.rate[category="FOOD"] > 0.0`,
			`"123456789" != '' && 0.06 > 0.0`,
		},
		{
			"no match falls back to default",
			`db.companies.tax_number[name="Nobody"]`,
			`""`,
		},
		{
			"no occurrences",
			`invoice.total_amount > 0.0`,
			`invoice.total_amount > 0.0`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rewriteLookups(ctx, tt.expr, vars, src)
			if err != nil {
				t.Fatalf("rewriteLookups(%q) failed: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("rewriteLookups(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseConditions(t *testing.T) {
	vars := map[string]any{
		"invoice": map[string]any{
			"supplier": map[string]any{"name": "Acme"},
			"country":  "CN",
		},
	}

	conds := parseConditions(`name=invoice.supplier.name, status="ACTIVE", country=invoice.country`, vars)

	if len(conds) != 3 {
		t.Fatalf("got %d conditions, want 3", len(conds))
	}
	if conds["name"] != "Acme" {
		t.Errorf("name = %v, want Acme", conds["name"])
	}
	if conds["status"] != "ACTIVE" {
		t.Errorf("status = %v, want ACTIVE", conds["status"])
	}
	if conds["country"] != "CN" {
		t.Errorf("country = %v, want CN", conds["country"])
	}
}

func TestParseConditionsIgnoresMalformedPairs(t *testing.T) {
	conds := parseConditions(`name="Acme", broken, =nope`, map[string]any{})
	if len(conds) != 1 {
		t.Errorf("got %d conditions, want 1: %v", len(conds), conds)
	}
}

func TestResolveValueUnknownPath(t *testing.T) {
	if v := resolveValue("invoice.missing.path", map[string]any{"invoice": map[string]any{}}); v != nil {
		t.Errorf("unresolvable path = %v, want nil", v)
	}
}

func TestCelLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"bool", true, "true"},
		{"string", `say "hi"`, `"say \"hi\""`},
		{"fraction", 0.06, "0.06"},
		{"whole float", 12.0, "12.0"},
		{"int", 42, "42.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := celLiteral(tt.in); got != tt.want {
				t.Errorf("celLiteral(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
