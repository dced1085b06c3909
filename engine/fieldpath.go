package engine

import (
	"fmt"
	"strings"

	"github.com/invoiceworks/ruleflow/domain"
)

// targetPath is a parsed completion target. Broadcast targets (items[].<f>)
// fan out per line item; the rest address one location in the document.
type targetPath struct {
	raw       string
	broadcast bool
	scope     string // "header", "supplier", "customer" or "extensions"
	field     string
}

// parseTarget normalizes a rule's target_field. An optional invoice. prefix
// is tolerated so rule text can use the same vocabulary it reads with, and
// camelCase leaf names are rewritten to the snake_case vocabulary.
func parseTarget(raw string) (targetPath, error) {
	path := strings.TrimSpace(raw)
	path = strings.TrimPrefix(path, "invoice.")
	if path == "" {
		return targetPath{}, pathErr(raw)
	}

	if rest, ok := strings.CutPrefix(path, "items[]."); ok {
		if rest == "" || strings.Contains(rest, ".") {
			return targetPath{}, pathErr(raw)
		}
		field := camelToSnake(rest)
		if _, known := itemFieldKinds[field]; !known {
			return targetPath{}, pathErr(raw)
		}
		return targetPath{raw: raw, broadcast: true, scope: "items", field: field}, nil
	}

	switch {
	case strings.HasPrefix(path, "supplier."), strings.HasPrefix(path, "customer."):
		scope, rest, _ := strings.Cut(path, ".")
		if rest == "" || strings.Contains(rest, ".") {
			return targetPath{}, pathErr(raw)
		}
		field := camelToSnake(rest)
		if _, known := partyFieldKinds[field]; !known {
			return targetPath{}, pathErr(raw)
		}
		return targetPath{raw: raw, scope: scope, field: field}, nil
	case strings.HasPrefix(path, "extensions."):
		key := strings.TrimPrefix(path, "extensions.")
		if key == "" {
			return targetPath{}, pathErr(raw)
		}
		return targetPath{raw: raw, scope: "extensions", field: key}, nil
	default:
		if strings.Contains(path, ".") {
			return targetPath{}, pathErr(raw)
		}
		field := camelToSnake(path)
		if _, known := headerFieldKinds[field]; !known {
			return targetPath{}, pathErr(raw)
		}
		return targetPath{raw: raw, scope: "header", field: field}, nil
	}
}

// camelToSnake rewrites camelCase field names to the snake_case vocabulary
// the context exposes. Already-snake_case input passes through unchanged.
func camelToSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fieldKind says what value type a field accepts.
type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
)

var headerFieldKinds = map[string]fieldKind{
	"invoice_number":   kindString,
	"issue_date":       kindString,
	"due_date":         kindString,
	"currency":         kindString,
	"country":          kindString,
	"status":           kindString,
	"invoice_type":     kindString,
	"payment_terms":    kindString,
	"reference_number": kindString,
	"notes":            kindString,
	"total_amount":     kindNumber,
	"tax_amount":       kindNumber,
	"net_amount":       kindNumber,
	"tax_rate":         kindNumber,
}

var partyFieldKinds = map[string]fieldKind{
	"name":                    kindString,
	"standard_name":           kindString,
	"tax_no":                  kindString,
	"tax_number":              kindString, // alias for tax_no
	"phone":                   kindString,
	"email":                   kindString,
	"bank_account":            kindString,
	"bank_name":               kindString,
	"company_type":            kindString,
	"company_scale":           kindString,
	"industry_classification": kindString,
	"company_status":          kindString,
	"address":                 kindString,
}

var itemFieldKinds = map[string]fieldKind{
	"name":         kindString,
	"description":  kindString,
	"tax_category": kindString,
	"unit":         kindString,
	"product_code": kindString,
	"category":     kindString,
	"quantity":     kindNumber,
	"unit_price":   kindNumber,
	"line_total":   kindNumber,
	"tax_rate":     kindNumber,
	"tax_amount":   kindNumber,
	"amount":       kindNumber,
}

// writeField writes a coerced value through a non-broadcast target path and
// returns the concrete path written for logging. The document version is not
// bumped here; the caller decides when a write counts as a mutation.
func writeField(doc *domain.Invoice, path targetPath, value any) (string, error) {
	v := domain.ValueFrom(value)

	switch path.scope {
	case "header":
		if err := writeHeader(doc, path.field, v); err != nil {
			return "", err
		}
		return path.field, nil
	case "supplier":
		if doc.Supplier == nil {
			doc.Supplier = &domain.Party{}
		}
		if err := writeParty(doc.Supplier, path.field, v); err != nil {
			return "", err
		}
		return "supplier." + path.field, nil
	case "customer":
		if doc.Customer == nil {
			doc.Customer = &domain.Party{}
		}
		if err := writeParty(doc.Customer, path.field, v); err != nil {
			return "", err
		}
		return "customer." + path.field, nil
	case "extensions":
		if doc.Extensions == nil {
			doc.Extensions = domain.Extensions{}
		}
		doc.Extensions[path.field] = v
		return "extensions." + path.field, nil
	default:
		return "", pathErr(path.raw)
	}
}

// writeItemField writes one broadcast value into items[index].
func writeItemField(doc *domain.Invoice, index int, field string, value any) (string, error) {
	if index < 0 || index >= len(doc.Items) {
		return "", pathErr(fmt.Sprintf("items[%d].%s", index, field))
	}
	v := domain.ValueFrom(value)
	written := fmt.Sprintf("items[%d].%s", index, field)

	it := &doc.Items[index]
	kind := itemFieldKinds[field]
	if kind == kindNumber && v.Kind != domain.KindNumber {
		return "", fmt.Errorf("%w: %s requires a numeric value, got %s", ErrPath, written, v.String())
	}

	switch field {
	case "name":
		it.Name = v.String()
	case "description":
		it.Description = v.String()
	case "tax_category":
		it.TaxCategory = v.String()
	case "unit":
		it.Unit = v.String()
	case "product_code":
		it.ProductCode = v.String()
	case "category":
		it.Category = v.String()
	case "quantity":
		it.Quantity = v.Num
	case "unit_price":
		it.UnitPrice = v.Num
	case "line_total":
		it.LineTotal = v.Num
	case "tax_rate":
		it.TaxRate = v.Num
	case "tax_amount":
		it.TaxAmount = v.Num
	case "amount":
		it.Amount = v.Num
	default:
		return "", pathErr(written)
	}
	return written, nil
}

func writeHeader(doc *domain.Invoice, field string, v domain.Value) error {
	if headerFieldKinds[field] == kindNumber && v.Kind != domain.KindNumber {
		return fmt.Errorf("%w: %s requires a numeric value, got %s", ErrPath, field, v.String())
	}

	switch field {
	case "invoice_number":
		doc.InvoiceNumber = v.String()
	case "issue_date":
		doc.IssueDate = v.String()
	case "due_date":
		doc.DueDate = v.String()
	case "currency":
		doc.Currency = v.String()
	case "country":
		doc.Country = v.String()
	case "status":
		doc.Status = v.String()
	case "invoice_type":
		doc.InvoiceType = v.String()
	case "payment_terms":
		doc.PaymentTerms = v.String()
	case "reference_number":
		doc.ReferenceNumber = v.String()
	case "notes":
		doc.Notes = v.String()
	case "total_amount":
		doc.TotalAmount = v.Num
	case "tax_amount":
		doc.TaxAmount = v.Num
	case "net_amount":
		doc.NetAmount = v.Num
	case "tax_rate":
		doc.TaxRate = v.Num
	default:
		return pathErr(field)
	}
	return nil
}

func writeParty(p *domain.Party, field string, v domain.Value) error {
	switch field {
	case "name":
		p.Name = v.String()
	case "standard_name":
		p.StandardName = v.String()
	case "tax_no", "tax_number":
		p.TaxNo = v.String()
	case "phone":
		p.Phone = v.String()
	case "email":
		p.Email = v.String()
	case "bank_account":
		p.BankAccount = v.String()
	case "bank_name":
		p.BankName = v.String()
	case "company_type":
		p.CompanyType = v.String()
	case "company_scale":
		p.CompanyScale = v.String()
	case "industry_classification":
		p.IndustryClassification = v.String()
	case "company_status":
		p.CompanyStatus = v.String()
	case "address":
		if p.Address == nil {
			p.Address = &domain.Address{}
		}
		p.Address.Detail = v.String()
	default:
		return pathErr(field)
	}
	return nil
}
