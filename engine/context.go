package engine

import (
	"sync"

	"github.com/invoiceworks/ruleflow/domain"
)

// noItem marks a context built without a bound line item.
const noItem = -1

// ContextBuilder turns an invoice into the string-keyed map tree rule
// expressions evaluate against. The last context is memoized per (document
// version, bound item index); a Touch on the document invalidates it.
//
// The supplier, customer, extensions and items keys are always materialized,
// even when empty, so has() probes on them never error.
type ContextBuilder struct {
	mu        sync.Mutex
	doc       *domain.Invoice
	version   uint64
	itemIndex int
	cached    map[string]any
}

// NewContextBuilder creates a builder for one document processing run.
func NewContextBuilder(doc *domain.Invoice) *ContextBuilder {
	return &ContextBuilder{doc: doc, itemIndex: noItem}
}

// Build returns the evaluation context without a bound item.
func (b *ContextBuilder) Build() map[string]any {
	return b.build(noItem)
}

// BuildForItem returns the evaluation context with items[index] bound to the
// top-level item variable. An out-of-range index binds item to nil.
func (b *ContextBuilder) BuildForItem(index int) map[string]any {
	return b.build(index)
}

func (b *ContextBuilder) build(itemIndex int) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := b.doc.Version()
	if b.cached != nil && b.version == v && b.itemIndex == itemIndex {
		return b.cached
	}

	ctx := invoiceToMap(b.doc)
	vars := map[string]any{
		"invoice": ctx,
		"company": map[string]any{},
		"item":    nil,
	}
	if itemIndex >= 0 && itemIndex < len(b.doc.Items) {
		vars["item"] = itemToMap(&b.doc.Items[itemIndex])
	}

	b.cached = vars
	b.version = v
	b.itemIndex = itemIndex
	return vars
}

// invoiceToMap flattens the document into the rule vocabulary: snake_case
// keys, all amounts as float64.
func invoiceToMap(inv *domain.Invoice) map[string]any {
	m := map[string]any{
		"invoice_number":   inv.InvoiceNumber,
		"issue_date":       inv.IssueDate,
		"due_date":         inv.DueDate,
		"total_amount":     inv.TotalAmount,
		"tax_amount":       inv.TaxAmount,
		"net_amount":       inv.NetAmount,
		"tax_rate":         inv.TaxRate,
		"currency":         inv.Currency,
		"country":          inv.Country,
		"status":           inv.Status,
		"invoice_type":     inv.InvoiceType,
		"payment_terms":    inv.PaymentTerms,
		"reference_number": inv.ReferenceNumber,
		"notes":            inv.Notes,
		"item_count":       len(inv.Items),
	}

	m["supplier"] = partyToMap(inv.Supplier)
	m["customer"] = partyToMap(inv.Customer)

	items := make([]any, 0, len(inv.Items))
	for i := range inv.Items {
		items = append(items, itemToMap(&inv.Items[i]))
	}
	m["items"] = items

	ext := map[string]any{}
	for k, v := range inv.Extensions {
		ext[k] = v.Interface()
	}
	m["extensions"] = ext

	return m
}

func partyToMap(p *domain.Party) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	m := map[string]any{
		"name":                    p.Name,
		"standard_name":           p.StandardName,
		"tax_no":                  p.TaxNo,
		"phone":                   p.Phone,
		"email":                   p.Email,
		"bank_account":            p.BankAccount,
		"bank_name":               p.BankName,
		"company_type":            p.CompanyType,
		"company_scale":           p.CompanyScale,
		"industry_classification": p.IndustryClassification,
		"company_status":          p.CompanyStatus,
	}
	if p.Address != nil {
		m["address"] = map[string]any{
			"street":      p.Address.Street,
			"city":        p.Address.City,
			"state":       p.Address.State,
			"postal_code": p.Address.PostalCode,
			"country":     p.Address.Country,
			"district":    p.Address.District,
			"detail":      p.Address.Detail,
		}
	} else {
		m["address"] = map[string]any{}
	}
	return m
}

func itemToMap(it *domain.Item) map[string]any {
	m := map[string]any{
		"name":         it.Name,
		"description":  it.Description,
		"quantity":     it.Quantity,
		"unit_price":   it.UnitPrice,
		"line_total":   it.LineTotal,
		"tax_rate":     it.TaxRate,
		"tax_amount":   it.TaxAmount,
		"tax_category": it.TaxCategory,
		"amount":       it.Amount,
		"unit":         it.Unit,
		"product_code": it.ProductCode,
		"category":     it.Category,
	}
	for k, v := range it.Attributes {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return m
}
