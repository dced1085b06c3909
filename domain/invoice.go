// Package domain holds the invoice document model that completion and
// validation rules read and mutate. The model mirrors the wire format the
// document converter produces: snake_case JSON field names, decimal amounts
// as float64, dates as ISO-8601 strings.
package domain

// Invoice is the domain document one processing run operates on.
//
// A run never mutates its input: the completion engine clones the document
// and mutates the clone. The unexported version counter is bumped on every
// successful field write so context construction can cache against it.
type Invoice struct {
	InvoiceNumber   string     `json:"invoice_number"`
	IssueDate       string     `json:"issue_date,omitempty"`
	DueDate         string     `json:"due_date,omitempty"`
	TotalAmount     float64    `json:"total_amount"`
	TaxAmount       float64    `json:"tax_amount,omitempty"`
	NetAmount       float64    `json:"net_amount,omitempty"`
	TaxRate         float64    `json:"tax_rate,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Country         string     `json:"country,omitempty"`
	Status          string     `json:"status,omitempty"`
	InvoiceType     string     `json:"invoice_type,omitempty"`
	PaymentTerms    string     `json:"payment_terms,omitempty"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Supplier        *Party     `json:"supplier,omitempty"`
	Customer        *Party     `json:"customer,omitempty"`
	Items           []Item     `json:"items,omitempty"`
	Extensions      Extensions `json:"extensions,omitempty"`

	version uint64
}

// Party is a supplier or customer attached to an invoice.
type Party struct {
	Name                   string   `json:"name,omitempty"`
	StandardName           string   `json:"standard_name,omitempty"`
	TaxNo                  string   `json:"tax_no,omitempty"`
	Address                *Address `json:"address,omitempty"`
	Phone                  string   `json:"phone,omitempty"`
	Email                  string   `json:"email,omitempty"`
	BankAccount            string   `json:"bank_account,omitempty"`
	BankName               string   `json:"bank_name,omitempty"`
	CompanyType            string   `json:"company_type,omitempty"`
	CompanyScale           string   `json:"company_scale,omitempty"`
	IndustryClassification string   `json:"industry_classification,omitempty"`
	CompanyStatus          string   `json:"company_status,omitempty"`
}

// Address is a party's location.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	District   string `json:"district,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Item is a single invoice line.
type Item struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Quantity    float64           `json:"quantity,omitempty"`
	UnitPrice   float64           `json:"unit_price,omitempty"`
	LineTotal   float64           `json:"line_total,omitempty"`
	TaxRate     float64           `json:"tax_rate,omitempty"`
	TaxAmount   float64           `json:"tax_amount,omitempty"`
	TaxCategory string            `json:"tax_category,omitempty"`
	Amount      float64           `json:"amount,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	ProductCode string            `json:"product_code,omitempty"`
	Category    string            `json:"category,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Version returns the mutation counter for this document instance.
func (inv *Invoice) Version() uint64 {
	return inv.version
}

// Touch marks the document as mutated, invalidating any context built
// against the previous version.
func (inv *Invoice) Touch() {
	inv.version++
}

// Clone returns a deep copy of the invoice. The copy starts at version zero;
// its version history is independent of the original's.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.version = 0
	out.Supplier = inv.Supplier.clone()
	out.Customer = inv.Customer.clone()
	if inv.Items != nil {
		out.Items = make([]Item, len(inv.Items))
		for i, it := range inv.Items {
			out.Items[i] = it
			if it.Attributes != nil {
				attrs := make(map[string]string, len(it.Attributes))
				for k, v := range it.Attributes {
					attrs[k] = v
				}
				out.Items[i].Attributes = attrs
			}
		}
	}
	if inv.Extensions != nil {
		out.Extensions = make(Extensions, len(inv.Extensions))
		for k, v := range inv.Extensions {
			out.Extensions[k] = v
		}
	}
	return &out
}

func (p *Party) clone() *Party {
	if p == nil {
		return nil
	}
	out := *p
	if p.Address != nil {
		addr := *p.Address
		out.Address = &addr
	}
	return &out
}

// CalculateNetAmount derives the net amount from total and tax when both are
// present; with no tax recorded it falls back to the total.
func (inv *Invoice) CalculateNetAmount() float64 {
	if inv.TaxAmount == 0 {
		return inv.TotalAmount
	}
	return inv.TotalAmount - inv.TaxAmount
}

// ItemCount returns the number of line items.
func (inv *Invoice) ItemCount() int {
	return len(inv.Items)
}

// CalculateLineTotal derives the line total from quantity and unit price.
func (it *Item) CalculateLineTotal() float64 {
	return it.Quantity * it.UnitPrice
}

// CalculateTaxAmount derives the tax amount from the line total and tax rate.
func (it *Item) CalculateTaxAmount() float64 {
	return it.CalculateLineTotal() * it.TaxRate
}

// HasTaxNo reports whether the party carries a non-empty tax number.
func (p *Party) HasTaxNo() bool {
	return p != nil && p.TaxNo != ""
}
