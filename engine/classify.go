package engine

import "strings"

// ProductInfo is the record returned by get_product_info.
type ProductInfo struct {
	StandardName string
	TaxRate      float64
	TaxCategory  string
	CategoryCode string
}

// Classifier backs the classification functions exposed to rule expressions.
// Implementations must never return an error for unknown input; they fall
// back to their documented defaults instead, so rule evaluation stays total.
type Classifier interface {
	// TaxRate returns the tax rate for a product description.
	TaxRate(description string) float64

	// TaxCategory returns the tax category label for a product description.
	TaxCategory(description string) string

	// StandardName returns the normalized product name for a description.
	StandardName(description string) string

	// ProductInfo returns the full classification record for a description.
	ProductInfo(description string) ProductInfo
}

// KeywordClassifier is the default Classifier: keyword matching against the
// product description. Stands in for the external classification service.
type KeywordClassifier struct{}

func (KeywordClassifier) TaxRate(description string) float64 {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "food"):
		return 0.06
	case strings.Contains(d, "service"):
		return 0.13
	default:
		return 0.13
	}
}

func (KeywordClassifier) TaxCategory(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "food"):
		return "FOOD"
	case strings.Contains(d, "service"):
		return "SERVICE"
	default:
		return "VAT_SPECIAL"
	}
}

func (KeywordClassifier) StandardName(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "accommodation"), strings.Contains(d, "hotel"):
		return "Accommodation"
	case strings.Contains(d, "catering"), strings.Contains(d, "meal"):
		return "Catering"
	case strings.Contains(d, "parking"):
		return "Parking"
	default:
		return "Accommodation"
	}
}

func (c KeywordClassifier) ProductInfo(description string) ProductInfo {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "catering"), strings.Contains(d, "meal"):
		return ProductInfo{
			StandardName: "Catering",
			TaxRate:      0.06,
			TaxCategory:  "VAT_GENERAL",
			CategoryCode: "CATERING",
		}
	case strings.Contains(d, "parking"):
		return ProductInfo{
			StandardName: "Parking",
			TaxRate:      0.09,
			TaxCategory:  "REAL_ESTATE_LEASE",
			CategoryCode: "PARKING",
		}
	default:
		return ProductInfo{
			StandardName: "Accommodation",
			TaxRate:      0.13,
			TaxCategory:  "VAT_SPECIAL",
			CategoryCode: "ACCOMMODATION",
		}
	}
}

// asMap renders the record the way rule expressions consume it.
func (p ProductInfo) asMap() map[string]any {
	return map[string]any{
		"standard_name": p.StandardName,
		"tax_rate":      p.TaxRate,
		"tax_category":  p.TaxCategory,
		"category_code": p.CategoryCode,
	}
}
