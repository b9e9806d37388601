package types

import "strings"

// Variant describes a concrete product variation (size, color and similar
// attributes) snapshotted onto cart and order line items.
type Variant struct {
	SKU        string            `json:"sku,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Label renders the variant attributes as a short display string.
func (v Variant) Label() string {
	if len(v.Attributes) == 0 {
		return v.SKU
	}
	parts := make([]string, 0, len(v.Attributes))
	for key, value := range v.Attributes {
		parts = append(parts, key+"="+value)
	}
	return strings.Join(parts, ", ")
}
