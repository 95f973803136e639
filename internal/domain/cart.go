package domain

import "time"

type CartLine struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Subtotal is zero when the product reference could not be resolved.
func (l CartLine) Subtotal() int64 {
	if l.Product == nil {
		return 0
	}
	return int64(l.Quantity) * l.Product.Price
}
