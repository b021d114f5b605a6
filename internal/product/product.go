package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue entry. Catalogue editing is handled elsewhere;
// orders only check existence and show a summary.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	Category     string          `json:"category,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Summary is the slice of a product shown next to an order line.
type Summary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	Category     string          `json:"category,omitempty"`
}

func (p Product) Summary() Summary {
	return Summary{
		ID:           p.ID,
		Name:         p.Name,
		SellingPrice: p.SellingPrice,
		ImageURL:     p.ImageURL,
		Category:     p.Category,
	}
}
