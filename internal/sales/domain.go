package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// the backend reads and writes money as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Category is one of the fixed product categories.
type Category string

const (
	CategoryBeauty    Category = "Belleza"
	CategoryHealth    Category = "Salud"
	CategoryPerfumes  Category = "Perfumes"
	CategoryAccessory Category = "Accesorios"
	CategorySneakers  Category = "Tenis"
	CategoryShirts    Category = "Camisas/Camisetas"
	CategoryTrousers  Category = "Pantalones"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryHealth, CategoryBeauty, CategoryPerfumes, CategoryAccessory,
	CategorySneakers, CategoryShirts, CategoryTrousers,
}

// DefaultCategory is preselected for new products.
const DefaultCategory = CategoryHealth

// Valid reports whether c is one of Categories. The empty category is not valid;
// filters treat it as "all" on their own.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// PayType is the payment method of a sale.
type PayType string

const (
	PayTransfer PayType = "Transferencia"
	PayCash     PayType = "Efectivo"
	PayCard     PayType = "Tarjeta"
)

// DefaultPayType is used for every fresh draft.
const DefaultPayType = PayCash

func (p PayType) Valid() bool {
	switch p {
	case PayTransfer, PayCash, PayCard:
		return true
	}
	return false
}

// LowStockThreshold marks products that should be flagged in listings.
const LowStockThreshold = 5

// Picture is the image reference the backend stores for a product.
type Picture struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Product is a catalog entry as returned by the backend.
type Product struct {
	ID       string              `json:"_id,omitempty" validate:"required"`
	Name     string              `json:"name" validate:"required"`
	Category Category            `json:"category"`
	Price    decimal.NullDecimal `json:"price"`
	BuyPrice decimal.NullDecimal `json:"buyPrice"`
	Stock    *int                `json:"stock"`
	Picture  *Picture            `json:"picture,omitempty"`
	Code     int                 `json:"code,omitempty"`
	Created  *time.Time          `json:"created,omitempty"`
}

// LowStock reports whether the product has a known stock below LowStockThreshold.
func (p Product) LowStock() bool {
	return p.Stock != nil && *p.Stock < LowStockThreshold
}

// LineItem is one product's presence in a draft sale.
type LineItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal is price × quantity; a missing price or quantity contributes zero.
func (li LineItem) Subtotal() decimal.Decimal {
	if !li.Price.Valid || li.Quantity <= 0 {
		return decimal.Zero
	}
	return li.Price.Decimal.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Draft is the in-progress sale. It is serialized verbatim to local state.
type Draft struct {
	Products      []LineItem          `json:"products"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
	PayType       PayType             `json:"payType"`
	Created       time.Time           `json:"created"`
	MoneyReturned decimal.NullDecimal `json:"moneyReturned"`
	Consecutive   int                 `json:"consecutive,omitempty"`
	CustomTotal   decimal.NullDecimal `json:"customTotal"`
	// AttemptKey is sent as the idempotency key when the draft is submitted.
	AttemptKey string `json:"attemptKey,omitempty"`
}

// NewDraft returns an empty draft created at now.
func NewDraft(now time.Time) Draft {
	return Draft{
		Products:   []LineItem{},
		TotalPrice: decimal.Zero,
		PayType:    DefaultPayType,
		Created:    now,
		AttemptKey: uuid.NewString(),
	}
}

// LineTotal is the full linear recompute of Σ price×quantity.
func LineTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// EffectiveTotal is the amount the customer pays: the wholesale flat total when
// one is set, the line-item total otherwise.
func (d Draft) EffectiveTotal() decimal.Decimal {
	if d.CustomTotal.Valid {
		return d.CustomTotal.Decimal
	}
	return d.TotalPrice
}

// Wholesale reports whether a flat total overrides the line items.
func (d Draft) Wholesale() bool {
	return d.CustomTotal.Valid
}

func (d Draft) indexOf(productID string) int {
	for i, it := range d.Products {
		if it.ID == productID {
			return i
		}
	}
	return -1
}

// clone copies the line-item slice so snapshots never alias store state.
func (d Draft) clone() Draft {
	out := d
	out.Products = make([]LineItem, len(d.Products))
	copy(out.Products, d.Products)
	return out
}

// Equal compares two drafts field by field, money by value.
func (d Draft) Equal(o Draft) bool {
	if len(d.Products) != len(o.Products) ||
		!d.TotalPrice.Equal(o.TotalPrice) ||
		d.PayType != o.PayType ||
		!d.Created.Equal(o.Created) ||
		!nullEqual(d.MoneyReturned, o.MoneyReturned) ||
		d.Consecutive != o.Consecutive ||
		!nullEqual(d.CustomTotal, o.CustomTotal) ||
		d.AttemptKey != o.AttemptKey {
		return false
	}
	for i := range d.Products {
		a, b := d.Products[i], o.Products[i]
		if a.ID != b.ID || a.Name != b.Name || a.Category != b.Category ||
			a.Quantity != b.Quantity || a.Code != b.Code ||
			!nullEqual(a.Price, b.Price) || !nullEqual(a.BuyPrice, b.BuyPrice) {
			return false
		}
	}
	return true
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// Sale is a finalized, server-confirmed sale record.
type Sale struct {
	ID            string              `json:"_id,omitempty"`
	ClientID      string              `json:"idClient,omitempty"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
	Created       time.Time           `json:"created"`
	PayType       PayType             `json:"payType"`
	Products      []LineItem          `json:"products"`
	MoneyReturned decimal.NullDecimal `json:"moneyReturned"`
	Consecutive   int                 `json:"consecutive,omitempty"`
	IsForAll      bool                `json:"isForAll,omitempty"`
}
