package sales

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"artemisa_pos/internal/localstore"
)

// DraftKey is the local state key the draft sale lives under.
const DraftKey = "cart"

// ErrNoDraft is returned when nothing has been persisted yet.
var ErrNoDraft = errors.New("no persisted draft")

// ErrInvalidDraft is returned when the persisted draft decodes but breaks the
// draft rules.
var ErrInvalidDraft = errors.New("invalid persisted draft")

// loadDraft reads the persisted draft and checks it line by line. The total is
// always recomputed from the line items and a missing attempt key is filled in.
// Returns ErrNoDraft if the key is absent.
func loadDraft(kv localstore.Store) (Draft, error) {
	raw, err := kv.Get(DraftKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return Draft{}, ErrNoDraft
	}
	if err != nil {
		return Draft{}, fmt.Errorf("read draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	if err := checkDraft(d); err != nil {
		return Draft{}, err
	}
	if d.Products == nil {
		d.Products = []LineItem{}
	}
	if d.PayType == "" {
		d.PayType = DefaultPayType
	}
	if d.AttemptKey == "" {
		d.AttemptKey = uuid.NewString()
	}
	d.TotalPrice = LineTotal(d.Products)
	return d, nil
}

func checkDraft(d Draft) error {
	// null and {} decode to a draft that was never created
	if d.Created.IsZero() {
		return fmt.Errorf("%w: no creation time", ErrInvalidDraft)
	}
	if d.PayType != "" && !d.PayType.Valid() {
		return fmt.Errorf("%w: pay type %q", ErrInvalidDraft, d.PayType)
	}
	if d.CustomTotal.Valid && d.CustomTotal.Decimal.IsNegative() {
		return fmt.Errorf("%w: negative wholesale total", ErrInvalidDraft)
	}
	seen := make(map[string]bool, len(d.Products))
	for _, it := range d.Products {
		switch {
		case it.ID == "":
			return fmt.Errorf("%w: line item without id", ErrInvalidDraft)
		case seen[it.ID]:
			return fmt.Errorf("%w: duplicate line item %s", ErrInvalidDraft, it.ID)
		case it.Quantity < 1:
			return fmt.Errorf("%w: quantity %d for %s", ErrInvalidDraft, it.Quantity, it.ID)
		case it.Price.Valid && it.Price.Decimal.IsNegative():
			return fmt.Errorf("%w: negative price for %s", ErrInvalidDraft, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

func saveDraft(kv localstore.Store, d Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := kv.Set(DraftKey, raw); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}
