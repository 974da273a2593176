package sales

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"artemisa_pos/internal/localstore"
)

const topicDraftChanged = "draft:changed"

// ErrNotFound is returned when the draft has no line item for a product ID.
var ErrNotFound = errors.New("line item not found")

// ErrMissingProductID is returned when adding a product without an ID.
var ErrMissingProductID = errors.New("product has no id")

// ErrInvalidPrice is returned for negative prices and totals.
var ErrInvalidPrice = errors.New("price must not be negative")

// ErrInvalidPayType is returned for pay types outside the fixed set.
var ErrInvalidPayType = errors.New("invalid pay type")

// Store holds the current draft sale. Every successful mutation recomputes the
// total from the line items and is published to subscribers; persistence to
// local state is one of those subscribers.
type Store struct {
	// writeMu orders mutations together with their publication so subscribers
	// observe drafts in the order they were produced.
	writeMu sync.Mutex
	// frozen rejects mutations while the draft is being submitted. Guarded by writeMu.
	frozen bool
	mu     sync.RWMutex
	draft  Draft

	kv     localstore.Store
	bus    EventBus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now for draft timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates the draft store and rehydrates the draft persisted in kv.
// A draft that cannot be read is logged and replaced by an empty one.
func NewStore(kv localstore.Store, logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:     kv,
		bus:    EventBus.New(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.draft = NewDraft(s.stamp())
	d, err := loadDraft(kv)
	switch {
	case err == nil:
		s.draft = d
		logger.Info("draft restored", zap.Int("line_items", len(d.Products)), zap.String("total", d.TotalPrice.String()))
	case errors.Is(err, ErrNoDraft):
	default:
		logger.Warn("discarding unreadable draft", zap.Error(err))
	}

	if err := s.bus.Subscribe(topicDraftChanged, s.persist); err != nil {
		logger.Error("failed to subscribe draft persistence", zap.Error(err))
	}
	return s
}

// stamp drops the monotonic reading so timestamps survive a JSON round trip unchanged.
func (s *Store) stamp() time.Time {
	return s.now().Round(0)
}

func (s *Store) persist(d Draft) {
	if err := saveDraft(s.kv, d); err != nil {
		s.logger.Warn("failed to persist draft", zap.Error(err))
	}
}

// Subscribe registers fn to receive every new draft after a mutation.
// fn runs synchronously on the mutating goroutine and must not call back into the Store.
func (s *Store) Subscribe(fn func(Draft)) error {
	if err := s.bus.Subscribe(topicDraftChanged, fn); err != nil {
		return fmt.Errorf("subscribe to draft changes: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current draft.
func (s *Store) Snapshot() Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.clone()
}

func (s *Store) update(op string, fn func(d *Draft) error) (Draft, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.frozen {
		return Draft{}, ErrSubmitInFlight
	}
	return s.apply(op, fn)
}

// apply runs fn on a copy of the draft and publishes the result. The caller holds writeMu.
func (s *Store) apply(op string, fn func(d *Draft) error) (Draft, error) {
	s.mu.Lock()
	next := s.draft.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return Draft{}, err
	}
	next.TotalPrice = LineTotal(next.Products)
	// a retry of an unchanged draft reuses its key, any edit starts a new attempt
	if next.AttemptKey == s.draft.AttemptKey && !next.Equal(s.draft) {
		next.AttemptKey = uuid.NewString()
	}
	s.draft = next
	snap := next.clone()
	s.mu.Unlock()

	s.logger.Debug("draft updated",
		zap.String("op", op),
		zap.Int("line_items", len(snap.Products)),
		zap.String("total", snap.TotalPrice.String()),
	)
	s.bus.Publish(topicDraftChanged, snap)
	return snap, nil
}

// freeze locks the draft for a submission and returns what is being submitted.
// Every mutation fails with ErrSubmitInFlight until thaw.
func (s *Store) freeze() (Draft, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.frozen {
		return Draft{}, ErrSubmitInFlight
	}
	s.frozen = true
	return s.Snapshot(), nil
}

// thaw unlocks the draft, clearing it first when the submission was saved.
func (s *Store) thaw(saved bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.frozen = false
	if saved {
		_, _ = s.apply("clear", s.reset)
	}
}

func (s *Store) reset(d *Draft) error {
	*d = NewDraft(s.stamp())
	return nil
}

// AddLineItem adds product to the draft. A product already in the draft has its
// quantity incremented by exactly one and requestedQty is ignored; a new product
// is appended with requestedQty (at least 1).
func (s *Store) AddLineItem(product Product, requestedQty int) (Draft, error) {
	if product.ID == "" {
		return Draft{}, ErrMissingProductID
	}
	return s.update("add", func(d *Draft) error {
		if i := d.indexOf(product.ID); i >= 0 {
			d.Products[i].Quantity++
			return nil
		}
		if requestedQty < 1 {
			requestedQty = 1
		}
		d.Products = append(d.Products, LineItem{Product: product, Quantity: requestedQty})
		return nil
	})
}

// SetLineItemQuantity sets the quantity verbatim; zero or less removes the line item.
func (s *Store) SetLineItemQuantity(productID string, qty int) (Draft, error) {
	return s.update("set_quantity", func(d *Draft) error {
		i := d.indexOf(productID)
		if i < 0 {
			return ErrNotFound
		}
		if qty <= 0 {
			d.Products = append(d.Products[:i], d.Products[i+1:]...)
			return nil
		}
		d.Products[i].Quantity = qty
		return nil
	})
}

func (s *Store) RemoveLineItem(productID string) (Draft, error) {
	return s.update("remove", func(d *Draft) error {
		i := d.indexOf(productID)
		if i < 0 {
			return ErrNotFound
		}
		d.Products = append(d.Products[:i], d.Products[i+1:]...)
		return nil
	})
}

// SetLineItemPrice overrides the unit price of one line item for this sale only.
func (s *Store) SetLineItemPrice(productID string, price decimal.Decimal) (Draft, error) {
	if price.IsNegative() {
		return Draft{}, ErrInvalidPrice
	}
	return s.update("set_price", func(d *Draft) error {
		i := d.indexOf(productID)
		if i < 0 {
			return ErrNotFound
		}
		d.Products[i].Price = decimal.NewNullDecimal(price)
		return nil
	})
}

func (s *Store) SetPayType(pt PayType) (Draft, error) {
	if !pt.Valid() {
		return Draft{}, ErrInvalidPayType
	}
	return s.update("set_pay_type", func(d *Draft) error {
		d.PayType = pt
		return nil
	})
}

// SetWholesaleTotal sets (Valid) or clears the flat total that replaces the
// line-item total at checkout.
func (s *Store) SetWholesaleTotal(total decimal.NullDecimal) (Draft, error) {
	if total.Valid && total.Decimal.IsNegative() {
		return Draft{}, ErrInvalidPrice
	}
	return s.update("set_wholesale_total", func(d *Draft) error {
		d.CustomTotal = total
		return nil
	})
}

// Clear resets to an empty draft with the default pay type, a fresh timestamp
// and a new attempt key.
func (s *Store) Clear() (Draft, error) {
	return s.update("clear", s.reset)
}
