package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrEmptyDraft is returned when submitting a draft with no line items.
var ErrEmptyDraft = errors.New("draft has no line items")

// ErrInsufficientTender is returned for cash sales whose tendered amount is
// missing, negative or below the total.
var ErrInsufficientTender = errors.New("tendered amount is below the total")

// ErrSubmitInFlight is returned while a previous submission has not resolved.
var ErrSubmitInFlight = errors.New("a submission is already in flight")

// ReceiptsPath is where the session goes once a sale is saved.
const ReceiptsPath = "/receipts"

// Phase of the checkout flow.
type Phase string

const (
	PhaseBuilding   Phase = "building"
	PhaseSubmitting Phase = "submitting"
	PhaseSaved      Phase = "saved"
)

// SaleSubmitter is the part of the remote API the checkout needs.
type SaleSubmitter interface {
	CreateSale(ctx context.Context, sale Sale, idempotencyKey string) (*Sale, error)
	LastConsecutive(ctx context.Context) (int, error)
}

// Service drives a draft from Building through Submitting to Saved.
type Service struct {
	store  *Store
	client SaleSubmitter
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	phase    Phase
	tendered decimal.NullDecimal
}

// CheckoutState is what the checkout screen renders.
type CheckoutState struct {
	Phase     Phase               `json:"phase"`
	Draft     Draft               `json:"draft"`
	Total     decimal.Decimal     `json:"total"`
	Wholesale bool                `json:"wholesale"`
	Tendered  decimal.NullDecimal `json:"tendered"`
	ChangeDue decimal.NullDecimal `json:"changeDue"`
	CanSubmit bool                `json:"canSubmit"`
	Problem   string              `json:"problem,omitempty"`
}

// NewService creates a new checkout Service.
func NewService(store *Store, client SaleSubmitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
		defer logger.Sync() // flushes buffer, if any
	}

	s := &Service{
		store:  store,
		client: client,
		logger: logger,
		now:    time.Now,
		phase:  PhaseBuilding,
	}
	if err := store.Subscribe(s.onDraftChanged); err != nil {
		logger.Error("checkout cannot follow draft changes", zap.Error(err))
	}
	return s
}

// onDraftChanged moves a saved checkout back to Building once a new sale starts.
func (s *Service) onDraftChanged(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseSaved && len(d.Products) > 0 {
		s.phase = PhaseBuilding
	}
}

func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetTendered records the cash handed over by the customer. An invalid value clears it.
func (s *Service) SetTendered(amount decimal.NullDecimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tendered = amount
}

// Configure applies the checkout form in one step. Without wholesale the flat
// total is cleared whatever customTotal holds.
func (s *Service) Configure(payType PayType, tendered decimal.NullDecimal, wholesale bool, customTotal decimal.NullDecimal) (CheckoutState, error) {
	if !wholesale {
		customTotal = decimal.NullDecimal{}
	}
	if _, err := s.store.SetPayType(payType); err != nil {
		return CheckoutState{}, err
	}
	if _, err := s.store.SetWholesaleTotal(customTotal); err != nil {
		return CheckoutState{}, err
	}
	s.SetTendered(tendered)
	return s.State(), nil
}

// Total is what the customer pays for the current draft.
func (s *Service) Total() decimal.Decimal {
	return s.store.Snapshot().EffectiveTotal()
}

// ChangeDue is tendered minus total, reported only when tendered exceeds total.
func ChangeDue(tendered decimal.NullDecimal, total decimal.Decimal) (decimal.Decimal, bool) {
	if !tendered.Valid || !tendered.Decimal.GreaterThan(total) {
		return decimal.Zero, false
	}
	return tendered.Decimal.Sub(total), true
}

// Validate reports why d cannot be submitted with the given tendered amount.
// Only cash sales look at the tendered amount.
func Validate(d Draft, tendered decimal.NullDecimal) error {
	if len(d.Products) == 0 {
		return ErrEmptyDraft
	}
	if d.PayType != PayCash {
		return nil
	}
	if !tendered.Valid || tendered.Decimal.IsNegative() || tendered.Decimal.LessThan(d.EffectiveTotal()) {
		return ErrInsufficientTender
	}
	return nil
}

// State snapshots the checkout screen.
func (s *Service) State() CheckoutState {
	d := s.store.Snapshot()

	s.mu.Lock()
	phase, tendered := s.phase, s.tendered
	s.mu.Unlock()

	st := CheckoutState{
		Phase:     phase,
		Draft:     d,
		Total:     d.EffectiveTotal(),
		Wholesale: d.Wholesale(),
		Tendered:  tendered,
	}
	if d.PayType == PayCash {
		if change, ok := ChangeDue(tendered, st.Total); ok {
			st.ChangeDue = decimal.NewNullDecimal(change)
		}
	}
	if err := Validate(d, tendered); err != nil {
		st.Problem = err.Error()
	}
	st.CanSubmit = st.Problem == "" && phase != PhaseSubmitting
	return st
}

// Submit finalizes the current draft with the backend. The draft is locked
// until the request resolves. On success it is cleared and the flow enters
// Saved; on failure it returns to Building and the user has to trigger it again
// with the same attempt key.
func (s *Service) Submit(ctx context.Context) (*Sale, error) {
	s.mu.Lock()
	if s.phase == PhaseSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	prev, tendered := s.phase, s.tendered
	s.phase = PhaseSubmitting
	s.mu.Unlock()

	// s.mu is released first: store subscribers take it while the store is locked
	d, err := s.store.freeze()
	if err == nil {
		if err = Validate(d, tendered); err != nil {
			s.store.thaw(false)
		}
	}
	if err != nil {
		s.mu.Lock()
		s.phase = prev
		s.mu.Unlock()
		return nil, err
	}

	total := d.EffectiveTotal()
	returned := decimal.Zero
	if d.PayType == PayCash {
		returned = tendered.Decimal.Sub(total)
	}
	record := Sale{
		TotalPrice:    total,
		Created:       s.now().Round(0),
		PayType:       d.PayType,
		Products:      d.Products,
		MoneyReturned: decimal.NewNullDecimal(returned),
		IsForAll:      d.Wholesale(),
	}
	key := d.AttemptKey

	saved, err := s.client.CreateSale(ctx, record, key)
	if err != nil {
		s.store.thaw(false)
		s.mu.Lock()
		s.phase = PhaseBuilding
		s.mu.Unlock()
		s.logger.Error("failed to save sale",
			zap.String("idempotency_key", key),
			zap.String("total", total.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("submit sale: %w", err)
	}
	if saved == nil {
		saved = &record
	}

	s.store.thaw(true)
	s.mu.Lock()
	s.phase = PhaseSaved
	s.tendered = decimal.NullDecimal{}
	s.mu.Unlock()

	s.logger.Info("sale saved",
		zap.String("sale_id", saved.ID),
		zap.String("idempotency_key", key),
		zap.Int("consecutive", saved.Consecutive),
		zap.String("total", saved.TotalPrice.String()),
		zap.String("pay_type", string(saved.PayType)),
	)
	return saved, nil
}

// NextReceiptNumber is the consecutive the backend will assign to the next sale.
func (s *Service) NextReceiptNumber(ctx context.Context) (int, error) {
	last, err := s.client.LastConsecutive(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch last consecutive", zap.Error(err))
		return 0, fmt.Errorf("fetch last consecutive: %w", err)
	}
	if last < 0 {
		last = 0
	}
	return last + 1, nil
}
