package receipts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"artemisa_pos/internal/sales"
)

// ErrNotFound is returned when no loaded sale has the requested id.
var ErrNotFound = errors.New("sale not found")

// Source lists every sale.
type Source interface {
	AllSales(ctx context.Context) ([]sales.Sale, error)
}

// Query is what the receipts screen asks for.
type Query struct {
	Filter         Filter
	ConsecutiveAsc bool
	ShowTotal      bool
}

// Page is the rendered receipts screen.
type Page struct {
	Groups    []Group         `json:"groups"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"-"`
	TotalText string          `json:"total"`
	Summary   *Summary        `json:"summary,omitempty"`
}

// View keeps the last fetched sales and renders them on demand.
type View struct {
	source Source
	loc    *time.Location
	logger *zap.Logger

	mu  sync.RWMutex
	all []sales.Sale
}

func NewView(source Source, loc *time.Location, logger *zap.Logger) *View {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{source: source, loc: loc, logger: logger}
}

// Location is where calendar days are computed.
func (v *View) Location() *time.Location { return v.loc }

// Refresh refetches every sale. On failure the previous list is kept.
func (v *View) Refresh(ctx context.Context) error {
	list, err := v.source.AllSales(ctx)
	if err != nil {
		v.logger.Warn("failed to load sales", zap.Error(err))
		return err
	}
	v.mu.Lock()
	v.all = list
	v.mu.Unlock()
	v.logger.Debug("sales loaded", zap.Int("count", len(list)))
	return nil
}

// Render filters, orders and groups the loaded sales. The summary is only
// included when the total is shown.
func (v *View) Render(q Query) Page {
	filtered := v.Filtered(q)
	total := Total(filtered)
	p := Page{
		Groups:    GroupByDay(filtered, v.loc),
		Count:     len(filtered),
		Total:     total,
		TotalText: MaskedTotal(total, q.ShowTotal),
	}
	if p.Groups == nil {
		p.Groups = []Group{}
	}
	if q.ShowTotal {
		s := Summarize(filtered)
		p.Summary = &s
	}
	return p
}

// Filtered returns the sales matching q in display order.
func (v *View) Filtered(q Query) []sales.Sale {
	v.mu.RLock()
	filtered := Apply(v.all, q.Filter, v.loc)
	v.mu.RUnlock()
	Sort(filtered, q.ConsecutiveAsc)
	return filtered
}

// Find looks up a loaded sale by id.
func (v *View) Find(id string) (sales.Sale, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, s := range v.all {
		if s.ID == id {
			return s, nil
		}
	}
	return sales.Sale{}, ErrNotFound
}
