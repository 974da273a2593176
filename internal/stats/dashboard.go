// Package stats assembles the statistics dashboard from the backend's aggregates.
package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"artemisa_pos/internal/remote"
	"artemisa_pos/internal/sales"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthLabel is the upper-case Spanish name of t's month.
func MonthLabel(t time.Time) string {
	return strings.ToUpper(monthNames[t.Month()-1])
}

// MonthLabels names the previous and the current month of now.
func MonthLabels(now time.Time) [2]string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return [2]string{MonthLabel(first.AddDate(0, -1, 0)), MonthLabel(now)}
}

// Backend is the part of the remote API the dashboard reads.
type Backend interface {
	CategoryStats(ctx context.Context) ([]remote.CategoryCount, error)
	MonthlySales(ctx context.Context) (remote.MonthlySales, error)
	PaymentStats(ctx context.Context) ([]remote.PaymentCount, error)
	TopProducts(ctx context.Context) ([]sales.Product, error)
}

// Series is one labelled data point of a chart.
type Series struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Dashboard holds every chart of the statistics screen.
type Dashboard struct {
	Monthly    []Series        `json:"monthly"`
	Categories []Series        `json:"categories"`
	Payments   []Series        `json:"payments"`
	Top        []sales.Product `json:"top"`
}

// Service loads the dashboard.
type Service struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(backend Backend, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		backend: backend,
		logger:  logger,
		now:     func() time.Time { return time.Now().In(loc) },
	}
}

// Load fetches the four aggregates concurrently. Any failure fails the whole
// dashboard.
func (s *Service) Load(ctx context.Context) (*Dashboard, error) {
	var (
		cats     []remote.CategoryCount
		monthly  remote.MonthlySales
		payments []remote.PaymentCount
		top      []sales.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cats, err = s.backend.CategoryStats(gctx)
		return wrap("category", err)
	})
	g.Go(func() (err error) {
		monthly, err = s.backend.MonthlySales(gctx)
		return wrap("monthly sales", err)
	})
	g.Go(func() (err error) {
		payments, err = s.backend.PaymentStats(gctx)
		return wrap("payments", err)
	})
	g.Go(func() (err error) {
		top, err = s.backend.TopProducts(gctx)
		return wrap("top products", err)
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("failed to load dashboard", zap.Error(err))
		return nil, err
	}

	labels := MonthLabels(s.now())
	d := &Dashboard{
		Monthly: []Series{
			{Label: labels[0], Value: monthly.LastMonth},
			{Label: labels[1], Value: monthly.ActualMonth},
		},
		Categories: make([]Series, 0, len(cats)),
		Payments:   make([]Series, 0, len(payments)),
		Top:        top,
	}
	for _, c := range cats {
		d.Categories = append(d.Categories, Series{Label: c.Name(), Value: c.TotalQuantity})
	}
	for _, p := range payments {
		d.Payments = append(d.Payments, Series{Label: string(p.PayType), Value: p.Count})
	}
	if d.Top == nil {
		d.Top = []sales.Product{}
	}
	return d, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s stats: %w", what, err)
}
