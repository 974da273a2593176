// Package catalog holds the product listing state: filters, paging, client-side
// sort and product maintenance.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"artemisa_pos/internal/debounce"
	"artemisa_pos/internal/remote"
	"artemisa_pos/internal/sales"
)

// PageRadius is how many pages around the current one the pager shows.
const PageRadius = 3

// ErrMissingID is returned when updating or deleting without a product id.
var ErrMissingID = errors.New("product id is required")

// ErrUnknownCategory is returned for a category filter outside sales.Categories.
var ErrUnknownCategory = errors.New("unknown category")

// Backend is the part of the remote API the catalog uses.
type Backend interface {
	FilterProducts(ctx context.Context, q remote.ProductQuery) (remote.ProductPage, error)
	CreateProduct(ctx context.Context, p sales.Product, image *remote.Upload) (*sales.Product, error)
	UpdateProduct(ctx context.Context, id string, p sales.Product, image *remote.Upload) (*sales.Product, error)
	DeleteProduct(ctx context.Context, id string) (string, error)
}

// SortOrder orders the fetched page by price.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filters are the listing inputs. Category "" means all categories and a nil
// Code means no code filter.
type Filters struct {
	SearchTerm string         `json:"searchTerm"`
	Code       *int           `json:"code"`
	Category   sales.Category `json:"category"`
	Sort       SortOrder      `json:"sort"`
}

func (f Filters) sameQuery(o Filters) bool {
	if f.SearchTerm != o.SearchTerm || f.Category != o.Category {
		return false
	}
	if (f.Code == nil) != (o.Code == nil) {
		return false
	}
	return f.Code == nil || *f.Code == *o.Code
}

// Pager describes the page links to render.
type Pager struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Window     []int `json:"window"`
	ShowFirst  bool  `json:"showFirst"`
	ShowLast   bool  `json:"showLast"`
}

// Listing is a snapshot of the catalog screen.
type Listing struct {
	Filters  Filters         `json:"filters"`
	Pager    Pager           `json:"pager"`
	Products []sales.Product `json:"products"`
}

// NameCheck lists existing products whose name resembles a new one.
type NameCheck struct {
	Name    string          `json:"name"`
	Similar []sales.Product `json:"similar"`
	Exact   bool            `json:"exact"`
}

// ViewModel is the catalog screen state. Safe for concurrent use.
type ViewModel struct {
	backend  Backend
	limit    int
	logger   *zap.Logger
	names    *debounce.Debouncer
	validate *validator.Validate

	mu         sync.Mutex
	filters    Filters
	page       int
	totalPages int
	products   []sales.Product
	gen        uint64
	loaded     bool
}

// NewViewModel creates the catalog state. limit is the page size and
// nameCheckDelay the quiet period before a duplicate-name lookup.
func NewViewModel(backend Backend, limit int, nameCheckDelay time.Duration, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit < 1 {
		limit = 10
	}
	return &ViewModel{
		backend:    backend,
		limit:      limit,
		logger:     logger,
		names:      debounce.New(nameCheckDelay),
		validate:   newValidator(),
		page:       1,
		totalPages: 1,
		products:   []sales.Product{},
	}
}

// Listing returns the current state without fetching.
func (vm *ViewModel) Listing() Listing {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.listingLocked()
}

func (vm *ViewModel) listingLocked() Listing {
	products := make([]sales.Product, len(vm.products))
	copy(products, vm.products)
	return Listing{
		Filters:  vm.filters,
		Pager:    NewPager(vm.page, vm.totalPages),
		Products: products,
	}
}

// Refresh refetches the current page.
func (vm *ViewModel) Refresh(ctx context.Context) (Listing, error) {
	return vm.fetch(ctx)
}

// SetFilters applies new filters. A change to the search term, code or
// category goes back to page 1 and refetches; a sort-only change reorders the
// fetched page in place.
func (vm *ViewModel) SetFilters(ctx context.Context, f Filters) (Listing, error) {
	if f.Category != "" && !f.Category.Valid() {
		return vm.Listing(), fmt.Errorf("%w %q", ErrUnknownCategory, f.Category)
	}
	vm.mu.Lock()
	refetch := !vm.filters.sameQuery(f)
	vm.filters = f
	if !refetch {
		sortByPrice(vm.products, f.Sort)
		l := vm.listingLocked()
		vm.mu.Unlock()
		return l, nil
	}
	vm.page = 1
	vm.mu.Unlock()
	return vm.fetch(ctx)
}

// SetPage moves to page p. Pages outside 1..totalPages are ignored.
func (vm *ViewModel) SetPage(ctx context.Context, p int) (Listing, error) {
	vm.mu.Lock()
	if p < 1 || p > vm.totalPages || p == vm.page {
		l := vm.listingLocked()
		vm.mu.Unlock()
		return l, nil
	}
	vm.page = p
	vm.mu.Unlock()
	return vm.fetch(ctx)
}

// Show applies filters and a requested page in one step, the way a listing
// request carries both. A changed query wins over the page and goes back to
// page 1; page 0 keeps the current page. Every call fetches so stock stays
// current, except a loaded page whose only change is the sort, which is
// reordered in place.
func (vm *ViewModel) Show(ctx context.Context, f Filters, page int) (Listing, error) {
	if f.Category != "" && !f.Category.Valid() {
		return vm.Listing(), fmt.Errorf("%w %q", ErrUnknownCategory, f.Category)
	}
	vm.mu.Lock()
	sortOnly := vm.loaded && f.Sort != vm.filters.Sort
	if !vm.filters.sameQuery(f) {
		vm.page = 1
		sortOnly = false
	} else if page >= 1 && page <= vm.totalPages && page != vm.page {
		vm.page = page
		sortOnly = false
	}
	vm.filters = f
	if sortOnly {
		sortByPrice(vm.products, f.Sort)
		l := vm.listingLocked()
		vm.mu.Unlock()
		return l, nil
	}
	vm.mu.Unlock()
	return vm.fetch(ctx)
}

// fetch loads the page the state points at. A response that arrives after a
// newer fetch started is dropped.
func (vm *ViewModel) fetch(ctx context.Context) (Listing, error) {
	vm.mu.Lock()
	vm.gen++
	gen := vm.gen
	q := remote.ProductQuery{
		Page:       vm.page,
		Limit:      vm.limit,
		Category:   vm.filters.Category,
		SearchTerm: vm.filters.SearchTerm,
		Code:       vm.filters.Code,
	}
	vm.mu.Unlock()

	page, err := vm.backend.FilterProducts(ctx, q)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.gen {
		vm.logger.Debug("dropping stale product page", zap.Uint64("generation", gen), zap.Uint64("current", vm.gen))
		return vm.listingLocked(), nil
	}
	if err != nil {
		vm.logger.Warn("failed to fetch products", zap.Int("page", q.Page), zap.Error(err))
		return vm.listingLocked(), err
	}
	vm.loaded = true
	vm.products = page.Products
	if vm.products == nil {
		vm.products = []sales.Product{}
	}
	vm.totalPages = page.TotalPages
	if vm.totalPages < 1 {
		vm.totalPages = 1
	}
	sortByPrice(vm.products, vm.filters.Sort)
	return vm.listingLocked(), nil
}

// sortByPrice is a stable sort; a missing price sorts as zero.
func sortByPrice(ps []sales.Product, order SortOrder) {
	if order != SortAsc && order != SortDesc {
		return
	}
	price := func(p sales.Product) decimal.Decimal {
		if p.Price.Valid {
			return p.Price.Decimal
		}
		return decimal.Zero
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if order == SortAsc {
			return price(ps[i]).LessThan(price(ps[j]))
		}
		return price(ps[i]).GreaterThan(price(ps[j]))
	})
}

// NewPager builds the page links around page.
func NewPager(page, totalPages int) Pager {
	if totalPages < 1 {
		totalPages = 1
	}
	lo, hi := max(1, page-PageRadius), min(totalPages, page+PageRadius)
	window := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		window = append(window, p)
	}
	return Pager{
		Page:       page,
		TotalPages: totalPages,
		Window:     window,
		ShowFirst:  lo > 1,
		ShowLast:   hi < totalPages,
	}
}

// CheckName looks for products resembling name once no newer check has arrived
// for the configured delay. A superseded check returns debounce.ErrSuperseded.
func (vm *ViewModel) CheckName(ctx context.Context, name string) (NameCheck, error) {
	name = strings.TrimSpace(name)
	out := NameCheck{Name: name, Similar: []sales.Product{}}

	err := vm.names.Call(ctx, func(ctx context.Context) error {
		if name == "" {
			return nil
		}
		page, err := vm.backend.FilterProducts(ctx, remote.ProductQuery{Page: 1, Limit: vm.limit, SearchTerm: name})
		if err != nil {
			return err
		}
		for _, p := range page.Products {
			out.Similar = append(out.Similar, p)
			if strings.EqualFold(strings.TrimSpace(p.Name), name) {
				out.Exact = true
			}
		}
		return nil
	})
	if err != nil {
		return NameCheck{Name: name}, err
	}
	return out, nil
}

// Create validates the form and uploads a new product, then refreshes the listing.
func (vm *ViewModel) Create(ctx context.Context, form ProductForm, image *remote.Upload) (*sales.Product, error) {
	if err := form.Validate(vm.validate); err != nil {
		return nil, err
	}
	created, err := vm.backend.CreateProduct(ctx, form.Product(), image)
	if err != nil {
		return nil, err
	}
	vm.logger.Info("product created", zap.String("name", form.Name))
	vm.refreshQuietly(ctx)
	return created, nil
}

// Update validates the form and replaces product id, then refreshes the listing.
func (vm *ViewModel) Update(ctx context.Context, id string, form ProductForm, image *remote.Upload) (*sales.Product, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if err := form.Validate(vm.validate); err != nil {
		return nil, err
	}
	updated, err := vm.backend.UpdateProduct(ctx, id, form.Product(), image)
	if err != nil {
		return nil, err
	}
	vm.logger.Info("product updated", zap.String("product_id", id))
	vm.refreshQuietly(ctx)
	return updated, nil
}

// Delete removes product id and refreshes the listing. It returns the backend's message.
func (vm *ViewModel) Delete(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrMissingID
	}
	msg, err := vm.backend.DeleteProduct(ctx, id)
	if err != nil {
		return "", err
	}
	vm.logger.Info("product deleted", zap.String("product_id", id))
	vm.refreshQuietly(ctx)
	return msg, nil
}

func (vm *ViewModel) refreshQuietly(ctx context.Context) {
	if _, err := vm.fetch(ctx); err != nil {
		vm.logger.Warn("listing refresh after change failed", zap.Error(err))
	}
}
