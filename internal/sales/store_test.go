package sales

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"artemisa_pos/internal/localstore"
)

var fixedNow = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

func newTestStore(t *testing.T, kv localstore.Store) *Store {
	t.Helper()
	return NewStore(kv, zaptest.NewLogger(t), WithClock(func() time.Time { return fixedNow }))
}

func product(id string, price float64) Product {
	return Product{
		ID:       id,
		Name:     "Product " + id,
		Category: CategoryHealth,
		Price:    decimal.NewNullDecimal(decimal.NewFromFloat(price)),
	}
}

func TestNewStore_StartsEmpty(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	d := s.Snapshot()

	assert.Empty(t, d.Products)
	assert.True(t, d.TotalPrice.IsZero())
	assert.Equal(t, PayCash, d.PayType)
	assert.Equal(t, fixedNow, d.Created)
}

func TestAddLineItem(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())

	d, err := s.AddLineItem(product("a", 10), 3)
	require.NoError(t, err)
	require.Len(t, d.Products, 1)
	assert.Equal(t, 3, d.Products[0].Quantity)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(30)))

	// repeat add increments by exactly one whatever the requested quantity
	d, err = s.AddLineItem(product("a", 10), 5)
	require.NoError(t, err)
	require.Len(t, d.Products, 1)
	assert.Equal(t, 4, d.Products[0].Quantity)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(40)))

	d, err = s.AddLineItem(product("b", 2.5), 0)
	require.NoError(t, err)
	require.Len(t, d.Products, 2)
	assert.Equal(t, "b", d.Products[1].ID, "insertion order kept")
	assert.Equal(t, 1, d.Products[1].Quantity, "quantity clamped to one")
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromFloat(42.5)))

	_, err = s.AddLineItem(Product{Name: "no id"}, 1)
	assert.ErrorIs(t, err, ErrMissingProductID)
}

func TestAddLineItem_MissingPriceCountsAsZero(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())

	_, err := s.AddLineItem(Product{ID: "free", Name: "Sample"}, 2)
	require.NoError(t, err)
	d, err := s.AddLineItem(product("a", 7), 1)
	require.NoError(t, err)

	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(7)))
}

func TestSetLineItemQuantity_NonPositiveRemoves(t *testing.T) {
	for _, qty := range []int{0, -3} {
		t.Run(fmt.Sprint(qty), func(t *testing.T) {
			s := newTestStore(t, localstore.NewMemory())
			_, err := s.AddLineItem(product("a", 10), 1)
			require.NoError(t, err)
			_, err = s.AddLineItem(product("b", 5), 2)
			require.NoError(t, err)

			d, err := s.SetLineItemQuantity("a", qty)
			require.NoError(t, err)
			require.Len(t, d.Products, 1)
			assert.Equal(t, "b", d.Products[0].ID)
			assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(10)))
		})
	}
}

func TestSetLineItemQuantity(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	_, err := s.AddLineItem(product("a", 10), 1)
	require.NoError(t, err)

	d, err := s.SetLineItemQuantity("a", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, d.Products[0].Quantity)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(70)))

	_, err = s.SetLineItemQuantity("missing", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveLineItem_RecomputesFullTotal(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	_, err := s.AddLineItem(product("a", 10), 3)
	require.NoError(t, err)
	_, err = s.AddLineItem(product("b", 4), 2)
	require.NoError(t, err)

	d, err := s.RemoveLineItem("b")
	require.NoError(t, err)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(30)), "price × quantity, not price alone")

	_, err = s.RemoveLineItem("b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetLineItemPrice(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	_, err := s.AddLineItem(product("a", 10), 2)
	require.NoError(t, err)

	d, err := s.SetLineItemPrice("a", decimal.NewFromInt(8))
	require.NoError(t, err)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(16)))

	_, err = s.SetLineItemPrice("a", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = s.SetLineItemPrice("missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWholesaleTotal_LeavesLineTotalAlone(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	_, err := s.AddLineItem(product("a", 10), 5)
	require.NoError(t, err)

	d, err := s.SetWholesaleTotal(decimal.NewNullDecimal(decimal.NewFromInt(35)))
	require.NoError(t, err)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, d.EffectiveTotal().Equal(decimal.NewFromInt(35)))
	assert.True(t, d.Wholesale())

	d, err = s.SetWholesaleTotal(decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, d.EffectiveTotal().Equal(decimal.NewFromInt(50)))

	_, err = s.SetWholesaleTotal(decimal.NewNullDecimal(decimal.NewFromInt(-1)))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestSetPayType(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())

	d, err := s.SetPayType(PayCard)
	require.NoError(t, err)
	assert.Equal(t, PayCard, d.PayType)

	_, err = s.SetPayType("Bitcoin")
	assert.ErrorIs(t, err, ErrInvalidPayType)
}

func TestClear(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	_, err := s.AddLineItem(product("a", 10), 2)
	require.NoError(t, err)
	_, err = s.SetPayType(PayTransfer)
	require.NoError(t, err)
	_, err = s.SetWholesaleTotal(decimal.NewNullDecimal(decimal.NewFromInt(5)))
	require.NoError(t, err)

	before := s.Snapshot().AttemptKey
	d, err := s.Clear()
	require.NoError(t, err)
	assert.NotEqual(t, before, d.AttemptKey)
	assert.Empty(t, d.Products)
	assert.True(t, d.TotalPrice.IsZero())
	assert.True(t, d.EffectiveTotal().IsZero())
	assert.Equal(t, PayCash, d.PayType)
}

// Random mutation sequences never let the total drift from the line items.
func TestTotalInvariant_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}

	for run := 0; run < 50; run++ {
		s := newTestStore(t, localstore.NewMemory())
		for step := 0; step < 40; step++ {
			id := ids[rng.Intn(len(ids))]
			switch rng.Intn(5) {
			case 0:
				_, _ = s.AddLineItem(product(id, float64(rng.Intn(5000))/100), rng.Intn(4))
			case 1:
				_, _ = s.SetLineItemQuantity(id, rng.Intn(8)-3)
			case 2:
				_, _ = s.RemoveLineItem(id)
			case 3:
				_, _ = s.SetLineItemPrice(id, decimal.NewFromInt(int64(rng.Intn(100))))
			case 4:
				if rng.Intn(10) == 0 {
					s.Clear()
				}
			}

			d := s.Snapshot()
			want := decimal.Zero
			for _, it := range d.Products {
				require.GreaterOrEqual(t, it.Quantity, 1)
				if it.Price.Valid {
					want = want.Add(it.Price.Decimal.Mul(decimal.NewFromInt(int64(it.Quantity))))
				}
			}
			require.True(t, want.Equal(d.TotalPrice), "run %d step %d: want %s got %s", run, step, want, d.TotalPrice)
		}
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	for n := 0; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
			kv := localstore.NewMemory()
			s := newTestStore(t, kv)
			for i := 0; i < n; i++ {
				_, err := s.AddLineItem(product(fmt.Sprint(i), float64(i)+0.25), i+1)
				require.NoError(t, err)
			}
			if n > 0 {
				_, err := s.SetPayType(PayTransfer)
				require.NoError(t, err)
			}
			want := s.Snapshot()

			restored := newTestStore(t, kv).Snapshot()
			assert.True(t, want.Equal(restored), "want %+v got %+v", want, restored)
		})
	}
}

func TestPersistence_SurvivesBoltRestart(t *testing.T) {
	path := t.TempDir() + "/state.db"

	kv, err := localstore.OpenBolt(path)
	require.NoError(t, err)
	s := newTestStore(t, kv)
	_, err = s.AddLineItem(product("a", 12), 2)
	require.NoError(t, err)
	want := s.Snapshot()
	require.NoError(t, kv.Close())

	kv, err = localstore.OpenBolt(path)
	require.NoError(t, err)
	defer kv.Close()
	assert.True(t, want.Equal(newTestStore(t, kv).Snapshot()))
}

func TestPersistence_MalformedDraftFallsBackToEmpty(t *testing.T) {
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(DraftKey, []byte(`{"products": [ not json`)))

	var s *Store
	require.NotPanics(t, func() { s = newTestStore(t, kv) })

	d := s.Snapshot()
	assert.Empty(t, d.Products)
	assert.True(t, d.TotalPrice.IsZero())
}

func TestPersistence_InvalidDraftFallsBackToEmpty(t *testing.T) {
	cases := map[string]string{
		"null":              `null`,
		"empty object":      `{}`,
		"negative quantity": `{"products":[{"_id":"a","name":"A","price":10,"quantity":-2}],"payType":"Efectivo","created":"2024-01-01T10:00:00Z"}`,
		"zero quantity":     `{"products":[{"_id":"a","name":"A","price":10,"quantity":0}],"payType":"Efectivo","created":"2024-01-01T10:00:00Z"}`,
		"missing id":        `{"products":[{"name":"A","price":10,"quantity":1}],"payType":"Efectivo","created":"2024-01-01T10:00:00Z"}`,
		"duplicate id":      `{"products":[{"_id":"a","price":1,"quantity":1},{"_id":"a","price":1,"quantity":1}],"payType":"Efectivo","created":"2024-01-01T10:00:00Z"}`,
		"negative price":    `{"products":[{"_id":"a","name":"A","price":-10,"quantity":1}],"payType":"Efectivo","created":"2024-01-01T10:00:00Z"}`,
		"unknown pay type":  `{"products":[],"payType":"Trueque","created":"2024-01-01T10:00:00Z"}`,
		"negative custom":   `{"products":[],"payType":"Efectivo","created":"2024-01-01T10:00:00Z","customTotal":-5}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			kv := localstore.NewMemory()
			require.NoError(t, kv.Set(DraftKey, []byte(raw)))

			d := newTestStore(t, kv).Snapshot()
			assert.Empty(t, d.Products)
			assert.True(t, d.TotalPrice.IsZero())
			assert.Equal(t, PayCash, d.PayType)
			assert.Equal(t, fixedNow, d.Created)
			assert.NotEmpty(t, d.AttemptKey)
		})
	}
}

func TestPersistence_StaleTotalIsRecomputed(t *testing.T) {
	kv := localstore.NewMemory()
	// total guardado que no cuadra con los productos
	raw := `{"products":[{"_id":"a","name":"A","price":10,"quantity":3}],"totalPrice":999,"payType":"Tarjeta","created":"2024-01-01T10:00:00Z"}`
	require.NoError(t, kv.Set(DraftKey, []byte(raw)))

	d := newTestStore(t, kv).Snapshot()
	require.Len(t, d.Products, 1)
	assert.True(t, d.TotalPrice.Equal(decimal.NewFromInt(30)), "got %s", d.TotalPrice)
	assert.Equal(t, PayCard, d.PayType)
	assert.NotEmpty(t, d.AttemptKey, "drafts saved without a key get one")
}

func TestSubscribe_SeesEveryTransition(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	var seen []int
	require.NoError(t, s.Subscribe(func(d Draft) { seen = append(seen, len(d.Products)) }))

	_, _ = s.AddLineItem(product("a", 1), 1)
	_, _ = s.AddLineItem(product("b", 1), 1)
	_, _ = s.RemoveLineItem("missing")
	s.Clear()

	assert.Equal(t, []int{1, 2, 0}, seen)
}
