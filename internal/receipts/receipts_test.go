package receipts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"artemisa_pos/internal/sales"
)

var bogota = time.FixedZone("COT", -5*60*60)

func sale(id string, consecutive int, total int64, created time.Time) sales.Sale {
	return sales.Sale{
		ID:          id,
		Consecutive: consecutive,
		TotalPrice:  decimal.NewFromInt(total),
		Created:     created,
		PayType:     sales.PayCash,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, bogota)
}

func fixture() []sales.Sale {
	return []sales.Sale{
		sale("a", 1, 100, at(1, 9)),
		sale("b", 2, 250, at(1, 18)),
		sale("c", 3, 100, at(2, 10)),
		sale("d", 4, 40, at(2, 10)),
		sale("e", 5, 75, at(3, 20)),
	}
}

func saleIDs(list []sales.Sale) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("2024-03-02", "100", "3", bogota)
	require.NoError(t, err)
	require.NotNil(t, f.Day)
	assert.Equal(t, "2024-03-02", f.Day.In(bogota).Format(DayLayout))
	assert.True(t, f.Total.Decimal.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, f.Consecutive)
	assert.Equal(t, 3, *f.Consecutive)

	f, err = ParseFilter(" ", "", "", bogota)
	require.NoError(t, err)
	assert.Nil(t, f.Day)
	assert.False(t, f.Total.Valid)
	assert.Nil(t, f.Consecutive)

	_, err = ParseFilter("not a date", "", "", bogota)
	assert.Error(t, err)
	_, err = ParseFilter("", "abc", "", bogota)
	assert.Error(t, err)
	_, err = ParseFilter("", "", "x1", bogota)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	all := fixture()
	day := at(2, 0)
	total := decimal.NewNullDecimal(decimal.NewFromInt(100))
	three := 3

	assert.Len(t, Apply(all, Filter{}, bogota), 5)
	assert.Equal(t, []string{"c", "d"}, saleIDs(Apply(all, Filter{Day: &day}, bogota)))
	assert.Equal(t, []string{"a", "c"}, saleIDs(Apply(all, Filter{Total: total}, bogota)))
	assert.Equal(t, []string{"c"}, saleIDs(Apply(all, Filter{Consecutive: &three}, bogota)))
	assert.Equal(t, []string{"c"}, saleIDs(Apply(all, Filter{Day: &day, Total: total}, bogota)))
}

func TestApply_DayUsesLocation(t *testing.T) {
	// 02:00 UTC on the 2nd is still the 1st in Bogotá
	s := sale("late", 1, 10, time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC))
	day := at(1, 12)

	assert.Len(t, Apply([]sales.Sale{s}, Filter{Day: &day}, bogota), 1)
	assert.Empty(t, Apply([]sales.Sale{s}, Filter{Day: &day}, time.UTC))
}

func TestSort(t *testing.T) {
	list := fixture()
	Sort(list, true)
	assert.Equal(t, []string{"e", "c", "d", "b", "a"}, saleIDs(list))

	Sort(list, false)
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, saleIDs(list))
}

func TestGroupByDay(t *testing.T) {
	list := fixture()
	Sort(list, true)
	groups := GroupByDay(list, bogota)

	require.Len(t, groups, 3)
	assert.Equal(t, "2024-03-03", groups[0].Day)
	assert.Equal(t, "2024-03-02", groups[1].Day)
	assert.Equal(t, "2024-03-01", groups[2].Day)
	assert.Equal(t, []string{"c", "d"}, saleIDs(groups[1].Sales))
	assert.Equal(t, []string{"b", "a"}, saleIDs(groups[2].Sales))
}

func TestTotalAndMask(t *testing.T) {
	total := Total(fixture())
	assert.True(t, total.Equal(decimal.NewFromInt(565)))
	assert.Equal(t, "565.00", MaskedTotal(total, true))
	assert.Equal(t, "**********", MaskedTotal(total, false))
	assert.True(t, Total(nil).IsZero())
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture())
	assert.Equal(t, 5, s.Count)
	assert.True(t, s.Total.Equal(decimal.NewFromInt(565)))
	assert.True(t, s.Mean.Equal(decimal.NewFromInt(113)), "mean %s", s.Mean)
	assert.True(t, s.Median.Equal(decimal.NewFromInt(100)), "median %s", s.Median)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Count)
	assert.True(t, empty.Mean.IsZero())
}

type fakeSource struct {
	list []sales.Sale
	err  error
}

func (f *fakeSource) AllSales(context.Context) ([]sales.Sale, error) { return f.list, f.err }

func TestView(t *testing.T) {
	src := &fakeSource{list: fixture()}
	v := NewView(src, bogota, zaptest.NewLogger(t))
	require.NoError(t, v.Refresh(context.Background()))

	page := v.Render(Query{ConsecutiveAsc: false})
	assert.Equal(t, 5, page.Count)
	assert.Equal(t, Mask, page.TotalText)
	assert.Nil(t, page.Summary)
	require.Len(t, page.Groups, 3)
	assert.Equal(t, []string{"d", "c"}, saleIDs(page.Groups[1].Sales))

	day := at(1, 0)
	page = v.Render(Query{Filter: Filter{Day: &day}, ShowTotal: true})
	assert.Equal(t, "350.00", page.TotalText)
	require.NotNil(t, page.Summary)
	assert.Equal(t, 2, page.Summary.Count)

	got, err := v.Find("c")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Consecutive)
	_, err = v.Find("zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	src.err = errors.New("down")
	assert.Error(t, v.Refresh(context.Background()))
	assert.Equal(t, 5, v.Render(Query{}).Count, "previous list kept on failure")

	empty := NewView(&fakeSource{}, bogota, nil).Render(Query{})
	assert.NotNil(t, empty.Groups)
	assert.Equal(t, 0, empty.Count)
}
