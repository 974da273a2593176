package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"artemisa_pos/internal/sales"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// newBackend levanta un backend falso con las rutas que registre setup.
func newBackend(t *testing.T, setup func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, staticToken("tok-123"), zaptest.NewLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFilterProducts_SendsQueryAndToken(t *testing.T) {
	var got *http.Request
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/products/filtered", func(ctx *gin.Context) {
			got = ctx.Request.Clone(context.Background())
			ctx.JSON(http.StatusOK, gin.H{
				"data": []gin.H{
					{"_id": "p1", "name": "Crema", "category": "Belleza", "price": 12.5, "stock": 3},
					{"_id": "p2", "name": "Shampoo", "category": "Salud", "price": 8},
				},
				"pagination": gin.H{"totalPages": 4},
			})
		})
	})

	code := 77
	page, err := c.FilterProducts(context.Background(), ProductQuery{Page: 2, Category: sales.CategoryBeauty, SearchTerm: "cre", Code: &code})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "tok-123", got.Header.Get("authorization"))
	q := got.URL.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "Belleza", q.Get("category"))
	assert.Equal(t, "cre", q.Get("searchTerm"))
	assert.Equal(t, "77", q.Get("code"))

	assert.Equal(t, 4, page.TotalPages)
	require.Len(t, page.Products, 2)
	assert.True(t, page.Products[0].Price.Decimal.Equal(decimal.NewFromFloat(12.5)))
	assert.True(t, page.Products[0].LowStock())
	assert.Nil(t, page.Products[1].Stock)
}

func TestFilterProducts_UnsetCodeIsNull(t *testing.T) {
	var code string
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/products/filtered", func(ctx *gin.Context) {
			code = ctx.Query("code")
			ctx.JSON(http.StatusOK, gin.H{"data": []gin.H{}})
		})
	})

	page, err := c.FilterProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, "null", code)
	assert.Equal(t, 1, page.TotalPages, "missing pagination means a single page")
}

func TestServerErrorCarriesMessage(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/sales/all", func(ctx *gin.Context) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Token inválido"})
		})
		r.GET("/v1/sales/last", func(ctx *gin.Context) {
			ctx.String(http.StatusInternalServerError, "boom")
		})
	})

	_, err := c.AllSales(context.Background())
	re, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindServer, re.Kind)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.Equal(t, "Token inválido", UserMessage(err))

	_, err = c.LastConsecutive(context.Background())
	re, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindServer, re.Kind)
	assert.Equal(t, UnknownMessage, re.Message, "non-JSON error bodies fall back to the generic message")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, nil, zaptest.NewLogger(t))
	_, err := c.AllSales(context.Background())

	re, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, re.Kind)
	assert.Equal(t, UnknownMessage, UserMessage(err))

	list, err := c.AllSales(context.Background())
	res := Of(list, err)
	assert.False(t, res.OK())
	assert.Equal(t, KindNetwork, res.Err.Kind)
}

func TestSchemaMismatchIsDecodeError(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/sales/all", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"data": "not a list"})
		})
		r.GET("/v1/stats/top", func(ctx *gin.Context) {
			// product without a name
			ctx.JSON(http.StatusOK, gin.H{"data": []gin.H{{"_id": "p1"}}})
		})
		r.GET("/v1/stats/monthlysales", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"message": "ok"})
		})
	})

	for name, call := range map[string]func() error{
		"wrong type":   func() error { _, err := c.AllSales(context.Background()); return err },
		"failed rule":  func() error { _, err := c.TopProducts(context.Background()); return err },
		"missing data": func() error { _, err := c.MonthlySales(context.Background()); return err },
	} {
		t.Run(name, func(t *testing.T) {
			re, ok := AsError(call())
			require.True(t, ok)
			assert.Equal(t, KindDecode, re.Kind)
		})
	}
}

func TestCreateSale_WrapsBodyAndSendsKey(t *testing.T) {
	var body struct {
		SaleData sales.Sale `json:"saleData"`
	}
	var key string
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/v1/sales", func(ctx *gin.Context) {
			key = ctx.GetHeader("Idempotency-Key")
			_ = ctx.ShouldBindJSON(&body)
			out := body.SaleData
			out.ID = "s1"
			out.Consecutive = 9
			ctx.JSON(http.StatusCreated, gin.H{"data": out, "message": "Venta creada"})
		})
	})

	sale := sales.Sale{
		TotalPrice: decimal.NewFromInt(30),
		PayType:    sales.PayCash,
		Created:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Products: []sales.LineItem{{
			Product:  sales.Product{ID: "p1", Name: "Crema", Price: decimal.NewNullDecimal(decimal.NewFromInt(15))},
			Quantity: 2,
		}},
		MoneyReturned: decimal.NewNullDecimal(decimal.NewFromInt(20)),
	}
	saved, err := c.CreateSale(context.Background(), sale, "key-1")
	require.NoError(t, err)

	assert.Equal(t, "key-1", key)
	assert.True(t, body.SaleData.TotalPrice.Equal(decimal.NewFromInt(30)))
	require.Len(t, body.SaleData.Products, 1)
	assert.Equal(t, 2, body.SaleData.Products[0].Quantity)
	assert.Equal(t, "s1", saved.ID)
	assert.Equal(t, 9, saved.Consecutive)
}

func TestLastConsecutive(t *testing.T) {
	payload := gin.H{"data": gin.H{"consecutive": 41}}
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/sales/last", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, payload) })
	})

	n, err := c.LastConsecutive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 41, n)

	payload = gin.H{"data": nil}
	n, err = c.LastConsecutive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "no sales yet")
}

func TestCreateProduct_Multipart(t *testing.T) {
	var productData, imageName, imageBody string
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/v1/product", func(ctx *gin.Context) {
			productData = ctx.PostForm("productData")
			if fh, err := ctx.FormFile("image"); err == nil {
				imageName = fh.Filename
				f, _ := fh.Open()
				b, _ := io.ReadAll(f)
				imageBody = string(b)
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": gin.H{"_id": "new", "name": "Gorra"}})
		})
	})

	stock := 4
	p := sales.Product{ID: "ignored", Name: "Gorra", Category: sales.CategoryAccessory, Price: decimal.NewNullDecimal(decimal.NewFromInt(20)), Stock: &stock}
	img := &Upload{FileName: "gorra.png", ContentType: "image/png", Reader: strings.NewReader("PNGDATA")}

	created, err := c.CreateProduct(context.Background(), p, img)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "new", created.ID)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(productData), &sent))
	assert.Equal(t, "Gorra", sent["name"])
	assert.Equal(t, "Accesorios", sent["category"])
	assert.EqualValues(t, 20, sent["price"])
	assert.NotContains(t, sent, "_id")
	assert.Equal(t, "gorra.png", imageName)
	assert.Equal(t, "PNGDATA", imageBody)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	var updated, deleted string
	c := newBackend(t, func(r *gin.Engine) {
		r.PUT("/v1/product/:id", func(ctx *gin.Context) {
			updated = ctx.Param("id")
			ctx.JSON(http.StatusOK, gin.H{"message": "Producto actualizado"})
		})
		r.DELETE("/v1/product/:id", func(ctx *gin.Context) {
			deleted = ctx.Param("id")
			ctx.JSON(http.StatusOK, gin.H{"message": "Producto eliminado"})
		})
	})

	got, err := c.UpdateProduct(context.Background(), "p9", sales.Product{Name: "X"}, nil)
	require.NoError(t, err)
	assert.Nil(t, got, "message-only answer")
	assert.Equal(t, "p9", updated)

	msg, err := c.DeleteProduct(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", deleted)
	assert.Equal(t, "Producto eliminado", msg)
}

func TestLogin(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/v1/login", func(ctx *gin.Context) {
			var cred Credentials
			_ = ctx.ShouldBindJSON(&cred)
			if cred.Password != "secret" {
				ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Credenciales inválidas"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"accessToken": "jwt", "_id": "u1", "role": "Admin"})
		})
	})

	res, err := c.Login(context.Background(), Credentials{Email: "a@b.co", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, LoginResult{AccessToken: "jwt", ID: "u1", Role: "Admin"}, res)

	_, err = c.Login(context.Background(), Credentials{Email: "a@b.co", Password: "nope"})
	assert.Equal(t, "Credenciales inválidas", UserMessage(err))
}

func TestStatsEndpoints(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/stats/category", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"data": []gin.H{{"category": []string{"Salud"}, "totalQuantity": 12}}})
		})
		r.GET("/v1/stats/payments", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"data": []gin.H{{"_id": "Efectivo", "count": 5}}})
		})
		r.GET("/v1/stats/monthlysales", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"lastMonth": 10, "actualMonth": 3}})
		})
	})

	cats, err := c.CategoryStats(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Salud", cats[0].Name())
	assert.Equal(t, 12, cats[0].TotalQuantity)

	pays, err := c.PaymentStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PaymentCount{{PayType: sales.PayCash, Count: 5}}, pays)

	monthly, err := c.MonthlySales(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MonthlySales{LastMonth: 10, ActualMonth: 3}, monthly)
}

func TestDownloadInventory(t *testing.T) {
	xlsx := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x0a}
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/v1/inventory/download", func(ctx *gin.Context) {
			ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx)
		})
	})

	body, ct, err := c.DownloadInventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, xlsx, body)
	assert.Contains(t, ct, "spreadsheetml")
}
