package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"artemisa_pos/internal/sales"
)

// ProductQuery filters the product listing. Zero values mean "no filter".
type ProductQuery struct {
	Page       int
	Limit      int
	Category   sales.Category
	SearchTerm string
	Code       *int
}

func (q ProductQuery) params() map[string]string {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	code := "null"
	if q.Code != nil {
		code = strconv.Itoa(*q.Code)
	}
	return map[string]string{
		"page":       strconv.Itoa(page),
		"limit":      strconv.Itoa(limit),
		"category":   string(q.Category),
		"searchTerm": q.SearchTerm,
		"code":       code,
	}
}

// ProductPage is one page of the filtered listing.
type ProductPage struct {
	Products   []sales.Product
	TotalPages int
}

// Upload is an optional product image.
type Upload struct {
	FileName    string
	ContentType string
	Reader      io.Reader
}

// Credentials for POST /v1/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what the backend returns on a successful sign-in.
type LoginResult struct {
	AccessToken string `json:"accessToken" validate:"required"`
	ID          string `json:"_id"`
	Role        string `json:"role"`
}

// CategoryCount is units sold per category.
type CategoryCount struct {
	Category      []string `json:"category" validate:"min=1"`
	TotalQuantity int      `json:"totalQuantity"`
}

// Name is the category label; the backend wraps it in a one-element list.
func (c CategoryCount) Name() string {
	if len(c.Category) == 0 {
		return ""
	}
	return c.Category[0]
}

// PaymentCount is the number of sales per payment method.
type PaymentCount struct {
	PayType sales.PayType `json:"_id"`
	Count   int           `json:"count"`
}

// MonthlySales compares the previous and the current month.
type MonthlySales struct {
	LastMonth   int `json:"lastMonth"`
	ActualMonth int `json:"actualMonth"`
}

// FilterProducts lists one page of products.
func (c *Client) FilterProducts(ctx context.Context, q ProductQuery) (ProductPage, error) {
	const path = "/v1/products/filtered"
	env, err := c.send(c.request(ctx).SetQueryParams(q.params()), http.MethodGet, path)
	if err != nil {
		return ProductPage{}, err
	}
	page := ProductPage{TotalPages: 1}
	if err := c.decodeData(path, env, &page.Products); err != nil {
		return ProductPage{}, err
	}
	if env.Pagination != nil && env.Pagination.TotalPages > 0 {
		page.TotalPages = env.Pagination.TotalPages
	}
	return page, nil
}

// CreateProduct uploads a new product as multipart: a productData JSON part and
// an optional image part.
func (c *Client) CreateProduct(ctx context.Context, p sales.Product, image *Upload) (*sales.Product, error) {
	p.ID = ""
	return c.sendProduct(ctx, http.MethodPost, "/v1/product", p, image)
}

// UpdateProduct replaces the product with the given id.
func (c *Client) UpdateProduct(ctx context.Context, id string, p sales.Product, image *Upload) (*sales.Product, error) {
	p.ID = ""
	return c.sendProduct(ctx, http.MethodPut, "/v1/product/"+url.PathEscape(id), p, image)
}

func (c *Client) sendProduct(ctx context.Context, method, path string, p sales.Product, image *Upload) (*sales.Product, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}
	r := c.request(ctx).SetMultipartFormData(map[string]string{"productData": string(raw)})
	if image != nil && image.Reader != nil {
		r.SetMultipartField("image", image.FileName, image.ContentType, image.Reader)
	}
	env, err := c.send(r, method, path)
	if err != nil {
		return nil, err
	}
	// Some backend versions answer with a message only.
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var out sales.Product
	if err := c.decodeData(path, env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct removes a product and returns the backend's confirmation message.
func (c *Client) DeleteProduct(ctx context.Context, id string) (string, error) {
	env, err := c.send(c.request(ctx), http.MethodDelete, "/v1/product/"+url.PathEscape(id))
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// CreateSale posts a finalized sale. The idempotency key lets the backend drop
// a duplicate of the same attempt.
func (c *Client) CreateSale(ctx context.Context, sale sales.Sale, idempotencyKey string) (*sales.Sale, error) {
	const path = "/v1/sales"
	r := c.request(ctx).
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(map[string]any{"saleData": sale})
	env, err := c.send(r, http.MethodPost, path)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &sale, nil
	}
	var out sales.Sale
	if err := c.decodeData(path, env, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("sale created", zap.String("sale_id", out.ID), zap.Int("consecutive", out.Consecutive))
	return &out, nil
}

// AllSales lists every sale.
func (c *Client) AllSales(ctx context.Context) ([]sales.Sale, error) {
	const path = "/v1/sales/all"
	env, err := c.send(c.request(ctx), http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	var out []sales.Sale
	if err := c.decodeData(path, env, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LastConsecutive is the consecutive of the most recent sale, 0 when there is none.
func (c *Client) LastConsecutive(ctx context.Context) (int, error) {
	const path = "/v1/sales/last"
	env, err := c.send(c.request(ctx), http.MethodGet, path)
	if err != nil {
		return 0, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return 0, nil
	}
	var last struct {
		Consecutive int `json:"consecutive"`
	}
	if err := c.decodeData(path, env, &last); err != nil {
		return 0, err
	}
	return last.Consecutive, nil
}

// Login signs in. The backend answers with the token fields at the top level
// rather than inside data.
func (c *Client) Login(ctx context.Context, cred Credentials) (LoginResult, error) {
	const path = "/v1/login"
	res, err := c.request(ctx).SetBody(cred).Execute(http.MethodPost, path)
	if err != nil {
		return LoginResult{}, &Error{Kind: KindNetwork, Message: UnknownMessage, Err: err}
	}
	var body struct {
		LoginResult
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	decodeErr := json.Unmarshal(res.Bytes(), &body)
	if res.IsError() {
		msg := body.Message
		if decodeErr != nil || msg == "" {
			msg = UnknownMessage
		}
		c.logger.Warn("login rejected", zap.Int("status", res.StatusCode()))
		return LoginResult{}, &Error{Kind: KindServer, Status: res.StatusCode(), Message: msg}
	}
	if decodeErr != nil {
		return LoginResult{}, c.decodeError(path, res.StatusCode(), decodeErr)
	}
	out := body.LoginResult
	if out.AccessToken == "" && len(body.Data) > 0 {
		_ = json.Unmarshal(body.Data, &out)
	}
	if err := c.check(out); err != nil {
		return LoginResult{}, c.decodeError(path, res.StatusCode(), err)
	}
	return out, nil
}

// CategoryStats is units sold per category.
func (c *Client) CategoryStats(ctx context.Context) ([]CategoryCount, error) {
	var out []CategoryCount
	if err := c.getData(ctx, "/v1/stats/category", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentStats is the number of sales per payment method.
func (c *Client) PaymentStats(ctx context.Context) ([]PaymentCount, error) {
	var out []PaymentCount
	if err := c.getData(ctx, "/v1/stats/payments", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MonthlySales compares sales of the previous and current month.
func (c *Client) MonthlySales(ctx context.Context) (MonthlySales, error) {
	var out MonthlySales
	if err := c.getData(ctx, "/v1/stats/monthlysales", &out); err != nil {
		return MonthlySales{}, err
	}
	return out, nil
}

// TopProducts is the best-selling products.
func (c *Client) TopProducts(ctx context.Context) ([]sales.Product, error) {
	var out []sales.Product
	if err := c.getData(ctx, "/v1/stats/top", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getData(ctx context.Context, path string, out any) error {
	env, err := c.send(c.request(ctx), http.MethodGet, path)
	if err != nil {
		return err
	}
	return c.decodeData(path, env, out)
}

// DownloadInventory fetches the inventory spreadsheet as raw bytes.
func (c *Client) DownloadInventory(ctx context.Context) ([]byte, string, error) {
	const path = "/v1/inventory/download"
	res, err := c.request(ctx).Execute(http.MethodGet, path)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Message: UnknownMessage, Err: err}
	}
	if res.IsError() {
		var env envelope
		msg := UnknownMessage
		if json.Unmarshal(res.Bytes(), &env) == nil && env.Message != "" {
			msg = env.Message
		}
		return nil, "", &Error{Kind: KindServer, Status: res.StatusCode(), Message: msg}
	}
	return res.Bytes(), res.Header().Get("Content-Type"), nil
}
