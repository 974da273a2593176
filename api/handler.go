package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"artemisa_pos/internal/sales"
)

var errInvalidBody = errors.New("invalid request payload")

// salesHandler serves the draft sale and the checkout.
type salesHandler struct {
	store        *sales.Store
	salesService *sales.Service
	receipt      receiptPrinter
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(store *sales.Store, salesService *sales.Service, receipt receiptPrinter, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		store:        store,
		salesService: salesService,
		receipt:      receipt,
		logger:       logger,
	}
}

// parseMoney accepts a JSON number or string. Blank or absent means no amount.
func parseMoney(v any) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if s = strings.TrimSpace(s); s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: invalid amount %q", errInvalidBody, s)
	}
	return decimal.NewNullDecimal(d), nil
}

func (h *salesHandler) handleGetCart(ctx *gin.Context) {
	respond(ctx, http.StatusOK, h.store.Snapshot())
}

func (h *salesHandler) handleClearCart(ctx *gin.Context) {
	d, err := h.store.Clear()
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

// handleAddItem handles POST /cart/items.
func (h *salesHandler) handleAddItem(ctx *gin.Context) {
	var req struct {
		Product  sales.Product `json:"product"`
		Quantity any           `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		reject(ctx, http.StatusBadRequest, errInvalidBody.Error())
		return
	}
	qty, err := cast.ToIntE(req.Quantity)
	if err != nil {
		reject(ctx, http.StatusBadRequest, "invalid quantity")
		return
	}

	d, err := h.store.AddLineItem(req.Product, qty)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

// handleSetQuantity handles PUT /cart/items/:id. Zero or less removes the item.
func (h *salesHandler) handleSetQuantity(ctx *gin.Context) {
	var req struct {
		Quantity any `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reject(ctx, http.StatusBadRequest, errInvalidBody.Error())
		return
	}
	qty, err := cast.ToIntE(req.Quantity)
	if err != nil {
		reject(ctx, http.StatusBadRequest, "invalid quantity")
		return
	}

	d, err := h.store.SetLineItemQuantity(ctx.Param("id"), qty)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

func (h *salesHandler) handleRemoveItem(ctx *gin.Context) {
	d, err := h.store.RemoveLineItem(ctx.Param("id"))
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

func (h *salesHandler) handleSetPrice(ctx *gin.Context) {
	var req struct {
		Price any `json:"price"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reject(ctx, http.StatusBadRequest, errInvalidBody.Error())
		return
	}
	price, err := parseMoney(req.Price)
	if err != nil || !price.Valid {
		reject(ctx, http.StatusBadRequest, "invalid price")
		return
	}

	d, err := h.store.SetLineItemPrice(ctx.Param("id"), price.Decimal)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

func (h *salesHandler) handleSetPayType(ctx *gin.Context) {
	var req struct {
		PayType sales.PayType `json:"payType"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reject(ctx, http.StatusBadRequest, errInvalidBody.Error())
		return
	}
	d, err := h.store.SetPayType(req.PayType)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}

// handleGetCheckout handles GET /checkout. The next receipt number is
// informative; it is left out when the backend cannot be reached.
func (h *salesHandler) handleGetCheckout(ctx *gin.Context) {
	out := gin.H{"state": h.salesService.State()}
	if next, err := h.salesService.NextReceiptNumber(ctx.Request.Context()); err == nil {
		out["nextReceipt"] = next
	}
	respond(ctx, http.StatusOK, out)
}

// handleConfigureCheckout handles PUT /checkout.
func (h *salesHandler) handleConfigureCheckout(ctx *gin.Context) {
	var req struct {
		PayType     sales.PayType `json:"payType"`
		Tendered    any           `json:"tendered"`
		Wholesale   bool          `json:"wholesale"`
		CustomTotal any           `json:"customTotal"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		reject(ctx, http.StatusBadRequest, errInvalidBody.Error())
		return
	}
	if req.PayType == "" {
		req.PayType = h.store.Snapshot().PayType
	}
	tendered, err := parseMoney(req.Tendered)
	if err != nil {
		reject(ctx, http.StatusBadRequest, "invalid tendered amount")
		return
	}
	custom, err := parseMoney(req.CustomTotal)
	if err != nil {
		reject(ctx, http.StatusBadRequest, "invalid custom total")
		return
	}

	st, err := h.salesService.Configure(req.PayType, tendered, req.Wholesale, custom)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, st)
}

// handleSubmit handles POST /checkout/submit. With ?print=true the receipt
// is printed too; a printer problem does not undo the saved sale.
func (h *salesHandler) handleSubmit(ctx *gin.Context) {
	saved, err := h.salesService.Submit(ctx.Request.Context())
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}

	out := gin.H{"sale": saved, "next": sales.ReceiptsPath}
	if cast.ToBool(ctx.Query("print")) {
		if err := h.receipt.print(ctx.Request.Context(), *saved); err != nil {
			h.logger.Warn("receipt not printed", zap.String("sale_id", saved.ID), zap.Error(err))
			out["printError"] = err.Error()
		}
	}
	respond(ctx, http.StatusCreated, out)
}
