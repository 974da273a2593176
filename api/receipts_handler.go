package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"artemisa_pos/internal/export"
	"artemisa_pos/internal/printer"
	"artemisa_pos/internal/receipts"
	"artemisa_pos/internal/sales"
)

// receiptPrinter renders a sale for the configured printer.
type receiptPrinter struct {
	device    printer.Printer
	width     int
	storeName string
	loc       *time.Location
}

func (p receiptPrinter) print(ctx context.Context, sale sales.Sale) error {
	if p.device == nil {
		return printer.ErrNotConfigured
	}
	return p.device.Print(ctx, printer.RenderSale(sale, p.width, p.storeName, p.loc))
}

type receiptsHandler struct {
	view    *receipts.View
	receipt receiptPrinter
	logger  *zap.Logger
}

func NewReceiptsHandler(view *receipts.View, receipt receiptPrinter, logger *zap.Logger) *receiptsHandler {
	return &receiptsHandler{view: view, receipt: receipt, logger: logger}
}

// query reads the receipts filters: day, total, consecutive, order and
// showTotal. Receipts are ascending unless order=desc.
func (h *receiptsHandler) query(ctx *gin.Context) (receipts.Query, error) {
	f, err := receipts.ParseFilter(ctx.Query("day"), ctx.Query("total"), ctx.Query("consecutive"), h.view.Location())
	if err != nil {
		return receipts.Query{}, err
	}
	return receipts.Query{
		Filter:         f,
		ConsecutiveAsc: ctx.Query("order") != "desc",
		ShowTotal:      cast.ToBool(ctx.Query("showTotal")),
	}, nil
}

// handleList handles GET /receipts.
func (h *receiptsHandler) handleList(ctx *gin.Context) {
	q, err := h.query(ctx)
	if err != nil {
		reject(ctx, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.view.Refresh(ctx.Request.Context()); err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, h.view.Render(q))
}

// handleExport handles GET /receipts/export?format=csv|xlsx with the same
// filters as the listing.
func (h *receiptsHandler) handleExport(ctx *gin.Context) {
	q, err := h.query(ctx)
	if err != nil {
		reject(ctx, http.StatusBadRequest, err.Error())
		return
	}
	format := ctx.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		reject(ctx, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}
	if err := h.view.Refresh(ctx.Request.Context()); err != nil {
		fail(ctx, h.logger, err)
		return
	}

	loc := h.view.Location()
	rows := export.Rows(receipts.GroupByDay(h.view.Filtered(q), loc), loc)

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.XLSX(&buf, rows)
	} else {
		err = export.CSV(&buf, rows)
	}
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}

	name := fmt.Sprintf("recibos-%s.%s", time.Now().In(loc).Format(receipts.DayLayout), format)
	ctx.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	ctx.Data(http.StatusOK, contentType, buf.Bytes())
	h.logger.Info("receipts exported", zap.String("format", format), zap.Int("rows", len(rows)))
}

// handlePrint handles POST /receipts/:id/print. An unknown id triggers one
// reload before giving up.
func (h *receiptsHandler) handlePrint(ctx *gin.Context) {
	id := ctx.Param("id")
	sale, err := h.view.Find(id)
	if errors.Is(err, receipts.ErrNotFound) {
		if err := h.view.Refresh(ctx.Request.Context()); err != nil {
			fail(ctx, h.logger, err)
			return
		}
		sale, err = h.view.Find(id)
	}
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}

	if err := h.receipt.print(ctx.Request.Context(), sale); err != nil {
		fail(ctx, h.logger, err)
		return
	}
	h.logger.Info("receipt printed", zap.String("sale_id", sale.ID), zap.Int("consecutive", sale.Consecutive))
	respond(ctx, http.StatusOK, gin.H{"printed": sale.ID})
}
