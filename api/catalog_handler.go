package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"artemisa_pos/internal/catalog"
	"artemisa_pos/internal/remote"
	"artemisa_pos/internal/sales"
)

// InventorySource serves the inventory spreadsheet.
type InventorySource interface {
	DownloadInventory(ctx context.Context) ([]byte, string, error)
}

type catalogHandler struct {
	catalog   *catalog.ViewModel
	inventory InventorySource
	logger    *zap.Logger
}

func NewCatalogHandler(vm *catalog.ViewModel, inventory InventorySource, logger *zap.Logger) *catalogHandler {
	return &catalogHandler{catalog: vm, inventory: inventory, logger: logger}
}

// handleList handles GET /products?searchTerm&code&category&sort&page.
func (h *catalogHandler) handleList(ctx *gin.Context) {
	f := catalog.Filters{
		SearchTerm: strings.TrimSpace(ctx.Query("searchTerm")),
		Category:   sales.Category(ctx.Query("category")),
		Sort:       catalog.SortOrder(ctx.Query("sort")),
	}
	if raw := strings.TrimSpace(ctx.Query("code")); raw != "" {
		code, err := cast.ToIntE(raw)
		if err != nil {
			reject(ctx, http.StatusBadRequest, "invalid code")
			return
		}
		f.Code = &code
	}
	page := cast.ToInt(ctx.Query("page"))

	l, err := h.catalog.Show(ctx.Request.Context(), f, page)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, l)
}

// readForm accepts either a multipart body (productData JSON plus an optional
// image file) or a plain JSON product form. The returned closer releases the
// uploaded file.
func readForm(ctx *gin.Context) (catalog.ProductForm, *remote.Upload, func(), error) {
	var form catalog.ProductForm
	noop := func() {}

	if ctx.ContentType() != gin.MIMEMultipartPOSTForm {
		if err := ctx.ShouldBindJSON(&form); err != nil {
			return form, nil, noop, errInvalidBody
		}
		return form, nil, noop, nil
	}

	if err := json.Unmarshal([]byte(ctx.PostForm("productData")), &form); err != nil {
		return form, nil, noop, errInvalidBody
	}
	file, header, err := ctx.Request.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, noop, nil
	}
	if err != nil {
		return form, nil, noop, errInvalidBody
	}
	upload := &remote.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}
	return form, upload, func() { _ = file.Close() }, nil
}

func (h *catalogHandler) handleCreate(ctx *gin.Context) {
	form, image, done, err := readForm(ctx)
	defer done()
	if err != nil {
		reject(ctx, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.catalog.Create(ctx.Request.Context(), form, image)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusCreated, created)
}

func (h *catalogHandler) handleUpdate(ctx *gin.Context) {
	form, image, done, err := readForm(ctx)
	defer done()
	if err != nil {
		reject(ctx, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.catalog.Update(ctx.Request.Context(), ctx.Param("id"), form, image)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, updated)
}

func (h *catalogHandler) handleDelete(ctx *gin.Context) {
	msg, err := h.catalog.Delete(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"message": msg})
}

// handleNameCheck handles GET /products/name-check?name=. A newer check for
// the same session answers 409 to the older one.
func (h *catalogHandler) handleNameCheck(ctx *gin.Context) {
	res, err := h.catalog.CheckName(ctx.Request.Context(), ctx.Query("name"))
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, res)
}

func (h *catalogHandler) handleInventory(ctx *gin.Context) {
	data, contentType, err := h.inventory.DownloadInventory(ctx.Request.Context())
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Header("Content-Disposition", `attachment; filename="inventario.xlsx"`)
	ctx.Data(http.StatusOK, contentType, data)
}
