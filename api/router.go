package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artemisa_pos/internal/catalog"
	"artemisa_pos/internal/config"
	"artemisa_pos/internal/printer"
	"artemisa_pos/internal/receipts"
	"artemisa_pos/internal/sales"
	"artemisa_pos/internal/session"
	"artemisa_pos/internal/stats"
)

// Deps are the services the routes are built on.
type Deps struct {
	Config    *config.Config
	Sessions  *session.Manager
	Auth      session.Authenticator
	Inventory InventorySource
	Store     *sales.Store
	Checkout  *sales.Service
	Catalog   *catalog.ViewModel
	Receipts  *receipts.View
	Stats     *stats.Service
	Printer   printer.Printer
	Logger    *zap.Logger
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// InitRoutes registers every endpoint of the point of sale on e. Everything
// except /ping and /login sits behind the role gate.
func InitRoutes(e *gin.Engine, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	receipt := receiptPrinter{
		device:    d.Printer,
		width:     d.Config.Printer.Width,
		storeName: d.Config.App.StoreName,
		loc:       d.Config.App.Location(),
	}
	salesHandler := NewSalesHandler(d.Store, d.Checkout, receipt, logger)
	catalogHandler := NewCatalogHandler(d.Catalog, d.Inventory, logger)
	receiptsHandler := NewReceiptsHandler(d.Receipts, receipt, logger)
	sessionHandler := NewSessionHandler(d.Sessions, d.Auth, logger)
	statsHandler := NewStatsHandler(d.Stats, logger)

	e.Use(corsMiddleware(d.Config.CORS))

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	e.POST("/login", sessionHandler.handleLogin)

	g := e.Group("/", RequireRole(d.Sessions, d.Config.Session.RequiredRoles, logger))
	g.POST("/logout", sessionHandler.handleLogout)

	g.GET("/cart", salesHandler.handleGetCart)
	g.DELETE("/cart", salesHandler.handleClearCart)
	g.POST("/cart/items", salesHandler.handleAddItem)
	g.PUT("/cart/items/:id", salesHandler.handleSetQuantity)
	g.DELETE("/cart/items/:id", salesHandler.handleRemoveItem)
	g.PUT("/cart/items/:id/price", salesHandler.handleSetPrice)
	g.PUT("/cart/pay-type", salesHandler.handleSetPayType)

	g.GET("/checkout", salesHandler.handleGetCheckout)
	g.PUT("/checkout", salesHandler.handleConfigureCheckout)
	g.POST("/checkout/submit", salesHandler.handleSubmit)

	g.GET("/products", catalogHandler.handleList)
	g.POST("/products", catalogHandler.handleCreate)
	g.GET("/products/name-check", catalogHandler.handleNameCheck)
	g.PUT("/products/:id", catalogHandler.handleUpdate)
	g.DELETE("/products/:id", catalogHandler.handleDelete)
	g.GET("/inventory/download", catalogHandler.handleInventory)

	g.GET("/receipts", receiptsHandler.handleList)
	g.GET("/receipts/export", receiptsHandler.handleExport)
	g.POST("/receipts/:id/print", receiptsHandler.handlePrint)

	g.GET("/stats", statsHandler.handleDashboard)
}
