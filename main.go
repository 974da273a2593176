package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artemisa_pos/api"
	"artemisa_pos/internal/catalog"
	"artemisa_pos/internal/config"
	"artemisa_pos/internal/localstore"
	"artemisa_pos/internal/logger"
	"artemisa_pos/internal/printer"
	"artemisa_pos/internal/receipts"
	"artemisa_pos/internal/remote"
	"artemisa_pos/internal/sales"
	"artemisa_pos/internal/session"
	"artemisa_pos/internal/stats"
)

func openState(cfg config.StateConfig) (localstore.Store, error) {
	if cfg.Backend == "memory" {
		return localstore.NewMemory(), nil
	}
	return localstore.OpenBolt(cfg.File)
}

func main() {
	cfg, err := config.Load(os.Getenv("ARTEMISA_CONFIG"))
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	defer log.Sync() // flushes buffer, if any
	zap.ReplaceGlobals(log)

	kv, err := openState(cfg.State)
	if err != nil {
		log.Fatal("cannot open local state", zap.String("file", cfg.State.File), zap.Error(err))
	}
	defer kv.Close()

	device, err := printer.New(printer.Config{
		Type:    cfg.Printer.Type,
		USBPath: cfg.Printer.USBPath,
		Address: cfg.Printer.Address,
		Width:   cfg.Printer.Width,
	})
	if err != nil {
		log.Fatal("invalid printer configuration", zap.Error(err))
	}

	loc := cfg.App.Location()
	store := sales.NewStore(kv, log)
	sess := session.NewManager(kv, log, session.OnLogout(func() {
		if _, err := store.Clear(); err != nil {
			log.Warn("draft kept after logout", zap.Error(err))
		}
	}))
	client := remote.New(remote.Config{BaseURL: cfg.Backend.URL, Timeout: cfg.Backend.Timeout}, sess, log)
	defer client.Close()

	if cfg.Logger.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	api.InitRoutes(r, api.Deps{
		Config:    cfg,
		Sessions:  sess,
		Auth:      client,
		Inventory: client,
		Store:     store,
		Checkout:  sales.NewService(store, client, log),
		Catalog:   catalog.NewViewModel(client, cfg.Catalog.PageLimit, cfg.Catalog.NameCheckDelay, log),
		Receipts:  receipts.NewView(client, loc, log),
		Stats:     stats.NewService(client, loc, log),
		Printer:   device,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.Backend.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("error trying to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
}
