package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pcarivbts/CommunityCellularManager/internal/broadcast"
	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
	"github.com/pcarivbts/CommunityCellularManager/internal/tsdb"
)

// deps are the long-lived services the routes are built over.
type deps struct {
	db         *gorm.DB
	engine     *stats.Engine
	samples    *tsdb.Store
	broadcasts *broadcast.Service
	log        zerolog.Logger
}

func newRouter(d deps) *gin.Engine {
	r := gin.Default()

	r.GET("/", serveDashboard)
	r.GET("/dashboard", serveDashboard)

	api := r.Group("/api/v1")
	api.GET("/stats/:level", handleStats(d.engine))
	api.GET("/reports/:level", handleReport(d.engine))
	api.GET("/cache", handleCacheStats(d.engine))
	api.POST("/usage-events", handleUsageEvents(d.db, d.engine))
	api.POST("/towers/:id/samples", handleTowerSamples(d.db, d.samples, d.engine))
	api.POST("/towers/:id/events", handleSystemEvent(d.db, d.engine))

	r.GET("/report/downloadcsv", handleReportCSV(d.engine))
	r.GET("/report/png", handleReportPNG(d.engine))
	r.GET("/report/chart", handleReportChart(d.engine))

	r.POST("/dashboard/broadcast", handleBroadcast(d.broadcasts))
	r.GET("/dashboard/broadcast/history", handleBroadcastHistory(d.broadcasts))

	r.GET("/ws/reports", handleLiveReports(d.engine, d.log))
	return r
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml or config.toml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	samples, err := tsdb.Open(tsdb.Config{Path: cfg.TSDB.Path, CompressionLevel: cfg.TSDB.CompressionLevel})
	if err != nil {
		return fmt.Errorf("open tsdb: %w", err)
	}
	defer samples.Close()

	engine := stats.NewEngine(db, samples,
		stats.WithCache(stats.NewQueryCache(cfg.Cache.Capacity, cfg.Cache.TTL.Duration())),
		stats.WithLocation(cfg.location()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := broadcast.NewDispatcher(broadcast.DispatcherConfig{
		Workers:    cfg.Broadcast.Workers,
		Queue:      cfg.Broadcast.Queue,
		Timeout:    cfg.Broadcast.Timeout.Duration(),
		RetryDelay: cfg.Broadcast.RetryDelay.Duration(),
		MaxRetries: cfg.Broadcast.MaxRetries,
	}, log)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(deps{
		db:         db,
		engine:     engine,
		samples:    samples,
		broadcasts: broadcast.NewService(db, dispatcher, log),
		log:        log,
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("db", cfg.Database.Driver).Msg("report server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	// releases workers waiting out a retry delay
	stop()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
