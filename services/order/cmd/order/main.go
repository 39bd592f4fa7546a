package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/pkg/baas"
	"github.com/Skotchmaster/storefront/pkg/cache"
	pkgconfig "github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/search"

	ordercfg "github.com/Skotchmaster/storefront/services/order/internal/config"
	"github.com/Skotchmaster/storefront/services/order/internal/httpserver"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/Skotchmaster/storefront/services/order/internal/repo"
	"github.com/Skotchmaster/storefront/services/order/internal/service"
)

func main() {
	pkgconfig.LoadEnv("services/order/.env")

	cfg := ordercfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	baseCtx := logging.IntoContext(context.Background(), logger)

	ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	sagas := &repo.GormSagaRepo{DB: db}
	if err := sagas.Migrate(); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	client := baas.NewClient(cfg.BaaSURL, cfg.BaaSServiceKey)
	store := repo.NewRestRepo(client)
	clock := models.Clock(time.Now)

	var publisher service.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := events.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer p.Close()
		publisher = p
		logger.Info("events_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.EventsTopic)
	}

	var index service.OrderIndex
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("search_disabled", "error", err)
		} else {
			index = search.NewOrderIndex(es, "orders")
		}
	}

	var statusCache service.Cache
	var redisCache *cache.JSONCache
	if cfg.RedisAddr != "" {
		redisCache = cache.New(cache.NewClient(cfg.RedisAddr), cfg.ServiceName)
		statusCache = redisCache
	}

	retry := service.NewRetryQueue(sagas)
	statuses := service.NewStatusService(store, statusCache, cfg.StatusIDs)
	stock := service.NewStockService(store, retry)
	vouchers := service.NewVoucherService(store, retry, clock)
	notify := service.NewNotifier(store, publisher, index, retry, clock)
	addresses := service.NewAddressService(store)
	orders := service.NewOrderService(store, statuses, stock, notify, index, clock)
	checkout := service.NewCheckoutService(service.CheckoutDeps{
		Products:  store,
		Cart:      store,
		Orders:    store,
		Sagas:     sagas,
		Addresses: addresses,
		Vouchers:  vouchers,
		Stock:     stock,
		Submitter: service.NewSubmitter(store, statuses, clock),
		Notifier:  notify,
		Retry:     retry,
		Clock:     clock,
	})

	handler := &httpserver.OrderHTTP{
		Checkout:  checkout,
		Orders:    orders,
		Payments:  service.NewPaymentService(store, client, notify, cfg.PaymentBucket, cfg.MaxProofBytes, clock),
		Addresses: addresses,
		Vouchers:  vouchers,
		Statuses:  statuses,
		Reports:   service.NewReportService(store),
		Clock:     clock,
	}

	workerCtx, stopWorker := context.WithCancel(baseCtx)
	worker := service.NewRetryWorker(sagas, checkout, publisher, cfg.RetryInterval, cfg.RetryMaxAttempts)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: handler,
		JWTSecret:    cfg.JWTSecret,
		Ready: func(c echo.Context) error {
			ctx := c.Request().Context()
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if redisCache != nil {
				if err := redisCache.Ping(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("order_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	stopWorker()
	<-workerDone

	if err := pkgdb.Close(db); err != nil {
		logger.Warn("db_close_error", "error", err)
	}
	logger.Info("order_stopped")
}
