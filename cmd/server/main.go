package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/database"
	"github.com/iliyamo/parking-slot-reservation/internal/handler"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
	"github.com/iliyamo/parking-slot-reservation/internal/router"
	"github.com/iliyamo/parking-slot-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins
	cfg := config.Load()

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "parking-api"})

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
		Path:   cfg.DBPath,
	})
	if err != nil {
		log.Fatal("open database", "driver", cfg.DBDriver, "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatal("migrate database", "error", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable; using in-process rate limiting and no response cache")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	floors := repository.NewFloorRepo(db)
	slots := repository.NewSlotRepo(db, cfg.DBDriver)
	bookings := repository.NewBookingRepo(db)

	deps := service.Deps{
		DB:       db,
		Slots:    slots,
		Bookings: bookings,
		Users:    users,
		Floors:   floors,
		Rates:    cfg.Rates,
		Logger:   log,
	}
	if cfg.AMQPURL != "" {
		pub := service.NewRabbitPublisher(cfg.AMQPURL, 256, log)
		deps.Events = pub
		go pub.Run(ctx)
		go func() {
			if err := queue.NewConsumer(cfg.AMQPURL, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", "error", err)
			}
		}()
	} else {
		log.Info("RABBITMQ_URL not set; booking events disabled")
	}

	bookingSvc := service.NewBookingService(deps)
	reconciler := bookingSvc.Reconciler()
	adminSvc := service.NewAdminService(reconciler)
	availSvc := service.NewAvailabilityService(reconciler)
	authSvc := service.NewAuthService(service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		ResetTTL:       cfg.ResetTTL,
	}, users, tokens, log, nil)

	if err := adminSvc.Seed(ctx, service.SeedOptions{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		BcryptCost:    cfg.BcryptCost,
		Demo:          cfg.SeedDemo,
	}); err != nil {
		log.Fatal("seed database", "error", err)
	}

	go reconciler.Run(ctx, cfg.ReconcileInterval)

	e := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, cfg.JWTSecret, cfg.Env != "prod"),
		Bookings: handler.NewBookingHandler(bookingSvc, users, cfg.Location, cfg.JWTSecret),
		Public:   handler.NewPublicHandler(availSvc, cfg.Location),
		Admin:    handler.NewAdminHandler(adminSvc, bookingSvc, cfg.Location),
		DB:       db,
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		Cache:     cfg.Cache,
		Redis:     rdb,
		Logger:    log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver, "timezone", cfg.Location.String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
}
