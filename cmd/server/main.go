package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v3" // JWKS-backed key lookup for provider tokens
	"github.com/labstack/echo/v4"      // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/trip-marketplace/internal/config"
	"github.com/iliyamo/trip-marketplace/internal/database"
	"github.com/iliyamo/trip-marketplace/internal/handler"
	"github.com/iliyamo/trip-marketplace/internal/logger"
	"github.com/iliyamo/trip-marketplace/internal/mailer"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
	"github.com/iliyamo/trip-marketplace/internal/queue"
	"github.com/iliyamo/trip-marketplace/internal/repository"
	"github.com/iliyamo/trip-marketplace/internal/router"
	"github.com/iliyamo/trip-marketplace/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	otpCfg := config.LoadOTPConfig()
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	lg := logger.New("trip-marketplace", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			lg.Fatalf("database: %v", err)
		}
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		lg.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	users := repository.NewUserRepo(db)
	trips := repository.NewTripRepo(db)
	bookings := repository.NewBookingRepo(db)
	codes := repository.NewOTPStore(rdb, otpCfg.KeyPrefix)
	windows := repository.NewWindowStore(rdb, otpCfg.KeyPrefix+":rl")

	// ---- Notifications ----
	smtpMailer := mailer.NewSMTPMailer(cfg.Mail)
	var (
		pub       service.Publisher
		publisher *queue.Publisher
	)
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL)
		pub = publisher
		go func() {
			if err := queue.StartEmailConsumer(ctx, cfg.RabbitURL, smtpMailer, lg); err != nil && !errors.Is(err, context.Canceled) {
				lg.Errorf("email consumer stopped: %v", err)
			}
		}()
	} else {
		lg.Warn("RABBITMQ_URL not set; booking emails are sent in-process")
	}
	dispatcher := service.NewDispatcher(smtpMailer, pub, lg)

	// ---- Services ----
	directory := service.NewUserDirectory(users)
	catalog := service.NewTripCatalog(trips)
	engine := service.NewBookingEngine(bookings, trips, users, dispatcher, lg).WithBaseURL(cfg.BaseURL)
	otp := service.NewOTPService(codes, otpCfg.Secret, otpCfg.Length, otpCfg.TTL)
	limiter := service.NewRateLimiter(windows, otpCfg.MaxRequests, otpCfg.Window)

	// ---- Auth ----
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.Auth.JWKSURL})
	if err != nil {
		lg.Fatalf("jwks: %v", err)
	}
	verifier := middleware.NewTokenVerifier(jwks.Keyfunc, cfg.Auth)

	// ---- HTTP ----
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Logger = lg
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.BaseURL},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			lg.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	deps := router.Deps{
		Verifier:  verifier,
		Users:     directory,
		Redis:     rdb,
		RateLimit: rlCfg,
		Cache:     cacheCfg,
	}
	tripHandler := handler.NewTripHandler(catalog)
	bookingHandler := handler.NewBookingHandler(engine)

	router.RegisterRoutes(e, db)
	v1 := router.API(e, deps)
	router.RegisterAuth(v1, handler.NewAuthHandler(cfg.Auth, otp, limiter, dispatcher, directory), deps)
	router.RegisterTrips(v1, tripHandler, deps)
	router.RegisterOrganizer(v1, tripHandler, bookingHandler, deps)
	router.RegisterBookings(v1, bookingHandler, deps)

	addr := ":" + cfg.Port                              // Address string with port
	lg.Infof("listening on %s (env=%s)", addr, cfg.Env) // Print startup info
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("shutdown: %v", err)
	}
	// Let in-process email sends finish before the broker connection goes.
	dispatcher.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			lg.Warnf("amqp close: %v", err)
		}
	}
}
