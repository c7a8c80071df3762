package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geocode"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/service/file"
	locationService "github.com/cmlabs-hris/attendance-engine/internal/service/location"
	officeHoursService "github.com/cmlabs-hris/attendance-engine/internal/service/officehours"
)

const (
	appName         = "attendance-engine"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).With(
		slog.String("app", appName),
		slog.String("env", cfg.App.Env),
	))

	tz, err := cfg.TimeLocation()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,

		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		log.Fatal("Error connecting to database: ", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		// the cache is an optimisation, geocoding still works without it
		slog.Warn("Redis unavailable, geocode cache disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.UploadDir, cfg.Storage.PublicURL)
	if err != nil {
		log.Fatal("Failed to initialize local storage: ", err)
	}

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	officeHoursRepo := postgresql.NewOfficeHoursRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	hub := sse.NewHub()
	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:   cfg.Geocode.BaseURL,
		UserAgent: cfg.Geocode.UserAgent,
		Language:  cfg.Geocode.Language,
		Timeout:   cfg.Geocode.Timeout,
		CacheTTL:  cfg.Geocode.CacheTTL,
	}, redisClient)

	registry := officeHoursService.NewRegistry()
	officeHoursSvc := officeHoursService.NewOfficeHoursService(officeHoursRepo, registry)
	if err := officeHoursSvc.Reload(ctx); err != nil {
		log.Fatal("Failed to load office hours: ", err)
	}

	sessionSvc := locationService.NewSessionService(locationService.Config{
		FastFixTimeout:        cfg.Location.FastFixTimeout,
		FastFixMaxAge:         cfg.Location.FastFixMaxAge,
		RefineTimeout:         cfg.Location.RefineTimeout,
		TargetAccuracyMeters:  cfg.Location.TargetAccuracyMeters,
		GeocodeEpsilonDegrees: cfg.Location.GeocodeEpsilonDegrees,
		GeocodeTimeout:        cfg.Geocode.Timeout,
	}, cfg.Location.SessionIdleTimeout, geocoder, hub)

	fileService := file.NewFileService(fileStorage)
	attendanceSvc := attendanceService.NewAttendanceService(
		attendanceRepo,
		officeHoursSvc,
		attendanceService.NewResolver(tz),
		sessionSvc,
		geocoder,
		fileService,
		attendanceService.Geofence{
			Enabled:      cfg.Geofence.Enabled,
			Center:       geo.Coordinate{Latitude: cfg.Geofence.Latitude, Longitude: cfg.Geofence.Longitude},
			RadiusMeters: cfg.Geofence.RadiusMeters,
		},
	)

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(officeHoursSvc, sessionSvc).
		RegisterJobs(scheduler, cfg.Cron.OfficeHoursReloadInterval, cfg.Cron.SessionReapInterval)
	scheduler.Start()
	defer scheduler.Stop()

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			AppName:        appName,
			Version:        cfg.App.Version,
			Env:            cfg.App.Env,
			LogLevel:       cfg.SlogLevel(),
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			UploadDir:      fileStorage.BasePath(),
		},
		JWTService,
		appHTTP.NewAttendanceHandler(attendanceSvc),
		appHTTP.NewOfficeHoursHandler(officeHoursSvc),
		appHTTP.NewLocationHandler(sessionSvc, JWTService, hub),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// end open event streams so Shutdown does not wait on them
	server.RegisterOnShutdown(hub.CloseAll)

	go func() {
		slog.Info("Server running", "addr", server.Addr, "timezone", tz.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
