package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions carries the deployment settings the router needs.
type RouterOptions struct {
	AppName        string
	Version        string
	Env            string
	LogLevel       slog.Level
	AllowedOrigins []string
	// UploadDir is served under /uploads; empty disables it.
	UploadDir string
}

func NewRouter(
	opts RouterOptions,
	JWTService jwt.Service,
	attendanceHandler AttendanceHandler,
	officeHoursHandler OfficeHoursHandler,
	locationHandler LocationHandler,
) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       opts.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", opts.AppName),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Handle("/metrics", metrics.Handler())

	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

		// Requires authentication
		r.Route("/attendance", func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionAttendanceCreate))
				r.Post("/check-in", attendanceHandler.CheckIn)
				r.Post("/check-out", attendanceHandler.CheckOut)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionAttendanceViewOwn))
				r.Get("/today", attendanceHandler.Today)
				r.Get("/my-attendance", attendanceHandler.GetMyAttendance)
				// self, or a reviewer within scope
				r.Get("/my-attendance/{id}", attendanceHandler.GetMyAttendance)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionAttendanceViewAll))
				r.Get("/today-status", attendanceHandler.TodayStatus)
				r.Get("/all", attendanceHandler.List)
				r.Get("/summary", attendanceHandler.Summary)
			})

			r.With(middleware.RequirePermission(user.PermissionAttendanceExport)).
				Get("/download/{format}", attendanceHandler.Download)

			r.Route("/office-hours", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionOfficeHoursView)).
					Get("/", officeHoursHandler.List)

				// Admin and HR only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionOfficeHoursManage))
					r.Put("/", officeHoursHandler.Upsert)
					r.Delete("/{id}", officeHoursHandler.Delete)
					r.Post("/reload", officeHoursHandler.Reload)
				})
			})
		})

		r.Route("/location/sessions", func(r chi.Router) {
			// EventSource cannot send headers, the stream authenticates with a session-bound token
			r.Get("/{id}/events", locationHandler.Stream)

			// Requires authentication
			r.Group(func(r chi.Router) {
				r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
				r.Use(middleware.AuthRequired)
				r.Use(middleware.RequirePermission(user.PermissionLocationAcquire))

				r.Post("/", locationHandler.Start)
				r.Get("/{id}", locationHandler.Get)
				r.Delete("/{id}", locationHandler.Cancel)
				r.Post("/{id}/fixes", locationHandler.Push)
				r.Post("/{id}/improve", locationHandler.Improve)
				r.Post("/{id}/refresh", locationHandler.Refresh)
				r.Post("/{id}/sse-token", locationHandler.GetSSEToken)
			})
		})
	})
	return r
}
