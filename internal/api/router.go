package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/evidenca/internal/auth"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/service"
)

// Defaults for zero Options fields.
const (
	DefaultLoginInterval = 2 * time.Second
	DefaultLoginBurst    = 5
	DefaultQRSize        = 256
)

// Options configures the router.
type Options struct {
	Issuer  auth.Issuer
	Metrics *metrics.Metrics
	// Gatherer serves GET /metrics when set.
	Gatherer prometheus.Gatherer

	// LoginInterval and LoginBurst rate-limit login attempts per client IP.
	LoginInterval time.Duration
	LoginBurst    int
	QRSize        int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, svc *service.Service, opts Options) http.Handler {
	if opts.LoginInterval <= 0 {
		opts.LoginInterval = DefaultLoginInterval
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = DefaultLoginBurst
	}
	if opts.QRSize <= 0 {
		opts.QRSize = DefaultQRSize
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Issuer: opts.Issuer}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{Svc: svc, QRSize: opts.QRSize}
	catalogHandler := &CatalogHandler{Svc: svc}

	authMW := AuthMiddleware(opts.Issuer, db)
	loginLimit := RateLimit(opts.LoginInterval, opts.LoginBurst)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(authHandler.Login)))

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireManager(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("POST /api/items/bulk", authMW(requireManager(http.HandlerFunc(itemsHandler.Bulk))))
	mux.Handle("GET /api/items/similar", authMW(http.HandlerFunc(itemsHandler.Similar)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("POST /api/items/{id}/codes", authMW(requireManager(http.HandlerFunc(itemsHandler.Reissue))))
	mux.Handle("GET /api/items/{id}/retired-codes", authMW(http.HandlerFunc(itemsHandler.RetiredCodes)))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireManager(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("GET /api/items/{id}/qr", authMW(http.HandlerFunc(itemsHandler.QR)))
	mux.Handle("GET /api/items/{id}/history", authMW(http.HandlerFunc(itemsHandler.GetHistory)))
	mux.Handle("GET /api/codes/{code}", authMW(http.HandlerFunc(itemsHandler.ByCode)))

	// Retrieval and reports (all roles).
	mux.Handle("GET /api/suggest", authMW(http.HandlerFunc(catalogHandler.Suggest)))
	mux.Handle("GET /api/lookup", authMW(http.HandlerFunc(catalogHandler.Lookup)))
	mux.Handle("GET /api/categories", authMW(http.HandlerFunc(catalogHandler.Categories)))
	mux.Handle("GET /api/categories/classify", authMW(http.HandlerFunc(catalogHandler.Classify)))
	mux.Handle("GET /api/categories/tree", authMW(http.HandlerFunc(catalogHandler.CategoryTree)))
	mux.Handle("GET /api/reports/stats", authMW(http.HandlerFunc(catalogHandler.Stats)))

	// Maintenance (admin only).
	mux.Handle("POST /api/maintenance/codes", authMW(requireAdmin(http.HandlerFunc(catalogHandler.AssignMissingCodes))))

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return RequestID(LoggingMiddleware(opts.Metrics)(mux))
}
