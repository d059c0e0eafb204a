package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ombhut175/RetailFlow-sub002/api/controllers"
	"github.com/ombhut175/RetailFlow-sub002/api/middleware"
	"github.com/ombhut175/RetailFlow-sub002/api/responses"
	products "github.com/ombhut175/RetailFlow-sub002/internal/products"
	"github.com/ombhut175/RetailFlow-sub002/internal/purchaseorders"
	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/redis"
)

// NewRouter mounts the RetailFlow API. redisClient and metricsHandler may be
// nil, which disables idempotency, the export throttle and /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	stockService stock.Service,
	productService products.Service,
	purchaseOrderService purchaseorders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.OriginList()),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeValidation, "method not allowed").
			WithDetails(map[string]any{"method": req.Method}))
	})

	var (
		idempotencyStore middleware.ResponseStore
		rateStore        middleware.RateLimiterStore
		redisPinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		rateStore = redisClient
		redisPinger = redisClient
	}
	idempotent := middleware.Idempotency(idempotencyStore, cfg.HTTP.IdempotencyTTL, logg)
	// config.Load has already rejected malformed entries.
	trustedProxies, _ := cfg.HTTP.TrustedProxyPrefixes()
	exportPolicy := middleware.NewRateLimitPolicy("stock-export", cfg.HTTP.ExportRateWindow, cfg.HTTP.ExportRateLimit).
		TrustProxies(trustedProxies)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if metricsHandler != nil && cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.With(idempotent).Post("/", controllers.ProductCreate(productService, logg))
			r.Get("/{productId}", controllers.ProductGet(productService, logg))
			r.Patch("/{productId}", controllers.ProductUpdate(productService, logg))
			r.Delete("/{productId}", controllers.ProductDelete(productService, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.StockList(stockService, logg))
			r.With(idempotent).Post("/", controllers.StockCreate(stockService, logg))

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", controllers.TransactionList(stockService, logg))
				r.With(idempotent).Post("/", controllers.TransactionCreate(stockService, logg))
				r.With(middleware.RateLimit(exportPolicy, rateStore, logg)).
					Get("/export", controllers.TransactionExport(stockService, cfg.Stock.ExportMaxRows, logg))
			})

			r.Route("/product/{productId}", func(r chi.Router) {
				r.Get("/", controllers.StockGet(stockService, logg))
				r.Get("/summary", controllers.StockSummary(stockService, logg))
				r.Get("/reconcile", controllers.StockReconcile(stockService, logg))
				r.Delete("/", controllers.StockDelete(stockService, logg))

				r.Group(func(r chi.Router) {
					r.Use(idempotent)
					r.Patch("/", controllers.StockUpdate(stockService, logg))
					r.Patch("/adjust", controllers.StockAdjust(stockService, logg))
					r.Patch("/reserve", controllers.StockReserve(stockService, logg))
					r.Patch("/release", controllers.StockRelease(stockService, logg))
					r.Patch("/consume", controllers.StockConsume(stockService, logg))
				})
			})
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", controllers.PurchaseOrderList(purchaseOrderService, logg))
			r.With(idempotent).Post("/", controllers.PurchaseOrderCreate(purchaseOrderService, logg))

			r.Route("/{purchaseOrderId}", func(r chi.Router) {
				r.Get("/", controllers.PurchaseOrderGet(purchaseOrderService, logg))
				r.Group(func(r chi.Router) {
					r.Use(idempotent)
					r.Post("/submit", controllers.PurchaseOrderSubmit(purchaseOrderService, logg))
					r.Post("/receive", controllers.PurchaseOrderReceive(purchaseOrderService, logg))
					r.Post("/cancel", controllers.PurchaseOrderCancel(purchaseOrderService, logg))
				})
			})
		})
	})

	return r
}
