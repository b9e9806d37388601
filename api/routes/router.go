package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucasrivero/storefront-backend/api/controllers"
	webhookcontrollers "github.com/lucasrivero/storefront-backend/api/controllers/webhooks"
	"github.com/lucasrivero/storefront-backend/api/middleware"
	cartsvc "github.com/lucasrivero/storefront-backend/internal/cart"
	"github.com/lucasrivero/storefront-backend/internal/inventory"
	ordersvc "github.com/lucasrivero/storefront-backend/internal/orders"
	"github.com/lucasrivero/storefront-backend/internal/payments"
	"github.com/lucasrivero/storefront-backend/internal/products"
	"github.com/lucasrivero/storefront-backend/pkg/config"
	"github.com/lucasrivero/storefront-backend/pkg/db"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
	"github.com/lucasrivero/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	productRepo products.Repository,
	ledger inventory.Ledger,
	cartService cartsvc.Service,
	orderService ordersvc.Service,
	reconciler payments.Reconciler,
	webhookGuard *payments.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbP, redisClient, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentNotification(reconciler, webhookGuard, cfg.Payments.WebhookSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(redisClient, logg),
		)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productRepo, logg))
			r.Get("/{id}/availability", controllers.ProductAvailability(ledger, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Put("/items/{itemID}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(orderService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{id}", controllers.OrderGet(orderService, logg))
			r.Post("/{id}/cancel", controllers.OrderCancel(orderService, logg))
			r.Post("/{id}/return", controllers.OrderReturn(orderService, logg))
			r.Post("/{id}/return/complete", controllers.OrderReturnComplete(orderService, logg))
			r.Post("/{id}/refund", controllers.OrderRefund(orderService, logg))
			r.Post("/{id}/reorder", controllers.OrderReorder(orderService, logg))
			r.Post("/{id}/advance", controllers.OrderAdvance(orderService, logg))
		})
	})

	return r
}
