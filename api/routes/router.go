package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/electronicjova/storefront-backend/api/controllers"
	cartcontrollers "github.com/electronicjova/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/electronicjova/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/electronicjova/storefront-backend/api/controllers/webhooks"
	"github.com/electronicjova/storefront-backend/api/middleware"
	"github.com/electronicjova/storefront-backend/internal/cart"
	checkoutsvc "github.com/electronicjova/storefront-backend/internal/checkout"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/internal/products"
	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/metrics"
)

type httpRecorder interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

type stripeSigner interface {
	SigningSecret() string
}

// Dependencies are the services and clients mounted on the HTTP API.
// Nil services answer with INTERNAL instead of panicking.
type Dependencies struct {
	Ready       map[string]controllers.Pinger
	Idempotency middleware.ResponseStore
	OrderEvents ordercontrollers.OrderSubscriber
	Gatherer    prometheus.Gatherer
	Metrics     httpRecorder

	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Products products.Service

	StripeWebhook webhookcontrollers.StripeWebhookService
	Stripe        stripeSigner
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.Storefront.BaseURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.Stripe, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.Checkout(deps.Checkout, logg))
			r.Get("/{orderId}/confirmation", controllers.CheckoutConfirmation(deps.Checkout, logg))
			r.Post("/{orderId}/cancelled", controllers.CheckoutCancelled(deps.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/{orderId}/events", ordercontrollers.Events(deps.Orders, deps.OrderEvents, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(deps.Cart, logg))
			r.Get("/count", cartcontrollers.CartCount(deps.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
			r.Post("/items/{lineId}/plus", cartcontrollers.CartPlus(deps.Cart, logg))
			r.Post("/items/{lineId}/minus", cartcontrollers.CartMinus(deps.Cart, logg))
			r.Delete("/items/{lineId}", cartcontrollers.CartRemove(deps.Cart, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Get("/dashboard", controllers.AdminDashboard(deps.Orders, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(deps.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(deps.Orders, logg))
				r.Post("/{orderId}/processing", controllers.AdminStartProcessing(deps.Orders, logg))
				r.Post("/{orderId}/ship", controllers.AdminShipOrder(deps.Orders, logg))
				r.Post("/{orderId}/deliver", controllers.AdminDeliverOrder(deps.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(deps.Orders, logg))
				r.Patch("/{orderId}/shipping", controllers.AdminUpdateShipping(deps.Orders, logg))
			})
			r.Delete("/products/{productId}", controllers.AdminDeleteProduct(deps.Products, logg))
		})
	})

	return r
}
