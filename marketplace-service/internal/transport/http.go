package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/handler"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/logger"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/metrics"
)

type Dependencies struct {
	Orders    order.Service
	Carts     handler.CartStore
	Sessions  handler.Sessions
	Checkouts *prometheus.CounterVec
	Registry  *prometheus.Registry
}

func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	if deps.Registry != nil {
		r.Use(metrics.NewHTTP("marketplace", deps.Registry).Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		handler.NewCartHandler(deps.Carts, deps.Sessions).RegisterRoutes(r)
		handler.NewOrderHandler(deps.Orders, deps.Carts, deps.Sessions, deps.Checkouts).RegisterRoutes(r)
	})

	return r
}
