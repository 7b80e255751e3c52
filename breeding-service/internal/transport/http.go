package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
	handler "github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/handler/http"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/identity"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/logger"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/metrics"
)

type Dependencies struct {
	Pets           pet.Service
	Matches        match.Service
	Chat           chat.Service
	AllowedOrigins []string
	Registry       *prometheus.Registry
}

func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	if deps.Registry != nil {
		r.Use(metrics.NewHTTP("breeding", deps.Registry).Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(identity.Require)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))
			handler.NewPetHandler(deps.Pets).RegisterRoutes(r)
			handler.NewMatchHandler(deps.Matches).RegisterRoutes(r)
			handler.NewChatHandler(deps.Chat).RegisterRoutes(r)
		})

		// long-lived; no request timeout
		handler.NewWebSocketHandler(deps.Chat, deps.AllowedOrigins).RegisterRoutes(r)
	})

	return r
}
