package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pratik-mahalle/ec2inventory/internal/api/handlers"
	"github.com/pratik-mahalle/ec2inventory/internal/api/middleware"
	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
)

// Handlers groups the HTTP handlers
type Handlers struct {
	Health    *handlers.HealthHandler
	Account   *handlers.AccountHandler
	Sync      *handlers.SyncHandler
	Inventory *handlers.InventoryHandler
}

// New builds the HTTP router
func New(cfg *config.Config, log *logger.Logger, limiter *middleware.RateLimiter, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(metrics.Middleware)
	// Logger must wrap the writer last for AddLogField to reach it
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Public routes
	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", metrics.Handler())

	// Protected routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		r.Use(middleware.RateLimit(limiter))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.Account.List)
			r.Post("/", h.Account.Add)
			r.Delete("/{id}", h.Account.Remove)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", h.Sync.Status)
			r.Post("/ensure", h.Sync.Ensure)
			r.Post("/resources", h.Sync.Resources)
			r.Post("/prices", h.Sync.Prices)
			r.Put("/interval", h.Sync.SetInterval)
		})

		r.Get("/instances", h.Inventory.Instances)
		r.Post("/instances/{id}/stop", h.Inventory.StopInstance)
		r.Post("/instances/{id}/terminate", h.Inventory.TerminateInstance)

		r.Get("/volumes", h.Inventory.Volumes)
		r.Post("/volumes/{id}/detach", h.Inventory.DetachVolume)
		r.Delete("/volumes/{id}", h.Inventory.DeleteVolume)

		r.Get("/snapshots", h.Inventory.Snapshots)
		r.Get("/amis", h.Inventory.AMIs)
		r.Get("/keypairs", h.Inventory.Keypairs)
		r.Get("/security-groups", h.Inventory.SecurityGroups)
		r.Get("/elastic-ips", h.Inventory.ElasticIPs)
		r.Get("/load-balancers", h.Inventory.LoadBalancers)
		r.Get("/costs", h.Inventory.Costs)
	})

	return r
}
