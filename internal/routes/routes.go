package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/knowreal/knowreal-backend/internal/config"
	"github.com/knowreal/knowreal-backend/internal/handlers"
	"github.com/knowreal/knowreal-backend/internal/middleware"
	"github.com/knowreal/knowreal-backend/internal/services"
)

// Dependencies are the wired services the routes are served by. Auth,
// Uploads and Events are optional; their routes are skipped when nil.
type Dependencies struct {
	Identity     services.IdentityProvider
	Dreams       *services.DreamService
	Auth         *handlers.AuthHandler
	Uploads      services.IllustrationUploader
	Events       handlers.DreamSubscriber
	WriteLimiter *middleware.WriteLimiter
}

// NewRouter builds the full middleware stack and registers every route.
func NewRouter(cfg *config.Config, deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
	}

	SetupRoutes(r, cfg, deps)
	return r
}

func SetupRoutes(r chi.Router, cfg *config.Config, deps Dependencies) {
	r.Get("/health", handlers.Health)

	requireIdentity := middleware.RequireIdentity(deps.Identity)

	if deps.Auth != nil {
		r.Post("/api/auth/signup", deps.Auth.Signup)
		r.Post("/api/auth/signin", deps.Auth.Signin)
		r.Post("/api/auth/signout", deps.Auth.Signout)
		r.With(requireIdentity).Get("/api/auth/me", deps.Auth.Me)
	}

	dreams := handlers.NewDreamHandler(deps.Dreams, cfg.ListingPath)
	uploads := handlers.NewIllustrationHandler(deps.Uploads)

	r.Route("/api/dreams", func(r chi.Router) {
		r.Use(requireIdentity)
		if deps.WriteLimiter != nil {
			r.Use(deps.WriteLimiter.Middleware)
		}

		r.Get("/", dreams.List)
		r.Post("/", dreams.Create)
		r.Post("/illustrations", uploads.Upload)
		r.Get("/{id}", dreams.Get)
		r.Put("/{id}", dreams.Update)
		r.Post("/{id}", dreams.Update)
		r.Delete("/{id}", dreams.Delete)
	})

	if deps.Events != nil {
		events := handlers.NewDreamEventsHandler(deps.Events, cfg.AllowedOrigins)
		r.With(requireIdentity).Get("/ws/dreams", events.Serve)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"Not found"}`))
	})
}
