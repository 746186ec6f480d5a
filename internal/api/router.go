package api

import (
	"net/http"
	"time"

	"service_finder/internal/api/handler"
	"service_finder/internal/api/middleware"
	"service_finder/internal/app/service"
	"service_finder/internal/common"
	"service_finder/internal/common/security"
	"service_finder/internal/domain/repository"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps bundles what the router needs to build handlers.
type Deps struct {
	Tokens          *security.TokenService
	Users           repository.UserRepository
	AuthService     *service.AuthService
	UserService     *service.UserService
	CategoryService *service.CategoryService
	ProviderService *service.ProviderService
	AuthLimiter     middleware.Limiter // nil disables auth rate limiting
	AllowedOrigins  []string
	RequestTimeout  time.Duration
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	if deps.RequestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(deps.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Verifies a bearer token when present; Authenticator decides whether one is required.
	r.Use(deps.Tokens.Verifier())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "API is running..."})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authn := middleware.Authenticator(deps.Users)

	r.Route("/api", func(api chi.Router) {
		authHandler := handler.NewAuthHandler(deps.AuthService)
		api.Route("/auth", func(auth chi.Router) {
			if deps.AuthLimiter != nil {
				auth.Use(middleware.RateLimit(deps.AuthLimiter))
			}
			authHandler.RegisterRoutes(auth)
		})

		userHandler := handler.NewUserHandler(deps.UserService)
		api.Route("/users", func(users chi.Router) {
			userHandler.RegisterRoutes(users, authn)
		})

		categoryHandler := handler.NewCategoryHandler(deps.CategoryService)
		api.Route("/categories", func(categories chi.Router) {
			categoryHandler.RegisterRoutes(categories, authn)
		})

		providerHandler := handler.NewProviderHandler(deps.ProviderService)
		api.Route("/providers", func(providers chi.Router) {
			providerHandler.RegisterRoutes(providers, authn)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "Not Found - "+r.URL.Path)
	})

	return r
}
