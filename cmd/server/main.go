package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service_finder/internal/api"
	"service_finder/internal/api/middleware"
	"service_finder/internal/app/service"
	"service_finder/internal/common/security"
	"service_finder/internal/platform/cache"
	"service_finder/internal/platform/config"
	"service_finder/internal/platform/database"
	"service_finder/internal/platform/media"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Store
	store, closeStore, err := database.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	// 3. Initialize Auth Rate Limiter (Redis when configured)
	var limiter middleware.Limiter
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.CloseRedis(rdb)
		limiter = middleware.NewRedisLimiter(rdb, "ratelimit:auth", cfg.RateLimitAuthBurst, cfg.RateLimitWindow)
	} else {
		limiter = middleware.NewMemoryLimiter(ctx, cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst)
	}

	// 4. Initialize Media Uploader (optional)
	var uploader service.ImageUploader
	if cfg.CloudinaryEnabled() {
		cld, err := media.NewCloudinaryUploader(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			log.Fatalf("Failed to initialize media uploader: %v", err)
		}
		uploader = cld
	} else {
		log.Println("WARN: Cloudinary not configured; image uploads are disabled")
	}
	if !cfg.AdminCreationEnabled() {
		log.Println("WARN: ADMIN_SECRET_KEY not set; /api/auth/create-admin is disabled")
	}

	// 5. Initialize Services
	tokens := security.NewTokenService(cfg.JWTKey, cfg.JWTExp)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	authService := service.NewAuthService(store.Users, tokens, hasher, cfg.AdminSecretKey)
	userService := service.NewUserService(store.Users, hasher)
	categoryService := service.NewCategoryService(store.Categories, store.Providers).
		AllowInUseDelete(cfg.AllowInUseCategoryDelete)
	providerService := service.NewProviderService(store.Providers, store.Categories, uploader)

	// 6. Initialize Router & HTTP Server
	router := api.NewRouter(api.Deps{
		Tokens:          tokens,
		Users:           store.Users,
		AuthService:     authService,
		UserService:     userService,
		CategoryService: categoryService,
		ProviderService: providerService,
		AuthLimiter:     limiter,
		AllowedOrigins:  cfg.AllowedOrigins,
		RequestTimeout:  cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: server shutdown failed: %v", err)
		return
	}

	log.Println("Server stopped gracefully.")
}
