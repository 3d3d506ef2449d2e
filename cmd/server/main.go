package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/knowreal/knowreal-backend/internal/config"
	"github.com/knowreal/knowreal-backend/internal/database"
	"github.com/knowreal/knowreal-backend/internal/handlers"
	"github.com/knowreal/knowreal-backend/internal/middleware"
	"github.com/knowreal/knowreal-backend/internal/routes"
	"github.com/knowreal/knowreal-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	dreamStore := openDreamStore(cfg)
	defer database.Disconnect()

	sessions := services.NewSessionStore(database.RedisClient)
	events := services.NewRedisEventBus(database.RedisClient)
	dreamService := services.NewDreamService(dreamStore,
		services.WithListingCache(services.NewRedisListingCache(database.RedisClient, cfg.DreamCacheTTL)),
		services.WithEventPublisher(events),
		services.WithStoreTimeout(cfg.DreamStoreTimeout),
	)

	deps := routes.Dependencies{
		Identity:     services.NewSessionIdentityProvider(sessions),
		Dreams:       dreamService,
		Auth:         handlers.NewAuthHandler(services.NewUserService(database.PostgresDB), sessions),
		Events:       events,
		WriteLimiter: middleware.NewWriteLimiter(database.RedisClient, time.Minute, 30, 15*time.Minute),
	}

	if cfg.CloudinaryEnabled() {
		uploader, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
		} else {
			deps.Uploads = uploader
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Illustration uploads will not be available")
	}

	r := routes.NewRouter(cfg, deps)
	if cfg.IsProduction() {
		log.Println("✅ Production security enabled (security headers, host check, per-IP + login rate limiting)")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Know Real backend running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// openDreamStore picks the dream backend from DREAM_STORE.
func openDreamStore(cfg *config.Config) services.DreamStore {
	if cfg.DreamStore == "memory" {
		log.Println("⚠️  Using in-memory dream store; dreams are lost on restart")
		return services.NewMemoryDreamStore()
	}

	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := services.EnsureDreamIndexes(ctx, database.DB); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure dream indexes: %v", err)
	} else {
		log.Println("✅ MongoDB dream indexes ensured")
	}
	return services.NewMongoDreamStore(database.DB)
}
