package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/config"
	"github.com/skyiron/chartdbDiagramsSQL/internal/database"
	"github.com/skyiron/chartdbDiagramsSQL/internal/handlers"
	"github.com/skyiron/chartdbDiagramsSQL/internal/middlewares"
	"github.com/skyiron/chartdbDiagramsSQL/internal/repositories"
	"github.com/skyiron/chartdbDiagramsSQL/internal/routes"
	"github.com/skyiron/chartdbDiagramsSQL/internal/services"
)

func NewServer() *http.Server {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	store := newDiagramStore(cfg, logger)
	drafts := newDraftStore(cfg)

	// Dependency injection
	notifier := services.NewLogNotifier(logger)
	pipeline := services.NewApplyPipeline(store, notifier, logger)
	diagramService := services.NewDiagramService(store, logger)
	sessions := services.NewSessionManager(pipeline, drafts, notifier, logger,
		services.TriggerMode(cfg.Editor.TriggerMode),
		time.Duration(cfg.Editor.DebounceMillis)*time.Millisecond)

	diagramHandler := handlers.NewDiagramHandler(diagramService)
	sessionHandler := handlers.NewSessionHandler(sessions)
	shortcutHandler := handlers.NewShortcutHandler()

	// Initialize Gin router
	router := gin.Default()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		router.Use(cors.New(corsConfig))
	}

	authenticate := middlewares.Authenticate([]byte(cfg.Auth.AccessTokenSecret))
	routes.RegisterRoutes(router, diagramHandler, sessionHandler, shortcutHandler, authenticate)

	// Create and configure the HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newDiagramStore(cfg *config.Config, logger *zap.Logger) repositories.DiagramStore {
	switch cfg.Database.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.EnsureDatabaseExists(ctx, cfg.Database); err != nil {
			log.Fatalf("failed to ensure database exists: %v", err)
		}
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := database.RunMigrations(pool); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		return repositories.NewPostgresDiagramRepository(pool)
	case "sqlite":
		db, err := database.OpenSQLite(cfg.Database.Path)
		if err != nil {
			log.Fatalf("failed to open sqlite database: %v", err)
		}
		return repositories.NewSQLiteDiagramRepository(db)
	default:
		logger.Info("using in-memory diagram store; diagrams will not survive restarts")
		return repositories.NewMemoryDiagramRepository()
	}
}

func newDraftStore(cfg *config.Config) repositories.DraftStore {
	if cfg.Redis.Addr == "" {
		return repositories.NewMemoryDraftRepository()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection and fail fast with a clear message
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
	}
	log.Println("Connected to Redis successfully")

	return repositories.NewRedisDraftRepository(rdb)
}
