package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/common/logger"
	"github.com/T1collo/agrofresh/common/metrics"
	"github.com/T1collo/agrofresh/controllers"
	"github.com/T1collo/agrofresh/database"
	"github.com/T1collo/agrofresh/middleware"
	"github.com/T1collo/agrofresh/models"
	awspkg "github.com/T1collo/agrofresh/pkg/aws"
	"github.com/T1collo/agrofresh/repository"
	"github.com/T1collo/agrofresh/routes"
	"github.com/T1collo/agrofresh/services"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
	janitorSpec     = "@every 1m"
)

func main() {
	log := logger.Initialize(os.Getenv("APP_ENV"))
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	// AWS clients
	var secrets secretSource
	var snsClient awspkg.SNSPublisher
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx, log)
	if awsErr != nil {
		log.Warn("AWS config unavailable, SNS and Secrets Manager disabled", zap.Error(awsErr))
	} else {
		snsClient = awspkg.NewSNSClient(awsCfg)
		if os.Getenv("AWS_USE_SECRETS") == "true" {
			secrets = awspkg.NewSecretsClient(awsCfg)
		}
	}

	cfg, err := LoadConfig(ctx, secrets, log)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.Connect(cfg.Postgres, cfg.Env, log)
	if err != nil {
		log.Fatal("Could not connect to PostgreSQL", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("Could not connect to Redis", zap.Error(err))
		}
		defer rdb.Close() //nolint:errcheck
	}

	var events services.EventPublisher = services.NewLogEventPublisher(log)
	if snsClient != nil && cfg.AuthSNSTopicARN != "" {
		events = services.NewSNSEventPublisher(snsClient, cfg.AuthSNSTopicARN)
	}

	app, err := newApp(cfg, db, rdb, events, log)
	if err != nil {
		log.Fatal("Failed to build server", zap.Error(err))
	}
	defer app.close()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("AgroFresh server started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}

type app struct {
	router *gin.Engine
	close  func()
}

// newApp wires repositories, services and controllers into a router. rdb may
// be nil, in which case the product list cache lives in memory and carts
// cannot be persisted.
func newApp(cfg *Config, db *gorm.DB, rdb *redis.Client, events services.EventPublisher, log *zap.Logger) (*app, error) {
	tokens, err := services.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	closeFn := func() {}

	var productCache controllers.ProductCache
	if rdb != nil {
		productCache = controllers.NewRedisProductCache(rdb, controllers.DefaultCacheTTL, log)
	} else {
		mem := controllers.NewMemoryProductCache(controllers.DefaultCacheTTL, log)
		if err := mem.StartJanitor(janitorSpec); err != nil {
			return nil, err
		}
		productCache = mem
		closeFn = mem.Stop
	}

	users := repository.NewGormUserRepository(db)
	productSvc := services.NewProductService(
		repository.NewGormProductRepository(db),
		repository.NewGormCategoryRepository(db),
		log,
	)
	authSvc := services.NewAuthService(users, tokens, events, log)
	profileSvc := services.NewProfileService(users, repository.NewGormLocationRepository(db), log)

	var cartRepo services.CartRepository
	if rdb != nil {
		cartRepo = database.NewCartRepository(rdb, database.DefaultCartTTL)
	} else {
		log.Warn("REDIS_URL not set, carts are kept in process memory")
		cartRepo = database.NewMemoryCartRepository()
	}
	cartSvc := services.NewCartService(cartRepo, productSvc, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(apperrors.ErrorMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(m.Middleware())
	r.Use(middleware.RequestTimeout(requestTimeout))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "agrofresh"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	routes.RegisterRoutes(r, routes.Controllers{
		Auth:    controllers.NewAuthController(authSvc, log),
		Profile: controllers.NewProfileController(profileSvc),
		Product: controllers.NewProductController(productSvc, productCache, m, log),
		Cart:    controllers.NewCartController(cartSvc),
	}, tokens, middleware.AuthRateLimit())

	return &app{router: r, close: closeFn}, nil
}
