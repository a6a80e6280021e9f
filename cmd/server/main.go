package main

import (
	"context"
	"log"
	"os"
	"time"

	"checkout-service/internal/config"
	controller "checkout-service/internal/controllers/http"
	"checkout-service/internal/infra/cache"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/logging"
	mysqlrepo "checkout-service/internal/repository/mysql"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Money renders as JSON numbers, matching the storefront clients.
	decimal.MarshalJSONWithoutQuotes = true

	envName := os.Getenv("APP_ENV")
	if envName == "" {
		envName = "dev"
	}

	cfg, err := config.Load("./configs", envName)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.Init(cfg.App.Name, cfg.App.LogFile)

	db, err := mmysql.NewMySQL(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("db: connect: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.MySQL.ConnMaxIdleTime)

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	g, gctx := errgroup.WithContext(pingCtx)
	g.Go(func() error { return sqlDB.PingContext(gctx) })
	g.Go(func() error { return rdb.Ping(gctx).Err() })
	if err := g.Wait(); err != nil {
		cancel()
		log.Fatalf("dependency check: %v", err)
	}
	cancel()

	publisher, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	cartRepo := mysqlrepo.NewCartRepository(db)
	productRepo := mysqlrepo.NewProductRepository(db)
	couponRepo := mysqlrepo.NewCouponRepository(db)
	orderRepo := mysqlrepo.NewOrderRepository(db)

	pricing := services.PricingConfig{
		Currency:    cfg.Pricing.Currency,
		TaxRate:     decimal.NewFromFloat(cfg.Pricing.TaxRate),
		ShippingFee: decimal.NewFromFloat(cfg.Pricing.ShippingFee),
	}

	checkoutSvc := services.NewCheckoutService(cartRepo, couponRepo, orderRepo, publisher, pricing)
	checkoutSvc.SetIdempotencyStore(cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL))
	couponSvc := services.NewCouponService(couponRepo)
	cartSvc := services.NewCartService(cartRepo, productRepo)

	handler := controller.NewHandler(checkoutSvc, couponSvc, cartSvc, rdb)
	auth := controller.NewAuth(cfg.Security.JWTSecret)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), controller.Logging(logging.New("http")))

	handler.RegisterRoutes(r, auth)

	logger.Info("starting checkout service", "addr", cfg.App.HTTPAddr)
	if err := r.Run(cfg.App.HTTPAddr); err != nil {
		log.Fatalf("server run: %v", err)
	}
}
