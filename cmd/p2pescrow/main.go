package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	identityhttp "github.com/wyfcoding/p2pescrow/internal/identity/interfaces/http"
	notificationapp "github.com/wyfcoding/p2pescrow/internal/notification/application"
	notificationdomain "github.com/wyfcoding/p2pescrow/internal/notification/domain"
	notificationmysql "github.com/wyfcoding/p2pescrow/internal/notification/infrastructure/persistence/mysql"
	"github.com/wyfcoding/p2pescrow/internal/notification/infrastructure/sender"
	notificationhttp "github.com/wyfcoding/p2pescrow/internal/notification/interfaces/http"
	offerapp "github.com/wyfcoding/p2pescrow/internal/offer/application"
	offerdomain "github.com/wyfcoding/p2pescrow/internal/offer/domain"
	offermysql "github.com/wyfcoding/p2pescrow/internal/offer/infrastructure/persistence/mysql"
	offerhttp "github.com/wyfcoding/p2pescrow/internal/offer/interfaces/http"
	pricingredis "github.com/wyfcoding/p2pescrow/internal/pricing/infrastructure/redis"
	pricingsource "github.com/wyfcoding/p2pescrow/internal/pricing/infrastructure/source"
	pricingevents "github.com/wyfcoding/p2pescrow/internal/pricing/interfaces/events"
	tradeapp "github.com/wyfcoding/p2pescrow/internal/trade/application"
	tradedomain "github.com/wyfcoding/p2pescrow/internal/trade/domain"
	trademessaging "github.com/wyfcoding/p2pescrow/internal/trade/infrastructure/messaging"
	trademysql "github.com/wyfcoding/p2pescrow/internal/trade/infrastructure/persistence/mysql"
	tradehttp "github.com/wyfcoding/p2pescrow/internal/trade/interfaces/http"
	walletapp "github.com/wyfcoding/p2pescrow/internal/wallet/application"
	walletdomain "github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	walletmysql "github.com/wyfcoding/p2pescrow/internal/wallet/infrastructure/persistence/mysql"
	wallethttp "github.com/wyfcoding/p2pescrow/internal/wallet/interfaces/http"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/middleware"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/p2pescrow/config.toml", "config file path")

// Config 服务扩展配置
type Config struct {
	config.Config `mapstructure:",squash"`
	Escrow        struct {
		JWTSecret            string            `mapstructure:"jwt_secret" toml:"jwt_secret"`
		SupportedCurrencies  []string          `mapstructure:"supported_currencies" toml:"supported_currencies"`
		DefaultNetwork       string            `mapstructure:"default_network" toml:"default_network"`
		AdminIDs             []string          `mapstructure:"admin_ids" toml:"admin_ids"`
		StaticPrices         map[string]string `mapstructure:"static_prices" toml:"static_prices"`
		QuoteTTLSeconds      int               `mapstructure:"quote_ttl_seconds" toml:"quote_ttl_seconds"`
		SweepIntervalSeconds int               `mapstructure:"sweep_interval_seconds" toml:"sweep_interval_seconds"`
		NotificationTopic    string            `mapstructure:"notification_topic" toml:"notification_topic"`
		PriceTickTopic       string            `mapstructure:"price_tick_topic" toml:"price_tick_topic"`
	} `mapstructure:"escrow" toml:"escrow"`
}

func main() {
	flag.Parse()

	// 1. 初始化配置
	var cfg Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	logCfg := &logging.Config{
		Service:    cfg.Server.Name,
		Module:     "p2pescrow",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. 初始化指标
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	if cfg.Metrics.Enabled {
		go metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}

	// 4. 初始化基础设施
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	// Auto Migrate (仅用于开发方便)
	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&walletdomain.Wallet{},
			&walletdomain.LedgerEntry{},
			&offerdomain.Offer{},
			&tradedomain.Trade{},
			&notificationdomain.Notification{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// Outbox
	outboxMgr := outbox.NewManager(db.RawDB(), nil)

	// Redis
	redisCache, err := cache.NewRedisCache(&cfg.Data.Redis, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	// Kafka Producer
	producer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)

	// 5. 初始化仓储
	walletRepo := walletmysql.NewWalletRepository(db.RawDB())
	ledgerRepo := walletmysql.NewLedgerEntryRepository(db.RawDB())
	offerRepo := offermysql.NewOfferRepository(db.RawDB())
	tradeRepo := trademysql.NewTradeRepository(db.RawDB())
	notificationRepo := notificationmysql.NewNotificationRepository(db.RawDB())

	// 价格预言机：Redis TTL 缓存 + 固定价格表兜底
	staticSource, err := pricingsource.NewStaticSource(cfg.Escrow.StaticPrices)
	if err != nil {
		slog.Error("invalid static price table", "error", err)
		os.Exit(1)
	}
	oracle := pricingredis.NewQuoteCache(
		redisCache.GetClient(),
		staticSource,
		time.Duration(cfg.Escrow.QuoteTTLSeconds)*time.Second,
	)

	// 6. 初始化应用服务
	notificationSvc := notificationapp.NewNotificationService(
		notificationRepo,
		sender.NewKafkaSender(producer, cfg.Escrow.NotificationTopic),
		cfg.Escrow.AdminIDs,
	)

	walletSvc := walletapp.NewWalletService(
		walletapp.NewWalletCommandService(walletRepo, ledgerRepo, oracle, outboxMgr, db.RawDB(), cfg.Escrow.SupportedCurrencies),
		walletapp.NewWalletQueryService(walletRepo, ledgerRepo),
	)
	offerSvc := offerapp.NewOfferService(
		offerapp.NewOfferCommandService(offerRepo, outboxMgr, db.RawDB(), cfg.Escrow.SupportedCurrencies),
		offerapp.NewOfferQueryService(offerRepo),
	)
	tradeSvc := tradeapp.NewTradeService(
		tradeapp.NewTradeCommandService(
			tradeRepo, offerRepo, walletRepo, ledgerRepo,
			notificationSvc, trademessaging.NewOutboxPublisher(outboxMgr),
			db.RawDB(), cfg.Escrow.DefaultNetwork,
		),
		tradeapp.NewTradeQueryService(tradeRepo),
	)

	// 7. 初始化接口层
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.HTTPMetricsMiddleware(metricsImpl))

	jwtProvider := identityhttp.NewJWTProvider(cfg.Escrow.JWTSecret)
	api := r.Group("/api")
	api.Use(identityhttp.AuthMiddleware(jwtProvider))

	wallethttp.NewWalletHandler(walletSvc).RegisterRoutes(api)
	offerhttp.NewOfferHandler(offerSvc).RegisterRoutes(api)
	tradehttp.NewTradeHandler(tradeSvc).RegisterRoutes(api)
	notificationhttp.NewNotificationHandler(notificationSvc).RegisterRoutes(api)

	// 8. 启动服务
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(rootCtx)

	// HTTP Start
	addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 报价单过期清扫
	sweeper := offerapp.NewExpirySweeper(offerRepo, time.Duration(cfg.Escrow.SweepIntervalSeconds)*time.Second)
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	// 行情消费，持续刷新预言机缓存
	if cfg.Escrow.PriceTickTopic != "" {
		kafkaCfg := cfg.MessageQueue.Kafka
		kafkaCfg.GroupID = "p2pescrow-pricing"
		kafkaCfg.Topic = cfg.Escrow.PriceTickTopic
		consumer := kafka.NewConsumer(&kafkaCfg, logger, metricsImpl)
		pricingevents.NewPriceEventHandler(oracle).Subscribe(ctx, consumer)
	}

	// 9. 优雅关闭
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
