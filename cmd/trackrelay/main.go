package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	config "github.com/davicafu/trackrelay/internal/config"
	eventApp "github.com/davicafu/trackrelay/internal/event/application"
	eventHttp "github.com/davicafu/trackrelay/internal/event/infra/inbound/http"
	chRepo "github.com/davicafu/trackrelay/internal/event/infra/outbound/analytics/clickhouse"
	mongoRepo "github.com/davicafu/trackrelay/internal/event/infra/outbound/db/mongodb"
	pgRepo "github.com/davicafu/trackrelay/internal/event/infra/outbound/db/postgres"
	sqliteRepo "github.com/davicafu/trackrelay/internal/event/infra/outbound/db/sqlite"
	"github.com/davicafu/trackrelay/internal/event/infra/outbound/delivery"
	infraEvents "github.com/davicafu/trackrelay/internal/event/infra/outbound/events"
	"github.com/davicafu/trackrelay/internal/event/infra/outbound/geo"
	"github.com/davicafu/trackrelay/internal/queue"
	"github.com/davicafu/trackrelay/internal/relayer"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
	"github.com/davicafu/trackrelay/pkg/logger"
	sharedBus "github.com/davicafu/trackrelay/shared/platform/bus"
	sharedUtils "github.com/davicafu/trackrelay/shared/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	// _ "github.com/mattn/go-sqlite3" // requires gcc
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init()          // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// ---------------- Event store ----------------
	var eventRepo eventDomain.EventRepository

	switch {
	case cfg.MongoURI != "":
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoClient.Disconnect(ctx)

		repo, err := mongoRepo.NewEventRepoMongoDB(ctx, mongoClient, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("failed to initialize MongoDB event store", zap.Error(err))
		}
		eventRepo = repo
		log.Info("✅ MongoDB event store habilitado")

	case cfg.LocalDeployment:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping SQLite", zap.Error(err))
		}
		eventRepo = sqliteRepo.NewEventRepoSQLite(db)
		log.Info("✅ SQLite event store habilitado", zap.String("path", cfg.SQLitePath))

	default:
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()

		if err := sharedUtils.Retry(ctx, 3, time.Second, func() error {
			return db.PingContext(ctx)
		}); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := pgRepo.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		eventRepo = pgRepo.NewEventRepoPostgres(db)
		log.Info("✅ Postgres event store habilitado")
	}

	// ---------------- Geo resolver ----------------
	var geoResolver eventDomain.GeoResolver = geo.NoopResolver{}
	if cfg.GeoIPDBPath != "" {
		resolver, err := geo.NewMaxMindResolver(cfg.GeoIPDBPath, log)
		if err != nil {
			log.Warn("⚠️ Geo database no disponible, eventos sin enriquecimiento", zap.Error(err))
		} else {
			defer resolver.Close()
			geoResolver = resolver
			log.Info("✅ Geo enrichment habilitado", zap.String("db", cfg.GeoIPDBPath))
		}
	} else {
		log.Warn("⚠️ GEOIP_DB_PATH no configurado, eventos sin enriquecimiento")
	}

	// ---------------- Delivery queue ----------------
	queueOpts := queue.Options{
		MaxAttempts:   cfg.MaxAttempts,
		BackoffBase:   cfg.BackoffBase,
		LeaseDuration: cfg.LeaseDuration,
	}

	var deliveryQueue queue.DeliveryQueue
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Fallback en memoria: la ingesta nunca falla solo porque el
		// backend durable esté caído. Se paga en durabilidad.
		log.Warn("⚠️ Redis no disponible, cola de entrega en memoria:", zap.Error(err))
		deliveryQueue = queue.NewMemoryQueue(queueOpts, log)
	} else {
		deliveryQueue = queue.NewRedisQueue(rdb, queueOpts, log)
		log.Info("✅ Redis conectado, cola de entrega durable")
	}
	defer deliveryQueue.Close()

	// ---------------- Delivery worker ----------------
	deliveryClient := delivery.NewConversionsClient(cfg.DeliveryURL, cfg.DeliveryToken, log)

	var archivePublisher sharedBus.EventPublisher
	if cfg.UseKafka {
		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		defer writer.Close()
		archivePublisher = infraEvents.NewKafkaPublisher(writer, log)
		log.Info("🚀 Archivo de eventos entregados en Kafka", zap.String("topic", cfg.KafkaTopic))
	}

	var attemptLog *chRepo.AttemptLogRepo
	if cfg.ClickHouseAddr != "" {
		repo, err := chRepo.NewAttemptLogRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, sin log de intentos", zap.Error(err))
		} else {
			attemptLog = repo
			log.Info("✅ Log analítico de intentos en ClickHouse")
		}
	}

	var attempts relayer.AttemptLogger
	if attemptLog != nil {
		attempts = attemptLog
	}

	worker := relayer.NewWorker(deliveryQueue, deliveryClient, archivePublisher, attempts, log)
	if err := worker.Start(ctx); err != nil {
		log.Fatal("failed to start delivery worker", zap.Error(err))
	}

	// ---------------- Servicio ----------------
	assembler := eventApp.NewAssembler(geoResolver, log)
	ingestService := eventApp.NewIngestService(assembler, eventRepo, deliveryQueue, log)

	// ---------------- HTTP ----------------
	eventHandler := eventHttp.NewEventHandler(ingestService)
	router := gin.Default()
	eventHttp.RegisterEventRoutes(router, eventHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if attemptLog != nil {
		router.GET("/delivery/outcomes", func(c *gin.Context) {
			outcomes, err := attemptLog.GetDailyOutcomes(c.Request.Context(), 30)
			if err != nil {
				c.JSON(500, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"data": outcomes})
		})
	}

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
