package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"reconciler-service/internal/cache"
	"reconciler-service/internal/consumer"
	h "reconciler-service/internal/http"
	"reconciler-service/internal/metrics"
	"reconciler-service/internal/repository"
	"reconciler-service/internal/service"
	"reconciler-service/internal/store"
)

func main() {
	// Configuration
	httpPort := getEnv("HTTP_PORT", "8081")
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017")
	mongoDBName := getEnv("MONGO_DB_NAME", "storefront")
	storeBackend := getEnv("STORE_BACKEND", "mongo")

	ctx := context.Background()

	var orders repository.OrderRepository
	var inventory repository.InventoryRepository
	disconnect := func() {}

	switch storeBackend {
	case "memory":
		mem := store.NewMemoryStore()
		orders, inventory = mem, mem
		log.Printf("Using in-memory store")
	default:
		db, err := repository.ConnectMongoDB(ctx, mongoURI, mongoDBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		mongoStore := repository.NewMongoStore(db)
		if err := mongoStore.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		orders, inventory = mongoStore, mongoStore
		disconnect = func() {
			if err := db.Client().Disconnect(ctx); err != nil {
				log.Printf("MongoDB disconnect error: %v", err)
			}
		}
		log.Printf("Connected to MongoDB at %s", mongoURI)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	stockCache := cache.NewRedisCache(redisClient)
	engine := service.NewReconciler(orders, inventory, stockCache)
	stockReader := service.NewStockReader(inventory, stockCache)

	metrics.Register()

	// The inbound trigger: at-least-once order-created events from Kafka
	cons := consumer.NewConsumer(engine, kafkaBrokers...)
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go cons.Run(consumerCtx)
	log.Printf("Consuming order-created events from %v", kafkaBrokers)

	ops := h.NewOpsHandler(orders, stockReader, 10*time.Second)
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/", ops.Routes())
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: router,
	}
	go func() {
		log.Printf("Ops server listening on port %s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down reconciler service...")
	stopConsumer()
	cons.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	disconnect()
	log.Println("Reconciler service stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
