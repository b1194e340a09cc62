package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deliverytech/api/internal/cache"
	"github.com/deliverytech/api/internal/config"
	"github.com/deliverytech/api/internal/database"
	"github.com/deliverytech/api/internal/events"
	"github.com/deliverytech/api/internal/router"
	"github.com/deliverytech/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	rdb := connectRedis(ctx, cfg.RedisURL)
	if rdb != nil {
		defer rdb.Close()
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	publisher, err := newPublisher(cfg, hub)
	if err != nil {
		log.Fatalf("Unable to set up event publisher: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("WARN: close event publisher: %v", err)
		}
	}()

	r := router.New(cfg, database.New(pool), pool, hub, publisher, cache.NewProductCache(rdb, cfg.ProductTTL))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
}

// connectRedis returns nil when no URL is configured or Redis is
// unreachable; the product cache then passes straight through.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("REDIS_URL not set, product cache disabled")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("WARN: invalid REDIS_URL: %v, product cache disabled", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("WARN: redis ping: %v, product cache disabled", err)
		rdb.Close()
		return nil
	}
	log.Println("Connected to redis")
	return rdb
}

// newPublisher always feeds the websocket hub and adds the configured broker.
func newPublisher(cfg *config.Config, hub *ws.Hub) (events.Publisher, error) {
	pubs := events.Multi{events.NewHubPublisher(hub)}

	switch cfg.EventBroker {
	case "kafka":
		pubs = append(pubs, events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)))
		log.Printf("Publishing order events to kafka topic %s", cfg.KafkaTopic)
	case "amqp":
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("dial amqp: %w", err)
		}
		pubs = append(pubs, p)
		log.Printf("Publishing order events to amqp exchange %s", cfg.AMQPExchange)
	case "", "none":
	default:
		return nil, fmt.Errorf("unknown EVENT_BROKER %q", cfg.EventBroker)
	}

	return pubs, nil
}
