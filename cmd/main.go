package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safety-tracker/internal/analytics"
	"safety-tracker/internal/api"
	"safety-tracker/internal/cache"
	"safety-tracker/internal/clock"
	"safety-tracker/internal/config"
	"safety-tracker/internal/notify"
	"safety-tracker/internal/notify/kafka"
	"safety-tracker/internal/safety"
	"safety-tracker/internal/store"
	"safety-tracker/internal/tracker"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

type app struct {
	windows    cache.WindowStore
	anomalies  store.AnomalyStore
	dispatcher *notify.Dispatcher
	kafka      *kafka.Sink
	server     *api.Server
}

func newApp(cfg *config.Config) (*app, error) {
	loc, err := time.LoadLocation(cfg.Safety.Timezone)
	if err != nil {
		return nil, err
	}
	a := &app{}

	var redisClient *redis.Client
	switch cfg.Window.Backend {
	case "memory":
		a.windows = cache.NewMemoryStore(cfg.Window.Size)
	default:
		rc, err := cache.NewRedisClient(cache.RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			WindowSize: cfg.Window.Size,
			TTL:        cfg.Window.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.windows = rc
		redisClient = rc.Client()
	}

	switch cfg.Database.Driver {
	case "memory":
		a.anomalies = store.NewMemoryStore()
	default:
		s, err := store.OpenSQLite(cfg.Database.Path)
		if err != nil {
			a.windows.Close()
			return nil, fmt.Errorf("failed to open anomaly store: %w", err)
		}
		a.anomalies = s
	}

	holder := analytics.NewHolder(analytics.NewScorer(analytics.OptionsFromConfig(cfg.Model)))
	log.Printf("Anomaly scorer: %s", holder.Kind())

	a.dispatcher = notify.NewDispatcher(notify.Options{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
		Timeout:   cfg.Notify.Timeout,
	}, a.sinks(cfg, redisClient)...)

	calc := safety.NewCalculator(a.anomalies, safety.Policy{
		Location:       loc,
		Lookback:       cfg.Safety.Lookback,
		AnomalyPenalty: cfg.Safety.AnomalyPenalty,
		NightPenalty:   cfg.Safety.NightPenalty,
		NightStartHour: cfg.Safety.NightStartHour,
		NightEndHour:   cfg.Safety.NightEndHour,
	})

	svc := tracker.NewService(tracker.Deps{
		Windows:  a.windows,
		Analyzer: analytics.NewAnalyzer(holder),
		Store:    a.anomalies,
		Notifier: a.dispatcher,
		Safety:   calc,
		Clock:    clock.RealClock{},
	})
	a.server = api.NewServer(svc, holder, cfg.Model.Path)
	return a, nil
}

func (a *app) sinks(cfg *config.Config, redisClient *redis.Client) []notify.Sink {
	var sinks []notify.Sink

	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}
	if redisClient != nil && cfg.Notify.RedisChannel != "" {
		sinks = append(sinks, notify.NewRedisSink(redisClient, cfg.Notify.RedisChannel))
	}
	if cfg.Notify.KafkaBootstrap != "" {
		k, err := kafka.NewSink(kafka.Config{
			BootstrapServers: cfg.Notify.KafkaBootstrap,
			Topic:            cfg.Notify.KafkaTopic,
		})
		if err != nil {
			log.Printf("Kafka alerts disabled: %v", err)
		} else {
			a.kafka = k
			sinks = append(sinks, k)
		}
	}

	for _, s := range sinks {
		log.Printf("Alert sink enabled: %s", s.Name())
	}
	return sinks
}

func (a *app) close() {
	a.dispatcher.Close()
	if a.kafka != nil {
		a.kafka.Close(5000)
	}
	if err := a.anomalies.Close(); err != nil {
		log.Printf("Failed to close anomaly store: %v", err)
	}
	if err := a.windows.Close(); err != nil {
		log.Printf("Failed to close window store: %v", err)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = a.server.Run(ctx, cfg.Server.Addr)
	a.close()
	if err != nil {
		log.Fatal(err)
	}
}
