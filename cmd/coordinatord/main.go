package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/collectflow/collectflow/internal/coordinator"
	"github.com/collectflow/collectflow/internal/riskengine"
	"github.com/collectflow/collectflow/pkg/cache"
	"github.com/collectflow/collectflow/pkg/config"
	"github.com/collectflow/collectflow/pkg/dispatch"
	"github.com/collectflow/collectflow/pkg/logging"
	"github.com/collectflow/collectflow/pkg/metrics"
	"github.com/collectflow/collectflow/pkg/models"
	"github.com/collectflow/collectflow/pkg/store"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	fmt.Printf("collectflow coordinator v%s\n", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewZapLogger(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := store.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatal("failed to connect to postgres", logging.Err(err))
	}
	defer pg.Close()

	redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
		Address:   cfg.Redis.Address,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		log.Fatal("failed to connect to redis", logging.Err(err))
	}
	defer redisCache.Close()

	kafkaDispatch := dispatch.NewKafka(dispatch.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		TopicPrefix: cfg.Kafka.TopicPrefix,
		GroupID:     cfg.Kafka.GroupID,
	})
	defer kafkaDispatch.Close()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics listening", logging.String("addr", cfg.Metrics.Addr))
			if err := m.Serve(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	engine := coordinator.New(coordinatorConfig(cfg), coordinator.Deps{
		Logger:     log,
		Agents:     pg,
		Tasks:      pg,
		Cache:      redisCache,
		Publisher:  redisCache,
		Dispatcher: kafkaDispatch,
		Metrics:    m,
	})

	riskEngine := riskengine.New(riskengine.Config{
		ContextExpiry:       cfg.Risk.ContextExpiry,
		CleanupInterval:     cfg.Risk.CleanupInterval,
		PaymentWindowMonths: cfg.Risk.PaymentWindowMonths,
		ContactWindowMonths: cfg.Risk.ContactWindowMonths,
	}, pg, redisCache, m, log)

	if err := engine.Start(ctx); err != nil {
		log.Fatal("failed to start coordinator", logging.Err(err))
	}
	riskEngine.Start(ctx)

	// Inbound task submissions arrive over Kafka. Customer risk steers the
	// priority of any submission that does not pin one explicitly.
	go func() {
		err := kafkaDispatch.ConsumeSubmissions(ctx, func(ctx context.Context, task *models.Task) error {
			if task.Priority == "" && task.CustomerID != "" {
				if cc, err := riskEngine.GetCustomerContext(ctx, task.CustomerID, false); err != nil {
					log.Warn("risk lookup failed for submission", logging.Err(err))
				} else if cc != nil {
					task.Priority = riskengine.PriorityForRisk(cc.Risk.CurrentRisk)
				}
			}
			return engine.AssignTask(ctx, task)
		})
		if err != nil && ctx.Err() == nil {
			log.Error("submission consumer stopped", logging.Err(err))
		}
	}()

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath)
		if err != nil {
			log.Warn("config watch unavailable", logging.Err(err))
		} else {
			defer watcher.Close()
			watcher.OnReload(func(next *config.Config) {
				log.Info("configuration reloaded", logging.String("environment", next.Environment))
			})
		}
	}

	log.Info("coordinator ready", logging.String("environment", cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	riskEngine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", logging.Err(err))
		os.Exit(1)
	}
}

func coordinatorConfig(cfg *config.Config) coordinator.Config {
	c := coordinator.DefaultConfig()
	c.DrainInterval = cfg.Coordinator.DrainInterval
	c.DrainBatch = cfg.Coordinator.DrainBatch
	c.MetricsInterval = cfg.Coordinator.MetricsInterval
	c.SweepInterval = cfg.Coordinator.SweepInterval
	c.TaskTimeout = cfg.Coordinator.TaskTimeout
	c.FailoverThreshold = cfg.Coordinator.FailoverThreshold
	c.RetryBaseDelay = cfg.Coordinator.RetryBaseDelay
	c.RetryMaxDelay = cfg.Coordinator.RetryMaxDelay
	c.DefaultMaxAttempts = cfg.Coordinator.DefaultMaxAttempts
	return c
}
