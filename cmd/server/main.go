package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"orderflow/internal/config"
	handlers "orderflow/internal/controllers/http"
	"orderflow/internal/infra"
	mmysql "orderflow/internal/infra/mysql"
	"orderflow/internal/infra/rabbitmq"
	mysqlrepo "orderflow/internal/repository/mysql"
	"orderflow/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "orderflow").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := mmysql.New(cfg.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		DB:           cfg.Redis.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	publisher, err := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Fatal().Err(err).Msg("changefeed publisher init failed")
	}
	defer publisher.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Fatal().Err(err).Msg("changefeed consumer init failed")
	}
	defer consumer.Close()

	timeout := time.Duration(cfg.Collaborators.TimeoutMilli) * time.Millisecond
	catalog := infra.NewCatalogClient(cfg.Collaborators.CatalogURL, timeout)
	tokens := infra.NewTokenDirectoryClient(cfg.Collaborators.TokenURL, timeout)
	push := infra.NewPushClient(cfg.Collaborators.PushURL, cfg.Collaborators.PushKey, timeout)

	repo := mysqlrepo.NewOrderRepository(db)
	alloc := mysqlrepo.NewSequenceAllocator(db)
	mirror := services.NewMirrorPublisher(rdb, log)
	fanout := services.NewFanoutService(tokens, push, log)
	effects := services.NewEffectQueue(cfg.EffectWorkers, cfg.EffectBuffer, log)

	service := services.NewOrderService(repo, alloc, catalog, catalog, mirror, fanout, publisher, effects, log)

	broadcaster := services.NewBroadcaster(log)
	deliveries, err := consumer.Deliveries()
	if err != nil {
		log.Fatal().Err(err).Msg("changefeed consume failed")
	}
	go broadcaster.Run(deliveries)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := handlers.NewHandler(service, broadcaster, log)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting order lifecycle service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server run failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	effects.Drain()
}
