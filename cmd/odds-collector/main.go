package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/httpapi"
	"github.com/gamewatcher/odds-collector/internal/odds/normalizer"
	"github.com/gamewatcher/odds-collector/internal/odds/pipeline"
	"github.com/gamewatcher/odds-collector/internal/odds/provider"
	"github.com/gamewatcher/odds-collector/internal/odds/publisher"
	"github.com/gamewatcher/odds-collector/internal/odds/store"
	"github.com/gamewatcher/odds-collector/internal/scheduler"
	sharedcache "github.com/gamewatcher/odds-collector/internal/shared/cache"
	"github.com/gamewatcher/odds-collector/internal/shared/config"
	"github.com/gamewatcher/odds-collector/internal/shared/db"
	"github.com/gamewatcher/odds-collector/internal/shared/logger"
	"github.com/gamewatcher/odds-collector/internal/shared/metrics"
	"github.com/gamewatcher/odds-collector/internal/webhook"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	repo := store.NewRepo(pg, log)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	rcache := store.NewCache(redisClient, 30*time.Second)

	// Publisher Kafka do tópico odds_updates
	pub := publisher.NewKafkaPublisher(
		strings.Split(cfg.KafkaBrokers, ","),
		cfg.TopicOddsUpdates,
		log,
	)
	defer pub.Close()

	// Métricas Prometheus do pipeline de coleta
	cycles := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_collector_cycles_total", Help: "ciclos de coleta executados"})
	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_collector_fetch_errors_total", Help: "falhas de fetch por esporte"}, []string{"sport"})
	upserted := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_collector_rows_upserted_total", Help: "linhas de odds gravadas"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_collector_webhook_deliveries_total", Help: "entregas de webhook por resultado"}, []string{"result"})
	prometheus.MustRegister(cycles, fetchErrors, upserted, deliveries)

	// Client do provedor; sem ODDS_API_KEY a coleta fica desabilitada
	client := provider.New(provider.Options{
		APIKey:  cfg.OddsAPIKey,
		BaseURL: cfg.OddsBaseURL,
		Proxies: splitProxies(cfg.ProxyList),
	}, log)
	client.OnFetchError = func(sport string) { fetchErrors.WithLabelValues(sport).Inc() }

	dispatcher := webhook.NewDispatcher(log)
	dispatcher.OnDelivery = func(success bool) {
		if success {
			deliveries.WithLabelValues("success").Inc()
			return
		}
		deliveries.WithLabelValues("failure").Inc()
	}

	// Pipeline do ciclo: fetch -> normalize -> upsert -> cache/bus -> webhooks
	pipe := &pipeline.Pipeline{
		Log:        log,
		Client:     client,
		Normalizer: normalizer.New(log),
		Store:      repo,
		Cache:      rcache,
		Publisher:  pub,
		Notifier:   dispatcher,
		OnCycle:    func() { cycles.Inc() },
		OnUpserted: func(n int) { upserted.Add(float64(n)) },
	}

	sched := scheduler.New(pipe, cfg.CollectInterval, client.Enabled(), log)
	sched.Start()
	defer sched.Stop()

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	// API REST de consulta e controle
	api := &httpapi.API{
		Log:   log,
		Repo:  repo,
		Cache: rcache,
		Sched: sched,
		Hooks: dispatcher,
	}
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}
	go func() {
		log.Info("http api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("odds-collector started")
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// splitProxies quebra a lista separada por vírgula, ignorando entradas vazias
func splitProxies(list string) []string {
	if list == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
