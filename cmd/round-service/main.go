package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/clock"
	httpapi "github.com/radieske/lucky-wheel-platform/internal/round-service/http"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/ledger"
	kpub "github.com/radieske/lucky-wheel-platform/internal/round-service/producer"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/projector"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/settle"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wallet"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
	sharedcache "github.com/radieske/lucky-wheel-platform/internal/shared/cache"
	"github.com/radieske/lucky-wheel-platform/internal/shared/config"
	"github.com/radieske/lucky-wheel-platform/internal/shared/db"
	sharedkafka "github.com/radieske/lucky-wheel-platform/internal/shared/kafka"
	"github.com/radieske/lucky-wheel-platform/internal/shared/logger"
	"github.com/radieske/lucky-wheel-platform/internal/shared/metrics"
)

// clockRegistry expõe o estado em memória de cada relógio para o projector
type clockRegistry map[string]*clock.Clock

func (r clockRegistry) Current(track string) (repo.Round, bool) {
	c, ok := r[track]
	if !ok {
		return repo.Round{}, false
	}
	return c.Current()
}

func main() {
	cfg := config.Load()
	log, err := logger.New("round-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: estado autoritativo de rodadas, apostas e carteiras
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(context.Background(), pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis: cache do snapshot público e ring de resultados recentes
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers: trilha de auditoria e evento de rodada liquidada
	txWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWalletTransactions)
	defer txWriter.Close()
	settledWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundSettled)
	defer settledWriter.Close()

	// Layout da roleta vem da config; layout inválido impede o boot
	wh, err := wheel.New(cfg.WheelMultipliers, cfg.WheelWeights)
	if err != nil {
		log.Fatal("wheel layout", zap.Error(err))
	}

	// Métricas Prometheus do ciclo de rodadas
	advanced := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_phase_advances_total", Help: "transições de fase"}, []string{"phase"})
	drift := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_clock_drift_total", Help: "ticks stale descartados no CAS"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{Name: "rounds_settled_total", Help: "rodadas liquidadas"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "settle_conflicts_total", Help: "liquidações duplicadas viradas no-op"})
	paidCents := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_cents_total", Help: "centavos creditados a vencedores"})
	accepted := prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_accepted_total", Help: "apostas aceitas"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"})
	prometheus.MustRegister(advanced, drift, settled, conflicts, paidCents, accepted, rejected)

	// deps
	walletStore := wallet.NewStore()
	store := repo.NewPostgres(pg, walletStore)
	publ := kpub.NewKafkaPublisher(txWriter, settledWriter)

	registry := clockRegistry{}
	proj := &projector.Projector{
		Log:        log,
		Rounds:     registry,
		Aggregates: store,
		Cache:      rdb,
		Wheel:      wh,
		TTL:        cfg.SnapshotTTL,
	}

	engine := &settle.Engine{
		Log:        log,
		Wheel:      wh,
		Store:      store,
		Publ:       publ,
		Ring:       proj,
		OnSettled:  func() { settled.Inc() },
		OnConflict: func() { conflicts.Inc() },
		OnPaid:     func(cents int64) { paidCents.Add(float64(cents)) },
	}

	durations := clock.Durations{
		Betting:   time.Duration(cfg.BettingSeconds) * time.Second,
		Countdown: time.Duration(cfg.CountdownSeconds) * time.Second,
		Spinning:  time.Duration(cfg.SpinningSeconds) * time.Second,
		Result:    time.Duration(cfg.ResultSeconds) * time.Second,
	}

	// Um relógio por trilha de moeda; cada um roda seu próprio ciclo
	for _, track := range cfg.CurrencyTracks {
		registry[track] = &clock.Clock{
			Log:            log.With(zap.String("track", track)),
			Track:          track,
			Store:          store,
			Wheel:          wh,
			Settler:        engine,
			Durations:      durations,
			RecoveryPolicy: cfg.RecoveryPolicy,
			Rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
			OnAdvance:      func(phase string) { advanced.WithLabelValues(phase).Inc() },
			OnDrift:        func() { drift.Inc() },
		}
	}

	led := &ledger.Ledger{
		Log:        log,
		Wheel:      wh,
		Store:      store,
		Publ:       publ,
		OnAccepted: func() { accepted.Inc() },
		OnRejected: func(reason string) { rejected.WithLabelValues(reason).Inc() },
	}

	// HTTP público: snapshot por polling, aposta e resync
	api := httpapi.NewServer(log, cfg.CurrencyTracks, led, proj)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Sobe os relógios; recuperação de rodada interrompida acontece no Run
	for _, track := range cfg.CurrencyTracks {
		c := registry[track]
		go func() {
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("clock stopped", zap.String("track", c.Track), zap.Error(err))
			}
		}()
	}

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	log.Info("round-service stopped")
}
