package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/audit-worker/consumer"
	"github.com/radieske/lucky-wheel-platform/internal/audit-worker/repository"
	"github.com/radieske/lucky-wheel-platform/internal/shared/config"
	"github.com/radieske/lucky-wheel-platform/internal/shared/db"
	sharedkafka "github.com/radieske/lucky-wheel-platform/internal/shared/kafka"
	"github.com/radieske/lucky-wheel-platform/internal/shared/logger"
	"github.com/radieske/lucky-wheel-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("audit-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres para a trilha de auditoria
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(context.Background(), pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Kafka consumer (consumer group audit-worker)
	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicWalletTransactions, "audit-worker")
	defer reader.Close()

	// DLQ para mensagens que não puderem ser persistidas
	var dlqWriter *sharedkafka.Writer
	if cfg.TopicWalletTransactionsDLQ != "" {
		dlqWriter = sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWalletTransactionsDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "audit_messages_consumed_total", Help: "mensagens consumidas"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "audit_db_writes_total", Help: "escritas na trilha de auditoria"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persist, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repository.NewPostgresRepo(pg),
		DLQ:        dlqWriter,
		OnConsumed: func() { consumed.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("audit-worker started", zap.String("consume", cfg.TopicWalletTransactions))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("audit-worker stopped")
}
