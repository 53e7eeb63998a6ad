package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/audit-worker/repository"
	sharedkafka "github.com/radieske/lucky-wheel-platform/internal/shared/kafka"
	"github.com/radieske/lucky-wheel-platform/pkg/contracts/events"
)

// Processor consome transações de carteira do Kafka e persiste na trilha de auditoria
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Repo   *repository.PostgresRepo
	DLQ    *kafka.Writer // opcional; mensagens que falham persistência vão para cá

	OnConsumed func()       // métricas (counter++)
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e persistência das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		var ev events.WalletTransaction
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			p.toDLQ(ctx, string(m.Key), m.Value)
			continue
		}

		// Persiste na trilha de auditoria; em falha, envia para a DLQ
		if err := p.Repo.Append(ctx, ev); err != nil {
			p.Log.Warn("db append failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("db_append")
			}
			p.toDLQ(ctx, ev.UserID, m.Value)
			continue
		}
		if p.OnPersist != nil {
			p.OnPersist() // callback de métrica: persistência concluída
		}
	}
}

// toDLQ reencaminha a mensagem original para a dead-letter queue, se configurada
func (p *Processor) toDLQ(ctx context.Context, key string, value []byte) {
	if p.DLQ == nil {
		return
	}
	if err := sharedkafka.WriteJSON(ctx, p.DLQ, key, value); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("dlq")
		}
	}
}
