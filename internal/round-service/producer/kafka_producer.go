package producer

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/lucky-wheel-platform/pkg/contracts/events"
)

// KafkaPublisher publica os registros de auditoria e os eventos de rodada.
// Um writer por tópico, como manda o kafka-go
type KafkaPublisher struct {
	TxWriter      *kafka.Writer
	SettledWriter *kafka.Writer
}

func NewKafkaPublisher(txWriter, settledWriter *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{TxWriter: txWriter, SettledWriter: settledWriter}
}

func (p *KafkaPublisher) PublishTransaction(ctx context.Context, e events.WalletTransaction) error {
	b, _ := json.Marshal(e)
	return p.TxWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.UserID),
		Value: b,
	})
}

func (p *KafkaPublisher) PublishRoundSettled(ctx context.Context, e events.RoundSettled) error {
	b, _ := json.Marshal(e)
	return p.SettledWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Track),
		Value: b,
	})
}
