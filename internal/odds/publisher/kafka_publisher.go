package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/gamewatcher/odds-collector/internal/shared/kafka"
	"github.com/gamewatcher/odds-collector/pkg/contracts/events"
)

// KafkaPublisher fan-out das odds persistidas para o tópico odds_updates
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher para o tópico de odds
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if len(brokers) == 0 {
		log.Fatal("kafka brokers not provided")
	}

	return &KafkaPublisher{
		writer: sharedkafka.NewWriter(brokers, topic),
		log:    log,
	}
}

// Publish serializa o evento em JSON e envia para o tópico configurado.
// A chave da mensagem usa o id do evento do provedor para distribuição
// consistente por partição.
func (p *KafkaPublisher) Publish(ctx context.Context, e events.OddsUpdate) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(e.ProviderEventID),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish odds update", zap.Error(err))
		return err
	}

	p.log.Debug("published odds update", zap.String("provider_event_id", e.ProviderEventID))
	return nil
}

// Close finaliza o writer e libera recursos associados
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
