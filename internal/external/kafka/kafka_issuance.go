package rewards

import (
	"context"

	"github.com/glkeru/loyalty/rewards/internal/config"
	"github.com/segmentio/kafka-go"
)

type KafkaIssuance struct {
	reader *kafka.Reader
}

// Читатель топика начислений. Несколько читателей одной группы делят партиции
func GetNewReader(cfg config.Kafka) (reader *KafkaIssuance, err error) {
	broker, err := cfg.Broker()
	if err != nil {
		return nil, err
	}
	kafkaconfig := kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   cfg.Topic,
		GroupID: cfg.Group,
	}
	return &KafkaIssuance{kafka.NewReader(kafkaconfig)}, nil
}

// Сообщение без коммита: коммит после обработки
func (k *KafkaIssuance) GetNewMessage(ctx context.Context) (kafka.Message, error) {
	return k.reader.FetchMessage(ctx)
}

func (k *KafkaIssuance) Commit(ctx context.Context, msg kafka.Message) error {
	return k.reader.CommitMessages(ctx, msg)
}

func (k *KafkaIssuance) CloseReader() {
	k.reader.Close()
}
