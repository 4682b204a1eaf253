package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/bwithai/traffic-analysis/internal/models"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer создаёт продюсер с настройками
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
		topic:    topic,
	}, nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// SendEvent отправляет событие обработки в Kafka
func (p *Producer) SendEvent(event models.AnalysisEvent) error {
	return p.send(event.AnalysisID, event)
}

// SendOutboxMessage отправляет одно outbox-сообщение в Kafka
func (p *Producer) SendOutboxMessage(msg *models.OutboxMessage) error {
	return p.send(msg.AnalysisID, msg)
}

func (p *Producer) send(key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(kafkaMsg)
	if err != nil {
		return err
	}

	return nil
}
