package kafka

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/bwithai/traffic-analysis/internal/models"
	"github.com/goccy/go-json"
)

type db interface {
	GetAnalysisByID(ctx context.Context, analysisID string) (models.Analysis, error)
	WriteEvent(ctx context.Context, event models.AnalysisEvent) error
	UpdateAnalysisStatus(ctx context.Context, analysisID string, status models.AnalysisStatus) error
}

// Consumer оборачивает Sarama ConsumerGroup
type Consumer struct {
	group  sarama.ConsumerGroup
	topic  string
	closed chan struct{}
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:  group,
		topic:  topic,
		closed: make(chan struct{}),
	}, nil
}

// StartListening запускает обработку событий анализа из Kafka
func (c *Consumer) StartListening(ctx context.Context, db db) {
	handler := &consumerGroupHandler{
		db:     db,
		closed: c.closed,
	}

	go func() {
		retryDelay := time.Second * 5
		for {
			select {
			case <-ctx.Done():
				log.Println("Consumer: context cancelled, stopping")
				return
			case <-c.closed:
				log.Println("Consumer: received close signal, stopping")
				return
			default:
				err := c.group.Consume(ctx, []string{c.topic}, handler)
				if err != nil {
					log.Printf("Consume error: %v, retrying in %v", err, retryDelay)
					select {
					case <-ctx.Done():
						return
					case <-c.closed:
						return
					case <-time.After(retryDelay):
					}
					continue
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	close(c.closed)
	return c.group.Close()
}

type consumerGroupHandler struct {
	db     db
	closed <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var event models.AnalysisEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("Invalid message format: %v", err)
				sess.MarkMessage(msg, "")
				continue
			}

			ctx := context.Background()

			analysis, err := h.db.GetAnalysisByID(ctx, event.AnalysisID)
			if err != nil {
				log.Printf("Error getting analysis: %v", err)
				continue
			}

			// Переводим статус по событию
			switch {
			case event.Action == models.EventProgress && analysis.Status == models.StatusPending:
				if err := h.db.UpdateAnalysisStatus(ctx, event.AnalysisID, models.StatusRunning); err != nil {
					log.Printf("Failed to update analysis status in DB: %v", err)
					continue
				}
			case event.Action == models.EventFinished &&
				(analysis.Status == models.StatusPending || analysis.Status == models.StatusRunning):
				if err := h.db.UpdateAnalysisStatus(ctx, event.AnalysisID, models.StatusDone); err != nil {
					log.Printf("Failed to update analysis status in DB: %v", err)
					continue
				}
			case event.Action == models.EventFailed && analysis.Status != models.StatusDone:
				if err := h.db.UpdateAnalysisStatus(ctx, event.AnalysisID, models.StatusFailed); err != nil {
					log.Printf("Failed to update analysis status in DB: %v", err)
					continue
				}
			}

			if err := h.db.WriteEvent(ctx, event); err != nil {
				log.Printf("Failed to write event to DB: %v", err)
				continue
			}

			// Подтверждаем обработку сообщения
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}
