package outbox

import (
	"context"
	"log"
	"time"

	"github.com/bwithai/traffic-analysis/internal/database"
	"github.com/bwithai/traffic-analysis/internal/kafka"
)

// StartOutboxDispatcher пересылает накопленные outbox-сообщения в Kafka
func StartOutboxDispatcher(ctx context.Context, db *database.Database, brokers []string, topic string, interval time.Duration) {
	producer, err := kafka.NewProducer(brokers, topic)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer producer.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			// Читаем непрочитанные сообщения
			messages, err := db.GetPendingOutboxMessages(ctx, 10)
			if err != nil {
				log.Printf("Error fetching outbox messages: %v", err)
				continue
			}

			for _, msg := range messages {
				// Отправляем сообщение в Kafka
				if err := producer.SendOutboxMessage(&msg); err != nil {
					log.Printf("Failed to send message to Kafka: %v", err)
					continue
				}

				// Отмечаем сообщение как обработанное
				if err := db.MarkOutboxMessageAsProcessed(ctx, msg.ID); err != nil {
					log.Printf("Failed to mark outbox message as processed: %v", err)
				}
			}
		}
	}
}
