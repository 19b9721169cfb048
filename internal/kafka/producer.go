package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"festival-ticketing/internal/config"
	"festival-ticketing/internal/models"
)

// Producer streams ticket lifecycle events for the platform's
// analytics and notification services.
type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

func (p *Producer) publish(topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return p.Writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Producer) PublishTicketsIssued(tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return p.publish(p.Topics.TicketsIssued, tickets[0].OwnerID, tickets)
}

func (p *Producer) PublishTicketScanned(t models.Ticket) error {
	return p.publish(p.Topics.TicketScanned, t.ID, t)
}

func (p *Producer) PublishTicketCancelled(t models.Ticket) error {
	return p.publish(p.Topics.TicketCancelled, t.ID, t)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
