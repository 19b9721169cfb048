package kafka

import (
	"log"

	"github.com/segmentio/kafka-go"
)

// EnsureTopicsExist creates the lifecycle topics if the broker does
// not have them yet. Failures are logged, not fatal: a broker with
// auto-create enabled will create them on first publish anyway.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			log.Printf("Error creating topic %s: %v", topic, err)
		}
	}
	return nil
}
