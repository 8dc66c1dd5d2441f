package queue

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ConvertQueue = "convert_queue"

	TopicExchange  = "pubsub_exchange"
	TopicConverted = "document.converted"

	retryDelayMs = 10000
)

// Channel is the part of *amqp091.Channel used to declare and publish.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares the topic exchange and, for every queue, the queue
// itself plus its dead-letter queue and a retry queue that hands messages
// back after a delay.
func SetupQueues(ch Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(
		TopicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("exchange declare failed: %w", err)
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ch Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

func PublishTopic(ch Channel, topic string, data []byte) error {
	err := ch.ExchangeDeclare(
		TopicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	return ch.Publish(
		TopicExchange,
		topic,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
