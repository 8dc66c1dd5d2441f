package queue

import (
	"errors"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a message is retried before it is dead-lettered.
const MaxRetries = 10

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// HandleProcessingError routes a failed delivery to the retry queue, or to
// the dead-letter queue once MaxRetries is reached or the message is
// malformed. The delivery is acked once republished and requeued if
// republishing fails.
func HandleProcessingError(ch Channel, msg amqp091.Delivery, queueName string, cause error) {
	retries := retryCount(msg.Headers)

	if retries >= MaxRetries || errors.Is(cause, ErrBadMessage) {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName, "retries", retries)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp091.Publishing{
				ContentType: msg.ContentType,
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
