package rabbitmq

import (
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fleetdesk/dispatch/common/logger"
)

const defaultMaxRetries = 5

// Connect establishes a connection to RabbitMQ with bounded retry and
// quadratic backoff between attempts.
func Connect(amqpURL string) (*amqp.Connection, error) {
	var counts int64
	var lastErr error

	for {
		c, err := amqp.Dial(amqpURL)
		if err != nil {
			counts++
			lastErr = err
			logger.Info("RabbitMQ not yet ready...", "attempt", counts)
		} else {
			logger.Info("Connected to RabbitMQ")
			return c, nil
		}

		if counts > defaultMaxRetries {
			return nil, lastErr
		}

		backOff := time.Duration(math.Pow(float64(counts), 2)) * time.Second
		logger.Debug("Backing off before RabbitMQ reconnect", "delay", backOff)
		time.Sleep(backOff)
	}
}
