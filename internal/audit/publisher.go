package audit

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fleetdesk/dispatch/common/logger"
)

const (
	auditQueue     = "audit"
	publishTimeout = 5 * time.Second
)

// Event names emitted by the dispatch service.
const (
	EventDriverLogin      = "driver.login"
	EventDriverTokenLogin = "driver.tokenLogin"
	EventProjectStatus    = "project.transition"
)

// EventMessage is the wire shape consumed by the audit sink.
type EventMessage struct {
	EventName string `json:"event_name"`
	ActorID   string `json:"actor_id"`
	Metadata  string `json:"metadata"`
	Status    string `json:"status"`
}

// Metadata carries request context alongside the event.
type Metadata struct {
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Action    string         `json:"action,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Publisher sends audit events over RabbitMQ. A nil Publisher or one created
// without a connection silently drops events, so the service runs unchanged
// when the broker is not configured.
type Publisher struct {
	conn *amqp.Connection
}

// New creates a Publisher. conn may be nil.
func New(conn *amqp.Connection) *Publisher {
	return &Publisher{conn: conn}
}

// Publish emits one audit event. Failures are logged and swallowed: auditing
// is best-effort and must never fail the request that triggered it.
func (p *Publisher) Publish(ctx context.Context, eventName, actorID, status string, metadata Metadata) {
	if p == nil || p.conn == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := p.publish(ctx, eventName, actorID, status, metadata); err != nil {
			logger.Warn("Failed to publish audit event",
				"event_name", eventName,
				"actor_id", actorID,
				"error", err.Error(),
			)
		}
	}()
}

func (p *Publisher) publish(ctx context.Context, eventName, actorID, status string, metadata Metadata) error {
	channel, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	if _, err := channel.QueueDeclare(auditQueue, true, false, false, false, nil); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	body, err := json.Marshal(EventMessage{
		EventName: eventName,
		ActorID:   actorID,
		Metadata:  string(metadataJSON),
		Status:    status,
	})
	if err != nil {
		return err
	}

	err = channel.PublishWithContext(ctx, "", auditQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}

	logger.Debug("Published audit event",
		"event_name", eventName,
		"actor_id", actorID,
		"status", status,
	)
	return nil
}
