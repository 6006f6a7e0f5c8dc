// Package audit publishes the lifecycle trail supplementary feature:
// thread.created / thread.cleaned_up / thread.timeout_fired events onto a
// durable AMQP topic exchange. A watermill-amqp/v3 Publisher is wired
// directly, in place of a factory/provider indirection layer that had no
// component in this module to serve.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

const Exchange = "im_thread_gateway.audit"

// LifecycleEvent is one row of the audit trail.
type LifecycleEvent struct {
	Transition string    `json:"transition"` // thread.created | thread.cleaned_up | thread.timeout_fired
	ThreadID   string    `json:"threadId"`
	Project    string    `json:"project"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher fans lifecycle transitions out over an AMQP topic exchange.
// A nil *Publisher is a valid no-op (registry.Option WithAuditPublisher).
type Publisher struct {
	pub    message.Publisher
	logger *slog.Logger
}

func NewPublisher(pub message.Publisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pub: pub, logger: logger}
}

// NewAMQPPublisher dials amqpURI and returns a Publisher bound to a durable
// topic exchange.
func NewAMQPPublisher(amqpURI string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config := amqp.NewDurablePubSubConfig(amqpURI, func(topic string) string { return Exchange })
	config.Exchange.Type = "topic"
	config.Exchange.Durable = true

	wmLogger := watermillSlog(logger)
	pub, err := amqp.NewPublisher(config, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("audit: dial amqp publisher: %w", err)
	}
	return NewPublisher(pub, logger), nil
}

// PublishLifecycle marshals and emits ev. Publish failures are logged, not
// returned: the audit trail is best-effort and must never block or fail the
// registry's own lifecycle transition.
func (p *Publisher) PublishLifecycle(ev LifecycleEvent) {
	if p == nil || p.pub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("audit: marshal lifecycle event", "err", err, "transition", ev.Transition)
		return
	}
	msg := message.NewMessage(newMessageID(), payload)
	msg.SetContext(context.Background())
	if err := p.pub.Publish(ev.ThreadID, msg); err != nil {
		p.logger.Error("audit: publish lifecycle event", "err", err, "transition", ev.Transition, "thread_id", ev.ThreadID)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.pub == nil {
		return nil
	}
	return p.pub.Close()
}
