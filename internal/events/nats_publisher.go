package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the subset of *nats.Conn used to mirror events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge forwards dispatched events to NATS subjects named
// <prefix>.<event type>.
type NATSBridge struct {
	publisher Publisher
	prefix    string
	logger    *zap.Logger
}

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("messaging-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewNATSBridge builds a bridge over publisher.
func NewNATSBridge(publisher Publisher, prefix string, logger *zap.Logger) *NATSBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSBridge{publisher: publisher, prefix: prefix, logger: logger}
}

// Register subscribes the bridge to every message event on d.
func (b *NATSBridge) Register(d Dispatcher) {
	d.Subscribe(EventMessagePosted, b.forward)
	d.Subscribe(EventMessageDeleted, b.forward)
}

func (b *NATSBridge) forward(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	subject := b.prefix + "." + string(event.Type)
	if err := b.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	b.logger.Debug("event forwarded", zap.String("subject", subject), zap.String("event_id", event.ID))
	return nil
}
