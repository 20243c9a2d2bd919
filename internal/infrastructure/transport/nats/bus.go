package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/resilience"
)

// Bus is the NATS edge of the pipeline: it receives inbound order messages
// and publishes best-effort processing notifications.
type Bus struct {
	conn           *nats.Conn
	inboundSubject string
	eventsSubject  string
	executor       *resilience.Executor
	log            *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, inboundSubject, eventsSubject string) (*Bus, error) {
	return NewWithOptions(url, inboundSubject, eventsSubject, Options{})
}

func NewWithOptions(url, inboundSubject, eventsSubject string, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	log := options.Logger
	if log == nil {
		log = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("order-pipeline"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:           conn,
		inboundSubject: inboundSubject,
		eventsSubject:  eventsSubject,
		executor:       options.ResilienceExecutor,
		log:            log,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// SubscribeInbound consumes JSON-encoded inbound messages in a queue group
// and blocks until the context ends.
func (b *Bus) SubscribeInbound(ctx context.Context, handler func(context.Context, domain.InboundMessage) error) error {
	sub, err := b.conn.QueueSubscribe(b.inboundSubject, "order-workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var inbound domain.InboundMessage
		if err := json.Unmarshal(msg.Data, &inbound); err != nil {
			b.log.Error("discarding undecodable inbound message", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, inbound); err != nil {
			b.log.Error("inbound handler failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// notification is the outbound event payload.
type notification struct {
	QueueID     string  `json:"queue_id"`
	ItemID      string  `json:"item_id"`
	Channel     string  `json:"channel"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	OrderID     string  `json:"order_id,omitempty"`
	OrderNumber string  `json:"order_number,omitempty"`
	Customer    string  `json:"customer,omitempty"`
	Total       float64 `json:"total,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func (b *Bus) OrderCompleted(ctx context.Context, item *domain.QueueItem) error {
	event := notification{
		QueueID:  item.ID,
		ItemID:   item.Item.ID,
		Channel:  string(item.Item.Channel),
		Status:   string(item.Status),
		Attempts: item.Attempts,
	}
	if item.Order != nil {
		event.OrderID = item.Order.ID
		event.OrderNumber = item.Order.OrderNumber
		event.Customer = item.Order.Customer
		event.Total = item.Order.Total
		event.Confidence = item.Order.Confidence
	}
	return b.publish(ctx, b.eventsSubject+".completed", event)
}

func (b *Bus) OrderFailed(ctx context.Context, item *domain.QueueItem) error {
	return b.publish(ctx, b.eventsSubject+".failed", notification{
		QueueID:  item.ID,
		ItemID:   item.Item.ID,
		Channel:  string(item.Item.Channel),
		Status:   string(item.Status),
		Attempts: item.Attempts,
		Error:    item.Error,
	})
}

func (b *Bus) publish(ctx context.Context, subject string, event notification) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	call := func(_ context.Context) error {
		if err := b.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}
