package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jac08h/HahOrNahBot/internal/config"
	"github.com/jac08h/HahOrNahBot/pkg/logger"

	"github.com/nats-io/nats.go"
)

const (
	OutboundSubject = "telegram.send"
	ConsumerGroup   = "hahornah-bot"
)

// NATS decouples handler replies from Telegram delivery: handlers publish,
// a single consumer sends with rate-limit retry.
type NATS struct {
	conn      *nats.Conn
	jetstream nats.JetStream
	cfg       config.NATSConfig
}

func New(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	return &NATS{
		conn:      conn,
		jetstream: js,
		cfg:       cfg,
	}, nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// OutboundMessage is one reply waiting for delivery to a chat.
type OutboundMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (n *NATS) PublishOutbound(ctx context.Context, msg *OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	_, err = n.jetstream.Publish(OutboundSubject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish outbound message: %w", err)
	}

	logger.Debug("Outbound message published to queue",
		logger.Int64("chat_id", msg.ChatID),
	)

	return nil
}

// ConsumeOutbound pulls queued replies and hands them to handler until ctx
// is canceled. Messages the handler rejects are redelivered.
func (n *NATS) ConsumeOutbound(ctx context.Context, handler func(*OutboundMessage) error) error {
	sub, err := n.jetstream.PullSubscribe(
		OutboundSubject,
		ConsumerGroup,
		nats.BindStream(n.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to outbound messages: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(500))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				return fmt.Errorf("failed to fetch messages: %w", err)
			}

			for _, msg := range msgs {
				var outbound OutboundMessage
				if err := json.Unmarshal(msg.Data, &outbound); err != nil {
					logger.Error("Failed to unmarshal outbound message",
						logger.Err(err),
					)
					msg.Nak()
					continue
				}

				if err := handler(&outbound); err != nil {
					logger.Error("Failed to deliver outbound message",
						logger.Err(err),
						logger.Int64("chat_id", outbound.ChatID),
					)
					msg.Nak()
					continue
				}

				msg.Ack()
			}
		}
	}
}
