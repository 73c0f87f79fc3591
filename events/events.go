package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/wfunc/diceserver/logger"
)

const (
	SubjectGameStarted = "game.started"
	SubjectGameSettled = "game.settled"
)

// Publisher announces game lifecycle events to other services.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// NATSPublisher publishes JSON payloads to <prefix>.<subject>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, token, prefix string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("dice-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Log.Infof("nats reconnected to %s", c.ConnectedUrl())
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	return p.conn.Publish(p.subject(subject), data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		logger.Log.Warnf("nats drain: %v", err)
	}
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close()                                     {}

// GameStarted is the payload of SubjectGameStarted.
type GameStarted struct {
	GameID  string   `json:"game_id"`
	SalonID string   `json:"salon_id"`
	TableID string   `json:"table_id"`
	Players []string `json:"players"`
}
