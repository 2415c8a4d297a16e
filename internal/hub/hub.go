// Package hub announces this world server to a hub over NATS so players
// can be routed between servers.
package hub

import (
	"fmt"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Heartbeat is published every hub.heartbeat while the server runs.
type Heartbeat struct {
	ServerID  int    `msgpack:"serverId"`
	Name      string `msgpack:"name"`
	Players   int    `msgpack:"players"`
	StartedAt int64  `msgpack:"startedAt"`
	SentAt    int64  `msgpack:"sentAt"`
}

// Publisher is the part of *nats.Conn the client needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Client publishes heartbeats on one subject.
type Client struct {
	pub     Publisher
	conn    *nats.Conn // nil when built from a bare Publisher
	subject string
	server  config.ServerConfig
	log     *zap.Logger
}

// Connect dials the hub's NATS server. Reconnects are handled by the
// NATS client; heartbeats published while disconnected are buffered.
func Connect(cfg *config.Config, log *zap.Logger) (*Client, error) {
	conn, err := nats.Connect(cfg.Hub.URL,
		nats.Name(fmt.Sprintf("%s-%d", cfg.Server.Name, cfg.Server.ID)),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("hub disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("hub reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect hub %s: %w", cfg.Hub.URL, err)
	}
	c := NewClient(conn, cfg, log)
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing publisher.
func NewClient(pub Publisher, cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		pub:     pub,
		subject: cfg.Hub.Subject,
		server:  cfg.Server,
		log:     log,
	}
}

// Beat publishes one heartbeat carrying the current player count.
func (c *Client) Beat(players int, now time.Time) error {
	b, err := msgpack.Marshal(&Heartbeat{
		ServerID:  c.server.ID,
		Name:      c.server.Name,
		Players:   players,
		StartedAt: c.server.StartTime,
		SentAt:    now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	if err := c.pub.Publish(c.subject, b); err != nil {
		return fmt.Errorf("publish heartbeat: %w", err)
	}
	c.log.Debug("hub heartbeat", zap.Int("players", players))
	return nil
}

// Close flushes pending heartbeats and closes the connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.log.Warn("hub drain", zap.Error(err))
		c.conn.Close()
	}
}
