package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
)

type Config struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512,
	}
}

// Client is one websocket connection reading the live feed of one room. The feed is
// read-only: anything the peer sends is discarded.
type Client struct {
	conn    *connWrapper
	raw     *websocket.Conn
	send    chan Frame
	done    chan struct{}
	once    sync.Once
	cfg     Config
	logger  logging.Logger
	AreaID  string
	ActorID string
}

func NewClient(conn *websocket.Conn, areaID, actorID string, cfg Config, logger logging.Logger) *Client {
	return &Client{
		conn:    newConnWrapper(conn, cfg.WriteTimeout),
		raw:     conn,
		send:    make(chan Frame, 1),
		done:    make(chan struct{}),
		cfg:     cfg,
		logger:  logger,
		AreaID:  areaID,
		ActorID: actorID,
	}
}

// Push queues a frame. Every frame is a full snapshot, so a queued frame the writer has not
// picked up yet is replaced.
func (c *Client) Push(f Frame) {
	for {
		select {
		case <-c.done:
			return
		case c.send <- f:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Run pumps frames to the peer until the peer leaves, a write fails or ctx ends.
func (c *Client) Run(ctx context.Context) {
	go c.readLoop()

	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.CloseGoingAway, "server shutting down")
			return
		case <-c.done:
			return
		case f := <-c.send:
			if err := c.conn.WriteJSON(f); err != nil {
				c.logError("ws write failed", err)
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				c.logError("ws ping failed", err)
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// Close sends a close frame once and tears the connection down.
func (c *Client) Close(code int, text string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.CloseWith(code, text)
	})
}

func (c *Client) readLoop() {
	c.raw.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.raw.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.raw.SetPongHandler(func(string) error {
		return c.raw.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		if _, _, err := c.raw.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logError("ws read failed", err)
			}
			c.Close(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (c *Client) logError(msg string, err error) {
	select {
	case <-c.done:
		// Errors after close are expected.
		return
	default:
	}
	c.logger.Warn(logging.RequestResponse, logging.Subscription, msg, map[logging.ExtraKey]any{
		logging.AreaID:       c.AreaID,
		logging.Actor:        c.ActorID,
		logging.ErrorMessage: err.Error(),
	})
}
