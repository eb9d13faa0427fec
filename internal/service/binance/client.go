// Package binance implements a MarketStream over the Binance combined
// ticker stream WebSocket.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
	"PairPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by the Binance combined
// stream endpoint. Subscriptions are encoded into the connect URL, so
// Subscribe is a no-op kept for interface symmetry.
type Client struct {
	baseURL        string
	instruments    []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a new Binance MarketStream.
func New(baseURL string, instruments []string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) domrepo.MarketStream {
	return &Client{
		baseURL:        baseURL,
		instruments:    instruments,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect dials the combined stream for all configured instruments.
func (c *Client) Connect(ctx context.Context) error {
	streams := make([]string, 0, len(c.instruments))
	for _, inst := range c.instruments {
		streams = append(streams, strings.ToLower(inst)+"@ticker")
	}
	u := fmt.Sprintf("%s/stream?streams=%s", c.baseURL, strings.Join(streams, "/"))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("binance: connected", logger.Int("streams", len(streams)))
	return nil
}

// Subscribe is satisfied by the combined stream URL; it only verifies
// that Connect ran.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("binance not connected")
	}
	return nil
}

type wsTicker struct {
	S string `json:"s"`
	C string `json:"c"` // last price
	Q string `json:"q"` // last quantity
	E int64  `json:"E"` // event time, ms
}

type wsFrame struct {
	Stream string   `json:"stream"`
	Data   wsTicker `json:"data"`
}

// Read streams Tick events and errors. The read loop exits on the first
// transport error; the collector drives Reconnect.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("binance conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("binance read: %w", err)
					return
				}
				var f wsFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-ticker frames
					continue
				}
				if f.Data.S == "" {
					continue
				}
				t, err := parseTick(&f.Data)
				if err != nil {
					continue
				}
				select {
				case ticks <- t:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

func parseTick(d *wsTicker) (*models.Tick, error) {
	price, err := strconv.ParseFloat(d.C, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", d.C, err)
	}
	qty := 0.0
	if d.Q != "" {
		if qty, err = strconv.ParseFloat(d.Q, 64); err != nil {
			qty = 0
		}
	}
	return &models.Tick{
		Instrument: d.S,
		Timestamp:  time.UnixMilli(d.E).UTC(),
		Price:      price,
		Quantity:   qty,
	}, nil
}

// Reconnect closes and re-dials after the configured delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
