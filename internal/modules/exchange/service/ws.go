package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cryptomon/internal/models"
)

const defaultWSURL = "wss://ws.okx.com:8443/ws/v5/public"

// wsClient keeps a live tickers subscription and serves fetch_ticker from
// the last frame received, so interval polling never waits on the network.
// Instruments are subscribed lazily on first request.
type wsClient struct {
	binding *models.ExchangeBinding
	url     string
	dialer  *websocket.Dialer
	log     *zap.Logger

	mu     sync.RWMutex
	wanted map[string]struct{}
	last   map[string]map[string]any
	conn   *websocket.Conn

	// gorilla allows one concurrent writer per conn; the keepalive ticker
	// and subscribe calls from tick goroutines share writeMu
	writeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSClient builds the streaming driver for a binding. Call Start before
// issuing calls.
func NewWSClient(binding *models.ExchangeBinding, log *zap.Logger) Client {
	return &wsClient{
		binding: binding,
		url:     binding.Option("ws_url", defaultWSURL),
		dialer:  &websocket.Dialer{},
		log:     log.With(zap.String("exchange", binding.Name)),
		wanted:  make(map[string]struct{}),
		last:    make(map[string]map[string]any),
		done:    make(chan struct{}),
	}
}

func (c *wsClient) Name() string { return c.binding.Name }

// Start launches the connect/read loop.
func (c *wsClient) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

func (c *wsClient) Close() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *wsClient) Call(ctx context.Context, function string, args []any, kwargs map[string]any) (any, error) {
	if function != "fetch_ticker" {
		return nil, &UnknownFunctionError{Exchange: c.binding.Name, Function: function}
	}
	instID, err := symbolArg(args, kwargs)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	tick, ok := c.last[instID]
	c.mu.RUnlock()
	if ok {
		return tick, nil
	}

	c.subscribe(instID)
	return nil, errors.Errorf("no ticker for %s yet", instID)
}

// subscribe marks instID wanted and pushes the subscription if connected.
func (c *wsClient) subscribe(instID string) {
	c.mu.Lock()
	if _, ok := c.wanted[instID]; ok {
		c.mu.Unlock()
		return
	}
	c.wanted[instID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = c.writeJSON(conn, map[string]any{
			"op":   "subscribe",
			"args": []map[string]string{{"channel": "tickers", "instId": instID}},
		})
	}
}

func (c *wsClient) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *wsClient) writeText(conn *websocket.Conn, msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *wsClient) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			c.log.Error("ws dial failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// cancellation must unblock the goroutine parked in ReadMessage,
		// otherwise Close deadlocks on <-c.done
		go func() { <-ctx.Done(); _ = conn.Close() }()

		c.mu.Lock()
		c.conn = conn
		subs := make([]map[string]string, 0, len(c.wanted))
		for inst := range c.wanted {
			subs = append(subs, map[string]string{"channel": "tickers", "instId": inst})
		}
		c.mu.Unlock()

		if len(subs) > 0 {
			if err := c.writeJSON(conn, map[string]any{"op": "subscribe", "args": subs}); err != nil {
				c.log.Error("ws subscribe failed", zap.Error(err))
				_ = conn.Close()
				continue
			}
		}

		// keepalive ping every 20s, otherwise OKX drops the connection
		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(20 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopPing:
					return
				case <-t.C:
					_ = c.writeText(conn, "ping")
				}
			}
		}()

		c.readLoop(ctx, conn)
		close(stopPing)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		default:
			time.Sleep(time.Second)
		}
	}
}

func (c *wsClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.log.Error("ws read failed", zap.Error(err))
			return
		}

		var frame struct {
			Arg struct {
				Channel string `json:"channel"`
				InstID  string `json:"instId"`
			} `json:"arg"`
			Data []okxTicker `json:"data"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue // pong and event frames
		}
		if frame.Arg.Channel != "tickers" || len(frame.Data) == 0 {
			continue
		}

		tick := frame.Data[len(frame.Data)-1].asMap()
		c.mu.Lock()
		c.last[frame.Arg.InstID] = tick
		c.mu.Unlock()
	}
}
