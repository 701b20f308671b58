package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cryptomon/internal/models"
)

// tickerServer acknowledges every subscribe with one ticker frame per
// instrument.
func tickerServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "ping" {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
				continue
			}
			var req struct {
				Op   string `json:"op"`
				Args []struct {
					Channel string `json:"channel"`
					InstID  string `json:"instId"`
				} `json:"args"`
			}
			if err := sonic.Unmarshal(msg, &req); err != nil || req.Op != "subscribe" {
				continue
			}
			for _, arg := range req.Args {
				frame := fmt.Sprintf(
					`{"arg":{"channel":"tickers","instId":%q},"data":[{"instId":%q,"last":"50100.5"}]}`,
					arg.InstID, arg.InstID)
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}
	}))
}

func newWSTestClient(t *testing.T) Client {
	t.Helper()
	srv := tickerServer(t)
	t.Cleanup(srv.Close)

	client := NewWSClient(&models.ExchangeBinding{
		Name:    "okx",
		Options: map[string]any{"ws_url": "ws" + strings.TrimPrefix(srv.URL, "http")},
	}, zap.NewNop())
	client.(*wsClient).Start(context.Background())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWSServesTickerFromFeed(t *testing.T) {
	client := newWSTestClient(t)

	var tick map[string]any
	require.Eventually(t, func() bool {
		got, err := client.Call(context.Background(), "fetch_ticker", []any{"BTC-USDT"}, nil)
		if err != nil {
			return false
		}
		tick = got.(map[string]any)
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "BTC-USDT", tick["symbol"])
	assert.Equal(t, 50100.5, tick["last"])
}

func TestWSConcurrentSubscribes(t *testing.T) {
	client := newWSTestClient(t)

	// many tick goroutines subscribing at once share one conn writer
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		inst := fmt.Sprintf("SYM%d-USDT", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Eventually(t, func() bool {
				_, err := client.Call(context.Background(), "fetch_ticker", []any{inst}, nil)
				return err == nil
			}, 2*time.Second, 5*time.Millisecond)
		}()
	}
	wg.Wait()
}

func TestWSUnknownFunction(t *testing.T) {
	client := newWSTestClient(t)

	_, err := client.Call(context.Background(), "fetch_order_book", []any{"BTC-USDT"}, nil)
	var uf *UnknownFunctionError
	require.ErrorAs(t, err, &uf)
}
