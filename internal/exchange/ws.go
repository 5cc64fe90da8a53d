// ws.go implements the realtime WebSocket feed for bitFlyer's Lightning
// Realtime API: a JSON-RPC 2.0 stream of "lightning_executions_<SYMBOL>"
// channel messages, each message a batch of executions.
//
// The connection auto-reconnects with exponential backoff (1s -> 30s max)
// and re-subscribes to all tracked channels on reconnection. A read
// deadline (90s) detects a silent server within roughly two missed pings.
// Grounded on 0xtitan6-polymarket-mm's internal/exchange/ws.go for the
// dial/backoff/dispatch shape, and on trade/execution/stream/realtime.py
// for the bitFlyer channel/message envelope this feed must produce.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPingInterval     = 50 * time.Second
	wsReadTimeout      = 90 * time.Second
	wsMaxReconnectWait = 30 * time.Second
	wsWriteTimeout     = 10 * time.Second
	executionBufSize   = 4096
)

// ExecutionMessage is one entry of a lightning_executions_<SYMBOL> channel
// message, the wire shape bitFlyer emits for a single execution.
type ExecutionMessage struct {
	ID                         int64     `json:"id"`
	Side                       string    `json:"side"`
	Price                      float64   `json:"price"`
	Size                       float64   `json:"size"`
	ExecDate                   time.Time `json:"exec_date"`
	BuyChildOrderAcceptanceID  string    `json:"buy_child_order_acceptance_id"`
	SellChildOrderAcceptanceID string    `json:"sell_child_order_acceptance_id"`
}

type jsonRPCSubscribe struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      int            `json:"id"`
}

type jsonRPCChannelMessage struct {
	Method string `json:"method"`
	Params struct {
		Channel string            `json:"channel"`
		Message []ExecutionMessage `json:"message"`
	} `json:"params"`
}

// ExecutionFeed manages a single WebSocket connection to bitFlyer's
// Realtime API and dispatches execution batches per subscribed channel.
type ExecutionFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool // channel name -> subscribed

	executionsCh chan ChannelBatch

	logger *slog.Logger
}

type ChannelBatch struct {
	Channel string
	Batch   []ExecutionMessage
}

// NewExecutionFeed creates a feed with no subscriptions; channels
// (lightning_executions_<SYMBOL>) are added with Subscribe and sent once
// connected.
func NewExecutionFeed(wsURL string, logger *slog.Logger) *ExecutionFeed {
	return &ExecutionFeed{
		url:          wsURL,
		subscribed:   make(map[string]bool),
		executionsCh: make(chan ChannelBatch, executionBufSize),
		logger:       logger.With("component", "execution_feed"),
	}
}

// Executions returns channel-tagged execution batches as they arrive.
func (f *ExecutionFeed) Executions() <-chan ChannelBatch { return f.executionsCh }

// Run connects and maintains the connection with auto-reconnect. Blocks
// until ctx is cancelled.
func (f *ExecutionFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("execution feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > wsMaxReconnectWait {
			backoff = wsMaxReconnectWait
		}
	}
}

// Subscribe adds a lightning_executions_<SYMBOL> channel.
// Subscribe records the channel and, if a connection already exists,
// sends the subscribe frame immediately. Calling it before Run has
// connected is not an error: the channel is picked up by the next
// resubscribeAll once Run dials in.
func (f *ExecutionFeed) Subscribe(channel string) error {
	f.subscribedMu.Lock()
	f.subscribed[channel] = true
	f.subscribedMu.Unlock()

	err := f.writeJSON(jsonRPCSubscribe{
		JSONRPC: "2.0",
		Method:  "subscribe",
		Params:  map[string]any{"channel": channel},
		ID:      1,
	})
	if f.connected() {
		return err
	}
	return nil
}

func (f *ExecutionFeed) connected() bool {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	return f.conn != nil
}

// Close gracefully closes the connection.
func (f *ExecutionFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *ExecutionFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	f.logger.Info("execution feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *ExecutionFeed) resubscribeAll() error {
	f.subscribedMu.RLock()
	channels := make([]string, 0, len(f.subscribed))
	for ch := range f.subscribed {
		channels = append(channels, ch)
	}
	f.subscribedMu.RUnlock()

	for i, ch := range channels {
		msg := jsonRPCSubscribe{
			JSONRPC: "2.0",
			Method:  "subscribe",
			Params:  map[string]any{"channel": ch},
			ID:      i + 1,
		}
		if err := f.writeJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *ExecutionFeed) dispatchMessage(data []byte) {
	var envelope jsonRPCChannelMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}
	if envelope.Method != "channelMessage" || envelope.Params.Channel == "" {
		return
	}

	select {
	case f.executionsCh <- ChannelBatch{Channel: envelope.Params.Channel, Batch: envelope.Params.Message}:
	default:
		f.logger.Warn("execution channel full, dropping batch", "channel", envelope.Params.Channel)
	}
}

func (f *ExecutionFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *ExecutionFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return f.conn.WriteJSON(v)
}

func (f *ExecutionFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return f.conn.WriteMessage(msgType, data)
}
