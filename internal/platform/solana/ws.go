package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// EventHandler receives every decoded program event. Handlers are invoked
// from the feed's read goroutine and are expected to be fire-and-forget:
// slow work should be moved off the callback.
type EventHandler func(ctx context.Context, ev Event)

// logsNotification is the JSON-RPC pubsub frame carrying transaction logs.
type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string          `json:"signature"`
				Err       json.RawMessage `json:"err"`
				Logs      []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// EventFeed subscribes to the program's transaction logs over the Solana
// websocket pubsub API and dispatches decoded events to a handler. Delivery
// is at-least-once across reconnects; every handler must be idempotent.
type EventFeed struct {
	wsURL     string
	programID string
	handler   EventHandler
	logger    *slog.Logger
}

// NewEventFeed creates an EventFeed for the given pubsub endpoint, e.g.
// "wss://api.mainnet-beta.solana.com".
func NewEventFeed(wsURL, programID string, handler EventHandler, logger *slog.Logger) *EventFeed {
	return &EventFeed{
		wsURL:     wsURL,
		programID: programID,
		handler:   handler,
		logger:    logger.With(slog.String("component", "event_feed")),
	}
}

// Run connects, subscribes, and dispatches until the context is cancelled.
// Connection loss triggers reconnection with exponential backoff; the
// subscription is re-established on every new connection.
func (f *EventFeed) Run(ctx context.Context) error {
	delay := reconnectDelay

	for {
		err := f.runConn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.WarnContext(ctx, "event feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConn runs a single connection lifetime: dial, subscribe, read until
// error or cancellation.
func (f *EventFeed) runConn(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}

	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("solana/ws: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{f.programID}},
			map[string]any{"commitment": "confirmed"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("solana/ws: subscribe: %w", err)
	}

	f.logger.InfoContext(ctx, "event feed subscribed",
		slog.String("program", f.programID),
	)

	// Ping loop and context watcher. Closing the connection unblocks the
	// blocked ReadMessage below.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("solana/ws: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var note logsNotification
		if err := json.Unmarshal(raw, &note); err != nil || note.Method != "logsNotification" {
			continue // subscription ack or unrelated frame
		}
		// Failed transactions still produce logs; their events never took
		// effect on-chain.
		if len(note.Params.Result.Value.Err) > 0 && string(note.Params.Result.Value.Err) != "null" {
			continue
		}

		for _, ev := range ParseEventLogs(note.Params.Result.Value.Logs) {
			f.logger.DebugContext(ctx, "program event",
				slog.String("event", ev.EventName()),
				slog.String("signature", note.Params.Result.Value.Signature),
			)
			f.handler(ctx, ev)
		}
	}
}
