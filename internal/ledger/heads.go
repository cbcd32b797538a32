package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/observability"
)

// HeadSourceConfig configures WebSocket head-subscription behavior.
type HeadSourceConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultHeadSourceConfig returns default WebSocket configuration.
func DefaultHeadSourceConfig() HeadSourceConfig {
	return HeadSourceConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// HeadSource subscribes to new-head notifications over WebSocket and
// publishes block numbers on a channel. Confirmation waits use it to
// poll receipts on new blocks instead of a fixed ticker; losing the
// connection only degrades waiting back to ticker polling.
type HeadSource struct {
	endpoint string
	config   HeadSourceConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	heads chan uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHeadSource connects to the endpoint and starts the newHeads
// subscription.
func NewHeadSource(ctx context.Context, endpoint string, config *HeadSourceConfig) (*HeadSource, error) {
	cfg := DefaultHeadSourceConfig()
	if config != nil {
		cfg = *config
	}

	s := &HeadSource{
		endpoint: endpoint,
		config:   cfg,
		heads:    make(chan uint64, 64),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Heads returns the channel of observed head block numbers.
func (s *HeadSource) Heads() <-chan uint64 {
	return s.heads
}

// connect establishes the WebSocket connection and subscribes.
func (s *HeadSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	s.conn = conn
	return nil
}

// wsNotification is the eth_subscription push message.
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result json.RawMessage `json:"result"`
	} `json:"params"`
}

type headResult struct {
	Number *ethtypes.HexUint64 `json:"number"`
}

// readLoop reads messages and publishes head numbers, reconnecting with
// backoff on failure.
func (s *HeadSource) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()

			select {
			case <-s.done:
				return
			case <-time.After(reconnectDelay):
			}
			reconnectDelay *= 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}
			if err := s.connect(context.Background()); err == nil {
				reconnectDelay = s.config.ReconnectDelay
			}
			continue
		}

		var note wsNotification
		if err := json.Unmarshal(msg, &note); err != nil || note.Method != "eth_subscription" {
			continue
		}
		var head headResult
		if err := json.Unmarshal(note.Params.Result, &head); err != nil || head.Number == nil {
			continue
		}

		observability.DefaultMetrics.HeadsReceived.Inc()

		// Drop the head if the consumer is behind; waits only need a nudge.
		select {
		case s.heads <- uint64(*head.Number):
		default:
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *HeadSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

// Close closes the WebSocket connection and the heads channel.
func (s *HeadSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.heads)
	return nil
}
