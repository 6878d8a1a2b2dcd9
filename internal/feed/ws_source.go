package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"copy-trader-lab/internal/chain"
	"copy-trader-lab/internal/domain"
)

// WSConfig configures WebSocket feed behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default feed configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// wireEvent is the watcher service's JSON frame.
type wireEvent struct {
	Wallet       string  `json:"wallet"`
	Chain        string  `json:"chain"`
	Token        string  `json:"token"`
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	Amount       float64 `json:"amount"`
	PriceUSD     float64 `json:"price_usd"`
	ValueUSD     float64 `json:"value_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	TimestampMs  int64   `json:"timestamp_ms"`
	TxHash       string  `json:"tx_hash"`
}

// WSSource streams transaction events from the watcher hub over a WebSocket,
// reconnecting with exponential backoff on connection loss. Malformed or
// invalid frames are logged and dropped; the stream keeps going.
type WSSource struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan *domain.TransactionEvent
	done chan struct{}
	wg   sync.WaitGroup

	reconnects atomic.Int64
}

var _ EventSource = (*WSSource)(nil)

// NewWSSource creates a feed source and connects to the endpoint.
func NewWSSource(ctx context.Context, endpoint string, config *WSConfig, logger *log.Logger) (*WSSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &WSSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		out:      make(chan *domain.TransactionEvent, 10000),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// connect establishes the WebSocket connection.
func (s *WSSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

// Subscribe starts the read and ping loops and returns the event channel.
func (s *WSSource) Subscribe(_ context.Context) (<-chan *domain.TransactionEvent, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("source closed")
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	return s.out, nil
}

// Reconnects returns how many times the stream reconnected.
func (s *WSSource) Reconnects() int64 {
	return s.reconnects.Load()
}

// Close shuts the source down and closes the event channel.
func (s *WSSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.out)
	return nil
}

// readLoop reads frames, normalizes them and pushes them downstream,
// reconnecting with exponential backoff on errors.
func (s *WSSource) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.waitOrDone(delay) {
				return
			}
			delay = s.backoff(delay)
			s.redial()
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Printf("[feed] read error: %v, reconnecting in %v", err, delay)
			s.dropConn()
			continue
		}

		delay = s.config.ReconnectDelay
		s.handleMessage(message)
	}
}

// redial attempts one reconnect.
func (s *WSSource) redial() {
	if s.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Printf("[feed] reconnect failed: %v", err)
		return
	}
	s.reconnects.Add(1)
	s.logger.Println("[feed] reconnected")
}

// dropConn closes the current connection so the read loop redials.
func (s *WSSource) dropConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

func (s *WSSource) waitOrDone(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *WSSource) backoff(d time.Duration) time.Duration {
	d *= 2
	if d > s.config.MaxReconnectDelay {
		return s.config.MaxReconnectDelay
	}
	return d
}

// handleMessage parses and validates one frame. Invalid frames are dropped.
func (s *WSSource) handleMessage(message []byte) {
	var w wireEvent
	if err := json.Unmarshal(message, &w); err != nil {
		s.logger.Printf("[feed] malformed frame: %v", err)
		return
	}

	ev, err := normalize(&w)
	if err != nil {
		s.logger.Printf("[feed] dropping frame for tx %s: %v", w.TxHash, err)
		return
	}

	// Block rather than drop: the channel buffer absorbs bursts.
	select {
	case s.out <- ev:
	case <-s.done:
	}
}

// normalize converts a wire frame into a validated domain event.
func normalize(w *wireEvent) (*domain.TransactionEvent, error) {
	action := domain.Action(w.Action)
	if action != domain.ActionBuy && action != domain.ActionSell {
		return nil, fmt.Errorf("unknown action %q", w.Action)
	}
	if w.TxHash == "" {
		return nil, fmt.Errorf("missing tx hash")
	}
	if w.Amount <= 0 {
		return nil, fmt.Errorf("non-positive amount %g", w.Amount)
	}
	if err := chain.ValidateWalletAddress(w.Chain, w.Wallet); err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}
	if err := chain.ValidateTokenAddress(w.Chain, w.Token); err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}

	ts := w.TimestampMs
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return &domain.TransactionEvent{
		WalletAddress: w.Wallet,
		Chain:         w.Chain,
		TokenAddress:  w.Token,
		TokenSymbol:   w.Symbol,
		Action:        action,
		Amount:        w.Amount,
		PriceUSD:      w.PriceUSD,
		ValueUSD:      w.ValueUSD,
		LiquidityUSD:  w.LiquidityUSD,
		TimestampMs:   ts,
		TxHash:        w.TxHash,
	}, nil
}

// pingLoop keeps the connection alive.
func (s *WSSource) pingLoop() {
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
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and redials.
				}
			}
			s.connMu.Unlock()
		}
	}
}
