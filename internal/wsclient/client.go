package wsclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zsprackett/agent-console/internal/events"
)

// ErrNotConnected is returned by Emit while no connection is open.
var ErrNotConnected = errors.New("channel not connected")

// Handler receives the channel's lifecycle signals and inbound events.
// Calls are made from the client's read goroutine, one at a time.
type Handler interface {
	OnOpen()
	OnClose(reason string)
	OnError(cause error)
	OnRetry()
	OnEvent(name string, data json.RawMessage)
}

// Config configures a Client.
type Config struct {
	URL        string
	Header     http.Header
	RetryDelay time.Duration
	// TLS is used for wss:// URLs. Nil means the system roots.
	TLS *tls.Config
}

// Client is a reconnecting websocket channel carrying named JSON events.
type Client struct {
	cfg     Config
	handler Handler
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns a Client. A zero RetryDelay defaults to 10 seconds. handler
// may be nil if it is supplied later with SetHandler.
func New(cfg Config, handler Handler, logger *slog.Logger) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	dialer := websocket.DefaultDialer
	if cfg.TLS != nil {
		d := *websocket.DefaultDialer
		d.TLSClientConfig = cfg.TLS
		dialer = &d
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		dialer:  dialer,
		logger:  logger,
	}
}

// TLSConfig trusts the PEM certificates in caFile on top of the system
// roots. An empty caFile returns nil.
func TLSConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	pemData, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("no certificates in %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// SetHandler replaces the handler. It must be called before Run; the
// handler usually needs the Client itself to emit.
func (c *Client) SetHandler(h Handler) {
	c.handler = h
}

// BearerHeader returns a handshake header carrying token.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// Run dials, reads until the connection drops, and redials after the retry
// delay until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Warn("wsclient: connection lost", "url", c.cfg.URL, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
		c.handler.OnRetry()
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		if ctx.Err() == nil {
			c.handler.OnError(err)
		}
		return fmt.Errorf("dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	c.logger.Info("wsclient: connected", "url", c.cfg.URL)
	c.handler.OnOpen()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.handler.OnClose(ce.Text)
				return nil
			}
			c.handler.OnError(err)
			return err
		}
		env, err := events.Decode(raw)
		if err != nil {
			c.logger.Warn("wsclient: dropping frame", "err", err)
			continue
		}
		c.handler.OnEvent(env.Event, env.Data)
	}
}

// Emit sends one named event. It fails with ErrNotConnected rather than
// buffering while the channel is down.
func (c *Client) Emit(event string, payload any) error {
	frame, err := events.Encode(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}
