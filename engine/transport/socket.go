package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	SocketPath          = "/ws/video-generation"
	DefaultPingInterval = 25 * time.Second
	pingWriteWait       = 5 * time.Second
)

// SocketConnector reads job updates from a websocket and keeps it alive with
// periodic pings.
type SocketConnector struct {
	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration
}

// NewSocketConnector derives the socket URL from an http(s) base URL.
func NewSocketConnector(baseURL string, pingInterval time.Duration) *SocketConnector {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &SocketConnector{
		url:          SocketURL(baseURL),
		dialer:       websocket.DefaultDialer,
		pingInterval: pingInterval,
	}
}

// SocketURL swaps the scheme of an http(s) base URL for ws(s) and appends
// the socket path.
func SocketURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + SocketPath
}

func (s *SocketConnector) Connect(ctx context.Context, token string, onOpen func(), emit func([]byte) bool) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := s.dialer.DialContext(ctx, s.url+"?token="+url.QueryEscape(token), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial socket: %w", err)
	}
	defer conn.Close()
	onOpen()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pingErr := make(chan error, 1)
	go s.keepAlive(connCtx, conn, pingErr)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case perr := <-pingErr:
				return fmt.Errorf("socket ping failed: %w", perr)
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("socket read failed: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if !emit(data) {
			return ctx.Err()
		}
	}
}

// keepAlive pings until ctx ends. Closing the connection on ctx end or ping
// failure unblocks the reader.
func (s *SocketConnector) keepAlive(ctx context.Context, conn *websocket.Conn, pingErr chan<- error) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteWait))
			if err != nil {
				pingErr <- err
				conn.Close()
				return
			}
		}
	}
}
