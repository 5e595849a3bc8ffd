package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	EventsPath      = "/events/video-generation"
	maxSSELineBytes = 1 << 20
)

// SSEConnector reads the server-sent job event stream.
type SSEConnector struct {
	baseURL string
	client  *http.Client
}

// NewSSEConnector streams from baseURL. The client must not carry a request
// timeout since the stream is long-lived.
func NewSSEConnector(baseURL string, client *http.Client) *SSEConnector {
	if client == nil {
		client = &http.Client{}
	}
	return &SSEConnector{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *SSEConnector) Connect(ctx context.Context, token string, onOpen func(), emit func([]byte) bool) error {
	endpoint := s.baseURL + EventsPath + "?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to establish SSE connection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SSE connection failed with status %d", resp.StatusCode)
	}
	onOpen()
	return ReadSSE(ctx, resp.Body, emit)
}

// ReadSSE splits body into messages on blank lines and hands the joined data
// lines of each message to emit. A trailing message without its terminating
// blank line is discarded.
func ReadSSE(ctx context.Context, body io.Reader, emit func([]byte) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
	var data []string
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if len(data) > 0 {
				if !emit([]byte(strings.Join(data, "\n"))) {
					return ctx.Err()
				}
				data = data[:0]
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		data = append(data, strings.TrimPrefix(value, " "))
	}
	return scanner.Err()
}
