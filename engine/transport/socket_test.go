package transport_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketURL(t *testing.T) {
	t.Run("Should swap http schemes for websocket schemes", func(t *testing.T) {
		assert.Equal(t, "ws://host:8000/ws/video-generation", transport.SocketURL("http://host:8000/"))
		assert.Equal(t, "wss://api.example.com/ws/video-generation", transport.SocketURL("https://api.example.com"))
	})
}

func TestSocketConnector(t *testing.T) {
	t.Run("Should deliver frames, ping, and reconnect after close", func(t *testing.T) {
		var connections, pings atomic.Int32
		upgrader := websocket.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tok", r.URL.Query().Get("token"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			n := connections.Add(1)
			conn.SetPingHandler(func(data string) error {
				pings.Add(1)
				return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
			})
			payload := fmt.Sprintf(`[{"id": %d, "status": "QUEUED"}]`, n)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
			readDone := make(chan struct{})
			go func() {
				defer close(readDone)
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			}()
			if n > 1 {
				<-readDone
				return
			}
			deadline := time.After(2 * time.Second)
			for pings.Load() == 0 {
				select {
				case <-deadline:
					return
				case <-readDone:
					return
				case <-time.After(5 * time.Millisecond):
				}
			}
		}))
		defer srv.Close()

		ch := transport.NewChannel(
			transport.NewSocketConnector(srv.URL, 5*time.Millisecond),
			transport.WithReconnectDelay(5*time.Millisecond),
		)
		out, err := ch.Open(t.Context(), "tok")
		require.NoError(t, err)
		defer ch.Close()

		assert.Equal(t, core.ID("1"), receive(t, out).ID)
		assert.Equal(t, core.ID("2"), receive(t, out).ID)
		assert.GreaterOrEqual(t, connections.Load(), int32(2))
		assert.GreaterOrEqual(t, pings.Load(), int32(1))
	})
}
