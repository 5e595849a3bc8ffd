package transport_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSSE(t *testing.T) {
	t.Run("Should split messages on blank lines and join data lines", func(t *testing.T) {
		stream := strings.Join([]string{
			": keep-alive",
			"event: jobs",
			"data: [1,",
			"data: 2]",
			"",
			"id: 9",
			"data:{\"id\":3}\r",
			"\r",
			"data: trailing without terminator",
		}, "\n")
		var got []string
		err := transport.ReadSSE(t.Context(), strings.NewReader(stream), func(msg []byte) bool {
			got = append(got, string(msg))
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"[1,\n2]", `{"id":3}`}, got)
	})

	t.Run("Should stop when emit refuses", func(t *testing.T) {
		calls := 0
		err := transport.ReadSSE(t.Context(), strings.NewReader("data: a\n\ndata: b\n\n"), func([]byte) bool {
			calls++
			return false
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestSSEConnector(t *testing.T) {
	t.Run("Should stream snapshots and reconnect after the server closes", func(t *testing.T) {
		var connections atomic.Int32
		var gotToken, gotAuth atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, transport.EventsPath, r.URL.Path)
			gotToken.Store(r.URL.Query().Get("token"))
			gotAuth.Store(r.Header.Get("Authorization"))
			n := connections.Add(1)
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: [{\"id\": %d, \"status\": \"RUNNING\"}]\n\n", n)
			fmt.Fprint(w, "data: {broken\n\n")
			w.(http.Flusher).Flush()
		}))
		defer srv.Close()

		ch := transport.NewChannel(
			transport.NewSSEConnector(srv.URL, srv.Client()),
			transport.WithReconnectDelay(5*time.Millisecond),
		)
		out, err := ch.Open(t.Context(), "a b")
		require.NoError(t, err)
		defer ch.Close()

		first := receive(t, out)
		second := receive(t, out)
		assert.Equal(t, core.ID("1"), first.ID)
		assert.Equal(t, core.ID("2"), second.ID)
		assert.Equal(t, job.StatusRunning, *second.Status)
		assert.Equal(t, "a b", gotToken.Load())
		assert.Equal(t, "Bearer a b", gotAuth.Load())
	})

	t.Run("Should treat non-200 responses as connection failures", func(t *testing.T) {
		var connections atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if connections.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, "data: [{\"id\": 7}]\n\n")
		}))
		defer srv.Close()

		ch := transport.NewChannel(
			transport.NewSSEConnector(srv.URL, nil),
			transport.WithReconnectDelay(5*time.Millisecond),
		)
		out, err := ch.Open(t.Context(), "tok")
		require.NoError(t, err)
		defer ch.Close()

		assert.Equal(t, core.ID("7"), receive(t, out).ID)
		assert.GreaterOrEqual(t, connections.Load(), int32(2))
	})
}
