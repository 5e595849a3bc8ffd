package notify_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/notify"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisPublisher(t *testing.T) {
	t.Run("Should require a client", func(t *testing.T) {
		_, err := notify.NewRedisPublisher(nil, nil)
		assert.Error(t, err)
	})

	t.Run("Should broadcast notifications to subscribers", func(t *testing.T) {
		ctx := t.Context()
		_, client := newRedis(t)
		pub, err := notify.NewRedisPublisher(client, &notify.RedisOptions{Scope: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "genvid:notifications:alice", pub.Channel())

		sub := client.Subscribe(ctx, pub.Channel())
		defer sub.Close()
		_, err = sub.Receive(ctx)
		require.NoError(t, err)

		require.NoError(t, pub.Publish(ctx, notify.Notification{
			Kind:   notify.KindReady,
			JobID:  "7",
			Status: job.StatusSucceeded,
		}))

		select {
		case msg := <-sub.Channel():
			assert.Contains(t, msg.Payload, `"job_id":"7"`)
			assert.Contains(t, msg.Payload, `"kind":"ready"`)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notification")
		}
	})

	t.Run("Should keep a capped backlog in publish order", func(t *testing.T) {
		ctx := t.Context()
		mr, client := newRedis(t)
		pub, err := notify.NewRedisPublisher(client, &notify.RedisOptions{MaxEntries: 2, TTL: time.Minute})
		require.NoError(t, err)

		for _, id := range []string{"1", "2", "3"} {
			require.NoError(t, pub.Publish(ctx, notify.Notification{JobID: core.ID("x-" + id)}))
		}

		backlog, err := pub.Replay(ctx, 10)
		require.NoError(t, err)
		require.Len(t, backlog, 2)
		assert.Equal(t, "x-2", backlog[0].JobID.String())
		assert.Equal(t, "x-3", backlog[1].JobID.String())
		assert.True(t, mr.TTL("genvid:notifications:log:default") > 0)
	})

	t.Run("Should return empty backlog when nothing was published", func(t *testing.T) {
		_, client := newRedis(t)
		pub, err := notify.NewRedisPublisher(client, nil)
		require.NoError(t, err)

		backlog, err := pub.Replay(t.Context(), 0)
		require.NoError(t, err)
		assert.Empty(t, backlog)
	})
}
