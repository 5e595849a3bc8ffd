package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/infra/monitoring"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/notify"
	"github.com/genvid/genvid/engine/preview"
	"github.com/genvid/genvid/engine/session"
	"github.com/genvid/genvid/engine/transport"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type runtimeOptions struct {
	// Kind selects the live channel. Poll, or empty, means no channel.
	Kind     transport.Kind
	OnChange func()
}

// syncRuntime wires an API client, metrics and notification sinks into a
// session.
type syncRuntime struct {
	cfg     *config.Config
	client  *APIClient
	token   string
	session *session.Session
	monitor *monitoring.Service
	redis   *redis.Client
}

func newSyncRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*syncRuntime, error) {
	log := logger.FromContext(ctx)
	client, token, err := authedClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	monitor := monitoring.NewMonitoringServiceWithFallback(ctx, &monitoring.Config{
		Enabled: cfg.Monitoring.Enabled,
		Path:    cfg.Monitoring.Path,
		Addr:    cfg.Monitoring.Addr,
	})
	metrics, err := monitor.SyncMetrics()
	if err != nil {
		log.Warn("sync metrics unavailable", "error", err)
		metrics = nil
	}
	rt := &syncRuntime{cfg: cfg, client: client, token: token, monitor: monitor}

	var sinks []notify.Sink
	if redisURL := cfg.Notify.RedisURL.Value(); redisURL != "" {
		publisher, err := rt.connectRedis(redisURL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, publisher)
		log.Debug("publishing notifications to redis", "channel", publisher.Channel())
	}

	opts.Kind = normalizeKind(opts.Kind, cfg)
	sessionOpts := session.Options{
		Store:        job.NewStore(job.WithLogger(log)),
		Poller:       transport.NewPoller(client.WithoutRetry()),
		Previews:     preview.NewResolver(client, preview.WithBaseURL(client.BaseURL())),
		Jobs:         client,
		Sinks:        sinks,
		Metrics:      metrics,
		PollInterval: cfg.Poll.Interval,
		OnChange:     opts.OnChange,
		ChangeWait:   cfg.Runtime.ChangeDebounce,
	}
	if ch := newChannel(ctx, cfg, client.BaseURL(), opts.Kind, metrics); ch != nil {
		sessionOpts.Channel = ch
	}
	rt.session = session.New(sessionOpts)
	return rt, nil
}

func normalizeKind(kind transport.Kind, cfg *config.Config) transport.Kind {
	if kind == "" {
		kind = transport.Kind(cfg.Transport.Kind)
	}
	if !kind.IsValid() {
		return transport.KindSSE
	}
	return kind
}

func (rt *syncRuntime) connectRedis(redisURL string) (*notify.RedisPublisher, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid notify redis url: %w", err)
	}
	rt.redis = redis.NewClient(redisOpts)
	publisher, err := notify.NewRedisPublisher(rt.redis, &notify.RedisOptions{
		ChannelPrefix: rt.cfg.Notify.ChannelPrefix,
		MaxEntries:    rt.cfg.Notify.MaxEntries,
		TTL:           rt.cfg.Notify.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis publisher: %w", err)
	}
	return publisher, nil
}

func newChannel(
	ctx context.Context,
	cfg *config.Config,
	baseURL string,
	kind transport.Kind,
	metrics *monitoring.SyncMetrics,
) *transport.Channel {
	var connector transport.Connector
	switch kind {
	case transport.KindSSE:
		connector = transport.NewSSEConnector(baseURL, &http.Client{})
	case transport.KindSocket:
		connector = transport.NewSocketConnector(baseURL, cfg.Transport.PingInterval)
	default:
		return nil
	}
	log := logger.FromContext(ctx)
	opts := []transport.Option{
		transport.WithReconnectDelay(cfg.Transport.ReconnectDelay),
		transport.WithStateHook(func(state transport.State) {
			metrics.RecordStateChange(ctx, string(kind), state.String())
			log.Debug("job channel state", "transport", kind, "state", state)
		}),
	}
	if cfg.Transport.Backoff == "exponential" {
		opts = append(opts, transport.WithExponentialBackoff(cfg.Transport.MaxReconnectDelay))
	}
	return transport.NewChannel(connector, opts...)
}

// seed loads the current job list into the session store.
func (rt *syncRuntime) seed(ctx context.Context) error {
	snaps, err := rt.client.ListJobs(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		rt.session.Ingest(ctx, snap)
	}
	return nil
}

// ensureJob makes sure id is known to the store, fetching it when missing.
func (rt *syncRuntime) ensureJob(ctx context.Context, id core.ID) error {
	if _, ok := rt.session.Store().Get(id); ok {
		return nil
	}
	snap, err := rt.client.GetJob(ctx, id)
	if err != nil {
		return err
	}
	rt.session.Ingest(ctx, snap)
	return nil
}

func (rt *syncRuntime) Close(ctx context.Context) {
	rt.session.Teardown()
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			logger.FromContext(ctx).Debug("closing redis client", "error", err)
		}
	}
	if err := rt.monitor.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Debug("shutting down metrics", "error", err)
	}
}
