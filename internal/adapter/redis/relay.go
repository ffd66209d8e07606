package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pscheid92/wspush/internal/adapter/metrics"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

// BroadcastChannel is the Pub/Sub channel every instance subscribes to.
const BroadcastChannel = "wspush:broadcast"

var ErrNotSubscribed = errors.New("broadcast relay is not subscribed")

// DeliverFunc hands a relayed message to this instance's connections.
type DeliverFunc func(ctx context.Context, message string)

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithSubscribeRetry replaces the backoff used while the initial subscription
// cannot be established.
func WithSubscribeRetry(p retry.Policy) RelayOption {
	return func(r *Relay) { r.retry = p }
}

// Relay publishes broadcasts to Redis and delivers every message seen on the
// channel locally, so a trigger on one instance reaches peers on all of them.
type Relay struct {
	rdb     *goredis.Client
	channel string
	deliver DeliverFunc
	metrics *metrics.RedisMetrics
	retry   retry.Policy
	ready   chan struct{}
}

func NewRelay(rdb *goredis.Client, deliver DeliverFunc, m *metrics.RedisMetrics, opts ...RelayOption) *Relay {
	r := &Relay{
		rdb:     rdb,
		channel: BroadcastChannel,
		deliver: deliver,
		metrics: m,
		retry: retry.Policy{
			MaxAttempts:    math.MaxInt,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ domain.Publisher = (*Relay)(nil)

// Publish sends message to every subscribed instance, this one included.
// Delivery happens asynchronously in each instance's Run loop. Until this
// instance is subscribed, Publish fails with ErrNotSubscribed so local peers
// are never silently skipped.
func (r *Relay) Publish(ctx context.Context, message string) (domain.BroadcastResult, error) {
	if err := r.ReadyCheck(ctx); err != nil {
		return domain.BroadcastResult{}, err
	}

	receivers, err := r.rdb.Publish(ctx, r.channel, message).Result()
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("failed to publish broadcast: %w", err)
	}
	slog.DebugContext(ctx, "Broadcast relayed", "channel", r.channel, "instances", receivers)
	return domain.BroadcastResult{Relayed: true}, nil
}

// Ready is closed once the subscription is confirmed by Redis.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// ReadyCheck is a readiness probe that fails until Run has subscribed.
func (r *Relay) ReadyCheck(context.Context) error {
	select {
	case <-r.ready:
		return nil
	default:
		return ErrNotSubscribed
	}
}

// Run subscribes to the broadcast channel, retrying with backoff until Redis
// confirms the subscription, then delivers each message until ctx is
// cancelled. Run must be called once.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() { _ = sub.Close() }()

	close(r.ready)
	slog.Info("Broadcast relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if r.metrics != nil {
				r.metrics.RelayedMessages.Inc()
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *Relay) subscribe(ctx context.Context) (*goredis.PubSub, error) {
	policy := r.retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Broadcast relay subscribe failed, retrying",
			"channel", r.channel, "attempt", attempt, "backoff", backoff, "error", err)
		if onRetry != nil {
			onRetry(attempt, err, backoff)
		}
	}

	alwaysRetry := func(error) retry.Action { return retry.Retry }
	sub, err := retry.Do(ctx, policy, alwaysRetry, func(ctx context.Context) (*goredis.PubSub, error) {
		sub := r.rdb.Subscribe(ctx, r.channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return nil, err
		}
		return sub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	return sub, nil
}
