// Package websocket keeps the set of live WebSocket connections and fans
// text messages out to them.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pscheid92/wspush/internal/adapter/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultGreeting = "hello"
	defaultFanout   = 32
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrAlreadyOpen      = errors.New("connection already opened")
	ErrRegistryShutdown = errors.New("registry is shut down")
)

// Transport is the send side of one bidirectional channel.
type Transport interface {
	WriteText(data []byte) error
	Close() error
}

// Connection is a registry-issued handle for one live channel.
type Connection struct {
	id         uint64
	remoteAddr string
	transport  Transport
	opened     atomic.Bool
	closed     atomic.Bool
}

// ID returns the registry-issued identity of c.
func (c *Connection) ID() uint64 { return c.id }

// RemoteAddr returns the peer address the connection was accepted from.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// Report describes the outcome of one Broadcast.
type Report struct {
	Targets   int
	Delivered int
	Failed    int
}

// Option configures a Registry.
type Option func(*Registry)

// WithGreeting sets the payload sent to every newly opened connection.
func WithGreeting(greeting string) Option {
	return func(r *Registry) { r.greeting = greeting }
}

// WithMetrics records registry activity on m.
func WithMetrics(m *metrics.WebSocketMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithFanout bounds how many sends a single broadcast runs at once.
func WithFanout(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.fanout = n
		}
	}
}

// WithLogger replaces slog.Default for registry events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// Registry holds every open connection. A connection is present from Open
// until its first Close; failed sends never remove it.
type Registry struct {
	mu       sync.RWMutex
	conns    map[uint64]*Connection
	shutdown bool
	nextID   atomic.Uint64

	greeting string
	fanout   int
	metrics  *metrics.WebSocketMetrics
	logger   *slog.Logger
}

// NewRegistry returns an empty registry that greets with DefaultGreeting
// and fans out to at most 32 connections at once unless opts say otherwise.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:    make(map[uint64]*Connection),
		greeting: DefaultGreeting,
		fanout:   defaultFanout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewConnection wraps t in a handle with a fresh identity. The handle is not
// registered until Open.
func (r *Registry) NewConnection(t Transport, remoteAddr string) *Connection {
	return &Connection{
		id:         r.nextID.Add(1),
		remoteAddr: remoteAddr,
		transport:  t,
	}
}

// Open registers c and sends the greeting. A failed greeting is logged and
// leaves c registered; its close signal removes it later. After Shutdown,
// Open refuses new connections with ErrRegistryShutdown.
func (r *Registry) Open(ctx context.Context, c *Connection) error {
	if !c.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpen
	}

	r.mu.Lock()
	if c.closed.Load() {
		r.mu.Unlock()
		return ErrConnectionClosed
	}
	if r.shutdown {
		r.mu.Unlock()
		return ErrRegistryShutdown
	}
	r.conns[c.id] = c
	size := len(r.conns)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveConnections.Inc()
	}
	r.logger.InfoContext(ctx, "WebSocket connection opened", "conn_id", c.id, "remote_addr", c.remoteAddr, "connections", size)

	if err := c.transport.WriteText([]byte(r.greeting)); err != nil {
		r.logger.WarnContext(ctx, "Failed to send greeting", "conn_id", c.id, "error", err)
		if r.metrics != nil {
			r.metrics.GreetingFailures.Inc()
		}
		return nil
	}
	if r.metrics != nil {
		r.metrics.GreetingsSent.Inc()
	}
	return nil
}

// Message observes an inbound payload. It never replies and never changes
// registry state.
func (r *Registry) Message(ctx context.Context, c *Connection, payload []byte) {
	if r.metrics != nil {
		r.metrics.MessagesReceived.Inc()
	}
	r.logger.InfoContext(ctx, "WebSocket message received", "conn_id", c.id, "size", len(payload))
	r.logger.DebugContext(ctx, "WebSocket message payload", "conn_id", c.id, "payload", string(payload))
}

// Close removes c and closes its transport. Only the first call has any
// effect; closing an unregistered connection is a no-op.
func (r *Registry) Close(ctx context.Context, c *Connection) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	_, present := r.conns[c.id]
	if present {
		delete(r.conns, c.id)
	}
	size := len(r.conns)
	r.mu.Unlock()

	if err := c.transport.Close(); err != nil {
		r.logger.DebugContext(ctx, "WebSocket transport close", "conn_id", c.id, "error", err)
	}
	if !present {
		return
	}

	if r.metrics != nil {
		r.metrics.ActiveConnections.Dec()
	}
	r.logger.InfoContext(ctx, "WebSocket connection closed", "conn_id", c.id, "connections", size)
}

// Broadcast sends message to every connection registered when it is called.
// Sends run concurrently and independently; failures are logged and counted
// but neither retried nor allowed to unregister the connection.
func (r *Registry) Broadcast(ctx context.Context, message string) Report {
	start := time.Now()
	targets := r.snapshot()
	payload := []byte(message)

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.fanout)
	for _, c := range targets {
		g.Go(func() error {
			if err := c.transport.WriteText(payload); err != nil {
				failed.Add(1)
				r.logger.WarnContext(ctx, "Failed to deliver broadcast", "conn_id", c.id, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Targets:   len(targets),
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}

	if r.metrics != nil {
		r.metrics.Broadcasts.Inc()
		r.metrics.Deliveries.Add(float64(report.Delivered))
		r.metrics.SendFailures.Add(float64(report.Failed))
		r.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}
	r.logger.InfoContext(ctx, "Broadcast complete",
		"targets", report.Targets,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds())

	return report
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Contains reports whether a connection with the given id is registered.
func (r *Registry) Contains(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Shutdown refuses further Opens and closes every registered connection. It
// stops early when ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()

	for _, c := range r.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Close(ctx, c)
	}
	return nil
}

func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}
