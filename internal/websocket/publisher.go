package websocket

import (
	"context"

	"github.com/pscheid92/wspush/internal/domain"
)

// LocalPublisher broadcasts straight into this instance's registry.
type LocalPublisher struct {
	registry *Registry
}

func NewLocalPublisher(registry *Registry) *LocalPublisher {
	return &LocalPublisher{registry: registry}
}

func (p *LocalPublisher) Publish(ctx context.Context, message string) (domain.BroadcastResult, error) {
	report := p.registry.Broadcast(ctx, message)
	return domain.BroadcastResult{
		Targets:   report.Targets,
		Delivered: report.Delivered,
		Failed:    report.Failed,
	}, nil
}
