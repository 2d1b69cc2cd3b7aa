package service

import (
	"context"

	"cozytiny/internal/middleware"
	"cozytiny/internal/notifications"
)

// EventPublisher delivers content change events to live clients.
type EventPublisher interface {
	PublishContentEvent(ctx context.Context, ev notifications.ContentEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishContentEvent(context.Context, notifications.ContentEvent) error {
	return nil
}

// publish sends ev after a successful write. A failed publish never fails
// the write that caused it.
func publish(ctx context.Context, p EventPublisher, ev notifications.ContentEvent) {
	if err := p.PublishContentEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish content event",
			"event_type", ev.Type, "post_id", ev.PostID, "error", err)
	}
}
