// Package notifications fans content change events out to live CMS clients
// through Redis pub/sub and a websocket hub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"cozytiny/internal/observability"

	"github.com/redis/go-redis/v9"
)

// ContentEventsChannel is the Redis channel every instance publishes to and
// subscribes on.
const ContentEventsChannel = "content:events"

// Content event types.
const (
	EventPostCreated   = "post.created"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
	EventStepsReplaced = "steps.replaced"
)

// ContentEvent tells clients that a post or its steps changed so they can
// re-fetch. It carries identifiers only, never content.
type ContentEvent struct {
	Type     string    `json:"type"`
	PostID   uint      `json:"post_id"`
	Slug     string    `json:"slug,omitempty"`
	Category string    `json:"category,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier provides helpers to publish content events into Redis.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(payload []byte)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client keeps events inside this process.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// SetLocalFallback registers the delivery used when Redis is not configured.
func (n *Notifier) SetLocalFallback(fn func(payload []byte)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// PublishContentEvent sends ev to every instance.
func (n *Notifier) PublishContentEvent(ctx context.Context, ev ContentEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	observability.ContentEventsTotal.WithLabelValues(ev.Type).Inc()

	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(payload)
		}
		return nil
	}
	return n.rdb.Publish(ctx, ContentEventsChannel, payload).Err()
}

// StartContentSubscriber subscribes to ContentEventsChannel and calls
// onMessage for each payload until ctx is cancelled. The subscription is
// confirmed before it returns.
func (n *Notifier) StartContentSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ContentEventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", ContentEventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in content subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
