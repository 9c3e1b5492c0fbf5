package redis

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Change channels published by the write paths and consumed by caches
const (
	ChannelProfileChanges = "changes:profiles"
	ChannelAgentChanges   = "changes:agents"
)

// ChangeEvent is one row-level change notification. Consumers only use it
// to invalidate or update local caches; it carries no authoritative data.
type ChangeEvent struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     string `json:"id"`
}

// Subscription is a cancellable stream of change events. Its lifetime is
// scoped to the consumer that created it; Close must run on consumer exit
// so listeners do not leak.
type Subscription struct {
	events chan ChangeEvent
	cancel context.CancelFunc
}

// Events returns the event stream, closed after Close or context end
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Close tears down the subscription
func (s *Subscription) Close() {
	s.cancel()
}

// Notifier publishes and subscribes to change notifications over Redis
// pub/sub. Best-effort: a dropped notification only delays a cache refresh.
type Notifier struct {
	client *Client
	logger zerolog.Logger
}

// NewNotifier creates a new change notifier
func NewNotifier(client *Client, logger zerolog.Logger) *Notifier {
	return &Notifier{
		client: client,
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

// Publish broadcasts a change event; failures are logged, never surfaced
func (n *Notifier) Publish(ctx context.Context, channel string, ev ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to marshal change event")
		return
	}
	if err := n.client.rdb.Publish(ctx, channel, data).Err(); err != nil {
		n.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish change event")
	}
}

// ProfileChanges adapts the profile change channel to a stream of user ids,
// satisfying the identity registry's change feed. Events whose id is not a
// uuid are dropped. The stream closes when ctx is cancelled.
func (n *Notifier) ProfileChanges(ctx context.Context) <-chan uuid.UUID {
	sub := n.Subscribe(ctx, ChannelProfileChanges)
	out := make(chan uuid.UUID)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			userID, err := uuid.Parse(ev.ID)
			if err != nil {
				n.logger.Warn().Str("id", ev.ID).Msg("profile change event with malformed user id")
				continue
			}
			select {
			case out <- userID:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Subscribe opens a subscription on the channel. The returned stream must
// be drained; events that cannot be delivered are dropped.
func (n *Notifier) Subscribe(ctx context.Context, channel string) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan ChangeEvent, 16),
		cancel: cancel,
	}

	pubsub := n.client.rdb.Subscribe(ctx, channel)
	go func() {
		defer close(sub.events)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					n.logger.Warn().Err(err).Msg("failed to decode change event")
					continue
				}
				select {
				case sub.events <- ev:
				default:
					n.logger.Debug().Str("channel", channel).Msg("dropping change event for slow consumer")
				}
			}
		}
	}()

	return sub
}
