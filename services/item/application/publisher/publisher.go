// Package publisher converts committed item mutations into queue messages.
//
// Publish must only be called after the triggering store write has
// committed. The reverse ordering would create phantom events for writes
// that later fail; a committed write whose publish fails is acceptable and
// surfaces as degraded delivery at the call site.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	domainevents "github.com/ghuser/itemflow/services/item/domain/events"
)

// Bus is the producer-side queue boundary.
type Bus interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// ItemEventPublisher serializes ItemEvents and hands them to the queue.
type ItemEventPublisher struct {
	bus Bus
}

// New returns a publisher writing to the given bus.
func New(bus Bus) *ItemEventPublisher {
	return &ItemEventPublisher{bus: bus}
}

// Publish sends evt to the item events topic. Each call carries the event's
// own fresh event_id, so retrying a publish produces a distinct event record
// for the same underlying change; consumers deduplicate on item state, not
// event identity.
func (p *ItemEventPublisher) Publish(ctx context.Context, evt domainevents.ItemEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal item event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_id", evt.EventID.String())
	msg.Metadata.Set("event_kind", string(evt.Kind))
	msg.Metadata.Set("event_version", strconv.Itoa(evt.Version))
	msg.Metadata.Set("item_id", evt.ItemID.String())

	if err := p.bus.Publish(ctx, domainevents.TopicItemEvents, msg); err != nil {
		return fmt.Errorf("publish %s event for item %s: %w", evt.Kind, evt.ItemID, err)
	}
	return nil
}
