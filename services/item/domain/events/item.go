package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/itemflow/services/item/domain/models"
)

const (
	// TopicItemEvents is the queue topic carrying all item state-change events.
	TopicItemEvents = "item.events"

	// TopicItemEventsDeadLetter names the dead-letter destination used in
	// dead-letter accounting for this topic.
	TopicItemEventsDeadLetter = "item.events.dead_letter"
)

// EventKind is the closed set of item state changes. Adding a kind requires
// touching every switch over it; the consumer rejects anything else as a
// permanent decode failure.
type EventKind string

const (
	KindCreated EventKind = "created"
	KindUpdated EventKind = "updated"
	KindDeleted EventKind = "deleted"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case KindCreated, KindUpdated, KindDeleted:
		return true
	}
	return false
}

// ItemSnapshot is the item state carried in created/updated events.
type ItemSnapshot struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemEvent is an immutable fact describing a committed item state change.
// EventID is fresh per publish attempt, so one underlying change can
// legitimately appear under several event ids; consumers deduplicate by
// item id and snapshot freshness, not by event id.
type ItemEvent struct {
	EventID     uuid.UUID     `json:"event_id"`
	Version     int           `json:"version"`
	Kind        EventKind     `json:"kind"`
	ItemID      uuid.UUID     `json:"item_id"`
	Item        *ItemSnapshot `json:"item,omitempty"` // full snapshot for created/updated, nil for deleted
	PublishedAt time.Time     `json:"published_at"`
}

// Validate checks structural invariants after decoding.
func (e *ItemEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", string(e.Kind))
	}
	if e.ItemID == uuid.Nil {
		return fmt.Errorf("event has no item id")
	}
	if e.Kind != KindDeleted && e.Item == nil {
		return fmt.Errorf("%s event missing item snapshot", e.Kind)
	}
	return nil
}

// NewCreated builds a created event carrying a full snapshot of item.
func NewCreated(item *models.Item) ItemEvent {
	return newSnapshotEvent(KindCreated, item)
}

// NewUpdated builds an updated event carrying a full snapshot of item.
func NewUpdated(item *models.Item) ItemEvent {
	return newSnapshotEvent(KindUpdated, item)
}

// NewDeleted builds a deleted event referencing the item by id only.
func NewDeleted(itemID uuid.UUID) ItemEvent {
	return ItemEvent{
		EventID:     uuid.New(),
		Version:     1,
		Kind:        KindDeleted,
		ItemID:      itemID,
		PublishedAt: time.Now().UTC(),
	}
}

func newSnapshotEvent(kind EventKind, item *models.Item) ItemEvent {
	return ItemEvent{
		EventID: uuid.New(),
		Version: 1,
		Kind:    kind,
		ItemID:  item.ID,
		Item: &ItemSnapshot{
			ID:          item.ID,
			Name:        item.Name.String(),
			Description: item.Description.String(),
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		},
		PublishedAt: time.Now().UTC(),
	}
}
