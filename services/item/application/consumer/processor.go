// Package consumer applies queued item events to the downstream projection.
//
// The processor assumes nothing about ordering: created, updated and
// deleted events for the same item may arrive in any order, in the same or
// different batches, possibly more than once. All side effects are
// idempotent and commutative per item, so any interleaving converges to
// the freshest snapshot, or to absence once a delete has been observed.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	pkgcache "github.com/ghuser/itemflow/pkg/cache"
	"github.com/ghuser/itemflow/pkg/events"
	"github.com/ghuser/itemflow/pkg/logger"
	domainevents "github.com/ghuser/itemflow/services/item/domain/events"
)

// Outcome classifies the processing result of a single message.
type Outcome int

const (
	// Success: the side effect is applied (or was already applied).
	Success Outcome = iota
	// Retryable: a transient dependency failure; the queue should redeliver.
	Retryable
	// PermanentFailure: the message can never succeed (malformed payload,
	// unknown kind); it belongs on the dead-letter path immediately.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result pairs an Outcome with the error that produced it (nil on Success).
type Result struct {
	Outcome Outcome
	Err     error
}

// Projection is the downstream store the consumer maintains.
type Projection interface {
	Upsert(ctx context.Context, item *pkgcache.ProjectedItem) (bool, error)
	Remove(ctx context.Context, itemID uuid.UUID) error
}

// Processor dispatches decoded item events by kind onto the projection.
type Processor struct {
	projection Projection
	log        logger.Logger
}

// NewProcessor returns a Processor writing to the given projection.
func NewProcessor(projection Projection, log logger.Logger) *Processor {
	return &Processor{projection: projection, log: log}
}

// Process handles a batch of raw messages and returns one Result per
// message, index-aligned with msgs. Messages are decoded and processed
// independently: one bad message never aborts the rest of the batch.
func (p *Processor) Process(ctx context.Context, msgs []*message.Message) []Result {
	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		results[i] = p.processOne(ctx, msg)
	}
	return results
}

func (p *Processor) processOne(ctx context.Context, msg *message.Message) Result {
	var evt domainevents.ItemEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		p.log.ErrorContext(ctx, "undecodable event payload",
			"message_id", msg.UUID, "error", err)
		return Result{Outcome: PermanentFailure, Err: fmt.Errorf("decode event: %w", err)}
	}
	if err := evt.Validate(); err != nil {
		p.log.ErrorContext(ctx, "invalid event",
			"message_id", msg.UUID, "event_id", evt.EventID, "error", err)
		return Result{Outcome: PermanentFailure, Err: fmt.Errorf("invalid event: %w", err)}
	}

	switch evt.Kind {
	case domainevents.KindCreated, domainevents.KindUpdated:
		applied, err := p.projection.Upsert(ctx, &pkgcache.ProjectedItem{
			ID:          evt.Item.ID,
			Name:        evt.Item.Name,
			Description: evt.Item.Description,
			CreatedAt:   evt.Item.CreatedAt,
			UpdatedAt:   evt.Item.UpdatedAt,
		})
		if err != nil {
			return Result{Outcome: Retryable, Err: fmt.Errorf("apply %s event for item %s: %w", evt.Kind, evt.ItemID, err)}
		}
		if !applied {
			// Already applied (duplicate delivery), superseded by a fresher
			// snapshot, or the item was deleted meanwhile.
			p.log.DebugContext(ctx, "event application was a no-op",
				"event_id", evt.EventID, "kind", evt.Kind, "item_id", evt.ItemID)
		}
		return Result{Outcome: Success}

	case domainevents.KindDeleted:
		if err := p.projection.Remove(ctx, evt.ItemID); err != nil {
			return Result{Outcome: Retryable, Err: fmt.Errorf("apply deleted event for item %s: %w", evt.ItemID, err)}
		}
		return Result{Outcome: Success}
	}

	// Unreachable: Validate rejects unknown kinds.
	return Result{Outcome: PermanentFailure, Err: fmt.Errorf("unhandled event kind %q", evt.Kind)}
}

// Handler adapts the Processor to the bus's BatchHandler contract:
// Success → ack, Retryable → redeliver, PermanentFailure → dead-letter.
func (p *Processor) Handler() events.BatchHandler {
	return func(ctx context.Context, msgs []*message.Message) []error {
		results := p.Process(ctx, msgs)
		errs := make([]error, len(msgs))
		for i, r := range results {
			switch r.Outcome {
			case Success:
				errs[i] = nil
			case PermanentFailure:
				errs[i] = events.Permanent(r.Err)
			default:
				errs[i] = r.Err
			}
		}
		return errs
	}
}
