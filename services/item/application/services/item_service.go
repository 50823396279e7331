package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgcache "github.com/ghuser/itemflow/pkg/cache"
	"github.com/ghuser/itemflow/pkg/logger"
	itemdomain "github.com/ghuser/itemflow/services/item/domain"
	domainevents "github.com/ghuser/itemflow/services/item/domain/events"
	"github.com/ghuser/itemflow/services/item/domain/models"
	"github.com/ghuser/itemflow/services/item/domain/repositories"
	domainsvcs "github.com/ghuser/itemflow/services/item/domain/services"
)

// EventPublisher is the producer-side contract the service publishes
// committed mutations through.
type EventPublisher interface {
	Publish(ctx context.Context, evt domainevents.ItemEvent) error
}

// ProjectionReader serves reads from the consumer-maintained read model.
type ProjectionReader interface {
	Get(ctx context.Context, itemID uuid.UUID) (*pkgcache.ProjectedItem, error)
}

// ItemService orchestrates validation, persistence and event publishing for
// Items. Event publishing is best-effort after the store commit: a publish
// failure is logged as degraded delivery and never rolls back or fails the
// mutation, since the committed write is the primary contract.
type ItemService struct {
	repo       repositories.ItemRepository
	publisher  EventPublisher
	projection ProjectionReader
	log        logger.Logger
}

// NewItemService wires the service with its repository, publisher and
// optional projection reader (nil disables read-through).
func NewItemService(repo repositories.ItemRepository, pub EventPublisher, projection ProjectionReader, log logger.Logger) *ItemService {
	return &ItemService{repo: repo, publisher: pub, projection: projection, log: log}
}

// Create validates and persists a new Item, then publishes a created event.
//
// Creation is not idempotent under client retry: ids are server-assigned,
// so a retried request after an ambiguous failure produces a second Item.
func (s *ItemService) Create(ctx context.Context, name, description string) (*models.Item, error) {
	itemName, err := models.NewItemName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItemName, err)
	}
	if err := domainsvcs.ValidateName(itemName); err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItemName, err)
	}

	itemDesc, err := models.NewItemDescription(description)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItemDescription, err)
	}
	if err := domainsvcs.ValidateDescription(itemDesc); err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItemDescription, err)
	}

	item := models.NewItem(itemName, itemDesc)
	if err := domainsvcs.ValidateItemForCreation(item); err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItemName, err)
	}

	if err := s.repo.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}

	s.publish(ctx, domainevents.NewCreated(item))
	return item, nil
}

// GetByID retrieves an Item, trying the projection first and falling back
// to the repository on a miss or projection error.
func (s *ItemService) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if s.projection != nil {
		if proj, err := s.projection.Get(ctx, id); err == nil {
			return &models.Item{
				ID:          proj.ID,
				Name:        models.ItemName(proj.Name),
				Description: models.ItemDescription(proj.Description),
				CreatedAt:   proj.CreatedAt,
				UpdatedAt:   proj.UpdatedAt,
			}, nil
		} else if !pkgcache.IsMiss(err) {
			s.log.WarnContext(ctx, "projection read failed, falling back to store",
				"item_id", id, "error", err)
		}
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns a page of items plus the total count.
func (s *ItemService) List(ctx context.Context, opts repositories.QueryOpts) ([]*models.Item, int, error) {
	items, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	return items, total, nil
}

// Delete removes an item by id and publishes a deleted event. Returns
// ErrItemNotFound when the id does not exist (including repeat deletes).
func (s *ItemService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.publish(ctx, domainevents.NewDeleted(id))
	return nil
}

// publish hands evt to the queue. Failure is degraded delivery, not a
// request failure: the mutation is already committed, and consumers are
// specified to tolerate a missing event but never a phantom one.
func (s *ItemService) publish(ctx context.Context, evt domainevents.ItemEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.ErrorContext(ctx, "event publish failed, mutation remains committed",
			"event_id", evt.EventID,
			"kind", evt.Kind,
			"item_id", evt.ItemID,
			"error", err,
		)
	}
}
