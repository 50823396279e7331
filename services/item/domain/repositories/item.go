package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/ghuser/itemflow/services/item/domain/models"
)

// QueryOpts contains pagination parameters for list queries.
type QueryOpts struct {
	Limit  int // Maximum number of records to return
	Offset int // Number of records to skip
}

// ItemRepository is the persistence interface for the Item aggregate.
// The domain layer owns this interface; infrastructure implements it.
//
// Error contract: GetByID and Delete return ErrItemNotFound for absent ids;
// Put returns ErrItemConflict on store-detected conflicts; all methods wrap
// transient infrastructure failures with ErrStoreUnavailable so callers can
// distinguish retryable from terminal outcomes.
type ItemRepository interface {
	// Put persists the item with create-or-replace semantics keyed by ID,
	// so retrying the same write is safe.
	Put(ctx context.Context, item *models.Item) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)

	// List retrieves a page of items plus the total count ignoring pagination.
	// Ordering is by creation time, newest first.
	List(ctx context.Context, opts QueryOpts) ([]*models.Item, int, error)

	// Delete removes an item by ID. Returns ErrItemNotFound when no row
	// was deleted; the id is never reassigned afterwards.
	Delete(ctx context.Context, id uuid.UUID) error
}
