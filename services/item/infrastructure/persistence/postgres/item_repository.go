package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ghuser/itemflow/pkg/database"
	itemdomain "github.com/ghuser/itemflow/services/item/domain"
	"github.com/ghuser/itemflow/services/item/domain/models"
	"github.com/ghuser/itemflow/services/item/domain/repositories"
)

// ItemRepository implements repositories.ItemRepository against PostgreSQL.
type ItemRepository struct {
	db *database.Database
}

// NewItemRepository returns an ItemRepository backed by the given pool.
func NewItemRepository(db *database.Database) *ItemRepository {
	return &ItemRepository{db: db}
}

// Put persists the item with create-or-replace semantics keyed by id.
// Re-running the same write is a no-op beyond refreshing updated_at, so the
// operation is safe to retry. created_at of an existing row is preserved.
func (r *ItemRepository) Put(ctx context.Context, item *models.Item) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO items (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    updated_at = EXCLUDED.updated_at
	`, item.ID, item.Name.String(), item.Description.String(), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return classify("put item", err)
	}
	return nil
}

// GetByID retrieves an item by id. Returns ErrItemNotFound when absent.
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	row := r.db.Pool().QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM items WHERE id = $1
	`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itemdomain.ErrItemNotFound
		}
		return nil, classify("query item", err)
	}
	return item, nil
}

// List retrieves a page of items newest-first plus the total count.
func (r *ItemRepository) List(ctx context.Context, opts repositories.QueryOpts) ([]*models.Item, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM items
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, opts.Offset)
	if err != nil {
		return nil, 0, classify("query items", err)
	}
	defer rows.Close()

	items := []*models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, classify("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate items", err)
	}

	var total int
	if err := r.db.Pool().QueryRow(ctx, `SELECT count(*) FROM items`).Scan(&total); err != nil {
		return nil, 0, classify("count items", err)
	}

	return items, total, nil
}

// Delete removes an item by id. Returns ErrItemNotFound when no row was
// deleted; deleting the same id twice surfaces not-found, not an error state.
func (r *ItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return classify("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return itemdomain.ErrItemNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item        models.Item
		name        string
		description string
	)
	if err := row.Scan(&item.ID, &name, &description, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Name = models.ItemName(name)
	item.Description = models.ItemDescription(description)
	return &item, nil
}

// classify maps low-level pg errors onto the domain error taxonomy:
// unique violations become ErrItemConflict, connection-level failures
// become ErrStoreUnavailable, everything else is wrapped as-is.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%s: %w", op, itemdomain.ErrItemConflict)
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53" || pgErr.Code[:2] == "57"):
			return fmt.Errorf("%s: %w: %s", op, itemdomain.ErrStoreUnavailable, pgErr.Message)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, itemdomain.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
