package db

import (
	"context"
	"database/sql"
	"fmt"

	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

const itemColumns = `id, seller_id, title, description, condition_code, cover_image_url,
		ship_cost_std, ship_cost_exp, ship_days, starting_price, current_price, minimum_price,
		auction_type, status, current_winner_id, category, keywords, quantity,
		created_at, end_time, payment_status, payment_time`

// ItemRepository implements the item repository interface
type ItemRepository struct {
	conn *Connection
}

// NewItemRepository creates a new item repository
func NewItemRepository(conn *Connection) *ItemRepository {
	return &ItemRepository{conn: conn}
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, it *item.Item) error {
	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		it.ID,
		it.SellerID,
		it.Title,
		it.Description,
		it.ConditionCode,
		it.CoverImageURL,
		it.ShipCostStd,
		it.ShipCostExp,
		it.ShipDays,
		it.StartingPrice,
		it.CurrentPrice,
		it.MinimumPrice,
		it.AuctionType,
		it.Status,
		nullUUID(it.CurrentWinnerID),
		it.Category,
		it.Keywords,
		it.Quantity,
		it.CreatedAt,
		it.EndTime,
		it.PaymentStatus,
		it.PaymentTime,
	)

	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// GetByID retrieves an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	it, err := scanItem(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return it, nil
}

// List retrieves all items
func (r *ItemRepository) List(ctx context.Context) ([]*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at DESC`
	return r.queryItems(ctx, query)
}

// ListByStatus retrieves items with the given status
func (r *ItemRepository) ListByStatus(ctx context.Context, status item.Status) ([]*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE status = $1 ORDER BY created_at DESC`
	return r.queryItems(ctx, query, status)
}

// Search retrieves items whose title or description contains the query,
// case-insensitively
func (r *ItemRepository) Search(ctx context.Context, q string) ([]*item.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
	`
	return r.queryItems(ctx, query, q)
}

// Update updates an item
func (r *ItemRepository) Update(ctx context.Context, it *item.Item) error {
	query := `
		UPDATE items
		SET title = $2, description = $3, condition_code = $4, cover_image_url = $5,
			ship_cost_std = $6, ship_cost_exp = $7, ship_days = $8,
			starting_price = $9, current_price = $10, minimum_price = $11,
			auction_type = $12, status = $13, current_winner_id = $14,
			category = $15, keywords = $16, quantity = $17,
			end_time = $18, payment_status = $19, payment_time = $20
		WHERE id = $1
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		it.ID,
		it.Title,
		it.Description,
		it.ConditionCode,
		it.CoverImageURL,
		it.ShipCostStd,
		it.ShipCostExp,
		it.ShipDays,
		it.StartingPrice,
		it.CurrentPrice,
		it.MinimumPrice,
		it.AuctionType,
		it.Status,
		nullUUID(it.CurrentWinnerID),
		it.Category,
		it.Keywords,
		it.Quantity,
		it.EndTime,
		it.PaymentStatus,
		it.PaymentTime,
	)

	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrItemNotFound
	}

	return nil
}

func (r *ItemRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]*item.Item, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*item.Item, error) {
	var it item.Item
	var winnerID uuid.NullUUID
	var endTime, paymentTime sql.NullTime

	err := row.Scan(
		&it.ID,
		&it.SellerID,
		&it.Title,
		&it.Description,
		&it.ConditionCode,
		&it.CoverImageURL,
		&it.ShipCostStd,
		&it.ShipCostExp,
		&it.ShipDays,
		&it.StartingPrice,
		&it.CurrentPrice,
		&it.MinimumPrice,
		&it.AuctionType,
		&it.Status,
		&winnerID,
		&it.Category,
		&it.Keywords,
		&it.Quantity,
		&it.CreatedAt,
		&endTime,
		&it.PaymentStatus,
		&paymentTime,
	)
	if err != nil {
		return nil, err
	}

	if winnerID.Valid {
		id := winnerID.UUID
		it.CurrentWinnerID = &id
	}
	if endTime.Valid {
		t := endTime.Time.In(shared.AuctionZone)
		it.EndTime = &t
	}
	if paymentTime.Valid {
		t := paymentTime.Time.In(shared.AuctionZone)
		it.PaymentTime = &t
	}
	it.CreatedAt = it.CreatedAt.In(shared.AuctionZone)

	return &it, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
