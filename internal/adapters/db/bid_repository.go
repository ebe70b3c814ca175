package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"aurora-marketplace-service/internal/domain/bid"
	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

// BidRepository implements the bid repository interface. The bids table is
// append-only: rows are inserted on successful placement and never touched
// again.
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

// GetByItemID retrieves all bids for an item ordered by amount descending
func (r *BidRepository) GetByItemID(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, amount, bid_time
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC, bid_time ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		var b bid.Bid
		err := rows.Scan(
			&b.ID,
			&b.ItemID,
			&b.BidderID,
			&b.Amount,
			&b.BidTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		b.BidTime = b.BidTime.In(shared.AuctionZone)
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

/*
PlaceBid records a bid and applies it to the item in one transaction using
optimistic concurrency control:
 1. Re-read the item's live price and status inside the transaction
 2. Fail if the item is no longer active or the price moved past the
    expected pre-bid price
 3. Insert the bid row
 4. Update the item's current price and winner, guarded by the expected
    price in the WHERE clause so a concurrent writer makes the update a
    no-op and the whole transaction rolls back
*/
func (r *BidRepository) PlaceBid(ctx context.Context, newBid *bid.Bid, expectedCurrentPrice float64) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		itemQuery := `
			SELECT current_price, status
			FROM items
			WHERE id = $1
		`

		var dbCurrentPrice float64
		var status string
		err := tx.QueryRowContext(ctx, itemQuery, newBid.ItemID).Scan(&dbCurrentPrice, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return shared.ErrItemNotFound
			}
			return fmt.Errorf("failed to get item for bid placement: %w", err)
		}

		if !strings.EqualFold(status, string(item.StatusActive)) {
			return shared.ErrAuctionNotActive
		}

		if dbCurrentPrice != expectedCurrentPrice {
			return shared.ErrBidConflict
		}

		if newBid.Amount <= dbCurrentPrice {
			return shared.ErrBidNotAboveCurrent
		}

		bidQuery := `
			INSERT INTO bids (id, item_id, bidder_id, amount, bid_time)
			VALUES ($1, $2, $3, $4, $5)
		`

		_, err = tx.ExecContext(ctx, bidQuery,
			newBid.ID,
			newBid.ItemID,
			newBid.BidderID,
			newBid.Amount,
			newBid.BidTime,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		// The expected price in the WHERE clause ensures no other
		// transaction modified the item between the read and this write
		updateQuery := `
			UPDATE items
			SET current_price = $2, current_winner_id = $3
			WHERE id = $1 AND current_price = $4
		`

		result, err := tx.ExecContext(ctx, updateQuery,
			newBid.ItemID,
			newBid.Amount,
			newBid.BidderID,
			expectedCurrentPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to update item price: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		// Another transaction won the race; roll everything back
		if rowsAffected == 0 {
			return shared.ErrBidConflict
		}

		return nil
	})
}
