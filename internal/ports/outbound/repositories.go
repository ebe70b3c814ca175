package outbound

import (
	"context"

	"aurora-marketplace-service/internal/domain/bid"
	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ItemRepository defines the interface for item data operations
type ItemRepository interface {
	// Create creates a new item
	Create(ctx context.Context, item *item.Item) error

	// GetByID retrieves an item by ID
	GetByID(ctx context.Context, id uuid.UUID) (*item.Item, error)

	// List retrieves all items
	List(ctx context.Context) ([]*item.Item, error)

	// ListByStatus retrieves items with the given status
	ListByStatus(ctx context.Context, status item.Status) ([]*item.Item, error)

	// Search retrieves items whose title or description contains the query,
	// case-insensitively
	Search(ctx context.Context, query string) ([]*item.Item, error)

	// Update updates an item
	Update(ctx context.Context, item *item.Item) error
}

// BidRepository defines the interface for bid data operations. Bids are
// append-only; there is no update or delete.
type BidRepository interface {
	// GetByItemID retrieves all bids for an item ordered by amount descending
	GetByItemID(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error)

	// PlaceBid records the bid and applies its amount and bidder to the item
	// as one transaction, guarded by the expected pre-bid current price. If
	// another bid won the race the guard fails and shared.ErrBidConflict is
	// returned with neither write applied.
	PlaceBid(ctx context.Context, newBid *bid.Bid, expectedCurrentPrice float64) error
}

// UserRepository defines the interface for user lookups
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error)

	// Create creates a new user
	Create(ctx context.Context, user *shared.User) error
}
