package inbound

import (
	"context"
	"time"

	"aurora-marketplace-service/internal/domain/bid"
	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ItemService defines the interface for auction lifecycle operations
type ItemService interface {
	// CreateItem creates a new auction listing
	CreateItem(ctx context.Context, req CreateItemRequest) (*item.Item, error)

	// GetItem retrieves an item by ID
	GetItem(ctx context.Context, itemID uuid.UUID) (*item.Item, error)

	// ListItems retrieves all items
	ListItems(ctx context.Context) ([]*item.Item, error)

	// ListActiveItems retrieves items still accepting bids or offers
	ListActiveItems(ctx context.Context) ([]*item.Item, error)

	// ListEndedItems retrieves concluded items
	ListEndedItems(ctx context.Context) ([]*item.Item, error)

	// SearchItems retrieves items matching the query on title or description
	SearchItems(ctx context.Context, query string) ([]*item.Item, error)

	// EndAuction force-ends an auction; ending an ended auction is a no-op
	EndAuction(ctx context.Context, itemID uuid.UUID) (*item.Item, error)

	// CurrentDutchPrice returns the decayed price of a Dutch auction now
	CurrentDutchPrice(ctx context.Context, itemID uuid.UUID) (float64, error)

	// AcceptDutch accepts the current Dutch price, concluding the auction
	AcceptDutch(ctx context.Context, itemID, buyerID uuid.UUID) (*item.Item, error)

	// PayForItem records payment by the winning bidder and returns the receipt
	PayForItem(ctx context.Context, itemID uuid.UUID, req PaymentRequest) (*shared.Receipt, error)

	// GetReceipt assembles the receipt for a concluded auction
	GetReceipt(ctx context.Context, itemID uuid.UUID) (*shared.Receipt, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid places a new bid on a forward auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// GetBidsForItem retrieves bids for an item, highest amount first
	GetBidsForItem(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error)
}

// request to create an item. Pointer fields distinguish absent from zero;
// only sellerId, title and startingPrice are required.
type CreateItemRequest struct {
	SellerID      uuid.UUID  `json:"seller_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	StartingPrice *float64   `json:"starting_price"`
	MinimumPrice  *float64   `json:"minimum_price,omitempty"`
	AuctionType   string     `json:"auction_type,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Category      string     `json:"category,omitempty"`
	Keywords      string     `json:"keywords,omitempty"`
	ConditionCode string     `json:"condition_code,omitempty"`
	ShipCostStd   *float64   `json:"ship_cost_std,omitempty"`
	ShipCostExp   *float64   `json:"ship_cost_exp,omitempty"`
	ShipDays      *int       `json:"ship_days,omitempty"`
	Quantity      *int       `json:"quantity,omitempty"`
	CoverImageURL string     `json:"cover_image_url,omitempty"`
}

// request to pay for a won item
type PaymentRequest struct {
	PayerID uuid.UUID `json:"payer_id"`
}

// request to place a bid
type PlaceBidRequest struct {
	ItemID   uuid.UUID `json:"item_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	ClientID string    `json:"client_id"`
	Amount   float64   `json:"amount"`
}
