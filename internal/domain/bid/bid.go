package bid

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an immutable record of an accepted bid on an item. A bid is
// created once on successful placement and never mutated or deleted; a
// stored bid is by definition an accepted bid. IDs are UUIDv7, so they
// sort by creation order.
type Bid struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"item_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   float64   `json:"amount"`
	BidTime  time.Time `json:"bid_time"`
}
