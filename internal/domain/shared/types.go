package shared

import (
	"time"

	"github.com/google/uuid"
)

// AuctionZone is the single fixed reference time zone for all auction
// timing. Stored timestamps and "now" are always compared in this zone.
var AuctionZone = mustLoadZone("America/Toronto")

func mustLoadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("failed to load auction time zone " + name + ": " + err.Error())
	}
	return loc
}

// NowInAuctionZone returns the current wall-clock time in the fixed
// auction zone. Services take this as their default clock.
func NowInAuctionZone() time.Time {
	return time.Now().In(AuctionZone)
}

// Receipt is a derived, non-persisted summary of a concluded auction,
// assembled on demand for buyer/seller display. Type and status fields are
// plain strings here: the receipt is a display projection, not domain state.
type Receipt struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Title         string     `json:"title"`
	AuctionType   string     `json:"auction_type"`
	Status        string     `json:"status"`
	FinalPrice    float64    `json:"final_price"`
	CreatedAt     time.Time  `json:"created_at"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Seller        *User      `json:"seller,omitempty"`
	Buyer         *User      `json:"buyer,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	PaymentTime   *time.Time `json:"payment_time,omitempty"`
}
