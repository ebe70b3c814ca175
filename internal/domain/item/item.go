package item

import (
	"strings"
	"time"

	"aurora-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionType represents the pricing mechanic of an item's auction
type AuctionType string

const (
	TypeForward AuctionType = "FORWARD"
	TypeDutch   AuctionType = "DUTCH"
)

// ParseAuctionType parses an auction type case-insensitively.
// An empty string defaults to FORWARD.
func ParseAuctionType(s string) (AuctionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(TypeForward):
		return TypeForward, nil
	case string(TypeDutch):
		return TypeDutch, nil
	default:
		return "", shared.ErrInvalidAuctionType
	}
}

// Status represents the lifecycle status of an item's auction
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
)

// ParseStatus parses a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StatusActive):
		return StatusActive, nil
	case string(StatusEnded):
		return StatusEnded, nil
	default:
		return "", shared.ErrInvalidStatus
	}
}

// PaymentStatus represents the settlement state of a concluded auction
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// Item represents an auction listing. The listing and its auction are one
// aggregate: pricing, lifecycle and payment state all live here.
type Item struct {
	ID          uuid.UUID `json:"id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`

	ConditionCode string  `json:"condition_code"`
	CoverImageURL string  `json:"cover_image_url"`
	ShipCostStd   float64 `json:"ship_cost_std"`
	ShipCostExp   float64 `json:"ship_cost_exp"`
	ShipDays      int     `json:"ship_days"`

	StartingPrice float64 `json:"starting_price"`
	CurrentPrice  float64 `json:"current_price"`
	// MinimumPrice is the Dutch floor price. Zero means no floor.
	MinimumPrice float64 `json:"minimum_price"`

	AuctionType     AuctionType `json:"auction_type"`
	Status          Status      `json:"status"`
	CurrentWinnerID *uuid.UUID  `json:"current_winner_id,omitempty"`

	Category string `json:"category"`
	Keywords string `json:"keywords"`
	Quantity int    `json:"quantity"`

	CreatedAt time.Time  `json:"created_at"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentTime   *time.Time    `json:"payment_time,omitempty"`
}

// IsActive returns true if the auction is currently active
func (i *Item) IsActive() bool {
	return i.Status == StatusActive
}

// IsEnded returns true if the auction has ended
func (i *Item) IsEnded() bool {
	return i.Status == StatusEnded
}

// IsPaid returns true if the item has been paid for
func (i *Item) IsPaid() bool {
	return i.PaymentStatus == PaymentPaid
}

// ExpiredAt reports whether the auction window has closed at the given
// instant. Items without an end time never expire by clock.
func (i *Item) ExpiredAt(now time.Time) bool {
	if i.EndTime == nil {
		return false
	}
	return !i.EndTime.After(now)
}

// End marks the auction as ended. The transition is one-way.
func (i *Item) End() {
	i.Status = StatusEnded
}

// MarkPaid records payment at the given instant. The transition is one-way.
func (i *Item) MarkPaid(now time.Time) {
	i.PaymentStatus = PaymentPaid
	i.PaymentTime = &now
}

// DutchPriceAt computes the Dutch auction price at the given instant.
// The price decays linearly from StartingPrice to MinimumPrice over the
// window [CreatedAt, EndTime]. Pure: no side effects, safe to call
// repeatedly.
//
// When the window cannot be established (zero CreatedAt or no EndTime) the
// stored current price is returned unchanged rather than failing.
func (i *Item) DutchPriceAt(now time.Time) (float64, error) {
	if i.AuctionType != TypeDutch {
		return 0, shared.ErrNotDutchAuction
	}

	if i.CreatedAt.IsZero() || i.EndTime == nil {
		return i.CurrentPrice, nil
	}

	total := i.EndTime.Sub(i.CreatedAt)
	elapsed := now.Sub(i.CreatedAt)

	if elapsed < 0 {
		return i.StartingPrice, nil
	}
	if elapsed >= total {
		return i.MinimumPrice, nil
	}

	fraction := float64(elapsed) / float64(total)
	price := i.StartingPrice - (i.StartingPrice-i.MinimumPrice)*fraction
	if price < i.MinimumPrice {
		price = i.MinimumPrice
	}
	return price, nil
}
