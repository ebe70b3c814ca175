package shared

import "errors"

// Domain-specific errors
var (
	// Not-found errors
	ErrItemNotFound = errors.New("item not found")
	ErrUserNotFound = errors.New("user not found")

	// Item creation errors
	ErrSellerRequired        = errors.New("sellerId is required")
	ErrTitleRequired         = errors.New("title is required")
	ErrStartingPriceRequired = errors.New("startingPrice is required")
	ErrInvalidAuctionType    = errors.New("auction type must be FORWARD or DUTCH")
	ErrInvalidStatus         = errors.New("status must be ACTIVE or ENDED")

	// Lifecycle errors
	ErrNotDutchAuction   = errors.New("not a Dutch auction")
	ErrNotForwardAuction = errors.New("bidding is only allowed on FORWARD auctions")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrAuctionNotEnded   = errors.New("auction has not ended yet")
	ErrBuyerRequired     = errors.New("buyerId is required")

	// Bid errors
	ErrBidderRequired        = errors.New("bidderId is required")
	ErrBidAmountRequired     = errors.New("amount is required")
	ErrBidBelowStartingPrice = errors.New("bid must be >= starting price")
	ErrBidNotAboveCurrent    = errors.New("bid must be higher than current price")
	ErrBidConflict           = errors.New("item price changed while placing bid")

	// Payment errors
	ErrNoWinner         = errors.New("no winner for this auction")
	ErrPayerRequired    = errors.New("payerId is required")
	ErrNotWinningBidder = errors.New("only the winning bidder can pay for this item")

	// Database errors
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrDatabaseQuery       = errors.New("database query failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrItemIDRequired      = errors.New("item_id is required")
	ErrInvalidItemIDFormat = errors.New("invalid item_id format")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")

	// Broadcasting errors
	ErrBroadcastFailed            = errors.New("broadcast failed")
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
)
