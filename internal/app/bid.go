package app

import (
	"context"
	"time"

	"aurora-marketplace-service/internal/domain/bid"
	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"
	"aurora-marketplace-service/internal/ports/inbound"
	"aurora-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bid acceptance engine: it validates bids
// against an item's live state and applies them atomically.
type BidService struct {
	bidRepo     outbound.BidRepository
	itemRepo    outbound.ItemRepository
	userRepo    outbound.UserRepository
	broadcaster outbound.Broadcaster
	now         func() time.Time
	logger      zerolog.Logger
}

type BidServiceParams struct {
	BidRepo     outbound.BidRepository
	ItemRepo    outbound.ItemRepository
	UserRepo    outbound.UserRepository
	Broadcaster outbound.Broadcaster
	// Now overrides the service clock; defaults to the fixed-zone wall clock.
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	now := params.Now
	if now == nil {
		now = shared.NowInAuctionZone
	}
	return &BidService{
		bidRepo:     params.BidRepo,
		itemRepo:    params.ItemRepo,
		userRepo:    params.UserRepo,
		broadcaster: params.Broadcaster,
		now:         now,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid validates and applies a bid on a forward auction. The bid insert
// and the item price/winner update run in one transaction guarded by the
// pre-bid current price, so two racing bids cannot both win: the loser's
// guard fails and the bid is rejected.
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	service.logger.Info().
		Str("item_id", req.ItemID.String()).
		Str("bidder_id", req.BidderID.String()).
		Float64("amount", req.Amount).
		Msg("Attempting to place bid")

	// Bids normally arrive from clients watching the item; an unsubscribed
	// client is suspicious but not a rejection reason.
	if service.broadcaster != nil && req.ClientID != "" {
		if !service.broadcaster.IsSubscribed(ctx, req.ItemID, req.ClientID) {
			service.logger.Warn().
				Str("client_id", req.ClientID).
				Str("bidder_id", req.BidderID.String()).
				Str("item_id", req.ItemID.String()).
				Msg("Client not subscribed to item")
		}
	}

	it, err := service.itemRepo.GetByID(ctx, req.ItemID)
	if err != nil {
		service.logger.Error().Err(err).Str("item_id", req.ItemID.String()).Msg("Item not found")
		return nil, err
	}

	if err := service.refreshStatus(ctx, it); err != nil {
		return nil, err
	}

	if it.AuctionType != item.TypeForward {
		service.logger.Warn().
			Str("item_id", req.ItemID.String()).
			Str("auction_type", string(it.AuctionType)).
			Msg("Bid placed on non-forward auction")
		return nil, shared.ErrNotForwardAuction
	}

	now := service.now()
	if it.ExpiredAt(now) {
		// refreshStatus already flipped and persisted the transition
		service.logger.Warn().
			Str("item_id", req.ItemID.String()).
			Time("end_time", *it.EndTime).
			Msg("Bid placed after auction end time")
		return nil, shared.ErrAuctionEnded
	}
	if !it.IsActive() {
		service.logger.Warn().Str("item_id", req.ItemID.String()).Msg("Bid placed on inactive auction")
		return nil, shared.ErrAuctionNotActive
	}

	if req.BidderID == uuid.Nil {
		return nil, shared.ErrBidderRequired
	}
	if req.Amount <= 0 {
		return nil, shared.ErrBidAmountRequired
	}

	bidder, err := service.userRepo.GetByID(ctx, req.BidderID)
	if err != nil {
		service.logger.Error().Err(err).Str("bidder_id", req.BidderID.String()).Msg("Bidder not found")
		return nil, shared.ErrUserNotFound
	}

	service.logger.Debug().
		Str("bidder_id", bidder.ID.String()).
		Str("username", bidder.Username).
		Msg("Bidder validated")

	if req.Amount < it.StartingPrice {
		service.logger.Warn().
			Str("item_id", req.ItemID.String()).
			Float64("starting_price", it.StartingPrice).
			Float64("amount", req.Amount).
			Msg("Bid below starting price")
		return nil, shared.ErrBidBelowStartingPrice
	}
	if req.Amount <= it.CurrentPrice {
		service.logger.Warn().
			Str("item_id", req.ItemID.String()).
			Float64("current_price", it.CurrentPrice).
			Float64("amount", req.Amount).
			Msg("Bid does not exceed current price")
		return nil, shared.ErrBidNotAboveCurrent
	}

	// v7 ids carry the creation timestamp, so bid ids sort by placement order
	newBid := &bid.Bid{
		ID:       uuid.Must(uuid.NewV7()),
		ItemID:   req.ItemID,
		BidderID: req.BidderID,
		Amount:   req.Amount,
		BidTime:  now,
	}

	if err := service.bidRepo.PlaceBid(ctx, newBid, it.CurrentPrice); err != nil {
		service.logger.Error().Err(err).
			Str("bid_id", newBid.ID.String()).
			Str("item_id", req.ItemID.String()).
			Msg("Failed to place bid")
		return nil, err
	}

	service.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("item_id", newBid.ItemID.String()).
		Str("bidder_id", newBid.BidderID.String()).
		Float64("amount", newBid.Amount).
		Msg("Bid placed successfully")

	service.publishBidPlaced(ctx, newBid)
	return newBid, nil
}

// GetBidsForItem retrieves all bids for an item, highest amount first
func (service *BidService) GetBidsForItem(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error) {
	return service.bidRepo.GetByItemID(ctx, itemID)
}

// refreshStatus mirrors the lifecycle guard: an ACTIVE item past its end
// time is flipped to ENDED before any bid validation runs.
func (service *BidService) refreshStatus(ctx context.Context, it *item.Item) error {
	if it == nil || !it.IsActive() {
		return nil
	}
	if !it.ExpiredAt(service.now()) {
		return nil
	}

	it.End()
	if err := service.itemRepo.Update(ctx, it); err != nil {
		service.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("Failed to persist expired item")
		return err
	}

	service.logger.Info().Str("item_id", it.ID.String()).Msg("Auction expired, status flipped to ENDED")
	service.publishEnded(ctx, it)
	return nil
}

// publishEnded announces a concluded auction. Every flip to ENDED publishes,
// no matter which operation discovered it.
func (service *BidService) publishEnded(ctx context.Context, it *item.Item) {
	if service.broadcaster == nil {
		return
	}

	data := map[string]interface{}{
		"final_price": it.CurrentPrice,
		"status":      it.Status,
	}
	if it.CurrentWinnerID != nil {
		data["winner_id"] = *it.CurrentWinnerID
	}

	event := outbound.Event{
		Type:      outbound.EventTypeItemEnded,
		ItemID:    it.ID,
		Data:      data,
		Timestamp: service.now().Unix(),
	}

	if err := service.broadcaster.Publish(ctx, it.ID, event); err != nil {
		// Broadcast failures never fail the operation
		service.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("Failed to broadcast item event")
	}
}

func (service *BidService) publishBidPlaced(ctx context.Context, newBid *bid.Bid) {
	if service.broadcaster == nil {
		return
	}

	event := outbound.Event{
		Type:   outbound.EventTypeBidPlaced,
		ItemID: newBid.ItemID,
		Data: map[string]interface{}{
			"bid_id":    newBid.ID,
			"bidder_id": newBid.BidderID,
			"amount":    newBid.Amount,
			"bid_time":  newBid.BidTime.Unix(),
		},
		Timestamp: newBid.BidTime.Unix(),
	}

	if err := service.broadcaster.Publish(ctx, newBid.ItemID, event); err != nil {
		// Broadcast failures never fail the bid
		service.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to broadcast bid event")
	}
}
