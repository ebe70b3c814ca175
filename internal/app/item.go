package app

import (
	"context"
	"strings"
	"time"

	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"
	"aurora-marketplace-service/internal/ports/inbound"
	"aurora-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ItemService implements the auction lifecycle use cases: item creation,
// listings and search, lazy time-driven status transitions, Dutch pricing,
// and payment/receipt issuance.
//
// There is no background scheduler. Status is reconciled lazily: every
// operation that touches an item first checks the end time against "now"
// in the fixed auction zone and flips ACTIVE to ENDED when the window has
// closed.
type ItemService struct {
	itemRepo    outbound.ItemRepository
	userRepo    outbound.UserRepository
	broadcaster outbound.Broadcaster
	now         func() time.Time
	logger      zerolog.Logger
}

type ItemServiceParams struct {
	ItemRepo    outbound.ItemRepository
	UserRepo    outbound.UserRepository
	Broadcaster outbound.Broadcaster
	// Now overrides the service clock; defaults to the fixed-zone wall clock.
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewItemService creates a new item service
func NewItemService(params ItemServiceParams) *ItemService {
	now := params.Now
	if now == nil {
		now = shared.NowInAuctionZone
	}
	return &ItemService{
		itemRepo:    params.ItemRepo,
		userRepo:    params.UserRepo,
		broadcaster: params.Broadcaster,
		now:         now,
		logger:      params.Logger.With().Str("component", "item_service").Logger(),
	}
}

// refreshStatus reconciles an item's status with its end time. If the item
// is ACTIVE and its end time is not after "now", it is flipped to ENDED and
// persisted. Invoked as a guard at the start of every operation.
func (service *ItemService) refreshStatus(ctx context.Context, it *item.Item) error {
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

	service.logger.Info().
		Str("item_id", it.ID.String()).
		Time("end_time", *it.EndTime).
		Msg("Auction expired, status flipped to ENDED")

	service.publishEnded(ctx, it)
	return nil
}

// CreateItem creates a new auction listing
func (service *ItemService) CreateItem(ctx context.Context, req inbound.CreateItemRequest) (*item.Item, error) {
	service.logger.Info().
		Str("seller_id", req.SellerID.String()).
		Str("title", req.Title).
		Str("auction_type", req.AuctionType).
		Msg("Attempting to create item")

	if req.SellerID == uuid.Nil {
		return nil, shared.ErrSellerRequired
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, shared.ErrTitleRequired
	}
	if req.StartingPrice == nil {
		return nil, shared.ErrStartingPriceRequired
	}

	auctionType, err := item.ParseAuctionType(req.AuctionType)
	if err != nil {
		service.logger.Warn().Str("auction_type", req.AuctionType).Msg("Invalid auction type")
		return nil, err
	}

	conditionCode := "USED"
	if req.ConditionCode != "" {
		conditionCode = strings.ToUpper(req.ConditionCode)
	}

	shipCostStd := 0.0
	if req.ShipCostStd != nil {
		shipCostStd = *req.ShipCostStd
	}
	shipCostExp := 0.0
	if req.ShipCostExp != nil {
		shipCostExp = *req.ShipCostExp
	}
	shipDays := 5
	if req.ShipDays != nil {
		shipDays = *req.ShipDays
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	minimumPrice := 0.0
	if req.MinimumPrice != nil {
		minimumPrice = *req.MinimumPrice
	}

	newItem := &item.Item{
		ID:            uuid.New(),
		SellerID:      req.SellerID,
		Title:         req.Title,
		Description:   req.Description,
		ConditionCode: conditionCode,
		CoverImageURL: req.CoverImageURL,
		ShipCostStd:   shipCostStd,
		ShipCostExp:   shipCostExp,
		ShipDays:      shipDays,
		StartingPrice: *req.StartingPrice,
		CurrentPrice:  *req.StartingPrice,
		MinimumPrice:  minimumPrice,
		AuctionType:   auctionType,
		Status:        item.StatusActive,
		Category:      req.Category,
		Keywords:      req.Keywords,
		Quantity:      quantity,
		CreatedAt:     service.now(),
		EndTime:       req.EndTime,
		PaymentStatus: item.PaymentUnpaid,
	}

	if err := service.itemRepo.Create(ctx, newItem); err != nil {
		service.logger.Error().Err(err).Str("item_id", newItem.ID.String()).Msg("Failed to save item to database")
		return nil, err
	}

	service.logger.Info().
		Str("item_id", newItem.ID.String()).
		Str("seller_id", newItem.SellerID.String()).
		Str("auction_type", string(newItem.AuctionType)).
		Float64("starting_price", newItem.StartingPrice).
		Msg("Item created successfully")

	service.publish(ctx, newItem.ID, outbound.Event{
		Type:   outbound.EventTypeItemCreated,
		ItemID: newItem.ID,
		Data: map[string]interface{}{
			"seller_id":      newItem.SellerID,
			"title":          newItem.Title,
			"auction_type":   newItem.AuctionType,
			"starting_price": newItem.StartingPrice,
		},
	})

	return newItem, nil
}

// GetItem retrieves an item by ID
func (service *ItemService) GetItem(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	it, err := service.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		service.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("Failed to retrieve item")
		return nil, err
	}

	if err := service.refreshStatus(ctx, it); err != nil {
		return nil, err
	}

	return it, nil
}

// ListItems retrieves all items
func (service *ItemService) ListItems(ctx context.Context) ([]*item.Item, error) {
	items, err := service.itemRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if err := service.refreshStatus(ctx, it); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ListActiveItems retrieves items still accepting bids or offers
func (service *ItemService) ListActiveItems(ctx context.Context) ([]*item.Item, error) {
	items, err := service.itemRepo.ListByStatus(ctx, item.StatusActive)
	if err != nil {
		return nil, err
	}

	active := make([]*item.Item, 0, len(items))
	for _, it := range items {
		if err := service.refreshStatus(ctx, it); err != nil {
			return nil, err
		}
		if it.IsActive() {
			active = append(active, it)
		}
	}
	return active, nil
}

// ListEndedItems retrieves concluded items
func (service *ItemService) ListEndedItems(ctx context.Context) ([]*item.Item, error) {
	items, err := service.itemRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	ended := make([]*item.Item, 0)
	for _, it := range items {
		if err := service.refreshStatus(ctx, it); err != nil {
			return nil, err
		}
		if it.IsEnded() {
			ended = append(ended, it)
		}
	}
	return ended, nil
}

// SearchItems retrieves items matching the query on title or description.
// A blank query behaves as ListItems.
func (service *ItemService) SearchItems(ctx context.Context, query string) ([]*item.Item, error) {
	if strings.TrimSpace(query) == "" {
		return service.ListItems(ctx)
	}

	items, err := service.itemRepo.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if err := service.refreshStatus(ctx, it); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// EndAuction force-ends an auction. Ending an already ended auction returns
// the item unchanged.
func (service *ItemService) EndAuction(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	it, err := service.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := service.refreshStatus(ctx, it); err != nil {
		return nil, err
	}

	if it.IsEnded() {
		service.logger.Debug().Str("item_id", itemID.String()).Msg("Auction already ended")
		return it, nil
	}

	it.End()
	if err := service.itemRepo.Update(ctx, it); err != nil {
		service.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("Failed to end auction")
		return nil, err
	}

	service.logger.Info().Str("item_id", itemID.String()).Msg("Auction ended")
	service.publishEnded(ctx, it)

	return it, nil
}

// CurrentDutchPrice returns the decayed price of a Dutch auction at the
// current fixed-zone time.
func (service *ItemService) CurrentDutchPrice(ctx context.Context, itemID uuid.UUID) (float64, error) {
	it, err := service.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return 0, err
	}

	price, err := it.DutchPriceAt(service.now())
	if err != nil {
		service.logger.Warn().
			Str("item_id", itemID.String()).
			Str("auction_type", string(it.AuctionType)).
			Msg("Dutch price requested for non-Dutch auction")
		return 0, err
	}
	return price, nil
}

// AcceptDutch accepts the current Dutch price on behalf of the buyer,
// freezing the price and concluding the auction. This is the only way a
// Dutch auction resolves to a winner.
func (service *ItemService) AcceptDutch(ctx context.Context, itemID, buyerID uuid.UUID) (*item.Item, error) {
	service.logger.Info().
		Str("item_id", itemID.String()).
		Str("buyer_id", buyerID.String()).
		Msg("Attempting to accept Dutch auction")

	it, err := service.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := service.refreshStatus(ctx, it); err != nil {
		return nil, err
	}

	if it.AuctionType != item.TypeDutch {
		return nil, shared.ErrNotDutchAuction
	}

	now := service.now()
	if it.ExpiredAt(now) {
		// refreshStatus already flipped and persisted the transition
		service.logger.Warn().Str("item_id", itemID.String()).Msg("Dutch acceptance after end time")
		return nil, shared.ErrAuctionEnded
	}
	if !it.IsActive() {
		return nil, shared.ErrAuctionNotActive
	}
	if buyerID == uuid.Nil {
		return nil, shared.ErrBuyerRequired
	}

	price, err := it.DutchPriceAt(now)
	if err != nil {
		return nil, err
	}

	it.CurrentPrice = price
	it.CurrentWinnerID = &buyerID
	it.End()

	if err := service.itemRepo.Update(ctx, it); err != nil {
		service.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("Failed to persist Dutch acceptance")
		return nil, err
	}

	service.logger.Info().
		Str("item_id", itemID.String()).
		Str("buyer_id", buyerID.String()).
		Float64("price", price).
		Msg("Dutch auction accepted")

	service.publishEnded(ctx, it)
	return it, nil
}

// PayForItem records a simulated payment for a concluded auction:
// the auction must be ENDED, a winner must exist, and the payer must be
// that winner. Paying an already paid item returns the existing receipt
// without touching the payment time.
func (service *ItemService) PayForItem(ctx context.Context, itemID uuid.UUID, req inbound.PaymentRequest) (*shared.Receipt, error) {
	it, err := service.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := service.refreshStatus(ctx, it); err != nil {
		return nil, err
	}

	if !it.IsEnded() {
		return nil, shared.ErrAuctionNotEnded
	}
	if it.CurrentWinnerID == nil {
		return nil, shared.ErrNoWinner
	}
	if req.PayerID == uuid.Nil {
		return nil, shared.ErrPayerRequired
	}
	if *it.CurrentWinnerID != req.PayerID {
		service.logger.Warn().
			Str("item_id", itemID.String()).
			Str("winner_id", it.CurrentWinnerID.String()).
			Str("payer_id", req.PayerID.String()).
			Msg("Payment attempted by non-winner")
		return nil, shared.ErrNotWinningBidder
	}

	if it.IsPaid() {
		service.logger.Debug().Str("item_id", itemID.String()).Msg("Item already paid, returning existing receipt")
		return service.assembleReceipt(ctx, it)
	}

	it.MarkPaid(service.now())
	if err := service.itemRepo.Update(ctx, it); err != nil {
		service.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("Failed to persist payment")
		return nil, err
	}

	service.logger.Info().
		Str("item_id", itemID.String()).
		Str("payer_id", req.PayerID.String()).
		Float64("final_price", it.CurrentPrice).
		Msg("Item paid")

	service.publish(ctx, it.ID, outbound.Event{
		Type:   outbound.EventTypeItemPaid,
		ItemID: it.ID,
		Data: map[string]interface{}{
			"payer_id":    req.PayerID,
			"final_price": it.CurrentPrice,
		},
	})

	return service.assembleReceipt(ctx, it)
}

// GetReceipt assembles the receipt for a concluded auction
func (service *ItemService) GetReceipt(ctx context.Context, itemID uuid.UUID) (*shared.Receipt, error) {
	it, err := service.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := service.refreshStatus(ctx, it); err != nil {
		return nil, err
	}

	if !it.IsEnded() {
		return nil, shared.ErrAuctionNotEnded
	}

	return service.assembleReceipt(ctx, it)
}

// assembleReceipt builds the receipt projection. A missing seller or buyer
// yields a nil view field, not a failure.
func (service *ItemService) assembleReceipt(ctx context.Context, it *item.Item) (*shared.Receipt, error) {
	seller := service.lookupUser(ctx, it.SellerID)

	var buyer *shared.User
	if it.CurrentWinnerID != nil {
		buyer = service.lookupUser(ctx, *it.CurrentWinnerID)
	}

	return &shared.Receipt{
		ItemID:        it.ID,
		Title:         it.Title,
		AuctionType:   string(it.AuctionType),
		Status:        string(it.Status),
		FinalPrice:    it.CurrentPrice,
		CreatedAt:     it.CreatedAt,
		EndTime:       it.EndTime,
		Seller:        seller,
		Buyer:         buyer,
		PaymentStatus: string(it.PaymentStatus),
		PaymentTime:   it.PaymentTime,
	}, nil
}

func (service *ItemService) lookupUser(ctx context.Context, userID uuid.UUID) *shared.User {
	user, err := service.userRepo.GetByID(ctx, userID)
	if err != nil {
		service.logger.Debug().Str("user_id", userID.String()).Msg("User not found for receipt view")
		return nil
	}
	return user
}

func (service *ItemService) publishEnded(ctx context.Context, it *item.Item) {
	data := map[string]interface{}{
		"final_price": it.CurrentPrice,
		"status":      it.Status,
	}
	if it.CurrentWinnerID != nil {
		data["winner_id"] = *it.CurrentWinnerID
	}
	service.publish(ctx, it.ID, outbound.Event{
		Type:   outbound.EventTypeItemEnded,
		ItemID: it.ID,
		Data:   data,
	})
}

func (service *ItemService) publish(ctx context.Context, itemID uuid.UUID, event outbound.Event) {
	if service.broadcaster == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = service.now().Unix()
	}
	if err := service.broadcaster.Publish(ctx, itemID, event); err != nil {
		// Broadcast failures never fail the operation
		service.logger.Error().Err(err).
			Str("item_id", itemID.String()).
			Str("event_type", string(event.Type)).
			Msg("Failed to broadcast item event")
	}
}
