package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"
	"aurora-marketplace-service/internal/ports/inbound"
	"aurora-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type bidFixture struct {
	service     *BidService
	itemRepo    *memItemRepo
	bidRepo     *memBidRepo
	userRepo    *memUserRepo
	broadcaster *memBroadcaster
	now         *time.Time
}

func newBidFixture() *bidFixture {
	itemRepo := newMemItemRepo()
	bidRepo := newMemBidRepo(itemRepo)
	userRepo := newMemUserRepo()
	broadcaster := &memBroadcaster{}
	now := testBase

	service := NewBidService(BidServiceParams{
		BidRepo:     bidRepo,
		ItemRepo:    itemRepo,
		UserRepo:    userRepo,
		Broadcaster: broadcaster,
		Now:         func() time.Time { return now },
		Logger:      zerolog.Nop(),
	})

	return &bidFixture{
		service:     service,
		itemRepo:    itemRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		now:         &now,
	}
}

func (f *bidFixture) seedUser(t *testing.T, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := f.userRepo.Create(context.Background(), &shared.User{ID: id, Username: username}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

func (f *bidFixture) seedForwardItem(t *testing.T, startingPrice float64, endTime *time.Time) *item.Item {
	t.Helper()
	it := &item.Item{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Title:         "forward lot",
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		AuctionType:   item.TypeForward,
		Status:        item.StatusActive,
		CreatedAt:     testBase.Add(-time.Hour),
		EndTime:       endTime,
		PaymentStatus: item.PaymentUnpaid,
	}
	if err := f.itemRepo.Create(context.Background(), it); err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	return it
}

func TestPlaceBidAcceptanceLadder(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(time.Hour)
	it := f.seedForwardItem(t, 100, &end)
	bidder := f.seedUser(t, "bidder")

	// Below the starting price
	_, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 80})
	if !errors.Is(err, shared.ErrBidBelowStartingPrice) {
		t.Fatalf("bid of 80 error = %v, want ErrBidBelowStartingPrice", err)
	}

	// Equal to the current price
	_, err = f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 100})
	if !errors.Is(err, shared.ErrBidNotAboveCurrent) {
		t.Fatalf("bid of 100 error = %v, want ErrBidNotAboveCurrent", err)
	}

	// Strictly above the current price
	placed, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 150})
	if err != nil {
		t.Fatalf("bid of 150 returned error: %v", err)
	}
	if placed.Amount != 150 {
		t.Errorf("placed bid amount = %v, want 150", placed.Amount)
	}
	if !placed.BidTime.Equal(testBase) {
		t.Errorf("placed bid time = %v, want the service clock", placed.BidTime)
	}

	stored := f.itemRepo.stored(it.ID)
	if stored.CurrentPrice != 150 {
		t.Errorf("item current price = %v, want 150", stored.CurrentPrice)
	}
	if stored.CurrentWinnerID == nil || *stored.CurrentWinnerID != bidder {
		t.Errorf("item winner = %v, want the bidder", stored.CurrentWinnerID)
	}

	if got := f.broadcaster.published(outbound.EventTypeBidPlaced); len(got) != 1 {
		t.Errorf("bid.placed events = %d, want 1", len(got))
	}
}

func TestPlaceBidValidation(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(time.Hour)
	it := f.seedForwardItem(t, 100, &end)
	bidder := f.seedUser(t, "bidder")

	tests := []struct {
		name    string
		req     inbound.PlaceBidRequest
		wantErr error
	}{
		{
			name:    "unknown item",
			req:     inbound.PlaceBidRequest{ItemID: uuid.New(), BidderID: bidder, Amount: 150},
			wantErr: shared.ErrItemNotFound,
		},
		{
			name:    "missing bidder",
			req:     inbound.PlaceBidRequest{ItemID: it.ID, Amount: 150},
			wantErr: shared.ErrBidderRequired,
		},
		{
			name:    "zero amount",
			req:     inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 0},
			wantErr: shared.ErrBidAmountRequired,
		},
		{
			name:    "negative amount",
			req:     inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: -5},
			wantErr: shared.ErrBidAmountRequired,
		},
		{
			name:    "unknown bidder",
			req:     inbound.PlaceBidRequest{ItemID: it.ID, BidderID: uuid.New(), Amount: 150},
			wantErr: shared.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.PlaceBid(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PlaceBid error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlaceBidRejectsDutchAuction(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(time.Hour)
	it := &item.Item{
		ID: uuid.New(), SellerID: uuid.New(), Title: "dutch lot",
		StartingPrice: 100, CurrentPrice: 100, MinimumPrice: 20,
		AuctionType: item.TypeDutch, Status: item.StatusActive,
		CreatedAt: testBase.Add(-time.Hour), EndTime: &end,
		PaymentStatus: item.PaymentUnpaid,
	}
	if err := f.itemRepo.Create(ctx, it); err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	bidder := f.seedUser(t, "bidder")

	_, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 150})
	if !errors.Is(err, shared.ErrNotForwardAuction) {
		t.Errorf("PlaceBid on Dutch auction error = %v, want ErrNotForwardAuction", err)
	}
}

func TestPlaceBidAfterEndTimeFlipsAndRejects(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(-time.Minute)
	it := f.seedForwardItem(t, 100, &end)
	bidder := f.seedUser(t, "late-bidder")

	_, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 150})
	if !errors.Is(err, shared.ErrAuctionEnded) {
		t.Fatalf("late bid error = %v, want ErrAuctionEnded", err)
	}

	if stored := f.itemRepo.stored(it.ID); stored.Status != item.StatusEnded {
		t.Errorf("persisted status = %v, want ENDED after lazy flip", stored.Status)
	}
	if got := f.broadcaster.published(outbound.EventTypeItemEnded); len(got) != 1 {
		t.Errorf("item.ended events = %d, want 1 (the lazy flip must announce the conclusion)", len(got))
	}

	bids, err := f.bidRepo.GetByItemID(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetByItemID returned error: %v", err)
	}
	if len(bids) != 0 {
		t.Errorf("late bid was recorded, want none")
	}
}

func TestPlaceBidRejectsManuallyEndedAuction(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	it := f.seedForwardItem(t, 100, nil)
	bidder := f.seedUser(t, "bidder")

	stored := f.itemRepo.stored(it.ID)
	stored.End()

	_, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 150})
	if !errors.Is(err, shared.ErrAuctionNotActive) {
		t.Errorf("PlaceBid on ended auction error = %v, want ErrAuctionNotActive", err)
	}
}

// staleItemRepo returns each item with an out-of-date current price,
// simulating a concurrent bid landing between the read and the write.
type staleItemRepo struct {
	*memItemRepo
	stalePrice float64
}

func (r *staleItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*item.Item, error) {
	it, err := r.memItemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	it.CurrentPrice = r.stalePrice
	return it, nil
}

func TestPlaceBidConflictOnStalePrice(t *testing.T) {
	itemRepo := newMemItemRepo()
	bidRepo := newMemBidRepo(itemRepo)
	userRepo := newMemUserRepo()
	now := testBase

	service := NewBidService(BidServiceParams{
		BidRepo:  bidRepo,
		ItemRepo: &staleItemRepo{memItemRepo: itemRepo, stalePrice: 100},
		UserRepo: userRepo,
		Now:      func() time.Time { return now },
		Logger:   zerolog.Nop(),
	})

	ctx := context.Background()
	end := testBase.Add(time.Hour)
	it := &item.Item{
		ID: uuid.New(), SellerID: uuid.New(), Title: "contested lot",
		StartingPrice: 100, CurrentPrice: 120, // a rival bid already landed
		AuctionType: item.TypeForward, Status: item.StatusActive,
		CreatedAt: testBase.Add(-time.Hour), EndTime: &end,
		PaymentStatus: item.PaymentUnpaid,
	}
	if err := itemRepo.Create(ctx, it); err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	bidder := uuid.New()
	if err := userRepo.Create(ctx, &shared.User{ID: bidder, Username: "loser"}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	_, err := service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: 110})
	if !errors.Is(err, shared.ErrBidConflict) {
		t.Fatalf("stale bid error = %v, want ErrBidConflict", err)
	}

	stored := itemRepo.stored(it.ID)
	if stored.CurrentPrice != 120 {
		t.Errorf("item current price = %v, want the rival's 120 untouched", stored.CurrentPrice)
	}
	bids, _ := bidRepo.GetByItemID(ctx, it.ID)
	if len(bids) != 0 {
		t.Errorf("conflicted bid was recorded, want none")
	}
}

func TestPlaceBidChecksClientSubscription(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(time.Hour)
	it := f.seedForwardItem(t, 100, &end)
	bidder := f.seedUser(t, "bidder")

	// An unsubscribed client is logged, never rejected
	placed, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{
		ItemID: it.ID, BidderID: bidder, ClientID: "client-1", Amount: 150,
	})
	if err != nil {
		t.Fatalf("bid from unsubscribed client returned error: %v", err)
	}
	if placed.Amount != 150 {
		t.Errorf("placed bid amount = %v, want 150", placed.Amount)
	}
	if f.broadcaster.subscriptionChecks != 1 {
		t.Errorf("subscription checks = %d, want 1", f.broadcaster.subscriptionChecks)
	}

	// A bid without a client id skips the check entirely
	if _, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{
		ItemID: it.ID, BidderID: bidder, Amount: 200,
	}); err != nil {
		t.Fatalf("bid without client id returned error: %v", err)
	}
	if f.broadcaster.subscriptionChecks != 1 {
		t.Errorf("subscription checks = %d, want still 1", f.broadcaster.subscriptionChecks)
	}
}

func TestPlaceBidIDsOrderedByCreation(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(time.Hour)
	it := f.seedForwardItem(t, 100, &end)

	first, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: f.seedUser(t, "early"), Amount: 110})
	if err != nil {
		t.Fatalf("first PlaceBid returned error: %v", err)
	}

	*f.now = testBase.Add(time.Minute)
	second, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: f.seedUser(t, "late"), Amount: 120})
	if err != nil {
		t.Fatalf("second PlaceBid returned error: %v", err)
	}

	// v7 ids embed the creation timestamp, so later bids have greater ids
	if bytes.Compare(first.ID[:], second.ID[:]) >= 0 {
		t.Errorf("bid ids not ordered by creation: %s >= %s", first.ID, second.ID)
	}
}

func TestGetBidsForItemOrdersByAmount(t *testing.T) {
	f := newBidFixture()
	ctx := context.Background()

	end := testBase.Add(time.Hour)
	it := f.seedForwardItem(t, 100, &end)

	for i, amount := range []float64{110, 130, 150} {
		bidder := f.seedUser(t, "bidder")
		*f.now = testBase.Add(time.Duration(i) * time.Minute)
		if _, err := f.service.PlaceBid(ctx, inbound.PlaceBidRequest{ItemID: it.ID, BidderID: bidder, Amount: amount}); err != nil {
			t.Fatalf("PlaceBid(%v) returned error: %v", amount, err)
		}
	}

	bids, err := f.service.GetBidsForItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetBidsForItem returned error: %v", err)
	}
	if len(bids) != 3 {
		t.Fatalf("GetBidsForItem returned %d bids, want 3", len(bids))
	}

	want := []float64{150, 130, 110}
	for i, b := range bids {
		if b.Amount != want[i] {
			t.Errorf("bid %d amount = %v, want %v", i, b.Amount, want[i])
		}
	}
}
