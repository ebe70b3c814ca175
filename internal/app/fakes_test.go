package app

import (
	"context"
	"strings"
	"sync"

	"aurora-marketplace-service/internal/domain/bid"
	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"
	"aurora-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// memItemRepo stores copies so that unsaved mutations on a retrieved item
// are not visible until Update is called, mirroring a real database.
type memItemRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*item.Item
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[uuid.UUID]*item.Item)}
}

func copyItem(it *item.Item) *item.Item {
	c := *it
	if it.CurrentWinnerID != nil {
		w := *it.CurrentWinnerID
		c.CurrentWinnerID = &w
	}
	if it.EndTime != nil {
		e := *it.EndTime
		c.EndTime = &e
	}
	if it.PaymentTime != nil {
		p := *it.PaymentTime
		c.PaymentTime = &p
	}
	return &c
}

func (r *memItemRepo) Create(ctx context.Context, it *item.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID] = copyItem(it)
	return nil
}

func (r *memItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*item.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, shared.ErrItemNotFound
	}
	return copyItem(it), nil
}

func (r *memItemRepo) List(ctx context.Context) ([]*item.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*item.Item, 0, len(r.items))
	for _, it := range r.items {
		items = append(items, copyItem(it))
	}
	return items, nil
}

func (r *memItemRepo) ListByStatus(ctx context.Context, status item.Status) ([]*item.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*item.Item, 0)
	for _, it := range r.items {
		if it.Status == status {
			items = append(items, copyItem(it))
		}
	}
	return items, nil
}

// Search mirrors the repository contract: case-insensitive substring match
// on title or description.
func (r *memItemRepo) Search(ctx context.Context, query string) ([]*item.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	items := make([]*item.Item, 0)
	for _, it := range r.items {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Description), q) {
			items = append(items, copyItem(it))
		}
	}
	return items, nil
}

func (r *memItemRepo) Update(ctx context.Context, it *item.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[it.ID]; !ok {
		return shared.ErrItemNotFound
	}
	r.items[it.ID] = copyItem(it)
	return nil
}

// stored returns the persisted state of an item, bypassing the service.
func (r *memItemRepo) stored(id uuid.UUID) *item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

// memBidRepo applies the bid and the item price/winner update atomically
// under one lock, guarded by the expected pre-bid current price.
type memBidRepo struct {
	mu       sync.Mutex
	bids     []*bid.Bid
	itemRepo *memItemRepo
}

func newMemBidRepo(itemRepo *memItemRepo) *memBidRepo {
	return &memBidRepo{itemRepo: itemRepo}
}

func (r *memBidRepo) GetByItemID(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*bid.Bid, 0)
	for _, b := range r.bids {
		if b.ItemID == itemID {
			out = append(out, b)
		}
	}
	// highest amount first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Amount > out[i].Amount {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memBidRepo) PlaceBid(ctx context.Context, newBid *bid.Bid, expectedCurrentPrice float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.itemRepo.mu.Lock()
	defer r.itemRepo.mu.Unlock()

	it, ok := r.itemRepo.items[newBid.ItemID]
	if !ok {
		return shared.ErrItemNotFound
	}
	if it.Status != item.StatusActive {
		return shared.ErrAuctionNotActive
	}
	if it.CurrentPrice != expectedCurrentPrice {
		return shared.ErrBidConflict
	}
	if newBid.Amount <= it.CurrentPrice {
		return shared.ErrBidNotAboveCurrent
	}

	r.bids = append(r.bids, newBid)
	it.CurrentPrice = newBid.Amount
	bidder := newBid.BidderID
	it.CurrentWinnerID = &bidder
	return nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*shared.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*shared.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *shared.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

// memBroadcaster records published events and subscription lookups for
// assertions.
type memBroadcaster struct {
	mu                 sync.Mutex
	events             []outbound.Event
	subscriptions      map[string]bool
	subscriptionChecks int
}

func subscriptionKey(itemID uuid.UUID, clientID string) string {
	return clientID + "/" + itemID.String()
}

func (b *memBroadcaster) Subscribe(ctx context.Context, itemID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscriptions == nil {
		b.subscriptions = make(map[string]bool)
	}
	b.subscriptions[subscriptionKey(itemID, clientID)] = true
	return nil
}

func (b *memBroadcaster) Unsubscribe(ctx context.Context, itemID uuid.UUID, clientID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, subscriptionKey(itemID, clientID))
	return nil
}

func (b *memBroadcaster) Publish(ctx context.Context, itemID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *memBroadcaster) GetSubscribers(ctx context.Context, itemID uuid.UUID) ([]string, error) {
	return nil, nil
}

func (b *memBroadcaster) IsSubscribed(ctx context.Context, itemID uuid.UUID, clientID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptionChecks++
	return b.subscriptions[subscriptionKey(itemID, clientID)]
}

func (b *memBroadcaster) published(eventType outbound.EventType) []outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]outbound.Event, 0)
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
