package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"aurora-marketplace-service/internal/domain/item"
	"aurora-marketplace-service/internal/domain/shared"
	"aurora-marketplace-service/internal/ports/inbound"
	"aurora-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients       map[string]*WsClient // clientID -> Client
	clientsMu     sync.RWMutex
	eventChannels map[string]chan outbound.Event // clientID -> local event channel
	channelsMu    sync.RWMutex
	upgrader      websocket.Upgrader
	itemService   inbound.ItemService
	bidService    inbound.BidService
	broadcaster   outbound.Broadcaster
	logger        zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader    websocket.Upgrader
	ItemService inbound.ItemService
	BidService  inbound.BidService
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:       make(map[string]*WsClient),
		eventChannels: make(map[string]chan outbound.Event),
		upgrader:      params.Upgrader,
		itemService:   params.ItemService,
		bidService:    params.BidService,
		broadcaster:   params.Broadcaster,
		logger:        params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	// Create new client
	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: handler,
	})

	// Register client
	handler.registerClient(client)

	// Create local event channel for this client
	handler.createEventChannel(client.id)

	// Start client message handling
	client.Start()

	// Start listening for broadcast events for this client
	go handler.listenForClientEvents(client)

	// Wait for client to disconnect
	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan

	handler.logger.Debug().Str("client_id", clientID).Msg("Created local event channel for client")
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		close(eventChan)
		delete(handler.eventChannels, clientID)
		handler.logger.Debug().Str("client_id", clientID).Msg("Removed local event channel for client")
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()

	// Remove client from registry
	delete(handler.clients, client.id)

	// Stop the client
	client.Stop()

	// Remove local event channel
	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Int("total_clients", len(handler.clients)).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the client's socket
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client - this should not happen")
		return
	}

	handler.logger.Debug().Str("client_id", client.id).Msg("Event listener started for client")

	for {
		select {
		case event := <-eventChan:
			wsMessage := handler.convertEventToMessage(event)

			if err := client.Send(wsMessage); err != nil {
				handler.logger.Error().
					Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			} else {
				handler.logger.Debug().Str("client_id", client.id).Str("event_type", string(event.Type)).
					Msg("Sent event to WebSocket client")
			}

		case <-client.ctx.Done():
			handler.logger.Debug().Str("client_id", client.id).Msg("Client disconnected, stopping event listener")
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(client, msg)

	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(client, msg)

	case MessageTypeCreateItem:
		return handler.handleCreateItem(client, msg)

	case MessageTypeGetItem:
		return handler.handleGetItem(client, msg)

	case MessageTypeListItems:
		return handler.handleListItems(client, msg)

	case MessageTypeSearchItems:
		return handler.handleSearchItems(client, msg)

	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)

	case MessageTypeListBids:
		return handler.handleListBids(client, msg)

	case MessageTypeGetDutchPrice:
		return handler.handleGetDutchPrice(client, msg)

	case MessageTypeAcceptDutch:
		return handler.handleAcceptDutch(client, msg)

	case MessageTypePayItem:
		return handler.handlePayItem(client, msg)

	case MessageTypeGetReceipt:
		return handler.handleGetReceipt(client, msg)

	case MessageTypeEndAuction:
		return handler.handleEndAuction(client, msg)

	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	msgType := MessageTypeItemUpdate
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		msgType = MessageTypeBidPlaced
	case outbound.EventTypeItemEnded:
		msgType = MessageTypeItemEnded
	case outbound.EventTypeItemPaid:
		msgType = MessageTypeItemPaid
	case outbound.EventTypeItemCreated:
		msgType = MessageTypeItemCreated
	}

	itemID := event.ItemID
	return &ServerMessage{
		Type:      msgType,
		ItemID:    &itemID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) handleSubscribe(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrClientEventChannelNotFound
	}

	// Subscribe to broadcaster with the local event channel
	if err := handler.broadcaster.Subscribe(ctx, *msg.ItemID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("item_id", msg.ItemID.String()).Msg("Failed to subscribe to item")
		return err
	}

	response := NewServerMessage(MessageTypeItemUpdate)
	response.ItemID = msg.ItemID
	response.Data["status"] = "subscribed"
	if subscribers, err := handler.broadcaster.GetSubscribers(ctx, *msg.ItemID); err == nil {
		response.Data["subscriber_count"] = len(subscribers)
	}

	handler.logger.Info().Str("client_id", client.id).Str("item_id", msg.ItemID.String()).Msg("Client subscribed to item")
	return client.Send(response)
}

// handleUnsubscribe handles unsubscription from item events
func (handler *WsHandler) handleUnsubscribe(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	// Unsubscribe from broadcaster
	if err := handler.broadcaster.Unsubscribe(ctx, *msg.ItemID, client.id); err != nil {
		return err
	}

	// Send confirmation
	response := NewServerMessage(MessageTypeItemUpdate)
	response.ItemID = msg.ItemID
	response.Data["status"] = "unsubscribed"

	handler.logger.Info().Str("client_id", client.id).Str("item_id", msg.ItemID.String()).Msg("Client unsubscribed from item")
	return client.Send(response)
}

// handleCreateItem handles listing creation; the connected user is the seller
func (handler *WsHandler) handleCreateItem(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	req := inbound.CreateItemRequest{
		SellerID:      client.userID,
		Title:         stringField(msg.Data, "title"),
		Description:   stringField(msg.Data, "description"),
		AuctionType:   stringField(msg.Data, "auction_type"),
		Category:      stringField(msg.Data, "category"),
		Keywords:      stringField(msg.Data, "keywords"),
		ConditionCode: stringField(msg.Data, "condition_code"),
		CoverImageURL: stringField(msg.Data, "cover_image_url"),
		StartingPrice: floatField(msg.Data, "starting_price"),
		MinimumPrice:  floatField(msg.Data, "minimum_price"),
		ShipCostStd:   floatField(msg.Data, "ship_cost_std"),
		ShipCostExp:   floatField(msg.Data, "ship_cost_exp"),
		ShipDays:      intField(msg.Data, "ship_days"),
		Quantity:      intField(msg.Data, "quantity"),
	}

	if endTimeStr := stringField(msg.Data, "end_time"); endTimeStr != "" {
		endTime, err := time.Parse(time.RFC3339, endTimeStr)
		if err != nil {
			return client.Send(NewErrorMessage("invalid end_time format", nil))
		}
		endTime = endTime.In(shared.AuctionZone)
		req.EndTime = &endTime
	}

	created, err := handler.itemService.CreateItem(ctx, req)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	response := handler.createItemResponse(created, MessageTypeItemCreated)

	handler.logger.Info().Str("item_id", created.ID.String()).Str("seller_id", client.userID.String()).Msg("Item created via WebSocket")
	return client.Send(response)
}

// handleGetItem handles getting item details
func (handler *WsHandler) handleGetItem(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	it, err := handler.itemService.GetItem(ctx, *msg.ItemID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	return client.Send(handler.createItemResponse(it, MessageTypeItemUpdate))
}

// handleListItems handles listing items, optionally filtered by status
func (handler *WsHandler) handleListItems(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	var items []*item.Item
	var err error
	switch stringField(msg.Data, "status") {
	case "active":
		items, err = handler.itemService.ListActiveItems(ctx)
	case "ended":
		items, err = handler.itemService.ListEndedItems(ctx)
	default:
		items, err = handler.itemService.ListItems(ctx)
	}
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	response := NewServerMessage(MessageTypeItemUpdate)
	response.Data["items"] = items
	response.Data["count"] = len(items)

	return client.Send(response)
}

// handleSearchItems handles title/description search
func (handler *WsHandler) handleSearchItems(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	items, err := handler.itemService.SearchItems(ctx, stringField(msg.Data, "query"))
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	response := NewServerMessage(MessageTypeItemUpdate)
	response.Data["items"] = items
	response.Data["count"] = len(items)

	return client.Send(response)
}

// handlePlaceBid handles bid placement; the connected user is the bidder
func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, ok := msg.Data["amount"].(float64)
	if !ok {
		return shared.ErrInvalidAmount
	}

	ctx := context.Background()

	bidRequest := inbound.PlaceBidRequest{
		ItemID:   *msg.ItemID,
		BidderID: client.userID,
		ClientID: client.id,
		Amount:   amount,
	}

	// Success is delivered through the bid.placed broadcast
	placed, err := handler.bidService.PlaceBid(ctx, bidRequest)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.ItemID)
		return client.Send(errorMsg)
	}

	handler.logger.Info().Str("bid_id", placed.ID.String()).Str("item_id", msg.ItemID.String()).Str("user_id", client.userID.String()).Float64("amount", amount).Msg("Bid placed via WebSocket")

	return nil
}

// handleListBids returns an item's bids, highest first
func (handler *WsHandler) handleListBids(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	bids, err := handler.bidService.GetBidsForItem(ctx, *msg.ItemID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	response := NewServerMessage(MessageTypeItemUpdate)
	response.ItemID = msg.ItemID
	response.Data["bids"] = bids
	response.Data["count"] = len(bids)

	return client.Send(response)
}

// handleGetDutchPrice returns the current decayed price of a Dutch auction
func (handler *WsHandler) handleGetDutchPrice(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	price, err := handler.itemService.CurrentDutchPrice(ctx, *msg.ItemID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	response := NewServerMessage(MessageTypeItemUpdate)
	response.ItemID = msg.ItemID
	response.Data["current_price"] = price

	return client.Send(response)
}

// handleAcceptDutch accepts the current Dutch price; the connected user is the buyer
func (handler *WsHandler) handleAcceptDutch(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	it, err := handler.itemService.AcceptDutch(ctx, *msg.ItemID, client.userID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	handler.logger.Info().Str("item_id", it.ID.String()).Str("buyer_id", client.userID.String()).Msg("Dutch auction accepted via WebSocket")
	return client.Send(handler.createItemResponse(it, MessageTypeItemEnded))
}

// handlePayItem records payment; the connected user is the payer
func (handler *WsHandler) handlePayItem(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	receipt, err := handler.itemService.PayForItem(ctx, *msg.ItemID, inbound.PaymentRequest{PayerID: client.userID})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	response := NewServerMessage(MessageTypeReceipt)
	response.ItemID = msg.ItemID
	response.Data["receipt"] = receipt

	return client.Send(response)
}

// handleGetReceipt assembles the receipt for a concluded auction
func (handler *WsHandler) handleGetReceipt(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	receipt, err := handler.itemService.GetReceipt(ctx, *msg.ItemID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	response := NewServerMessage(MessageTypeReceipt)
	response.ItemID = msg.ItemID
	response.Data["receipt"] = receipt

	return client.Send(response)
}

// handleEndAuction force-ends an auction
func (handler *WsHandler) handleEndAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	it, err := handler.itemService.EndAuction(ctx, *msg.ItemID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ItemID))
	}

	handler.logger.Info().Str("item_id", it.ID.String()).Str("user_id", client.userID.String()).Msg("Auction ended via WebSocket")
	return client.Send(handler.createItemResponse(it, MessageTypeItemEnded))
}

func (handler *WsHandler) createItemResponse(it *item.Item, msgType MessageType) *ServerMessage {
	response := NewServerMessage(msgType)
	itemID := it.ID
	response.ItemID = &itemID

	response.Data["item_id"] = it.ID
	response.Data["seller_id"] = it.SellerID
	response.Data["title"] = it.Title
	response.Data["description"] = it.Description
	response.Data["auction_type"] = it.AuctionType
	response.Data["status"] = it.Status
	response.Data["starting_price"] = it.StartingPrice
	response.Data["current_price"] = it.CurrentPrice
	response.Data["minimum_price"] = it.MinimumPrice
	response.Data["payment_status"] = it.PaymentStatus
	response.Data["created_at"] = it.CreatedAt.Format(time.RFC3339)
	if it.EndTime != nil {
		response.Data["end_time"] = it.EndTime.Format(time.RFC3339)
	}
	if it.CurrentWinnerID != nil {
		response.Data["current_winner_id"] = *it.CurrentWinnerID
	}

	return response
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func floatField(data map[string]interface{}, key string) *float64 {
	if data == nil {
		return nil
	}
	if f, ok := data[key].(float64); ok {
		return &f
	}
	return nil
}

func intField(data map[string]interface{}, key string) *int {
	if data == nil {
		return nil
	}
	if f, ok := data[key].(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}
