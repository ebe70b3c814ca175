package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"aurora-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypeCreateItem    MessageType = "create_item"
	MessageTypeGetItem       MessageType = "get_item"
	MessageTypeListItems     MessageType = "list_items"
	MessageTypeSearchItems   MessageType = "search_items"
	MessageTypePlaceBid      MessageType = "place_bid"
	MessageTypeListBids      MessageType = "list_bids"
	MessageTypeGetDutchPrice MessageType = "get_dutch_price"
	MessageTypeAcceptDutch   MessageType = "accept_dutch"
	MessageTypePayItem       MessageType = "pay_item"
	MessageTypeGetReceipt    MessageType = "get_receipt"
	MessageTypeEndAuction    MessageType = "end_auction"
	MessageTypePing          MessageType = "ping"

	// Server to Client message types
	MessageTypeItemCreated MessageType = "item_created"
	MessageTypeItemUpdate  MessageType = "item_update"
	MessageTypeBidPlaced   MessageType = "bid_placed"
	MessageTypeItemEnded   MessageType = "item_ended"
	MessageTypeItemPaid    MessageType = "item_paid"
	MessageTypeReceipt     MessageType = "receipt"
	MessageTypeError       MessageType = "error"
	MessageTypePong        MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	ItemID    *uuid.UUID             `json:"item_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	ItemID    *uuid.UUID             `json:"item_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, itemID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		ItemID:    itemID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

func (m *ClientMessage) validateItemID() error {
	if m.ItemID == nil || *m.ItemID == uuid.Nil {
		return shared.ErrItemIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	// Validate required fields
	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe,
		MessageTypeGetItem, MessageTypeListBids,
		MessageTypeGetDutchPrice, MessageTypeAcceptDutch,
		MessageTypePayItem, MessageTypeGetReceipt, MessageTypeEndAuction:
		if err := m.validateItemID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateItemID(); err != nil {
			return err
		}
		amount, ok := m.Data["amount"].(float64)
		if !ok || amount <= 0 {
			return shared.ErrInvalidAmount
		}
	case MessageTypeCreateItem:
		if m.Data["title"] == nil {
			return shared.ErrTitleRequired
		}
		if m.Data["starting_price"] == nil {
			return shared.ErrStartingPriceRequired
		}
	case MessageTypeListItems, MessageTypeSearchItems:

	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
