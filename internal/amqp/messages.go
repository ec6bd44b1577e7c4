package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType says what happened to a receipt.
type EventType string

const (
	EventReceiptCreated EventType = "receipt.created"
	EventReceiptUpdated EventType = "receipt.updated"
	EventReceiptPaid    EventType = "receipt.paid"
	// EventReceiptResync is published by the sweep for receipts whose
	// earlier event never reached the ledger.
	EventReceiptResync EventType = "receipt.resync"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventReceiptCreated, EventReceiptUpdated, EventReceiptPaid, EventReceiptResync:
		return true
	}
	return false
}

// ReceiptEventMessage is a lightweight notification. The worker loads the
// receipt itself, so only the id and the version it refers to travel.
type ReceiptEventMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptEventMessage(id, version int64, t EventType) *ReceiptEventMessage {
	return &ReceiptEventMessage{
		ID:        id,
		Version:   version,
		Type:      t,
		Timestamp: time.Now(),
	}
}

func (m *ReceiptEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptEventMessageFromJSON decodes and checks a message body.
func ReceiptEventMessageFromJSON(data []byte) (*ReceiptEventMessage, error) {
	var msg ReceiptEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid receipt id %d", msg.ID)
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
