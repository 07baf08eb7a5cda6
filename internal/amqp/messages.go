package amqp

import (
	"encoding/json"
	"time"

	"meterlog/internal/core"
)

// Message type discriminators, carried in the JSON body so the consumer
// routes without guessing from field shapes.
const (
	TypeBillSync   = "bill.synced"
	TypeBillDelete = "bill.deleted"
)

// BillSyncMessage asks the worker to export one bill row to the external
// spreadsheet. It carries only the row identity; the worker fetches the
// full record from storage.
type BillSyncMessage struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	Kind      core.BillKind `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
}

// BillDeleteMessage asks the worker to remove a previously exported row.
// The month is included so the worker can locate the spreadsheet row after
// the local record is gone.
type BillDeleteMessage struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	Kind      core.BillKind `json:"kind"`
	Month     string        `json:"month"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewBillSyncMessage(id string, kind core.BillKind) *BillSyncMessage {
	return &BillSyncMessage{Type: TypeBillSync, ID: id, Kind: kind, Timestamp: time.Now()}
}

func NewBillDeleteMessage(id string, kind core.BillKind, month string) *BillDeleteMessage {
	return &BillDeleteMessage{Type: TypeBillDelete, ID: id, Kind: kind, Month: month, Timestamp: time.Now()}
}

func (m *BillSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillSyncMessageFromJSON(data []byte) (*BillSyncMessage, error) {
	var msg BillSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *BillDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillDeleteMessageFromJSON(data []byte) (*BillDeleteMessage, error) {
	var msg BillDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
