package model

import "time"

// EventType identifies a bond lifecycle transition that subscribers can
// receive notifications for.
type EventType string

const (
	EventBondCreated   EventType = "bond.created"
	EventBondSlashed   EventType = "bond.slashed"
	EventBondWithdrawn EventType = "bond.withdrawn"
)

// EventTypes lists every lifecycle event in a stable order.
func EventTypes() []EventType {
	return []EventType{EventBondCreated, EventBondSlashed, EventBondWithdrawn}
}

// Valid reports whether t is a known lifecycle event type.
func (t EventType) Valid() bool {
	switch t {
	case EventBondCreated, EventBondSlashed, EventBondWithdrawn:
		return true
	}
	return false
}

// WithdrawalEvent is the normalized representation of a qualifying ledger
// operation. Created only by the poller; immutable afterwards.
type WithdrawalEvent struct {
	OperationID   string    `json:"operation_id"`
	PagingToken   string    `json:"paging_token"`
	OperationType string    `json:"operation_type"`
	Timestamp     time.Time `json:"timestamp"`
	BondID        string    `json:"bond_id"`
	SourceAccount string    `json:"source_account"`
	Amount        string    `json:"amount"`
	Asset         string    `json:"asset"`
	TxHash        string    `json:"tx_hash"`
	OperationIdx  uint64    `json:"operation_index"`
}
