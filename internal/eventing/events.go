package eventing

import "time"

// SettlementSettled is published after a billing slot has been settled for a
// meter.
type SettlementSettled struct {
	EventID    string    `json:"event_id"`
	Meter      string    `json:"meter"`
	Hive       string    `json:"hive"`
	Slot       int       `json:"slot"`
	NetAmount  int64     `json:"net_amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EscrowDeposited is published after a successful vault deposit, either to a
// meter balance or to a hive owner pool.
type EscrowDeposited struct {
	EventID    string    `json:"event_id"`
	Account    string    `json:"account"`
	Amount     uint64    `json:"amount"`
	OwnerPool  bool      `json:"owner_pool"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EscrowWithdrawn is published after a hive drains part of a meter's escrow
// balance to an external wallet.
type EscrowWithdrawn struct {
	EventID    string    `json:"event_id"`
	Meter      string    `json:"meter"`
	Wallet     string    `json:"wallet"`
	Amount     uint64    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
