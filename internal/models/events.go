package models

import "github.com/holiman/uint256"

// Event is an observable log record emitted by the engines. Implementations
// are plain value types so they can be JSON-encoded into the event log.
type Event interface {
	EventName() string
}

// RoundSwitch signals a round transition. Round carries the ordinal of the
// round that just started.
type RoundSwitch struct {
	Round Round `json:"round"`
}

func (RoundSwitch) EventName() string { return "RoundSwitch" }

// PutOrder signals a new sell order placed during a trade round.
type PutOrder struct {
	ID     uint64       `json:"id"`
	Owner  Address      `json:"owner"`
	Amount *uint256.Int `json:"amount"`
	Price  *uint256.Int `json:"price"`
}

func (PutOrder) EventName() string { return "PutOrder" }

// CancelOrder signals an order cancellation.
type CancelOrder struct {
	ID uint64 `json:"id"`
}

func (CancelOrder) EventName() string { return "CancelOrder" }

// TradeOrder signals a (possibly partial) order redemption.
type TradeOrder struct {
	ID       uint64       `json:"id"`
	Redeemer Address      `json:"redeemer"`
	Amount   *uint256.Int `json:"amount"`
}

func (TradeOrder) EventName() string { return "TradeOrder" }

// SaleOrder signals a primary-sale purchase.
type SaleOrder struct {
	Buyer  Address      `json:"buyer"`
	Amount *uint256.Int `json:"amount"`
}

func (SaleOrder) EventName() string { return "SaleOrder" }

// ReferralPayment signals a fee forwarded to a referrer.
type ReferralPayment struct {
	Referrer Address      `json:"referrer"`
	Amount   *uint256.Int `json:"amount"`
}

func (ReferralPayment) EventName() string { return "ReferralPayment" }

// ProposalCreated signals a new governance proposal.
type ProposalCreated struct {
	ID uint64 `json:"id"`
}

func (ProposalCreated) EventName() string { return "ProposalCreated" }

// ProposalFinished signals a resolved proposal and whether it passed.
type ProposalFinished struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
}

func (ProposalFinished) EventName() string { return "ProposalFinished" }

// ProposalFailed signals a proposal that could not take effect, with the
// human-readable reason.
type ProposalFailed struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

func (ProposalFailed) EventName() string { return "ProposalFailed" }
