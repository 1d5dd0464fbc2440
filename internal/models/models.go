package models

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
)

// Address identifies an account or a deployed component instance.
type Address string

// ZeroAddress is the absent-address value.
const ZeroAddress Address = ""

// IsZero reports whether the address is the absent value.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Round is a platform round kind. The ordinals match the wire encoding of
// the RoundSwitch event.
type Round int

const (
	RoundTrade Round = iota
	RoundSale
)

func (r Round) String() string {
	switch r {
	case RoundTrade:
		return "trade"
	case RoundSale:
		return "sale"
	default:
		return "unknown"
	}
}

// Order is a sell order custodied by the platform during a trade round.
type Order struct {
	ID        uint64       `json:"id"`
	Owner     Address      `json:"owner"`
	Amount    *uint256.Int `json:"amount"` // remaining amount in token decimal units
	Price     *uint256.Int `json:"price"`  // wei per one whole token
	Active    bool         `json:"active"`
	Round     uint64       `json:"round"` // trade round sequence the order belongs to
	CreatedAt time.Time    `json:"created_at"`
}

// Account is a referral registry record.
type Account struct {
	Registered bool
	Referrer   Address
}

// Stake is a per-account staking ledger record. LastClaim drives reward
// accrual; LastAction (any stake or claim) gates withdrawal.
type Stake struct {
	Balance       *uint256.Int
	RewardAccrued *uint256.Int
	LastClaim     time.Time
	LastAction    time.Time
}

// Proposal is a DAO governance proposal. Everything but the tallies,
// the voters set and the finished flag is immutable after creation.
type Proposal struct {
	ID           uint64
	CallData     []byte
	Target       Address
	Description  string
	VotesFor     *uint256.Int
	VotesAgainst *uint256.Int
	Deadline     time.Time
	Finished     bool
	Voters       map[Address]bool
}

// User is an authenticated platform user. The address is the identity the
// engines see; username/password exist only at the HTTP boundary.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	Address      Address
	CreatedAt    time.Time
}

// Shared failure classes surfaced by more than one component.
var (
	// ErrTransferFailed wraps any token movement that returned false or aborted.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrZeroAddress rejects the absent address where a real one is required.
	ErrZeroAddress = errors.New("address is zero")
)
