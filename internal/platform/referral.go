package platform

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

var (
	ErrAlreadyRegistered     = errors.New("already registered")
	ErrReferrerNotRegistered = errors.New("referrer is not registered")
	ErrSelfReferral          = errors.New("sender can't be a referrer")
)

// Register records the caller in the referral registry with an optional
// referrer. One-time and irreversible; the referrer, if given, must already
// be registered.
func (p *Platform) Register(caller, referrer models.Address) error {
	if acc, ok := p.accounts[caller]; ok && acc.Registered {
		return ErrAlreadyRegistered
	}
	if referrer == caller {
		return ErrSelfReferral
	}
	if !referrer.IsZero() {
		if acc, ok := p.accounts[referrer]; !ok || !acc.Registered {
			return ErrReferrerNotRegistered
		}
	}
	p.accounts[caller] = &models.Account{Registered: true, Referrer: referrer}
	return nil
}

// Account returns the referral registry record for an address.
func (p *Platform) Account(address models.Address) models.Account {
	if acc, ok := p.accounts[address]; ok {
		return *acc
	}
	return models.Account{}
}

// SetRoundDuration changes the duration applied to subsequently started
// rounds. Owner-only.
func (p *Platform) SetRoundDuration(caller models.Address, duration time.Duration) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	if duration <= 0 {
		return ErrZeroValue
	}
	p.roundDuration = duration
	return nil
}

// SetFirstReferrerSaleFee changes the first-tier sale fee percentage.
// Owner-only; zero disables the tier. The two sale tiers combined may not
// exceed 100.
func (p *Platform) SetFirstReferrerSaleFee(caller models.Address, fee uint64) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	if fee > 100 || fee+p.secondReferrerSaleFee > 100 {
		return ErrFeeTooHigh
	}
	p.firstReferrerSaleFee = fee
	return nil
}

// SetSecondReferrerSaleFee changes the second-tier sale fee percentage.
// Owner-only; zero disables the tier. The two sale tiers combined may not
// exceed 100.
func (p *Platform) SetSecondReferrerSaleFee(caller models.Address, fee uint64) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	if fee > 100 || p.firstReferrerSaleFee+fee > 100 {
		return ErrFeeTooHigh
	}
	p.secondReferrerSaleFee = fee
	return nil
}

// SetReferrerTradeFee changes the per-tier trade fee percentage. Owner-only;
// zero disables referral fees in trade rounds. The fee is charged once per
// tier, so it is capped at 50.
func (p *Platform) SetReferrerTradeFee(caller models.Address, fee uint64) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	if fee > 50 {
		return ErrFeeTooHigh
	}
	p.referrerTradeFee = fee
	return nil
}

// OrderAmount returns the remaining amount of an order, including orders from
// rounds that already ended.
func (p *Platform) OrderAmount(orderID uint64) (*uint256.Int, error) {
	if orderID >= uint64(len(p.orders)) {
		return nil, ErrOrderNotFound
	}
	return p.orders[orderID].Amount.Clone(), nil
}

// Order returns a snapshot of an order by id, active or not.
func (p *Platform) Order(orderID uint64) (models.Order, error) {
	if orderID >= uint64(len(p.orders)) {
		return models.Order{}, ErrOrderNotFound
	}
	order := p.orders[orderID]
	copied := *order
	copied.Amount = order.Amount.Clone()
	copied.Price = order.Price.Clone()
	return copied, nil
}

// ActiveOrders returns a snapshot of the current trade round's active orders.
func (p *Platform) ActiveOrders() []models.Order {
	var snapshot []models.Order
	for _, order := range p.orders {
		if !order.Active || order.Round != p.tradeSeq {
			continue
		}
		copied := *order
		copied.Amount = order.Amount.Clone()
		copied.Price = order.Price.Clone()
		snapshot = append(snapshot, copied)
	}
	return snapshot
}

func (p *Platform) Address() models.Address { return p.addr }
func (p *Platform) Owner() models.Address   { return p.owner }
func (p *Platform) Round() models.Round     { return p.round }

func (p *Platform) RoundDeadline() time.Time      { return p.roundDeadline }
func (p *Platform) RoundDuration() time.Duration  { return p.roundDuration }
func (p *Platform) FirstReferrerSaleFee() uint64  { return p.firstReferrerSaleFee }
func (p *Platform) SecondReferrerSaleFee() uint64 { return p.secondReferrerSaleFee }
func (p *Platform) ReferrerTradeFee() uint64      { return p.referrerTradeFee }

func (p *Platform) CurrentTokenPrice() *uint256.Int { return p.currentTokenPrice.Clone() }
func (p *Platform) TokensIssued() *uint256.Int      { return p.tokensIssued.Clone() }
func (p *Platform) TokensSold() *uint256.Int        { return p.tokensSold.Clone() }
func (p *Platform) TradeVolume() *uint256.Int       { return p.tradeVolume.Clone() }
func (p *Platform) Treasury() *uint256.Int          { return p.treasury.Clone() }
