package platform

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

var (
	ErrNotInitialized        = errors.New("platform is not initialized")
	ErrAlreadyInitialized    = errors.New("platform is already initialized")
	ErrWrongRound            = errors.New("wrong round")
	ErrRoundOver             = errors.New("round is over")
	ErrNotReadyYet           = errors.New("not ready yet")
	ErrDeadlineNotMet        = errors.New("round deadline is not met")
	ErrInsufficientValue     = errors.New("too low value")
	ErrNoMoreTokens          = errors.New("no more tokens")
	ErrZeroAmount            = errors.New("amount can't be 0")
	ErrPriceTooLow           = errors.New("price is too low")
	ErrInsufficientBalance   = errors.New("not enough balance")
	ErrInsufficientAllowance = errors.New("not enough allowance")
	ErrOrderNotFound         = errors.New("order does not exist")
	ErrNotOrderOwner         = errors.New("not the order owner")
	ErrNotDAO                = errors.New("caller is not the DAO")
	ErrNotOwner              = errors.New("caller is not the owner")
	ErrZeroValue             = errors.New("can't be zero")
	ErrFeeTooHigh            = errors.New("fee can not exceed 100")
)

// Sale price recurrence: next = prev*103/100 + 0.000004 ether.
const priceIncrementWei = 4_000_000_000_000

// swapDeadline bounds the router call made while spending fees.
const swapDeadline = 15 * time.Second

// Token is the tradable-token capability the platform consumes.
type Token interface {
	Decimals() uint8
	BalanceOf(models.Address) *uint256.Int
	Allowance(owner, spender models.Address) *uint256.Int
	Transfer(from, to models.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to models.Address, amount *uint256.Int) error
	Mint(caller models.Address, amount *uint256.Int, to models.Address) error
	Burn(from models.Address, amount *uint256.Int) error
}

// Burnable is the reward-token capability used by the buy-and-burn path.
type Burnable interface {
	Burn(from models.Address, amount *uint256.Int) error
}

// Ether is the wei ledger every payment settles through.
type Ether interface {
	BalanceOf(models.Address) *uint256.Int
	Transfer(from, to models.Address, amount *uint256.Int) error
}

// Router is the external liquidity venue used to buy the reward token.
type Router interface {
	WETH() models.Address
	SwapExactETHForTokens(caller models.Address, value, amountOutMin *uint256.Int, path []models.Address, to models.Address, deadline time.Time) ([]*uint256.Int, error)
}

// Platform alternates Sale and Trade rounds over a fixed-supply token,
// custodies trade-round orders and routes fees to referrers and the treasury.
// It is created without the tradable token bound and rejects round-sensitive
// operations until Init.
type Platform struct {
	addr    models.Address
	owner   models.Address
	daoAddr models.Address
	xxxAddr models.Address
	clock   clock.Clock

	eth       Ether
	router    Router
	xxxToken  Burnable
	acdmToken Token

	roundDuration         time.Duration
	firstReferrerSaleFee  uint64
	secondReferrerSaleFee uint64
	referrerTradeFee      uint64

	round             models.Round
	roundDeadline     time.Time
	tradeSeq          uint64
	currentTokenPrice *uint256.Int
	tokensIssued      *uint256.Int // decimal units minted for the current sale
	tokensSold        *uint256.Int // decimal units sold within the current sale
	tradeVolume       *uint256.Int // wei settled within the current trade round
	treasury          *uint256.Int

	orders   []*models.Order
	accounts map[models.Address]*models.Account
}

// New creates a platform with the collaborators that never change. The
// tradable token and the opening sale are bound later via Init.
func New(
	addr, owner models.Address,
	eth Ether,
	router Router,
	xxxAddr models.Address, xxxToken Burnable,
	daoAddr models.Address,
	roundDuration time.Duration,
	firstReferrerSaleFee, secondReferrerSaleFee, referrerTradeFee uint64,
	clk clock.Clock,
) (*Platform, error) {
	if roundDuration <= 0 {
		return nil, fmt.Errorf("round duration %w", ErrZeroValue)
	}
	if firstReferrerSaleFee > 100 || secondReferrerSaleFee > 100 ||
		firstReferrerSaleFee+secondReferrerSaleFee > 100 {
		return nil, ErrFeeTooHigh
	}
	// The trade fee is charged once per referral tier.
	if referrerTradeFee > 50 {
		return nil, ErrFeeTooHigh
	}
	return &Platform{
		addr:                  addr,
		owner:                 owner,
		daoAddr:               daoAddr,
		xxxAddr:               xxxAddr,
		clock:                 clk,
		eth:                   eth,
		router:                router,
		xxxToken:              xxxToken,
		roundDuration:         roundDuration,
		firstReferrerSaleFee:  firstReferrerSaleFee,
		secondReferrerSaleFee: secondReferrerSaleFee,
		referrerTradeFee:      referrerTradeFee,
		currentTokenPrice:     uint256.NewInt(0),
		tokensIssued:          uint256.NewInt(0),
		tokensSold:            uint256.NewInt(0),
		tradeVolume:           uint256.NewInt(0),
		treasury:              uint256.NewInt(0),
		accounts:              make(map[models.Address]*models.Account),
	}, nil
}

// Init binds the tradable token, mints the opening supply to the platform and
// starts the first sale round. One-time. initialSupply is in whole tokens,
// initialPrice in wei per whole token.
func (p *Platform) Init(acdmToken Token, initialSupply uint64, initialPrice *uint256.Int) error {
	if p.acdmToken != nil {
		return ErrAlreadyInitialized
	}
	if acdmToken == nil {
		return models.ErrZeroAddress
	}
	if initialPrice == nil || initialPrice.Lt(pow10(acdmToken.Decimals())) {
		return ErrPriceTooLow
	}

	issued := new(uint256.Int).Mul(uint256.NewInt(initialSupply), pow10(acdmToken.Decimals()))
	if err := acdmToken.Mint(p.addr, issued, p.addr); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	p.acdmToken = acdmToken
	p.currentTokenPrice = initialPrice.Clone()
	p.tokensIssued = issued
	p.round = models.RoundSale
	p.roundDeadline = p.clock.Now().Add(p.roundDuration)
	return nil
}

// StartTradeRound closes the sale round, burning whatever did not sell. The
// switch is allowed at the deadline, or early on a full sellout.
func (p *Platform) StartTradeRound() ([]models.Event, error) {
	if p.acdmToken == nil {
		return nil, ErrNotInitialized
	}
	if p.round != models.RoundSale {
		return nil, fmt.Errorf("%w: current round is TRADE", ErrWrongRound)
	}
	soldOut := !p.tokensSold.Lt(p.tokensIssued)
	if p.clock.Now().Before(p.roundDeadline) && !soldOut {
		return nil, ErrNotReadyYet
	}

	unsold := new(uint256.Int).Sub(p.tokensIssued, p.tokensSold)
	if !unsold.IsZero() {
		if err := p.acdmToken.Burn(p.addr, unsold); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
		}
	}

	p.round = models.RoundTrade
	p.tradeSeq++
	p.tradeVolume.Clear()
	p.roundDeadline = p.clock.Now().Add(p.roundDuration)
	return []models.Event{models.RoundSwitch{Round: models.RoundTrade}}, nil
}

// StartSaleRound closes the trade round and derives the next sale's price and
// supply from the settled trade volume. Zero volume carries price and supply
// over without minting.
func (p *Platform) StartSaleRound() ([]models.Event, error) {
	if p.acdmToken == nil {
		return nil, ErrNotInitialized
	}
	if p.round != models.RoundTrade {
		return nil, fmt.Errorf("%w: current round is SALE", ErrWrongRound)
	}
	if p.clock.Now().Before(p.roundDeadline) {
		return nil, ErrDeadlineNotMet
	}

	if !p.tradeVolume.IsZero() {
		price := new(uint256.Int).Mul(p.currentTokenPrice, uint256.NewInt(103))
		price.Div(price, uint256.NewInt(100))
		price.Add(price, uint256.NewInt(priceIncrementWei))

		issuedWhole := new(uint256.Int).Div(p.tradeVolume, price)
		issued := issuedWhole.Mul(issuedWhole, pow10(p.acdmToken.Decimals()))
		if !issued.IsZero() {
			if err := p.acdmToken.Mint(p.addr, issued, p.addr); err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
			}
		}
		p.currentTokenPrice = price
		p.tokensIssued = issued
	}

	p.round = models.RoundSale
	p.tokensSold.Clear()
	p.roundDeadline = p.clock.Now().Add(p.roundDuration)
	return []models.Event{models.RoundSwitch{Round: models.RoundSale}}, nil
}

// Buy sells tokens from the current sale supply at the platform price. The
// fractional remainder of value is refunded; referral fees come out of the
// spent amount.
func (p *Platform) Buy(caller models.Address, value *uint256.Int) ([]models.Event, error) {
	if p.acdmToken == nil {
		return nil, ErrNotInitialized
	}
	if p.round != models.RoundSale {
		return nil, fmt.Errorf("%w: not a 'Sale' round", ErrWrongRound)
	}
	if !p.clock.Now().Before(p.roundDeadline) {
		return nil, ErrRoundOver
	}

	weiPerDecimal := p.weiPerDecimal(p.currentTokenPrice)
	amount := new(uint256.Int).Div(value, weiPerDecimal)
	if amount.IsZero() {
		return nil, ErrInsufficientValue
	}
	sold := new(uint256.Int).Add(p.tokensSold, amount)
	if sold.Gt(p.tokensIssued) {
		return nil, ErrNoMoreTokens
	}

	spent := new(uint256.Int).Mul(amount, weiPerDecimal)
	refund := new(uint256.Int).Sub(value, spent)

	if err := p.eth.Transfer(caller, p.addr, value); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	if err := p.acdmToken.Transfer(p.addr, caller, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	if !refund.IsZero() {
		if err := p.eth.Transfer(p.addr, caller, refund); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
		}
	}

	events := []models.Event{models.SaleOrder{Buyer: caller, Amount: amount.Clone()}}
	first, second := p.referrersOf(caller)
	for _, payout := range []struct {
		referrer models.Address
		fee      uint64
	}{
		{first, p.firstReferrerSaleFee},
		{second, p.secondReferrerSaleFee},
	} {
		if payout.referrer.IsZero() {
			continue
		}
		fee := percentage(spent, payout.fee)
		if fee.IsZero() {
			continue
		}
		if err := p.eth.Transfer(p.addr, payout.referrer, fee); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
		}
		events = append(events, models.ReferralPayment{Referrer: payout.referrer, Amount: fee})
	}

	p.tokensSold = sold
	return events, nil
}

// PutOrder custodies amount tokens and opens a sell order at price wei per
// whole token.
func (p *Platform) PutOrder(caller models.Address, amount, price *uint256.Int) ([]models.Event, error) {
	if p.acdmToken == nil {
		return nil, ErrNotInitialized
	}
	if p.round != models.RoundTrade {
		return nil, fmt.Errorf("%w: not a 'Trade' round", ErrWrongRound)
	}
	if !p.clock.Now().Before(p.roundDeadline) {
		return nil, ErrRoundOver
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if price == nil || price.Lt(pow10(p.acdmToken.Decimals())) {
		return nil, ErrPriceTooLow
	}
	if p.acdmToken.BalanceOf(caller).Lt(amount) {
		return nil, ErrInsufficientBalance
	}
	if p.acdmToken.Allowance(caller, p.addr).Lt(amount) {
		return nil, ErrInsufficientAllowance
	}
	if err := p.acdmToken.TransferFrom(p.addr, caller, p.addr, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	order := &models.Order{
		ID:        uint64(len(p.orders)),
		Owner:     caller,
		Amount:    amount.Clone(),
		Price:     price.Clone(),
		Active:    true,
		Round:     p.tradeSeq,
		CreatedAt: p.clock.Now(),
	}
	p.orders = append(p.orders, order)
	return []models.Event{models.PutOrder{
		ID:     order.ID,
		Owner:  order.Owner,
		Amount: order.Amount.Clone(),
		Price:  order.Price.Clone(),
	}}, nil
}

// CancelOrder returns the custodied remainder to the order owner and
// deactivates the order.
func (p *Platform) CancelOrder(caller models.Address, orderID uint64) ([]models.Event, error) {
	order, err := p.activeOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Owner != caller {
		return nil, ErrNotOrderOwner
	}

	if err := p.acdmToken.Transfer(p.addr, order.Owner, order.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	order.Active = false
	return []models.Event{models.CancelOrder{ID: orderID}}, nil
}

// RedeemOrder buys up to the order's remaining amount with the given value.
// The seller receives the spent amount net of the two trade-fee tiers; an
// absent referrer's tier accrues to the treasury. Excess value is refunded.
func (p *Platform) RedeemOrder(caller models.Address, orderID uint64, value *uint256.Int) ([]models.Event, error) {
	order, err := p.activeOrder(orderID)
	if err != nil {
		return nil, err
	}

	weiPerDecimal := p.weiPerDecimal(order.Price)
	bought := new(uint256.Int).Div(value, weiPerDecimal)
	if bought.IsZero() {
		return nil, ErrInsufficientValue
	}
	if bought.Gt(order.Amount) {
		bought.Set(order.Amount)
	}

	spent := new(uint256.Int).Mul(bought, weiPerDecimal)
	refund := new(uint256.Int).Sub(value, spent)
	fee := percentage(spent, p.referrerTradeFee)
	proceeds := new(uint256.Int).Sub(spent, fee)
	proceeds.Sub(proceeds, fee)

	if err := p.eth.Transfer(caller, p.addr, value); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	if err := p.acdmToken.Transfer(p.addr, caller, bought); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	if !refund.IsZero() {
		if err := p.eth.Transfer(p.addr, caller, refund); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
		}
	}
	if err := p.eth.Transfer(p.addr, order.Owner, proceeds); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	events := []models.Event{models.TradeOrder{ID: orderID, Redeemer: caller, Amount: bought.Clone()}}
	first, second := p.referrersOf(order.Owner)
	for _, referrer := range []models.Address{first, second} {
		if fee.IsZero() {
			break
		}
		if referrer.IsZero() {
			p.treasury.Add(p.treasury, fee)
			continue
		}
		if err := p.eth.Transfer(p.addr, referrer, fee); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
		}
		events = append(events, models.ReferralPayment{Referrer: referrer, Amount: fee.Clone()})
	}

	order.Amount.Sub(order.Amount, bought)
	if order.Amount.IsZero() {
		order.Active = false
	}
	p.tradeVolume.Add(p.tradeVolume, spent)
	return events, nil
}

// SpendFees disburses the whole treasury: straight to the owner, or swapped
// for the reward token through the router and burned. DAO-only.
func (p *Platform) SpendFees(caller models.Address, sendToOwner bool) error {
	if p.acdmToken == nil {
		return ErrNotInitialized
	}
	if caller != p.daoAddr {
		return ErrNotDAO
	}
	if p.treasury.IsZero() {
		return nil
	}

	if sendToOwner {
		if err := p.eth.Transfer(p.addr, p.owner, p.treasury); err != nil {
			return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
		}
		p.treasury.Clear()
		return nil
	}

	path := []models.Address{p.router.WETH(), p.xxxAddr}
	deadline := p.clock.Now().Add(swapDeadline)
	amounts, err := p.router.SwapExactETHForTokens(p.addr, p.treasury, uint256.NewInt(0), path, p.addr, deadline)
	if err != nil {
		return fmt.Errorf("fee swap failed: %w", err)
	}
	received := amounts[len(amounts)-1]
	if err := p.xxxToken.Burn(p.addr, received); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	p.treasury.Clear()
	return nil
}

// Call dispatches a forwarded governance call against the platform.
func (p *Platform) Call(caller models.Address, data []byte) error {
	call, err := models.DecodeCall(data)
	if err != nil {
		return err
	}
	switch call.Method {
	case "spendFees":
		var sendToOwner bool
		if err := call.Arg(0, &sendToOwner); err != nil {
			return err
		}
		return p.SpendFees(caller, sendToOwner)
	default:
		return fmt.Errorf("unknown method %q", call.Method)
	}
}

func (p *Platform) activeOrder(orderID uint64) (*models.Order, error) {
	if p.acdmToken == nil {
		return nil, ErrNotInitialized
	}
	if p.round != models.RoundTrade {
		return nil, fmt.Errorf("%w: not a 'Trade' round", ErrWrongRound)
	}
	if !p.clock.Now().Before(p.roundDeadline) {
		return nil, ErrRoundOver
	}
	if orderID >= uint64(len(p.orders)) {
		return nil, ErrOrderNotFound
	}
	order := p.orders[orderID]
	if !order.Active || order.Round != p.tradeSeq {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (p *Platform) referrersOf(account models.Address) (models.Address, models.Address) {
	acc, ok := p.accounts[account]
	if !ok || acc.Referrer.IsZero() {
		return models.ZeroAddress, models.ZeroAddress
	}
	first := acc.Referrer
	if firstAcc, ok := p.accounts[first]; ok {
		return first, firstAcc.Referrer
	}
	return first, models.ZeroAddress
}

func (p *Platform) weiPerDecimal(price *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(price, pow10(p.acdmToken.Decimals()))
}

func percentage(amount *uint256.Int, percent uint64) *uint256.Int {
	fee := new(uint256.Int).Mul(amount, uint256.NewInt(percent))
	return fee.Div(fee, uint256.NewInt(100))
}

func pow10(n uint8) *uint256.Int {
	result := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		result.Mul(result, ten)
	}
	return result
}
