package token

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

var (
	ErrInsufficientBalance   = errors.New("not enough balance")
	ErrInsufficientAllowance = errors.New("not enough allowance")
	ErrNotMinter             = errors.New("caller is not the minter")
	ErrAlreadyInitialized    = errors.New("already initialized")
)

// Token is an in-memory fungible token ledger with allowance semantics.
// Minting is reserved to a single minter bound once via Init.
type Token struct {
	symbol     string
	decimals   uint8
	minter     models.Address
	total      *uint256.Int
	balances   map[models.Address]*uint256.Int
	allowances map[models.Address]map[models.Address]*uint256.Int
}

// New creates an empty token ledger.
func New(symbol string, decimals uint8) *Token {
	return &Token{
		symbol:     symbol,
		decimals:   decimals,
		total:      uint256.NewInt(0),
		balances:   make(map[models.Address]*uint256.Int),
		allowances: make(map[models.Address]map[models.Address]*uint256.Int),
	}
}

// Init binds the only address allowed to mint. One-time.
func (t *Token) Init(minter models.Address) error {
	if !t.minter.IsZero() {
		return ErrAlreadyInitialized
	}
	if minter.IsZero() {
		return models.ErrZeroAddress
	}
	t.minter = minter
	return nil
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// TotalSupply returns the total minted minus burned amount.
func (t *Token) TotalSupply() *uint256.Int {
	return t.total.Clone()
}

// BalanceOf returns the current balance of an account.
func (t *Token) BalanceOf(account models.Address) *uint256.Int {
	if balance, ok := t.balances[account]; ok {
		return balance.Clone()
	}
	return uint256.NewInt(0)
}

// Allowance returns the amount spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender models.Address) *uint256.Int {
	if approvals, ok := t.allowances[owner]; ok {
		if allowance, ok := approvals[spender]; ok {
			return allowance.Clone()
		}
	}
	return uint256.NewInt(0)
}

// Approve sets the spender allowance for owner, replacing any previous value.
func (t *Token) Approve(owner, spender models.Address, amount *uint256.Int) {
	approvals, ok := t.allowances[owner]
	if !ok {
		approvals = make(map[models.Address]*uint256.Int)
		t.allowances[owner] = approvals
	}
	approvals[spender] = amount.Clone()
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(from, to models.Address, amount *uint256.Int) error {
	return t.move(from, to, amount)
}

// TransferFrom moves amount between accounts using the spender's allowance.
func (t *Token) TransferFrom(spender, from, to models.Address, amount *uint256.Int) error {
	allowance := t.Allowance(from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s has allowance %s of %s, needs %s",
			ErrInsufficientAllowance, spender, allowance, t.symbol, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = allowance.Sub(allowance, amount)
	return nil
}

// Mint creates amount for to. Only the bound minter may call.
func (t *Token) Mint(caller models.Address, amount *uint256.Int, to models.Address) error {
	if caller != t.minter || caller.IsZero() {
		return ErrNotMinter
	}
	t.credit(to, amount)
	t.total.Add(t.total, amount)
	return nil
}

// Burn destroys amount from the caller's own balance.
func (t *Token) Burn(from models.Address, amount *uint256.Int) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.total.Sub(t.total, amount)
	return nil
}

func (t *Token) move(from, to models.Address, amount *uint256.Int) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

func (t *Token) debit(from models.Address, amount *uint256.Int) error {
	balance := t.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s of %s, needs %s",
			ErrInsufficientBalance, from, balance, t.symbol, amount)
	}
	t.balances[from] = balance.Sub(balance, amount)
	return nil
}

func (t *Token) credit(to models.Address, amount *uint256.Int) {
	balance := t.BalanceOf(to)
	t.balances[to] = balance.Add(balance, amount)
}
