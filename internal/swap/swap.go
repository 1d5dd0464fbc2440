package swap

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"

	"github.com/maksimarefev/acdm-platform/internal/models"
	"github.com/maksimarefev/acdm-platform/internal/token"
)

var (
	ErrExpired          = errors.New("deadline is in the past")
	ErrUnknownToken     = errors.New("token is not registered with the router")
	ErrBadPath          = errors.New("path must be [WETH, token]")
	ErrNoLiquidity      = errors.New("pool has no liquidity")
	ErrSlippage         = errors.New("output is below the requested minimum")
	ErrLiquidityBounds  = errors.New("deposit is outside the requested bounds")
	ErrNothingDeposited = errors.New("deposit amounts can't be zero")
)

// Ledger is the token capability the router consumes.
type Ledger interface {
	BalanceOf(models.Address) *uint256.Int
	Transfer(from, to models.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to models.Address, amount *uint256.Int) error
}

type pool struct {
	token        Ledger
	lp           *token.Token
	reserveETH   *uint256.Int
	reserveToken *uint256.Int
}

// Router is a constant-product ETH/token liquidity venue. One pool per
// registered token; liquidity providers receive an LP token per pool.
type Router struct {
	addr  models.Address
	weth  models.Address
	eth   Ledger
	clock clock.Clock
	pools map[models.Address]*pool
}

// New creates a router holding no pools. addr is the router's own account on
// the ether ledger, weth the address reported by WETH().
func New(addr, weth models.Address, eth Ledger, clk clock.Clock) *Router {
	return &Router{
		addr:  addr,
		weth:  weth,
		eth:   eth,
		clock: clk,
		pools: make(map[models.Address]*pool),
	}
}

// WETH returns the wrapped-ether address used as the first hop of swap paths.
func (r *Router) WETH() models.Address {
	return r.weth
}

// RegisterToken creates an empty pool for the token and returns its LP token.
func (r *Router) RegisterToken(addr models.Address, ledger Ledger) (*token.Token, error) {
	if _, ok := r.pools[addr]; ok {
		return nil, fmt.Errorf("pool for %s already exists", addr)
	}
	lp := token.New("UNI-V2:"+string(addr), 18)
	if err := lp.Init(r.addr); err != nil {
		return nil, err
	}
	r.pools[addr] = &pool{
		token:        ledger,
		lp:           lp,
		reserveETH:   uint256.NewInt(0),
		reserveToken: uint256.NewInt(0),
	}
	return lp, nil
}

// AddLiquidityETH deposits value wei and up to amountTokenDesired tokens into
// the pool and mints LP tokens to to. Returns (tokenIn, ethIn, liquidity).
func (r *Router) AddLiquidityETH(
	caller models.Address,
	tokenAddr models.Address,
	amountTokenDesired, amountTokenMin, amountETHMin *uint256.Int,
	to models.Address,
	deadline time.Time,
	value *uint256.Int,
) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	if r.clock.Now().After(deadline) {
		return nil, nil, nil, ErrExpired
	}
	p, ok := r.pools[tokenAddr]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownToken, tokenAddr)
	}
	if value.IsZero() || amountTokenDesired.IsZero() {
		return nil, nil, nil, ErrNothingDeposited
	}

	tokenIn := amountTokenDesired.Clone()
	ethIn := value.Clone()
	if !p.reserveETH.IsZero() {
		// Keep the pool ratio: tokenIn = value * reserveToken / reserveETH.
		tokenIn = new(uint256.Int).Mul(value, p.reserveToken)
		tokenIn.Div(tokenIn, p.reserveETH)
		if tokenIn.Gt(amountTokenDesired) || tokenIn.Lt(amountTokenMin) {
			return nil, nil, nil, ErrLiquidityBounds
		}
	}
	if ethIn.Lt(amountETHMin) {
		return nil, nil, nil, ErrLiquidityBounds
	}

	if err := r.eth.Transfer(caller, r.addr, ethIn); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	if err := p.token.TransferFrom(r.addr, caller, r.addr, tokenIn); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	liquidity := ethIn.Clone()
	if !p.reserveETH.IsZero() {
		liquidity.Mul(ethIn, p.lp.TotalSupply())
		liquidity.Div(liquidity, p.reserveETH)
	}
	if err := p.lp.Mint(r.addr, liquidity, to); err != nil {
		return nil, nil, nil, err
	}

	p.reserveETH.Add(p.reserveETH, ethIn)
	p.reserveToken.Add(p.reserveToken, tokenIn)
	return tokenIn, ethIn, liquidity, nil
}

// SwapExactETHForTokens swaps value wei along path for as many tokens as the
// pool yields, sending the output to to. Returns the [in, out] amounts.
func (r *Router) SwapExactETHForTokens(
	caller models.Address,
	value *uint256.Int,
	amountOutMin *uint256.Int,
	path []models.Address,
	to models.Address,
	deadline time.Time,
) ([]*uint256.Int, error) {
	if r.clock.Now().After(deadline) {
		return nil, ErrExpired
	}
	if len(path) != 2 || path[0] != r.weth {
		return nil, ErrBadPath
	}
	p, ok := r.pools[path[1]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, path[1])
	}
	if p.reserveETH.IsZero() || p.reserveToken.IsZero() {
		return nil, ErrNoLiquidity
	}

	// Constant product: out = reserveToken * in / (reserveETH + in).
	newReserveETH := new(uint256.Int).Add(p.reserveETH, value)
	out := new(uint256.Int).Mul(p.reserveToken, value)
	out.Div(out, newReserveETH)
	if out.Lt(amountOutMin) {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrSlippage, out, amountOutMin)
	}

	if err := r.eth.Transfer(caller, r.addr, value); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	if err := p.token.Transfer(r.addr, to, out); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	p.reserveETH = newReserveETH
	p.reserveToken.Sub(p.reserveToken, out)
	return []*uint256.Int{value.Clone(), out.Clone()}, nil
}
