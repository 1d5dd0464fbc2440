package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

const (
	minter = models.Address("0x1000000000000000000000000000000000000001")
	alice  = models.Address("0x1000000000000000000000000000000000000002")
	bob    = models.Address("0x1000000000000000000000000000000000000003")
)

func newToken(t *testing.T) *Token {
	tok := New("acdm", 6)
	assert.NoError(t, tok.Init(minter))
	return tok
}

func TestToken_Init(t *testing.T) {
	tok := New("acdm", 6)
	assert.NoError(t, tok.Init(minter))
	assert.ErrorIs(t, tok.Init(alice), ErrAlreadyInitialized)

	assert.Equal(t, "acdm", tok.Symbol())
	assert.Equal(t, uint8(6), tok.Decimals())
}

func TestToken_Mint(t *testing.T) {
	tok := newToken(t)

	err := tok.Mint(alice, uint256.NewInt(100), alice)
	assert.ErrorIs(t, err, ErrNotMinter)

	assert.NoError(t, tok.Mint(minter, uint256.NewInt(100), alice))
	assert.Equal(t, uint256.NewInt(100), tok.BalanceOf(alice))
	assert.Equal(t, uint256.NewInt(100), tok.TotalSupply())
}

func TestToken_Transfer(t *testing.T) {
	tok := newToken(t)
	assert.NoError(t, tok.Mint(minter, uint256.NewInt(100), alice))

	tests := []struct {
		name    string
		from    models.Address
		to      models.Address
		amount  uint64
		wantErr error
	}{
		{name: "Success", from: alice, to: bob, amount: 60},
		{name: "InsufficientBalance", from: alice, to: bob, amount: 50, wantErr: ErrInsufficientBalance},
		{name: "NoBalanceAtAll", from: minter, to: bob, amount: 1, wantErr: ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tok.Transfer(tt.from, tt.to, uint256.NewInt(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Equal(t, uint256.NewInt(40), tok.BalanceOf(alice))
	assert.Equal(t, uint256.NewInt(60), tok.BalanceOf(bob))
}

func TestToken_TransferFrom(t *testing.T) {
	tok := newToken(t)
	assert.NoError(t, tok.Mint(minter, uint256.NewInt(100), alice))

	err := tok.TransferFrom(bob, alice, bob, uint256.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	tok.Approve(alice, bob, uint256.NewInt(30))
	assert.Equal(t, uint256.NewInt(30), tok.Allowance(alice, bob))

	assert.NoError(t, tok.TransferFrom(bob, alice, bob, uint256.NewInt(20)))
	assert.Equal(t, uint256.NewInt(10), tok.Allowance(alice, bob))
	assert.Equal(t, uint256.NewInt(20), tok.BalanceOf(bob))

	err = tok.TransferFrom(bob, alice, bob, uint256.NewInt(20))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestToken_Burn(t *testing.T) {
	tok := newToken(t)
	assert.NoError(t, tok.Mint(minter, uint256.NewInt(100), alice))

	assert.NoError(t, tok.Burn(alice, uint256.NewInt(40)))
	assert.Equal(t, uint256.NewInt(60), tok.BalanceOf(alice))
	assert.Equal(t, uint256.NewInt(60), tok.TotalSupply())

	err := tok.Burn(alice, uint256.NewInt(100))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestToken_BalancesAreCopies(t *testing.T) {
	tok := newToken(t)
	assert.NoError(t, tok.Mint(minter, uint256.NewInt(100), alice))

	balance := tok.BalanceOf(alice)
	balance.Clear()
	assert.Equal(t, uint256.NewInt(100), tok.BalanceOf(alice))
}
