package staking

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimarefev/acdm-platform/internal/models"
	"github.com/maksimarefev/acdm-platform/internal/token"
)

const (
	minter      = models.Address("0x3000000000000000000000000000000000000001")
	owner       = models.Address("0x3000000000000000000000000000000000000002")
	alice       = models.Address("0x3000000000000000000000000000000000000003")
	bob         = models.Address("0x3000000000000000000000000000000000000004")
	stakingAddr = models.Address("0x3000000000000000000000000000000000000005")
	daoAddr     = models.Address("0x3000000000000000000000000000000000000006")
)

const (
	testRewardPercentage = 10
	testRewardPeriod     = time.Hour
	testTimeout          = 30 * time.Minute
)

type fakeDAO struct {
	participants map[models.Address]bool
}

func (d *fakeDAO) IsParticipant(account models.Address) bool {
	return d.participants[account]
}

type fixture struct {
	clock   *clock.Mock
	lp      *token.Token
	reward  *token.Token
	dao     *fakeDAO
	ledger  *Ledger
}

func newFixture(t *testing.T) *fixture {
	clk := clock.NewMock()

	lp := token.New("lp", 18)
	require.NoError(t, lp.Init(minter))
	reward := token.New("xxx", 18)
	require.NoError(t, reward.Init(minter))

	dao := &fakeDAO{participants: make(map[models.Address]bool)}
	ledger, err := New(stakingAddr, owner, lp, reward,
		testRewardPercentage, testRewardPeriod, testTimeout, daoAddr, dao, clk)
	require.NoError(t, err)

	// Fund the participants and the reward pool.
	require.NoError(t, lp.Mint(minter, uint256.NewInt(1000), alice))
	require.NoError(t, lp.Mint(minter, uint256.NewInt(1000), bob))
	require.NoError(t, reward.Mint(minter, uint256.NewInt(1_000_000), stakingAddr))
	lp.Approve(alice, stakingAddr, uint256.NewInt(1000))
	lp.Approve(bob, stakingAddr, uint256.NewInt(1000))

	return &fixture{clock: clk, lp: lp, reward: reward, dao: dao, ledger: ledger}
}

func TestNew_Validation(t *testing.T) {
	clk := clock.NewMock()
	lp := token.New("lp", 18)
	reward := token.New("xxx", 18)

	_, err := New(stakingAddr, owner, lp, reward, 0, time.Hour, time.Hour, daoAddr, nil, clk)
	assert.ErrorIs(t, err, ErrZeroPercentage)

	_, err = New(stakingAddr, owner, lp, reward, 101, time.Hour, time.Hour, daoAddr, nil, clk)
	assert.ErrorIs(t, err, ErrPercentageTooHigh)

	_, err = New(stakingAddr, owner, lp, reward, 10, 0, time.Hour, daoAddr, nil, clk)
	assert.ErrorIs(t, err, ErrZeroRewardPeriod)
}

func TestLedger_Stake(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ledger.Stake(alice, uint256.NewInt(0)), ErrZeroAmount)

	assert.NoError(t, f.ledger.Stake(alice, uint256.NewInt(400)))
	assert.Equal(t, uint256.NewInt(400), f.ledger.GetStake(alice))
	assert.Equal(t, uint256.NewInt(400), f.ledger.TotalStake())
	assert.Equal(t, uint256.NewInt(600), f.lp.BalanceOf(alice))

	assert.NoError(t, f.ledger.Stake(bob, uint256.NewInt(100)))
	assert.Equal(t, uint256.NewInt(500), f.ledger.TotalStake())

	// Exceeds the remaining allowance-covered balance.
	err := f.ledger.Stake(alice, uint256.NewInt(700))
	assert.ErrorIs(t, err, models.ErrTransferFailed)
}

func TestLedger_Unstake(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ledger.Unstake(alice), ErrNothingAtStake)

	require.NoError(t, f.ledger.Stake(alice, uint256.NewInt(400)))

	assert.ErrorIs(t, f.ledger.Unstake(alice), ErrTimeoutNotMet)

	f.clock.Add(testTimeout)
	f.dao.participants[alice] = true
	assert.ErrorIs(t, f.ledger.Unstake(alice), ErrGovernanceParticipant)

	f.dao.participants[alice] = false
	assert.NoError(t, f.ledger.Unstake(alice))
	assert.Equal(t, uint256.NewInt(1000), f.lp.BalanceOf(alice))
	assert.Equal(t, uint256.NewInt(0), f.ledger.GetStake(alice))
	assert.Equal(t, uint256.NewInt(0), f.ledger.TotalStake())

	assert.ErrorIs(t, f.ledger.Unstake(alice), ErrNothingAtStake)
}

func TestLedger_UnstakeBanksEarnedReward(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ledger.Stake(alice, uint256.NewInt(400)))
	f.clock.Add(testRewardPeriod)

	assert.NoError(t, f.ledger.Unstake(alice))

	// The period that completed before withdrawal stays claimable.
	assert.NoError(t, f.ledger.Claim(alice))
	assert.Equal(t, uint256.NewInt(40), f.reward.BalanceOf(alice))
}

func TestLedger_Claim(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ledger.Claim(alice), ErrNoReward)

	require.NoError(t, f.ledger.Stake(alice, uint256.NewInt(400)))

	// The reward period has not elapsed yet.
	assert.ErrorIs(t, f.ledger.Claim(alice), ErrNoReward)

	f.clock.Add(testRewardPeriod)
	assert.NoError(t, f.ledger.Claim(alice))
	assert.Equal(t, uint256.NewInt(40), f.reward.BalanceOf(alice))

	// The reward clock restarted on claim.
	assert.ErrorIs(t, f.ledger.Claim(alice), ErrNoReward)

	f.clock.Add(testRewardPeriod)
	assert.NoError(t, f.ledger.Claim(alice))
	assert.Equal(t, uint256.NewInt(80), f.reward.BalanceOf(alice))
}

func TestLedger_Setters(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ledger.SetRewardPercentage(alice, 5), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.SetRewardPercentage(owner, 0), ErrZeroPercentage)
	assert.ErrorIs(t, f.ledger.SetRewardPercentage(owner, 101), ErrPercentageTooHigh)
	assert.NoError(t, f.ledger.SetRewardPercentage(owner, 5))
	assert.Equal(t, uint64(5), f.ledger.RewardPercentage())

	assert.ErrorIs(t, f.ledger.SetRewardPeriod(alice, time.Minute), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.SetRewardPeriod(owner, 0), ErrZeroRewardPeriod)
	assert.NoError(t, f.ledger.SetRewardPeriod(owner, time.Minute))
	assert.Equal(t, time.Minute, f.ledger.RewardPeriod())

	assert.ErrorIs(t, f.ledger.SetStakeWithdrawalTimeout(owner, time.Minute), ErrNotDAO)
	assert.NoError(t, f.ledger.SetStakeWithdrawalTimeout(daoAddr, time.Minute))
	assert.Equal(t, time.Minute, f.ledger.StakeWithdrawalTimeout())
}

func TestLedger_TransferOwnership(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ledger.TransferOwnership(alice, bob), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.TransferOwnership(owner, models.ZeroAddress), models.ErrZeroAddress)

	assert.NoError(t, f.ledger.TransferOwnership(owner, alice))
	assert.Equal(t, alice, f.ledger.Owner())
	assert.NoError(t, f.ledger.SetRewardPercentage(alice, 7))
}

func TestLedger_Call(t *testing.T) {
	f := newFixture(t)

	data, err := models.EncodeCall("setStakeWithdrawalTimeout", uint64(90))
	require.NoError(t, err)

	// Only a call carrying the DAO's address may change the timeout.
	assert.ErrorIs(t, f.ledger.Call(owner, data), ErrNotDAO)
	assert.NoError(t, f.ledger.Call(daoAddr, data))
	assert.Equal(t, 90*time.Second, f.ledger.StakeWithdrawalTimeout())

	data, err = models.EncodeCall("setRewardPercentage", uint64(20))
	require.NoError(t, err)
	assert.NoError(t, f.ledger.Call(owner, data))
	assert.Equal(t, uint64(20), f.ledger.RewardPercentage())

	data, err = models.EncodeCall("burnEverything")
	require.NoError(t, err)
	assert.Error(t, f.ledger.Call(daoAddr, data))
}
