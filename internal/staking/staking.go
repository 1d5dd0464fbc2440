package staking

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

var (
	ErrZeroAmount            = errors.New("amount can't be 0")
	ErrNothingAtStake        = errors.New("the caller has nothing at stake")
	ErrTimeoutNotMet         = errors.New("timeout is not met")
	ErrGovernanceParticipant = errors.New("the caller is participating in governance")
	ErrNoReward              = errors.New("no reward for the caller")
	ErrNotOwner              = errors.New("caller is not the owner")
	ErrNotDAO                = errors.New("caller is not the DAO")
	ErrZeroPercentage        = errors.New("percentage can not be 0")
	ErrPercentageTooHigh     = errors.New("percentage can not exceed 100")
	ErrZeroRewardPeriod      = errors.New("reward period can not be zero")
)

// DAO is the governance capability the ledger consumes to block withdrawals
// of accounts with open votes.
type DAO interface {
	IsParticipant(models.Address) bool
}

// Token is the fungible-token capability the ledger moves funds through.
type Token interface {
	Transfer(from, to models.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to models.Address, amount *uint256.Int) error
}

// Ledger tracks per-account stakes against a staking token and pays rewards
// in a separate reward token. The withdrawal timeout is mutable only through
// the DAO.
type Ledger struct {
	addr    models.Address
	owner   models.Address
	daoAddr models.Address
	dao     DAO
	clock   clock.Clock

	stakingToken Token
	rewardToken  Token

	rewardPercentage       uint64
	rewardPeriod           time.Duration
	stakeWithdrawalTimeout time.Duration

	total  *uint256.Int
	stakes map[models.Address]*models.Stake
}

// New creates a fully bound ledger. addr is the ledger's own token account.
func New(
	addr, owner models.Address,
	stakingToken, rewardToken Token,
	rewardPercentage uint64,
	rewardPeriod, stakeWithdrawalTimeout time.Duration,
	daoAddr models.Address, dao DAO,
	clk clock.Clock,
) (*Ledger, error) {
	if rewardPercentage == 0 {
		return nil, ErrZeroPercentage
	}
	if rewardPercentage > 100 {
		return nil, ErrPercentageTooHigh
	}
	if rewardPeriod <= 0 {
		return nil, ErrZeroRewardPeriod
	}
	return &Ledger{
		addr:                   addr,
		owner:                  owner,
		daoAddr:                daoAddr,
		dao:                    dao,
		clock:                  clk,
		stakingToken:           stakingToken,
		rewardToken:            rewardToken,
		rewardPercentage:       rewardPercentage,
		rewardPeriod:           rewardPeriod,
		stakeWithdrawalTimeout: stakeWithdrawalTimeout,
		total:                  uint256.NewInt(0),
		stakes:                 make(map[models.Address]*models.Stake),
	}, nil
}

// Stake pulls amount of the staking token from the caller into the ledger.
// The reward clock starts on the first deposit only; every deposit restarts
// the withdrawal lock.
func (l *Ledger) Stake(caller models.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if err := l.stakingToken.TransferFrom(l.addr, caller, l.addr, amount); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	now := l.clock.Now()
	s, ok := l.stakes[caller]
	if !ok {
		s = &models.Stake{
			Balance:       uint256.NewInt(0),
			RewardAccrued: uint256.NewInt(0),
			LastClaim:     now,
		}
		l.stakes[caller] = s
	}
	s.Balance.Add(s.Balance, amount)
	s.LastAction = now
	l.total.Add(l.total, amount)
	return nil
}

// Unstake returns the caller's full balance. Rejected while the withdrawal
// timeout is running or the caller has an open governance vote. A reward
// period completed before withdrawal is banked for a later claim.
func (l *Ledger) Unstake(caller models.Address) error {
	s, ok := l.stakes[caller]
	if !ok || s.Balance.IsZero() {
		return ErrNothingAtStake
	}
	now := l.clock.Now()
	if now.Before(s.LastAction.Add(l.stakeWithdrawalTimeout)) {
		return ErrTimeoutNotMet
	}
	if l.dao != nil && l.dao.IsParticipant(caller) {
		return ErrGovernanceParticipant
	}

	if !now.Before(s.LastClaim.Add(l.rewardPeriod)) {
		s.RewardAccrued.Add(s.RewardAccrued, l.rewardFor(s.Balance))
		s.LastClaim = now
	}

	balance := s.Balance.Clone()
	if err := l.stakingToken.Transfer(l.addr, caller, balance); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	l.total.Sub(l.total, balance)
	s.Balance.Clear()
	return nil
}

// Claim pays out one reward period's worth plus anything banked by Unstake,
// then restarts the reward clock.
func (l *Ledger) Claim(caller models.Address) error {
	s, ok := l.stakes[caller]
	if !ok {
		return ErrNoReward
	}
	now := l.clock.Now()

	reward := s.RewardAccrued.Clone()
	periodElapsed := !now.Before(s.LastClaim.Add(l.rewardPeriod))
	if periodElapsed && !s.Balance.IsZero() {
		reward.Add(reward, l.rewardFor(s.Balance))
	}
	if reward.IsZero() {
		return ErrNoReward
	}

	if err := l.rewardToken.Transfer(l.addr, caller, reward); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}
	s.RewardAccrued.Clear()
	s.LastClaim = now
	s.LastAction = now
	return nil
}

func (l *Ledger) rewardFor(balance *uint256.Int) *uint256.Int {
	reward := new(uint256.Int).Mul(balance, uint256.NewInt(l.rewardPercentage))
	return reward.Div(reward, uint256.NewInt(100))
}

// SetRewardPercentage changes the per-period reward percentage. Owner-only.
func (l *Ledger) SetRewardPercentage(caller models.Address, percentage uint64) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if percentage == 0 {
		return ErrZeroPercentage
	}
	if percentage > 100 {
		return ErrPercentageTooHigh
	}
	l.rewardPercentage = percentage
	return nil
}

// SetRewardPeriod changes the reward accrual period. Owner-only.
func (l *Ledger) SetRewardPeriod(caller models.Address, period time.Duration) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if period <= 0 {
		return ErrZeroRewardPeriod
	}
	l.rewardPeriod = period
	return nil
}

// SetStakeWithdrawalTimeout changes the withdrawal lock. This is the one
// parameter mutable exclusively through a governance proposal.
func (l *Ledger) SetStakeWithdrawalTimeout(caller models.Address, timeout time.Duration) error {
	if caller != l.daoAddr {
		return ErrNotDAO
	}
	l.stakeWithdrawalTimeout = timeout
	return nil
}

// TransferOwnership hands the owner role to a new address.
func (l *Ledger) TransferOwnership(caller, newOwner models.Address) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if newOwner.IsZero() {
		return models.ErrZeroAddress
	}
	l.owner = newOwner
	return nil
}

// GetStake returns the staked balance of an account.
func (l *Ledger) GetStake(account models.Address) *uint256.Int {
	if s, ok := l.stakes[account]; ok {
		return s.Balance.Clone()
	}
	return uint256.NewInt(0)
}

// TotalStake returns the sum of all staked balances.
func (l *Ledger) TotalStake() *uint256.Int {
	return l.total.Clone()
}

func (l *Ledger) Owner() models.Address       { return l.owner }
func (l *Ledger) DAO() models.Address         { return l.daoAddr }
func (l *Ledger) RewardPercentage() uint64    { return l.rewardPercentage }
func (l *Ledger) RewardPeriod() time.Duration { return l.rewardPeriod }

func (l *Ledger) StakeWithdrawalTimeout() time.Duration {
	return l.stakeWithdrawalTimeout
}

// Call dispatches a forwarded governance call. The caller address is the
// invoking component, so DAO-gated setters succeed only through the DAO.
func (l *Ledger) Call(caller models.Address, data []byte) error {
	call, err := models.DecodeCall(data)
	if err != nil {
		return err
	}
	switch call.Method {
	case "setStakeWithdrawalTimeout":
		var seconds uint64
		if err := call.Arg(0, &seconds); err != nil {
			return err
		}
		return l.SetStakeWithdrawalTimeout(caller, time.Duration(seconds)*time.Second)
	case "setRewardPercentage":
		var percentage uint64
		if err := call.Arg(0, &percentage); err != nil {
			return err
		}
		return l.SetRewardPercentage(caller, percentage)
	case "setRewardPeriod":
		var seconds uint64
		if err := call.Arg(0, &seconds); err != nil {
			return err
		}
		return l.SetRewardPeriod(caller, time.Duration(seconds)*time.Second)
	default:
		return fmt.Errorf("unknown method %q", call.Method)
	}
}
