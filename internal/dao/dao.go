package dao

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"

	"github.com/maksimarefev/acdm-platform/internal/models"
)

var (
	ErrNotInitialized       = errors.New("not initialized")
	ErrAlreadyInitialized   = errors.New("already initialized")
	ErrQuorumTooHigh        = errors.New("minimum quorum can not be > 100")
	ErrNotChairman          = errors.New("not a chairman")
	ErrNotOwner             = errors.New("caller is not the owner")
	ErrRecipientNotContract = errors.New("recipient is not a contract")
	ErrProposalNotFound     = errors.New("proposal not found")
	ErrProposalFinished     = errors.New("proposal is finished")
	ErrProposalInProgress   = errors.New("proposal is still in progress")
	ErrNotStakeholder       = errors.New("not a stakeholder")
	ErrAlreadyVoted         = errors.New("already voted")
)

// Failure reasons carried by the ProposalFailed event.
const (
	ReasonNoQuorum   = "Minimum quorum is not reached"
	ReasonNoVotes    = "No votes for proposal"
	ReasonCallFailed = "Function call failed"
)

// Staking is the stake-weight capability the engine consumes. Total stake is
// read live at resolution time, not snapshotted at proposal creation.
type Staking interface {
	GetStake(models.Address) *uint256.Int
	TotalStake() *uint256.Int
}

// Engine maintains the proposal registry and resolves proposals by quorum and
// majority, forwarding the encoded call to the target contract on success.
// It is created unbound and rejects all mutating calls until Init.
type Engine struct {
	addr     models.Address
	owner    models.Address
	chairman models.Address
	clock    clock.Clock

	minimumQuorum  uint64
	debatingPeriod time.Duration

	staking   Staking
	contracts map[models.Address]models.Contract
	proposals []*models.Proposal
}

// New creates an engine with no staking ledger bound yet.
func New(
	addr, owner, chairman models.Address,
	minimumQuorum uint64,
	debatingPeriod time.Duration,
	clk clock.Clock,
) (*Engine, error) {
	if minimumQuorum > 100 {
		return nil, ErrQuorumTooHigh
	}
	if chairman.IsZero() {
		return nil, models.ErrZeroAddress
	}
	return &Engine{
		addr:           addr,
		owner:          owner,
		chairman:       chairman,
		clock:          clk,
		minimumQuorum:  minimumQuorum,
		debatingPeriod: debatingPeriod,
		contracts:      make(map[models.Address]models.Contract),
	}, nil
}

// Init binds the staking ledger dependency. One-time.
func (e *Engine) Init(staking Staking) error {
	if e.staking != nil {
		return ErrAlreadyInitialized
	}
	if staking == nil {
		return models.ErrZeroAddress
	}
	e.staking = staking
	return nil
}

// RegisterContract makes an address a valid proposal target. An address with
// no registered contract behind it is rejected by AddProposal.
func (e *Engine) RegisterContract(addr models.Address, contract models.Contract) {
	e.contracts[addr] = contract
}

// AddProposal opens a proposal around an opaque encoded call. Chairman-only.
func (e *Engine) AddProposal(caller models.Address, callData []byte, target models.Address, description string) (models.Event, error) {
	if e.staking == nil {
		return nil, ErrNotInitialized
	}
	if caller != e.chairman {
		return nil, ErrNotChairman
	}
	if _, ok := e.contracts[target]; !ok {
		return nil, ErrRecipientNotContract
	}

	proposal := &models.Proposal{
		ID:           uint64(len(e.proposals)),
		CallData:     callData,
		Target:       target,
		Description:  description,
		VotesFor:     uint256.NewInt(0),
		VotesAgainst: uint256.NewInt(0),
		Deadline:     e.clock.Now().Add(e.debatingPeriod),
		Voters:       make(map[models.Address]bool),
	}
	e.proposals = append(e.proposals, proposal)
	return models.ProposalCreated{ID: proposal.ID}, nil
}

// Vote adds the caller's current stake weight to the proposal tally.
func (e *Engine) Vote(caller models.Address, proposalID uint64, support bool) error {
	if e.staking == nil {
		return ErrNotInitialized
	}
	if proposalID >= uint64(len(e.proposals)) {
		return ErrProposalNotFound
	}
	proposal := e.proposals[proposalID]
	if proposal.Finished || !e.clock.Now().Before(proposal.Deadline) {
		return ErrProposalFinished
	}
	stake := e.staking.GetStake(caller)
	if stake.IsZero() {
		return ErrNotStakeholder
	}
	if proposal.Voters[caller] {
		return ErrAlreadyVoted
	}

	if support {
		proposal.VotesFor.Add(proposal.VotesFor, stake)
	} else {
		proposal.VotesAgainst.Add(proposal.VotesAgainst, stake)
	}
	proposal.Voters[caller] = true
	return nil
}

// FinishProposal resolves a proposal past its deadline. The resolution is
// terminal; a forwarded call that fails is reported, never propagated.
func (e *Engine) FinishProposal(proposalID uint64) (models.Event, error) {
	if e.staking == nil {
		return nil, ErrNotInitialized
	}
	if proposalID >= uint64(len(e.proposals)) {
		return nil, ErrProposalNotFound
	}
	proposal := e.proposals[proposalID]
	if proposal.Finished {
		return nil, ErrProposalNotFound
	}
	if e.clock.Now().Before(proposal.Deadline) {
		return nil, ErrProposalInProgress
	}
	proposal.Finished = true

	votes := new(uint256.Int).Add(proposal.VotesFor, proposal.VotesAgainst)
	votesScaled := new(uint256.Int).Mul(votes, uint256.NewInt(100))
	threshold := new(uint256.Int).Mul(e.staking.TotalStake(), uint256.NewInt(e.minimumQuorum))
	if votesScaled.Lt(threshold) {
		return models.ProposalFailed{ID: proposal.ID, Description: proposal.Description, Reason: ReasonNoQuorum}, nil
	}
	if votes.IsZero() {
		return models.ProposalFailed{ID: proposal.ID, Description: proposal.Description, Reason: ReasonNoVotes}, nil
	}
	if !proposal.VotesFor.Gt(proposal.VotesAgainst) {
		return models.ProposalFinished{ID: proposal.ID, Description: proposal.Description, Passed: false}, nil
	}

	target := e.contracts[proposal.Target]
	if err := target.Call(e.addr, proposal.CallData); err != nil {
		return models.ProposalFailed{ID: proposal.ID, Description: proposal.Description, Reason: ReasonCallFailed}, nil
	}
	return models.ProposalFinished{ID: proposal.ID, Description: proposal.Description, Passed: true}, nil
}

// IsParticipant reports whether the address has voted on any proposal whose
// deadline has not yet passed. The staking ledger uses this to block unstake.
func (e *Engine) IsParticipant(account models.Address) bool {
	now := e.clock.Now()
	for _, proposal := range e.proposals {
		if !proposal.Finished && now.Before(proposal.Deadline) && proposal.Voters[account] {
			return true
		}
	}
	return false
}

// ChangeChairman hands the chairman role to a new address. Chairman-only.
func (e *Engine) ChangeChairman(caller, newChairman models.Address) error {
	if e.staking == nil {
		return ErrNotInitialized
	}
	if caller != e.chairman {
		return ErrNotChairman
	}
	if newChairman.IsZero() {
		return models.ErrZeroAddress
	}
	e.chairman = newChairman
	return nil
}

// SetMinimumQuorum changes the quorum percentage. Owner-only.
func (e *Engine) SetMinimumQuorum(caller models.Address, quorum uint64) error {
	if e.staking == nil {
		return ErrNotInitialized
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if quorum > 100 {
		return ErrQuorumTooHigh
	}
	e.minimumQuorum = quorum
	return nil
}

// SetDebatingPeriodDuration changes the voting window for new proposals.
// Owner-only.
func (e *Engine) SetDebatingPeriodDuration(caller models.Address, period time.Duration) error {
	if e.staking == nil {
		return ErrNotInitialized
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	e.debatingPeriod = period
	return nil
}

// Description returns the description of an existing proposal.
func (e *Engine) Description(proposalID uint64) (string, error) {
	if proposalID >= uint64(len(e.proposals)) {
		return "", ErrProposalNotFound
	}
	return e.proposals[proposalID].Description, nil
}

// Proposal returns a snapshot of an existing proposal.
func (e *Engine) Proposal(proposalID uint64) (models.Proposal, error) {
	if proposalID >= uint64(len(e.proposals)) {
		return models.Proposal{}, ErrProposalNotFound
	}
	p := *e.proposals[proposalID]
	p.VotesFor = p.VotesFor.Clone()
	p.VotesAgainst = p.VotesAgainst.Clone()
	voters := make(map[models.Address]bool, len(p.Voters))
	for voter := range p.Voters {
		voters[voter] = true
	}
	p.Voters = voters
	return p, nil
}

// Proposals returns the number of proposals ever created.
func (e *Engine) Proposals() uint64 {
	return uint64(len(e.proposals))
}

func (e *Engine) Address() models.Address  { return e.addr }
func (e *Engine) Chairman() models.Address { return e.chairman }
func (e *Engine) MinimumQuorum() uint64    { return e.minimumQuorum }

func (e *Engine) DebatingPeriodDuration() time.Duration { return e.debatingPeriod }
