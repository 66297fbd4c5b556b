package rewards

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"daorewards/core/events"
	"daorewards/core/types"
	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
)

// VotingPowerOracle reports voting power snapshots of a voting power
// contract. Power at height h reflects every change committed before h.
type VotingPowerOracle interface {
	TotalPowerAt(contract crypto.Address, height uint64) (*big.Int, error)
	PowerAt(contract crypto.Address, addr crypto.Address, height uint64) (*big.Int, error)
}

type engineState interface {
	common.OwnershipStore
	RewardsDistributionGet(id uint64) (*DistributionState, bool, error)
	RewardsDistributionPut(dist *DistributionState) error
	RewardsDistributionCount() (uint64, error)
	RewardsDistributionSetCount(count uint64) error
	RewardsUserGet(addr crypto.Address) (*UserRewardState, bool, error)
	RewardsUserPut(user *UserRewardState) error
	RewardsHookGet(caller crypto.Address) ([]uint64, error)
	RewardsHookPut(caller crypto.Address, ids []uint64) error
	ContractVersionGet() (*ContractVersion, bool, error)
	ContractVersionPut(version *ContractVersion) error
}

// Engine is the multi-distribution rewards distributor. Every operation reads
// the current state, computes the new state and writes it back; the host is
// expected to commit or discard those writes atomically.
type Engine struct {
	state   engineState
	oracle  VotingPowerOracle
	emitter events.Emitter
	logger  *slog.Logger
	version string
}

// NewEngine constructs a distributor engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		version: ContractVersionString,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle configures the voting power source.
func (e *Engine) SetOracle(oracle VotingPowerOracle) { e.oracle = oracle }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		e.logger = slog.Default()
		return
	}
	e.logger = logger.With(slog.String("component", "rewards"))
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.oracle == nil {
		return errNilOracle
	}
	return nil
}

// Instantiate initialises ownership, the id counter and the contract version.
// The owner defaults to the sender.
func (e *Engine) Instantiate(info common.MessageInfo, owner *crypto.Address) (*common.Ownership, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.state.ContractVersionPut(&ContractVersion{Contract: ContractName, Version: e.version}); err != nil {
		return nil, err
	}
	initial := info.Sender
	if owner != nil {
		initial = *owner
	}
	ownership, err := common.InitializeOwner(e.state, initial)
	if err != nil {
		return nil, err
	}
	if err := e.state.RewardsDistributionSetCount(0); err != nil {
		return nil, err
	}
	e.emit(OwnershipUpdatedEvent(ownership.Owner.String(), "", ownership.PendingExpiry.String()))
	return ownership, nil
}

// Create registers a new distribution. Only the owner may create. Native funds
// attached to the message immediately fund the distribution.
func (e *Engine) Create(block common.BlockInfo, info common.MessageInfo, msg CreateMsg) (*DistributionState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.AssertOwner(e.state, info.Sender); err != nil {
		return nil, err
	}
	if err := msg.Denom.Validate(); err != nil {
		return nil, err
	}
	if msg.HookCaller.IsZero() {
		return nil, fmt.Errorf("rewards: hook caller required")
	}
	if err := e.validateVotingPowerContract(block, msg.VPContract); err != nil {
		return nil, err
	}
	if err := msg.EmissionRate.Validate(); err != nil {
		return nil, err
	}
	if len(info.Funds) > 0 && !msg.Denom.IsNative() {
		return nil, ErrNoFundsOnTokenCreate
	}

	count, err := e.state.RewardsDistributionCount()
	if err != nil {
		return nil, err
	}
	id := count + 1
	if err := e.state.RewardsDistributionSetCount(id); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.RewardsDistributionGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedDuplicateDistributionID, id)
	}

	withdrawTo := info.Sender
	if msg.WithdrawDestination != nil {
		withdrawTo = *msg.WithdrawDestination
	}
	dist := &DistributionState{
		ID:                   id,
		Denom:                msg.Denom,
		ActiveEpoch:          newEpoch(msg.EmissionRate),
		VPContract:           msg.VPContract,
		HookCaller:           msg.HookCaller,
		FundedAmount:         big.NewInt(0),
		WithdrawDestination:  withdrawTo,
		HistoricalEarnedPUVP: zeroU256(),
	}
	if err := e.state.RewardsDistributionPut(dist); err != nil {
		return nil, err
	}
	if err := e.subscribe(id, msg.HookCaller); err != nil {
		return nil, err
	}
	e.emit(DistributionCreatedEvent(dist))
	e.logger.Debug("rewards: distribution created",
		slog.Uint64("id", id),
		slog.String("denom", dist.Denom.String()),
		slog.String("emissionRate", dist.ActiveEpoch.EmissionRate.String()))

	if len(info.Funds) == 0 {
		return dist.Clone(), nil
	}
	amount, err := common.MustPay(info, msg.Denom.Native)
	if err != nil {
		return nil, err
	}
	return e.fund(block, dist, amount)
}

// FundNative funds a native denom distribution with the single coin attached
// to the message. Anyone may fund.
func (e *Engine) FundNative(block common.BlockInfo, info common.MessageInfo, id uint64) (*DistributionState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	dist, err := e.loadDistribution(id)
	if err != nil {
		return nil, err
	}
	if !dist.Denom.IsNative() {
		return nil, ErrInvalidFunds
	}
	amount, err := common.MustPay(info, dist.Denom.Native)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFunds, err)
	}
	return e.fund(block, dist, amount)
}

// ReceiveToken handles a fungible token's transfer notification. Only the
// distribution's own token contract may fund it this way.
func (e *Engine) ReceiveToken(block common.BlockInfo, info common.MessageInfo, msg TokenReceive) (*DistributionState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	dist, err := e.loadDistribution(msg.Fund)
	if err != nil {
		return nil, err
	}
	if dist.Denom.IsNative() {
		return nil, ErrInvalidFunds
	}
	if !dist.Denom.Token.Equal(info.Sender) {
		return nil, ErrInvalidToken
	}
	if msg.Amount == nil || msg.Amount.Sign() <= 0 {
		return nil, ErrInvalidFunds
	}
	return e.fund(block, dist, msg.Amount)
}

func (e *Engine) fund(block common.BlockInfo, dist *DistributionState, amount *big.Int) (*DistributionState, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidFunds
	}
	epoch := &dist.ActiveEpoch
	rate := epoch.EmissionRate
	continuous := rate.IsContinuous()
	restart := dist.FundedAmount.Sign() == 0 || (!continuous && epoch.EndsAt.IsExpired(block))

	// Credit what the current window has emitted so far before it moves.
	if rate.Kind == EmissionLinear && dist.FundedAmount.Sign() > 0 {
		settled, err := ActiveTotalEarnedPUVP(e.oracle, block, dist)
		if err != nil {
			return nil, err
		}
		epoch.TotalEarnedPUVP = settled
		epoch.BumpLastUpdated(block)
	}

	if restart {
		dist.FundedAmount = cloneBig(amount)
		epoch.StartedAt = rate.startFor(block)
	} else {
		dist.FundedAmount = new(big.Int).Add(dist.FundedAmount, amount)
	}
	if _, err := toU256(dist.FundedAmount); err != nil {
		return nil, err
	}

	span, finite, err := rate.FundedPeriodDuration(dist.FundedAmount)
	if err != nil {
		return nil, err
	}
	if finite {
		if epoch.EndsAt, err = epoch.StartedAt.Add(span); err != nil {
			return nil, err
		}
	} else {
		epoch.EndsAt = common.NeverExpires()
	}

	switch {
	case rate.Kind == EmissionImmediate:
		if err := e.emitImmediately(block, dist, amount); err != nil {
			return nil, err
		}
	case !restart && continuous:
		// Backfill the time the distribution sat unfunded.
		refreshed, err := ActiveTotalEarnedPUVP(e.oracle, block, dist)
		if err != nil {
			return nil, err
		}
		epoch.TotalEarnedPUVP = refreshed
	}
	epoch.BumpLastUpdated(block)

	if err := e.state.RewardsDistributionPut(dist); err != nil {
		return nil, err
	}
	e.emit(DistributionFundedEvent(dist, amount))
	e.logger.Debug("rewards: distribution funded",
		slog.Uint64("id", dist.ID),
		slog.String("amount", amount.String()),
		slog.Bool("restart", restart),
		slog.String("endsAt", epoch.EndsAt.String()))
	return dist.Clone(), nil
}

// emitImmediately pays amount, plus anything left unallocated earlier, out to
// the current voting power. While total power is zero the amount is parked in
// the epoch's Unallocated balance instead.
func (e *Engine) emitImmediately(block common.BlockInfo, dist *DistributionState, amount *big.Int) error {
	epoch := &dist.ActiveEpoch
	totalPower, err := e.oracle.TotalPowerAt(dist.VPContract, block.Height)
	if err != nil {
		return err
	}
	pending := new(big.Int).Add(cloneBig(amount), cloneBig(epoch.Unallocated))
	if totalPower == nil || totalPower.Sign() == 0 {
		epoch.Unallocated = pending
		e.logger.Debug("rewards: immediate funding unallocated",
			slog.Uint64("id", dist.ID),
			slog.String("unallocated", pending.String()))
		return nil
	}
	epoch.Unallocated = big.NewInt(0)
	if pending.Sign() == 0 {
		return nil
	}
	delta, err := immediatePUVPDelta(pending, totalPower)
	if err != nil {
		return err
	}
	total, err := addU256(cloneU256(dist.ActiveEpoch.TotalEarnedPUVP), delta)
	if err != nil {
		return err
	}
	dist.ActiveEpoch.TotalEarnedPUVP = total
	return nil
}

// Claim pays out everything the sender is owed by distribution id.
func (e *Engine) Claim(block common.BlockInfo, info common.MessageInfo, id uint64) (*bank.Transfer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	dist, user, err := e.UpdateRewards(block, info.Sender, id)
	if err != nil {
		return nil, err
	}
	amount := user.Pending(id)
	if amount.Sign() == 0 {
		return nil, ErrNoRewardsClaimable
	}
	user.PendingRewards[id] = big.NewInt(0)
	if err := e.state.RewardsUserPut(user); err != nil {
		return nil, err
	}
	transfer, err := bank.NewTransfer(info.Sender, amount, dist.Denom)
	if err != nil {
		return nil, err
	}
	e.emit(RewardsClaimedEvent(dist, info.Sender.String(), amount))
	e.logger.Debug("rewards: claimed",
		slog.Uint64("id", id),
		slog.String("claimant", info.Sender.String()),
		slog.String("amount", amount.String()))
	return transfer, nil
}

// Withdraw ends the active window now and returns the unemitted remainder to
// the withdraw destination. Already emitted rewards stay claimable.
func (e *Engine) Withdraw(block common.BlockInfo, info common.MessageInfo, id uint64) (*bank.Transfer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	if err := common.AssertOwner(e.state, info.Sender); err != nil {
		return nil, err
	}
	dist, err := e.loadDistribution(id)
	if err != nil {
		return nil, err
	}
	epoch := &dist.ActiveEpoch
	if epoch.EndsAt.IsExpired(block) {
		return nil, ErrRewardsAlreadyDistributed
	}
	switch epoch.StartedAt.Kind {
	case common.AtHeight:
		epoch.EndsAt = common.ExpiresAtHeight(block.Height)
	case common.AtTime:
		epoch.EndsAt = common.ExpiresAtTime(block.Time)
	default:
		epoch.EndsAt = common.NeverExpires()
	}

	distributed, err := dist.TotalRewards()
	if err != nil {
		return nil, err
	}
	clawback, err := subAmount(dist.FundedAmount, distributed)
	if err != nil {
		return nil, err
	}
	dist.FundedAmount = distributed
	epoch.Unallocated = big.NewInt(0)

	transfer, err := bank.NewTransfer(dist.WithdrawDestination, clawback, dist.Denom)
	if err != nil {
		return nil, err
	}
	if err := e.state.RewardsDistributionPut(dist); err != nil {
		return nil, err
	}
	e.emit(RewardsWithdrawnEvent(dist, clawback, distributed))
	e.logger.Debug("rewards: withdrawn",
		slog.Uint64("id", id),
		slog.String("withdrawn", clawback.String()),
		slog.String("distributed", distributed.String()))
	return transfer, nil
}

// Update changes a distribution's configuration. Only the owner may update.
// A new emission rate closes the active epoch and starts a fresh one.
func (e *Engine) Update(block common.BlockInfo, info common.MessageInfo, msg UpdateMsg) (*DistributionState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	if err := common.AssertOwner(e.state, info.Sender); err != nil {
		return nil, err
	}
	dist, err := e.loadDistribution(msg.ID)
	if err != nil {
		return nil, err
	}
	if msg.EmissionRate != nil {
		if err := msg.EmissionRate.Validate(); err != nil {
			return nil, err
		}
		if err := e.transitionEpoch(block, dist, *msg.EmissionRate); err != nil {
			return nil, err
		}
	}
	if msg.VPContract != nil {
		if err := e.validateVotingPowerContract(block, *msg.VPContract); err != nil {
			return nil, err
		}
		dist.VPContract = *msg.VPContract
	}
	if msg.HookCaller != nil {
		if msg.HookCaller.IsZero() {
			return nil, fmt.Errorf("rewards: hook caller required")
		}
		if err := e.unsubscribe(dist.ID, dist.HookCaller); err != nil {
			return nil, err
		}
		dist.HookCaller = *msg.HookCaller
		if err := e.subscribe(dist.ID, dist.HookCaller); err != nil {
			return nil, err
		}
	}
	if msg.WithdrawDestination != nil {
		if msg.WithdrawDestination.IsZero() {
			return nil, fmt.Errorf("rewards: withdraw destination required")
		}
		dist.WithdrawDestination = *msg.WithdrawDestination
	}
	if err := e.state.RewardsDistributionPut(dist); err != nil {
		return nil, err
	}
	e.emit(DistributionUpdatedEvent(dist))
	return dist.Clone(), nil
}

// transitionEpoch freezes the active epoch into the historical accumulator and
// starts a new epoch at rate with whatever funding has not been emitted yet.
func (e *Engine) transitionEpoch(block common.BlockInfo, dist *DistributionState, rate EmissionRate) error {
	if dist.ActiveEpoch.EmissionRate.Equal(rate) {
		return nil
	}
	active, err := ActiveTotalEarnedPUVP(e.oracle, block, dist)
	if err != nil {
		return err
	}
	dist.ActiveEpoch.TotalEarnedPUVP = active
	dist.ActiveEpoch.BumpLastUpdated(block)

	historical, err := addU256(cloneU256(dist.HistoricalEarnedPUVP), active)
	if err != nil {
		return err
	}
	dist.HistoricalEarnedPUVP = historical

	emitted, err := dist.distributedInEpoch()
	if err != nil {
		return err
	}
	remaining, err := subAmount(dist.FundedAmount, emitted)
	if err != nil {
		return err
	}
	dist.FundedAmount = remaining

	started := rate.startFor(block)
	ends := common.NeverExpires()
	span, finite, err := rate.FundedPeriodDuration(remaining)
	if err != nil {
		return err
	}
	if finite {
		if ends, err = started.Add(span); err != nil {
			return err
		}
	}
	dist.ActiveEpoch = Epoch{
		StartedAt:       started,
		EndsAt:          ends,
		EmissionRate:    rate,
		TotalEarnedPUVP: zeroU256(),
		LastUpdated:     started,
		Unallocated:     big.NewInt(0),
	}
	if rate.Kind == EmissionImmediate {
		if err := e.emitImmediately(block, dist, remaining); err != nil {
			return err
		}
		dist.ActiveEpoch.BumpLastUpdated(block)
	}
	e.logger.Debug("rewards: epoch transitioned",
		slog.Uint64("id", dist.ID),
		slog.String("emissionRate", rate.String()),
		slog.String("carriedFunding", remaining.String()))
	return nil
}

// UpdateOwnership applies a two-step ownership action.
func (e *Engine) UpdateOwnership(block common.BlockInfo, info common.MessageInfo, action common.OwnerAction) (*common.Ownership, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	ownership, err := common.UpdateOwnership(e.state, block, info.Sender, action)
	if err != nil {
		return nil, err
	}
	e.emit(OwnershipUpdatedEvent(ownership.Owner.String(), ownership.PendingOwner.String(), ownership.PendingExpiry.String()))
	return ownership, nil
}

func (e *Engine) loadDistribution(id uint64) (*DistributionState, error) {
	dist, ok, err := e.state.RewardsDistributionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || dist == nil {
		return nil, notFound(id)
	}
	return dist, nil
}

func (e *Engine) validateVotingPowerContract(block common.BlockInfo, contract crypto.Address) error {
	if contract.IsZero() {
		return fmt.Errorf("%w: address required", ErrInvalidVotingPowerContract)
	}
	if _, err := e.oracle.TotalPowerAt(contract, block.Height); err != nil {
		return errors.Join(ErrInvalidVotingPowerContract, err)
	}
	return nil
}
