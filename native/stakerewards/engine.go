package stakerewards

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/holiman/uint256"

	"daorewards/core/events"
	"daorewards/core/types"
	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
)

var scaleFactor = uint256.MustFromDecimal("1000000000000000000000000000000000000000") // 1e39

// StakeSource reports staked balances of a staking contract. A balance
// change at height h is visible from h+1.
type StakeSource interface {
	TotalPowerAt(contract crypto.Address, height uint64) (*big.Int, error)
	PowerAt(contract crypto.Address, addr crypto.Address, height uint64) (*big.Int, error)
}

type engineState interface {
	common.OwnershipStore
	StakeRewardsConfigGet() (*Config, bool, error)
	StakeRewardsConfigPut(cfg *Config) error
	StakeRewardsStateGet() (*RewardState, bool, error)
	StakeRewardsStatePut(st *RewardState) error
	StakeRewardsUserGet(addr crypto.Address) (*UserState, bool, error)
	StakeRewardsUserPut(user *UserState) error
}

// StakeChangedMsg is the staking contract's notification that Addr's stake
// is about to change.
type StakeChangedMsg struct {
	Addr crypto.Address
}

// Engine pays a single reward denom to the stakers of one staking contract
// at a constant per-block rate.
type Engine struct {
	state   engineState
	stakes  StakeSource
	emitter events.Emitter
	logger  *slog.Logger
}

// NewEngine constructs an engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, logger: slog.Default()}
}

func (e *Engine) SetState(state engineState) { e.state = state }
func (e *Engine) SetStakeSource(src StakeSource) { e.stakes = src }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		e.logger = slog.Default()
		return
	}
	e.logger = logger.With(slog.String("component", "stakerewards"))
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
	if e.stakes == nil {
		return errNilPower
	}
	return nil
}

// Instantiate stores the configuration with an empty reward period.
func (e *Engine) Instantiate(block common.BlockInfo, info common.MessageInfo, owner *crypto.Address, cfg Config, rewardDuration uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Nonpayable(info); err != nil {
		return err
	}
	if rewardDuration == 0 {
		return ErrZeroRewardDuration
	}
	if err := cfg.RewardDenom.Validate(); err != nil {
		return err
	}
	if cfg.StakingContract.IsZero() {
		return fmt.Errorf("stakerewards: staking contract required")
	}
	if _, err := e.stakes.TotalPowerAt(cfg.StakingContract, block.Height); err != nil {
		return fmt.Errorf("stakerewards: invalid staking contract: %w", err)
	}
	initial := info.Sender
	if owner != nil {
		initial = *owner
	}
	if _, err := common.InitializeOwner(e.state, initial); err != nil {
		return err
	}
	if err := e.state.StakeRewardsConfigPut(&cfg); err != nil {
		return err
	}
	return e.state.StakeRewardsStatePut(&RewardState{
		Reward:         RewardConfig{RewardRate: big.NewInt(0), RewardDuration: rewardDuration},
		RewardPerToken: new(uint256.Int),
	})
}

func (e *Engine) load() (*Config, *RewardState, error) {
	cfg, ok, err := e.state.StakeRewardsConfigGet()
	if err != nil {
		return nil, nil, err
	}
	if !ok || cfg == nil {
		return nil, nil, ErrNotInstantiated
	}
	st, ok, err := e.state.StakeRewardsStateGet()
	if err != nil {
		return nil, nil, err
	}
	if !ok || st == nil {
		return nil, nil, ErrNotInstantiated
	}
	return cfg, st, nil
}

// FundNative funds the period with the reward denom attached to the message.
func (e *Engine) FundNative(block common.BlockInfo, info common.MessageInfo) (*RewardConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, _, err := e.load()
	if err != nil {
		return nil, err
	}
	if !cfg.RewardDenom.IsNative() {
		return nil, ErrInvalidFunds
	}
	amount, err := common.MustPay(info, cfg.RewardDenom.Native)
	if err != nil {
		return nil, errors.Join(ErrInvalidFunds, err)
	}
	return e.fund(block, info.Sender, amount)
}

// ReceiveToken funds the period from the reward token's transfer
// notification. sender is the account that moved the tokens.
func (e *Engine) ReceiveToken(block common.BlockInfo, info common.MessageInfo, sender crypto.Address, amount *big.Int) (*RewardConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	cfg, _, err := e.load()
	if err != nil {
		return nil, err
	}
	if cfg.RewardDenom.IsNative() || !cfg.RewardDenom.Token.Equal(info.Sender) {
		return nil, ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidFunds
	}
	return e.fund(block, sender, amount)
}

// fund starts a new period of RewardDuration blocks. Whatever the running
// period had left is rolled into the new rate.
func (e *Engine) fund(block common.BlockInfo, sender crypto.Address, amount *big.Int) (*RewardConfig, error) {
	if err := common.AssertOwner(e.state, sender); err != nil {
		return nil, err
	}
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	rpt, err := e.rewardPerToken(block, cfg, st)
	if err != nil {
		return nil, err
	}
	st.RewardPerToken = rpt

	total := new(big.Int).Set(amount)
	if st.Reward.PeriodFinish > block.Height {
		remaining := new(big.Int).SetUint64(st.Reward.PeriodFinish - block.Height)
		total.Add(total, remaining.Mul(remaining, cloneBig(st.Reward.RewardRate)))
	}
	rate := new(big.Int).Quo(total, new(big.Int).SetUint64(st.Reward.RewardDuration))
	if rate.Sign() == 0 {
		return nil, ErrRewardRateLessThanOnePerBlock
	}
	if rate.BitLen() > 128 {
		return nil, ErrArithmeticOverflow
	}
	st.Reward = RewardConfig{
		PeriodFinish:   block.Height + st.Reward.RewardDuration,
		RewardRate:     rate,
		RewardDuration: st.Reward.RewardDuration,
	}
	st.LastUpdateBlock = block.Height
	if err := e.state.StakeRewardsStatePut(st); err != nil {
		return nil, err
	}
	e.emit(FundedEvent(amount, st.Reward))
	e.logger.Debug("stakerewards: funded",
		slog.String("amount", amount.String()),
		slog.String("rate", rate.String()),
		slog.Uint64("periodFinish", st.Reward.PeriodFinish))
	reward := st.Reward
	reward.RewardRate = cloneBig(rate)
	return &reward, nil
}

func lastTimeRewardApplicable(block common.BlockInfo, st *RewardState) uint64 {
	return min(block.Height, st.Reward.PeriodFinish)
}

// rewardPerToken projects the global accumulator to block without writing.
func (e *Engine) rewardPerToken(block common.BlockInfo, cfg *Config, st *RewardState) (*uint256.Int, error) {
	current := cloneU256(st.RewardPerToken)
	applicable := lastTimeRewardApplicable(block, st)
	if applicable <= st.LastUpdateBlock {
		return current, nil
	}
	staked, err := e.stakes.TotalPowerAt(cfg.StakingContract, block.Height)
	if err != nil {
		return nil, err
	}
	if staked == nil || staked.Sign() == 0 {
		return current, nil
	}
	rate, overflow := uint256.FromBig(cloneBig(st.Reward.RewardRate))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	numerator, overflow := new(uint256.Int).MulOverflow(rate, uint256.NewInt(applicable-st.LastUpdateBlock))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	if _, overflow = numerator.MulOverflow(numerator, scaleFactor); overflow {
		return nil, ErrArithmeticOverflow
	}
	denominator, overflow := uint256.FromBig(staked)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	delta := new(uint256.Int).Div(numerator, denominator)
	if _, overflow = current.AddOverflow(current, delta); overflow {
		return nil, ErrArithmeticOverflow
	}
	return current, nil
}

func (e *Engine) earned(block common.BlockInfo, cfg *Config, user *UserState, rpt *uint256.Int) (*big.Int, error) {
	staked, err := e.stakes.PowerAt(cfg.StakingContract, user.Address, block.Height)
	if err != nil {
		return nil, err
	}
	out := cloneBig(user.Pending)
	if staked == nil || staked.Sign() == 0 || rpt.Eq(user.PerTokenPaid) {
		return out, nil
	}
	delta, underflow := new(uint256.Int).SubOverflow(rpt, cloneU256(user.PerTokenPaid))
	if underflow {
		return nil, fmt.Errorf("stakerewards: reward per token went backwards")
	}
	wide, overflow := uint256.FromBig(staked)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	if _, overflow = delta.MulOverflow(delta, wide); overflow {
		return nil, ErrArithmeticOverflow
	}
	delta.Div(delta, scaleFactor)
	return out.Add(out, delta.ToBig()), nil
}

func (e *Engine) loadUser(addr crypto.Address) (*UserState, error) {
	user, ok, err := e.state.StakeRewardsUserGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || user == nil {
		return &UserState{Address: addr, Pending: big.NewInt(0), PerTokenPaid: new(uint256.Int)}, nil
	}
	return user, nil
}

// UpdateRewards settles addr's earnings up to block and persists them.
func (e *Engine) UpdateRewards(block common.BlockInfo, addr crypto.Address) (*UserState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	rpt, err := e.rewardPerToken(block, cfg, st)
	if err != nil {
		return nil, err
	}
	st.RewardPerToken = rpt
	if applicable := lastTimeRewardApplicable(block, st); applicable > st.LastUpdateBlock {
		st.LastUpdateBlock = applicable
	}
	if err := e.state.StakeRewardsStatePut(st); err != nil {
		return nil, err
	}
	user, err := e.loadUser(addr)
	if err != nil {
		return nil, err
	}
	pending, err := e.earned(block, cfg, user, rpt)
	if err != nil {
		return nil, err
	}
	user.Pending = pending
	user.PerTokenPaid = cloneU256(rpt)
	if err := e.state.StakeRewardsUserPut(user); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// StakeChanged settles the staker before their balance moves. Only the
// configured staking contract may call it.
func (e *Engine) StakeChanged(block common.BlockInfo, info common.MessageInfo, msg StakeChangedMsg) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, _, err := e.load()
	if err != nil {
		return err
	}
	if !cfg.StakingContract.Equal(info.Sender) {
		return ErrInvalidHookSender
	}
	_, err = e.UpdateRewards(block, msg.Addr)
	return err
}

// Claim pays out everything the sender has earned.
func (e *Engine) Claim(block common.BlockInfo, info common.MessageInfo) (*bank.Transfer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	user, err := e.UpdateRewards(block, info.Sender)
	if err != nil {
		return nil, err
	}
	if user.Pending.Sign() == 0 {
		return nil, ErrNoRewardsClaimable
	}
	amount := user.Pending
	user.Pending = big.NewInt(0)
	if err := e.state.StakeRewardsUserPut(user); err != nil {
		return nil, err
	}
	cfg, _, err := e.load()
	if err != nil {
		return nil, err
	}
	transfer, err := bank.NewTransfer(info.Sender, amount, cfg.RewardDenom)
	if err != nil {
		return nil, err
	}
	e.emit(ClaimedEvent(info.Sender.String(), amount))
	return transfer, nil
}

// UpdateRewardDuration changes the length of the next funded period. It is
// rejected while a period is running.
func (e *Engine) UpdateRewardDuration(block common.BlockInfo, info common.MessageInfo, duration uint64) (*RewardConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	if err := common.AssertOwner(e.state, info.Sender); err != nil {
		return nil, err
	}
	if duration == 0 {
		return nil, ErrZeroRewardDuration
	}
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if st.Reward.PeriodFinish > block.Height {
		return nil, ErrRewardPeriodNotFinished
	}
	rpt, err := e.rewardPerToken(block, cfg, st)
	if err != nil {
		return nil, err
	}
	st.RewardPerToken = rpt
	st.LastUpdateBlock = max(st.LastUpdateBlock, lastTimeRewardApplicable(block, st))
	st.Reward.RewardDuration = duration
	if err := e.state.StakeRewardsStatePut(st); err != nil {
		return nil, err
	}
	e.emit(DurationUpdatedEvent(duration))
	reward := st.Reward
	reward.RewardRate = cloneBig(st.Reward.RewardRate)
	return &reward, nil
}

// UpdateOwnership applies a two-step ownership action.
func (e *Engine) UpdateOwnership(block common.BlockInfo, info common.MessageInfo, action common.OwnerAction) (*common.Ownership, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	return common.UpdateOwnership(e.state, block, info.Sender, action)
}

// Info returns both configurations.
func (e *Engine) Info() (*InfoResponse, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	return &InfoResponse{Config: *cfg, Reward: st.Reward}, nil
}

// PendingRewards projects addr's claimable amount at block without writing.
func (e *Engine) PendingRewards(block common.BlockInfo, addr crypto.Address) (*PendingRewardsResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	rpt, err := e.rewardPerToken(block, cfg, st)
	if err != nil {
		return nil, err
	}
	user, err := e.loadUser(addr)
	if err != nil {
		return nil, err
	}
	pending, err := e.earned(block, cfg, user, rpt)
	if err != nil {
		return nil, err
	}
	return &PendingRewardsResponse{
		Address:        addr,
		PendingRewards: pending,
		Denom:          cfg.RewardDenom,
		LastUpdate:     st.LastUpdateBlock,
	}, nil
}
