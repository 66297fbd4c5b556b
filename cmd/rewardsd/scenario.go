package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
	"daorewards/native/massdist"
	"daorewards/native/rewards"
	"daorewards/native/stakerewards"
)

// defaultBlockSeconds derives a block time when a step only names a height.
const defaultBlockSeconds = 5

// Scenario is a scripted sequence of operations replayed against the engines.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// RateSpec describes an emission rate in a scenario file.
type RateSpec struct {
	Kind       string `yaml:"kind"`
	Amount     string `yaml:"amount"`
	Blocks     uint64 `yaml:"blocks"`
	Seconds    uint64 `yaml:"seconds"`
	Continuous bool   `yaml:"continuous"`
}

// Step is one operation. Which fields are read depends on Op.
type Step struct {
	Op         string            `yaml:"op"`
	Height     uint64            `yaml:"height"`
	Time       uint64            `yaml:"time"`
	Sender     string            `yaml:"sender"`
	Holder     string            `yaml:"holder"`
	Contract   string            `yaml:"contract"`
	HookCaller string            `yaml:"hook_caller"`
	WithdrawTo string            `yaml:"withdraw_to"`
	NewOwner   string            `yaml:"new_owner"`
	Engine     string            `yaml:"engine"`
	ID         uint64            `yaml:"id"`
	Amount     string            `yaml:"amount"`
	Denom      string            `yaml:"denom"`
	Rate       *RateSpec         `yaml:"rate"`
	Duration   uint64            `yaml:"duration"`
	Weights    map[string]string `yaml:"weights"`
	Expiry     uint64            `yaml:"expiry"`
	Expect     string            `yaml:"expect"`
	Error      string            `yaml:"error"`
}

// Report summarises a replay.
type Report struct {
	Run      string       `yaml:"run"`
	Scenario string       `yaml:"scenario"`
	Steps    []StepResult `yaml:"steps"`
	Balances []Balance    `yaml:"balances,omitempty"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index  int      `yaml:"index"`
	Op     string   `yaml:"op"`
	Height uint64   `yaml:"height"`
	Status string   `yaml:"status"`
	Detail string   `yaml:"detail,omitempty"`
	Events []string `yaml:"events,omitempty"`
}

// Balance is one holder's final ledger balance.
type Balance struct {
	Holder string `yaml:"holder"`
	Denom  string `yaml:"denom"`
	Amount string `yaml:"amount"`
}

// errExpectation marks a failed expect_* step.
var errExpectation = errors.New("expectation failed")

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("parse scenario: no steps")
	}
	return &sc, nil
}

// Replay runs every step in order. A step whose Error is set must fail with
// a message containing it; its writes are discarded. Replay stops at the
// first unexpected outcome.
func (a *app) Replay(ctx context.Context, sc *Scenario) (*Report, error) {
	report := &Report{Run: uuid.NewString(), Scenario: sc.Name}
	var block common.BlockInfo
	for i, step := range sc.Steps {
		if step.Height != 0 {
			block.Height = step.Height
			block.Time = step.Time
			if block.Time == 0 {
				block.Time = step.Height * defaultBlockSeconds
			}
		} else if step.Time != 0 {
			block.Time = step.Time
		}

		a.recorder.Events = nil
		err := a.execute(ctx, step.Op, block, func() error { return a.apply(block, step) })
		result := StepResult{Index: i, Op: step.Op, Height: block.Height, Status: "ok", Events: a.recorder.Types()}
		switch {
		case step.Error != "" && err == nil:
			return report, fmt.Errorf("step %d (%s): expected error containing %q", i, step.Op, step.Error)
		case step.Error != "" && !strings.Contains(err.Error(), step.Error):
			return report, fmt.Errorf("step %d (%s): expected error containing %q, got %w", i, step.Op, step.Error, err)
		case step.Error != "":
			result.Status = "rejected"
			result.Detail = err.Error()
			result.Events = nil
		case err != nil:
			return report, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		report.Steps = append(report.Steps, result)
	}
	report.Balances = a.balances()
	return report, nil
}

func (a *app) apply(block common.BlockInfo, step Step) error {
	sender := resolveAccount(step.Sender)
	info := common.MessageInfo{Sender: sender}
	amount, err := parseAmount(step.Amount)
	if err != nil {
		return err
	}
	denom := parseDenom(step.Denom, a.cfg.NativeDenom)

	switch step.Op {
	case "register_contract":
		return a.registry.RegisterContract(resolveContract(step.Contract))
	case "stake":
		return a.registry.Stake(block, resolveContract(step.Contract), resolveAccount(step.Holder), amount)
	case "unstake":
		return a.registry.Unstake(block, resolveContract(step.Contract), resolveAccount(step.Holder), amount)
	case "set_power":
		return a.registry.SetPower(block, resolveContract(step.Contract), resolveAccount(step.Holder), amount)
	case "mint":
		return a.ledger.Mint(resolveAccount(step.Holder), amount, denom)

	case "create":
		return a.create(block, step, info, amount, denom)
	case "fund":
		return a.fund(block, step, info, amount)
	case "claim":
		transfer, err := a.rewards.Claim(block, info, step.ID)
		if err != nil {
			return err
		}
		return a.pay(rewardsContract, transfer)
	case "withdraw":
		transfer, err := a.rewards.Withdraw(block, info, step.ID)
		if err != nil {
			return err
		}
		return a.pay(rewardsContract, transfer)
	case "update":
		return a.update(block, step, info)
	case "migrate":
		_, err := a.rewards.Migrate(info)
		return err
	case "transfer_ownership", "accept_ownership", "renounce_ownership", "revoke_transfer":
		return a.ownership(block, step, info)

	case "stake_rewards_init":
		return a.stake.Instantiate(block, info, nil, stakerewards.Config{
			StakingContract: resolveContract(step.Contract),
			RewardDenom:     denom,
		}, step.Duration)
	case "stake_rewards_fund":
		return a.fundStakeRewards(block, info, amount, denom)
	case "stake_rewards_claim":
		transfer, err := a.stake.Claim(block, info)
		if err != nil {
			return err
		}
		return a.pay(stakeRewardsContract, transfer)
	case "stake_rewards_duration":
		_, err := a.stake.UpdateRewardDuration(block, info, step.Duration)
		return err

	case "massdist_weights":
		return a.setWeights(step.Weights)
	case "massdist_distribute":
		return a.distribute(sender, amount, denom)

	case "expect_pending":
		return a.expectPending(block, step)
	case "expect_undistributed":
		got, err := a.rewards.UndistributedRewards(block, step.ID)
		if err != nil {
			return err
		}
		return expectAmount("undistributed", step.Expect, got)
	case "expect_balance":
		return expectAmount("balance", step.Expect, a.ledger.Balance(resolveAccount(step.Holder), denom))
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (a *app) create(block common.BlockInfo, step Step, info common.MessageInfo, amount *big.Int, denom bank.Denom) error {
	rate, err := step.Rate.emissionRate()
	if err != nil {
		return err
	}
	vp := resolveContract(step.Contract)
	hook := vp
	if step.HookCaller != "" {
		hook = resolveContract(step.HookCaller)
	}
	msg := rewards.CreateMsg{Denom: denom, EmissionRate: rate, VPContract: vp, HookCaller: hook}
	if step.WithdrawTo != "" {
		dest := resolveAccount(step.WithdrawTo)
		msg.WithdrawDestination = &dest
	}
	if amount.Sign() > 0 {
		info.Funds = []common.Coin{{Denom: denom.Native, Amount: amount}}
	}
	if _, err := a.rewards.Create(block, info, msg); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		return a.deposit(info.Sender, rewardsContract, amount, denom)
	}
	return nil
}

func (a *app) fund(block common.BlockInfo, step Step, info common.MessageInfo, amount *big.Int) error {
	dist, err := a.rewards.Distribution(step.ID)
	if err != nil {
		return err
	}
	if dist.Denom.IsNative() {
		info.Funds = []common.Coin{{Denom: dist.Denom.Native, Amount: amount}}
		if _, err := a.rewards.FundNative(block, info, step.ID); err != nil {
			return err
		}
	} else {
		token := common.MessageInfo{Sender: dist.Denom.Token}
		if _, err := a.rewards.ReceiveToken(block, token, rewards.TokenReceive{Sender: info.Sender, Amount: amount, Fund: step.ID}); err != nil {
			return err
		}
	}
	return a.deposit(info.Sender, rewardsContract, amount, dist.Denom)
}

func (a *app) fundStakeRewards(block common.BlockInfo, info common.MessageInfo, amount *big.Int, denom bank.Denom) error {
	var err error
	if denom.IsNative() {
		info.Funds = []common.Coin{{Denom: denom.Native, Amount: amount}}
		_, err = a.stake.FundNative(block, info)
	} else {
		_, err = a.stake.ReceiveToken(block, common.MessageInfo{Sender: denom.Token}, info.Sender, amount)
	}
	if err != nil {
		return err
	}
	return a.deposit(info.Sender, stakeRewardsContract, amount, denom)
}

func (a *app) update(block common.BlockInfo, step Step, info common.MessageInfo) error {
	msg := rewards.UpdateMsg{ID: step.ID}
	if step.Rate != nil {
		rate, err := step.Rate.emissionRate()
		if err != nil {
			return err
		}
		msg.EmissionRate = &rate
	}
	if step.Contract != "" {
		vp := resolveContract(step.Contract)
		msg.VPContract = &vp
	}
	if step.HookCaller != "" {
		hook := resolveContract(step.HookCaller)
		msg.HookCaller = &hook
	}
	if step.WithdrawTo != "" {
		dest := resolveAccount(step.WithdrawTo)
		msg.WithdrawDestination = &dest
	}
	_, err := a.rewards.Update(block, info, msg)
	return err
}

func (a *app) ownership(block common.BlockInfo, step Step, info common.MessageInfo) error {
	action := common.OwnerAction{}
	switch step.Op {
	case "transfer_ownership":
		action.Kind = common.ActionTransferOwnership
		action.NewOwner = resolveAccount(step.NewOwner)
		action.Expiry = common.NeverExpires()
		if step.Expiry != 0 {
			action.Expiry = common.ExpiresAtHeight(step.Expiry)
		}
	case "accept_ownership":
		action.Kind = common.ActionAcceptOwnership
	case "renounce_ownership":
		action.Kind = common.ActionRenounceOwnership
	default:
		action.Kind = common.ActionRevokeTransfer
	}
	var err error
	if step.Engine == "stakerewards" {
		_, err = a.stake.UpdateOwnership(block, info, action)
	} else {
		_, err = a.rewards.UpdateOwnership(block, info, action)
	}
	return err
}

func (a *app) setWeights(raw map[string]string) error {
	weights := make([]massdist.Weight, 0, len(raw))
	for name, value := range raw {
		weight, err := massdist.ParseWeight(value)
		if err != nil {
			return fmt.Errorf("weight for %s: %w", name, err)
		}
		weights = append(weights, massdist.Weight{Address: resolveAccount(name), Weight: weight})
	}
	return a.massdist.SetWeights(weights)
}

func (a *app) distribute(sender crypto.Address, amount *big.Int, denom bank.Denom) error {
	transfers, err := a.massdist.Distribute(amount, denom)
	if err != nil {
		return err
	}
	if err := a.deposit(sender, massDistContract, amount, denom); err != nil {
		return err
	}
	for _, transfer := range transfers {
		if err := a.pay(massDistContract, transfer); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) expectPending(block common.BlockInfo, step Step) error {
	holder := resolveAccount(step.Holder)
	var (
		got *big.Int
		err error
	)
	if step.Engine == "stakerewards" {
		var resp *stakerewards.PendingRewardsResponse
		if resp, err = a.stake.PendingRewards(block, holder); err == nil {
			got = resp.PendingRewards
		}
	} else {
		got, err = a.rewards.PendingRewardsFor(block, holder, step.ID)
	}
	if err != nil {
		return err
	}
	return expectAmount("pending rewards of "+step.Holder, step.Expect, got)
}

func expectAmount(what, expect string, got *big.Int) error {
	want, err := parseAmount(expect)
	if err != nil {
		return err
	}
	if want.Cmp(got) != 0 {
		return fmt.Errorf("%w: %s is %s, want %s", errExpectation, what, got, want)
	}
	return nil
}

// balances lists every non-zero native balance left after the replay.
func (a *app) balances() []Balance {
	denom := bank.NativeDenom(a.cfg.NativeDenom)
	holders := a.ledger.Holders(denom)
	out := make([]Balance, 0, len(holders))
	for _, holder := range holders {
		out = append(out, Balance{
			Holder: holder,
			Denom:  denom.String(),
			Amount: a.ledger.Balance(crypto.MustDecodeAddress(holder), denom).String(),
		})
	}
	return out
}

func (r *RateSpec) emissionRate() (rewards.EmissionRate, error) {
	if r == nil {
		return rewards.EmissionRate{}, fmt.Errorf("rate required")
	}
	switch strings.ToLower(strings.TrimSpace(r.Kind)) {
	case "paused":
		return rewards.Paused(), nil
	case "immediate":
		return rewards.Immediate(), nil
	case "linear":
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return rewards.EmissionRate{}, err
		}
		duration := common.Blocks(r.Blocks)
		if r.Seconds != 0 {
			duration = common.Seconds(r.Seconds)
		}
		return rewards.Linear(amount, duration, r.Continuous), nil
	default:
		return rewards.EmissionRate{}, fmt.Errorf("unknown rate kind %q", r.Kind)
	}
}
