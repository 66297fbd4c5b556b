package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"daorewards/core/state"
	"daorewards/native/common"
	"daorewards/native/massdist"
	"daorewards/native/rewards"
)

// distributionView is the printable form of a distribution.
type distributionView struct {
	ID                   uint64 `yaml:"id"`
	Denom                string `yaml:"denom"`
	EmissionRate         string `yaml:"emission_rate"`
	StartedAt            string `yaml:"started_at"`
	EndsAt               string `yaml:"ends_at"`
	LastUpdated          string `yaml:"last_updated"`
	FundedAmount         string `yaml:"funded_amount"`
	Unallocated          string `yaml:"unallocated"`
	TotalEarnedPUVP      string `yaml:"total_earned_puvp"`
	HistoricalEarnedPUVP string `yaml:"historical_earned_puvp"`
	VPContract           string `yaml:"vp_contract"`
	HookCaller           string `yaml:"hook_caller"`
	WithdrawDestination  string `yaml:"withdraw_destination"`
}

func viewDistribution(d *rewards.DistributionState) distributionView {
	return distributionView{
		ID:                   d.ID,
		Denom:                d.Denom.String(),
		EmissionRate:         d.ActiveEpoch.EmissionRate.String(),
		StartedAt:            d.ActiveEpoch.StartedAt.String(),
		EndsAt:               d.ActiveEpoch.EndsAt.String(),
		LastUpdated:          d.ActiveEpoch.LastUpdated.String(),
		FundedAmount:         d.FundedAmount.String(),
		Unallocated:          d.ActiveEpoch.Unallocated.String(),
		TotalEarnedPUVP:      d.ActiveEpoch.TotalEarnedPUVP.Dec(),
		HistoricalEarnedPUVP: d.HistoricalEarnedPUVP.Dec(),
		VPContract:           d.VPContract.String(),
		HookCaller:           d.HookCaller.String(),
		WithdrawDestination:  d.WithdrawDestination.String(),
	}
}

type pendingView struct {
	ID      uint64 `yaml:"id"`
	Denom   string `yaml:"denom"`
	Pending string `yaml:"pending"`
}

type ownershipView struct {
	Owner         string `yaml:"owner"`
	PendingOwner  string `yaml:"pending_owner,omitempty"`
	PendingExpiry string `yaml:"pending_expiry"`
}

type weightView struct {
	Address string `yaml:"address"`
	Weight  string `yaml:"weight"`
}

func runQuery(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New("query: what to query is required (info, ownership, distributions, distribution, pending, undistributed, stake-info, stake-pending, weights)")
	}
	what := args[0]
	fs := flag.NewFlagSet(queryCommand+" "+what, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the rewardsd config file")
	id := fs.Uint64("id", 0, "Distribution id")
	addr := fs.String("addr", "", "Participant address or name")
	height := fs.Uint64("height", 0, "Block height to evaluate at")
	blockTime := fs.Uint64("time", 0, "Block time in unix seconds (defaults to height based)")
	startAfter := fs.Uint64("start-after", 0, "Pagination cursor")
	limit := fs.Uint("limit", 0, "Page size")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	env, err := setup(context.Background(), *configPath)
	if err != nil {
		return err
	}
	defer env.close()
	a, err := env.openApp()
	if err != nil {
		return err
	}
	defer a.close()

	block := common.BlockInfo{Height: *height, Time: *blockTime}
	if block.Time == 0 {
		block.Time = block.Height * defaultBlockSeconds
	}
	out, err := a.query(what, block, *id, *addr, *startAfter, uint32(*limit))
	if err != nil {
		return err
	}
	return writeYAML(stdout, out)
}

func (a *app) query(what string, block common.BlockInfo, id uint64, addr string, startAfter uint64, limit uint32) (any, error) {
	switch what {
	case "info":
		info, err := a.rewards.Info()
		if err != nil {
			return nil, err
		}
		version, _, err := a.manager.StateVersion()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"contract":      info.Info.Contract,
			"version":       info.Info.Version,
			"state_version": version,
			"latest_state":  state.StateVersion,
		}, nil
	case "ownership":
		ownership, err := a.rewards.Ownership()
		if err != nil {
			return nil, err
		}
		return ownershipView{
			Owner:         ownership.Owner.String(),
			PendingOwner:  ownership.PendingOwner.String(),
			PendingExpiry: ownership.PendingExpiry.String(),
		}, nil
	case "distributions":
		page, err := a.rewards.Distributions(startAfter, limit)
		if err != nil {
			return nil, err
		}
		views := make([]distributionView, 0, len(page.Distributions))
		for _, dist := range page.Distributions {
			views = append(views, viewDistribution(dist))
		}
		return views, nil
	case "distribution":
		dist, err := a.rewards.Distribution(id)
		if err != nil {
			return nil, err
		}
		return viewDistribution(dist), nil
	case "pending":
		resp, err := a.rewards.PendingRewards(block, resolveAccount(addr), startAfter, limit)
		if err != nil {
			return nil, err
		}
		views := make([]pendingView, 0, len(resp.PendingRewards))
		for _, row := range resp.PendingRewards {
			views = append(views, pendingView{ID: row.ID, Denom: row.Denom.String(), Pending: row.PendingRewards.String()})
		}
		return views, nil
	case "undistributed":
		amount, err := a.rewards.UndistributedRewards(block, id)
		if err != nil {
			return nil, err
		}
		return map[string]string{"undistributed": amount.String()}, nil
	case "stake-info":
		info, err := a.stake.Info()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"staking_contract": info.Config.StakingContract.String(),
			"reward_denom":     info.Config.RewardDenom.String(),
			"period_finish":    info.Reward.PeriodFinish,
			"reward_rate":      info.Reward.RewardRate.String(),
			"reward_duration":  info.Reward.RewardDuration,
		}, nil
	case "stake-pending":
		resp, err := a.stake.PendingRewards(block, resolveAccount(addr))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"address":     resp.Address.String(),
			"pending":     resp.PendingRewards.String(),
			"denom":       resp.Denom.String(),
			"last_update": resp.LastUpdate,
		}, nil
	case "weights":
		weights, err := a.manager.Contract(massDistContract).MassDistWeights()
		if err != nil {
			return nil, err
		}
		views := make([]weightView, 0, len(weights))
		for _, w := range weights {
			views = append(views, weightView{Address: w.Address.String(), Weight: massdist.FormatWeight(w.Weight)})
		}
		return views, nil
	default:
		return nil, fmt.Errorf("query: unknown query %q", what)
	}
}
