package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"daorewards/config"
	"daorewards/core/events"
	"daorewards/core/state"
	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
	"daorewards/native/massdist"
	"daorewards/native/rewards"
	"daorewards/native/stakerewards"
	"daorewards/native/votingpower"
	"daorewards/observability/metrics"
	"daorewards/observability/otel"
	"daorewards/storage"
)

// Engine instances live at fixed contract addresses derived from their names.
var (
	rewardsContract      = crypto.AddressFromName(crypto.ContractPrefix, rewards.ContractName)
	stakeRewardsContract = crypto.AddressFromName(crypto.ContractPrefix, "staking-rewards")
	massDistContract     = crypto.AddressFromName(crypto.ContractPrefix, "mass-distribution")
)

// app wires the engines to one database. Every operation runs through
// execute, which commits the state overlay only when the operation succeeds.
type app struct {
	cfg      *config.Config
	db       storage.Database
	manager  *state.Manager
	registry *votingpower.Registry
	rewards  *rewards.Engine
	stake    *stakerewards.Engine
	massdist *massdist.Distributor
	ledger   *bank.Ledger
	recorder *events.Recorder
	metrics  *metrics.RewardsMetrics
	ops      *otel.Operations
	tracer   trace.Tracer
	logger   *slog.Logger
}

func newApp(cfg *config.Config, db storage.Database, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := state.EnsureStateVersion(db, cfg.AllowMigrate); err != nil {
		return nil, err
	}
	ops, err := otel.NewOperations(otel.Meter())
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		db:       db,
		manager:  state.NewManager(db),
		ledger:   bank.NewLedger(),
		recorder: &events.Recorder{},
		metrics:  metrics.Rewards(),
		ops:      ops,
		tracer:   otel.Tracer(),
		logger:   logger,
	}
	emitter := events.Fanout{a.metrics.Emitter(), eventLogger{logger: logger}, a.recorder}

	a.registry = votingpower.NewRegistry(a.manager)
	a.registry.SetLogger(logger)
	a.registry.OnChange(a.forwardPowerChange)

	a.rewards = rewards.NewEngine()
	a.rewards.SetState(a.manager.Contract(rewardsContract))
	a.rewards.SetOracle(a.registry)
	a.rewards.SetEmitter(emitter)
	a.rewards.SetLogger(logger)

	a.stake = stakerewards.NewEngine()
	a.stake.SetState(a.manager.Contract(stakeRewardsContract))
	a.stake.SetStakeSource(a.registry)
	a.stake.SetEmitter(emitter)
	a.stake.SetLogger(logger)

	a.massdist = massdist.New(a.manager.Contract(massDistContract))

	if err := a.instantiate(); err != nil {
		return nil, err
	}
	return a, nil
}

// instantiate sets up the rewards distributor on first use.
func (a *app) instantiate() error {
	_, ok, err := a.manager.Contract(rewardsContract).ContractVersionGet()
	if err != nil || ok {
		return err
	}
	owner := resolveAccount(a.cfg.Owner)
	return a.manager.Atomic(func() error {
		_, err := a.rewards.Instantiate(common.MessageInfo{Sender: owner}, &owner)
		return err
	})
}

// forwardPowerChange notifies both engines of a stake movement. An engine
// that does not track the contract ignores it.
func (a *app) forwardPowerChange(block common.BlockInfo, change votingpower.Change) error {
	info := common.MessageInfo{Sender: change.Contract}
	action := rewards.ActionStake
	if change.New.Cmp(change.Old) < 0 {
		action = rewards.ActionUnstake
	}
	amount := new(big.Int).Sub(change.New, change.Old)
	err := a.rewards.StakeChanged(block, info, rewards.StakeChangedMsg{Action: action, Addr: change.Holder, Amount: amount.Abs(amount)})
	if err != nil && !errors.Is(err, rewards.ErrInvalidHookSender) {
		return err
	}
	err = a.stake.StakeChanged(block, info, stakerewards.StakeChangedMsg{Addr: change.Holder})
	switch {
	case err == nil, errors.Is(err, stakerewards.ErrInvalidHookSender), errors.Is(err, stakerewards.ErrNotInstantiated):
		return nil
	default:
		return err
	}
}

// execute runs fn as one atomic operation, traced and measured.
func (a *app) execute(ctx context.Context, operation string, block common.BlockInfo, fn func() error) error {
	ctx, span := a.tracer.Start(ctx, "rewardsd."+operation, trace.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int64("height", int64(block.Height)),
	))
	defer span.End()

	started := time.Now()
	err := a.manager.Atomic(fn)
	elapsed := time.Since(started)

	a.metrics.ObserveOperation(operation, block.Height, err, elapsed)
	a.ops.Record(ctx, operation, err, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Debug("rewardsd: operation failed",
			slog.String("operation", operation),
			slog.Uint64("height", block.Height),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// pay applies an engine issued transfer out of the engine's own balance.
func (a *app) pay(from crypto.Address, transfer *bank.Transfer) error {
	if transfer == nil {
		return nil
	}
	return a.ledger.Move(from, *transfer)
}

// deposit moves funds from the sender into an engine before the engine
// accounts for them.
func (a *app) deposit(sender, engine crypto.Address, amount *big.Int, denom bank.Denom) error {
	transfer, err := bank.NewTransfer(engine, amount, denom)
	if err != nil {
		return err
	}
	return a.ledger.Move(sender, *transfer)
}

// close drops any uncommitted writes and closes the database. A close
// failure is logged; the command's own result has already been decided.
func (a *app) close() {
	a.manager.Discard()
	if err := a.db.Close(); err != nil {
		a.logger.Error("rewardsd: database close failed",
			slog.String("backend", a.cfg.Backend),
			slog.String("error", err.Error()))
	}
}

type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	payload := events.Unwrap(evt)
	if payload == nil {
		l.logger.Debug("rewardsd: event", slog.String("type", evt.EventType()))
		return
	}
	attrs := make([]any, 0, len(payload.Attributes)+1)
	attrs = append(attrs, slog.String("type", payload.Type))
	for _, key := range payload.Keys() {
		attrs = append(attrs, slog.String(key, payload.Attr(key)))
	}
	l.logger.Debug("rewardsd: event", attrs...)
}

// resolveAccount accepts a bech32 address or a participant name.
func resolveAccount(value string) crypto.Address {
	return resolve(value, crypto.DAOPrefix)
}

// resolveContract accepts a bech32 address or a contract name.
func resolveContract(value string) crypto.Address {
	return resolve(value, crypto.ContractPrefix)
}

func resolve(value string, prefix crypto.AddressPrefix) crypto.Address {
	value = strings.TrimSpace(value)
	if value == "" {
		return crypto.Address{}
	}
	if addr, err := crypto.DecodeAddress(value); err == nil {
		return addr
	}
	return crypto.AddressFromName(prefix, value)
}

// parseDenom reads "token:<contract>" as a token denom and anything else as a
// native denom, falling back to fallback when empty.
func parseDenom(value, fallback string) bank.Denom {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if contract, ok := strings.CutPrefix(value, "token:"); ok {
		return bank.TokenDenom(resolveContract(contract))
	}
	return bank.NativeDenom(value)
}

func parseAmount(value string) (*big.Int, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", ""))
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
