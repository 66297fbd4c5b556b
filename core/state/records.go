package state

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
	"daorewards/native/massdist"
	"daorewards/native/rewards"
	"daorewards/native/stakerewards"
	"daorewards/native/votingpower"
)

// The engines work with maps, *uint256.Int and prefixed addresses. The
// records below are their RLP friendly on-disk shapes.

type addressRecord struct {
	Prefix string
	Bytes  []byte
}

func newAddressRecord(addr crypto.Address) addressRecord {
	if addr.IsZero() {
		return addressRecord{}
	}
	return addressRecord{Prefix: string(addr.Prefix()), Bytes: addr.Bytes()}
}

func (r addressRecord) address() (crypto.Address, error) {
	switch len(r.Bytes) {
	case 0:
		return crypto.Address{}, nil
	case 20:
		return crypto.NewAddress(crypto.AddressPrefix(r.Prefix), r.Bytes), nil
	default:
		return crypto.Address{}, fmt.Errorf("state: stored address has %d bytes", len(r.Bytes))
	}
}

type expirationRecord struct {
	Kind  uint8
	Value uint64
}

func newExpirationRecord(e common.Expiration) expirationRecord {
	return expirationRecord{Kind: uint8(e.Kind), Value: e.Value}
}

func (r expirationRecord) expiration() common.Expiration {
	return common.Expiration{Kind: common.ExpirationKind(r.Kind), Value: r.Value}
}

type emissionRecord struct {
	Kind       uint8
	Amount     *big.Int
	Unit       uint8
	Duration   uint64
	Continuous bool
}

func newEmissionRecord(rate rewards.EmissionRate) emissionRecord {
	return emissionRecord{
		Kind:       uint8(rate.Kind),
		Amount:     nonNil(rate.Amount),
		Unit:       uint8(rate.Duration.Unit),
		Duration:   rate.Duration.Value,
		Continuous: rate.Continuous,
	}
}

func (r emissionRecord) rate() rewards.EmissionRate {
	rate := rewards.EmissionRate{Kind: rewards.EmissionKind(r.Kind), Continuous: r.Continuous}
	if rate.Kind == rewards.EmissionLinear {
		rate.Amount = nonNil(r.Amount)
		rate.Duration = common.Duration{Unit: common.DurationUnit(r.Unit), Value: r.Duration}
	}
	return rate
}

type epochRecord struct {
	StartedAt       expirationRecord
	EndsAt          expirationRecord
	Rate            emissionRecord
	TotalEarnedPUVP []byte
	LastUpdated     expirationRecord
	Unallocated     *big.Int `rlp:"optional"`
}

type denomRecord struct {
	Kind   uint8
	Native string
	Token  addressRecord
}

func newDenomRecord(d bank.Denom) denomRecord {
	return denomRecord{Kind: uint8(d.Kind), Native: d.Native, Token: newAddressRecord(d.Token)}
}

func (r denomRecord) denom() (bank.Denom, error) {
	token, err := r.Token.address()
	if err != nil {
		return bank.Denom{}, err
	}
	return bank.Denom{Kind: bank.DenomKind(r.Kind), Native: r.Native, Token: token}, nil
}

type distributionRecord struct {
	ID                   uint64
	Denom                denomRecord
	ActiveEpoch          epochRecord
	VPContract           addressRecord
	HookCaller           addressRecord
	FundedAmount         *big.Int
	WithdrawDestination  addressRecord
	HistoricalEarnedPUVP []byte
}

func newDistributionRecord(d *rewards.DistributionState) distributionRecord {
	epoch := d.ActiveEpoch
	return distributionRecord{
		ID:    d.ID,
		Denom: newDenomRecord(d.Denom),
		ActiveEpoch: epochRecord{
			StartedAt:       newExpirationRecord(epoch.StartedAt),
			EndsAt:          newExpirationRecord(epoch.EndsAt),
			Rate:            newEmissionRecord(epoch.EmissionRate),
			TotalEarnedPUVP: u256Bytes(epoch.TotalEarnedPUVP),
			LastUpdated:     newExpirationRecord(epoch.LastUpdated),
			Unallocated:     nonNil(epoch.Unallocated),
		},
		VPContract:           newAddressRecord(d.VPContract),
		HookCaller:           newAddressRecord(d.HookCaller),
		FundedAmount:         nonNil(d.FundedAmount),
		WithdrawDestination:  newAddressRecord(d.WithdrawDestination),
		HistoricalEarnedPUVP: u256Bytes(d.HistoricalEarnedPUVP),
	}
}

func (r distributionRecord) distribution() (*rewards.DistributionState, error) {
	denom, err := r.Denom.denom()
	if err != nil {
		return nil, err
	}
	vp, err := r.VPContract.address()
	if err != nil {
		return nil, err
	}
	hook, err := r.HookCaller.address()
	if err != nil {
		return nil, err
	}
	dest, err := r.WithdrawDestination.address()
	if err != nil {
		return nil, err
	}
	return &rewards.DistributionState{
		ID:    r.ID,
		Denom: denom,
		ActiveEpoch: rewards.Epoch{
			StartedAt:       r.ActiveEpoch.StartedAt.expiration(),
			EndsAt:          r.ActiveEpoch.EndsAt.expiration(),
			EmissionRate:    r.ActiveEpoch.Rate.rate(),
			TotalEarnedPUVP: u256FromBytes(r.ActiveEpoch.TotalEarnedPUVP),
			LastUpdated:     r.ActiveEpoch.LastUpdated.expiration(),
			Unallocated:     nonNil(r.ActiveEpoch.Unallocated),
		},
		VPContract:           vp,
		HookCaller:           hook,
		FundedAmount:         nonNil(r.FundedAmount),
		WithdrawDestination:  dest,
		HistoricalEarnedPUVP: u256FromBytes(r.HistoricalEarnedPUVP),
	}, nil
}

type userEntryRecord struct {
	ID        uint64
	Pending   *big.Int
	Accounted []byte
}

type userRecord struct {
	Address addressRecord
	Entries []userEntryRecord
}

func newUserRecord(u *rewards.UserRewardState) userRecord {
	ids := u.DistributionIDs()
	record := userRecord{Address: newAddressRecord(u.Address), Entries: make([]userEntryRecord, 0, len(ids))}
	for _, id := range ids {
		record.Entries = append(record.Entries, userEntryRecord{
			ID:        id,
			Pending:   u.Pending(id),
			Accounted: u256Bytes(u.Accounted(id)),
		})
	}
	return record
}

func (r userRecord) user() (*rewards.UserRewardState, error) {
	addr, err := r.Address.address()
	if err != nil {
		return nil, err
	}
	user := rewards.NewUserRewardState(addr)
	for _, entry := range r.Entries {
		user.PendingRewards[entry.ID] = nonNil(entry.Pending)
		user.AccountedPUVP[entry.ID] = u256FromBytes(entry.Accounted)
	}
	return user, nil
}

type ownershipRecord struct {
	Owner         addressRecord
	PendingOwner  addressRecord
	PendingExpiry expirationRecord
}

func newOwnershipRecord(o *common.Ownership) ownershipRecord {
	return ownershipRecord{
		Owner:         newAddressRecord(o.Owner),
		PendingOwner:  newAddressRecord(o.PendingOwner),
		PendingExpiry: newExpirationRecord(o.PendingExpiry),
	}
}

func (r ownershipRecord) ownership() (*common.Ownership, error) {
	owner, err := r.Owner.address()
	if err != nil {
		return nil, err
	}
	pending, err := r.PendingOwner.address()
	if err != nil {
		return nil, err
	}
	return &common.Ownership{Owner: owner, PendingOwner: pending, PendingExpiry: r.PendingExpiry.expiration()}, nil
}

type versionRecord struct {
	Contract string
	Version  string
}

type stakeConfigRecord struct {
	StakingContract addressRecord
	RewardDenom     denomRecord
}

type stakeStateRecord struct {
	PeriodFinish    uint64
	RewardRate      *big.Int
	RewardDuration  uint64
	RewardPerToken  []byte
	LastUpdateBlock uint64
}

func newStakeStateRecord(st *stakerewards.RewardState) stakeStateRecord {
	return stakeStateRecord{
		PeriodFinish:    st.Reward.PeriodFinish,
		RewardRate:      nonNil(st.Reward.RewardRate),
		RewardDuration:  st.Reward.RewardDuration,
		RewardPerToken:  u256Bytes(st.RewardPerToken),
		LastUpdateBlock: st.LastUpdateBlock,
	}
}

func (r stakeStateRecord) state() *stakerewards.RewardState {
	return &stakerewards.RewardState{
		Reward: stakerewards.RewardConfig{
			PeriodFinish:   r.PeriodFinish,
			RewardRate:     nonNil(r.RewardRate),
			RewardDuration: r.RewardDuration,
		},
		RewardPerToken:  u256FromBytes(r.RewardPerToken),
		LastUpdateBlock: r.LastUpdateBlock,
	}
}

type stakeUserRecord struct {
	Address      addressRecord
	Pending      *big.Int
	PerTokenPaid []byte
}

type weightRecord struct {
	Address addressRecord
	Weight  []byte
}

type checkpointRecord struct {
	Height uint64
	Power  *big.Int
}

func newCheckpointRecords(history []votingpower.Checkpoint) []checkpointRecord {
	out := make([]checkpointRecord, len(history))
	for i, cp := range history {
		out[i] = checkpointRecord{Height: cp.Height, Power: nonNil(cp.Power)}
	}
	return out
}

func checkpoints(records []checkpointRecord) []votingpower.Checkpoint {
	out := make([]votingpower.Checkpoint, len(records))
	for i, rec := range records {
		out[i] = votingpower.Checkpoint{Height: rec.Height, Power: nonNil(rec.Power)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

func newWeightRecords(weights []massdist.Weight) []weightRecord {
	out := make([]weightRecord, len(weights))
	for i, w := range weights {
		out[i] = weightRecord{Address: newAddressRecord(w.Address), Weight: u256Bytes(w.Weight)}
	}
	return out
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func u256Bytes(v *uint256.Int) []byte {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.Bytes()
}

func u256FromBytes(b []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b)
}
