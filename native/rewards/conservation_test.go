package rewards

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"daorewards/native/common"
)

func TestRandomOperationsNeverOverpay(t *testing.T) {
	rates := []EmissionRate{
		Linear(big.NewInt(997), common.Blocks(3), false),
		Linear(big.NewInt(997), common.Blocks(3), true),
		Immediate(),
		Paused(),
	}
	for i, initial := range rates[:3] {
		h := newHarness(t)
		dist := h.create(0, initial)
		names := []string{"alice", "bob", "carol", "dave", "erin"}
		rng := rand.New(rand.NewSource(int64(42 + i)))

		funded := big.NewInt(0)
		claimed := big.NewInt(0)
		height := uint64(1)

		for step := 0; step < 400; step++ {
			height += uint64(rng.Intn(20) + 1)
			name := names[rng.Intn(len(names))]
			switch op := rng.Intn(11); {
			case op < 4:
				h.stake(height, name, int64(rng.Intn(100)))
			case op < 7:
				transfer, err := h.engine.Claim(blockAt(height), common.MessageInfo{Sender: addr(name)}, dist.ID)
				if errors.Is(err, ErrNoRewardsClaimable) {
					continue
				}
				require.NoError(t, err)
				claimed.Add(claimed, transfer.Amount)
			case op < 9:
				amount := int64(rng.Intn(50_000) + 1)
				h.fund(height, dist.ID, amount)
				funded.Add(funded, big.NewInt(amount))
			case op < 10:
				rate := rates[rng.Intn(len(rates))]
				_, err := h.engine.Update(blockAt(height), common.MessageInfo{Sender: ownerAddr}, UpdateMsg{ID: dist.ID, EmissionRate: &rate})
				require.NoError(t, err)
			default:
				transfer, err := h.engine.Withdraw(blockAt(height), common.MessageInfo{Sender: ownerAddr}, dist.ID)
				if errors.Is(err, ErrRewardsAlreadyDistributed) {
					continue
				}
				require.NoError(t, err)
				funded.Sub(funded, transfer.Amount)
			}

			owed := new(big.Int).Set(claimed)
			for _, n := range names {
				owed.Add(owed, big.NewInt(h.pending(height, n, dist.ID)))
			}
			require.True(t, owed.Cmp(funded) <= 0, "rate %d step %d: owed %s exceeds funded %s", i, step, owed, funded)
		}
	}
}

func TestImmediateFundingIsFullyRecoverable(t *testing.T) {
	h := newHarness(t)
	dist := h.create(0, Immediate())
	names := []string{"alice", "bob", "carol"}
	rng := rand.New(rand.NewSource(7))

	funded := big.NewInt(0)
	claimed := big.NewInt(0)
	withdrawn := big.NewInt(0)
	height := uint64(1)
	for step := 0; step < 200; step++ {
		height += uint64(rng.Intn(5) + 1)
		name := names[rng.Intn(len(names))]
		switch op := rng.Intn(10); {
		case op < 3:
			h.stake(height, name, int64(rng.Intn(3)))
		case op < 6:
			transfer, err := h.engine.Claim(blockAt(height), common.MessageInfo{Sender: addr(name)}, dist.ID)
			if errors.Is(err, ErrNoRewardsClaimable) {
				continue
			}
			require.NoError(t, err)
			claimed.Add(claimed, transfer.Amount)
		case op < 9:
			amount := int64(rng.Intn(1000) + 1)
			h.fund(height, dist.ID, amount)
			funded.Add(funded, big.NewInt(amount))
		default:
			transfer, err := h.engine.Withdraw(blockAt(height), common.MessageInfo{Sender: ownerAddr}, dist.ID)
			require.NoError(t, err)
			withdrawn.Add(withdrawn, transfer.Amount)
		}
	}

	transfer, err := h.engine.Withdraw(blockAt(height+1), common.MessageInfo{Sender: ownerAddr}, dist.ID)
	require.NoError(t, err)
	withdrawn.Add(withdrawn, transfer.Amount)

	accounted := new(big.Int).Add(claimed, withdrawn)
	for _, n := range names {
		accounted.Add(accounted, big.NewInt(h.pending(height+1, n, dist.ID)))
	}
	// Only per-participant flooring may be left unaccounted.
	dust := new(big.Int).Sub(funded, accounted)
	require.True(t, dust.Sign() >= 0, "paid out %s of %s", accounted, funded)
	require.True(t, dust.Cmp(big.NewInt(int64(200*len(names)))) <= 0, "lost %s of %s", dust, funded)
}
