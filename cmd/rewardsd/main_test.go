package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"daorewards/config"
	"daorewards/crypto"
	"daorewards/native/rewards"
	"daorewards/storage"
)

func writeConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rewardsd.toml")
	body := fmt.Sprintf("DataDir = %q\nBackend = %q\n\n[logging]\nLevel = \"error\"\n", filepath.Join(dir, "data"), backend)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func replay(t *testing.T, configPath, scenario string) *Report {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), []string{"replay", "-config", configPath, "-scenario", filepath.Join("testdata", scenario)}, &out)
	require.NoError(t, err, out.String())
	var report Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	return &report
}

func balanceOf(report *Report, name string) string {
	return balanceAt(report, crypto.AddressFromName(crypto.DAOPrefix, name).String())
}

func balanceAt(report *Report, holder string) string {
	for _, b := range report.Balances {
		if b.Holder == holder {
			return b.Amount
		}
	}
	return "0"
}

func TestReplayLinearScenario(t *testing.T) {
	configPath := writeConfig(t, "leveldb")
	report := replay(t, configPath, "linear.yaml")

	require.Equal(t, "linear-three-stakers", report.Scenario)
	require.NotEmpty(t, report.Run)
	require.Len(t, report.Steps, 19)
	last := report.Steps[len(report.Steps)-1]
	require.Equal(t, "expect_balance", last.Op)
	require.Equal(t, "ok", last.Status)

	rejected := report.Steps[14]
	require.Equal(t, "claim", rejected.Op)
	require.Equal(t, "rejected", rejected.Status)
	require.Contains(t, rejected.Detail, "no rewards claimable")

	funded := report.Steps[6]
	require.Equal(t, "fund", funded.Op)
	require.Contains(t, funded.Events, rewards.EventTypeDistributionFunded)

	require.Equal(t, "50000000", balanceOf(report, "alice"))
	require.Equal(t, "25000000", balanceOf(report, "bob"))
	require.Equal(t, "25000000", balanceOf(report, "carol"))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"query", "distribution", "-config", configPath, "-id", "1"}, &out))
	var dist distributionView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &dist))
	require.Equal(t, uint64(1), dist.ID)
	require.Equal(t, "100000000", dist.FundedAmount)
	require.Equal(t, "height 101000", dist.EndsAt)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"query", "pending", "-config", configPath, "-addr", "alice", "-height", "101060"}, &out))
	var pending []pendingView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &pending))
	require.Len(t, pending, 1)
	require.Equal(t, "0", pending[0].Pending)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"query", "undistributed", "-config", configPath, "-id", "1", "-height", "101060"}, &out))
	require.Contains(t, out.String(), "undistributed: \"0\"")
}

func TestReplayStakeRewardsScenario(t *testing.T) {
	configPath := writeConfig(t, "bolt")
	report := replay(t, configPath, "stakerewards.yaml")
	require.Equal(t, "1000", balanceOf(report, "staker1"))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"query", "stake-info", "-config", configPath}, &out))
	var info map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &info))
	require.Equal(t, "1000", info["reward_rate"])
	require.Equal(t, 101000, info["period_finish"])

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"query", "stake-pending", "-config", configPath, "-addr", "staker2", "-height", "1002"}, &out))
	require.Contains(t, out.String(), "pending: \"500\"")
}

func TestReplayMassDistributionScenario(t *testing.T) {
	configPath := writeConfig(t, "leveldb")
	report := replay(t, configPath, "massdist.yaml")
	require.Equal(t, "500", balanceOf(report, "alice"))
	require.Equal(t, "300", balanceOf(report, "bob"))
	require.Equal(t, "200", balanceOf(report, "carol"))
	require.Equal(t, "0", balanceOf(report, "treasury"))
	require.Equal(t, "1", balanceAt(report, massDistContract.String()))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"query", "weights", "-config", configPath}, &out))
	var weights []weightView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &weights))
	require.Len(t, weights, 3)
}

func TestReplayOwnershipScenario(t *testing.T) {
	configPath := writeConfig(t, "leveldb")
	replay(t, configPath, "ownership.yaml")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"query", "ownership", "-config", configPath}, &out))
	var view ownershipView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &view))
	require.Equal(t, crypto.AddressFromName(crypto.DAOPrefix, "council").String(), view.Owner)
	require.Empty(t, view.PendingOwner)
}

func TestReplayStopsAtUnexpectedOutcome(t *testing.T) {
	configPath := writeConfig(t, "memory")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	body := "name: bad\nsteps:\n  - {op: register_contract, height: 1, contract: vp}\n  - {op: expect_balance, holder: alice, expect: \"7\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	var out bytes.Buffer
	err := run(context.Background(), []string{"replay", "-config", configPath, "-scenario", path}, &out)
	require.ErrorIs(t, err, errExpectation)
	require.Contains(t, out.String(), "register_contract")
}

func TestMigrateCommand(t *testing.T) {
	configPath := writeConfig(t, "leveldb")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"migrate", "-config", configPath, "-version", "2.7.0"}, &out))
	require.Contains(t, out.String(), "2.7.0")

	out.Reset()
	err := run(context.Background(), []string{"migrate", "-config", configPath, "-version", "2.7.0"}, &out)
	require.ErrorContains(t, err, "newer version")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"query", "info", "-config", configPath}, &out))
	require.Contains(t, out.String(), "version: 2.7.0")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run(context.Background(), nil, &out))
	require.ErrorContains(t, run(context.Background(), []string{"bogus"}, &out), "unknown command")
	require.Contains(t, out.String(), "Usage: rewardsd")
}

func TestQueryRejectsUnknownQuery(t *testing.T) {
	configPath := writeConfig(t, "memory")
	var out bytes.Buffer
	require.ErrorContains(t, run(context.Background(), []string{"query", "bogus", "-config", configPath}, &out), "unknown query")
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte("name: x\nsteps:\n  - {op: mint, holdr: alice}\n"))
	require.Error(t, err)

	_, err = ParseScenario([]byte("name: empty\n"))
	require.ErrorContains(t, err, "no steps")

	sc, err := ParseScenario([]byte("name: ok\nsteps:\n  - {op: mint, holder: alice, amount: \"1_000\"}\n"))
	require.NoError(t, err)
	require.Equal(t, "alice", sc.Steps[0].Holder)
}

func TestMetricsMux(t *testing.T) {
	server := httptest.NewServer(newMetricsMux(config.Default().Metrics, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsScrapeLimit(t *testing.T) {
	server := httptest.NewServer(newMetricsMux(config.Metrics{RequestsPerMinute: 1, Burst: 1}, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAppCloseLogsDatabaseError(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = storage.BackendLevelDB
	db, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	var logs bytes.Buffer
	a, err := newApp(cfg, db, slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	a.close()
	require.Contains(t, logs.String(), "database close failed")
	require.Contains(t, logs.String(), "leveldb")
}
