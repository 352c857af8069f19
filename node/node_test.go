package node

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-nodeprops/cmd"
	"github.com/spacemeshos/go-nodeprops/config"
	"github.com/spacemeshos/go-nodeprops/log/logtest"
	"github.com/spacemeshos/go-nodeprops/metrics/public"
	"github.com/spacemeshos/go-nodeprops/nodeprops"
	"github.com/spacemeshos/go-nodeprops/p2p"
)

func testConfig(tb testing.TB) *config.Config {
	tb.Helper()
	cfg := config.DefaultConfig()
	dir := tb.TempDir()
	cfg.DataDirParent = filepath.Join(dir, "data")
	cfg.FileLock = filepath.Join(dir, "LOCK")
	cfg.P2P.Listen = "/ip4/127.0.0.1/tcp/0"
	cfg.P2P.DisableNatPort = true
	cfg.P2P.MinPeers = 1
	cfg.NodeProps.AggregationWindow = 10 * time.Millisecond
	return &cfg
}

type runningApp struct {
	*App
	cancel context.CancelFunc
	done   chan error
}

func startApp(t *testing.T, cfg *config.Config) *runningApp {
	t.Helper()
	app := New(WithConfig(cfg), WithLog(logtest.New(t)))
	require.NoError(t, app.Initialize())
	ctx, cancel := context.WithCancel(context.Background())
	ra := &runningApp{App: app, cancel: cancel, done: make(chan error, 1)}
	go func() { ra.done <- app.Start(ctx) }()
	t.Cleanup(func() {
		ra.stop(t)
	})
	select {
	case <-app.Started():
	case err := <-ra.done:
		ra.cancel()
		ra.cancel = nil
		require.FailNow(t, "app failed to start", err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "app didn't start in time")
	}
	return ra
}

func (ra *runningApp) stop(t *testing.T) {
	if ra.cancel == nil {
		return
	}
	ra.cancel()
	ra.cancel = nil
	select {
	case err := <-ra.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "app didn't stop in time")
	}
}

func TestLock(t *testing.T) {
	cfg := testConfig(t)
	cfg.FileLock = filepath.Join(t.TempDir(), "nested", "LOCK")
	first := New(WithConfig(cfg))
	require.NoError(t, first.Lock())

	second := New(WithConfig(cfg))
	require.ErrorContains(t, second.Lock(), "only one nodeprops instance should be running")

	first.Unlock()
	require.NoError(t, second.Lock())
	second.Unlock()

	// unlocking an app that was never locked is a no-op
	New(WithConfig(cfg)).Unlock()
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t)
	app := New(WithConfig(cfg))
	require.NoError(t, app.Initialize())
	info, err := os.Stat(cfg.DataDir())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestAppsExchangeProperties(t *testing.T) {
	alphaCfg := testConfig(t)
	alphaCfg.DisplayName = "alpha"
	alphaCfg.CollectMetrics = true
	alphaCfg.MetricsAddr = "127.0.0.1:0"
	alpha := startApp(t, alphaCfg)
	require.NotNil(t, alpha.metrics)

	addrs := alpha.Host().ListenAddrs()
	require.NotEmpty(t, addrs)

	betaCfg := testConfig(t)
	betaCfg.DisplayName = "beta"
	betaCfg.Properties = map[string]string{"region": "eu"}
	betaCfg.P2P.Bootnodes = []string{addrs[0].String()}
	beta := startApp(t, betaCfg)

	alphaID := p2p.NodeID(alpha.Host().ID())
	betaID := p2p.NodeID(beta.Host().ID())
	require.Eventually(t, func() bool {
		props := alpha.Service().GetAllNodeProperties()[betaID]
		return props[nodeprops.DisplayNameKey] == "beta" && props["region"] == "eu"
	}, 10*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return beta.Service().GetAllNodeProperties()[alphaID][nodeprops.DisplayNameKey] == "alpha"
	}, 10*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(public.KnownNodes) == 2
	}, 10*time.Second, 10*time.Millisecond)

	beta.stop(t)
	require.Eventually(t, func() bool {
		_, exist := alpha.Service().GetAllNodeProperties()[betaID]
		return !exist
	}, 10*time.Second, 10*time.Millisecond)
	require.Equal(t, "beta", alpha.Service().GetNodeProperties(betaID)[nodeprops.DisplayNameKey])
}

func TestAppInvalidBootnode(t *testing.T) {
	cfg := testConfig(t)
	cfg.P2P.Bootnodes = []string{"not a multiaddr"}
	app := New(WithConfig(cfg), WithLog(logtest.New(t)))
	require.NoError(t, app.Initialize())
	require.Error(t, app.Start(context.Background()))
}

func testCommand(conf *config.Config) (*cobra.Command, *string) {
	c := &cobra.Command{Use: "test"}
	return c, cmd.AddFlags(c.PersistentFlags(), conf)
}

func TestConfigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[nodeprops]
relay = false
aggregation-window = "2s"

[p2p]
listen = "/ip4/127.0.0.1/tcp/7000"
`), 0o600))

	conf := config.DefaultConfig()
	c, _ := testCommand(&conf)
	args := []string{"--config", path, "--relay", "--property", "region=eu"}
	require.NoError(t, c.ParseFlags(args))
	require.NoError(t, configure(c, path, &conf, args))

	require.True(t, conf.NodeProps.Relay, "flags override the config file")
	require.Equal(t, 2*time.Second, conf.NodeProps.AggregationWindow)
	require.Equal(t, "/ip4/127.0.0.1/tcp/7000", conf.P2P.Listen)
	require.Equal(t, map[string]string{"region": "eu"}, conf.Properties)
}

func TestConfigureErrors(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		conf := config.DefaultConfig()
		c, _ := testCommand(&conf)
		err := configure(c, filepath.Join(t.TempDir(), "missing.toml"), &conf, nil)
		require.ErrorContains(t, err, "loading config")
	})
	t.Run("unknown encoder", func(t *testing.T) {
		conf := config.DefaultConfig()
		c, _ := testCommand(&conf)
		err := configure(c, "", &conf, []string{"--log-encoder", "xml"})
		require.ErrorContains(t, err, "unknown log encoder")
	})
	t.Run("unknown flag", func(t *testing.T) {
		conf := config.DefaultConfig()
		c, _ := testCommand(&conf)
		err := configure(c, "", &conf, []string{"--unknown"})
		require.ErrorContains(t, err, "parsing flags")
	})
}

func TestVersionCommand(t *testing.T) {
	cmd.Version, cmd.Commit, cmd.Branch = "v1.0.0", "abcdef", "main"
	t.Cleanup(func() {
		cmd.Version, cmd.Commit, cmd.Branch = "", "", ""
	})
	c := GetCommand()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs([]string{"version"})
	require.NoError(t, c.Execute())
	require.Equal(t, "v1.0.0+abcdef+main\n", out.String())
}
