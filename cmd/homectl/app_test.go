package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/config"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, *Shell, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Provision.ScanTimeout = 20 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	app, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.NoError(t, app.Start(context.Background()))

	out := &bytes.Buffer{}
	return app, NewShell(app, out), out
}

func cached(app *App, node datamodel.NodeID, path datamodel.AttributePath) func() int64 {
	return func() int64 {
		v, _ := app.cache.Get(state.AttrKey(node, path))
		return v
	}
}

func TestAppBindsTopology(t *testing.T) {
	app, sh, out := newTestApp(t, nil)

	assert.Len(t, app.mgr.Snapshot(), 5)

	sh.Execute(context.Background(), "nodes")
	assert.Contains(t, out.String(), "Living Room Light")
	assert.Contains(t, out.String(), "Bedroom AC")

	out.Reset()
	sh.Execute(context.Background(), "controls")
	assert.Contains(t, out.String(), "home/0000000000000001/brightness")
	assert.Contains(t, out.String(), "home/0000000000000002/mode")
}

func TestShellSliderCommands(t *testing.T) {
	app, sh, out := newTestApp(t, nil)
	ctx := context.Background()

	level := datamodel.AttributePath{Endpoint: 1, Cluster: levelcontrol.ClusterID, Attribute: levelcontrol.AttrCurrentLevel}
	sh.Execute(ctx, "level 1 40")
	assert.NotContains(t, out.String(), "failed")
	assert.Eventually(t, func() bool { return cached(app, 1, level)() == 101 }, time.Second, time.Millisecond)

	setpoint := datamodel.AttributePath{Endpoint: 1, Cluster: thermostat.ClusterID, Attribute: thermostat.AttrOccupiedCoolingSetpoint}
	sh.Execute(ctx, "setpoint 2 26")
	assert.Eventually(t, func() bool { return cached(app, 2, setpoint)() == 2600 }, time.Second, time.Millisecond)
}

func TestShellModeCommand(t *testing.T) {
	app, sh, out := newTestApp(t, nil)

	mode := datamodel.AttributePath{Endpoint: 1, Cluster: thermostat.ClusterID, Attribute: thermostat.AttrSystemMode}
	sh.Execute(context.Background(), "mode 2 Heat")
	assert.Contains(t, out.String(), "Heat")
	assert.Eventually(t, func() bool { return cached(app, 2, mode)() == 4 }, time.Second, time.Millisecond)

	out.Reset()
	sh.Execute(context.Background(), "mode 2 Dry")
	assert.Contains(t, out.String(), "write failed")
}

func TestShellArgumentErrors(t *testing.T) {
	_, sh, out := newTestApp(t, nil)
	ctx := context.Background()

	for line, want := range map[string]string{
		"level":         "Missing arguments",
		"level x 10":    "Bad node id",
		"level 9 10":    "Unknown node 9",
		"level 1 abc":   "Bad value",
		"setpoint 1 20": "Cooling Setpoint",
		"frobnicate":    "Unknown command",
	} {
		out.Reset()
		assert.False(t, sh.Execute(ctx, line))
		assert.Contains(t, out.String(), want, line)
	}
	assert.True(t, sh.Execute(ctx, "quit"))
	assert.False(t, sh.Execute(ctx, "   "))
}

func TestShellRefreshAndSubscribe(t *testing.T) {
	_, sh, out := newTestApp(t, nil)
	ctx := context.Background()

	sh.Execute(ctx, "refresh")
	assert.Contains(t, out.String(), "Refreshed 5 control(s), 0 failed")

	out.Reset()
	sh.Execute(ctx, "subscribe 1")
	assert.Contains(t, out.String(), "5 active subscription(s)")
}

func TestShellScanAndSelect(t *testing.T) {
	_, sh, out := newTestApp(t, func(c *config.Config) { c.Provision.PoP = "abcd1234" })
	ctx := context.Background()

	sh.Execute(ctx, "scan")
	assert.Contains(t, out.String(), "[0] PROV_3C61A0")
	assert.Contains(t, out.String(), "[1] PROV_9F0212")

	out.Reset()
	sh.Execute(ctx, "select 1")
	assert.Contains(t, out.String(), "Secure session established with PROV_9F0212")

	out.Reset()
	sh.Execute(ctx, "select 5")
	assert.Contains(t, out.String(), "no device at index")

	out.Reset()
	sh.Execute(ctx, "scan ESP_")
	assert.Contains(t, out.String(), "prefix search not allowed")
}

func TestAppWebUI(t *testing.T) {
	app, _, _ := newTestApp(t, func(c *config.Config) { c.Web.Listen = "127.0.0.1:0" })
	require.NotNil(t, app.web)

	rec := httptest.NewRecorder()
	app.web.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/controls", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var controls []ui.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &controls))
	assert.Len(t, controls, 5)
}

func TestAppPersistsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	level := datamodel.AttributePath{Endpoint: 1, Cluster: levelcontrol.ClusterID, Attribute: levelcontrol.AttrCurrentLevel}

	app, _, _ := newTestApp(t, func(c *config.Config) { c.Store.Path = path })
	assert.Equal(t, int64(127), cached(app, 1, level)())
	app.Close()

	p, err := state.NewBoltPersister(path)
	require.NoError(t, err)
	defer p.Close()
	entries, err := p.LoadEntries()
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestFlags(t *testing.T) {
	opts, err := ParseFlags([]string{"-backend", "sim", "-listen", "127.0.0.1:9000", "-log", "debug"})
	require.NoError(t, err)
	cfg, err := opts.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.BackendSim, cfg.Backend)
	assert.Equal(t, "127.0.0.1:9000", cfg.Web.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts, err = ParseFlags([]string{"-backend", "rmaker"})
	require.NoError(t, err)
	_, err = opts.LoadConfig()
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = ParseFlags([]string{"stray"})
	assert.Error(t, err)

	cfgPath := filepath.Join(t.TempDir(), "homectl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("group: flat\ntopology: [{id: 5, kind: light}]\n"), 0o600))
	opts, err = ParseFlags([]string{"-config", cfgPath})
	require.NoError(t, err)
	cfg, err = opts.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "flat", cfg.Topology[0].Group)
}
