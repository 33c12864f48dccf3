package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/controller"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/sim"
	"github.com/rmaker/homectl/pkg/ui"
)

func TestManagerBind(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	f := newFixture(t)
	q := ui.NewQueue(0)
	q.Start()
	defer q.Stop()

	var mu sync.Mutex
	seen := map[string]bool{}
	var levelSet []datamodel.NodeID
	m, err := NewManager(ManagerConfig{
		Controller: f.ctrl,
		Cache:      f.cache,
		Queue:      q,
		Observer: func(e ui.Event) {
			mu.Lock()
			seen[e.Control] = true
			mu.Unlock()
		},
		OnLevelSet: func(node datamodel.NodeID) { levelSet = append(levelSet, node) },
	})
	require.NoError(t, err)
	ctx := context.Background()

	n, err := m.Bind(ctx, group, lightID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = m.Bind(ctx, group, thermostatID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, q.Sync(func() {}))

	assert.Len(t, m.Sliders(), 3)
	assert.Len(t, m.Modes(), 2)
	assert.Equal(t, 5, m.Registry().Len())

	mu.Lock()
	assert.True(t, seen[ControlName(group, lightID, "brightness")])
	assert.True(t, seen[ControlName(group, thermostatID, "mode")])
	mu.Unlock()

	b, err := m.Slider(group, lightID, Brightness)
	require.NoError(t, err)
	assert.Same(t, m.Sliders()[0], b)
	assert.Equal(t, StateReady, b.State())

	levelPath := datamodel.AttributePath{Endpoint: sim.LightEndpoint, Cluster: levelcontrol.ClusterID, Attribute: levelcontrol.AttrCurrentLevel}
	assert.Equal(t, 1, f.light.Subscriptions(levelPath))

	_, err = m.Mode(group, lightID, SystemMode)
	assert.ErrorIs(t, err, controller.ErrClusterUnsupported)
	_, err = m.Bind(ctx, "elsewhere", lightID)
	assert.ErrorIs(t, err, controller.ErrUnknownNode)

	snap := m.Snapshot()
	assert.Len(t, snap, 5)

	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Registry().Len())
	assert.Eventually(t, func() bool { return f.light.Subscriptions(levelPath) == 0 }, time.Second, 5*time.Millisecond)

	_, err = m.Slider(group, lightID, Saturation)
	assert.ErrorIs(t, err, ErrClosed)

	q.Stop()
	_ = f.backend.Close()
}

func TestManagerModeSetOnlyForSystemMode(t *testing.T) {
	f := newFixture(t)
	q := ui.NewQueue(0)
	q.Start()
	defer q.Stop()

	var mu sync.Mutex
	var set []string
	m, err := NewManager(ManagerConfig{
		Controller: f.ctrl,
		Cache:      f.cache,
		Queue:      q,
		OnModeSet: func(node datamodel.NodeID, param, option string) {
			mu.Lock()
			set = append(set, param+"="+option)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer m.Close()
	ctx := context.Background()

	_, err = m.Bind(ctx, group, thermostatID)
	require.NoError(t, err)
	seq, err := m.Mode(group, thermostatID, ControlSequence)
	require.NoError(t, err)
	mode, err := m.Mode(group, thermostatID, SystemMode)
	require.NoError(t, err)

	require.NoError(t, seq.Select(ctx, "Cool"))
	require.NoError(t, mode.Select(ctx, "Heat"))
	require.NoError(t, q.Sync(func() {}))

	mu.Lock()
	assert.Equal(t, []string{"mode=Heat"}, set)
	mu.Unlock()
}

func TestNewManagerRequiresDeps(t *testing.T) {
	_, err := NewManager(ManagerConfig{})
	assert.Error(t, err)
}
