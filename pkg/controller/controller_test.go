package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/clusters/colorcontrol"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/discovery"
	"github.com/rmaker/homectl/pkg/sim"
)

func newTestController(t *testing.T, opts Options) (*Controller, *sim.Controller) {
	t.Helper()
	backend := sim.NewController(sim.Config{})
	t.Cleanup(func() { _ = backend.Close() })
	backend.AddNode(sim.NewLight(7, "Desk lamp", sim.LightConfig{Level: 100, On: true}))

	opts.Backend = backend
	c, err := New(opts)
	require.NoError(t, err)
	return c, backend
}

func TestStartStop(t *testing.T) {
	c, _ := newTestController(t, DefaultOptions())

	assert.False(t, c.IsStarted())
	assert.ErrorIs(t, c.Stop(), ErrNotStarted)
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
	assert.True(t, c.IsStarted())
	require.NoError(t, c.Stop())

	_, err := c.ClusterController(context.Background(), "g", 7, levelcontrol.ClusterID)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestDiscoverAndResolve(t *testing.T) {
	c, _ := newTestController(t, DefaultOptions())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	info, err := c.Discover(ctx, "office", 7, "")
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", info.Name)
	assert.True(t, info.Supports(levelcontrol.ClusterID))
	assert.True(t, info.Supports(colorcontrol.ClusterID))
	assert.False(t, info.Supports(thermostat.ClusterID))
	assert.Equal(t, []string{"office"}, c.Topology().Groups())

	cc, err := c.ClusterController(ctx, "office", 7, levelcontrol.ClusterID)
	require.NoError(t, err)
	assert.Equal(t, sim.LightEndpoint, cc.Path().Endpoint)

	level, err := levelcontrol.NewClient(cc).ReadCurrentLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(100), level)

	_, err = c.ClusterController(ctx, "office", 7, thermostat.ClusterID)
	assert.ErrorIs(t, err, ErrClusterUnsupported)

	_, err = c.ClusterController(ctx, "kitchen", 7, levelcontrol.ClusterID)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestResolveTimeout(t *testing.T) {
	topo := NewTopology()
	topo.Add(NodeInfo{
		ID:        7,
		Group:     "office",
		Endpoints: map[datamodel.ClusterID]datamodel.EndpointID{levelcontrol.ClusterID: 1},
	})
	c, backend := newTestController(t, Options{ResolveTimeout: 20 * time.Millisecond, Topology: topo})
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	backend.Node(7).SetOffline(true)
	start := time.Now()
	_, err := c.ClusterController(ctx, "office", 7, levelcontrol.ClusterID)
	assert.ErrorIs(t, err, device.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveWithDiscovery(t *testing.T) {
	mock := discovery.NewMockMDNSResolver()
	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		CompressedFabricID: 0xF00D,
		ServerFactory:      &discovery.MockMDNSServerFactory{Resolver: mock},
	})
	t.Cleanup(func() { _ = adv.Close() })
	resolver, err := discovery.NewResolver(discovery.ResolverConfig{MDNSResolver: mock})
	require.NoError(t, err)

	c, backend := newTestController(t, Options{Discovery: resolver, CompressedFabricID: 0xF00D})
	backend.AddNode(sim.NewLight(8, "Unlisted", sim.LightConfig{}))
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, adv.AdvertiseNode(7))
	_, err = c.Device(ctx, 7)
	require.NoError(t, err)

	_, err = c.Device(ctx, 8)
	assert.ErrorIs(t, err, discovery.ErrServiceNotFound)
}

func TestResolveForgetsUnreachableNode(t *testing.T) {
	mock := discovery.NewMockMDNSResolver()
	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		CompressedFabricID: 0xF00D,
		ServerFactory:      &discovery.MockMDNSServerFactory{Resolver: mock},
	})
	t.Cleanup(func() { _ = adv.Close() })
	resolver, err := discovery.NewResolver(discovery.ResolverConfig{MDNSResolver: mock})
	require.NoError(t, err)

	c, _ := newTestController(t, Options{Discovery: resolver, CompressedFabricID: 0xF00D})
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, adv.AdvertiseNode(7))
	require.NoError(t, adv.AdvertiseNode(9))

	_, err = c.Device(ctx, 7)
	require.NoError(t, err)
	_, err = c.Device(ctx, 9)
	assert.ErrorIs(t, err, device.ErrNodeNotFound)

	mock.ClearServices()

	// Node 7 is still served from the resolver cache; node 9 was forgotten.
	_, err = c.Device(ctx, 7)
	assert.NoError(t, err)
	_, err = c.Device(ctx, 9)
	assert.ErrorIs(t, err, discovery.ErrServiceNotFound)
}
