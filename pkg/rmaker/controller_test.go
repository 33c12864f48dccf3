package rmaker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/control"
	"github.com/rmaker/homectl/pkg/controller"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

const nodeName = "7CDFA1B2C3D4"

var (
	levelPath    = attr(levelcontrol.ClusterID, levelcontrol.AttrCurrentLevel)
	powerPath    = attr(onoff.ClusterID, onoff.AttrOnOff)
	setpointPath = attr(thermostat.ClusterID, thermostat.AttrOccupiedCoolingSetpoint)
)

// fakeNode plays a RainMaker node: it records remote updates and, when
// echo is set, reports them back on params/local.
type fakeNode struct {
	t      *testing.T
	client Transport

	mu       sync.Mutex
	received []Payload
	echo     bool
}

func newFakeNode(t *testing.T, broker *MemoryBroker, echo bool) *fakeNode {
	f := &fakeNode{t: t, client: broker.Client(), echo: echo}
	require.NoError(t, f.client.Subscribe(RemoteTopic(nodeName), f.handle))
	t.Cleanup(func() { _ = f.client.Close() })
	return f
}

func (f *fakeNode) handle(_ string, payload []byte) {
	var doc Payload
	if err := json.Unmarshal(payload, &doc); err != nil {
		f.t.Errorf("bad payload: %v", err)
		return
	}
	f.mu.Lock()
	f.received = append(f.received, doc)
	echo := f.echo
	f.mu.Unlock()
	if echo {
		_ = f.client.Publish(LocalTopic(nodeName), payload)
	}
}

func (f *fakeNode) report(doc Payload) {
	payload, err := json.Marshal(doc)
	require.NoError(f.t, err)
	require.NoError(f.t, f.client.Publish(LocalTopic(nodeName), payload))
}

func (f *fakeNode) last() Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.received) == 0 {
		return nil
	}
	return f.received[len(f.received)-1]
}

func newTestController(t *testing.T, broker *MemoryBroker) *Controller {
	t.Helper()
	c, err := NewController(Config{
		Transport: broker.Client(),
		Nodes:     map[datamodel.NodeID]string{7: nodeName},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDeviceUnknownNode(t *testing.T) {
	c := newTestController(t, NewMemoryBroker())
	_, err := c.Device(context.Background(), 8)
	assert.ErrorIs(t, err, device.ErrNodeNotFound)
}

func TestReadWaitsForReport(t *testing.T) {
	broker := NewMemoryBroker()
	node := newFakeNode(t, broker, false)
	c := newTestController(t, broker)
	dev, err := c.Device(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = dev.ReadAttribute(ctx, levelPath)
	assert.ErrorIs(t, err, device.ErrTimeout)

	node.report(Payload{"Light": {"Brightness": 50, "Power": true}})
	data, err := dev.ReadAttribute(context.Background(), levelPath)
	require.NoError(t, err)
	v, err := clusters.DecodeNumber(data)
	require.NoError(t, err)
	assert.Equal(t, int64(127), v)

	data, err = dev.ReadAttribute(context.Background(), powerPath)
	require.NoError(t, err)
	v, _ = clusters.DecodeNumber(data)
	assert.Equal(t, int64(1), v)

	data, err = dev.ReadAttribute(context.Background(), attr(levelcontrol.ClusterID, levelcontrol.AttrMaxLevel))
	require.NoError(t, err)
	v, _ = clusters.DecodeNumber(data)
	assert.Equal(t, int64(254), v)

	_, err = dev.ReadAttribute(context.Background(), attr(0x0101, 0))
	assert.ErrorIs(t, err, datamodel.ErrUnsupportedAttribute)
}

func TestInvokePublishesParams(t *testing.T) {
	broker := NewMemoryBroker()
	node := newFakeNode(t, broker, false)
	c := newTestController(t, broker)
	ctx := context.Background()
	dev, err := c.Device(ctx, 7)
	require.NoError(t, err)
	cc := device.NewClusterClient(dev, datamodel.ClusterPath{Endpoint: DefaultEndpoint, Cluster: levelcontrol.ClusterID})

	require.NoError(t, levelcontrol.NewClient(cc).MoveToLevelWithOnOff(ctx, levelcontrol.MoveToLevelRequest{Level: 127}))
	assert.Equal(t, Payload{"Light": {"Brightness": 50.0, "Power": true}}, node.last())

	oo := onoff.NewClient(device.NewClusterClient(dev, datamodel.ClusterPath{Endpoint: DefaultEndpoint, Cluster: onoff.ClusterID}))
	require.NoError(t, oo.Off(ctx))
	assert.Equal(t, Payload{"Light": {"Power": false}}, node.last())

	tc := thermostat.NewClient(device.NewClusterClient(dev, datamodel.ClusterPath{Endpoint: DefaultEndpoint, Cluster: thermostat.ClusterID}))
	require.NoError(t, tc.WriteOccupiedCoolingSetpoint(ctx, 2450))
	assert.Equal(t, Payload{"Air Conditioner": {"Setpoint": 24.5}}, node.last())

	_, err = dev.Invoke(ctx, datamodel.CommandPath{Endpoint: 1, Cluster: thermostat.ClusterID, Command: 0}, nil)
	assert.ErrorIs(t, err, datamodel.ErrUnsupportedCommand)
}

func TestSubscribe(t *testing.T) {
	broker := NewMemoryBroker()
	node := newFakeNode(t, broker, false)
	c := newTestController(t, broker)
	dev, err := c.Device(context.Background(), 7)
	require.NoError(t, err)

	node.report(Payload{"Air Conditioner": {"Setpoint": 22}})

	var mu sync.Mutex
	var got []int64
	sub, err := dev.Subscribe(context.Background(), setpointPath, device.DefaultSubscribeParams(), func(_ datamodel.AttributePath, data []byte) {
		v, err := clusters.DecodeNumber(data)
		assert.NoError(t, err)
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	require.NoError(t, err)

	node.report(Payload{"Air Conditioner": {"Setpoint": 23.5}})
	node.report(Payload{"Light": {"Brightness": 10}})
	require.NoError(t, sub.Cancel())
	node.report(Payload{"Air Conditioner": {"Setpoint": 30}})

	mu.Lock()
	assert.Equal(t, []int64{2200, 2350}, got)
	mu.Unlock()
	select {
	case <-sub.Done():
	default:
		t.Error("expected subscription to be done")
	}
}

// A RainMaker light driven through the control layer behaves like a
// Matter one.
func TestBrightnessBindingOverMQTT(t *testing.T) {
	broker := NewMemoryBroker()
	node := newFakeNode(t, broker, true)
	backend := newTestController(t, broker)
	ctx := context.Background()

	topo := controller.NewTopology()
	topo.Add(controller.NodeInfo{
		ID:    7,
		Group: "home",
		Endpoints: map[datamodel.ClusterID]datamodel.EndpointID{
			levelcontrol.ClusterID: DefaultEndpoint,
			onoff.ClusterID:        DefaultEndpoint,
		},
	})
	ctrl, err := controller.New(controller.Options{Backend: backend, Topology: topo})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(ctx))

	cache := state.NewCache(state.CacheConfig{})
	slider := ui.NewSliderModel("b")
	b := control.NewSliderBinding(control.BindingConfig{
		Group:    "home",
		Node:     7,
		Endpoint: DefaultEndpoint,
		Resolver: ctrl,
		Cache:    cache,
	}, control.Brightness, slider)

	node.report(Payload{"Light": {"Brightness": 20, "Power": false}})
	require.NoError(t, b.Refresh(ctx))
	v, _ := cache.Get(b.Key())
	assert.Equal(t, int64(50), v)
	assert.InDelta(t, control.Brightness.ToDisplay(50), slider.Value(), 0.001)

	require.NoError(t, b.Subscribe(ctx))
	defer b.Unsubscribe()

	// The echo carries a whole percentage and must map back to the level
	// that was sent.
	for _, display := range []float64{40, 37, 1, 100} {
		require.NoError(t, b.Change(ctx, display))
		sent := control.Brightness.ToDevice(display)
		v, _ = cache.Get(b.Key())
		assert.Equal(t, sent, v, "display %v", display)
	}
	assert.Equal(t, Payload{"Light": {"Brightness": 100.0, "Power": true}}, node.last())

	node.report(Payload{"Light": {"Brightness": 80}})
	v, _ = cache.Get(b.Key())
	assert.Equal(t, int64(203), v)
	assert.InDelta(t, control.Brightness.ToDisplay(203), slider.Value(), 0.001)
}

func TestParamPercentRoundTrip(t *testing.T) {
	p, ok := DefaultParamMap().ByPath(levelPath)
	require.True(t, ok)
	for display := 1; display <= 100; display++ {
		level := control.Brightness.ToDevice(float64(display))
		pct, ok := p.FromAttribute(level).(int64)
		require.True(t, ok)
		assert.Equal(t, int64(display), pct)
		back, err := p.ToAttribute(float64(pct))
		require.NoError(t, err)
		assert.Equal(t, level, back, "display %d", display)
	}
}

func TestReportBeforeFirstUse(t *testing.T) {
	broker := NewMemoryBroker()
	node := newFakeNode(t, broker, false)
	c := newTestController(t, broker)

	node.report(Payload{"Light": {"Brightness": 40}})

	dev, err := c.Device(context.Background(), 7)
	require.NoError(t, err)
	data, err := dev.ReadAttribute(context.Background(), levelPath)
	require.NoError(t, err)
	v, _ := clusters.DecodeNumber(data)
	assert.Equal(t, int64(101), v)
}

func TestSilentNodeReadTimesOut(t *testing.T) {
	broker := NewMemoryBroker()
	newFakeNode(t, broker, false)
	backend, err := NewController(Config{
		Transport:   broker.Client(),
		Nodes:       map[datamodel.NodeID]string{7: nodeName},
		ReadTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	dev, err := backend.Device(context.Background(), 7)
	require.NoError(t, err)
	start := time.Now()
	_, err = dev.ReadAttribute(context.Background(), levelPath)
	assert.ErrorIs(t, err, device.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	topo := controller.NewTopology()
	topo.Add(controller.NodeInfo{
		ID:        7,
		Group:     "home",
		Endpoints: map[datamodel.ClusterID]datamodel.EndpointID{levelcontrol.ClusterID: DefaultEndpoint},
	})
	ctrl, err := controller.New(controller.Options{Backend: backend, Topology: topo})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(context.Background()))

	b := control.NewSliderBinding(control.BindingConfig{
		Group:    "home",
		Node:     7,
		Endpoint: DefaultEndpoint,
		Resolver: ctrl,
		Cache:    state.NewCache(state.CacheConfig{}),
	}, control.Brightness, ui.NewSliderModel("b"))

	// The read chain gives up, so the binding is free for the next write.
	assert.Error(t, b.Refresh(context.Background()))
	assert.Equal(t, control.StateIdle, b.State())
	require.NoError(t, b.Change(context.Background(), 40))
}
