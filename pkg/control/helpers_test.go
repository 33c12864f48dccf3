package control

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/controller"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/sim"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

const (
	group        = "home"
	lightID      = datamodel.NodeID(1)
	thermostatID = datamodel.NodeID(2)
)

var errInjected = errors.New("injected failure")

type fixture struct {
	backend *sim.Controller
	ctrl    *controller.Controller
	cache   *state.Cache
	light   *sim.Node
	therm   *sim.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	backend := sim.NewController(sim.Config{})
	light := sim.NewLight(lightID, "Lamp", sim.LightConfig{Level: 127, Saturation: 100})
	therm := sim.NewThermostat(thermostatID, "AC", thermostat.Config{
		InitialCoolingSetpoint: 2400,
		SystemMode:             thermostat.SystemModeOff,
	})
	backend.AddNode(light)
	backend.AddNode(therm)

	ctrl, err := controller.New(controller.Options{Backend: backend})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(ctx))
	_, err = ctrl.Discover(ctx, group, lightID, "")
	require.NoError(t, err)
	_, err = ctrl.Discover(ctx, group, thermostatID, "")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = ctrl.Stop()
		_ = backend.Close()
	})
	return &fixture{
		backend: backend,
		ctrl:    ctrl,
		cache:   state.NewCache(state.CacheConfig{}),
		light:   light,
		therm:   therm,
	}
}

func (f *fixture) config(node datamodel.NodeID, resolver Resolver) BindingConfig {
	if resolver == nil {
		resolver = f.ctrl
	}
	return BindingConfig{
		Group:    group,
		Node:     node,
		Endpoint: sim.LightEndpoint,
		Resolver: resolver,
		Cache:    f.cache,
	}
}

func (f *fixture) level() *levelcontrol.Cluster {
	return f.light.Cluster(datamodel.ClusterPath{Endpoint: sim.LightEndpoint, Cluster: levelcontrol.ClusterID}).(*levelcontrol.Cluster)
}

func (f *fixture) thermostat() *thermostat.Cluster {
	return f.therm.Cluster(datamodel.ClusterPath{Endpoint: sim.ThermostatEndpoint, Cluster: thermostat.ClusterID}).(*thermostat.Cluster)
}

// stateRecorder collects FSM transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(_, to State) {
	r.mu.Lock()
	r.states = append(r.states, to)
	r.mu.Unlock()
}

func (r *stateRecorder) list() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// eventRecorder collects UI events.
type eventRecorder struct {
	mu     sync.Mutex
	events []ui.Event
}

func (r *eventRecorder) observe(e ui.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for i, e := range r.events {
		if i == 0 || e.Value != r.events[i-1].Value {
			out = append(out, e.Value)
		}
	}
	return out
}

// recordingResolver wraps device handles so invoked command fields can be
// inspected. onInvoke runs after the inner invoke succeeded.
type recordingResolver struct {
	inner    Resolver
	onInvoke func()

	mu     sync.Mutex
	levels []uint8
}

func (r *recordingResolver) ClusterController(ctx context.Context, group string, node datamodel.NodeID, cluster datamodel.ClusterID) (*device.ClusterClient, error) {
	cc, err := r.inner.ClusterController(ctx, group, node, cluster)
	if err != nil {
		return nil, err
	}
	return device.NewClusterClient(&recordingDevice{Device: cc.Device(), r: r}, cc.Path()), nil
}

func (r *recordingResolver) sentLevels() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint8(nil), r.levels...)
}

type recordingDevice struct {
	device.Device
	r *recordingResolver
}

func (d *recordingDevice) Invoke(ctx context.Context, path datamodel.CommandPath, fields []byte) ([]byte, error) {
	if path.Cluster == levelcontrol.ClusterID {
		var req levelcontrol.MoveToLevelRequest
		if err := clusters.DecodeRequest(fields, &req); err == nil {
			d.r.mu.Lock()
			d.r.levels = append(d.r.levels, req.Level)
			d.r.mu.Unlock()
		}
	}
	resp, err := d.Device.Invoke(ctx, path, fields)
	if err == nil && d.r.onInvoke != nil {
		d.r.onInvoke()
	}
	return resp, err
}
