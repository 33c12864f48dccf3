package control

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/controller"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Controller *controller.Controller
	Cache      *state.Cache
	Queue      *ui.Queue

	// Observer receives the events of every control the manager creates.
	Observer ui.Observer

	SubscribeParams device.SubscribeParams

	// OnLevelSet runs when a brightness change switched a light on.
	OnLevelSet func(node datamodel.NodeID)

	// OnModeSet runs after a write of a ModeParam with Notify set succeeded.
	OnModeSet func(node datamodel.NodeID, param, option string)

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

type controlKey struct {
	group string
	node  datamodel.NodeID
	param string
}

// ControlName names the UI control of a parameter on a node.
func ControlName(group string, node datamodel.NodeID, param string) string {
	return fmt.Sprintf("%s/%s/%s", group, node, param)
}

// Manager creates bindings per (group, node, parameter) and owns the
// subscription registry they share.
type Manager struct {
	cfg      ManagerConfig
	registry *Registry
	log      logging.LeveledLogger

	mu      sync.Mutex
	sliders map[controlKey]*SliderBinding
	modes   map[controlKey]*ModeBinding
	closed  bool
}

// NewManager creates a manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Controller == nil || cfg.Cache == nil {
		return nil, fmt.Errorf("control: controller and cache are required")
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
		cfg.LoggerFactory = lf
	}
	return &Manager{
		cfg:      cfg,
		registry: NewRegistry(lf),
		log:      lf.NewLogger("control"),
		sliders:  make(map[controlKey]*SliderBinding),
		modes:    make(map[controlKey]*ModeBinding),
	}, nil
}

// Registry returns the shared subscription registry.
func (m *Manager) Registry() *Registry { return m.registry }

func (m *Manager) bindingConfig(group string, node datamodel.NodeID, cluster datamodel.ClusterID) (BindingConfig, error) {
	info, ok := m.cfg.Controller.Topology().Node(group, node)
	if !ok {
		return BindingConfig{}, fmt.Errorf("%w: %s/%s", controller.ErrUnknownNode, group, node)
	}
	ep, ok := info.Endpoints[cluster]
	if !ok {
		return BindingConfig{}, fmt.Errorf("%w: 0x%04X on %s", controller.ErrClusterUnsupported, uint32(cluster), node)
	}
	return BindingConfig{
		Group:           group,
		Node:            node,
		Endpoint:        ep,
		Resolver:        m.cfg.Controller,
		Cache:           m.cfg.Cache,
		Queue:           m.cfg.Queue,
		Registry:        m.registry,
		SubscribeParams: m.cfg.SubscribeParams,
		LoggerFactory:   m.cfg.LoggerFactory,
	}, nil
}

// Slider returns the binding of param on node, creating it and drawing its
// offline UI on first use.
func (m *Manager) Slider(group string, node datamodel.NodeID, param SliderParam) (*SliderBinding, error) {
	key := controlKey{group, node, param.ID}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if b, ok := m.sliders[key]; ok {
		m.mu.Unlock()
		return b, nil
	}

	cfg, err := m.bindingConfig(group, node, param.Cluster)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	model := ui.NewSliderModel(ControlName(group, node, param.ID))
	if m.cfg.Observer != nil {
		model.Observe(m.cfg.Observer)
	}
	b := NewSliderBinding(cfg, param, model)
	if m.cfg.OnLevelSet != nil {
		b.OnLevelSet = func() { m.cfg.OnLevelSet(node) }
	}
	m.sliders[key] = b
	m.mu.Unlock()

	b.SetupInitial()
	return b, nil
}

// Mode returns the dropdown binding of param on node.
func (m *Manager) Mode(group string, node datamodel.NodeID, param ModeParam) (*ModeBinding, error) {
	key := controlKey{group, node, param.ID}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if b, ok := m.modes[key]; ok {
		m.mu.Unlock()
		return b, nil
	}

	cfg, err := m.bindingConfig(group, node, param.Cluster)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	model := ui.NewDropdownModel(ControlName(group, node, param.ID), param.Labels())
	if m.cfg.Observer != nil {
		model.Observe(m.cfg.Observer)
	}
	b := NewModeBinding(cfg, param, model)
	if m.cfg.OnModeSet != nil && param.Notify {
		id := param.ID
		b.OnModeSet = func(option string) { m.cfg.OnModeSet(node, id, option) }
	}
	m.modes[key] = b
	m.mu.Unlock()

	b.SetupInitial()
	return b, nil
}

// Bind creates every binding the node supports, refreshes it and
// subscribes. Refresh failures are logged and leave the offline UI in
// place. It returns the number of bindings.
func (m *Manager) Bind(ctx context.Context, group string, node datamodel.NodeID) (int, error) {
	info, ok := m.cfg.Controller.Topology().Node(group, node)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", controller.ErrUnknownNode, group, node)
	}

	type refresher interface {
		Refresh(ctx context.Context) error
		Subscribe(ctx context.Context) error
		Key() state.Key
	}
	var bound []refresher
	for _, p := range SliderParams() {
		if !info.Supports(p.Cluster) {
			continue
		}
		b, err := m.Slider(group, node, p)
		if err != nil {
			return len(bound), err
		}
		bound = append(bound, b)
	}
	for _, p := range ModeParams() {
		if !info.Supports(p.Cluster) {
			continue
		}
		b, err := m.Mode(group, node, p)
		if err != nil {
			return len(bound), err
		}
		bound = append(bound, b)
	}

	for _, b := range bound {
		if err := b.Refresh(ctx); err != nil {
			m.log.Debugf("refresh %s: %v", b.Key(), err)
		}
		if err := b.Subscribe(ctx); err != nil {
			m.log.Warnf("subscribe %s: %v", b.Key(), err)
		}
	}
	return len(bound), nil
}

// Sliders returns the slider bindings ordered by control name.
func (m *Manager) Sliders() []*SliderBinding {
	m.mu.Lock()
	out := make([]*SliderBinding, 0, len(m.sliders))
	for _, b := range m.sliders {
		out = append(out, b)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return ControlName(out[i].group, out[i].node, out[i].param.ID) < ControlName(out[j].group, out[j].node, out[j].param.ID)
	})
	return out
}

// Modes returns the dropdown bindings ordered by control name.
func (m *Manager) Modes() []*ModeBinding {
	m.mu.Lock()
	out := make([]*ModeBinding, 0, len(m.modes))
	for _, b := range m.modes {
		out = append(out, b)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return ControlName(out[i].group, out[i].node, out[i].param.ID) < ControlName(out[j].group, out[j].node, out[j].param.ID)
	})
	return out
}

// Snapshot returns the current event of every control.
func (m *Manager) Snapshot() []ui.Event {
	var out []ui.Event
	for _, b := range m.Sliders() {
		if s, ok := b.slider.(*ui.SliderModel); ok {
			out = append(out, s.Snapshot())
		}
	}
	for _, b := range m.Modes() {
		if d, ok := b.dropdown.(*ui.DropdownModel); ok {
			out = append(out, d.Snapshot())
		}
	}
	return out
}

// Close cancels every subscription.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.registry.Close()
	return nil
}
