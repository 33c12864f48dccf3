package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/clusters/colorcontrol"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/config"
	"github.com/rmaker/homectl/pkg/control"
	"github.com/rmaker/homectl/pkg/controller"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/discovery"
	"github.com/rmaker/homectl/pkg/provision"
	"github.com/rmaker/homectl/pkg/rmaker"
	"github.com/rmaker/homectl/pkg/sim"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
	"github.com/rmaker/homectl/pkg/webui"
)

var errNoSessionTransport = errors.New("no GATT session transport for this device")

// App is a running homectl instance.
type App struct {
	cfg *config.Config
	lf  logging.LoggerFactory
	log logging.LeveledLogger

	persister  state.Persister
	cache      *state.Cache
	queue      *ui.Queue
	sim        *sim.Controller
	mqtt       rmaker.Transport
	backend    device.Controller
	advertiser *discovery.Advertiser
	ctrl       *controller.Controller
	mgr        *control.Manager
	web        *webui.Server
	httpSrv    *http.Server
	landing    *provision.Landing
	// session returns the handshake transport for a selected device.
	session func(provision.Device) (provision.SessionTransport, error)

	closeOnce sync.Once
}

// kindClusters is the endpoint layout assumed for nodes that cannot be
// discovered through their descriptor.
func kindClusters(kind string) map[datamodel.ClusterID]datamodel.EndpointID {
	switch kind {
	case config.KindThermostat:
		return map[datamodel.ClusterID]datamodel.EndpointID{thermostat.ClusterID: rmaker.DefaultEndpoint}
	default:
		return map[datamodel.ClusterID]datamodel.EndpointID{
			onoff.ClusterID:        rmaker.DefaultEndpoint,
			levelcontrol.ClusterID: rmaker.DefaultEndpoint,
			colorcontrol.ClusterID: rmaker.DefaultEndpoint,
		}
	}
}

// NewApp builds every component named by cfg. Nothing talks to devices
// until Start.
func NewApp(cfg *config.Config) (*App, error) {
	lf := cfg.LoggerFactory()
	a := &App{cfg: cfg, lf: lf, log: lf.NewLogger("homectl")}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	var err error
	if a.cfg.Store.Path != "" {
		if a.persister, err = state.NewBoltPersister(a.cfg.Store.Path); err != nil {
			return err
		}
	} else {
		a.persister = state.NewMemoryPersister()
	}
	a.cache = state.NewCache(state.CacheConfig{Persister: a.persister, LoggerFactory: a.lf})
	if err := a.cache.Load(); err != nil {
		a.log.Warnf("load cache: %v", err)
	}
	a.queue = ui.NewQueue(64)
	a.queue.Start()

	fabric, err := a.cfg.Discovery.FabricID()
	if err != nil {
		return err
	}

	topo := controller.NewTopology()
	switch a.cfg.Backend {
	case config.BackendRMaker:
		if err := a.buildRMaker(topo); err != nil {
			return err
		}
	default:
		a.buildSim(fabric)
	}

	var resolver *discovery.Resolver
	if a.cfg.Discovery.Enabled {
		resolver, err = discovery.NewResolver(discovery.ResolverConfig{
			BrowseTimeout: a.cfg.Discovery.BrowseTimeout,
			LookupTimeout: a.cfg.Discovery.LookupTimeout,
			LoggerFactory: a.lf,
		})
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
	}

	a.ctrl, err = controller.New(controller.Options{
		ResolveTimeout:     a.cfg.Controller.ResolveTimeout,
		Backend:            a.backend,
		Topology:           topo,
		Discovery:          resolver,
		CompressedFabricID: fabric,
		LoggerFactory:      a.lf,
	})
	if err != nil {
		return err
	}

	var observer ui.Observer
	if a.cfg.Web.Listen != "" {
		a.web = webui.NewServer(webui.ServerConfig{
			Cache:          a.cache,
			Controls:       a.controls,
			AllowedOrigins: a.cfg.Web.AllowedOrigins,
			LoggerFactory:  a.lf,
		})
		observer = a.web.Hub().Observer()
	}

	a.mgr, err = control.NewManager(control.ManagerConfig{
		Controller: a.ctrl,
		Cache:      a.cache,
		Queue:      a.queue,
		Observer:   observer,
		OnLevelSet: func(node datamodel.NodeID) {
			a.log.Infof("%s switched on by a level change", node)
		},
		OnModeSet: func(node datamodel.NodeID, param, option string) {
			a.log.Infof("%s %s set to %s", node, param, option)
		},
		LoggerFactory: a.lf,
	})
	if err != nil {
		return err
	}

	a.buildProvision()
	return nil
}

func (a *App) buildSim(fabric uint64) {
	a.sim = sim.NewController(sim.Config{LoggerFactory: a.lf})
	for _, n := range a.cfg.Topology {
		id := datamodel.NodeID(n.ID)
		switch n.Kind {
		case config.KindThermostat:
			a.sim.AddNode(sim.NewThermostat(id, n.Name, thermostat.Config{
				InitialCoolingSetpoint: 2400,
				SystemMode:             thermostat.SystemModeCool,
				ControlSequence:        thermostat.ControlSequenceCoolingAndHeating,
			}))
		default:
			a.sim.AddNode(sim.NewLight(id, n.Name, sim.LightConfig{Level: 127, On: true}))
		}
	}
	a.backend = a.sim

	if a.cfg.Discovery.Advertise {
		a.advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			CompressedFabricID: fabric,
			Port:               a.cfg.Discovery.Port,
			LoggerFactory:      a.lf,
		})
	}
}

func (a *App) buildRMaker(topo *controller.Topology) error {
	t, err := rmaker.DialMQTT(rmaker.MQTTConfig{
		Broker:         a.cfg.MQTT.Broker,
		Username:       a.cfg.MQTT.Username,
		Password:       a.cfg.MQTT.Password,
		ClientID:       a.cfg.MQTT.ClientID,
		ConnectTimeout: a.cfg.MQTT.ConnectTimeout,
		QoS:            a.cfg.MQTT.QoS,
		LoggerFactory:  a.lf,
	})
	if err != nil {
		return err
	}
	a.mqtt = t

	nodes := make(map[datamodel.NodeID]string)
	for _, n := range a.cfg.Topology {
		if n.RMakerID != "" {
			nodes[datamodel.NodeID(n.ID)] = n.RMakerID
		}
		// RainMaker nodes expose no descriptor, so the layout comes from the kind.
		topo.Add(controller.NodeInfo{
			ID:        datamodel.NodeID(n.ID),
			Name:      n.Name,
			Group:     n.Group,
			Endpoints: kindClusters(n.Kind),
		})
	}
	a.backend, err = rmaker.NewController(rmaker.Config{
		Transport:     t,
		Nodes:         nodes,
		ReadTimeout:   a.cfg.MQTT.ReadTimeout,
		LoggerFactory: a.lf,
	})
	return err
}

func (a *App) buildProvision() {
	var src provision.AdvertisementSource
	if a.sim != nil {
		mock := provision.NewMockSource()
		mock.Advertise(
			&provision.MockAdvertisement{Name: a.cfg.Provision.Prefix + "3C61A0", Address: "24:0a:c4:3c:61:a0", Strength: -48},
			&provision.MockAdvertisement{Name: a.cfg.Provision.Prefix + "9F0212", Address: "24:0a:c4:9f:02:12", Strength: -71},
		)
		src = mock
		a.session = func(provision.Device) (provision.SessionTransport, error) {
			return provision.NewMockDevice(a.cfg.Provision.PoP)
		}
	} else {
		var err error
		if src, err = newBLESource(); err != nil {
			a.log.Warnf("BLE unavailable, scanning disabled: %v", err)
			return
		}
		a.session = func(provision.Device) (provision.SessionTransport, error) {
			return nil, errNoSessionTransport
		}
	}
	scanner, err := provision.NewScanner(provision.ScannerConfig{
		Source:        src,
		Timeout:       a.cfg.Provision.ScanTimeout,
		LoggerFactory: a.lf,
	})
	if err != nil {
		a.log.Warnf("scanner: %v", err)
		return
	}
	a.landing = provision.NewLanding(provision.LandingConfig{
		Scanner:           scanner,
		Settings:          a.persister,
		Prefix:            a.cfg.Provision.Prefix,
		AllowPrefixSearch: a.cfg.Provision.AllowPrefixSearch,
		LoggerFactory:     a.lf,
	})
}

func (a *App) controls() []ui.Event {
	if a.mgr == nil {
		return nil
	}
	return a.mgr.Snapshot()
}

// Start connects to the configured nodes and binds their controls. Nodes
// that cannot be reached keep their cached, offline controls.
func (a *App) Start(ctx context.Context) error {
	if err := a.ctrl.Start(ctx); err != nil {
		return err
	}
	if a.advertiser != nil {
		for _, n := range a.sim.Nodes() {
			if err := a.advertiser.AdvertiseNode(n.ID()); err != nil {
				a.log.Warnf("advertise %s: %v", n.ID(), err)
			}
		}
	}
	if a.web != nil {
		a.httpSrv = &http.Server{Addr: a.cfg.Web.Listen, Handler: a.web, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Errorf("web: %v", err)
			}
		}()
		a.log.Infof("web UI on http://%s", a.cfg.Web.Listen)
	}
	for _, n := range a.cfg.Topology {
		if err := a.bindNode(ctx, n); err != nil {
			a.log.Warnf("bind %d: %v", n.ID, err)
		}
	}
	return nil
}

func (a *App) bindNode(ctx context.Context, n config.NodeConfig) error {
	id := datamodel.NodeID(n.ID)
	if a.sim != nil {
		if _, err := a.ctrl.Discover(ctx, n.Group, id, n.Name); err != nil {
			// Without a descriptor walk fall back to the layout of the kind
			// so the offline controls can still be drawn.
			a.ctrl.Topology().Add(controller.NodeInfo{ID: id, Name: n.Name, Group: n.Group, Endpoints: kindClusters(n.Kind)})
			a.log.Debugf("discover %s: %v", id, err)
		}
	}
	count, err := a.mgr.Bind(ctx, n.Group, id)
	if err != nil {
		return err
	}
	a.log.Debugf("bound %d control(s) on %s", count, id)
	return nil
}

// findNode locates a node in any group.
func (a *App) findNode(id datamodel.NodeID) (controller.NodeInfo, bool) {
	topo := a.ctrl.Topology()
	for _, g := range topo.Groups() {
		if info, ok := topo.Node(g, id); ok {
			return info, true
		}
	}
	return controller.NodeInfo{}, false
}

// Close stops every component. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.httpSrv.Shutdown(ctx)
		cancel()
	}
	if a.web != nil {
		a.web.Stop()
	}
	if a.mgr != nil {
		_ = a.mgr.Close()
	}
	if a.ctrl != nil {
		_ = a.ctrl.Stop()
	}
	if a.advertiser != nil {
		_ = a.advertiser.Close()
	}
	if c, ok := a.backend.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if a.mqtt != nil {
		_ = a.mqtt.Close()
	}
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.persister != nil {
		_ = a.persister.Close()
	}
}
