package thermostat

import (
	"context"
	"sync"

	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Config provides dependencies for the Thermostat cluster.
type Config struct {
	EndpointID datamodel.EndpointID

	// Cooling setpoint limits. Zero values use the defaults.
	AbsMinCoolSetpoint int16
	AbsMaxCoolSetpoint int16

	InitialCoolingSetpoint int16
	InitialHeatingSetpoint int16
	LocalTemperature       int16
	SystemMode             SystemMode
	ControlSequence        ControlSequence
}

// Cluster is the server side of the Thermostat cluster.
type Cluster struct {
	*datamodel.ClusterBase

	mu      sync.RWMutex
	minCool int16
	maxCool int16
	cool    int16
	heat    int16
	local   int16
	mode    SystemMode
	seq     ControlSequence
}

// New creates a new Thermostat cluster.
func New(cfg Config) *Cluster {
	if cfg.AbsMinCoolSetpoint == 0 {
		cfg.AbsMinCoolSetpoint = DefaultAbsMinCoolSetpoint
	}
	if cfg.AbsMaxCoolSetpoint == 0 {
		cfg.AbsMaxCoolSetpoint = DefaultAbsMaxCoolSetpoint
	}
	c := &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID),
		minCool:     cfg.AbsMinCoolSetpoint,
		maxCool:     cfg.AbsMaxCoolSetpoint,
		cool:        cfg.InitialCoolingSetpoint,
		heat:        cfg.InitialHeatingSetpoint,
		local:       cfg.LocalTemperature,
		mode:        cfg.SystemMode,
		seq:         cfg.ControlSequence,
	}
	if c.cool < c.minCool || c.cool > c.maxCool {
		c.cool = c.minCool
	}
	return c
}

// CoolingSetpoint returns OccupiedCoolingSetpoint.
func (c *Cluster) CoolingSetpoint() int16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cool
}

// SystemMode returns the current mode.
func (c *Cluster) SystemMode() SystemMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// ControlSequence returns ControlSequenceOfOperation.
func (c *Cluster) ControlSequence() ControlSequence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID, w *tlv.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch attr {
	case AttrLocalTemperature:
		return w.PutInt(tlv.Anonymous(), int64(c.local))
	case AttrAbsMinCoolSetpointLimit:
		return w.PutInt(tlv.Anonymous(), int64(c.minCool))
	case AttrAbsMaxCoolSetpointLimit:
		return w.PutInt(tlv.Anonymous(), int64(c.maxCool))
	case AttrOccupiedCoolingSetpoint:
		return w.PutInt(tlv.Anonymous(), int64(c.cool))
	case AttrOccupiedHeatingSetpoint:
		return w.PutInt(tlv.Anonymous(), int64(c.heat))
	case AttrControlSequenceOfOperation:
		return w.PutUint(tlv.Anonymous(), uint64(c.seq))
	case AttrSystemMode:
		return w.PutUint(tlv.Anonymous(), uint64(c.mode))
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

// WriteAttribute implements datamodel.Cluster.
func (c *Cluster) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, r *tlv.Reader) error {
	switch attr {
	case AttrOccupiedCoolingSetpoint, AttrOccupiedHeatingSetpoint:
		return c.writeSetpoint(attr, r)
	case AttrControlSequenceOfOperation, AttrSystemMode:
		return c.writeEnum(attr, r)
	case AttrLocalTemperature, AttrAbsMinCoolSetpointLimit, AttrAbsMaxCoolSetpointLimit:
		return datamodel.ErrUnsupportedWrite
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

func (c *Cluster) writeSetpoint(attr datamodel.AttributeID, r *tlv.Reader) error {
	if err := r.Next(); err != nil {
		return err
	}
	v, err := r.Int()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if attr == AttrOccupiedCoolingSetpoint {
		if v < int64(c.minCool) || v > int64(c.maxCool) {
			c.mu.Unlock()
			return datamodel.ErrConstraintError
		}
		c.cool = int16(v)
	} else {
		if v < -27315 || v > 32767 {
			c.mu.Unlock()
			return datamodel.ErrConstraintError
		}
		c.heat = int16(v)
	}
	c.mu.Unlock()

	c.NotifyChanged(attr)
	return nil
}

func (c *Cluster) writeEnum(attr datamodel.AttributeID, r *tlv.Reader) error {
	if err := r.Next(); err != nil {
		return err
	}
	v, err := r.Uint()
	if err != nil {
		return err
	}
	if v > 0xFF {
		return datamodel.ErrConstraintError
	}

	c.mu.Lock()
	if attr == AttrSystemMode {
		m := SystemMode(v)
		if !m.IsValid() {
			c.mu.Unlock()
			return datamodel.ErrConstraintError
		}
		c.mode = m
	} else {
		s := ControlSequence(v)
		if !s.IsValid() {
			c.mu.Unlock()
			return datamodel.ErrConstraintError
		}
		c.seq = s
	}
	c.mu.Unlock()

	c.NotifyChanged(attr)
	return nil
}

// InvokeCommand implements datamodel.Cluster. No thermostat commands are hosted.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, r *tlv.Reader) error {
	return datamodel.ErrUnsupportedCommand
}
