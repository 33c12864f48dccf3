package levelcontrol

import (
	"context"
	"sync"

	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Config provides dependencies for the Level Control cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// MinLevel and MaxLevel bound CurrentLevel. Zero values default to
	// MinLevelSentinel and MaxLevelValue.
	MinLevel uint8
	MaxLevel uint8

	// InitialLevel is clamped into [MinLevel, MaxLevel].
	InitialLevel uint8

	// OnOff is the coupled On/Off cluster on the same endpoint (optional).
	OnOff *onoff.Cluster
}

// Cluster is the server side of the Level Control cluster.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu           sync.RWMutex
	currentLevel uint8
	onLevel      *uint8
}

// New creates a new Level Control cluster.
func New(cfg Config) *Cluster {
	if cfg.MinLevel == 0 {
		cfg.MinLevel = MinLevelSentinel
	}
	if cfg.MaxLevel == 0 {
		cfg.MaxLevel = MaxLevelValue
	}
	c := &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID),
		config:      cfg,
	}
	c.currentLevel = c.clamp(cfg.InitialLevel)
	return c
}

func (c *Cluster) clamp(level uint8) uint8 {
	if level < c.config.MinLevel {
		return c.config.MinLevel
	}
	if level > c.config.MaxLevel {
		return c.config.MaxLevel
	}
	return level
}

// CurrentLevel returns the current level.
func (c *Cluster) CurrentLevel() uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentLevel
}

// SetLevel moves to level immediately, clamped to the configured range.
// It is how a simulated local interaction changes the light.
func (c *Cluster) SetLevel(level uint8) {
	level = c.clamp(level)
	c.mu.Lock()
	changed := c.currentLevel != level
	c.currentLevel = level
	c.mu.Unlock()
	if changed {
		c.NotifyChanged(AttrCurrentLevel)
	}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID, w *tlv.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch attr {
	case AttrCurrentLevel:
		return w.PutUint(tlv.Anonymous(), uint64(c.currentLevel))
	case AttrRemainingTime:
		return w.PutUint(tlv.Anonymous(), 0)
	case AttrMinLevel:
		return w.PutUint(tlv.Anonymous(), uint64(c.config.MinLevel))
	case AttrMaxLevel:
		return w.PutUint(tlv.Anonymous(), uint64(c.config.MaxLevel))
	case AttrOnLevel:
		if c.onLevel == nil {
			return w.PutNull(tlv.Anonymous())
		}
		return w.PutUint(tlv.Anonymous(), uint64(*c.onLevel))
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

// WriteAttribute implements datamodel.Cluster. Only OnLevel is writable.
func (c *Cluster) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, r *tlv.Reader) error {
	switch attr {
	case AttrOnLevel:
	case AttrCurrentLevel, AttrRemainingTime, AttrMinLevel, AttrMaxLevel:
		return datamodel.ErrUnsupportedWrite
	default:
		return datamodel.ErrUnsupportedAttribute
	}

	if err := r.Next(); err != nil {
		return err
	}
	if r.Type() == tlv.ElementTypeNull {
		c.mu.Lock()
		c.onLevel = nil
		c.mu.Unlock()
		c.NotifyChanged(AttrOnLevel)
		return nil
	}
	v, err := r.Uint()
	if err != nil {
		return err
	}
	if v > uint64(MaxLevelValue) {
		return datamodel.ErrConstraintError
	}
	lvl := uint8(v)
	c.mu.Lock()
	c.onLevel = &lvl
	c.mu.Unlock()
	c.NotifyChanged(AttrOnLevel)
	return nil
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, r *tlv.Reader) error {
	if cmd != CmdMoveToLevel && cmd != CmdMoveToLevelWithOnOff {
		return datamodel.ErrUnsupportedCommand
	}
	if r == nil {
		return datamodel.ErrInvalidCommand
	}

	var req MoveToLevelRequest
	if err := req.UnmarshalTLV(r); err != nil {
		return datamodel.ErrInvalidCommand
	}
	if req.Level > MaxLevelValue {
		return datamodel.ErrConstraintError
	}

	if cmd == CmdMoveToLevel && !c.executeIfOff(req) {
		return nil
	}

	c.SetLevel(req.Level)
	if cmd == CmdMoveToLevelWithOnOff && c.config.OnOff != nil {
		c.config.OnOff.SetOnOff(req.Level > 0)
	}
	return nil
}

// executeIfOff reports whether a plain MoveToLevel may run. While the light
// is off it runs only when the request overrides ExecuteIfOff.
func (c *Cluster) executeIfOff(req MoveToLevelRequest) bool {
	if c.config.OnOff == nil || c.config.OnOff.OnOff() {
		return true
	}
	return req.OptionsMask&OptionExecuteIfOff != 0 && req.OptionsOverride&OptionExecuteIfOff != 0
}
