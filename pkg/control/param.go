package control

import (
	"context"
	"math"

	"github.com/rmaker/homectl/pkg/clusters/colorcontrol"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
)

// SendFunc delivers a device-scale value to the bound cluster.
type SendFunc func(ctx context.Context, cc *device.ClusterClient, v int64) error

// SliderParam describes how a numeric attribute maps onto a slider.
type SliderParam struct {
	// ID is a short stable identifier, used in control names.
	ID    string
	Title string

	Cluster   datamodel.ClusterID
	Attribute datamodel.AttributeID

	// Bounds are read from MinAttribute and MaxAttribute when HasBounds
	// is set.
	HasBounds    bool
	MinAttribute datamodel.AttributeID
	MaxAttribute datamodel.AttributeID

	// Scale converts display values to device values (device = display*Scale).
	Scale float64

	// Offline UI.
	DisplayMin float64
	DisplayMax float64
	Default    float64

	// Device values are clamped into [DeviceMin, DeviceMax] before sending.
	DeviceMin int64
	DeviceMax int64

	// CouplesOnOff marks commands that also switch the light on.
	CouplesOnOff bool

	Send SendFunc
}

// ZeroSentinel is sent in place of a zero device value.
const ZeroSentinel int64 = 1

// ToDevice converts a display value. The fraction is truncated and zero
// becomes ZeroSentinel before clamping.
func (p SliderParam) ToDevice(display float64) int64 {
	v := int64(display * p.Scale)
	if v == 0 {
		v = ZeroSentinel
	}
	if p.DeviceMax > p.DeviceMin {
		v = min(max(v, p.DeviceMin), p.DeviceMax)
	}
	return v
}

// ToDisplay converts a device value.
func (p SliderParam) ToDisplay(v int64) float64 {
	if p.Scale == 0 {
		return float64(v)
	}
	return float64(v) / p.Scale
}

// Brightness drives Level Control CurrentLevel through MoveToLevelWithOnOff.
// The slider shows percent; zero is sent as the minimum level.
var Brightness = SliderParam{
	ID:           "brightness",
	Title:        "Brightness",
	Cluster:      levelcontrol.ClusterID,
	Attribute:    levelcontrol.AttrCurrentLevel,
	HasBounds:    true,
	MinAttribute: levelcontrol.AttrMinLevel,
	MaxAttribute: levelcontrol.AttrMaxLevel,
	Scale:        2.54,
	DisplayMax:   100,
	Default:      50,
	DeviceMin:    int64(levelcontrol.MinLevelSentinel),
	DeviceMax:    int64(levelcontrol.MaxLevelValue),
	CouplesOnOff: true,
	Send: func(ctx context.Context, cc *device.ClusterClient, v int64) error {
		return levelcontrol.NewClient(cc).MoveToLevelWithOnOff(ctx, levelcontrol.MoveToLevelRequest{Level: uint8(v)})
	},
}

// Saturation drives Color Control CurrentSaturation.
var Saturation = SliderParam{
	ID:         "saturation",
	Title:      "Saturation",
	Cluster:    colorcontrol.ClusterID,
	Attribute:  colorcontrol.AttrCurrentSaturation,
	Scale:      2.54,
	DisplayMax: 100,
	Default:    50,
	DeviceMin:  0,
	DeviceMax:  int64(colorcontrol.MaxSaturation),
	Send: func(ctx context.Context, cc *device.ClusterClient, v int64) error {
		return colorcontrol.NewClient(cc).MoveToSaturation(ctx, colorcontrol.MoveToSaturationRequest{Saturation: uint8(v)})
	},
}

// CoolingSetpoint drives the thermostat OccupiedCoolingSetpoint in degrees
// Celsius. Bounds come from the absolute cooling limits.
var CoolingSetpoint = SliderParam{
	ID:           "setpoint",
	Title:        "Cooling Setpoint",
	Cluster:      thermostat.ClusterID,
	Attribute:    thermostat.AttrOccupiedCoolingSetpoint,
	HasBounds:    true,
	MinAttribute: thermostat.AttrAbsMinCoolSetpointLimit,
	MaxAttribute: thermostat.AttrAbsMaxCoolSetpointLimit,
	Scale:        100,
	DisplayMin:   float64(thermostat.DefaultAbsMinCoolSetpoint) / 100,
	DisplayMax:   float64(thermostat.DefaultAbsMaxCoolSetpoint) / 100,
	Default:      24,
	DeviceMin:    math.MinInt16,
	DeviceMax:    math.MaxInt16,
	Send: func(ctx context.Context, cc *device.ClusterClient, v int64) error {
		return thermostat.NewClient(cc).WriteOccupiedCoolingSetpoint(ctx, int16(v))
	},
}

// SliderParams lists the built-in slider parameters.
func SliderParams() []SliderParam {
	return []SliderParam{Brightness, Saturation, CoolingSetpoint}
}

// ModeOption is one dropdown entry.
type ModeOption struct {
	Label string
	Value int64
}

// ModeParam describes an enumerated attribute shown as a dropdown.
type ModeParam struct {
	ID        string
	Title     string
	Cluster   datamodel.ClusterID
	Attribute datamodel.AttributeID
	Options   []ModeOption

	// Fallback is shown for device values without an option.
	Fallback ModeOption

	// Notify forwards successful writes to ManagerConfig.OnModeSet.
	Notify bool

	Send SendFunc
}

// Labels returns the option labels in order.
func (p ModeParam) Labels() []string {
	out := make([]string, len(p.Options))
	for i, o := range p.Options {
		out[i] = o.Label
	}
	return out
}

// Encode maps a label to its device value.
func (p ModeParam) Encode(label string) (int64, bool) {
	for _, o := range p.Options {
		if o.Label == label {
			return o.Value, true
		}
	}
	return 0, false
}

// Decode maps a device value to its label.
func (p ModeParam) Decode(v int64) string {
	for _, o := range p.Options {
		if o.Value == v {
			return o.Label
		}
	}
	return p.Fallback.Label
}

// SystemMode selects the thermostat mode.
var SystemMode = ModeParam{
	ID:        "mode",
	Title:     "System Mode",
	Cluster:   thermostat.ClusterID,
	Attribute: thermostat.AttrSystemMode,
	Options: []ModeOption{
		{"Off", int64(thermostat.SystemModeOff)},
		{"Cool", int64(thermostat.SystemModeCool)},
		{"Heat", int64(thermostat.SystemModeHeat)},
	},
	Fallback: ModeOption{"Off", int64(thermostat.SystemModeOff)},
	Notify:   true,
	Send: func(ctx context.Context, cc *device.ClusterClient, v int64) error {
		return thermostat.NewClient(cc).WriteSystemMode(ctx, thermostat.SystemMode(v))
	},
}

// ControlSequence selects the thermostat control sequence. Only cooling is
// distinguished; every other choice maps to CoolingOnly.
var ControlSequence = ModeParam{
	ID:        "sequence",
	Title:     "Control Sequence",
	Cluster:   thermostat.ClusterID,
	Attribute: thermostat.AttrControlSequenceOfOperation,
	Options: []ModeOption{
		{"Cool", int64(thermostat.ControlSequenceCoolingAndHeating)},
		{"Heat", int64(thermostat.ControlSequenceCoolingOnly)},
	},
	Fallback: ModeOption{"Heat", int64(thermostat.ControlSequenceCoolingOnly)},
	Send: func(ctx context.Context, cc *device.ClusterClient, v int64) error {
		return thermostat.NewClient(cc).WriteControlSequence(ctx, thermostat.ControlSequence(v))
	},
}

// ModeParams lists the built-in dropdown parameters.
func ModeParams() []ModeParam {
	return []ModeParam{SystemMode, ControlSequence}
}
