package rmaker

import (
	"fmt"
	"math"

	"github.com/rmaker/homectl/pkg/clusters/colorcontrol"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/datamodel"
)

// Kind is the JSON type of a parameter value.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindBool
)

// Param maps one RainMaker device parameter onto an attribute.
type Param struct {
	Device string
	Name   string
	Kind   Kind

	// Path is the attribute, relative to the node.
	Path datamodel.AttributePath

	// Scale converts parameter values to attribute values. Zero means 1.
	// KindInt values truncate (attribute = int(param*Scale)) like the
	// sliders do, so a level published as a percentage comes back
	// unchanged. KindFloat values round.
	Scale float64
}

func (p Param) scale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}

// ToAttribute converts a decoded JSON value.
func (p Param) ToAttribute(v any) (int64, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if p.Kind == KindFloat {
			return int64(math.Round(x * p.scale())), nil
		}
		return int64(x * p.scale()), nil
	}
	return 0, fmt.Errorf("rmaker: %s.%s: unexpected value %v", p.Device, p.Name, v)
}

// FromAttribute converts an attribute value for publishing.
func (p Param) FromAttribute(v int64) any {
	switch p.Kind {
	case KindBool:
		return v != 0
	case KindFloat:
		return float64(v) / p.scale()
	}
	return int64(math.Round(float64(v) / p.scale()))
}

// ParamMap is the set of known parameters plus attributes that RainMaker
// nodes never report but the control layer reads.
type ParamMap struct {
	params []Param
	static map[datamodel.AttributePath]int64
}

// NewParamMap creates a map from params.
func NewParamMap(params ...Param) *ParamMap {
	return &ParamMap{
		params: append([]Param(nil), params...),
		static: make(map[datamodel.AttributePath]int64),
	}
}

// SetStatic fixes the value returned for path.
func (m *ParamMap) SetStatic(path datamodel.AttributePath, v int64) {
	m.static[path] = v
}

// Static returns a fixed attribute value.
func (m *ParamMap) Static(path datamodel.AttributePath) (int64, bool) {
	v, ok := m.static[path]
	return v, ok
}

// ByPath finds the parameter for an attribute.
func (m *ParamMap) ByPath(path datamodel.AttributePath) (Param, bool) {
	for _, p := range m.params {
		if p.Path == path {
			return p, true
		}
	}
	return Param{}, false
}

// ByName finds a parameter by device and parameter name.
func (m *ParamMap) ByName(dev, name string) (Param, bool) {
	for _, p := range m.params {
		if p.Device == dev && p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Params returns all parameters.
func (m *ParamMap) Params() []Param {
	return append([]Param(nil), m.params...)
}

// Standard endpoint for the mapped clusters.
const DefaultEndpoint datamodel.EndpointID = 1

func attr(cluster datamodel.ClusterID, a datamodel.AttributeID) datamodel.AttributePath {
	return datamodel.AttributePath{Endpoint: DefaultEndpoint, Cluster: cluster, Attribute: a}
}

// DefaultParamMap covers the standard RainMaker light and air conditioner
// parameters. Brightness and Saturation are percentages on RainMaker and
// 0-254 on the attribute side.
func DefaultParamMap() *ParamMap {
	m := NewParamMap(
		Param{Device: "Light", Name: "Power", Kind: KindBool, Path: attr(onoff.ClusterID, onoff.AttrOnOff)},
		Param{Device: "Light", Name: "Brightness", Path: attr(levelcontrol.ClusterID, levelcontrol.AttrCurrentLevel), Scale: 2.54},
		Param{Device: "Light", Name: "Saturation", Path: attr(colorcontrol.ClusterID, colorcontrol.AttrCurrentSaturation), Scale: 2.54},
		Param{Device: "Air Conditioner", Name: "Setpoint", Kind: KindFloat, Path: attr(thermostat.ClusterID, thermostat.AttrOccupiedCoolingSetpoint), Scale: 100},
		Param{Device: "Air Conditioner", Name: "Mode", Path: attr(thermostat.ClusterID, thermostat.AttrSystemMode)},
		Param{Device: "Air Conditioner", Name: "Sequence", Path: attr(thermostat.ClusterID, thermostat.AttrControlSequenceOfOperation)},
	)
	m.SetStatic(attr(levelcontrol.ClusterID, levelcontrol.AttrMinLevel), int64(levelcontrol.MinLevelSentinel))
	m.SetStatic(attr(levelcontrol.ClusterID, levelcontrol.AttrMaxLevel), int64(levelcontrol.MaxLevelValue))
	m.SetStatic(attr(thermostat.ClusterID, thermostat.AttrAbsMinCoolSetpointLimit), int64(thermostat.DefaultAbsMinCoolSetpoint))
	m.SetStatic(attr(thermostat.ClusterID, thermostat.AttrAbsMaxCoolSetpointLimit), int64(thermostat.DefaultAbsMaxCoolSetpoint))
	return m
}
