// Package thermostat implements the setpoint and mode subset of the
// Thermostat Cluster (0x0201).
//
// Temperatures are signed hundredths of a degree Celsius.
package thermostat

import (
	"github.com/rmaker/homectl/pkg/datamodel"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0201
)

// Attribute IDs.
const (
	AttrLocalTemperature           datamodel.AttributeID = 0x0000
	AttrAbsMinCoolSetpointLimit    datamodel.AttributeID = 0x0005
	AttrAbsMaxCoolSetpointLimit    datamodel.AttributeID = 0x0006
	AttrOccupiedCoolingSetpoint    datamodel.AttributeID = 0x0011
	AttrOccupiedHeatingSetpoint    datamodel.AttributeID = 0x0012
	AttrControlSequenceOfOperation datamodel.AttributeID = 0x001B
	AttrSystemMode                 datamodel.AttributeID = 0x001C
)

// Default setpoint limits in hundredths of a degree.
const (
	DefaultAbsMinCoolSetpoint int16 = 1600
	DefaultAbsMaxCoolSetpoint int16 = 3200
)

// SystemMode is the thermostat operating mode.
type SystemMode uint8

const (
	SystemModeOff           SystemMode = 0
	SystemModeAuto          SystemMode = 1
	SystemModeCool          SystemMode = 3
	SystemModeHeat          SystemMode = 4
	SystemModeEmergencyHeat SystemMode = 5
	SystemModePrecooling    SystemMode = 6
	SystemModeFanOnly       SystemMode = 7
)

// String returns the name of the system mode.
func (m SystemMode) String() string {
	switch m {
	case SystemModeOff:
		return "Off"
	case SystemModeAuto:
		return "Auto"
	case SystemModeCool:
		return "Cool"
	case SystemModeHeat:
		return "Heat"
	case SystemModeEmergencyHeat:
		return "EmergencyHeat"
	case SystemModePrecooling:
		return "Precooling"
	case SystemModeFanOnly:
		return "FanOnly"
	default:
		return "Unknown"
	}
}

// IsValid reports whether m is a defined mode.
func (m SystemMode) IsValid() bool {
	return m.String() != "Unknown"
}

// ControlSequence is the ControlSequenceOfOperation enumeration.
type ControlSequence uint8

const (
	ControlSequenceCoolingOnly                 ControlSequence = 0
	ControlSequenceCoolingWithReheat           ControlSequence = 1
	ControlSequenceHeatingOnly                 ControlSequence = 2
	ControlSequenceHeatingWithReheat           ControlSequence = 3
	ControlSequenceCoolingAndHeating           ControlSequence = 4
	ControlSequenceCoolingAndHeatingWithReheat ControlSequence = 5
)

var controlSequenceNames = [...]string{
	"CoolingOnly", "CoolingWithReheat", "HeatingOnly",
	"HeatingWithReheat", "CoolingAndHeating", "CoolingAndHeatingWithReheat",
}

// String returns the name of the control sequence.
func (s ControlSequence) String() string {
	if int(s) < len(controlSequenceNames) {
		return controlSequenceNames[s]
	}
	return "Unknown"
}

// IsValid reports whether s is a defined sequence.
func (s ControlSequence) IsValid() bool {
	return int(s) < len(controlSequenceNames)
}
