package thermostat

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/tlv"
)

func write(c *Cluster, attr datamodel.AttributeID, data []byte) error {
	return c.WriteAttribute(context.Background(), attr, tlv.NewReader(bytes.NewReader(data)))
}

func TestCoolingSetpointLimits(t *testing.T) {
	c := New(Config{EndpointID: 1, InitialCoolingSetpoint: 2400})
	if c.CoolingSetpoint() != 2400 {
		t.Fatalf("expected 2400, got %d", c.CoolingSetpoint())
	}

	if err := write(c, AttrOccupiedCoolingSetpoint, clusters.EncodeInt(2000)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if c.CoolingSetpoint() != 2000 {
		t.Errorf("expected 2000, got %d", c.CoolingSetpoint())
	}

	err := write(c, AttrOccupiedCoolingSetpoint, clusters.EncodeInt(int64(DefaultAbsMaxCoolSetpoint)+1))
	if !errors.Is(err, datamodel.ErrConstraintError) {
		t.Errorf("expected constraint error, got %v", err)
	}
	if c.CoolingSetpoint() != 2000 {
		t.Errorf("setpoint changed by rejected write: %d", c.CoolingSetpoint())
	}
}

func TestSystemModeWrite(t *testing.T) {
	c := New(Config{EndpointID: 1})

	if err := write(c, AttrSystemMode, clusters.EncodeUint(uint64(SystemModeCool))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if c.SystemMode() != SystemModeCool {
		t.Errorf("expected Cool, got %v", c.SystemMode())
	}

	if err := write(c, AttrSystemMode, clusters.EncodeUint(2)); !errors.Is(err, datamodel.ErrConstraintError) {
		t.Errorf("expected constraint error for reserved mode, got %v", err)
	}

	if err := write(c, AttrControlSequenceOfOperation, clusters.EncodeUint(uint64(ControlSequenceCoolingAndHeating))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if c.ControlSequence() != ControlSequenceCoolingAndHeating {
		t.Errorf("expected CoolingAndHeating, got %v", c.ControlSequence())
	}
}

func TestAbsLimitsReadOnly(t *testing.T) {
	c := New(Config{EndpointID: 1})
	var buf bytes.Buffer
	if err := c.ReadAttribute(context.Background(), AttrAbsMinCoolSetpointLimit, tlv.NewWriter(&buf)); err != nil {
		t.Fatalf("read: %v", err)
	}
	v, err := clusters.DecodeNumber(buf.Bytes())
	if err != nil || v != int64(DefaultAbsMinCoolSetpoint) {
		t.Errorf("expected %d, got %d (%v)", DefaultAbsMinCoolSetpoint, v, err)
	}
	if err := write(c, AttrAbsMinCoolSetpointLimit, clusters.EncodeInt(0)); !errors.Is(err, datamodel.ErrUnsupportedWrite) {
		t.Errorf("expected unsupported write, got %v", err)
	}
}

func TestEnumStrings(t *testing.T) {
	if SystemModeHeat.String() != "Heat" {
		t.Errorf("unexpected %q", SystemModeHeat.String())
	}
	if ControlSequence(9).String() != "Unknown" {
		t.Errorf("unexpected %q", ControlSequence(9).String())
	}
}
