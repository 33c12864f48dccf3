package levelcontrol

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/tlv"
)

func invoke(t *testing.T, c *Cluster, cmd datamodel.CommandID, req MoveToLevelRequest) error {
	t.Helper()
	data, err := clusters.EncodeRequest(&req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return c.InvokeCommand(context.Background(), cmd, tlv.NewReader(bytes.NewReader(data)))
}

func readUint(t *testing.T, c *Cluster, attr datamodel.AttributeID) (uint64, error) {
	t.Helper()
	var buf bytes.Buffer
	if err := c.ReadAttribute(context.Background(), attr, tlv.NewWriter(&buf)); err != nil {
		return 0, err
	}
	return clusters.DecodeUint(buf.Bytes())
}

func TestMoveToLevelRequestRoundTrip(t *testing.T) {
	tt := uint16(10)
	tests := []MoveToLevelRequest{
		{Level: 127},
		{Level: 1, TransitionTime: &tt, OptionsMask: OptionExecuteIfOff, OptionsOverride: OptionExecuteIfOff},
	}
	for _, in := range tests {
		data, err := clusters.EncodeRequest(&in)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		var out MoveToLevelRequest
		if err := clusters.DecodeRequest(data, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Level != in.Level || out.OptionsMask != in.OptionsMask || out.OptionsOverride != in.OptionsOverride {
			t.Errorf("expected %+v, got %+v", in, out)
		}
		if (in.TransitionTime == nil) != (out.TransitionTime == nil) {
			t.Errorf("transition time nullability mismatch")
		}
		if in.TransitionTime != nil && *out.TransitionTime != *in.TransitionTime {
			t.Errorf("expected transition %d, got %d", *in.TransitionTime, *out.TransitionTime)
		}
	}
}

func TestClusterClampsLevel(t *testing.T) {
	c := New(Config{EndpointID: 1, MinLevel: 10, MaxLevel: 200, InitialLevel: 0})
	if c.CurrentLevel() != 10 {
		t.Errorf("expected initial level clamped to 10, got %d", c.CurrentLevel())
	}

	if err := invoke(t, c, CmdMoveToLevel, MoveToLevelRequest{Level: 250}); err != nil {
		t.Fatalf("MoveToLevel failed: %v", err)
	}
	if c.CurrentLevel() != 200 {
		t.Errorf("expected 200, got %d", c.CurrentLevel())
	}

	err := invoke(t, c, CmdMoveToLevel, MoveToLevelRequest{Level: 255})
	if !errors.Is(err, datamodel.ErrConstraintError) {
		t.Errorf("expected constraint error, got %v", err)
	}
}

func TestClusterMoveToLevelWithOnOff(t *testing.T) {
	oo := onoff.New(onoff.Config{EndpointID: 1})
	c := New(Config{EndpointID: 1, OnOff: oo, InitialLevel: 50})

	// Plain MoveToLevel is ignored while off.
	if err := invoke(t, c, CmdMoveToLevel, MoveToLevelRequest{Level: 100}); err != nil {
		t.Fatalf("MoveToLevel failed: %v", err)
	}
	if c.CurrentLevel() != 50 {
		t.Errorf("expected level unchanged while off, got %d", c.CurrentLevel())
	}

	if err := invoke(t, c, CmdMoveToLevelWithOnOff, MoveToLevelRequest{Level: 100}); err != nil {
		t.Fatalf("MoveToLevelWithOnOff failed: %v", err)
	}
	if c.CurrentLevel() != 100 {
		t.Errorf("expected 100, got %d", c.CurrentLevel())
	}
	if !oo.OnOff() {
		t.Error("expected light to be switched on")
	}
}

func TestClusterExecuteIfOff(t *testing.T) {
	oo := onoff.New(onoff.Config{EndpointID: 1})
	c := New(Config{EndpointID: 1, OnOff: oo, InitialLevel: 50})

	req := MoveToLevelRequest{Level: 80, OptionsMask: OptionExecuteIfOff, OptionsOverride: OptionExecuteIfOff}
	if err := invoke(t, c, CmdMoveToLevel, req); err != nil {
		t.Fatalf("MoveToLevel failed: %v", err)
	}
	if c.CurrentLevel() != 80 {
		t.Errorf("expected 80, got %d", c.CurrentLevel())
	}
	if oo.OnOff() {
		t.Error("MoveToLevel must not switch the light on")
	}
}

func TestClusterAttributes(t *testing.T) {
	c := New(Config{EndpointID: 1, InitialLevel: 42})

	for attr, want := range map[datamodel.AttributeID]uint64{
		AttrCurrentLevel:  42,
		AttrRemainingTime: 0,
		AttrMinLevel:      uint64(MinLevelSentinel),
		AttrMaxLevel:      uint64(MaxLevelValue),
	} {
		got, err := readUint(t, c, attr)
		if err != nil {
			t.Fatalf("read 0x%04X: %v", uint32(attr), err)
		}
		if got != want {
			t.Errorf("attr 0x%04X: expected %d, got %d", uint32(attr), want, got)
		}
	}

	if _, err := readUint(t, c, AttrOnLevel); !errors.Is(err, clusters.ErrNullValue) {
		t.Errorf("expected null OnLevel, got %v", err)
	}

	w := clusters.EncodeUint(120)
	if err := c.WriteAttribute(context.Background(), AttrOnLevel, tlv.NewReader(bytes.NewReader(w))); err != nil {
		t.Fatalf("write OnLevel: %v", err)
	}
	if got, _ := readUint(t, c, AttrOnLevel); got != 120 {
		t.Errorf("expected OnLevel 120, got %d", got)
	}

	err := c.WriteAttribute(context.Background(), AttrCurrentLevel, tlv.NewReader(bytes.NewReader(w)))
	if !errors.Is(err, datamodel.ErrUnsupportedWrite) {
		t.Errorf("expected unsupported write, got %v", err)
	}
}

func TestClusterNotifiesChanges(t *testing.T) {
	c := New(Config{EndpointID: 3, InitialLevel: 10})
	var got []datamodel.AttributePath
	c.SetChangeListener(func(p datamodel.AttributePath) { got = append(got, p) })

	c.SetLevel(10)
	c.SetLevel(20)

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	want := datamodel.AttributePath{Endpoint: 3, Cluster: ClusterID, Attribute: AttrCurrentLevel}
	if got[0] != want {
		t.Errorf("expected %v, got %v", want, got[0])
	}
	if c.DataVersion() != 1 {
		t.Errorf("expected data version 1, got %d", c.DataVersion())
	}
}
