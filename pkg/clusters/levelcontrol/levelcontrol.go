// Package levelcontrol implements the Level Control Cluster (0x0008).
//
// It provides the controller-side Client used by brightness sliders and a
// Server hosted by simulated lights.
package levelcontrol

import (
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0008
)

// Attribute IDs.
const (
	AttrCurrentLevel  datamodel.AttributeID = 0x0000
	AttrRemainingTime datamodel.AttributeID = 0x0001
	AttrMinLevel      datamodel.AttributeID = 0x0002
	AttrMaxLevel      datamodel.AttributeID = 0x0003
	AttrOnLevel       datamodel.AttributeID = 0x0011
)

// Command IDs.
const (
	CmdMoveToLevel          datamodel.CommandID = 0x00
	CmdMoveToLevelWithOnOff datamodel.CommandID = 0x04
)

// Level limits. A level of zero is never sent; MinLevelSentinel is used instead.
const (
	MaxLevelValue    uint8 = 254
	MinLevelSentinel uint8 = 1
)

// OptionsBitmap controls command execution while the device is off.
type OptionsBitmap uint8

const (
	OptionExecuteIfOff           OptionsBitmap = 1 << 0
	OptionCoupleColorTempToLevel OptionsBitmap = 1 << 1
)

// MoveToLevelRequest is the payload of MoveToLevel and MoveToLevelWithOnOff.
type MoveToLevelRequest struct {
	Level uint8

	// TransitionTime in tenths of a second. Nil asks the device to use its
	// default transition.
	TransitionTime *uint16

	OptionsMask     OptionsBitmap
	OptionsOverride OptionsBitmap
}

// MarshalTLV encodes the request as a structure with context tags 0-3.
func (r *MoveToLevelRequest) MarshalTLV(w *tlv.Writer) error {
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return err
	}
	if err := w.PutUint(tlv.ContextTag(0), uint64(r.Level)); err != nil {
		return err
	}
	if r.TransitionTime == nil {
		if err := w.PutNull(tlv.ContextTag(1)); err != nil {
			return err
		}
	} else if err := w.PutUint(tlv.ContextTag(1), uint64(*r.TransitionTime)); err != nil {
		return err
	}
	if err := w.PutUint(tlv.ContextTag(2), uint64(r.OptionsMask)); err != nil {
		return err
	}
	if err := w.PutUint(tlv.ContextTag(3), uint64(r.OptionsOverride)); err != nil {
		return err
	}
	return w.EndContainer()
}

// UnmarshalTLV decodes the request. Unknown fields are skipped.
func (r *MoveToLevelRequest) UnmarshalTLV(rd *tlv.Reader) error {
	if err := rd.Next(); err != nil {
		return err
	}
	if err := rd.EnterContainer(); err != nil {
		return err
	}
	for {
		if err := rd.Next(); err != nil {
			return err
		}
		if rd.IsEndOfContainer() {
			break
		}
		if !rd.Tag().IsContext() {
			if err := rd.Skip(); err != nil {
				return err
			}
			continue
		}
		switch rd.Tag().TagNumber() {
		case 0:
			v, err := rd.Uint()
			if err != nil {
				return err
			}
			if v > 0xFF {
				return datamodel.ErrConstraintError
			}
			r.Level = uint8(v)
		case 1:
			if rd.Type() == tlv.ElementTypeNull {
				if err := rd.Null(); err != nil {
					return err
				}
				r.TransitionTime = nil
				continue
			}
			v, err := rd.Uint()
			if err != nil {
				return err
			}
			tt := uint16(v)
			r.TransitionTime = &tt
		case 2:
			v, err := rd.Uint()
			if err != nil {
				return err
			}
			r.OptionsMask = OptionsBitmap(v)
		case 3:
			v, err := rd.Uint()
			if err != nil {
				return err
			}
			r.OptionsOverride = OptionsBitmap(v)
		default:
			if err := rd.Skip(); err != nil {
				return err
			}
		}
	}
	return rd.ExitContainer()
}
