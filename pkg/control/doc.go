// Package control keeps UI controls in sync with device attributes.
//
// A SliderBinding ties one Slider to one numeric attribute of a node. It
// populates the slider from the cache while offline, refreshes it by reading
// the device, dispatches user changes as cluster commands and applies
// subscription reports. A ModeBinding does the same for enumerated
// attributes shown as a Dropdown.
//
// UI mutations are posted to a ui.Queue. Values in the state cache are kept
// in device scale; the slider shows display scale.
package control
