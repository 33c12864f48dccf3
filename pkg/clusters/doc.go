// Package clusters provides the client-side bindings for the Matter clusters
// a controller drives: attribute and command identifiers, request encoders and
// attribute value decoders.
//
// # Subpackages
//
//   - clusters/levelcontrol: Level Control Cluster (0x0008)
//   - clusters/onoff: On/Off Cluster (0x0006)
//   - clusters/colorcontrol: Color Control Cluster (0x0300)
//   - clusters/thermostat: Thermostat Cluster (0x0201)
//
// # Helpers
//
// Attribute values travel as a single anonymous TLV element. The helpers in
// encoding.go build and parse those elements.
package clusters
