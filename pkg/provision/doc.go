// Package provision implements the first steps of BLE provisioning: finding
// unprovisioned devices by advertised name and establishing a Security1
// session with the selected one.
package provision
