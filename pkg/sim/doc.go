// Package sim is an in-memory device framework. It hosts simulated Matter
// nodes built from the server clusters in pkg/clusters and exposes them
// through the device.Controller contract, with switchable latency, packet
// loss, offline nodes and one-shot failure injection.
//
// It backs the tests of the control layer and `homectl --backend sim`.
package sim
