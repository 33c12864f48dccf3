// Package device defines the contract between the control layer and the
// device framework that actually talks to Matter nodes.
//
// The control layer never depends on a transport. It resolves a Device from a
// Controller, binds it to a cluster with ClusterClient, and issues reads,
// writes, commands and subscriptions through that handle. Implementations
// live in pkg/sim (in-memory nodes) and pkg/rmaker (RainMaker nodes over MQTT).
//
// All calls block until the device answers or ctx is done. Subscription
// reports are delivered on a goroutine owned by the implementation, so report
// handlers must not assume they run on any particular goroutine.
package device
