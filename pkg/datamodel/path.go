// Package datamodel defines the identifiers used to address Matter nodes,
// endpoints, clusters, attributes and commands from the controller side.
package datamodel

import "fmt"

type (
	// NodeID is a 64-bit operational node identifier.
	NodeID uint64

	// EndpointID is a 16-bit endpoint identifier.
	EndpointID uint16

	// ClusterID is a 32-bit cluster identifier.
	ClusterID uint32

	// AttributeID is a 32-bit attribute identifier.
	AttributeID uint32

	// CommandID is a 32-bit command identifier.
	CommandID uint32
)

// String formats the node id the way operational instance names do.
func (n NodeID) String() string { return fmt.Sprintf("%016X", uint64(n)) }

// ClusterPath identifies a cluster instance on an endpoint.
type ClusterPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
}

// Attribute returns the path of attribute a within the cluster.
func (p ClusterPath) Attribute(a AttributeID) AttributePath {
	return AttributePath{Endpoint: p.Endpoint, Cluster: p.Cluster, Attribute: a}
}

// Command returns the path of command c within the cluster.
func (p ClusterPath) Command(c CommandID) CommandPath {
	return CommandPath{Endpoint: p.Endpoint, Cluster: p.Cluster, Command: c}
}

// AttributePath identifies a concrete attribute.
type AttributePath struct {
	Endpoint  EndpointID
	Cluster   ClusterID
	Attribute AttributeID
}

// ClusterPath returns the cluster portion of the path.
func (p AttributePath) ClusterPath() ClusterPath {
	return ClusterPath{Endpoint: p.Endpoint, Cluster: p.Cluster}
}

func (p AttributePath) String() string {
	return fmt.Sprintf("%d/0x%04X/0x%04X", p.Endpoint, uint32(p.Cluster), uint32(p.Attribute))
}

// CommandPath identifies a concrete command.
type CommandPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
	Command  CommandID
}

// ClusterPath returns the cluster portion of the path.
func (p CommandPath) ClusterPath() ClusterPath {
	return ClusterPath{Endpoint: p.Endpoint, Cluster: p.Cluster}
}

func (p CommandPath) String() string {
	return fmt.Sprintf("%d/0x%04X/cmd 0x%02X", p.Endpoint, uint32(p.Cluster), uint32(p.Command))
}
