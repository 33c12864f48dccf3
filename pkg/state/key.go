package state

import (
	"fmt"

	"github.com/rmaker/homectl/pkg/datamodel"
)

// Key addresses one cached attribute of one node.
type Key struct {
	Node      datamodel.NodeID
	Endpoint  datamodel.EndpointID
	Cluster   datamodel.ClusterID
	Attribute datamodel.AttributeID
}

// AttrKey builds a Key from a node and an attribute path.
func AttrKey(node datamodel.NodeID, path datamodel.AttributePath) Key {
	return Key{Node: node, Endpoint: path.Endpoint, Cluster: path.Cluster, Attribute: path.Attribute}
}

// Path returns the attribute path part of the key.
func (k Key) Path() datamodel.AttributePath {
	return datamodel.AttributePath{Endpoint: k.Endpoint, Cluster: k.Cluster, Attribute: k.Attribute}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Node, k.Path())
}

// Source records which path produced a cached value.
type Source uint8

const (
	SourceRead Source = iota
	SourceWrite
	SourceReport
	SourceLoad
)

// String returns the name of the source.
func (s Source) String() string {
	switch s {
	case SourceRead:
		return "read"
	case SourceWrite:
		return "write"
	case SourceReport:
		return "report"
	case SourceLoad:
		return "load"
	default:
		return "unknown"
	}
}
