// Package discovery finds Matter nodes on the local network via DNS-SD.
//
// Operational nodes advertise `_matter._tcp` instances named
// `<CompressedFabricID>-<NodeID>`, both as 16 upper-case hex digits. The
// controller uses ResolveNode to confirm a node is reachable before handing
// out a device handle. Advertiser publishes the same records, which lets
// simulated nodes be found by a real resolver.
package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rmaker/homectl/pkg/datamodel"
)

// DNS-SD service identifiers.
const (
	ServiceOperational    = "_matter._tcp"
	ServiceCommissionable = "_matterc._udp"
	DefaultDomain         = "local."
)

// DefaultPort is the default Matter port.
const DefaultPort = 5540

// ServiceType identifies a Matter DNS-SD service.
type ServiceType int

const (
	ServiceTypeUnknown ServiceType = iota
	ServiceTypeOperational
	ServiceTypeCommissionable
)

// String returns the name of the service type.
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeOperational:
		return "Operational"
	case ServiceTypeCommissionable:
		return "Commissionable"
	default:
		return "Unknown"
	}
}

// ServiceString returns the DNS-SD service string.
func (s ServiceType) ServiceString() string {
	switch s {
	case ServiceTypeOperational:
		return ServiceOperational
	case ServiceTypeCommissionable:
		return ServiceCommissionable
	default:
		return ""
	}
}

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when a node is already being advertised.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrInvalidServiceType is returned for invalid or unknown service types.
	ErrInvalidServiceType = errors.New("discovery: invalid service type")

	// ErrServiceNotFound is returned when a requested service is not found.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("discovery: operation timed out")

	// ErrInvalidInstanceName is returned when the instance name format is invalid.
	ErrInvalidInstanceName = errors.New("discovery: invalid instance name format")
)

// OperationalInstanceName builds the instance name of a node.
func OperationalInstanceName(compressedFabricID uint64, node datamodel.NodeID) string {
	return fmt.Sprintf("%016X-%016X", compressedFabricID, uint64(node))
}

// ParseOperationalInstanceName splits an instance name into its fabric and
// node parts.
func ParseOperationalInstanceName(name string) (uint64, datamodel.NodeID, error) {
	fabricHex, nodeHex, ok := strings.Cut(name, "-")
	if !ok || len(fabricHex) != 16 || len(nodeHex) != 16 {
		return 0, 0, ErrInvalidInstanceName
	}
	fabric, err := strconv.ParseUint(fabricHex, 16, 64)
	if err != nil {
		return 0, 0, ErrInvalidInstanceName
	}
	node, err := strconv.ParseUint(nodeHex, 16, 64)
	if err != nil {
		return 0, 0, ErrInvalidInstanceName
	}
	return fabric, datamodel.NodeID(node), nil
}

// ParseTXT converts TXT record strings to a key-value map. Entries without
// '=' map to an empty value.
func ParseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, rec := range records {
		k, v, _ := strings.Cut(rec, "=")
		if k != "" {
			out[k] = v
		}
	}
	return out
}
