// Package state holds the local device-state cache: the last reconciled value
// of every bound attribute, per node.
//
// The cache is updated from three directions (reads, write confirmations and
// subscription reports) that run on different goroutines. All updates are
// serialized under one mutex and stamped with a sequence number. A write
// confirmation only commits if no report for the same attribute arrived
// after the write began; otherwise the device report is kept.
package state
