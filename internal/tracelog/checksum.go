// ============================================================================
// Bulu Runtime Trace Log - Checksums
// ============================================================================
//
// Package: internal/tracelog
// File: checksum.go
// Purpose: CRC32 checksum calculation/verification for trace events,
// ported directly from the donor WAL's checksum.go.
//
// ============================================================================

package tracelog

import (
	"fmt"
	"hash/crc32"
)

// CalculateChecksum computes the CRC32-IEEE checksum over the fields that
// uniquely identify an event, mirroring the donor's Type+JobID+Seq scheme.
func CalculateChecksum(eventType EventType, taskID uint64, seq uint64) uint32 {
	data := fmt.Sprintf("%s:%d:%d", eventType, taskID, seq)
	return crc32.ChecksumIEEE([]byte(data))
}

// VerifyChecksum reports whether event's stored checksum matches its
// recomputed value.
func VerifyChecksum(event Event) bool {
	expected := CalculateChecksum(event.Type, event.TaskID, event.Seq)
	return expected == event.Checksum
}
