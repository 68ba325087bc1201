// ============================================================================
// Bulu Runtime Trace Log - Append-Only Event Log
// ============================================================================
//
// Package: internal/tracelog
// File: tracelog.go
// Purpose: Append-only, checksummed JSON event log for scheduler/GC
// lifecycle tracing, active only when internal/cli's config enables the
// tracelog section.
//
// Adapted from the donor repository's internal/storage/wal.WAL: same
// os.OpenFile(O_CREATE|O_APPEND|O_RDWR) + json.Encoder append pattern and
// monotonic seq counter, with the batch-commit goroutine and snapshot
// coordination removed — a debug trace has no crash-recovery obligation,
// so a synchronous mutex-guarded append (matching the WAL's now-deprecated
// syncOnAppend path) is all this needs.
//
// ============================================================================

package tracelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log is an append-only, checksummed event log.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	seq     uint64
}

// Open creates or appends to the log file at path, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tracelog: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tracelog: open file: %w", err)
	}
	return &Log{file: file, encoder: json.NewEncoder(file)}, nil
}

// Append writes one event, filling in seq, timestamp, and checksum.
func (l *Log) Append(eventType EventType, taskID uint64, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ev := Event{
		Seq:       l.seq,
		Type:      eventType,
		TaskID:    taskID,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	}
	ev.Checksum = CalculateChecksum(ev.Type, ev.TaskID, ev.Seq)

	if err := l.encoder.Encode(ev); err != nil {
		return fmt.Errorf("tracelog: append: %w", err)
	}
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadAll replays every record in the log file at path in order, skipping
// (not failing on) records that fail their checksum, matching the donor
// WAL's "skip corrupted records during replay" policy.
func ReadAll(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEmptyLog
		}
		return nil, fmt.Errorf("tracelog: open for read: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if !VerifyChecksum(ev) {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("tracelog: scan: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrEmptyLog
	}
	return events, nil
}
