package tracelog

import "errors"

// ErrChecksumMismatch names a trace record that failed its checksum
// check, suggesting truncated or corrupted output. ReadAll skips such
// records and does not return this error.
var ErrChecksumMismatch = errors.New("tracelog: checksum mismatch")

// ErrEmptyLog indicates the log file has no records yet.
var ErrEmptyLog = errors.New("tracelog: log is empty")
