package runtime

// ============================================================================
// Test Helpers
// Purpose: Shared fixtures for the package's test files.
// ============================================================================

import (
	"io"
	"log/slog"
)

// testLogger returns a logger that discards everything, so test output
// stays focused on assertion failures.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
