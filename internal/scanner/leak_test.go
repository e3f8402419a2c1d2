package scanner

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak in any test in the scanner
// package. The pool must always release its workers, including when a
// scan is cancelled mid-flight.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
