package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv, when truthy, makes cmd/insights and cmd/worker return before
// dialing redis, postgres or the backend.
const TestModeEnv = "INSIGHTS_TEST_MODE"

var testMode atomic.Bool

func init() {
	RefreshTestMode()
}

// InTestMode reports the flag captured at start or by the last refresh.
func InTestMode() bool {
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(on)
}
