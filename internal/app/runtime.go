package app

import (
	"os"
	"sync"
)

const testModeEnv = "CONTALIBRE_TEST_MODE"

var (
	testModeMu  sync.Mutex
	testModeSet bool
	testMode    bool
)

// InTestMode reports whether mains should skip starting servers and workers.
// The environment is read once; tests that flip the variable afterwards must
// call RefreshTestMode.
func InTestMode() bool {
	testModeMu.Lock()
	defer testModeMu.Unlock()
	if !testModeSet {
		testMode = os.Getenv(testModeEnv) == "1"
		testModeSet = true
	}
	return testMode
}

// RefreshTestMode re-reads the environment, discarding the cached value.
func RefreshTestMode() {
	testModeMu.Lock()
	defer testModeMu.Unlock()
	testMode = os.Getenv(testModeEnv) == "1"
	testModeSet = true
}
