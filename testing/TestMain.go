// Package testing switches binaries into test mode when imported by a test,
// so calling main never dials Postgres or Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// testModeEnv matches app.TestModeEnv.
const testModeEnv = "CAPSULA_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
