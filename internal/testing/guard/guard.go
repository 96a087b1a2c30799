// Package guard is blank-imported by tests so packages see the test-mode flag
// and a fixed local zone before any init code runs.
package guard

import (
	"os"
	"sync"
	"time"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ODYSSEY_TEST_MODE") == "" {
			_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		}
		time.Local = time.UTC
	})
}
