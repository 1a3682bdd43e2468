package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LEDGERLENS_TEST_MODE") == "" {
			_ = os.Setenv("LEDGERLENS_TEST_MODE", "1")
		}
	})
}
