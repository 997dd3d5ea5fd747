package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("QUIZROOM_TEST_MODE") == "" {
			_ = os.Setenv("QUIZROOM_TEST_MODE", "1")
		}
	})
}
