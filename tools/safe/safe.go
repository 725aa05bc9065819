package safe

import (
	"PRelay/logger"
)

// Go starts a goroutine that recovers from panic so a bad handler
// cannot take the whole process down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}
