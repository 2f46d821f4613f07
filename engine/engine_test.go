package engine

import (
	"sync"
	"testing"
)

func TestEngineConcurrentStop(t *testing.T) {
	e := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Stop()
		}()
	}
	wg.Wait()
}
