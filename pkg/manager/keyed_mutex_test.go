package manager

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	t.Run("serializes same key", func(t *testing.T) {
		t.Parallel()

		k := newKeyedMutex()
		counter := 0

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release := k.Acquire("u1")
				defer release()
				counter++
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
	})

	t.Run("cleans up released keys", func(t *testing.T) {
		t.Parallel()

		k := newKeyedMutex()
		release := k.Acquire("u1")
		release()

		k.mu.Lock()
		defer k.mu.Unlock()
		assert.Empty(t, k.locks)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		t.Parallel()

		k := newKeyedMutex()
		releaseA := k.Acquire("a")
		defer releaseA()

		done := make(chan struct{})
		go func() {
			releaseB := k.Acquire("b")
			releaseB()
			close(done)
		}()

		<-done
	})
}
