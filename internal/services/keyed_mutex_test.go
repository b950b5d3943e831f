package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	key := resourceKey(1, "aws_instance.web")

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(key)
			defer km.Unlock(key)
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	a := resourceKey(1, "aws_instance.a")
	b := resourceKey(1, "aws_instance.b")

	km.Lock(a)
	done := make(chan struct{})
	go func() {
		km.Lock(b)
		km.Unlock(b)
		close(done)
	}()

	// Key b must not block behind key a
	<-done
	km.Unlock(a)
}

func TestKeyedMutexUnlockUnheldPanics(t *testing.T) {
	km := NewKeyedMutex()

	assert.Panics(t, func() {
		km.Unlock(resourceKey(1, "aws_instance.never-locked"))
	})
}

func TestResourceKeyDistinguishesEnvironments(t *testing.T) {
	assert.NotEqual(t, resourceKey(1, "aws_instance.web"), resourceKey(2, "aws_instance.web"))
	assert.Equal(t, resourceKey(1, "aws_instance.web"), resourceKey(1, "aws_instance.web"))
}
