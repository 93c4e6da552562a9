package tokenlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireExclusive(t *testing.T) {
	s := New()

	release, ok := s.TryAcquire("token-a")
	require.True(t, ok)
	require.NotNil(t, release)

	_, ok = s.TryAcquire("token-a")
	assert.False(t, ok, "a second acquire on a held token must fail, not block")

	release()

	release2, ok := s.TryAcquire("token-a")
	require.True(t, ok, "lock must be acquirable again after release")
	release2()
}

func TestTryAcquireIndependentTokens(t *testing.T) {
	s := New()

	releaseA, ok := s.TryAcquire("token-a")
	require.True(t, ok)
	defer releaseA()

	releaseB, ok := s.TryAcquire("token-b")
	require.True(t, ok, "locks for distinct tokens must not contend")
	releaseB()
}

func TestTryAcquireConcurrent(t *testing.T) {
	s := New()
	const workers = 50

	acquired := make(chan bool, workers)
	releases := make(chan func(), workers)
	for i := 0; i < workers; i++ {
		go func() {
			release, ok := s.TryAcquire("shared")
			acquired <- ok
			if ok {
				releases <- release
			}
		}()
	}

	successes := 0
	for i := 0; i < workers; i++ {
		if <-acquired {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent TryAcquire on the same key should win")
	(<-releases)()
}
