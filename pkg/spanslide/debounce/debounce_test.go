package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Timing-sensitive tests use a wait that's short enough to keep the suite
// fast but long enough that a loaded CI box won't miss the window.
const testWait = 25 * time.Millisecond

// settle sleeps long past the quiet period so any armed timer has fired.
func settle() {
	time.Sleep(4 * testWait)
}

func TestSubmitKeepsOnlyLatest(t *testing.T) {
	d := New(testWait)

	var calls int32
	var last int32

	for i := int32(1); i <= 5; i++ {
		i := i
		d.Submit(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, i)
		})
	}

	settle()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "burst should collapse to a single execution")
	assert.Equal(t, int32(5), atomic.LoadInt32(&last), "only the last submitted action should run")
	assert.False(t, d.Pending())
}

func TestSpacedSubmissionsEachFire(t *testing.T) {
	d := New(testWait)

	var calls int32

	for i := 0; i < 3; i++ {
		d.Submit(func() {
			atomic.AddInt32(&calls, 1)
		})
		settle()
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "submissions separated by quiet periods should all run")
}

func TestCancelDropsPendingAction(t *testing.T) {
	d := New(testWait)

	var calls int32

	d.Submit(func() {
		atomic.AddInt32(&calls, 1)
	})

	assert.True(t, d.Pending())
	d.Cancel()
	assert.False(t, d.Pending())

	settle()

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "canceled action must never run")
}

func TestCancelIsIdempotent(t *testing.T) {
	d := New(testWait)

	d.Cancel()
	d.Submit(func() {})
	d.Cancel()
	d.Cancel()

	settle()

	assert.False(t, d.Pending())
}

func TestFlushRunsImmediately(t *testing.T) {
	d := New(testWait)

	var calls int32

	d.Submit(func() {
		atomic.AddInt32(&calls, 1)
	})
	d.Flush()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "flush should execute without waiting out the quiet period")
	assert.False(t, d.Pending())

	settle()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "the flushed action's timer must not fire it a second time")
}

func TestFlushWithoutPendingIsNoOp(t *testing.T) {
	d := New(testWait)

	assert.NotPanics(t, func() {
		d.Flush()
	})
}

func TestZeroWaitIsSynchronous(t *testing.T) {
	d := New(0)

	var calls int32

	d.Submit(func() {
		atomic.AddInt32(&calls, 1)
	})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, d.Pending())
}

func TestReusableAfterFire(t *testing.T) {
	d := New(testWait)

	var calls int32

	d.Submit(func() {
		atomic.AddInt32(&calls, 1)
	})
	settle()

	d.Submit(func() {
		atomic.AddInt32(&calls, 1)
	})
	settle()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConcurrentSubmitRunsExactlyOnce(t *testing.T) {
	d := New(testWait)

	var calls int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Submit(func() {
				atomic.AddInt32(&calls, 1)
			})
		}()
	}

	wg.Wait()
	settle()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent burst should still collapse to one execution")
}
