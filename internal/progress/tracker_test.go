package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_TracksProgress(t *testing.T) {
	t.Parallel()

	type event struct {
		transferred int64
		total       int64
	}
	var events []event
	tr := NewTracker(11, func(transferred, total int64) {
		events = append(events, event{transferred, total})
	})

	tr.Add(5)
	tr.Add(0)
	tr.Add(6)

	assert.Equal(t, []event{{5, 11}, {11, 11}}, events)
	assert.Equal(t, int64(11), tr.Done())
}

func TestTracker_NilCallback(t *testing.T) {
	t.Parallel()

	tr := NewTracker(4, nil)
	tr.Add(4)
	assert.Equal(t, int64(4), tr.Done())
}

func TestTracker_NilTracker(t *testing.T) {
	t.Parallel()

	var tr *Tracker
	tr.Add(3)
	assert.Zero(t, tr.Done())
}

func TestTracker_Concurrent(t *testing.T) {
	t.Parallel()

	var last int64
	monotonic := true
	tr := NewTracker(1000, func(transferred, _ int64) {
		if transferred < last {
			monotonic = false
		}
		last = transferred
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(10)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), tr.Done())
	assert.Equal(t, int64(1000), last)
	assert.True(t, monotonic)
}
