package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsInOrder(t *testing.T) {
	defer test.CheckRoutines(t)()

	q := NewQueue(0)
	q.Start()
	defer q.Stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, q.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, q.Sync(func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueStop(t *testing.T) {
	defer test.CheckRoutines(t)()

	q := NewQueue(1)
	q.Start()
	require.NoError(t, q.Sync(func() {}))
	q.Stop()
	q.Stop()

	assert.ErrorIs(t, q.Post(func() {}), ErrQueueStopped)
	assert.ErrorIs(t, q.Sync(func() {}), ErrQueueStopped)
}

func TestQueueStopWithoutRun(t *testing.T) {
	q := NewQueue(1)
	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a queue that never ran")
	}
}

func TestSliderClampsAndEmits(t *testing.T) {
	s := NewSliderModel("brightness")
	var events []Event
	stop := s.Observe(func(e Event) { events = append(events, e) })

	s.SetTitle("Brightness")
	s.SetBounds(0, 100)
	s.SetValue(150)
	assert.Equal(t, 100.0, s.Value())
	s.SetValue(-3)
	assert.Equal(t, 0.0, s.Value())

	s.SetBounds(100, 10)
	min, max := s.Bounds()
	assert.Equal(t, 10.0, min)
	assert.Equal(t, 100.0, max)
	assert.Equal(t, 10.0, s.Value(), "value re-clamped into new bounds")

	stop()
	s.SetLoading(true)

	require.Len(t, events, 5)
	last := events[len(events)-1]
	assert.Equal(t, "brightness", last.Control)
	assert.Equal(t, KindSlider, last.Kind)
	assert.Equal(t, "Brightness", last.Title)
	assert.False(t, last.Loading)
	assert.True(t, s.Snapshot().Loading)
}

func TestDropdownSelect(t *testing.T) {
	d := NewDropdownModel("mode", []string{"Off", "Cool", "Heat"})
	var events []Event
	d.Observe(func(e Event) { events = append(events, e) })

	d.SetSelected("Cool")
	d.SetSelected("Turbo")

	assert.Equal(t, "Cool", d.Selected())
	require.Len(t, events, 1)
	assert.Equal(t, KindDropdown, events[0].Kind)
	assert.Equal(t, []string{"Off", "Cool", "Heat"}, events[0].Options)

	opts := d.Options()
	opts[0] = "changed"
	assert.Equal(t, "Off", d.Options()[0])
}
