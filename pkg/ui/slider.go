package ui

import "sync"

// Slider is a bounded numeric control.
type Slider interface {
	Value() float64
	SetValue(v float64)
	Bounds() (min, max float64)
	SetBounds(min, max float64)
	SetLabels(min, max string)
	SetTitle(title string)
	SetLoading(loading bool)
}

// SliderModel is an in-memory Slider that emits an Event on every change.
// Values are clamped into the bounds.
type SliderModel struct {
	name string

	mu       sync.Mutex
	value    float64
	min, max float64
	minLabel string
	maxLabel string
	title    string
	loading  bool
	obs      observers
}

// NewSliderModel creates a slider with bounds [0, 100].
func NewSliderModel(name string) *SliderModel {
	return &SliderModel{name: name, max: 100}
}

// Name identifies the control in events.
func (s *SliderModel) Name() string { return s.name }

// Value returns the displayed value.
func (s *SliderModel) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// SetValue sets the displayed value.
func (s *SliderModel) SetValue(v float64) {
	s.update(func() { s.value = s.clamp(v) })
}

// Bounds returns the slider range.
func (s *SliderModel) Bounds() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min, s.max
}

// SetBounds sets the range. Swapped bounds are reordered.
func (s *SliderModel) SetBounds(min, max float64) {
	if min > max {
		min, max = max, min
	}
	s.update(func() {
		s.min, s.max = min, max
		s.value = s.clamp(s.value)
	})
}

// SetLabels sets the texts shown at either end.
func (s *SliderModel) SetLabels(min, max string) {
	s.update(func() { s.minLabel, s.maxLabel = min, max })
}

// SetTitle sets the control title.
func (s *SliderModel) SetTitle(title string) {
	s.update(func() { s.title = title })
}

// SetLoading toggles the busy indicator.
func (s *SliderModel) SetLoading(loading bool) {
	s.update(func() { s.loading = loading })
}

// Snapshot returns the current state as an Event.
func (s *SliderModel) Snapshot() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventLocked()
}

// Observe registers fn for change events. The returned func unregisters it.
func (s *SliderModel) Observe(fn Observer) func() {
	s.mu.Lock()
	id := s.obs.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.obs.remove(id)
		s.mu.Unlock()
	}
}

func (s *SliderModel) clamp(v float64) float64 {
	if v < s.min {
		return s.min
	}
	if v > s.max {
		return s.max
	}
	return v
}

func (s *SliderModel) eventLocked() Event {
	return Event{
		Control:  s.name,
		Kind:     KindSlider,
		Title:    s.title,
		Loading:  s.loading,
		Value:    s.value,
		Min:      s.min,
		Max:      s.max,
		MinLabel: s.minLabel,
		MaxLabel: s.maxLabel,
	}
}

func (s *SliderModel) update(fn func()) {
	s.mu.Lock()
	fn()
	ev := s.eventLocked()
	fns := s.obs.list()
	s.mu.Unlock()

	for _, o := range fns {
		o(ev)
	}
}
