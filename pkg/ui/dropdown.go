package ui

import (
	"slices"
	"sync"
)

// Dropdown is a single-choice control.
type Dropdown interface {
	Selected() string
	SetSelected(option string)
	Options() []string
	SetTitle(title string)
	SetLoading(loading bool)
}

// DropdownModel is an in-memory Dropdown that emits an Event on every change.
type DropdownModel struct {
	name string

	mu       sync.Mutex
	options  []string
	selected string
	title    string
	loading  bool
	obs      observers
}

// NewDropdownModel creates a dropdown with the given options and nothing selected.
func NewDropdownModel(name string, options []string) *DropdownModel {
	return &DropdownModel{name: name, options: slices.Clone(options)}
}

// Name identifies the control in events.
func (d *DropdownModel) Name() string { return d.name }

// Selected returns the selected option.
func (d *DropdownModel) Selected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// SetSelected selects option. Unknown options are ignored.
func (d *DropdownModel) SetSelected(option string) {
	d.mu.Lock()
	ok := slices.Contains(d.options, option)
	d.mu.Unlock()
	if !ok {
		return
	}
	d.update(func() { d.selected = option })
}

// Options returns the available options.
func (d *DropdownModel) Options() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.options)
}

// SetTitle sets the control title.
func (d *DropdownModel) SetTitle(title string) {
	d.update(func() { d.title = title })
}

// SetLoading toggles the busy indicator.
func (d *DropdownModel) SetLoading(loading bool) {
	d.update(func() { d.loading = loading })
}

// Snapshot returns the current state as an Event.
func (d *DropdownModel) Snapshot() Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eventLocked()
}

// Observe registers fn for change events. The returned func unregisters it.
func (d *DropdownModel) Observe(fn Observer) func() {
	d.mu.Lock()
	id := d.obs.add(fn)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.obs.remove(id)
		d.mu.Unlock()
	}
}

func (d *DropdownModel) eventLocked() Event {
	return Event{
		Control:  d.name,
		Kind:     KindDropdown,
		Title:    d.title,
		Loading:  d.loading,
		Selected: d.selected,
		Options:  slices.Clone(d.options),
	}
}

func (d *DropdownModel) update(fn func()) {
	d.mu.Lock()
	fn()
	ev := d.eventLocked()
	fns := d.obs.list()
	d.mu.Unlock()

	for _, o := range fns {
		o(ev)
	}
}
