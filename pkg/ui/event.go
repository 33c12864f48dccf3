package ui

// Kind is the type of control an Event describes.
type Kind string

const (
	KindSlider   Kind = "slider"
	KindDropdown Kind = "dropdown"
)

// Event is a full snapshot of a control, emitted after every change.
type Event struct {
	Control string  `json:"control"`
	Kind    Kind    `json:"kind"`
	Title   string  `json:"title,omitempty"`
	Loading bool    `json:"loading,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`

	MinLabel string `json:"minLabel,omitempty"`
	MaxLabel string `json:"maxLabel,omitempty"`

	Selected string   `json:"selected,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Observer receives control events.
type Observer func(Event)

type observers struct {
	next int
	fns  map[int]Observer
	ids  []int
}

func (o *observers) add(fn Observer) int {
	if o.fns == nil {
		o.fns = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	o.ids = append(o.ids, id)
	return id
}

func (o *observers) remove(id int) {
	delete(o.fns, id)
	for i, v := range o.ids {
		if v == id {
			o.ids = append(o.ids[:i], o.ids[i+1:]...)
			break
		}
	}
}

func (o *observers) list() []Observer {
	out := make([]Observer, 0, len(o.ids))
	for _, id := range o.ids {
		out = append(out, o.fns[id])
	}
	return out
}
