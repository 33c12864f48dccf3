package control

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/state"
)

// SubscribeFunc opens a device subscription delivering reports to fn.
type SubscribeFunc func(ctx context.Context, fn device.ReportFunc) (device.Subscription, error)

type registration struct {
	id  string
	sub device.Subscription
}

// Registry holds at most one active subscription per node attribute.
// Subscribing again replaces and cancels the previous subscription, and
// reports from a replaced subscription are dropped.
type Registry struct {
	log logging.LeveledLogger

	mu     sync.Mutex
	subs   map[state.Key]*registration
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry(lf logging.LoggerFactory) *Registry {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Registry{
		log:  lf.NewLogger("control"),
		subs: make(map[state.Key]*registration),
	}
}

// Subscribe registers a subscription for key. It returns the registration
// id.
func (r *Registry) Subscribe(ctx context.Context, key state.Key, open SubscribeFunc, fn device.ReportFunc) (string, error) {
	id := uuid.NewString()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	old := r.subs[key]
	r.subs[key] = &registration{id: id}
	r.mu.Unlock()

	if old != nil && old.sub != nil {
		r.log.Debugf("replacing subscription %s on %s", old.id, key)
		_ = old.sub.Cancel()
	}

	sub, err := open(ctx, func(path datamodel.AttributePath, data []byte) {
		if r.current(key) != id {
			return
		}
		fn(path, data)
	})
	if err != nil {
		r.mu.Lock()
		if reg := r.subs[key]; reg != nil && reg.id == id {
			delete(r.subs, key)
		}
		r.mu.Unlock()
		return "", err
	}

	r.mu.Lock()
	reg := r.subs[key]
	if reg == nil || reg.id != id {
		r.mu.Unlock()
		_ = sub.Cancel()
		return "", ErrSuperseded
	}
	reg.sub = sub
	r.mu.Unlock()

	r.log.Debugf("subscribed %s as %s", key, id)
	return id, nil
}

func (r *Registry) current(key state.Key) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg := r.subs[key]; reg != nil {
		return reg.id
	}
	return ""
}

// Active returns the registration id for key.
func (r *Registry) Active(key state.Key) (string, bool) {
	id := r.current(key)
	return id, id != ""
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Cancel removes and cancels the subscription for key.
func (r *Registry) Cancel(key state.Key) {
	r.mu.Lock()
	reg := r.subs[key]
	delete(r.subs, key)
	r.mu.Unlock()

	if reg != nil && reg.sub != nil {
		_ = reg.sub.Cancel()
	}
}

// Close cancels every subscription. Later calls to Subscribe fail.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[state.Key]*registration)
	r.closed = true
	r.mu.Unlock()

	for _, reg := range subs {
		if reg.sub != nil {
			_ = reg.sub.Cancel()
		}
	}
}
