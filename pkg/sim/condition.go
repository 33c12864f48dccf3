package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rmaker/homectl/pkg/device"
)

// NetworkCondition configures how requests to simulated nodes behave.
type NetworkCondition struct {
	// DropRate is the probability of a request never being answered
	// (0.0 - 1.0). Dropped requests fail with device.ErrTimeout.
	DropRate float64

	// DelayMin is the minimum delay added to each request.
	DelayMin time.Duration

	// DelayMax is the maximum delay added to each request. Actual delay is
	// uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration
}

type network struct {
	mu   sync.Mutex
	cond NetworkCondition
	rng  *rand.Rand
}

func newNetwork(cond NetworkCondition, seed int64) *network {
	return &network{cond: cond, rng: rand.New(rand.NewSource(seed))}
}

func (n *network) set(cond NetworkCondition) {
	n.mu.Lock()
	n.cond = cond
	n.mu.Unlock()
}

// roundTrip waits out the simulated delay and decides whether the request
// is lost.
func (n *network) roundTrip(ctx context.Context) error {
	n.mu.Lock()
	delay := n.cond.DelayMin
	if span := n.cond.DelayMax - n.cond.DelayMin; span > 0 {
		delay += time.Duration(n.rng.Int63n(int64(span)))
	}
	drop := n.cond.DropRate > 0 && n.rng.Float64() < n.cond.DropRate
	n.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if drop {
		return device.ErrTimeout
	}
	return nil
}
