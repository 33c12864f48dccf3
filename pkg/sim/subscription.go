package sim

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/tlv"
)

// subscription delivers every report in order on its own goroutine. Reports
// are queued without bound and never coalesced.
type subscription struct {
	id   string
	path datamodel.AttributePath
	fn   device.ReportFunc
	node *Node

	mu    sync.Mutex
	queue [][]byte
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscription(n *Node, path datamodel.AttributePath, fn device.ReportFunc) *subscription {
	return &subscription{
		id:   uuid.NewString(),
		path: path,
		fn:   fn,
		node: n,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *subscription) ID() string                    { return s.id }
func (s *subscription) Path() datamodel.AttributePath { return s.path }
func (s *subscription) Done() <-chan struct{}         { return s.done }

func (s *subscription) Cancel() error {
	s.once.Do(func() {
		close(s.quit)
		s.node.removeSubscription(s.id)
	})
	return nil
}

func (s *subscription) push(data []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, data)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		data := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case <-s.quit:
			return
		default:
		}
		s.fn(s.path, data)
	}
}

func (n *Node) addSubscription(s *subscription) {
	n.mu.Lock()
	n.subs[s.id] = s
	n.mu.Unlock()
}

func (n *Node) removeSubscription(id string) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

// cancelAll ends every subscription and waits for their goroutines.
func (n *Node) cancelAll() {
	n.mu.Lock()
	subs := make([]*subscription, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		_ = s.Cancel()
		<-s.done
	}
}

func (n *Node) readValue(path datamodel.AttributePath) ([]byte, error) {
	c, err := n.dm.Lookup(path.ClusterPath())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.ReadAttribute(context.Background(), path.Attribute, tlv.NewWriter(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// attributeChanged fans the new value out to matching subscribers.
func (n *Node) attributeChanged(path datamodel.AttributePath) {
	n.mu.Lock()
	var targets []*subscription
	for _, s := range n.subs {
		if s.path == path {
			targets = append(targets, s)
		}
	}
	n.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	data, err := n.readValue(path)
	if err != nil {
		return
	}
	for _, s := range targets {
		s.push(data)
	}
}
