package grid

import (
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultSubscriptionBuffer is the channel capacity used when Subscribe is
// called with a non-positive buffer.
const DefaultSubscriptionBuffer = 64

// Notifier broadcasts placed items to any number of subscribers.
//
// Publish delivers synchronously, in call order, with a non-blocking send
// per subscriber. There is no history for late subscribers and no
// backpressure: a subscriber whose buffer is full misses the event, which is
// counted in [Subscription.Dropped].
//
// Subscribe, Close and Publish may be called from different goroutines.
type Notifier struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Subscription is one subscriber's view of the change stream.
type Subscription struct {
	// C receives placed items. It is closed by Close.
	C <-chan *Item

	ch      chan *Item
	owner   *Notifier
	once    sync.Once
	dropped atomic.Int64
}

// Subscribe registers a subscriber with the given channel capacity.
func (n *Notifier) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	ch := make(chan *Item, buffer)
	s := &Subscription{C: ch, ch: ch, owner: n}

	n.mu.Lock()
	n.subs = append(n.subs, s)
	n.mu.Unlock()
	return s
}

// Publish sends it to every current subscriber.
func (n *Notifier) Publish(it *Item) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.subs {
		select {
		case s.ch <- it:
		default:
			s.dropped.Add(1)
		}
	}
}

// Len returns the number of active subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier) remove(s *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i := slices.Index(n.subs, s); i >= 0 {
		n.subs = slices.Delete(n.subs, i, i+1)
	}
	close(s.ch)
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.owner.remove(s) })
}

// Dropped returns how many events this subscriber missed because its buffer
// was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }
