package supervisor

import "sync"

// subscriptionBuffer is the number of events queued on a subscriber's channel.
const subscriptionBuffer = 256

// EventKind tells which field of an Event is set.
type EventKind int

const (
	// EventStatus carries a new Status snapshot.
	EventStatus EventKind = iota
	// EventFrame carries an inbound frame from the current connection.
	EventFrame
)

// Event is delivered to subscribers.
type Event struct {
	Kind   EventKind
	Status Status
	Frame  []byte
}

// Subscription receives status changes and inbound frames in order.
//
// Events go straight onto a buffered channel. Once it is full, a lossless
// subscription spills into an overflow queue that a goroutine feeds into
// the channel, so publishing never blocks the Supervisor. A lossy
// subscription is dropped instead.
type Subscription struct {
	id    int
	sup   *Supervisor
	ch    chan Event
	stop  chan struct{}
	lossy bool

	mu       sync.Mutex
	overflow []Event
	flushing bool
	ended    bool
	stopped  bool
	chClosed bool
}

// Events returns the event channel. It is closed by Close, after Shutdown
// once every queued event is delivered, or when a lossy subscriber falls
// behind.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close stops delivery, discards queued events and closes the channel.
func (s *Subscription) Close() {
	s.sup.mu.Lock()
	delete(s.sup.subs, s.id)
	s.sup.mu.Unlock()

	s.halt()
}

// Subscribe registers a lossless subscriber. The current status is queued
// first. After Shutdown the returned subscription is already closed.
func (s *Supervisor) Subscribe() *Subscription {
	return s.subscribe(false)
}

// SubscribeLossy registers a subscriber that is dropped, with its channel
// closed, when it falls a full buffer behind.
func (s *Supervisor) SubscribeLossy() *Subscription {
	return s.subscribe(true)
}

func (s *Supervisor) subscribe(lossy bool) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscription{
		id:    s.nextID,
		sup:   s,
		ch:    make(chan Event, subscriptionBuffer),
		stop:  make(chan struct{}),
		lossy: lossy,
	}
	s.nextID++

	if !s.mounted {
		sub.end()
		return sub
	}

	sub.deliver(Event{Kind: EventStatus, Status: s.status})
	s.subs[sub.id] = sub
	return sub
}

// publishLocked fans an event out without blocking.
func (s *Supervisor) publishLocked(ev Event) {
	for id, sub := range s.subs {
		if !sub.deliver(ev) {
			s.logger.Warn().Int("subscriber", id).Msg("subscriber buffer full, dropping subscriber")
			delete(s.subs, id)
			sub.halt()
		}
	}
}

// endSubscriptionsLocked closes every subscription after its queued events.
func (s *Supervisor) endSubscriptionsLocked() {
	for id, sub := range s.subs {
		delete(s.subs, id)
		sub.end()
	}
}

// deliver queues ev. It returns false when a lossy subscriber is full.
func (s *Subscription) deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.ended {
		return true
	}
	if s.flushing {
		s.overflow = append(s.overflow, ev)
		return true
	}

	select {
	case s.ch <- ev:
		return true
	default:
	}
	if s.lossy {
		return false
	}

	s.overflow = append(s.overflow, ev)
	s.flushing = true
	go s.flush()
	return true
}

// flush feeds the overflow queue into the channel until it is empty.
func (s *Subscription) flush() {
	for {
		s.mu.Lock()
		if s.stopped || len(s.overflow) == 0 {
			s.flushing = false
			s.overflow = nil
			if s.stopped || s.ended {
				s.closeChLocked()
			}
			s.mu.Unlock()
			return
		}
		ev := s.overflow[0]
		s.overflow[0] = Event{}
		s.overflow = s.overflow[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.stop:
		}
	}
}

// end closes the channel once queued events are delivered.
func (s *Subscription) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ended = true
	if !s.flushing {
		s.closeChLocked()
	}
}

// halt discards queued events and closes the channel.
func (s *Subscription) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	if !s.flushing {
		s.closeChLocked()
	}
}

func (s *Subscription) closeChLocked() {
	if !s.chClosed {
		s.chClosed = true
		close(s.ch)
	}
}
