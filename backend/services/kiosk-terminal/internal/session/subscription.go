package session

import (
	"sync"
)

type subscription struct {
	fn     func(Snapshot)
	mu     sync.Mutex
	queue  []Snapshot
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe delivers every committed snapshot to fn, in commit order, on a dedicated goroutine.
// fn may call back into the store. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	sub := &subscription{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go sub.loop()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}
}

func (sub *subscription) push(snap Snapshot) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, snap)
	sub.mu.Unlock()
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscription) loop() {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.signal:
		}
		for {
			sub.mu.Lock()
			if len(sub.queue) == 0 {
				sub.mu.Unlock()
				break
			}
			next := sub.queue[0]
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()

			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(next)
		}
	}
}

func (sub *subscription) stop() {
	sub.once.Do(func() { close(sub.done) })
}
