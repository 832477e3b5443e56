package media

import (
	"sync"
)

// Flow fans byte slices out from one writer to many subscribers. Each
// subscriber has its own bounded queue; when it is full the oldest slice is
// dropped to make room for the newest. Slices are shared, not copied.
type Flow struct {
	// Start is called when the first subscriber is added.
	Start func()

	// Stop is called when the last subscriber is removed.
	Stop func()

	subscribers []*subscriber

	sync.Mutex
}

type subscriber struct {
	ch     chan []byte
	missed int
}

func (f *Flow) Subscribe(capacity int) <-chan []byte {
	f.Lock()
	defer f.Unlock()

	if capacity <= 0 {
		panic("media.Flow: receiver capacity must be positive")
	}

	s := &subscriber{ch: make(chan []byte, capacity)}
	f.subscribers = append(f.subscribers, s)
	if f.Start != nil && len(f.subscribers) == 1 {
		f.Start()
	}
	return s.ch
}

// Unsubscribe removes and closes a channel returned by Subscribe. It returns
// the number of slices the subscriber missed.
func (f *Flow) Unsubscribe(ch <-chan []byte) (missed int, err error) {
	f.Lock()
	defer f.Unlock()

	// See https://github.com/golang/go/wiki/SliceTricks
	found := false
	for i, s := range f.subscribers {
		if ch == s.ch {
			subs := f.subscribers
			close(s.ch)
			missed = s.missed
			subs[len(subs)-1], subs[i] = subs[i], subs[len(subs)-1]
			f.subscribers = subs[:len(subs)-1]
			found = true
			break
		}
	}
	if !found {
		return 0, errNotFound
	}

	if f.Stop != nil && len(f.subscribers) == 0 {
		go f.Stop()
	}
	return missed, nil
}

// Subscribers returns the current number of subscribers.
func (f *Flow) Subscribers() int {
	f.Lock()
	defer f.Unlock()
	return len(f.subscribers)
}

func (f *Flow) Write(p []byte) (n int, err error) {
	f.Lock()
	defer f.Unlock()

	for _, s := range f.subscribers {
		select {
		case s.ch <- p:
		default:
			// Drop oldest, add newest
			<-s.ch
			s.ch <- p
			s.missed++
		}
	}

	return len(p), nil
}

// Close closes and drains every subscriber channel.
func (f *Flow) Close() error {
	f.Lock()
	defer f.Unlock()

	for _, s := range f.subscribers {
		close(s.ch)
		for len(s.ch) > 0 {
			<-s.ch // Drain
		}
	}
	f.subscribers = nil

	return nil
}
