package download

import "sync"

// Status is the lifecycle phase of a model download.
type Status string

const (
	StatusNotDownloaded Status = "not_downloaded"
	StatusDownloading   Status = "downloading"
	StatusDownloaded    Status = "downloaded"
	StatusError         Status = "error"
)

// State is the tagged per-model download state. Message is set only when
// Status is StatusError; ReceivedBytes/TotalBytes are meaningful only while
// downloading.
type State struct {
	Status        Status
	ReceivedBytes int64
	TotalBytes    int64
	Message       string
}

// Event is a state-change notification for one model id.
type Event struct {
	ModelID string
	State   State
}

// subscribers is a small typed fan-out for download state changes. Events
// are delivered best-effort: a subscriber that stops draining its channel
// loses events instead of blocking the transfer loop.
type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

const subscriberBuffer = 64

func (s *subscribers) subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	id := s.next
	s.next++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *subscribers) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
