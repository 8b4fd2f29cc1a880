package scheduler

import (
	"sync"
	"time"
)

// Event is one progress/status update delivered to subscribers.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"taskId"`
	FileID    string    `json:"fileId"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message,omitempty"`
}

// Feed fans events out to subscribers and keeps a bounded replay buffer for
// pollers that reconnect. Publish never blocks: a subscriber that falls
// behind its channel depth misses events and catches up via Since.
type Feed struct {
	mu         sync.RWMutex
	nextSeq    int64
	nextSubID  int
	bufferSize int
	maxEvents  int
	events     []Event
	subs       map[int]chan Event
}

// NewFeed creates a feed whose subscriber channels hold bufferSize events
// and whose replay buffer retains the most recent maxEvents.
func NewFeed(bufferSize, maxEvents int) *Feed {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Feed{
		bufferSize: bufferSize,
		maxEvents:  maxEvents,
		events:     make([]Event, 0, maxEvents),
		subs:       make(map[int]chan Event),
	}
}

// Subscribe registers a live event channel. The returned cancel function
// unregisters and closes it; callers must invoke it exactly once.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSubID
	f.nextSubID++
	ch := make(chan Event, f.bufferSize)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish assigns a sequence number, stores the event and delivers it to
// every subscriber with room in its channel.
func (f *Feed) Publish(event Event) Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSeq++
	event.Seq = f.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	f.events = append(f.events, event)
	if len(f.events) > f.maxEvents {
		trim := len(f.events) - f.maxEvents
		f.events = append([]Event(nil), f.events[trim:]...)
	}

	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

// Since returns buffered events with sequence strictly greater than seq.
func (f *Feed) Since(seq int64) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(f.events))
	for _, event := range f.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Close unregisters and closes every subscriber channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
