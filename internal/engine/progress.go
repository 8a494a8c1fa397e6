package engine

import "sync"

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Lines are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// ProgressBroker fans out per-run progress lines to subscribers.
// It is safe for concurrent use.
//
// A run has a topic only while someone is subscribed to it. Close evicts the
// topic, so the broker holds nothing for runs nobody watches. A subscriber
// arriving after Close gets an open channel; callers must confirm the run is
// still active after subscribing.
type ProgressBroker struct {
	mu     sync.Mutex
	topics map[string]*progressTopic
}

type progressTopic struct {
	subs   map[int]chan string
	nextID int
}

// NewProgressBroker creates a new progress broker.
func NewProgressBroker() *ProgressBroker {
	return &ProgressBroker{
		topics: make(map[string]*progressTopic),
	}
}

// Subscribe returns a channel that receives progress lines for the given run
// and an unsubscribe function. The channel is closed when the run finishes.
func (b *ProgressBroker) Subscribe(runID string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &progressTopic{subs: make(map[int]chan string)}
		b.topics[runID] = t
	}

	ch := make(chan string, subscriberBufferSize)
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
		if len(t.subs) == 0 && b.topics[runID] == t {
			delete(b.topics, runID)
		}
	}
}

// Publish sends a line to all subscribers of the given run, dropping it for
// subscribers whose buffers are full.
func (b *ProgressBroker) Publish(runID string, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Close signals that the run has finished. All subscriber channels are
// closed and the topic is removed.
func (b *ProgressBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		return
	}
	delete(b.topics, runID)
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
