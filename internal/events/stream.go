package events

import "sync"

// streamBufferSize bounds each subscriber's channel. Events are small and
// a well-behaved subscriber drains promptly; a full channel indicates a
// stuck consumer, not a burst the runtime should absorb indefinitely.
const streamBufferSize = 64

// Stream is a totally-ordered, per-run event bus: Emit delivers to every
// current Subscribe-r without blocking on a slow one. It is safe for
// concurrent use, though in practice only the Workflow Runner driving the
// run ever calls Emit.
type Stream struct {
	mu   sync.Mutex
	subs []chan RunEvent
}

// NewStream returns an empty Stream ready to accept subscribers.
func NewStream() *Stream {
	return &Stream{}
}

// Subscribe registers a new listener and returns its channel. The channel
// is closed when the stream sees a terminal event (run_complete or
// run_error), after which no further Subscribe calls will receive it.
func (s *Stream) Subscribe() <-chan RunEvent {
	ch := make(chan RunEvent, streamBufferSize)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Emit delivers ev to every current subscriber. A subscriber whose channel
// is full is skipped for this event rather than blocking the run; a
// RunEvent is small enough, and the stream ordered enough, that a
// persistently full channel means the consumer is stuck, not merely
// behind. If ev is terminal, every subscriber channel is closed after
// delivery.
func (s *Stream) Emit(ev RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}

	if ev.IsTerminal() {
		for _, ch := range s.subs {
			close(ch)
		}
		s.subs = nil
	}
}
