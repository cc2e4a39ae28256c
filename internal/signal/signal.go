// Package signal provides typed handler lists used in place of toolkit
// signals. A Signal is not safe for concurrent use; callers own the
// goroutine that connects, disconnects and emits.
package signal

// HandlerID identifies a connected handler. The zero value is never issued.
type HandlerID uint64

type handler[T any] struct {
	id HandlerID
	fn func(T)
}

type Signal[T any] struct {
	name     string
	next     HandlerID
	handlers []*handler[T]
}

func New[T any](name string) *Signal[T] {
	return &Signal[T]{name: name}
}

func (s *Signal[T]) Name() string {
	return s.name
}

// Connect registers fn and returns an ID for Disconnect.
func (s *Signal[T]) Connect(fn func(T)) HandlerID {
	s.next++
	s.handlers = append(s.handlers, &handler[T]{id: s.next, fn: fn})
	return s.next
}

// Disconnect removes the handler. It reports whether the handler was
// connected. Disconnecting from inside a running handler is allowed and
// takes effect for the emission in progress.
func (s *Signal[T]) Disconnect(id HandlerID) bool {
	for i, h := range s.handlers {
		if h.id != id {
			continue
		}
		h.fn = nil
		s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
		return true
	}
	return false
}

// DisconnectAll drops every handler.
func (s *Signal[T]) DisconnectAll() {
	for _, h := range s.handlers {
		h.fn = nil
	}
	s.handlers = nil
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	return len(s.handlers)
}

// Emit calls every handler connected at the time of the call, in connection
// order, skipping handlers disconnected by an earlier handler.
func (s *Signal[T]) Emit(v T) {
	snapshot := make([]*handler[T], len(s.handlers))
	copy(snapshot, s.handlers)
	for _, h := range snapshot {
		if fn := h.fn; fn != nil {
			fn(v)
		}
	}
}
