package mpmc

import "sync/atomic"

// Sender is a producer capability of a channel. Handles are minted with
// Chan.Sender or cloned from another handle; the channel stays open
// until every minted handle is closed.
type Sender[T any] struct {
	buf    *buffer[T]
	closed atomic.Bool
}

// Send writes a message for the attached groups to read. It blocks
// while the slowest group is a full capacity behind and fails with
// ErrCorked once the channel is corked. Messages from concurrent
// senders are serialized in arrival order, no fairness between senders
// is guaranteed.
func (s *Sender[T]) Send(v T) error {
	if s.closed.Load() {
		return ErrCorked
	}
	return s.buf.send(v)
}

// TrySend writes a message if a slot is available. It reports false
// without blocking when the channel is full.
func (s *Sender[T]) TrySend(v T) (bool, error) {
	if s.closed.Load() {
		return false, ErrCorked
	}
	return s.buf.trySend(v)
}

// Clone mints another sender handle appending to the same channel.
func (s *Sender[T]) Clone() *Sender[T] {
	s.buf.addSender()
	return &Sender[T]{buf: s.buf}
}

// Close drops this handle. Closing the last handle corks the channel:
// receivers drain what is buffered and then observe the end of the
// stream. Close is idempotent per handle.
func (s *Sender[T]) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.buf.removeSender()
	}
}

// Pending returns the number of live slots in the channel.
func (s *Sender[T]) Pending() int {
	return s.buf.len()
}
