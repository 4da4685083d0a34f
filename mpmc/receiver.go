package mpmc

import (
	"io"
	"sync/atomic"
)

// Receiver is a consumer capability bound to one group of a channel.
// Receivers of a Shared group compete for messages, a Broadcast group
// holds a single receiver observing every message in push order.
type Receiver[T any] struct {
	buf    *buffer[T]
	group  int
	closed atomic.Bool
}

// Receive claims the next message for the receiver's group. It blocks
// until a message is visible and returns io.EOF once the channel is
// corked and the group has drained the buffer. After io.EOF it never
// blocks again.
func (r *Receiver[T]) Receive() (T, error) {
	if r.closed.Load() {
		var zero T
		return zero, io.EOF
	}
	return r.buf.recv(r.group)
}

// TryReceive claims the next message if one is already visible. It
// reports false without blocking when the group has caught up; the
// error is io.EOF once the channel is corked and drained. It allows a
// woken consumer to drain whatever is buffered before yielding.
func (r *Receiver[T]) TryReceive() (T, bool, error) {
	if r.closed.Load() {
		var zero T
		return zero, false, io.EOF
	}
	return r.buf.tryRecv(r.group)
}

// Close removes the receiver from its group. When the last member
// leaves, the group stops holding back slot retirement. Close is
// idempotent.
func (r *Receiver[T]) Close() {
	if r.closed.CompareAndSwap(false, true) {
		r.buf.removeMember(r.group)
	}
}
