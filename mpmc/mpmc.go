// Package mpmc provides multiple-producer, multiple-consumer channels.
// These channels serve the following purposes:
//   - reduce memory duplication by keeping a single bounded buffer from
//     which all consumer groups read, releasing a slot only once every
//     group has retired it;
//   - make consumer goroutines wait for new data if none is ready;
//   - make producer goroutines wait (backpressure) if any one consumer
//     group is getting behind.
//
// A channel is observed through consumer groups. A Broadcast group
// receives every message in push order. A Shared group distributes
// messages across its members: each message is claimed by exactly one
// member and the order in which members make progress is unspecified.
//
// When the last sender handle is closed the channel is corked: no new
// data may be sent, receivers drain whatever is buffered and then
// observe io.EOF.
package mpmc

import "errors"

// Policy defines how a consumer group observes the channel.
type Policy int

const (
	// Broadcast groups observe every message in push order. A broadcast
	// group admits a single member.
	Broadcast Policy = iota
	// Shared groups distribute messages across members, each message is
	// delivered to exactly one member.
	Shared
)

// String returns policy name.
func (p Policy) String() string {
	switch p {
	case Broadcast:
		return "broadcast"
	case Shared:
		return "shared"
	}
	return "unknown"
}

// ErrCorked is returned on attempts to send to or attach a group to a
// channel after its last sender was closed.
var ErrCorked = errors.New("mpmc: channel is corked")

// ErrBroadcastMembers is returned when a second member is added to a
// broadcast group. Competing members of a duplicating group are not
// supported, use a Shared group instead.
var ErrBroadcastMembers = errors.New("mpmc: broadcast group admits a single member")

// Chan is a bounded multiple-producer, multiple-consumer channel. It
// must be created with New.
type Chan[T any] struct {
	buf *buffer[T]
}

// New creates a channel with the given slot capacity. Capacity defines
// how far ahead producers may run relative to the slowest attached
// group. New panics if capacity is not positive.
func New[T any](capacity int) *Chan[T] {
	if capacity < 1 {
		panic("mpmc: capacity must be positive")
	}
	return &Chan[T]{buf: newBuffer[T](capacity)}
}

// Sender mints a new sender handle. The channel is corked once every
// minted handle has been closed.
func (c *Chan[T]) Sender() *Sender[T] {
	c.buf.addSender()
	return &Sender[T]{buf: c.buf}
}

// Attach adds a new consumer group with the given policy. The group
// cursor starts at the current tail: only messages sent after the
// attachment are observed. Attach fails if the channel is already
// corked.
func (c *Chan[T]) Attach(p Policy) (*Group[T], error) {
	id, err := c.buf.attach()
	if err != nil {
		return nil, err
	}
	return &Group[T]{buf: c.buf, id: id, policy: p}, nil
}

// Cap returns the slot capacity of the channel.
func (c *Chan[T]) Cap() int {
	return c.buf.bound
}

// Len returns the number of live slots: messages not yet retired by
// every attached group.
func (c *Chan[T]) Len() int {
	return c.buf.len()
}

// Group is a consumer attachment point on a channel. Receivers minted
// from one Shared group compete for messages; a Broadcast group holds a
// single receiver observing everything.
type Group[T any] struct {
	buf    *buffer[T]
	id     int
	policy Policy
}

// Policy returns the group delivery policy.
func (g *Group[T]) Policy() Policy {
	return g.policy
}

// Receiver adds a member to the group. For Broadcast groups only a
// single member is allowed.
func (g *Group[T]) Receiver() (*Receiver[T], error) {
	members := g.buf.addMember(g.id)
	if g.policy == Broadcast && members > 1 {
		g.buf.removeMember(g.id)
		return nil, ErrBroadcastMembers
	}
	return &Receiver[T]{buf: g.buf, group: g.id}, nil
}
