package mpmc

import (
	"io"
	"sync"
)

// buffer holds the slots shared by all groups attached to a channel.
// Slots form a logical append-only sequence; offset is the absolute
// position of the oldest live slot and every group tracks the absolute
// position it will consume next. A slot is retired once every cursor
// has moved past it, which keeps the live count bounded regardless of
// how many groups observe the channel.
type buffer[T any] struct {
	mu       sync.Mutex
	slots    []T // ring of live slots
	bound    int
	head     int    // index of the oldest live slot within slots
	count    int    // number of live slots
	offset   uint64 // absolute position of the oldest live slot
	cursors  map[int]uint64
	members  map[int]int
	nextID   int
	senders  int
	corked   bool
	consumed *sync.Cond // signaled when slots are retired
	arrived  *sync.Cond // signaled when data is sent or the channel corks
}

func newBuffer[T any](bound int) *buffer[T] {
	b := &buffer[T]{
		slots:   make([]T, bound),
		bound:   bound,
		cursors: make(map[int]uint64),
		members: make(map[int]int),
	}
	b.consumed = sync.NewCond(&b.mu)
	b.arrived = sync.NewCond(&b.mu)
	return b
}

// send appends a slot, blocking while the slowest group is a full
// capacity behind. Concurrent senders are serialized by the buffer
// lock, cross-sender order is arrival order only.
func (b *buffer[T]) send(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.corked {
			return ErrCorked
		}
		if b.count < b.bound {
			break
		}
		b.consumed.Wait()
	}
	b.put(v)
	return nil
}

// trySend appends a slot if there is room. It reports false without
// blocking when the buffer is full.
func (b *buffer[T]) trySend(v T) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.corked {
		return false, ErrCorked
	}
	if b.count == b.bound {
		return false, nil
	}
	b.put(v)
	return true, nil
}

func (b *buffer[T]) put(v T) {
	b.slots[(b.head+b.count)%b.bound] = v
	b.count++
	// with no attached groups the slot is vacuously retired
	b.retire()
	b.arrived.Broadcast()
}

// recv claims the next slot for the given group, blocking until one is
// visible. Once the channel is corked and the group cursor has drained
// the buffer it returns io.EOF.
func (b *buffer[T]) recv(group int) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if v, ok := b.claim(group); ok {
			return v, nil
		}
		if b.corked {
			var zero T
			return zero, io.EOF
		}
		b.arrived.Wait()
	}
}

// tryRecv claims the next slot for the given group without blocking.
func (b *buffer[T]) tryRecv(group int) (T, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.claim(group); ok {
		return v, true, nil
	}
	var zero T
	if b.corked {
		return zero, false, io.EOF
	}
	return zero, false, nil
}

// claim takes the slot under the group cursor if one is visible. The
// claim is exclusive within the group: the cursor is shared by all of
// its members.
func (b *buffer[T]) claim(group int) (T, bool) {
	cur, ok := b.cursors[group]
	if !ok || cur >= b.offset+uint64(b.count) {
		var zero T
		return zero, false
	}
	v := b.slots[(b.head+int(cur-b.offset))%b.bound]
	b.cursors[group] = cur + 1
	b.retire()
	return v, true
}

// retire reclaims slots consumed by every attached group and wakes
// senders blocked on backpressure. Must be called with the lock held.
func (b *buffer[T]) retire() {
	min := b.offset + uint64(b.count)
	for _, cur := range b.cursors {
		if cur < min {
			min = cur
		}
	}
	var zero T
	freed := false
	for b.offset < min && b.count > 0 {
		b.slots[b.head] = zero
		b.head = (b.head + 1) % b.bound
		b.offset++
		b.count--
		freed = true
	}
	if freed {
		b.consumed.Broadcast()
	}
}

func (b *buffer[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// cork marks the end of the stream. Blocked senders fail with ErrCorked
// and receivers drain the remaining slots before observing io.EOF.
func (b *buffer[T]) cork() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.corked {
		return
	}
	b.corked = true
	b.arrived.Broadcast()
	b.consumed.Broadcast()
}

func (b *buffer[T]) addSender() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.senders++
}

// removeSender drops one sender handle and corks the buffer when it was
// the last one.
func (b *buffer[T]) removeSender() {
	b.mu.Lock()
	b.senders--
	last := b.senders == 0
	b.mu.Unlock()
	if last {
		b.cork()
	}
}

// attach registers a new group cursor at the current tail.
func (b *buffer[T]) attach() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.corked {
		return 0, ErrCorked
	}
	id := b.nextID
	b.nextID++
	b.cursors[id] = b.offset + uint64(b.count)
	return id, nil
}

func (b *buffer[T]) addMember(group int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[group]++
	return b.members[group]
}

// removeMember drops one member of the group. The last member takes the
// group cursor with it so an abandoned group does not hold back slot
// retirement.
func (b *buffer[T]) removeMember(group int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[group]--
	if b.members[group] > 0 {
		return
	}
	delete(b.members, group)
	delete(b.cursors, group)
	b.retire()
}
