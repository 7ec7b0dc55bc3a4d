package posture

import "context"

// Mailbox is a one-slot handoff between a single writer and a single reader.
// A Put while the slot is full replaces the pending value, so the reader
// always gets the newest one.
type Mailbox[T any] struct {
	ch chan T
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put stores v. If an unread value was displaced it is returned so the
// caller can release it.
func (m *Mailbox[T]) Put(v T) (dropped T, ok bool) {
	for {
		select {
		case m.ch <- v:
			return dropped, ok
		default:
		}
		select {
		case dropped = <-m.ch:
			ok = true
		default:
		}
	}
}

// Take blocks until a value is available or ctx is done.
func (m *Mailbox[T]) Take(ctx context.Context) (T, error) {
	select {
	case v := <-m.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// C exposes the slot for use in a select.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}
