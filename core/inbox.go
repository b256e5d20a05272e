package core

import (
	"context"
	"fmt"
)

// Inbox is a passive Ref for code that lives outside the actor set,
// such as the client that submitted a job. Replies addressed to the
// inbox are buffered on a channel.
type Inbox struct {
	name string
	ch   chan *Message
}

// NewInbox creates an inbox with the given buffer size.
func NewInbox(name string, size int) *Inbox {
	if size <= 0 {
		size = 16
	}
	return &Inbox{name: name, ch: make(chan *Message, size)}
}

// Name returns the inbox name.
func (i *Inbox) Name() string {
	return i.name
}

// Deliver buffers a message for the inbox owner. It never blocks; a
// full inbox rejects the delivery.
func (i *Inbox) Deliver(msg *Message, _ Ref) error {
	select {
	case i.ch <- msg:
		return nil
	default:
		return fmt.Errorf("inbox %s is full", i.name)
	}
}

// C exposes the buffered messages for select loops.
func (i *Inbox) C() <-chan *Message {
	return i.ch
}

// Receive blocks until a message arrives or the context ends.
func (i *Inbox) Receive(ctx context.Context) (*Message, error) {
	select {
	case msg := <-i.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
