package core

import "errors"

// Frame is one encoded signal message.
type Frame []byte

var ErrBackpressure = errors.New("backpressure")

// SignalConnection abstracts a participant's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a frame without blocking. Returns ErrBackpressure when
	// the outbound buffer is full; the frame is dropped for this subscriber.
	TrySend(Frame) error
	Close()
}
