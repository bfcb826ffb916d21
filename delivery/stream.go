package delivery

import (
	"sync"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
)

var (
	ErrSlowConsumer = errors.New("delivery: subscriber buffer overflow")
)

// Stream is a channel-backed subscription. A stream whose buffer fills up is closed
// with ErrSlowConsumer; its owner is expected to backfill with a cursor and resubscribe.
type Stream struct {
	*Handle

	C <-chan entity.Message

	mu     sync.Mutex
	ch     chan entity.Message
	closed bool
	err    error
}

func (d *Dispatcher) SubscribeStream(threadId uint, buffer int) *Stream {
	if buffer <= 0 {
		buffer = 1
	}

	s := &Stream{
		ch: make(chan entity.Message, buffer),
	}
	s.C = s.ch
	s.Handle = d.Subscribe(threadId, func(msg entity.Message) {
		if err := s.push(msg); err != nil {
			droppedStreams.Inc()
			logDrop(d.logger, threadId, err)
		}
	})

	return s
}

func (s *Stream) push(msg entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	select {
	case s.ch <- msg:
		return nil
	default:
		s.err = ErrSlowConsumer
		s.closeLocked()
		return s.err
	}
}

// Close cancels the subscription and closes C.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
}

func (s *Stream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	s.Handle.Cancel()
}

// Err reports why the stream was closed by the dispatcher, if it was.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}
