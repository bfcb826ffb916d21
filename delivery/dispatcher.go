package delivery

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/internal/mylog"
)

type (
	// Publisher hands a committed message to every live subscriber of its thread.
	Publisher interface {
		Publish(threadId uint, msg entity.Message)
	}

	Callback func(msg entity.Message)

	Handle struct {
		id       uint64
		threadId uint
		deliver  Callback
		canceled atomic.Bool
		topic    *topic
	}

	topic struct {
		// publishMu serializes publishes of one thread; subscriber callbacks run under it.
		publishMu sync.Mutex

		mu    sync.Mutex
		subs  []*Handle
		dirty atomic.Bool
	}

	Dispatcher struct {
		logger *slog.Logger

		mu     sync.Mutex
		topics map[uint]*topic
		nextId atomic.Uint64
	}
)

var (
	_ Publisher = (*Dispatcher)(nil)
)

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		topics: make(map[uint]*topic),
	}
}

func (h *Handle) ThreadID() uint {
	return h.threadId
}

// Cancel stops delivery to h. It never blocks and is safe inside a delivery callback.
func (h *Handle) Cancel() {
	if h.canceled.CompareAndSwap(false, true) {
		h.topic.dirty.Store(true)
		activeSubscriptions.Dec()
	}
}

func (h *Handle) Canceled() bool {
	return h.canceled.Load()
}

func (d *Dispatcher) Subscribe(threadId uint, deliver Callback) *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.topics[threadId]
	if !ok {
		t = &topic{}
		d.topics[threadId] = t
	}

	h := &Handle{
		id:       d.nextId.Add(1),
		threadId: threadId,
		deliver:  deliver,
		topic:    t,
	}

	t.mu.Lock()
	t.subs = append(t.subs, h)
	t.mu.Unlock()

	activeSubscriptions.Inc()
	d.logger.Debug("subscribed", "thread_id", threadId, "handle", h.id)

	return h
}

func (d *Dispatcher) Unsubscribe(h *Handle) {
	if h != nil {
		h.Cancel()
	}
}

func (d *Dispatcher) Publish(threadId uint, msg entity.Message) {
	publishedTotal.Inc()

	d.mu.Lock()
	t, ok := d.topics[threadId]
	d.mu.Unlock()
	if !ok {
		return
	}

	t.publishMu.Lock()
	t.mu.Lock()
	subs := make([]*Handle, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, h := range subs {
		if h.Canceled() {
			continue
		}
		d.deliver(h, msg)
	}
	t.publishMu.Unlock()

	if t.dirty.Load() {
		d.prune(threadId, t)
	}
}

// Subscribers counts live subscriptions of a thread.
func (d *Dispatcher) Subscribers(threadId uint) int {
	d.mu.Lock()
	t, ok := d.topics[threadId]
	d.mu.Unlock()
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, h := range t.subs {
		if !h.Canceled() {
			n++
		}
	}
	return n
}

func (d *Dispatcher) deliver(h *Handle, msg entity.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("subscriber panicked, dropping it", "thread_id", h.threadId, "handle", h.id, "panic", r)
			h.Cancel()
		}
	}()

	h.deliver(msg)
	deliveredTotal.Inc()
}

func (d *Dispatcher) prune(threadId uint, t *topic) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty.CompareAndSwap(true, false) {
		return
	}

	live := t.subs[:0]
	for _, h := range t.subs {
		if !h.Canceled() {
			live = append(live, h)
		}
	}
	clear(t.subs[len(live):])
	t.subs = live

	if len(t.subs) == 0 && d.topics[threadId] == t {
		delete(d.topics, threadId)
	}
}

func logDrop(logger *slog.Logger, threadId uint, err error) {
	logger.Warn("subscriber dropped", "thread_id", threadId, mylog.Err(err))
}
