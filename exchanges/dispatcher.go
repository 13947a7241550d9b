package exchanges

import (
	"sync"

	set "github.com/deckarep/golang-set"

	"tradegate"
	"tradegate/logger"
)

const defaultObserverQueueSize = 256

// observer feeds the caller's channel. Messages go straight into the channel while it has room,
// the overflow queue only holds what the channel could not take, and its pump drains it in order.
type observer struct {
	ch    tradegate.MessageChan
	kinds set.Set

	mu       sync.Mutex
	queue    []tradegate.Message
	inFlight bool // pump holds a message it has not delivered yet
	limit    int
	dropped  uint64
	signal   chan struct{}
	done     chan struct{}
}

func newObserver(ch tradegate.MessageChan, limit int) *observer {
	o := &observer{
		ch:     ch,
		kinds:  set.NewSet(),
		limit:  limit,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go o.pump()
	return o
}

// push never blocks. Once the channel is full and limit messages are queued, the oldest
// queued message is lost.
func (o *observer) push(msg tradegate.Message) {
	o.mu.Lock()
	if len(o.queue) == 0 && !o.inFlight {
		select {
		case o.ch <- msg:
			o.mu.Unlock()
			return
		default:
		}
	}
	if len(o.queue) >= o.limit {
		o.queue[0] = tradegate.Message{}
		o.queue = o.queue[1:]
		o.dropped++
		if o.dropped == 1 || o.dropped%100 == 0 {
			logger.WithComponent("dispatcher").WithField("dropped", o.dropped).Warn("observer too slow, dropping oldest message")
		}
	}
	o.queue = append(o.queue, msg)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

// next takes the head of the queue and marks it in flight. An empty queue clears the flag.
func (o *observer) next() (tradegate.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		o.inFlight = false
		return tradegate.Message{}, false
	}
	msg := o.queue[0]
	o.queue[0] = tradegate.Message{}
	o.queue = o.queue[1:]
	o.inFlight = true
	return msg, true
}

func (o *observer) pump() {
	for {
		msg, ok := o.next()
		if !ok {
			select {
			case <-o.signal:
				continue
			case <-o.done:
				return
			}
		}
		select {
		case o.ch <- msg:
		case <-o.done:
			return
		}
	}
}

func (o *observer) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Dispatcher fans relay events out to registered channels. Publish never blocks the caller and
// every observer sees messages in publish order.
type Dispatcher struct {
	sync.RWMutex
	queueSize int
	observers map[tradegate.MessageChan]*observer
	closed    bool
}

func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultObserverQueueSize
	}
	return &Dispatcher{
		queueSize: queueSize,
		observers: make(map[tradegate.MessageChan]*observer),
	}
}

// Register adds ch for messages of type t. A channel registered for several types shares one queue.
func (d *Dispatcher) Register(t tradegate.MessageType, ch tradegate.MessageChan) {
	if ch == nil {
		return
	}
	d.Lock()
	defer d.Unlock()
	if d.closed {
		return
	}
	o, ok := d.observers[ch]
	if !ok {
		o = newObserver(ch, d.queueSize)
		d.observers[ch] = o
	}
	o.kinds.Add(t)
}

func (d *Dispatcher) UnRegister(t tradegate.MessageType, ch tradegate.MessageChan) {
	d.Lock()
	defer d.Unlock()
	o, ok := d.observers[ch]
	if !ok {
		return
	}
	o.kinds.Remove(t)
	if o.kinds.Cardinality() == 0 {
		close(o.done)
		delete(d.observers, ch)
	}
}

func (d *Dispatcher) Publish(msg tradegate.Message) {
	d.RLock()
	defer d.RUnlock()
	for _, o := range d.observers {
		if o.kinds.Contains(msg.Type) {
			o.push(msg)
		}
	}
}

// Dropped reports how many messages ch lost because both the channel and its queue were full.
func (d *Dispatcher) Dropped(ch tradegate.MessageChan) uint64 {
	d.RLock()
	defer d.RUnlock()
	if o, ok := d.observers[ch]; ok {
		return o.Dropped()
	}
	return 0
}

// Close stops every pump. Channels belong to the callers and are left open.
func (d *Dispatcher) Close() {
	d.Lock()
	defer d.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for ch, o := range d.observers {
		close(o.done)
		delete(d.observers, ch)
	}
}
