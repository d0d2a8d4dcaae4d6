// Package comms provides the message transport substrate for the
// coordination layer: typed channels with per-recipient priority queues,
// filtered subscriptions, and the middleware protocols built on top.
package comms

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/pkg/models"
)

// ChannelType identifies a transport variant.
type ChannelType string

const (
	// ChannelHierarchical carries vertical traffic between decision levels.
	ChannelHierarchical ChannelType = "hierarchical"
	// ChannelCollaboration carries peer-to-peer broadcasts between workers.
	ChannelCollaboration ChannelType = "collaboration"
	// ChannelData carries bulk artifacts via the versioned data store.
	ChannelData ChannelType = "data"
	// ChannelNegotiation carries multi-round negotiation exchanges.
	ChannelNegotiation ChannelType = "negotiation"
	// ChannelFeedback carries quality feedback between levels.
	ChannelFeedback ChannelType = "feedback"
	// ChannelControl carries system control traffic (acks, pause, shutdown).
	ChannelControl ChannelType = "control"
)

// Handler processes a message delivered to a callback subscriber.
type Handler func(msg *models.Message)

// Channel is a typed message transport with per-recipient queuing and
// subscription-based fan-out.
type Channel interface {
	// ID returns the channel's logical name.
	ID() string
	// Type returns the channel variant.
	Type() ChannelType

	// Send delivers a message. Addressed messages go to the recipient's
	// queue; broadcasts are evaluated against every live subscription's
	// filter. Fails only on capacity exhaustion, closed channel, or a
	// malformed message; it never silently drops.
	Send(msg *models.Message) error

	// Receive blocks until a message for recipientID arrives or the
	// context is cancelled. A timeout or cancellation returns (nil, nil);
	// no queued message is lost. A closed channel returns ErrChannelClosed.
	Receive(ctx context.Context, recipientID string) (*models.Message, error)

	// PendingMessages returns up to max queued messages for recipientID
	// without dequeuing them. max <= 0 means all.
	PendingMessages(recipientID string, max int) []*models.Message

	// Subscribe registers a subscription. A nil handler makes a polling
	// subscriber: matching broadcasts are enqueued under subscriberID
	// for later Receive calls. Returns the subscription ID.
	Subscribe(subscriberID string, handler Handler, filter *Filter) string

	// Unsubscribe removes a subscription. Returns false if unknown.
	Unsubscribe(subID string) bool

	// Close shuts the channel down. Blocked receivers are released with
	// ErrChannelClosed.
	Close()
}

// subscription pairs an optional callback with a filter.
type subscription struct {
	subscriberID string
	handler      Handler
	filter       *Filter
}

// waiter is a blocked Receive call. Its channel has capacity one so a
// sender can hand off without blocking.
type waiter struct {
	ch chan *models.Message
}

// QueueChannel is the core channel implementation: a bounded
// per-recipient priority queue (highest priority first, FIFO within a
// class) plus a subscriber table for broadcast fan-out. All channel
// variants except the data channel are QueueChannels distinguished by
// their type.
type QueueChannel struct {
	id       string
	ctype    ChannelType
	capacity int
	logger   *logging.Logger

	mu      sync.Mutex
	queues  map[string][]*models.Message
	waiters map[string][]*waiter
	subs    map[string]*subscription
	closed  bool
	done    chan struct{}
}

// NewChannel creates a channel of the given type. capacity bounds each
// recipient's queue; zero means unbounded.
func NewChannel(id string, ctype ChannelType, capacity int) *QueueChannel {
	return &QueueChannel{
		id:       id,
		ctype:    ctype,
		capacity: capacity,
		queues:   make(map[string][]*models.Message),
		waiters:  make(map[string][]*waiter),
		subs:     make(map[string]*subscription),
		done:     make(chan struct{}),
	}
}

// SetLogger attaches a logger for dropped-message traces. The middleware
// sets this when the channel is registered.
func (c *QueueChannel) SetLogger(logger *logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// ID returns the channel's logical name.
func (c *QueueChannel) ID() string { return c.id }

// Type returns the channel variant.
func (c *QueueChannel) Type() ChannelType { return c.ctype }

// Send delivers a message to its recipient's queue, or fans a broadcast
// out to all matching subscribers. Callback subscribers are invoked
// synchronously, outside the channel lock.
func (c *QueueChannel) Send(msg *models.Message) error {
	if msg == nil || !msg.Type.Valid() || msg.Sender == "" {
		return ErrInvalidMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}

	if !msg.IsBroadcast() {
		err := c.deliverLocked(msg.Recipient, msg)
		c.mu.Unlock()
		return err
	}

	// Broadcast: match every live subscription. Polling subscribers are
	// enqueued under the lock; callbacks run after it is released.
	var callbacks []Handler
	for _, sub := range c.subs {
		if !sub.filter.Matches(msg) {
			continue
		}
		if sub.handler != nil {
			callbacks = append(callbacks, sub.handler)
			continue
		}
		// Queue overflow on one subscriber must not starve the others,
		// but the drop has to leave a trace.
		if err := c.deliverLocked(sub.subscriberID, msg); err != nil {
			c.logger.Log("COMMS", "Broadcast %s on %s dropped for %s: %v",
				msg.ID, c.id, sub.subscriberID, err)
		}
	}
	c.mu.Unlock()

	for _, h := range callbacks {
		h(msg)
	}
	return nil
}

// deliverLocked hands a message to a blocked receiver if one is waiting,
// otherwise enqueues it in priority order. Caller holds the lock.
func (c *QueueChannel) deliverLocked(recipientID string, msg *models.Message) error {
	if ws := c.waiters[recipientID]; len(ws) > 0 {
		w := ws[0]
		c.waiters[recipientID] = ws[1:]
		w.ch <- msg
		return nil
	}

	q := c.queues[recipientID]
	if c.capacity > 0 && len(q) >= c.capacity {
		return ErrChannelFull
	}
	c.queues[recipientID] = insertByPriority(q, msg, false)
	return nil
}

// insertByPriority inserts msg into a queue sorted by descending
// priority. front places the message at the head of its priority class
// (used when requeueing after a cancelled handoff); otherwise it goes to
// the back of its class, preserving FIFO order.
func insertByPriority(q []*models.Message, msg *models.Message, front bool) []*models.Message {
	idx := len(q)
	for i, m := range q {
		if front {
			if m.Priority <= msg.Priority {
				idx = i
				break
			}
		} else {
			if m.Priority < msg.Priority {
				idx = i
				break
			}
		}
	}
	q = append(q, nil)
	copy(q[idx+1:], q[idx:])
	q[idx] = msg
	return q
}

// Receive blocks until a message for recipientID arrives, the context is
// cancelled, or the channel closes.
func (c *QueueChannel) Receive(ctx context.Context, recipientID string) (*models.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if q := c.queues[recipientID]; len(q) > 0 {
		msg := q[0]
		c.queues[recipientID] = q[1:]
		c.mu.Unlock()
		return msg, nil
	}

	w := &waiter{ch: make(chan *models.Message, 1)}
	c.waiters[recipientID] = append(c.waiters[recipientID], w)
	c.mu.Unlock()

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-c.done:
		c.abandonWaiter(recipientID, w)
		return nil, ErrChannelClosed
	case <-ctx.Done():
		c.abandonWaiter(recipientID, w)
		return nil, nil
	}
}

// abandonWaiter removes a waiter after cancellation. A message handed
// off concurrently is requeued at the head of its priority class so it
// is not lost and stays next in line.
func (c *QueueChannel) abandonWaiter(recipientID string, w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.waiters[recipientID]
	for i, cand := range ws {
		if cand == w {
			c.waiters[recipientID] = append(ws[:i], ws[i+1:]...)
			break
		}
	}

	select {
	case msg := <-w.ch:
		// Hand off to the next blocked receiver if there is one, else
		// requeue at the head of the message's priority class.
		if ws := c.waiters[recipientID]; len(ws) > 0 {
			next := ws[0]
			c.waiters[recipientID] = ws[1:]
			next.ch <- msg
			return
		}
		c.queues[recipientID] = insertByPriority(c.queues[recipientID], msg, true)
	default:
	}
}

// PendingMessages returns up to max queued messages for recipientID
// without consuming them.
func (c *QueueChannel) PendingMessages(recipientID string, max int) []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[recipientID]
	if max <= 0 || max > len(q) {
		max = len(q)
	}
	out := make([]*models.Message, max)
	copy(out, q[:max])
	return out
}

// Subscribe registers a subscription and returns its ID.
func (c *QueueChannel) Subscribe(subscriberID string, handler Handler, filter *Filter) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	subID := uuid.NewString()
	c.subs[subID] = &subscription{
		subscriberID: subscriberID,
		handler:      handler,
		filter:       filter,
	}
	return subID
}

// Unsubscribe removes a subscription. Returns false if the ID is unknown.
func (c *QueueChannel) Unsubscribe(subID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[subID]; !ok {
		return false
	}
	delete(c.subs, subID)
	return true
}

// Close shuts the channel down and releases blocked receivers.
func (c *QueueChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
