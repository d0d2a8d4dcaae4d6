package comms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/pkg/models"
)

// middlewareSender identifies traffic the middleware originates itself
// (acknowledgements).
const middlewareSender = "middleware"

// topicSub is one subscription to a published topic.
type topicSub struct {
	topicID      string
	subscriberID string
	handler      Handler
	filter       *Filter
}

// Middleware is the single entry point of the transport layer. It
// registers channels by type, routes outgoing messages, and layers two
// cross-channel protocols on top: topic publish/subscribe and correlated
// request/response.
type Middleware struct {
	mu       sync.RWMutex
	channels map[ChannelType]Channel
	byName   map[string]Channel
	routes   map[models.MessageType]ChannelType
	topics   map[string]*topicSub
	pending  map[string]chan *models.Message

	logger *logging.Logger
}

// NewMiddleware creates a middleware with the default type routing
// table. Channels still have to be registered before traffic flows.
func NewMiddleware(logger *logging.Logger) *Middleware {
	return &Middleware{
		channels: make(map[ChannelType]Channel),
		byName:   make(map[string]Channel),
		routes: map[models.MessageType]ChannelType{
			models.MessageCommand:      ChannelHierarchical,
			models.MessageInformation:  ChannelHierarchical,
			models.MessageRequest:      ChannelHierarchical,
			models.MessageResponse:     ChannelHierarchical,
			models.MessageEvent:        ChannelCollaboration,
			models.MessagePublication:  ChannelCollaboration,
			models.MessageSubscription: ChannelCollaboration,
			models.MessageControl:      ChannelControl,
		},
		topics:  make(map[string]*topicSub),
		pending: make(map[string]chan *models.Message),
		logger:  logger,
	}
}

// RegisterChannel makes a channel available for routing, both by type
// and by its logical name. Queue channels inherit the middleware's
// logger so dropped broadcasts show up in the coordination log.
func (m *Middleware) RegisterChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qc, ok := ch.(*QueueChannel); ok {
		qc.SetLogger(m.logger)
	}
	m.channels[ch.Type()] = ch
	m.byName[ch.ID()] = ch
}

// BindRoute binds a message type to a channel type, overriding the
// default routing table.
func (m *Middleware) BindRoute(typ models.MessageType, ctype ChannelType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[typ] = ctype
}

// Channel returns the channel registered for the given type, or nil.
func (m *Middleware) Channel(ctype ChannelType) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[ctype]
}

// resolve picks the channel for a message: an explicit channel name
// wins, otherwise the routing table decides by message type.
func (m *Middleware) resolve(msg *models.Message) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if msg.Channel != "" {
		if ch, ok := m.byName[msg.Channel]; ok {
			return ch
		}
		return nil
	}
	if ctype, ok := m.routes[msg.Type]; ok {
		return m.channels[ctype]
	}
	return nil
}

// Route sends a message through the channel it belongs on. Responses
// that answer an in-flight request are delivered straight to the waiting
// caller instead of the recipient queue.
func (m *Middleware) Route(msg *models.Message) error {
	if msg == nil || !msg.Type.Valid() || msg.Sender == "" {
		return ErrInvalidMessage
	}

	// The control channel is reserved for system and coordination-level
	// traffic; workers cannot inject pause/shutdown/ack messages.
	if msg.Type == models.MessageControl && msg.SenderLevel == models.LevelOperational {
		m.logger.Log("COMMS", "control message %s from operational sender %s rejected", msg.ID, msg.Sender)
		return ErrUnauthorized
	}

	if msg.Type == models.MessageResponse {
		if m.settlePending(msg) {
			return nil
		}
	}

	ch := m.resolve(msg)
	if ch == nil {
		m.logger.Log("COMMS", "no route for message %s (type=%s channel=%q)", msg.ID, msg.Type, msg.Channel)
		return ErrNoRoute
	}

	if err := ch.Send(msg); err != nil {
		return err
	}

	// Delivery acknowledgement for messages that ask for one.
	if msg.RequiresAck() && msg.Type != models.MessageControl {
		if ctrl := m.Channel(ChannelControl); ctrl != nil {
			_ = ctrl.Send(msg.NewAck(middlewareSender, models.LevelSystem))
		}
	}
	return nil
}

// settlePending hands a response to the caller blocked in SendRequest,
// if any. Returns true when the response was consumed.
func (m *Middleware) settlePending(resp *models.Message) bool {
	replyTo, ok := resp.Metadata[models.MetaReplyTo].(string)
	if !ok || replyTo == "" {
		return false
	}

	m.mu.Lock()
	waiter, ok := m.pending[replyTo]
	if ok {
		delete(m.pending, replyTo)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	waiter <- resp
	return true
}

// Receive blocks on the channel of the given type for the recipient.
// Timeout and cancellation return (nil, nil), exactly like Channel.Receive.
func (m *Middleware) Receive(ctx context.Context, ctype ChannelType, recipientID string) (*models.Message, error) {
	ch := m.Channel(ctype)
	if ch == nil {
		return nil, ErrNoRoute
	}
	return ch.Receive(ctx, recipientID)
}

// SubscribeTopic registers a subscriber for a published topic. A nil
// handler makes a polling subscriber whose matches are enqueued on the
// publication channel under subscriberID.
func (m *Middleware) SubscribeTopic(topicID, subscriberID string, handler Handler, filter *Filter) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	subID := uuid.NewString()
	m.topics[subID] = &topicSub{
		topicID:      topicID,
		subscriberID: subscriberID,
		handler:      handler,
		filter:       filter,
	}
	return subID
}

// UnsubscribeTopic removes a topic subscription. Returns false if unknown.
func (m *Middleware) UnsubscribeTopic(subID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.topics[subID]; !ok {
		return false
	}
	delete(m.topics, subID)
	return true
}

// Publish fans a publication out to every subscriber of the topic.
// Callback subscribers are invoked synchronously; polling subscribers
// get the message enqueued for them on the publication channel.
// Returns the number of subscribers that received the publication.
func (m *Middleware) Publish(topicID, sender string, level models.AgentLevel, content map[string]any, priority models.Priority) int {
	payload := map[string]any{"topic": topicID}
	for k, v := range content {
		payload[k] = v
	}
	msg := models.NewMessage(models.MessagePublication, sender, level, "", payload).WithPriority(priority)

	m.mu.RLock()
	var callbacks []Handler
	var polling []string
	for _, sub := range m.topics {
		if sub.topicID != topicID || !sub.filter.Matches(msg) {
			continue
		}
		if sub.handler != nil {
			callbacks = append(callbacks, sub.handler)
		} else {
			polling = append(polling, sub.subscriberID)
		}
	}
	pubChannel := m.channels[m.routes[models.MessagePublication]]
	m.mu.RUnlock()

	for _, h := range callbacks {
		h(msg)
	}

	delivered := len(callbacks)
	if pubChannel != nil {
		for _, subscriberID := range polling {
			clone := *msg
			clone.Recipient = subscriberID
			if err := pubChannel.Send(&clone); err != nil {
				m.logger.Log("COMMS", "publish %s: enqueue for %s failed: %v", topicID, subscriberID, err)
				continue
			}
			delivered++
		}
	}
	return delivered
}

// RequestOptions configures SendRequest.
type RequestOptions struct {
	// Timeout bounds the wait for the response. Zero means wait until
	// the context is cancelled.
	Timeout time.Duration
	// Priority applies to the outgoing request.
	Priority models.Priority
	// Channel optionally names an explicit channel for the request.
	Channel string
}

// SendRequest sends a request carrying a fresh conversation ID and
// blocks until the correlated response arrives or the wait expires.
// Timeout and cancellation return (nil, nil); the request stays
// delivered. Transport failures return the underlying error.
func (m *Middleware) SendRequest(ctx context.Context, sender string, level models.AgentLevel, recipient, requestType string, content map[string]any, opts RequestOptions) (*models.Message, error) {
	payload := map[string]any{"request_type": requestType}
	for k, v := range content {
		payload[k] = v
	}

	req := models.NewMessage(models.MessageRequest, sender, level, recipient, payload).
		WithPriority(opts.Priority).
		WithMetadata(models.MetaConversationID, uuid.NewString())
	if opts.Channel != "" {
		req = req.WithChannel(opts.Channel)
	}

	waiter := make(chan *models.Message, 1)
	m.mu.Lock()
	m.pending[req.ID] = waiter
	m.mu.Unlock()

	cleanup := func() {
		m.mu.Lock()
		delete(m.pending, req.ID)
		m.mu.Unlock()
	}

	if err := m.Route(req); err != nil {
		cleanup()
		return nil, err
	}

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-waiter:
		return resp, nil
	case <-timeout:
		cleanup()
		return nil, nil
	case <-ctx.Done():
		cleanup()
		return nil, nil
	}
}

// SendRequestAsync is the cooperative variant of SendRequest: it returns
// immediately with a result channel that yields the response (or nil on
// timeout) once. It is a thin adapter over the same blocking primitive,
// so ordering and timeout semantics are identical.
func (m *Middleware) SendRequestAsync(ctx context.Context, sender string, level models.AgentLevel, recipient, requestType string, content map[string]any, opts RequestOptions) <-chan *models.Message {
	result := make(chan *models.Message, 1)
	go func() {
		defer close(result)
		resp, err := m.SendRequest(ctx, sender, level, recipient, requestType, content, opts)
		if err != nil {
			m.logger.Log("COMMS", "async request from %s to %s failed: %v", sender, recipient, err)
			return
		}
		if resp != nil {
			result <- resp
		}
	}()
	return result
}

// Close shuts down every registered channel.
func (m *Middleware) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		ch.Close()
	}
}
