package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of inter-agent message.
type MessageType string

const (
	// MessageCommand carries a directive from a higher level to a lower one.
	MessageCommand MessageType = "command"
	// MessageInformation carries a report or status update.
	MessageInformation MessageType = "information"
	// MessageRequest expects a correlated response.
	MessageRequest MessageType = "request"
	// MessageResponse answers a request.
	MessageResponse MessageType = "response"
	// MessageEvent announces something that happened.
	MessageEvent MessageType = "event"
	// MessageControl carries system control traffic (acks, shutdown, pause).
	MessageControl MessageType = "control"
	// MessagePublication is a topic publication.
	MessagePublication MessageType = "publication"
	// MessageSubscription is a topic subscription notice.
	MessageSubscription MessageType = "subscription"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case MessageCommand, MessageInformation, MessageRequest, MessageResponse,
		MessageEvent, MessageControl, MessagePublication, MessageSubscription:
		return true
	default:
		return false
	}
}

// AgentLevel is the decision level a sender operates at.
type AgentLevel string

const (
	LevelStrategic   AgentLevel = "strategic"
	LevelTactical    AgentLevel = "tactical"
	LevelOperational AgentLevel = "operational"
	LevelSystem      AgentLevel = "system"
)

// Priority determines delivery ordering within a recipient's queue.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Reserved metadata keys. Everything else in Metadata is free-form.
const (
	// MetaReplyTo correlates a response to the ID of the message it answers.
	MetaReplyTo = "reply_to"
	// MetaConversationID groups the messages of one dialogue.
	MetaConversationID = "conversation_id"
	// MetaRequiresAck asks the receiving side to send an acknowledgement.
	MetaRequiresAck = "requires_ack"
)

// Message is an immutable unit of communication between agents.
// Derived messages (responses, acks) are new instances that copy
// correlation metadata; nothing mutates a Message after construction.
type Message struct {
	// ID is unique, generated from the type plus a random suffix.
	ID string `json:"id"`
	// Type is the kind of message.
	Type MessageType `json:"type"`
	// Sender is the originating agent identifier.
	Sender string `json:"sender"`
	// SenderLevel is the decision level of the sender.
	SenderLevel AgentLevel `json:"sender_level"`
	// Recipient is the target agent. Empty means broadcast.
	Recipient string `json:"recipient,omitempty"`
	// Channel is the logical channel name. May be inferred from Type.
	Channel string `json:"channel,omitempty"`
	// Priority orders delivery within a recipient's queue.
	Priority Priority `json:"priority"`
	// Content is the structured payload. Its semantics depend on Type.
	Content map[string]any `json:"content,omitempty"`
	// Metadata holds correlation keys and free-form annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp is the creation instant.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage constructs a message with a fresh ID and timestamp.
func NewMessage(typ MessageType, sender string, level AgentLevel, recipient string, content map[string]any) *Message {
	return &Message{
		ID:          newMessageID(typ),
		Type:        typ,
		Sender:      sender,
		SenderLevel: level,
		Recipient:   recipient,
		Priority:    PriorityNormal,
		Content:     content,
		Metadata:    map[string]any{},
		Timestamp:   time.Now().UTC(),
	}
}

// newMessageID builds an ID of the form "<type>-<uuid>".
func newMessageID(typ MessageType) string {
	return fmt.Sprintf("%s-%s", typ, uuid.NewString())
}

// WithPriority returns a copy of the message with the given priority.
func (m *Message) WithPriority(p Priority) *Message {
	c := *m
	c.Priority = p
	return &c
}

// WithChannel returns a copy of the message with an explicit channel name.
func (m *Message) WithChannel(channel string) *Message {
	c := *m
	c.Channel = channel
	return &c
}

// WithMetadata returns a copy of the message with an extra metadata entry.
func (m *Message) WithMetadata(key string, value any) *Message {
	c := *m
	c.Metadata = make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		c.Metadata[k] = v
	}
	c.Metadata[key] = value
	return &c
}

// NewResponse builds a response to this message. The response copies the
// conversation ID and sets reply_to to this message's ID so that
// IsResponseTo is decidable by pure inspection.
func (m *Message) NewResponse(sender string, level AgentLevel, content map[string]any) *Message {
	resp := NewMessage(MessageResponse, sender, level, m.Sender, content)
	resp.Channel = m.Channel
	resp.Priority = m.Priority
	resp.Metadata[MetaReplyTo] = m.ID
	if conv, ok := m.Metadata[MetaConversationID]; ok {
		resp.Metadata[MetaConversationID] = conv
	}
	return resp
}

// NewAck builds a control acknowledgement for this message.
func (m *Message) NewAck(sender string, level AgentLevel) *Message {
	ack := NewMessage(MessageControl, sender, level, m.Sender, map[string]any{
		"acknowledged": m.ID,
	})
	ack.Metadata[MetaReplyTo] = m.ID
	if conv, ok := m.Metadata[MetaConversationID]; ok {
		ack.Metadata[MetaConversationID] = conv
	}
	return ack
}

// IsResponseTo reports whether this message answers the message with the
// given ID.
func (m *Message) IsResponseTo(id string) bool {
	replyTo, ok := m.Metadata[MetaReplyTo]
	if !ok {
		return false
	}
	s, ok := replyTo.(string)
	return ok && s == id
}

// ConversationID returns the conversation this message belongs to, if any.
func (m *Message) ConversationID() string {
	if conv, ok := m.Metadata[MetaConversationID].(string); ok {
		return conv
	}
	return ""
}

// RequiresAck reports whether the sender asked for an acknowledgement.
func (m *Message) RequiresAck() bool {
	v, ok := m.Metadata[MetaRequiresAck].(bool)
	return ok && v
}

// IsBroadcast reports whether the message has no specific recipient.
func (m *Message) IsBroadcast() bool {
	return m.Recipient == ""
}
