package comms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/pkg/models"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	m := NewMiddleware(logging.Nop())
	for _, ctype := range []ChannelType{
		ChannelHierarchical,
		ChannelCollaboration,
		ChannelNegotiation,
		ChannelFeedback,
		ChannelControl,
	} {
		m.RegisterChannel(NewChannel(string(ctype), ctype, 100))
	}
	m.RegisterChannel(NewDataChannel(string(ChannelData), 100))
	t.Cleanup(m.Close)
	return m
}

func TestMiddlewareRoutesByType(t *testing.T) {
	m := newTestMiddleware(t)

	cmd := models.NewMessage(models.MessageCommand, "tactical", models.LevelTactical, "worker-1", nil)
	if err := m.Route(cmd); err != nil {
		t.Fatalf("route command: %v", err)
	}

	got, err := m.Receive(context.Background(), ChannelHierarchical, "worker-1")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.ID != cmd.ID {
		t.Errorf("command not routed to hierarchical channel")
	}
}

func TestMiddlewareExplicitChannelWins(t *testing.T) {
	m := newTestMiddleware(t)

	msg := models.NewMessage(models.MessageCommand, "a", models.LevelTactical, "r", nil).
		WithChannel(string(ChannelNegotiation))
	if err := m.Route(msg); err != nil {
		t.Fatalf("route: %v", err)
	}

	if got, _ := m.Receive(context.Background(), ChannelNegotiation, "r"); got == nil || got.ID != msg.ID {
		t.Error("explicit channel name must override the type route")
	}
}

func TestMiddlewareNoRoute(t *testing.T) {
	m := NewMiddleware(logging.Nop())
	// No channels registered at all.
	msg := models.NewMessage(models.MessageCommand, "a", models.LevelTactical, "r", nil)
	if err := m.Route(msg); !errors.Is(err, ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}

	unknown := models.NewMessage(models.MessageCommand, "a", models.LevelTactical, "r", nil).
		WithChannel("nonexistent")
	if err := m.Route(unknown); !errors.Is(err, ErrNoRoute) {
		t.Errorf("expected ErrNoRoute for unknown channel name, got %v", err)
	}
}

func TestMiddlewareRequestResponse(t *testing.T) {
	m := newTestMiddleware(t)

	// Responder: receive the request and answer it.
	go func() {
		req, err := m.Receive(context.Background(), ChannelHierarchical, "responder")
		if err != nil || req == nil {
			return
		}
		resp := req.NewResponse("responder", models.LevelOperational, map[string]any{"answer": 42})
		m.Route(resp)
	}()

	resp, err := m.SendRequest(context.Background(), "requester", models.LevelTactical, "responder", "compute", nil, RequestOptions{
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response, got timeout")
	}
	if resp.Content["answer"] != 42 {
		t.Errorf("expected answer 42, got %v", resp.Content["answer"])
	}
	if resp.ConversationID() == "" {
		t.Error("response must carry the conversation ID")
	}
}

func TestMiddlewareRequestTimeout(t *testing.T) {
	m := newTestMiddleware(t)

	resp, err := m.SendRequest(context.Background(), "requester", models.LevelTactical, "nobody", "ping", nil, RequestOptions{
		Timeout: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response on timeout, got %v", resp)
	}

	// The request itself stays delivered.
	if got, _ := m.Receive(context.Background(), ChannelHierarchical, "nobody"); got == nil {
		t.Error("request was lost on timeout")
	}
}

func TestMiddlewareRequestAsync(t *testing.T) {
	m := newTestMiddleware(t)

	go func() {
		req, err := m.Receive(context.Background(), ChannelHierarchical, "responder")
		if err != nil || req == nil {
			return
		}
		m.Route(req.NewResponse("responder", models.LevelOperational, map[string]any{"ok": true}))
	}()

	result := m.SendRequestAsync(context.Background(), "requester", models.LevelTactical, "responder", "check", nil, RequestOptions{
		Timeout: 2 * time.Second,
	})

	select {
	case resp, ok := <-result:
		if !ok || resp == nil {
			t.Fatal("expected async response")
		}
		if resp.Content["ok"] != true {
			t.Errorf("unexpected content: %v", resp.Content)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("async result never arrived")
	}
}

func TestMiddlewareAutoAck(t *testing.T) {
	m := newTestMiddleware(t)

	msg := models.NewMessage(models.MessageCommand, "tactical", models.LevelTactical, "worker-1", nil).
		WithMetadata(models.MetaRequiresAck, true)
	if err := m.Route(msg); err != nil {
		t.Fatalf("route: %v", err)
	}

	ack, err := m.Receive(context.Background(), ChannelControl, "tactical")
	if err != nil {
		t.Fatalf("receive ack: %v", err)
	}
	if ack.Type != models.MessageControl {
		t.Errorf("expected control ack, got %s", ack.Type)
	}
	if !ack.IsResponseTo(msg.ID) {
		t.Error("ack must reference the acknowledged message")
	}
}

func TestMiddlewareRejectsOperationalControl(t *testing.T) {
	m := newTestMiddleware(t)

	forged := models.NewMessage(models.MessageControl, "worker-1", models.LevelOperational, "coordinator", map[string]any{
		"control_type": "shutdown",
	})
	if err := m.Route(forged); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if got, _ := m.Receive(ctx, ChannelControl, "coordinator"); got != nil {
		t.Error("rejected control message must not be delivered")
	}

	// Coordination-level control traffic passes.
	pause := models.NewMessage(models.MessageControl, "coordinator", models.LevelTactical, "worker-1", map[string]any{
		"control_type": "pause",
	})
	if err := m.Route(pause); err != nil {
		t.Fatalf("tactical control message rejected: %v", err)
	}
}

func TestMiddlewarePublishSubscribe(t *testing.T) {
	m := newTestMiddleware(t)

	var mu sync.Mutex
	var callbackGot []*models.Message
	m.SubscribeTopic("findings", "cb-sub", func(msg *models.Message) {
		mu.Lock()
		callbackGot = append(callbackGot, msg)
		mu.Unlock()
	}, nil)
	pollSub := m.SubscribeTopic("findings", "poll-sub", nil, nil)
	m.SubscribeTopic("other-topic", "other-sub", nil, nil)

	n := m.Publish("findings", "worker-1", models.LevelOperational, map[string]any{"finding": "x"}, models.PriorityNormal)
	if n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}

	mu.Lock()
	if len(callbackGot) != 1 {
		t.Fatalf("callback expected 1 publication, got %d", len(callbackGot))
	}
	if callbackGot[0].Content["topic"] != "findings" {
		t.Errorf("publication must carry its topic")
	}
	mu.Unlock()

	got, err := m.Receive(context.Background(), ChannelCollaboration, "poll-sub")
	if err != nil || got == nil {
		t.Fatalf("polling subscriber receive: (%v, %v)", got, err)
	}
	if got.Content["finding"] != "x" {
		t.Errorf("unexpected publication content: %v", got.Content)
	}

	// Unsubscribed subscribers stop receiving.
	if !m.UnsubscribeTopic(pollSub) {
		t.Fatal("unsubscribe failed")
	}
	if n := m.Publish("findings", "worker-1", models.LevelOperational, nil, models.PriorityLow); n != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", n)
	}
}

func TestMiddlewareBindRoute(t *testing.T) {
	m := newTestMiddleware(t)
	m.BindRoute(models.MessageInformation, ChannelFeedback)

	msg := models.NewMessage(models.MessageInformation, "a", models.LevelOperational, "r", nil)
	if err := m.Route(msg); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got, _ := m.Receive(context.Background(), ChannelFeedback, "r"); got == nil || got.ID != msg.ID {
		t.Error("rebound route not honored")
	}
}
