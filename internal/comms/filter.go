package comms

import (
	"strings"

	"github.com/concordlabs/concord/pkg/models"
)

// Filter selects which broadcast messages a subscription receives.
// Every populated field must match; an empty filter matches everything.
// Slice fields are set-membership checks, Content is equality (or
// membership when the expected value is a slice) on dotted keys under
// the message content, e.g. "command_type" or "report.kind".
type Filter struct {
	Types        []models.MessageType
	Senders      []string
	SenderLevels []models.AgentLevel
	Priorities   []models.Priority
	Content      map[string]any
}

// Matches reports whether the message passes the filter.
// A nil filter matches everything.
func (f *Filter) Matches(msg *models.Message) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 && !containsType(f.Types, msg.Type) {
		return false
	}
	if len(f.Senders) > 0 && !containsString(f.Senders, msg.Sender) {
		return false
	}
	if len(f.SenderLevels) > 0 && !containsLevel(f.SenderLevels, msg.SenderLevel) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, msg.Priority) {
		return false
	}
	for key, want := range f.Content {
		got, ok := lookupContent(msg.Content, key)
		if !ok {
			return false
		}
		if !valueMatches(want, got) {
			return false
		}
	}
	return true
}

// lookupContent resolves a dotted key path inside a nested content map.
func lookupContent(content map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = content
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// valueMatches compares an expected filter value to an actual content
// value. A slice expectation means set membership.
func valueMatches(want, got any) bool {
	if wants, ok := want.([]any); ok {
		for _, w := range wants {
			if w == got {
				return true
			}
		}
		return false
	}
	if wants, ok := want.([]string); ok {
		for _, w := range wants {
			if w == got {
				return true
			}
		}
		return false
	}
	return want == got
}

func containsType(xs []models.MessageType, x models.MessageType) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsLevel(xs []models.AgentLevel, x models.AgentLevel) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsPriority(xs []models.Priority, x models.Priority) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
