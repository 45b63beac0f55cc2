// Package conversation holds the ordered turn log of a chat session.
package conversation

import "sync"

// Role tags a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn. It is a value type; once appended it never changes.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User returns a user turn.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant turn.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// History is an append-only, ordered log of messages. Insertion order is turn
// order. It does not enforce User/Assistant alternation and never drops
// entries; windowing is the caller's concern.
type History struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewHistory returns an empty history.
func NewHistory() *History { return &History{} }

// Append adds m at the end.
func (h *History) Append(m Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, m)
	h.mu.Unlock()
}

// Last returns the most recently appended message.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}

// Len reports the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

// Messages returns a copy of the log in turn order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}
