package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/model/persona"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrTurnInFlight = errors.New("an assistant reply is still in flight")
)

// Conversation is the visible transcript of one session. The system prompt is
// never stored here; it is prepended per request by BuildRequestTranscript.
//
// Every Reset or Clear starts a new epoch. Handles from an older epoch are
// stale and can no longer write to the transcript.
type Conversation struct {
	mu      sync.Mutex
	turns   []chat.Turn
	epoch   uint64
	pending int // index of the incomplete assistant turn, -1 when none
}

// NewConversation returns an empty transcript.
func NewConversation() *Conversation {
	return &Conversation{pending: -1}
}

// Reset replaces the transcript with the persona's greeting and returns it.
func (c *Conversation) Reset(p persona.Persona) []chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.pending = -1
	c.turns = []chat.Turn{{Role: chat.RoleAssistant, Content: p.Greeting}}
	return c.copyLocked()
}

// Clear empties the transcript without seeding a greeting.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.pending = -1
	c.turns = nil
}

// AppendUserTurn appends content verbatim. Whitespace-only content is
// rejected and leaves the transcript untouched.
func (c *Conversation) AppendUserTurn(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending >= 0 {
		return ErrTurnInFlight
	}
	c.turns = append(c.turns, chat.Turn{Role: chat.RoleUser, Content: content})
	return nil
}

// AppendAssistantPlaceholder appends an empty assistant turn and returns the
// handle that fills it in.
func (c *Conversation) AppendAssistantPlaceholder() (*TurnHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending >= 0 {
		return nil, ErrTurnInFlight
	}
	c.turns = append(c.turns, chat.Turn{Role: chat.RoleAssistant})
	c.pending = len(c.turns) - 1
	return &TurnHandle{conv: c, epoch: c.epoch, index: c.pending}, nil
}

// BuildRequestTranscript returns the persona's system turn followed by every
// visible turn except the in-flight placeholder.
func (c *Conversation) BuildRequestTranscript(p persona.Persona) []chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]chat.Turn, 0, len(c.turns)+1)
	out = append(out, chat.Turn{Role: chat.RoleSystem, Content: p.SystemPrompt})
	for i, turn := range c.turns {
		if i == c.pending {
			continue
		}
		out = append(out, turn)
	}
	return out
}

// Transcript returns a copy of the visible turns.
func (c *Conversation) Transcript() []chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *Conversation) copyLocked() []chat.Turn {
	out := make([]chat.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// TurnHandle points at the assistant turn being typed out.
type TurnHandle struct {
	conv  *Conversation
	epoch uint64
	index int
}

// Set overwrites the turn's content and returns the resulting transcript.
// It reports false, changing nothing, once the handle is stale.
func (h *TurnHandle) Set(content string) ([]chat.Turn, bool) {
	return h.write(content, false)
}

// Finalize writes the complete reply and marks the turn as no longer in flight.
func (h *TurnHandle) Finalize(content string) ([]chat.Turn, bool) {
	return h.write(content, true)
}

// Stale reports whether the conversation has been reset since the handle was issued.
func (h *TurnHandle) Stale() bool {
	h.conv.mu.Lock()
	defer h.conv.mu.Unlock()
	return h.conv.epoch != h.epoch
}

func (h *TurnHandle) write(content string, final bool) ([]chat.Turn, bool) {
	c := h.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != h.epoch || h.index >= len(c.turns) {
		return nil, false
	}
	c.turns[h.index].Content = content
	if final && c.pending == h.index {
		c.pending = -1
	}
	return c.copyLocked(), true
}
