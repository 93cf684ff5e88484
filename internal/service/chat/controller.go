package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/model/persona"
	"github.com/zhouzirui/beacon/internal/observe"
	"github.com/zhouzirui/beacon/pkg/provider/groq"
)

var (
	ErrSessionBusy  = errors.New("session is busy with another reply")
	ErrSessionReset = errors.New("session was reset while the reply was in flight")
)

// Completer produces the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, prior []chat.Turn, message string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, systemPrompt string, prior []chat.Turn, message string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, systemPrompt string, prior []chat.Turn, message string) (string, error) {
	return f(ctx, systemPrompt, prior, message)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Personas  persona.Store
	Completer Completer
	Presenter *Presenter
	Metrics   *observe.Metrics
}

// Emitter receives every intermediate snapshot of a submit. It is called
// without any session lock held.
type Emitter func(chat.Snapshot)

// Controller drives one session: persona selection, submits and clears.
//
// A single busy token covers the completion request and the typing stream.
// Persona switches and clears bump the generation and release the token, so
// whatever the superseded submit produces afterwards is dropped.
type Controller struct {
	id   string
	deps Deps
	conv *Conversation

	mu         sync.Mutex
	persona    persona.Persona
	state      chat.State
	input      string
	generation uint64
	busy       bool
}

// NewController creates a session seeded with personaID's greeting.
func NewController(id string, deps Deps, personaID string) (*Controller, error) {
	p, err := deps.Personas.Lookup(personaID)
	if err != nil {
		return nil, err
	}
	if deps.Presenter == nil {
		deps.Presenter = NewPresenter(0)
	}

	c := &Controller{
		id:      id,
		deps:    deps,
		conv:    NewConversation(),
		persona: p,
		state:   chat.StateIdle,
	}
	c.conv.Reset(p)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() chat.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.conv.Transcript())
}

func (c *Controller) snapshotLocked(transcript []chat.Turn) chat.Snapshot {
	return chat.Snapshot{
		SessionID:  c.id,
		PersonaID:  c.persona.ID,
		Theme:      c.persona.Theme,
		State:      c.state,
		Input:      c.input,
		Generation: c.generation,
		Transcript: transcript,
	}
}

// SelectPersona switches to personaID, discarding the transcript and any
// reply in flight. Selecting the active persona again changes nothing.
func (c *Controller) SelectPersona(ctx context.Context, personaID string) (chat.Snapshot, error) {
	p, err := c.deps.Personas.Lookup(personaID)
	if err != nil {
		return chat.Snapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.ID == c.persona.ID {
		return c.snapshotLocked(c.conv.Transcript()), nil
	}

	c.state = chat.StatePersonaSwitch
	c.generation++
	c.busy = false
	c.persona = p
	transcript := c.conv.Reset(p)
	c.state = chat.StateIdle

	c.deps.Metrics.RecordPersonaSwitch(ctx, p.ID)
	log.Printf("[session] %s switched persona to %s", c.id, p.ID)
	return c.snapshotLocked(transcript), nil
}

// Clear empties the transcript, keeps the persona and aborts any reply in flight.
func (c *Controller) Clear(context.Context) chat.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.busy = false
	c.conv.Clear()
	c.state = chat.StateIdle
	return c.snapshotLocked(c.conv.Transcript())
}

// SetInput stores the draft in the input box.
func (c *Controller) SetInput(text string) chat.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input = text
	return c.snapshotLocked(c.conv.Transcript())
}

// Submit sends message and types out the reply, calling emit for the
// snapshot after the user turn is appended and for every typing frame.
//
// Failures of the completion itself become the assistant's reply. Submit
// only returns an error when the message was not accepted (ErrEmptyMessage,
// ErrSessionBusy) or when a persona switch or clear superseded it
// (ErrSessionReset).
func (c *Controller) Submit(ctx context.Context, message string, emit Emitter) (chat.Snapshot, error) {
	if emit == nil {
		emit = func(chat.Snapshot) {}
	}

	gen, p, prior, handle, started, err := c.begin(ctx, message)
	if err != nil {
		return chat.Snapshot{}, err
	}
	emit(started)

	reply, err := c.deps.Completer.Complete(ctx, p.SystemPrompt, prior, message)
	if err != nil {
		log.Printf("[session] %s completion failed: %v", c.id, err)
		reply = ErrorReply(err)
	}

	if !c.enterStreaming(gen) {
		c.deps.Metrics.RecordSubmission(ctx, observe.OutcomeSuperseded)
		return chat.Snapshot{}, ErrSessionReset
	}

	for frame := range c.deps.Presenter.Stream(ctx, reply, handle) {
		snap, ok := c.frameSnapshot(gen, frame)
		if !ok {
			break
		}
		c.deps.Metrics.RecordTypingFrame(ctx)
		emit(snap)
	}

	return c.finish(ctx, gen, handle, reply)
}

func (c *Controller) begin(ctx context.Context, message string) (uint64, persona.Persona, []chat.Turn, *TurnHandle, chat.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(message) == "" {
		c.deps.Metrics.RecordSubmission(ctx, observe.OutcomeEmpty)
		return 0, persona.Persona{}, nil, nil, chat.Snapshot{}, ErrEmptyMessage
	}
	if c.busy {
		c.deps.Metrics.RecordSubmission(ctx, observe.OutcomeBusy)
		return 0, persona.Persona{}, nil, nil, chat.Snapshot{}, ErrSessionBusy
	}

	if err := c.conv.AppendUserTurn(message); err != nil {
		return 0, persona.Persona{}, nil, nil, chat.Snapshot{}, err
	}
	handle, err := c.conv.AppendAssistantPlaceholder()
	if err != nil {
		return 0, persona.Persona{}, nil, nil, chat.Snapshot{}, err
	}

	request := c.conv.BuildRequestTranscript(c.persona)
	// request is [system, prior..., user message]
	prior := request[1 : len(request)-1]

	c.busy = true
	c.input = ""
	c.state = chat.StateAwaitingCompletion
	c.deps.Metrics.RecordSubmission(ctx, observe.OutcomeAccepted)

	return c.generation, c.persona, prior, handle, c.snapshotLocked(c.conv.Transcript()), nil
}

func (c *Controller) enterStreaming(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return false
	}
	c.state = chat.StateStreaming
	return true
}

func (c *Controller) frameSnapshot(gen uint64, frame []chat.Turn) (chat.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return chat.Snapshot{}, false
	}
	return c.snapshotLocked(frame), true
}

func (c *Controller) finish(ctx context.Context, gen uint64, handle *TurnHandle, reply string) (chat.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		c.deps.Metrics.RecordSubmission(ctx, observe.OutcomeSuperseded)
		return chat.Snapshot{}, ErrSessionReset
	}

	transcript, ok := handle.Finalize(reply)
	if !ok {
		transcript = c.conv.Transcript()
	}
	c.busy = false
	c.state = chat.StateIdle
	return c.snapshotLocked(transcript), nil
}

// ErrorReply renders a completion failure as assistant text.
func ErrorReply(err error) string {
	var completionErr *groq.CompletionError
	if errors.As(err, &completionErr) {
		return completionErr.Error()
	}
	return fmt.Sprintf("Error: %v", err)
}
