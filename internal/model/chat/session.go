package chat

import "github.com/zhouzirui/beacon/internal/model/persona"

// State is the controller phase a session is in.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingCompletion State = "awaiting_completion"
	StateStreaming          State = "streaming"
	StatePersonaSwitch      State = "persona_switch"
)

// Snapshot is the externally observable view of a session: what the
// transcript display, input box and theme sink render.
type Snapshot struct {
	SessionID  string        `json:"sessionId"`
	PersonaID  string        `json:"personaId"`
	Theme      persona.Theme `json:"theme"`
	State      State         `json:"state"`
	Input      string        `json:"input"`
	Generation uint64        `json:"generation"`
	Transcript []Turn        `json:"transcript"`
}

// LastTurn returns the final transcript entry, if any.
func (s Snapshot) LastTurn() (Turn, bool) {
	if len(s.Transcript) == 0 {
		return Turn{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}
