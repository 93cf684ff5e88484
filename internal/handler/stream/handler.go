package stream

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/beacon/internal/handler/chat"
	modelchat "github.com/zhouzirui/beacon/internal/model/chat"
	chatService "github.com/zhouzirui/beacon/internal/service/chat"
	"github.com/zhouzirui/beacon/pkg/utils"
)

// Handler manages typed-out replies via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// DeltaEvent carries one typing frame.
type DeltaEvent struct {
	SessionID  string `json:"sessionId"`
	Generation uint64 `json:"generation"`
	Content    string `json:"content"`
}

// ErrorEvent reports a submit that was superseded after streaming began.
type ErrorEvent struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

// handleStream submits the message and streams the session's frames: start
// with the user turn appended, one delta per typed rune, then end with the
// final snapshot. Rejections before anything is streamed are plain JSON errors.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		chat.RespondServiceError(w, err)
		return
	}
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	started := false
	final, err := session.Submit(r.Context(), message, func(snap modelchat.Snapshot) {
		event, payload := "delta", any(nil)
		if !started {
			started = true
			event, payload = "start", snap
		} else {
			last, _ := snap.LastTurn()
			payload = DeltaEvent{SessionID: snap.SessionID, Generation: snap.Generation, Content: last.Content}
		}
		if writeErr := sse.Event(event, payload); writeErr != nil {
			log.Printf("[stream] session=%s write %s failed: %v", sessionID, event, writeErr)
		}
	})

	if err != nil {
		if !started {
			chat.RespondServiceError(w, err)
			return
		}
		_ = sse.Event("error", ErrorEvent{SessionID: sessionID, Error: err.Error()})
		log.Printf("[stream] session=%s aborted: %v", sessionID, err)
		return
	}

	if err := sse.Event("end", final); err != nil {
		log.Printf("[stream] session=%s write end failed: %v", sessionID, err)
		return
	}
	log.Printf("[stream] completed response for session=%s, persona=%s", sessionID, final.PersonaID)
}
