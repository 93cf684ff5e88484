package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/model/persona"
	chatservice "github.com/zhouzirui/beacon/internal/service/chat"
)

type sseEvent struct {
	name string
	data string
}

func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func setup(t *testing.T, completer chatservice.Completer) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc, err := chatservice.NewService(chatservice.Deps{
		Personas:  persona.NewRegistry(persona.Seed()),
		Completer: completer,
	}, "ARK")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func reply(text string) chatservice.CompleterFunc {
	return func(context.Context, string, []modelchat.Turn, string) (string, error) {
		return text, nil
	}
}

func streamPath(id, message string) string {
	return "/stream/" + id + "?message=" + url.QueryEscape(message)
}

func TestStreamEmitsStartDeltasEnd(t *testing.T) {
	r, svc := setup(t, reply("You are safe."))
	session, err := svc.CreateSession(context.Background(), "RAY")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath(session.ID(), "I'm scared"), nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	events := parseEvents(t, resp.Body.String())
	require.Len(t, events, 2+len("You are safe."))
	assert.Equal(t, "start", events[0].name)
	assert.Equal(t, "end", events[len(events)-1].name)

	var start modelchat.Snapshot
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &start))
	require.Len(t, start.Transcript, 3)
	assert.Equal(t, "I'm scared", start.Transcript[1].Content)

	prev := ""
	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, "delta", ev.name)
		var delta DeltaEvent
		require.NoError(t, json.Unmarshal([]byte(ev.data), &delta))
		assert.True(t, strings.HasPrefix(delta.Content, prev))
		assert.Len(t, delta.Content, len(prev)+1)
		prev = delta.Content
	}
	assert.Equal(t, "You are safe.", prev)

	var end modelchat.Snapshot
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-1].data), &end))
	last, _ := end.LastTurn()
	assert.Equal(t, "You are safe.", last.Content)
	assert.Equal(t, modelchat.StateIdle, end.State)
}

func TestStreamRejectsEmptyMessage(t *testing.T) {
	r, svc := setup(t, reply("unused"))
	session, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath(session.ID(), "   "), nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Len(t, session.Snapshot().Transcript, 1)
}

func TestStreamUnknownSession(t *testing.T) {
	r, _ := setup(t, reply("unused"))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath("missing", "hi"), nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStreamBusySession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := chatservice.CompleterFunc(func(context.Context, string, []modelchat.Turn, string) (string, error) {
		close(started)
		<-release
		return "done", nil
	})
	r, svc := setup(t, blocking)
	session, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(context.Background(), "first", nil)
		done <- err
	}()
	<-started

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath(session.ID(), "second"), nil))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "application/json")

	close(release)
	require.NoError(t, <-done)
}
