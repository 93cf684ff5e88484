package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/model/persona"
	chat "github.com/zhouzirui/beacon/internal/service/chat"
)

func newService(t *testing.T) *chat.Service {
	t.Helper()
	completer := chat.CompleterFunc(func(context.Context, string, []modelchat.Turn, string) (string, error) {
		return "ok", nil
	})
	svc, err := chat.NewService(chat.Deps{
		Personas:  persona.NewRegistry(persona.Seed()),
		Completer: completer,
	}, "ARK")
	require.NoError(t, err)
	return svc
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "RAY")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, "RAY", got.Snapshot().PersonaID)
}

func TestServiceDefaultPersona(t *testing.T) {
	svc := newService(t)

	session, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "ARK", session.Snapshot().PersonaID)
	assert.Len(t, session.Snapshot().Transcript, 1)
}

func TestServiceCreateUnknownPersona(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateSession(context.Background(), "GHOST")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
	assert.Zero(t, svc.Count())
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceCloseSession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx, "BOLT")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, svc.Count())

	require.NoError(t, svc.CloseSession(ctx, a.ID()))
	assert.Equal(t, 1, svc.Count())
	assert.ErrorIs(t, svc.CloseSession(ctx, a.ID()), chat.ErrSessionNotFound)

	_, err = svc.GetSession(ctx, b.ID())
	assert.NoError(t, err)
}

func TestServiceSessionsAreIndependent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, "ARK")
	b, _ := svc.CreateSession(ctx, "ARK")

	_, err := a.Submit(ctx, "hello", nil)
	require.NoError(t, err)

	assert.Len(t, a.Snapshot().Transcript, 3)
	assert.Len(t, b.Snapshot().Transcript, 1)
}

func TestNewServiceRejectsUnknownDefault(t *testing.T) {
	_, err := chat.NewService(chat.Deps{
		Personas:  persona.NewRegistry(persona.Seed()),
		Completer: chat.CompleterFunc(nil),
	}, "GHOST")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
}
