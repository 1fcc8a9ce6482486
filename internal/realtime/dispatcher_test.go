package realtime

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/models"
)

type stubLister struct {
	tasks map[string][]models.Task
	err   error
}

func (s *stubLister) TasksByUserID(_ context.Context, userID string) ([]models.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	tasks := s.tasks[userID]
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func TestDispatcher_Broadcast(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	a1, a2, b1 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	registry.Admit("alice", a1)
	registry.Admit("alice", a2)
	registry.Admit("bob", b1)

	lister := &stubLister{tasks: map[string][]models.Task{
		"alice": {{ID: "t1", UserID: "alice", Title: "Buy milk"}},
	}}
	dispatcher := NewDispatcher(zerolog.Nop(), registry, lister)

	dispatcher.Broadcast(context.Background(), "alice")

	// Every device of the owner receives the full current list,
	// including whichever one triggered the mutation.
	for _, conn := range []*fakeConn{a1, a2} {
		events := conn.received()
		require.Len(t, events, 1)
		assert.Equal(t, EventTasksUpdated, events[0].Event)
		tasks, ok := events[0].Data.([]models.Task)
		require.True(t, ok)
		require.Len(t, tasks, 1)
		assert.Equal(t, "t1", tasks[0].ID)
	}

	// Other users' connections never hear about it.
	assert.Empty(t, b1.received())
}

func TestDispatcher_Broadcast_EmptyList(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	conn := &fakeConn{}
	registry.Admit("alice", conn)

	dispatcher := NewDispatcher(zerolog.Nop(), registry, &stubLister{})

	dispatcher.Broadcast(context.Background(), "alice")

	events := conn.received()
	require.Len(t, events, 1)
	tasks, ok := events[0].Data.([]models.Task)
	require.True(t, ok)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestDispatcher_Broadcast_ListerFailureSendsNothing(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	conn := &fakeConn{}
	registry.Admit("alice", conn)

	dispatcher := NewDispatcher(zerolog.Nop(), registry, &stubLister{err: assert.AnError})

	dispatcher.Broadcast(context.Background(), "alice")

	assert.Empty(t, conn.received())
}

func TestDispatcher_Broadcast_NoMembersIsFine(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	dispatcher := NewDispatcher(zerolog.Nop(), registry, &stubLister{})

	assert.NotPanics(t, func() {
		dispatcher.Broadcast(context.Background(), "nobody")
	})
}
