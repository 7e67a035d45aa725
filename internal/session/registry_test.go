package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	"threadline/internal/session"
)

func TestDeriveSummaries(t *testing.T) {
	now := epoch.Add(time.Hour)
	grouped := session.GroupBySession([]chat.Message{
		exchange("m1", "s1", "first question", "first answer", epoch.Add(1*time.Minute)),
		exchange("m2", "s2", "other topic", "other answer", epoch.Add(2*time.Minute)),
		exchange("m3", "s1", "follow up", "final answer", epoch.Add(3*time.Minute)),
		{ID: "m4", SessionID: "s3"},
	})

	convs := session.DeriveSummaries(grouped, nil, now)
	require.Len(t, convs, 3)

	assert.Equal(t, chat.Conversation{
		ID:          "s1",
		Title:       "first question",
		LastMessage: "final answer",
		Timestamp:   epoch.Add(3 * time.Minute),
		Status:      chat.StatusActive,
	}, convs[0])
	assert.Equal(t, "other topic", convs[1].Title)
	assert.Equal(t, "other answer", convs[1].LastMessage)

	// A message with no turns and no timestamp falls back to defaults.
	assert.Equal(t, chat.DefaultTitle, convs[2].Title)
	assert.Equal(t, "", convs[2].LastMessage)
	assert.Equal(t, now, convs[2].Timestamp)
}

func TestDeriveSummariesIsPure(t *testing.T) {
	grouped := session.GroupBySession([]chat.Message{
		exchange("m1", "s1", "a", "b", epoch),
		exchange("m2", "s2", "c", "d", epoch),
	})
	title := "renamed"
	overrides := map[string]session.Override{
		"s1": {Status: chat.StatusArchived, Title: &title},
		"s2": {Status: chat.StatusDeleted},
	}

	first := session.DeriveSummaries(grouped, overrides, epoch)
	second := session.DeriveSummaries(grouped, overrides, epoch)
	assert.Equal(t, first, second)

	require.Len(t, first, 1)
	assert.Equal(t, "s1", first[0].ID)
	assert.Equal(t, "renamed", first[0].Title)
	assert.Equal(t, chat.StatusArchived, first[0].Status)
}

func TestRegistryRefreshKeepsPlaceholdersAndOverrides(t *testing.T) {
	reg := session.NewRegistry(func() time.Time { return epoch })
	reg.Refresh(session.GroupBySession([]chat.Message{
		exchange("m1", "s1", "a", "b", epoch),
		exchange("m2", "s2", "c", "d", epoch),
	}))

	reg.Insert(chat.Conversation{ID: "new", Title: chat.DefaultTitle, Status: chat.StatusActive})
	require.NoError(t, reg.SetStatus("s2", chat.StatusArchived))
	require.True(t, reg.ToggleMenu("s1"))
	require.True(t, reg.Remove("s1"))

	reg.Refresh(session.GroupBySession([]chat.Message{
		exchange("m1", "s1", "a", "b", epoch),
		exchange("m2", "s2", "c", "d", epoch),
		exchange("m3", "s3", "e", "f", epoch),
	}))

	assert.Equal(t, []string{"new", "s2", "s3"}, conversationIDs(reg.List()))
	assert.True(t, reg.Deleted("s1"))

	s2, ok := reg.Get("s2")
	require.True(t, ok)
	assert.Equal(t, chat.StatusArchived, s2.Status)

	// Once the log carries the placeholder it is derived like any other.
	reg.Refresh(session.GroupBySession([]chat.Message{
		exchange("m4", "new", "hello", "hi", epoch),
	}))
	conv, ok := reg.Get("new")
	require.True(t, ok)
	assert.Equal(t, "hello", conv.Title)
	assert.Equal(t, "hi", conv.LastMessage)
}

func TestRegistryFilterByStatus(t *testing.T) {
	reg := session.NewRegistry(nil)
	reg.Refresh(session.GroupBySession([]chat.Message{
		exchange("m1", "old", "a", "b", epoch.Add(1*time.Minute)),
		exchange("m2", "newest", "c", "d", epoch.Add(3*time.Minute)),
		exchange("m3", "middle", "e", "f", epoch.Add(2*time.Minute)),
		exchange("m4", "live", "g", "h", epoch.Add(4*time.Minute)),
	}))
	for _, id := range []string{"old", "newest", "middle"} {
		require.NoError(t, reg.SetStatus(id, chat.StatusArchived))
	}

	assert.Equal(t, []string{"newest", "middle", "old"}, conversationIDs(reg.FilterByStatus(chat.StatusArchived)))
	assert.Equal(t, []string{"live"}, conversationIDs(reg.FilterByStatus(chat.StatusActive)))
}

func TestRegistrySetStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    chat.Status
		to      chat.Status
		wantErr error
	}{
		{name: "active to archived", from: chat.StatusActive, to: chat.StatusArchived},
		{name: "archived to active", from: chat.StatusArchived, to: chat.StatusActive, wantErr: domain.ErrValidation},
		{name: "archived to archived", from: chat.StatusArchived, to: chat.StatusArchived, wantErr: domain.ErrValidation},
		{name: "deleted goes through Remove", from: chat.StatusActive, to: chat.StatusDeleted, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := session.NewRegistry(nil)
			reg.Insert(chat.Conversation{ID: "c1", Status: chat.StatusActive})
			if tt.from == chat.StatusArchived {
				require.NoError(t, reg.SetStatus("c1", chat.StatusArchived))
			}

			err := reg.SetStatus("c1", tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				conv, _ := reg.Get("c1")
				assert.Equal(t, tt.from, conv.Status)
				return
			}
			require.NoError(t, err)
			conv, _ := reg.Get("c1")
			assert.Equal(t, tt.to, conv.Status)
		})
	}

	t.Run("unknown id", func(t *testing.T) {
		reg := session.NewRegistry(nil)
		assert.ErrorIs(t, reg.SetStatus("nope", chat.StatusArchived), domain.ErrNotFound)
	})
}

func TestRegistryUIFlags(t *testing.T) {
	reg := session.NewRegistry(nil)
	reg.Insert(chat.Conversation{ID: "a", Status: chat.StatusActive})
	reg.Insert(chat.Conversation{ID: "b", Status: chat.StatusActive})

	assert.True(t, reg.ToggleMenu("a"))
	assert.True(t, reg.ToggleMenu("b"))
	a, _ := reg.Get("a")
	assert.False(t, a.ShowMenu, "opening one menu closes the others")

	assert.True(t, reg.BeginTitleEdit("b"))
	b, _ := reg.Get("b")
	assert.True(t, b.IsEditingTitle)
	assert.False(t, b.ShowMenu)

	require.NoError(t, reg.SetTitle("b", "Renamed"))
	b, _ = reg.Get("b")
	assert.Equal(t, "Renamed", b.Title)
	assert.False(t, b.IsEditingTitle)

	assert.False(t, reg.ToggleMenu("missing"))
}
