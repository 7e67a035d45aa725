package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/domain/models/chat"
	"threadline/internal/session"
)

func TestRebuildSelectThread(t *testing.T) {
	at := func(min int) time.Time { return epoch.Add(time.Duration(min) * time.Minute) }

	tests := []struct {
		name      string
		flat      []chat.Message
		wantOrder []string
		wantSizes map[string]int
	}{
		{
			name:      "empty log",
			flat:      nil,
			wantOrder: []string{},
			wantSizes: map[string]int{},
		},
		{
			name: "two conversations",
			flat: []chat.Message{
				exchange("m1", "s1", "a", "b", at(1)),
				exchange("m2", "s2", "c", "d", at(2)),
				exchange("m3", "s1", "e", "f", at(3)),
			},
			wantOrder: []string{"s1", "s2"},
			wantSizes: map[string]int{"s1": 2, "s2": 1},
		},
		{
			name: "messages without session id are dropped",
			flat: []chat.Message{
				exchange("m1", "", "orphan", "x", at(1)),
				exchange("m2", "s1", "a", "b", at(2)),
				exchange("m3", "", "orphan", "y", at(3)),
			},
			wantOrder: []string{"s1"},
			wantSizes: map[string]int{"s1": 1},
		},
		{
			name: "interleaved conversations keep log order",
			flat: []chat.Message{
				exchange("m1", "s2", "a", "b", at(1)),
				exchange("m2", "s1", "c", "d", at(2)),
				exchange("m3", "s2", "e", "f", at(3)),
				exchange("m4", "s1", "g", "h", at(4)),
				exchange("m5", "s2", "i", "j", at(5)),
			},
			wantOrder: []string{"s2", "s1"},
			wantSizes: map[string]int{"s1": 2, "s2": 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewStore()
			grouped := store.Rebuild(tt.flat)

			assert.Equal(t, tt.wantOrder, grouped.Order)
			assert.Equal(t, len(tt.wantSizes), grouped.Len())

			for id, size := range tt.wantSizes {
				thread := store.SelectThread(id)
				require.Len(t, thread, size)

				// Exactly the subsequence with this session id, in order.
				var want []string
				for _, m := range tt.flat {
					if m.SessionID == id {
						want = append(want, m.ID)
					}
				}
				got := make([]string, len(thread))
				for i, m := range thread {
					got[i] = m.ID
				}
				assert.Equal(t, want, got)
			}

			assert.Empty(t, store.SelectThread(""))
			assert.NotNil(t, store.SelectThread("missing"))
		})
	}
}

func TestStoreThreadsAreCopies(t *testing.T) {
	store := session.NewStore()
	store.Rebuild([]chat.Message{exchange("m1", "s1", "hello", "hi", epoch)})

	thread := store.SelectThread("s1")
	thread[0].History[0].Content = "mutated"

	assert.Equal(t, "hello", store.SelectThread("s1")[0].FirstContent())
}

func TestStoreAppendAndRemove(t *testing.T) {
	store := session.NewStore()
	store.Rebuild([]chat.Message{
		exchange("m1", "s1", "a", "b", epoch),
		exchange("m2", "s2", "c", "d", epoch),
	})

	store.Append(exchange("m3", "s3", "e", "f", epoch))
	store.Append(exchange("m4", "s1", "g", "h", epoch))

	g := store.Grouped()
	assert.Equal(t, []string{"s1", "s2", "s3"}, g.Order)
	assert.Len(t, store.SelectThread("s1"), 2)
	assert.Len(t, store.Log(), 4)

	assert.Equal(t, 2, store.Remove("s1"))
	assert.Equal(t, 0, store.Remove("s1"))
	assert.Equal(t, []string{"s2", "s3"}, store.Grouped().Order)
	assert.Empty(t, store.SelectThread("s1"))
	assert.Len(t, store.Log(), 2)
}

func TestStoreFingerprint(t *testing.T) {
	a := session.NewStore()
	b := session.NewStore()
	flat := []chat.Message{exchange("m1", "s1", "a", "b", epoch)}
	a.Rebuild(flat)
	b.Rebuild(flat)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Append(exchange("m2", "s1", "c", "d", epoch))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
