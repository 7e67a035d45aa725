package session

import (
	"encoding/json"
	"slices"

	"threadline/internal/domain/models/chat"
)

// Grouped is the flat exchange log regrouped by conversation. Order lists
// session ids by first appearance in the log.
type Grouped struct {
	Order   []string
	Threads map[string][]chat.Message
}

// Thread returns the messages of one conversation, or an empty slice.
func (g Grouped) Thread(id string) []chat.Message {
	msgs, ok := g.Threads[id]
	if !ok {
		return []chat.Message{}
	}
	return chat.CloneMessages(msgs)
}

// Has reports whether the log contained id.
func (g Grouped) Has(id string) bool {
	_, ok := g.Threads[id]
	return ok
}

// Len is the number of conversations.
func (g Grouped) Len() int {
	return len(g.Order)
}

// GroupBySession groups exchanges by SessionID, keeping the input order
// within each group. Exchanges without a session id belong to no
// conversation and are dropped.
func GroupBySession(flat []chat.Message) Grouped {
	g := Grouped{
		Order:   []string{},
		Threads: make(map[string][]chat.Message),
	}
	for _, msg := range flat {
		if msg.SessionID == "" {
			continue
		}
		if _, seen := g.Threads[msg.SessionID]; !seen {
			g.Order = append(g.Order, msg.SessionID)
		}
		g.Threads[msg.SessionID] = append(g.Threads[msg.SessionID], msg.Clone())
	}
	return g
}

// Store is the in-memory mapping from conversation id to its ordered
// exchanges. It is rebuilt wholesale from the remote log and otherwise only
// grows through Append.
type Store struct {
	log    []chat.Message
	groups Grouped
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		log:    []chat.Message{},
		groups: GroupBySession(nil),
	}
}

// Rebuild replaces the store contents with flat and returns the grouping.
func (s *Store) Rebuild(flat []chat.Message) Grouped {
	s.log = chat.CloneMessages(flat)
	s.groups = GroupBySession(s.log)
	return s.Grouped()
}

// Grouped returns a copy of the current grouping.
func (s *Store) Grouped() Grouped {
	out := Grouped{
		Order:   append([]string{}, s.groups.Order...),
		Threads: make(map[string][]chat.Message, len(s.groups.Threads)),
	}
	for id, msgs := range s.groups.Threads {
		out.Threads[id] = chat.CloneMessages(msgs)
	}
	return out
}

// SelectThread returns the exchanges of id in log order, or an empty slice
// for an unknown or empty conversation.
func (s *Store) SelectThread(id string) []chat.Message {
	return s.groups.Thread(id)
}

// Append adds a confirmed exchange to the log and its group.
func (s *Store) Append(msg chat.Message) {
	msg = msg.Clone()
	s.log = append(s.log, msg)
	if msg.SessionID == "" {
		return
	}
	if !s.groups.Has(msg.SessionID) {
		s.groups.Order = append(s.groups.Order, msg.SessionID)
	}
	s.groups.Threads[msg.SessionID] = append(s.groups.Threads[msg.SessionID], msg)
}

// Remove drops every exchange of id and returns how many were removed.
func (s *Store) Remove(id string) int {
	if !s.groups.Has(id) {
		return 0
	}

	kept := s.log[:0:0]
	removed := 0
	for _, msg := range s.log {
		if msg.SessionID == id {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	s.log = kept

	delete(s.groups.Threads, id)
	order := s.groups.Order[:0:0]
	for _, sid := range s.groups.Order {
		if sid != id {
			order = append(order, sid)
		}
	}
	s.groups.Order = order

	return removed
}

// Log returns a copy of the flat log, including exchanges without a
// session id.
func (s *Store) Log() []chat.Message {
	return chat.CloneMessages(s.log)
}

// Fingerprint serializes the log so two store states can be compared byte
// for byte.
func (s *Store) Fingerprint() []byte {
	b, err := json.Marshal(s.log)
	if err != nil {
		// chat.Message holds only strings, times and slices of them.
		panic(err)
	}
	return b
}

// findExchange returns the index of the first exchange in thread[from:] whose
// turns equal history, or -1.
func findExchange(thread []chat.Message, from int, history []chat.Turn) int {
	for i := max(from, 0); i < len(thread); i++ {
		if slices.Equal(thread[i].History, history) {
			return i
		}
	}
	return -1
}
