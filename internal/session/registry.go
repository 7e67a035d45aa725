package session

import (
	"fmt"
	"sort"
	"time"

	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
)

// Override is a client-side edit layered on top of a derived summary.
// The remote log never carries status or title edits, so these survive
// every history refresh.
type Override struct {
	Title  *string
	Status chat.Status
}

// DeriveSummaries builds one Conversation per group. It is pure: the same
// grouping, overrides and clock yield the same summaries. Conversations
// whose override marks them deleted are left out.
func DeriveSummaries(grouped Grouped, overrides map[string]Override, now time.Time) []chat.Conversation {
	out := make([]chat.Conversation, 0, grouped.Len())
	for _, id := range grouped.Order {
		msgs := grouped.Threads[id]

		conv := chat.Conversation{
			ID:        id,
			Title:     chat.DefaultTitle,
			Timestamp: now,
			Status:    chat.StatusActive,
		}
		if len(msgs) > 0 {
			if title := msgs[0].FirstContent(); title != "" {
				conv.Title = title
			}
			last := msgs[len(msgs)-1]
			conv.LastMessage = last.LastContent()
			if !last.Timestamp.IsZero() {
				conv.Timestamp = last.Timestamp
			}
		}

		if o, ok := overrides[id]; ok {
			if o.Status == chat.StatusDeleted {
				continue
			}
			if o.Status != "" {
				conv.Status = o.Status
			}
			if o.Title != nil {
				conv.Title = *o.Title
			}
		}

		out = append(out, conv)
	}
	return out
}

// Registry holds the conversation summaries shown in the sidebar and the
// archive view.
type Registry struct {
	entries      []chat.Conversation
	overrides    map[string]Override
	placeholders map[string]bool
	now          func() time.Time
}

// NewRegistry returns an empty registry using now for fallback timestamps.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries:      []chat.Conversation{},
		overrides:    make(map[string]Override),
		placeholders: make(map[string]bool),
		now:          now,
	}
}

// Refresh re-derives summaries from grouped. Local placeholders that have
// no messages yet stay at the head; UI flags carry over by id.
func (r *Registry) Refresh(grouped Grouped) {
	prev := make(map[string]chat.Conversation, len(r.entries))
	for _, c := range r.entries {
		prev[c.ID] = c
	}

	next := make([]chat.Conversation, 0, len(r.entries)+grouped.Len())
	for _, c := range r.entries {
		if !r.placeholders[c.ID] {
			continue
		}
		if grouped.Has(c.ID) {
			delete(r.placeholders, c.ID)
			continue
		}
		next = append(next, c)
	}

	for _, c := range DeriveSummaries(grouped, r.overrides, r.now()) {
		if old, ok := prev[c.ID]; ok {
			c.IsEditingTitle = old.IsEditingTitle
			c.ShowMenu = old.ShowMenu
		}
		next = append(next, c)
	}

	r.entries = next
}

// Insert places a new conversation at the head of the list. It stays there
// as a placeholder until a refresh finds messages for it.
func (r *Registry) Insert(conv chat.Conversation) {
	r.placeholders[conv.ID] = true
	r.entries = append([]chat.Conversation{conv}, r.entries...)
}

// Get returns the summary for id.
func (r *Registry) Get(id string) (chat.Conversation, bool) {
	if i := r.index(id); i >= 0 {
		return r.entries[i], true
	}
	return chat.Conversation{}, false
}

// List returns every live summary in registry order.
func (r *Registry) List() []chat.Conversation {
	return append([]chat.Conversation{}, r.entries...)
}

// FilterByStatus returns the summaries with status. Archived summaries are
// ordered newest first; active ones keep registry order.
func (r *Registry) FilterByStatus(status chat.Status) []chat.Conversation {
	out := []chat.Conversation{}
	for _, c := range r.entries {
		if c.Status == status {
			out = append(out, c)
		}
	}
	if status == chat.StatusArchived {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	}
	return out
}

// Touch records a new last exchange for id. Returns false if id is not
// registered.
func (r *Registry) Touch(id, lastMessage string, ts time.Time) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.entries[i].LastMessage = lastMessage
	r.entries[i].Timestamp = ts
	return true
}

// SetStatus moves id to status. Deleted is handled by Remove.
func (r *Registry) SetStatus(id string, status chat.Status) error {
	i := r.index(id)
	if i < 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("conversation %s not found", id)}
	}
	from := r.entries[i].Status
	if status == chat.StatusDeleted || !chat.CanTransition(from, status) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("conversation %s cannot move from %s to %s", id, from, status),
		}
	}

	r.entries[i].Status = status
	r.entries[i].ShowMenu = false
	o := r.overrides[id]
	o.Status = status
	r.overrides[id] = o
	return nil
}

// SetTitle replaces the title of id. The edit is local only.
func (r *Registry) SetTitle(id, title string) error {
	i := r.index(id)
	if i < 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("conversation %s not found", id)}
	}
	r.entries[i].Title = title
	r.entries[i].IsEditingTitle = false
	o := r.overrides[id]
	o.Title = &title
	r.overrides[id] = o
	return nil
}

// Remove deletes id from the registry and tombstones it so later refreshes
// do not bring it back.
func (r *Registry) Remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
	delete(r.placeholders, id)
	r.overrides[id] = Override{Status: chat.StatusDeleted}
	return true
}

// Deleted reports whether id was removed through Remove.
func (r *Registry) Deleted(id string) bool {
	return r.overrides[id].Status == chat.StatusDeleted
}

// BeginTitleEdit flags id as being renamed in the UI.
func (r *Registry) BeginTitleEdit(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.entries[i].IsEditingTitle = true
	r.entries[i].ShowMenu = false
	return true
}

// ToggleMenu flips the context menu flag of id and closes every other menu.
func (r *Registry) ToggleMenu(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	open := !r.entries[i].ShowMenu
	for j := range r.entries {
		r.entries[j].ShowMenu = false
	}
	r.entries[i].ShowMenu = open
	return open
}

func (r *Registry) index(id string) int {
	for i := range r.entries {
		if r.entries[i].ID == id {
			return i
		}
	}
	return -1
}
