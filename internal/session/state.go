package session

import (
	"errors"
	"sync"
	"time"

	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
)

// SendPhase is the Request Coordinator's state for the current send attempt.
type SendPhase string

const (
	PhaseIdle      SendPhase = "idle"
	PhaseSending   SendPhase = "sending"
	PhaseSucceeded SendPhase = "succeeded"
	PhaseFailed    SendPhase = "failed"
)

// Operations that can surface a user-visible error.
const (
	opHealth  = "health"
	opHistory = "history"
	opSend    = "send"
	opCreate  = "create"
	opSelect  = "select"
	opArchive = "archive"
	opDelete  = "delete"
	opRename  = "rename"
	opAuth    = "auth"
)

// User-visible messages, one per failing operation.
const (
	MsgConnectFailed    = "Cannot connect to chat server. Please try again later."
	MsgHistoryFailed    = "Unable to load chat history. Please try again later."
	MsgSendFailed       = "Failed to send message. Please try again."
	MsgCreateFailed     = "Failed to create new chat."
	MsgLoadThreadFailed = "Failed to load conversation messages."
	MsgArchiveFailed    = "Failed to archive conversation."
	MsgDeleteFailed     = "Failed to delete conversation."
	MsgRenameFailed     = "Failed to rename conversation."
	MsgAuthFailed       = "Please enter a user ID."
)

// ErrSendInFlight is returned when Send is called while another send is
// still waiting on the gateway. The call is dropped, not queued.
var ErrSendInFlight = errors.New("a message is already being sent")

// UserError is the single user-visible form every failure is converted to
// at the session boundary.
type UserError struct {
	Op        string
	Message   string
	Reason    string
	Retryable bool
	Err       error
}

func (e *UserError) Error() string { return e.Message }
func (e *UserError) Unwrap() error { return e.Err }

func newUserError(op, message string, cause error) *UserError {
	return &UserError{
		Op:        op,
		Message:   message,
		Reason:    domain.Reason(cause),
		Retryable: errors.Is(cause, domain.ErrConnectivity),
		Err:       cause,
	}
}

// Selection tracks which thread is displayed and which conversation new
// sends go to. Empty string means no selection.
type Selection struct {
	SelectedConversationID string
	CurrentConversationID  string
	Messages               []chat.Message
}

func (s *Selection) open(id string, messages []chat.Message) {
	s.SelectedConversationID = id
	s.CurrentConversationID = id
	s.Messages = messages
}

func (s *Selection) clear() {
	s.SelectedConversationID = ""
	s.CurrentConversationID = ""
	s.Messages = []chat.Message{}
}

func (s *Selection) holds(id string) bool {
	return id != "" && (s.SelectedConversationID == id || s.CurrentConversationID == id)
}

// Compose is owned by the Request Coordinator: the input buffer, the send
// phase and the optimistic echo of the message being sent.
type Compose struct {
	Input   string
	Phase   SendPhase
	Pending *chat.Message
	seq     uint64
}

// Connection holds gateway-facing flags and the current user-visible error.
type Connection struct {
	Err      *UserError
	Retrying bool
	Loading  bool
}

// View holds which screen is shown.
type View struct {
	ShowArchived bool
}

// State is the whole client application state. Each component owns a
// disjoint part: the Store and Registry hold data, the Coordinator owns
// Compose, the Lifecycle Controller owns Selection and View.
//
// mu guards every field. It is only held for in-memory transitions and
// never across a gateway call.
type State struct {
	mu sync.Mutex

	UserID     string
	Store      *Store
	Registry   *Registry
	Selection  Selection
	Compose    Compose
	Connection Connection
	View       View
}

// NewState returns an empty state with no user.
func NewState(now func() time.Time) *State {
	return &State{
		Store:     NewStore(),
		Registry:  NewRegistry(now),
		Selection: Selection{Messages: []chat.Message{}},
		Compose:   Compose{Phase: PhaseIdle},
	}
}

func (s *State) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *State) userID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UserID
}

// setError records err as the visible error.
func (s *State) setError(err *UserError) {
	s.update(func() { s.Connection.Err = err })
}

// clearErrorLocked drops the visible error if it was raised by one of ops.
func (s *State) clearErrorLocked(ops ...string) {
	if s.Connection.Err == nil {
		return
	}
	for _, op := range ops {
		if s.Connection.Err.Op == op {
			s.Connection.Err = nil
			return
		}
	}
}

// Snapshot is a read-only copy of State for observers.
type Snapshot struct {
	UserID       string
	Selection    Selection
	Thread       []chat.Message
	Active       []chat.Conversation
	Archived     []chat.Conversation
	Input        string
	Phase        SendPhase
	Err          *UserError
	Retrying     bool
	Loading      bool
	ShowArchived bool
}

// Snapshot copies the observable state. Thread is the displayed thread plus
// the optimistic echo when it belongs to the selected conversation.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.Selection
	sel.Messages = chat.CloneMessages(s.Selection.Messages)

	thread := chat.CloneMessages(s.Selection.Messages)
	if p := s.Compose.Pending; p != nil && p.SessionID != "" && p.SessionID == sel.SelectedConversationID {
		thread = append(thread, p.Clone())
	}

	var errCopy *UserError
	if s.Connection.Err != nil {
		e := *s.Connection.Err
		errCopy = &e
	}

	return Snapshot{
		UserID:       s.UserID,
		Selection:    sel,
		Thread:       thread,
		Active:       s.Registry.FilterByStatus(chat.StatusActive),
		Archived:     s.Registry.FilterByStatus(chat.StatusArchived),
		Input:        s.Compose.Input,
		Phase:        s.Compose.Phase,
		Err:          errCopy,
		Retrying:     s.Connection.Retrying,
		Loading:      s.Connection.Loading,
		ShowArchived: s.View.ShowArchived,
	}
}
