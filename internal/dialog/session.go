package dialog

import (
	"sync"
	"time"
)

// State is the screen a user is on.
type State int

const (
	StateMainMenu State = iota
	StateTaskList
	StateTaskDetail
	StateTitle
	StateDescription
	StateCategory
	StateNewCategory
	StateDueDate
	StateConfirm
)

var stateNames = map[State]string{
	StateMainMenu:    "main_menu",
	StateTaskList:    "task_list",
	StateTaskDetail:  "task_detail",
	StateTitle:       "title",
	StateDescription: "description",
	StateCategory:    "category",
	StateNewCategory: "new_category",
	StateDueDate:     "due_date",
	StateConfirm:     "confirm",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Draft is the task being assembled by the creation dialog.
type Draft struct {
	Title        string
	Description  string
	CategoryID   *string
	CategoryName string
	DueDate      *time.Time
	DueDisplay   string
}

// Session is the dialog data of one user. It only lives in memory.
type Session struct {
	State          State
	Draft          Draft
	SelectedTaskID string
	// categories caches id -> name of the last category screen.
	categories map[string]string
}

func (s *Session) reset(state State) {
	*s = Session{State: state}
}

type sessionEntry struct {
	mu      sync.Mutex
	session Session
}

// Sessions holds the dialog state of every user. Updates of one user are
// serialized; different users proceed in parallel.
type Sessions struct {
	mu      sync.Mutex
	entries map[int64]*sessionEntry
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{entries: make(map[int64]*sessionEntry)}
}

// acquire locks the user's session and returns it with its release func.
func (s *Sessions) acquire(userID int64) (*Session, func()) {
	s.mu.Lock()
	entry, ok := s.entries[userID]
	if !ok {
		entry = &sessionEntry{}
		s.entries[userID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	return &entry.session, entry.mu.Unlock
}

// snapshot returns a copy of the user's session.
func (s *Sessions) snapshot(userID int64) Session {
	sess, release := s.acquire(userID)
	defer release()
	return *sess
}
