package api

import (
	"time"

	"github.com/lframos/pairchat/internal/status"
	"github.com/lframos/pairchat/internal/store"
)

// SessionInfo is a point-in-time snapshot of the daemon's session state.
type SessionInfo struct {
	SessionName  string
	State        status.State
	StartedAt    time.Time
	UptimeMillis int64
	ChatCount    int64
	MessageCount int64
}

// SessionService reports session status and store counters.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	db          *store.DB
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName string, machine *status.Machine, db *store.DB) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		db:          db,
	}
}

// Info returns the current session snapshot.
func (s *SessionService) Info() (*SessionInfo, error) {
	chats, err := s.db.ChatCount()
	if err != nil {
		return nil, err
	}
	msgs, err := s.db.MessageCount()
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		SessionName:  s.sessionName,
		State:        s.machine.Current(),
		StartedAt:    s.startedAt,
		UptimeMillis: time.Since(s.startedAt).Milliseconds(),
		ChatCount:    chats,
		MessageCount: msgs,
	}, nil
}
