package gateway

import "sync"

type SessionState string

type SessionEvent string

const (
	SessionIdle SessionState = "IDLE"
	SessionLive SessionState = "LIVE"
	SessionLost SessionState = "LOST"
)

const (
	SessionConnected    SessionEvent = "CONNECTED"
	SessionDisconnected SessionEvent = "DISCONNECTED"
	SessionStopped      SessionEvent = "STOPPED"
)

// Session tracks the gateway connection lifecycle. The client goroutine
// drives it; the app reads it when publishing the session gauges.
type Session struct {
	mu    sync.Mutex
	state SessionState
	lost  int
}

func NewSession() *Session {
	return &Session{state: SessionIdle}
}

func (s *Session) Apply(event SessionEvent) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := nextSessionState(s.state, event)
	if next == SessionLost && s.state != SessionLost {
		s.lost++
	}
	s.state = next
	return s.state
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Losses counts transitions into SessionLost.
func (s *Session) Losses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

func nextSessionState(current SessionState, event SessionEvent) SessionState {
	switch current {
	case SessionIdle, SessionLost:
		if event == SessionConnected {
			return SessionLive
		}
		if event == SessionStopped {
			return SessionIdle
		}
	case SessionLive:
		if event == SessionDisconnected {
			return SessionLost
		}
		if event == SessionStopped {
			return SessionIdle
		}
	}
	return current
}
