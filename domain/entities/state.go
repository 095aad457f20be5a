package entities

// SessionState is the lifecycle state of the voice session, owned by the
// session driver and read-only everywhere else.
type SessionState string

const (
	StateAwaitingLocation SessionState = "AWAITING_LOCATION"
	StateIdle             SessionState = "IDLE"
	StateListening        SessionState = "LISTENING"
	StateThinking         SessionState = "THINKING"
	StateSpeaking         SessionState = "SPEAKING"
	StateError            SessionState = "ERROR"
)

// Active reports whether the state belongs to an open live session.
func (s SessionState) Active() bool {
	switch s {
	case StateListening, StateThinking, StateSpeaking:
		return true
	}
	return false
}
