package consumer

import "fmt"

// Session phases reported in SessionError.
const (
	PhaseRead   = "read"
	PhaseFetch  = "fetch"
	PhaseCommit = "commit"
)

// SessionError aborts a session for one key. Nothing was committed for that
// key during the failing batch.
type SessionError struct {
	Key   string
	Phase string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("consumer %s: %s: %v", e.Key, e.Phase, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
