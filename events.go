package authcore

import (
	"log"
	"time"
)

// EventType defines a public type used by authcore APIs.
//
// EventType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventType string

const (
	// EventUserLoggedIn is an exported constant or variable used by the access control engine.
	EventUserLoggedIn EventType = "user_logged_in"
	// EventUserLoggedOut is an exported constant or variable used by the access control engine.
	EventUserLoggedOut EventType = "user_logged_out"
	// EventSessionExpired is an exported constant or variable used by the access control engine.
	EventSessionExpired EventType = "session_expired"
	// EventPrivilegeEscalated is an exported constant or variable used by the access control engine.
	EventPrivilegeEscalated EventType = "privilege_escalated"
	// EventPrivilegeExpired is an exported constant or variable used by the access control engine.
	EventPrivilegeExpired EventType = "privilege_expired"
	// EventTwoFactorVerified is an exported constant or variable used by the access control engine.
	EventTwoFactorVerified EventType = "two_factor_verified"
)

// Event is a state-change notification delivered to registered listeners.
// The surrounding application uses these to drive UI transitions, for
// example returning to the login screen when the session countdown fires.
type Event struct {
	Type     EventType
	UserID   int64
	Username string
	Role     Role
	Method   TwoFactorMethod

	// Purpose is the caller-supplied reason for a privilege escalation;
	// empty for every other event type.
	Purpose string

	At time.Time
}

// EventListener defines a public type used by authcore APIs.
//
// EventListener instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventListener func(Event)

func (e *Engine) notifyListeners(event Event) {
	if e == nil {
		return
	}
	if event.At.IsZero() {
		event.At = e.now()
	}
	for _, l := range e.listeners {
		if l == nil {
			continue
		}
		func() {
			// A panicking listener must not take down a timer goroutine.
			defer func() {
				if r := recover(); r != nil {
					log.Print("authcore: event listener panicked")
				}
			}()
			l(event)
		}()
	}
}
