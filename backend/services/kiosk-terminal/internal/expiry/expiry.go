package expiry

import (
	"sync"
	"time"

	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

// Prompt is the customer-facing message derived from the session.
type Prompt string

// Prompts.
const (
	PromptNone          Prompt = ""
	PromptStartOrdering Prompt = "start-ordering"
	PromptStillThere    Prompt = "still-there"
)

const (
	// WarningThreshold is the remaining lifetime under which the customer is asked to confirm presence.
	WarningThreshold = 30 * time.Second
	// BrowsePeriod is the refresh period while the customer browses.
	BrowsePeriod = 30 * time.Second
	// UrgentPeriod is the refresh period close to expiry.
	UrgentPeriod = time.Second
)

// Decision is what the terminal should do for a session state.
type Decision struct {
	Prompt    Prompt
	Countdown int
	Period    time.Duration
	Remove    bool
}

// Evaluate derives the expiry decision for session. A zero Period disables polling.
func Evaluate(session *models.Session) Decision {
	switch {
	case session == nil:
		return Decision{Prompt: PromptStartOrdering}
	case session.Expired:
		return Decision{Remove: true}
	case time.Duration(session.ExpiresInSeconds)*time.Second < WarningThreshold:
		return Decision{Prompt: PromptStillThere, Countdown: session.ExpiresInSeconds, Period: UrgentPeriod}
	default:
		return Decision{Period: BrowsePeriod}
	}
}

// Latch lets one removal through per session id. A removal that did not reach the server is
// released with Reset so the next observation of the session can try again.
type Latch struct {
	mu   sync.Mutex
	last string
}

// First reports true the first time it is called for id, false afterwards.
func (l *Latch) First(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id == "" || id == l.last {
		return false
	}
	l.last = id
	return true
}

// Reset releases id so First passes for it again.
func (l *Latch) Reset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id == l.last {
		l.last = ""
	}
}
