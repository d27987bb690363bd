// Package status tracks the refresh state machine for each synced data
// domain.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lythe-im/lythed/internal/bus"
)

// Domain identifies an independently refreshed data domain.
type Domain string

const (
	DomainFriends Domain = "friends"
	DomainProfile Domain = "profile"
	DomainGroups  Domain = "groups"
)

// State is the refresh state of a single domain.
type State string

const (
	Idle     State = "IDLE"
	Fetching State = "FETCHING"
	// Succeeded: the cache was replaced with fresh remote data.
	Succeeded State = "SUCCEEDED"
	// FailedWithFallback: the remote fetch failed but a non-empty local
	// cache was served in its place.
	FailedWithFallback State = "FAILED_WITH_FALLBACK"
	// FailedHard: the remote fetch failed and no local cache existed.
	FailedHard State = "FAILED_HARD"
)

// validTransitions defines allowed state transitions. Every terminal state
// may re-enter Fetching on the next refresh.
var validTransitions = map[State][]State{
	Idle:               {Fetching},
	Fetching:           {Succeeded, FailedWithFallback, FailedHard},
	Succeeded:          {Fetching},
	FailedWithFallback: {Fetching},
	FailedHard:         {Fetching},
}

// Tracker holds one state machine per data domain. Domains start in Idle.
type Tracker struct {
	mu     sync.RWMutex
	states map[Domain]State
	bus    *bus.Bus
}

// NewTracker creates a tracker publishing changes on b. b may be nil.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{
		states: make(map[Domain]State),
		bus:    b,
	}
}

// Current returns the current state of a domain.
func (t *Tracker) Current(d Domain) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLocked(d)
}

func (t *Tracker) currentLocked(d Domain) State {
	if s, ok := t.states[d]; ok {
		return s
	}
	return Idle
}

// Transition attempts to move a domain to a new state. Returns an error if
// the transition is invalid.
func (t *Tracker) Transition(d Domain, to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.currentLocked(d)
	if !slices.Contains(validTransitions[from], to) {
		return fmt.Errorf("domain %s: invalid transition from %s to %s", d, from, to)
	}
	t.states[d] = to
	if t.bus != nil {
		t.bus.Publish(bus.Event{
			Kind:      bus.KindSyncStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				Domain: d,
				From:   from,
				To:     to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Domain Domain
	From   State
	To     State
}
