// Package session holds the mutable state threaded through a harness run.
//
// A State is created once per run and passed by pointer into every suite. The
// auth suite writes the token and user id; CRUD suites record the identifier
// of the entity they last created. Later suites read what earlier suites
// produced.
//
// State has no locking. The orchestrator runs suites one at a time, so there
// is never more than one writer.
package session

// Kind names a fixture entity.
type Kind string

const (
	KindTask      Kind = "task"
	KindSkill     Kind = "skill"
	KindChallenge Kind = "challenge"
	KindPomodoro  Kind = "pomodoro"
	KindMood      Kind = "mood"
)

// Kinds lists every fixture kind in pipeline order.
var Kinds = []Kind{KindTask, KindSkill, KindChallenge, KindPomodoro, KindMood}

// State is the cross-suite session record.
type State struct {
	Token  string
	UserID string

	fixtures map[Kind]string
}

// New creates an empty State.
func New() *State {
	return &State{fixtures: make(map[Kind]string)}
}

// Authenticated reports whether a token has been acquired.
func (s *State) Authenticated() bool {
	return s.Token != ""
}

// SetAuth records the token and user id returned by register or login.
func (s *State) SetAuth(token, userID string) {
	s.Token = token
	s.UserID = userID
}

// Fixture returns the last created identifier for kind.
// ok is false when no create step for kind has succeeded yet.
func (s *State) Fixture(kind Kind) (id string, ok bool) {
	id = s.fixtures[kind]
	return id, id != ""
}

// SetFixture records id as the current fixture for kind, replacing any
// previous value. An empty id clears the entry.
func (s *State) SetFixture(kind Kind, id string) {
	if s.fixtures == nil {
		s.fixtures = make(map[Kind]string)
	}
	if id == "" {
		delete(s.fixtures, kind)
		return
	}
	s.fixtures[kind] = id
}

// Snapshot is an immutable copy of a State.
type Snapshot struct {
	token    string
	userID   string
	fixtures map[Kind]string
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	fixtures := make(map[Kind]string, len(s.fixtures))
	for k, v := range s.fixtures {
		fixtures[k] = v
	}
	return Snapshot{token: s.Token, userID: s.UserID, fixtures: fixtures}
}

// Restore resets the state to a snapshot.
func (s *State) Restore(snap Snapshot) {
	s.Token = snap.token
	s.UserID = snap.userID
	s.fixtures = make(map[Kind]string, len(snap.fixtures))
	for k, v := range snap.fixtures {
		s.fixtures[k] = v
	}
}

// Equal reports whether two snapshots hold the same values.
func (a Snapshot) Equal(b Snapshot) bool {
	if a.token != b.token || a.userID != b.userID || len(a.fixtures) != len(b.fixtures) {
		return false
	}
	for k, v := range a.fixtures {
		if b.fixtures[k] != v {
			return false
		}
	}
	return true
}
