// Package conversation drives one assessment session through its fixed script
// of phases, generating prompts and routing answers to the scoring engine.
package conversation

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ashureev/cogcheck/internal/scoring"
)

// Phase is a stage of the scripted interview.
type Phase string

const (
	PhaseGreeting            Phase = "greeting"
	PhaseRegistrationPresent Phase = "registration_present"
	PhaseRegistrationRepeat  Phase = "registration_repeat"
	PhaseIntervening         Phase = "intervening"
	PhaseDelayedRecall       Phase = "delayed_recall"
	PhaseSummary             Phase = "summary"
	PhaseDone                Phase = "done"
)

var phaseOrder = map[Phase]int{
	PhaseGreeting:            0,
	PhaseRegistrationPresent: 1,
	PhaseRegistrationRepeat:  2,
	PhaseIntervening:         3,
	PhaseDelayedRecall:       4,
	PhaseSummary:             5,
	PhaseDone:                6,
}

// Valid reports whether p is one of the enumerated phases.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Rank is the position of p in the script, or -1 for unknown phases.
func (p Phase) Rank() int {
	r, ok := phaseOrder[p]
	if !ok {
		return -1
	}
	return r
}

// ErrNilState is returned when HandleTurn is given no state.
var ErrNilState = errors.New("conversation: nil session state")

// InvalidPhaseError reports a state whose phase is outside the enumerated set.
type InvalidPhaseError struct {
	Phase Phase
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("conversation: invalid phase %q", string(e.Phase))
}

// Dynamic namespaces under which generated question instances are stored.
const (
	NamespaceMath    = "math"
	NamespaceMathAdd = "math_add"
)

// Instance is a generated question instance. QuestionIndex ties it to the
// intervening slot that produced it.
type Instance struct {
	QuestionIndex int `json:"question_index"`
	Start         int `json:"start,omitempty"`
	Decrement     int `json:"decrement,omitempty"`
	A             int `json:"a,omitempty"`
	B             int `json:"b,omitempty"`
	Answer        int `json:"answer"`
}

// State is one session's progress. A State is owned by a single caller; the
// Machine never mutates the State it is given.
type State struct {
	Phase                Phase
	RegistrationWords    []string
	UserRepeatedWords    []string
	DelayedRecallAttempt []string
	InterveningIndex     int
	Dynamic              map[string]Instance
	Scoring              *scoring.Engine
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		Phase:                s.Phase,
		RegistrationWords:    slices.Clone(s.RegistrationWords),
		UserRepeatedWords:    slices.Clone(s.UserRepeatedWords),
		DelayedRecallAttempt: slices.Clone(s.DelayedRecallAttempt),
		InterveningIndex:     s.InterveningIndex,
		Dynamic:              maps.Clone(s.Dynamic),
	}
	if c.Dynamic == nil {
		c.Dynamic = make(map[string]Instance)
	}
	if s.Scoring != nil {
		c.Scoring = s.Scoring.Clone()
	} else {
		c.Scoring = scoring.NewEngine()
	}
	return c
}

// Turn is the outcome of one HandleTurn call.
type Turn struct {
	State     *State           `json:"-"`
	AgentText string           `json:"agent_text"`
	Phase     Phase            `json:"phase"`
	Scores    scoring.Snapshot `json:"scores"`
	Done      bool             `json:"done"`
}
