package conversation

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/ashureev/cogcheck/internal/catalog"
	"github.com/ashureev/cogcheck/internal/scoring"
	"github.com/ashureev/cogcheck/internal/textnorm"
)

const (
	openingText = "Hello, I'm your assistant. We'll do a short memory and thinking check. Ready to begin?"
	recallText  = "Now, please tell me the three words I asked you to remember."
	closingText = "That completes our check. Thank you for your time, and take care."
)

// Machine runs the interview script over a shared, read-only catalog. It is
// safe for concurrent use by many sessions; a single State must not be
// passed to concurrent HandleTurn calls.
type Machine struct {
	catalog *catalog.Catalog

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Option configures a Machine.
type Option func(*Machine)

// WithRand sets the random source used for dynamic question generation.
func WithRand(src rand.Source) Option {
	return func(m *Machine) {
		m.rng = rand.New(src)
	}
}

// WithSeed makes dynamic question generation reproducible.
func WithSeed(seed uint64) Option {
	return WithRand(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewMachine creates a machine for cat. Without WithRand or WithSeed the
// generator is seeded randomly.
func NewMachine(cat *catalog.Catalog, opts ...Option) *Machine {
	m := &Machine{catalog: cat}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m
}

// Catalog returns the battery the machine runs.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// NewState returns a fresh session state in the greeting phase.
func (m *Machine) NewState() *State {
	return &State{
		Phase:   PhaseGreeting,
		Dynamic: make(map[string]Instance),
		Scoring: scoring.NewEngine(),
	}
}

// OpeningPrompt is the fixed greeting sent when a session is created.
func OpeningPrompt() string {
	return openingText
}

// OpeningPrompt returns the package-level greeting.
func (m *Machine) OpeningPrompt() string {
	return openingText
}

// HandleTurn advances state by one user turn. The given state is left
// untouched; the successor is returned in Turn.State.
func (m *Machine) HandleTurn(state *State, userText string) (Turn, error) {
	if state == nil {
		return Turn{}, ErrNilState
	}
	if !state.Phase.Valid() {
		return Turn{}, &InvalidPhaseError{Phase: state.Phase}
	}

	next := state.Clone()
	var text string
	switch next.Phase {
	case PhaseGreeting:
		text = m.presentRegistration(next)
	case PhaseRegistrationPresent:
		text = m.scoreRegistration(next, userText)
	case PhaseRegistrationRepeat, PhaseIntervening:
		text = m.answerIntervening(next, userText)
	case PhaseDelayedRecall:
		text = scoreRecall(next, userText)
	case PhaseSummary:
		next.Phase = PhaseDone
		text = closingText
	case PhaseDone:
		text = ""
	}

	return Turn{
		State:     next,
		AgentText: text,
		Phase:     next.Phase,
		Scores:    next.Scoring.Snapshot(),
		Done:      next.Phase == PhaseDone,
	}, nil
}

func (m *Machine) presentRegistration(s *State) string {
	s.RegistrationWords = m.catalog.RegistrationWords()
	s.Phase = PhaseRegistrationPresent
	return fmt.Sprintf("Please remember these three words: %s. Now, please repeat them back to me.",
		strings.Join(s.RegistrationWords, ", "))
}

func (m *Machine) scoreRegistration(s *State, userText string) string {
	s.UserRepeatedWords = parseWords(userText)
	s.Scoring.AddThreeWordRegistration(countRecalled(s.RegistrationWords, s.UserRepeatedWords))
	// registration_repeat collapses into intervening: the first question is
	// asked in this same turn.
	s.Phase = PhaseIntervening
	return m.promptNext(s)
}

func (m *Machine) answerIntervening(s *State, userText string) string {
	s.Phase = PhaseIntervening
	i := s.InterveningIndex
	if q, ok := m.catalog.Question(i); ok {
		points := scoreAnswer(q, i, s.Dynamic, userText)
		s.Scoring.AddScore(q.Domain, points, q.MaxPoints)
		s.InterveningIndex = i + 1
	}
	return m.promptNext(s)
}

func (m *Machine) promptNext(s *State) string {
	q, ok := m.catalog.Question(s.InterveningIndex)
	if !ok {
		s.Phase = PhaseDelayedRecall
		return recallText
	}
	return m.generatePrompt(q, s.InterveningIndex, s.Dynamic)
}

func scoreRecall(s *State, userText string) string {
	s.DelayedRecallAttempt = parseWords(userText)
	s.Scoring.AddThreeWordRecall(countRecalled(s.RegistrationWords, s.DelayedRecallAttempt))
	s.Phase = PhaseSummary
	return summaryText(s.Scoring.Snapshot())
}

func summaryText(snap scoring.Snapshot) string {
	o := snap.Overall()
	return fmt.Sprintf("Thanks for completing the check. Here is a quick summary of your results: "+
		"%d of %d points overall (%.2f%%, %s).", o.Points, o.MaxPoints, o.Percent, o.Category)
}

// intBetween draws uniformly from [lo, hi].
func (m *Machine) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo + m.rng.IntN(hi-lo+1)
}

// parseWords splits on whitespace and commas and upper-cases each token.
func parseWords(text string) []string {
	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, textnorm.Upper(f))
	}
	return out
}

// countRecalled counts target words present anywhere in said.
func countRecalled(target, said []string) int {
	n := 0
	for _, w := range target {
		if slices.Contains(said, w) {
			n++
		}
	}
	return n
}
