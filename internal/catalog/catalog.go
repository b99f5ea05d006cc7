package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ashureev/cogcheck/internal/scoring"
	"github.com/ashureev/cogcheck/internal/textnorm"
)

var (
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidField      = errors.New("invalid field")
	ErrInvalidParam      = errors.New("invalid strategy parameter")
	ErrUnknownKind       = errors.New("unknown qtype")
	ErrDuplicateID       = errors.New("duplicate question id")
	ErrReservedDomain    = errors.New("reserved domain name")
	ErrRegistrationWords = errors.New("registration words must be exactly 3 non-empty words")
)

// DefaultRegistrationWords is the word list used when a catalog does not
// configure its own.
var DefaultRegistrationWords = []string{"APPLE", "TABLE", "PENNY"}

// LoadError reports a catalog that cannot be used. Index is the offending
// question position, or -1 for document-level problems.
type LoadError struct {
	Path  string
	Index int
	ID    string
	Err   error
}

func (e *LoadError) Error() string {
	src := e.Path
	if src == "" {
		src = "<built-in>"
	}
	if e.Index < 0 {
		return fmt.Sprintf("load catalog %s: %v", src, e.Err)
	}
	if e.ID != "" {
		return fmt.Sprintf("load catalog %s: question %d (%s): %v", src, e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("load catalog %s: question %d: %v", src, e.Index, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Catalog is an immutable, ordered question battery plus the three words used
// for registration and delayed recall. It is safe to share between sessions.
type Catalog struct {
	questions         []Question
	registrationWords []string
}

// New validates questions and words and returns a catalog. A nil or empty
// words slice selects DefaultRegistrationWords.
func New(questions []Question, words []string) (*Catalog, error) {
	if len(words) == 0 {
		words = DefaultRegistrationWords
	}
	normalized, err := normalizeWords(words)
	if err != nil {
		return nil, &LoadError{Index: -1, Err: err}
	}

	seen := make(map[string]struct{}, len(questions))
	qs := make([]Question, len(questions))
	for i, q := range questions {
		if err := validateQuestion(q); err != nil {
			return nil, &LoadError{Index: i, ID: q.ID, Err: err}
		}
		if _, dup := seen[q.ID]; dup {
			return nil, &LoadError{Index: i, ID: q.ID, Err: ErrDuplicateID}
		}
		seen[q.ID] = struct{}{}
		if q.Strategy == nil {
			q.Strategy = KeywordMatch{}
		}
		qs[i] = q
	}

	return &Catalog{questions: qs, registrationWords: normalized}, nil
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Question returns the question at index i.
func (c *Catalog) Question(i int) (Question, bool) {
	if i < 0 || i >= len(c.questions) {
		return Question{}, false
	}
	return c.questions[i], true
}

// Questions returns the battery in order.
func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// RegistrationWords returns the upper-cased words to remember.
func (c *Catalog) RegistrationWords() []string {
	out := make([]string, len(c.registrationWords))
	copy(out, c.registrationWords)
	return out
}

func normalizeWords(words []string) ([]string, error) {
	if len(words) != 3 {
		return nil, ErrRegistrationWords
	}
	out := make([]string, len(words))
	for i, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || strings.ContainsAny(w, " \t\n,") {
			return nil, ErrRegistrationWords
		}
		out[i] = textnorm.Upper(w)
	}
	return out, nil
}

func validateQuestion(q Question) error {
	switch {
	case strings.TrimSpace(q.ID) == "":
		return fmt.Errorf("%w: id", ErrMissingField)
	case strings.TrimSpace(q.Domain) == "":
		return fmt.Errorf("%w: domain", ErrMissingField)
	case strings.TrimSpace(q.Prompt) == "":
		return fmt.Errorf("%w: prompt", ErrMissingField)
	case q.MaxPoints < 0:
		return fmt.Errorf("%w: max_points must be >= 0, got %d", ErrInvalidField, q.MaxPoints)
	case q.Domain == scoring.OverallKey:
		return fmt.Errorf("%w: %q", ErrReservedDomain, q.Domain)
	}

	switch s := q.Strategy.(type) {
	case nil, KeywordMatch, MathAdd, YesNo:
		return nil
	case MathSubtract:
		for _, p := range []struct {
			name string
			v    int
		}{{"start_min", s.StartMin}, {"start_max", s.StartMax}, {"decrement", s.Decrement}} {
			if p.v < -math.MaxInt32 || p.v > math.MaxInt32 {
				return fmt.Errorf("%w: %s %d out of range", ErrInvalidParam, p.name, p.v)
			}
		}
		if s.StartMin > s.StartMax {
			return fmt.Errorf("%w: start_min %d > start_max %d", ErrInvalidParam, s.StartMin, s.StartMax)
		}
	case RepeatDigits:
		for _, d := range s.Sequence {
			if d == "" || strings.Trim(d, "0123456789") != "" {
				return fmt.Errorf("%w: sequence entry %q is not a digit string", ErrInvalidParam, d)
			}
		}
	case FreeSpeech:
		if s.MinWords < 0 {
			return fmt.Errorf("%w: min_words must be >= 0, got %d", ErrInvalidParam, s.MinWords)
		}
	case PlanningKeywords:
		for _, k := range s.Keywords {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: empty keyword", ErrInvalidParam)
			}
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, s)
	}
	return nil
}
