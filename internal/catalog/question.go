// Package catalog holds the ordered battery of assessment questions.
package catalog

// Kind is the wire tag ("qtype") selecting a question's strategy.
type Kind string

const (
	KindKeyword          Kind = ""
	KindMathSubtract     Kind = "math_subtract"
	KindMathAdd          Kind = "math_add"
	KindRepeatDigits     Kind = "repeat_digits"
	KindYesNo            Kind = "yes_no"
	KindFreeSpeech       Kind = "free_speech_min_words"
	KindPlanningKeywords Kind = "planning_keywords"
)

// Strategy is the closed set of prompt-generation and scoring strategies.
// Only types in this package implement it.
type Strategy interface {
	Kind() Kind
	sealed()
}

// KeywordMatch awards full points when any question keyword appears in the answer.
type KeywordMatch struct{}

// MathSubtract asks to subtract Decrement from a start drawn from [StartMin, StartMax].
type MathSubtract struct {
	StartMin  int
	StartMax  int
	Decrement int
}

// MathAdd checks the answer against A+B. The prompt is the question's static text.
type MathAdd struct {
	A int
	B int
}

// RepeatDigits awards one point per expected digit token found in the answer.
type RepeatDigits struct {
	Sequence []string
}

// YesNo compares a yes/no classification of the answer with ExpectYes.
type YesNo struct {
	ExpectYes bool
}

// FreeSpeech awards full points when the answer has at least MinWords words.
type FreeSpeech struct {
	MinWords int
}

// PlanningKeywords awards one point per distinct keyword found in the answer.
type PlanningKeywords struct {
	Keywords []string
}

func (KeywordMatch) Kind() Kind     { return KindKeyword }
func (MathSubtract) Kind() Kind     { return KindMathSubtract }
func (MathAdd) Kind() Kind          { return KindMathAdd }
func (RepeatDigits) Kind() Kind     { return KindRepeatDigits }
func (YesNo) Kind() Kind            { return KindYesNo }
func (FreeSpeech) Kind() Kind       { return KindFreeSpeech }
func (PlanningKeywords) Kind() Kind { return KindPlanningKeywords }

func (KeywordMatch) sealed()     {}
func (MathSubtract) sealed()     {}
func (MathAdd) sealed()          {}
func (RepeatDigits) sealed()     {}
func (YesNo) sealed()            {}
func (FreeSpeech) sealed()       {}
func (PlanningKeywords) sealed() {}

// Question is one item of the battery. Questions are never modified after load.
type Question struct {
	ID        string
	Domain    string
	Prompt    string
	MaxPoints int
	Keywords  []string
	Strategy  Strategy
}

// Kind returns the question's strategy tag.
func (q Question) Kind() Kind {
	if q.Strategy == nil {
		return KindKeyword
	}
	return q.Strategy.Kind()
}
