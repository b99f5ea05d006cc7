package conversation

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ashureev/cogcheck/internal/catalog"
	"github.com/ashureev/cogcheck/internal/textnorm"
)

var (
	signedIntPattern = regexp.MustCompile(`-?\d+`)
	digitsPattern    = regexp.MustCompile(`\d+`)
	wordPattern      = regexp.MustCompile(`[\p{L}\p{N}_]+`)

	yesWords = []string{"yes", "yeah", "yep", "ya", "sure"}
	noWords  = []string{"no", "nope"}
)

// generatePrompt returns the text for question q at intervening slot idx,
// recording any generated instance in dynamic.
func (m *Machine) generatePrompt(q catalog.Question, idx int, dynamic map[string]Instance) string {
	switch st := q.Strategy.(type) {
	case catalog.MathSubtract:
		start := m.intBetween(st.StartMin, st.StartMax)
		dynamic[NamespaceMath] = Instance{
			QuestionIndex: idx,
			Start:         start,
			Decrement:     st.Decrement,
			Answer:        start - st.Decrement,
		}
		return fmt.Sprintf("Please subtract %d from %d and tell me the result.", st.Decrement, start)
	case catalog.MathAdd:
		dynamic[NamespaceMathAdd] = Instance{
			QuestionIndex: idx,
			A:             st.A,
			B:             st.B,
			Answer:        st.A + st.B,
		}
		return q.Prompt
	default:
		return q.Prompt
	}
}

// scoreAnswer returns the points earned by userText for question q at slot idx.
func scoreAnswer(q catalog.Question, idx int, dynamic map[string]Instance, userText string) int {
	switch st := q.Strategy.(type) {
	case catalog.MathSubtract:
		return scoreNumeric(dynamic, NamespaceMath, idx, userText, q.MaxPoints)
	case catalog.MathAdd:
		return scoreNumeric(dynamic, NamespaceMathAdd, idx, userText, q.MaxPoints)
	case catalog.RepeatDigits:
		return min(countDigits(st.Sequence, userText), q.MaxPoints)
	case catalog.YesNo:
		if isYes(userText) == st.ExpectYes {
			return q.MaxPoints
		}
		return 0
	case catalog.FreeSpeech:
		if len(wordPattern.FindAllString(userText, -1)) >= st.MinWords {
			return q.MaxPoints
		}
		return 0
	case catalog.PlanningKeywords:
		return min(countKeywords(st.Keywords, userText), q.MaxPoints)
	case catalog.KeywordMatch, nil:
		return scoreKeywords(q.Keywords, userText, q.MaxPoints)
	default:
		return 0
	}
}

// scoreNumeric awards maxPoints when the first integer in userText equals
// the answer generated for this slot. Missing or stale instances earn 0.
func scoreNumeric(dynamic map[string]Instance, namespace string, idx int, userText string, maxPoints int) int {
	inst, ok := dynamic[namespace]
	if !ok || inst.QuestionIndex != idx {
		return 0
	}
	got, ok := firstInt(userText)
	if !ok || got != inst.Answer {
		return 0
	}
	return maxPoints
}

func firstInt(text string) (int, bool) {
	tok := signedIntPattern.FindString(text)
	if tok == "" {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}

// countDigits counts expected entries present among the digit tokens of
// text, ignoring order and multiplicity.
func countDigits(expected []string, text string) int {
	spoken := digitsPattern.FindAllString(text, -1)
	n := 0
	for _, d := range expected {
		if slices.Contains(spoken, d) {
			n++
		}
	}
	return n
}

// isYes is true when text contains a yes word and no no word.
func isYes(text string) bool {
	val := textnorm.Lower(strings.TrimSpace(text))
	return containsAny(val, yesWords) && !containsAny(val, noWords)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// countKeywords counts distinct keywords contained in text, case-insensitively.
func countKeywords(keywords []string, text string) int {
	upper := textnorm.Upper(text)
	seen := make(map[string]struct{}, len(keywords))
	n := 0
	for _, k := range keywords {
		k = textnorm.Upper(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if strings.Contains(upper, k) {
			n++
		}
	}
	return n
}

func scoreKeywords(keywords []string, text string, maxPoints int) int {
	if text == "" || len(keywords) == 0 {
		return 0
	}
	upper := textnorm.Upper(text)
	for _, k := range keywords {
		k = textnorm.Upper(k)
		if k != "" && strings.Contains(upper, k) {
			return maxPoints
		}
	}
	return 0
}
