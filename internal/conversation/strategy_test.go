package conversation

import (
	"testing"

	"github.com/ashureev/cogcheck/internal/catalog"
)

func TestScoreAnswer(t *testing.T) {
	addDynamic := map[string]Instance{NamespaceMathAdd: {QuestionIndex: 2, A: 2, B: 3, Answer: 5}}

	tests := []struct {
		name    string
		q       catalog.Question
		idx     int
		dynamic map[string]Instance
		text    string
		want    int
	}{
		{
			name: "math_add correct",
			q:    catalog.Question{MaxPoints: 2, Strategy: catalog.MathAdd{A: 2, B: 3}},
			idx:  2, dynamic: addDynamic, text: "it's 5", want: 2,
		},
		{
			name: "math_add wrong",
			q:    catalog.Question{MaxPoints: 2, Strategy: catalog.MathAdd{A: 2, B: 3}},
			idx:  2, dynamic: addDynamic, text: "6", want: 0,
		},
		{
			name: "math_add stale instance",
			q:    catalog.Question{MaxPoints: 2, Strategy: catalog.MathAdd{A: 2, B: 3}},
			idx:  3, dynamic: addDynamic, text: "5", want: 0,
		},
		{
			name: "math_subtract missing instance",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.MathSubtract{StartMin: 1, StartMax: 1, Decrement: 1}},
			text: "0", want: 0,
		},
		{
			name:    "math_subtract negative answer",
			q:       catalog.Question{MaxPoints: 1, Strategy: catalog.MathSubtract{}},
			dynamic: map[string]Instance{NamespaceMath: {Start: 3, Decrement: 7, Answer: -4}},
			text:    "minus... -4", want: 1,
		},
		{
			name: "repeat_digits any order",
			q:    catalog.Question{MaxPoints: 3, Strategy: catalog.RepeatDigits{Sequence: []string{"7", "4", "2"}}},
			text: "2 7 4", want: 3,
		},
		{
			name: "repeat_digits partial",
			q:    catalog.Question{MaxPoints: 3, Strategy: catalog.RepeatDigits{Sequence: []string{"7", "4", "2"}}},
			text: "seven 4 and 9", want: 1,
		},
		{
			name: "repeat_digits duplicates need presence only",
			q:    catalog.Question{MaxPoints: 5, Strategy: catalog.RepeatDigits{Sequence: []string{"3", "3", "8"}}},
			text: "3 8", want: 3,
		},
		{
			name: "repeat_digits capped",
			q:    catalog.Question{MaxPoints: 2, Strategy: catalog.RepeatDigits{Sequence: []string{"1", "2", "3"}}},
			text: "1 2 3", want: 2,
		},
		{
			name: "yes_no yes sure",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.YesNo{ExpectYes: true}},
			text: "yes, sure", want: 1,
		},
		{
			name: "yes_no no way",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.YesNo{ExpectYes: true}},
			text: "no way", want: 0,
		},
		{
			name: "yes_no both keyword sets",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.YesNo{ExpectYes: true}},
			text: "yes but no", want: 0,
		},
		{
			name: "yes_no uppercase",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.YesNo{ExpectYes: true}},
			text: "YEAH", want: 1,
		},
		{
			name: "yes_no expected no",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.YesNo{ExpectYes: false}},
			text: "nope", want: 1,
		},
		{
			name: "yes_no ambiguous counts as not yes",
			q:    catalog.Question{MaxPoints: 1, Strategy: catalog.YesNo{ExpectYes: false}},
			text: "hmm", want: 1,
		},
		{
			name: "free speech enough words",
			q:    catalog.Question{MaxPoints: 2, Strategy: catalog.FreeSpeech{MinWords: 5}},
			text: "I had toast and coffee.", want: 2,
		},
		{
			name: "free speech too short",
			q:    catalog.Question{MaxPoints: 2, Strategy: catalog.FreeSpeech{MinWords: 5}},
			text: "toast, coffee", want: 0,
		},
		{
			name: "planning keywords distinct",
			q: catalog.Question{MaxPoints: 3, Strategy: catalog.PlanningKeywords{
				Keywords: []string{"ticket", "bag", "Ticket", "passport"},
			}},
			text: "Buy a TICKET, then pack my bag", want: 2,
		},
		{
			name: "planning keywords capped",
			q: catalog.Question{MaxPoints: 1, Strategy: catalog.PlanningKeywords{
				Keywords: []string{"ticket", "bag"},
			}},
			text: "ticket bag", want: 1,
		},
		{
			name: "default keyword match",
			q:    catalog.Question{MaxPoints: 1, Keywords: []string{"MONDAY", "TUESDAY"}, Strategy: catalog.KeywordMatch{}},
			text: "I believe it's monday", want: 1,
		},
		{
			name: "default keyword no match",
			q:    catalog.Question{MaxPoints: 1, Keywords: []string{"MONDAY"}},
			text: "friday", want: 0,
		},
		{
			name: "default empty response",
			q:    catalog.Question{MaxPoints: 1, Keywords: []string{"MONDAY"}},
			text: "", want: 0,
		},
		{
			name: "default empty keywords",
			q:    catalog.Question{MaxPoints: 1},
			text: "anything", want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dynamic := tt.dynamic
			if dynamic == nil {
				dynamic = map[string]Instance{}
			}
			if got := scoreAnswer(tt.q, tt.idx, dynamic, tt.text); got != tt.want {
				t.Errorf("scoreAnswer(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestGeneratePrompt_MathAddUsesStaticPrompt(t *testing.T) {
	m := newTestMachine(t)
	q := catalog.Question{Prompt: "What is 2 plus 3?", Strategy: catalog.MathAdd{A: 2, B: 3}}
	dynamic := map[string]Instance{}

	if got := m.generatePrompt(q, 4, dynamic); got != q.Prompt {
		t.Errorf("prompt = %q", got)
	}
	if inst := dynamic[NamespaceMathAdd]; inst.Answer != 5 || inst.QuestionIndex != 4 {
		t.Errorf("instance = %+v", inst)
	}
}

func TestParseWords(t *testing.T) {
	got := parseWords(" apple,table  penny,, ")
	want := []string{"APPLE", "TABLE", "PENNY"}
	if len(got) != len(want) {
		t.Fatalf("parseWords = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}
