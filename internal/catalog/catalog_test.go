package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Len() != 4 {
		t.Fatalf("expected 4 default questions, got %d", c.Len())
	}
	if got := c.RegistrationWords(); !reflect.DeepEqual(got, []string{"APPLE", "TABLE", "PENNY"}) {
		t.Errorf("registration words = %v", got)
	}
	q, ok := c.Question(3)
	if !ok {
		t.Fatal("expected question 3")
	}
	want := MathSubtract{StartMin: 90, StartMax: 120, Decrement: 7}
	if q.Strategy != want {
		t.Errorf("attention strategy = %#v, want %#v", q.Strategy, want)
	}
	first, _ := c.Question(0)
	if first.Kind() != KindKeyword {
		t.Errorf("first question kind = %q, want keyword", first.Kind())
	}
}

func TestLoad_EmptyOrMissingPathUsesDefault(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "nope.json")} {
		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", path, err)
		}
		if c.Len() != Default().Len() {
			t.Errorf("Load(%q) returned %d questions", path, c.Len())
		}
	}
}

func TestLoad_JSONList(t *testing.T) {
	path := writeFile(t, "questions.json", `[
		{"id": "q1", "domain": "attention", "prompt": "Subtract.", "max_points": 1, "keywords": [],
		 "qtype": "math_subtract", "params": {"start_min": 100, "start_max": 100, "decrement": 7}},
		{"id": "q2", "domain": "attention", "prompt": "What is 2 plus 3?", "max_points": 1, "keywords": [],
		 "qtype": "math_add", "params": {"a": 2, "b": 3}},
		{"id": "q3", "domain": "attention", "prompt": "Repeat 7 4 2.", "max_points": 3, "keywords": [],
		 "qtype": "repeat_digits", "params": {"sequence": [7, "4", 2]}},
		{"id": "q4", "domain": "judgement", "prompt": "Is ice cold?", "max_points": 1, "keywords": [],
		 "qtype": "yes_no", "params": {"expected": 0}},
		{"id": "q5", "domain": "language", "prompt": "Describe your morning.", "max_points": 2, "keywords": [],
		 "qtype": "free_speech_min_words", "params": {"min_words": 8}},
		{"id": "q6", "domain": "executive", "prompt": "Plan a trip.", "max_points": 2, "keywords": [],
		 "qtype": "planning_keywords", "params": {"keywords": ["ticket", "bag"]}},
		{"id": "q7", "domain": "orientation", "prompt": "Which city?", "max_points": 1, "keywords": ["PARIS"], "qtype": null}
	]`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []Strategy{
		MathSubtract{StartMin: 100, StartMax: 100, Decrement: 7},
		MathAdd{A: 2, B: 3},
		RepeatDigits{Sequence: []string{"7", "4", "2"}},
		YesNo{ExpectYes: false},
		FreeSpeech{MinWords: 8},
		PlanningKeywords{Keywords: []string{"ticket", "bag"}},
		KeywordMatch{},
	}
	for i, w := range want {
		q, _ := c.Question(i)
		if !reflect.DeepEqual(q.Strategy, w) {
			t.Errorf("question %d strategy = %#v, want %#v", i, q.Strategy, w)
		}
	}
}

func TestLoad_YAMLDocument(t *testing.T) {
	path := writeFile(t, "questions.yaml", `
registration_words: [river, nation, finger]
questions:
  - id: q1
    domain: attention
    prompt: Subtract seven.
    max_points: 1
    qtype: math_subtract
  - id: q2
    domain: judgement
    prompt: Is the sky green?
    max_points: 1
    qtype: yes_no
    params:
      expected: "no"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := c.RegistrationWords(); !reflect.DeepEqual(got, []string{"RIVER", "NATION", "FINGER"}) {
		t.Errorf("registration words = %v", got)
	}
	q, _ := c.Question(0)
	if q.Strategy != (MathSubtract{StartMin: 90, StartMax: 120, Decrement: 7}) {
		t.Errorf("defaults not applied: %#v", q.Strategy)
	}
	q, _ = c.Question(1)
	if q.Strategy != (YesNo{ExpectYes: false}) {
		t.Errorf("yes_no strategy = %#v", q.Strategy)
	}
}

func TestLoad_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
		index   int
	}{
		{
			name:    "missing max_points",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p"}]`,
			wantErr: ErrMissingField,
			index:   0,
		},
		{
			name:    "missing id in second record",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1}, {"domain": "d", "prompt": "p", "max_points": 1}]`,
			wantErr: ErrMissingField,
			index:   1,
		},
		{
			name:    "empty prompt",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "  ", "max_points": 1}]`,
			wantErr: ErrMissingField,
			index:   0,
		},
		{
			name:    "negative max_points",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": -1}]`,
			wantErr: ErrInvalidField,
			index:   0,
		},
		{
			name:    "duplicate id",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1}, {"id": "a", "domain": "d", "prompt": "p", "max_points": 1}]`,
			wantErr: ErrDuplicateID,
			index:   1,
		},
		{
			name:    "reserved domain",
			file:    "q.json",
			content: `[{"id": "a", "domain": "overall", "prompt": "p", "max_points": 1}]`,
			wantErr: ErrReservedDomain,
			index:   0,
		},
		{
			name:    "unknown qtype",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1, "qtype": "math_divide"}]`,
			wantErr: ErrUnknownKind,
			index:   0,
		},
		{
			name:    "non-integer param",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1, "qtype": "math_subtract", "params": {"decrement": 1.5}}]`,
			wantErr: ErrInvalidParam,
			index:   0,
		},
		{
			name:    "inverted range",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1, "qtype": "math_subtract", "params": {"start_min": 10, "start_max": 5}}]`,
			wantErr: ErrInvalidParam,
			index:   0,
		},
		{
			name:    "start range too wide",
			file:    "q.yml",
			content: "- id: a\n  domain: d\n  prompt: p\n  max_points: 1\n  qtype: math_subtract\n  params:\n    start_min: -9223372036854775807\n    start_max: 9223372036854775807\n",
			wantErr: ErrInvalidParam,
			index:   0,
		},
		{
			name:    "decrement out of range",
			file:    "q.yml",
			content: "- id: a\n  domain: d\n  prompt: p\n  max_points: 1\n  qtype: math_subtract\n  params:\n    decrement: 4294967296\n",
			wantErr: ErrInvalidParam,
			index:   0,
		},
		{
			name:    "bad yes_no expectation",
			file:    "q.yml",
			content: "- id: a\n  domain: d\n  prompt: p\n  max_points: 1\n  qtype: yes_no\n  params:\n    expected: maybe\n",
			wantErr: ErrInvalidParam,
			index:   0,
		},
		{
			name:    "non-digit sequence",
			file:    "q.json",
			content: `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1, "qtype": "repeat_digits", "params": {"sequence": ["7", "x"]}}]`,
			wantErr: ErrInvalidParam,
			index:   0,
		},
		{
			name:    "wrong registration word count",
			file:    "q.json",
			content: `{"registration_words": ["A", "B"], "questions": []}`,
			wantErr: ErrRegistrationWords,
			index:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			c, err := Load(path)
			if err == nil {
				t.Fatalf("expected error, got catalog with %d questions", c.Len())
			}
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %T: %v", err, err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if le.Index != tt.index {
				t.Errorf("index = %d, want %d", le.Index, tt.index)
			}
			if le.Path != path {
				t.Errorf("path = %q, want %q", le.Path, path)
			}
		})
	}
}

func TestLoad_RejectsUnknownFieldsAndSyntax(t *testing.T) {
	for name, content := range map[string]string{
		"unknown field": `[{"id": "a", "domain": "d", "prompt": "p", "max_points": 1, "weight": 2}]`,
		"syntax":        `[{"id": "a",`,
		"empty":         ``,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "q.json", content))
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
		})
	}
}

func TestNew_EmptyBatteryIsValid(t *testing.T) {
	c, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
	if _, ok := c.Question(0); ok {
		t.Error("expected no question at index 0")
	}
}
