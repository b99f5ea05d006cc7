package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parameter defaults applied when a strategy parameter is absent.
const (
	defaultStartMin  = 90
	defaultStartMax  = 120
	defaultDecrement = 7
	defaultMinWords  = 5
)

type rawQuestion struct {
	ID        *string        `json:"id" yaml:"id"`
	Domain    *string        `json:"domain" yaml:"domain"`
	Prompt    *string        `json:"prompt" yaml:"prompt"`
	MaxPoints *int           `json:"max_points" yaml:"max_points"`
	Keywords  []string       `json:"keywords" yaml:"keywords"`
	QType     *string        `json:"qtype" yaml:"qtype"`
	Params    map[string]any `json:"params" yaml:"params"`
}

type rawDocument struct {
	RegistrationWords []string      `json:"registration_words" yaml:"registration_words"`
	Questions         []rawQuestion `json:"questions" yaml:"questions"`
}

// Load reads a question file. An empty path or a file that does not exist
// yields Default. Any malformed record fails the whole load with *LoadError.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("Question file not found, using built-in battery", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Index: -1, Err: fmt.Errorf("read file: %w", err)}
	}

	c, err := Parse(data, formatFor(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Index: -1, Err: err}
	}

	slog.Info("Question catalog loaded", "path", path, "questions", c.Len())
	return c, nil
}

// Format selects the decoder used by Parse.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a catalog document. The document is either a list of
// question records or an object with registration_words and questions.
// Unknown fields are rejected.
func Parse(data []byte, format Format) (*Catalog, error) {
	var (
		doc rawDocument
		err error
	)
	switch format {
	case FormatYAML:
		doc, err = decodeYAML(data)
	default:
		doc, err = decodeJSON(data)
	}
	if err != nil {
		return nil, &LoadError{Index: -1, Err: err}
	}

	questions := make([]Question, len(doc.Questions))
	for i, rq := range doc.Questions {
		q, err := rq.toQuestion()
		if err != nil {
			id := ""
			if rq.ID != nil {
				id = *rq.ID
			}
			return nil, &LoadError{Index: i, ID: id, Err: err}
		}
		questions[i] = q
	}

	if doc.RegistrationWords != nil && len(doc.RegistrationWords) == 0 {
		return nil, &LoadError{Index: -1, Err: ErrRegistrationWords}
	}
	return New(questions, doc.RegistrationWords)
}

func decodeJSON(data []byte) (rawDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return rawDocument{}, errors.New("empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var doc rawDocument
	if trimmed[0] == '[' {
		if err := dec.Decode(&doc.Questions); err != nil {
			return rawDocument{}, fmt.Errorf("decode json: %w", err)
		}
		return doc, nil
	}
	if err := dec.Decode(&doc); err != nil {
		return rawDocument{}, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

func decodeYAML(data []byte) (rawDocument, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return rawDocument{}, fmt.Errorf("decode yaml: %w", err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return rawDocument{}, errors.New("empty document")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc rawDocument
	if node.Content[0].Kind == yaml.SequenceNode {
		if err := dec.Decode(&doc.Questions); err != nil {
			return rawDocument{}, fmt.Errorf("decode yaml: %w", err)
		}
		return doc, nil
	}
	if err := dec.Decode(&doc); err != nil {
		return rawDocument{}, fmt.Errorf("decode yaml: %w", err)
	}
	return doc, nil
}

func (rq rawQuestion) toQuestion() (Question, error) {
	if rq.ID == nil {
		return Question{}, fmt.Errorf("%w: id", ErrMissingField)
	}
	if rq.Domain == nil {
		return Question{}, fmt.Errorf("%w: domain", ErrMissingField)
	}
	if rq.Prompt == nil {
		return Question{}, fmt.Errorf("%w: prompt", ErrMissingField)
	}
	if rq.MaxPoints == nil {
		return Question{}, fmt.Errorf("%w: max_points", ErrMissingField)
	}

	kind := KindKeyword
	if rq.QType != nil {
		kind = Kind(strings.TrimSpace(*rq.QType))
	}
	strategy, err := strategyFor(kind, params(rq.Params))
	if err != nil {
		return Question{}, err
	}

	return Question{
		ID:        *rq.ID,
		Domain:    *rq.Domain,
		Prompt:    *rq.Prompt,
		MaxPoints: *rq.MaxPoints,
		Keywords:  rq.Keywords,
		Strategy:  strategy,
	}, nil
}

func strategyFor(kind Kind, p params) (Strategy, error) {
	switch kind {
	case KindKeyword:
		return KeywordMatch{}, nil
	case KindMathSubtract:
		startMin, err := p.int("start_min", defaultStartMin)
		if err != nil {
			return nil, err
		}
		startMax, err := p.int("start_max", defaultStartMax)
		if err != nil {
			return nil, err
		}
		dec, err := p.int("decrement", defaultDecrement)
		if err != nil {
			return nil, err
		}
		return MathSubtract{StartMin: startMin, StartMax: startMax, Decrement: dec}, nil
	case KindMathAdd:
		a, err := p.int("a", 0)
		if err != nil {
			return nil, err
		}
		b, err := p.int("b", 0)
		if err != nil {
			return nil, err
		}
		return MathAdd{A: a, B: b}, nil
	case KindRepeatDigits:
		seq, err := p.strings("sequence")
		if err != nil {
			return nil, err
		}
		return RepeatDigits{Sequence: seq}, nil
	case KindYesNo:
		expectYes, err := p.yesNo("expected", true)
		if err != nil {
			return nil, err
		}
		return YesNo{ExpectYes: expectYes}, nil
	case KindFreeSpeech:
		minWords, err := p.int("min_words", defaultMinWords)
		if err != nil {
			return nil, err
		}
		return FreeSpeech{MinWords: minWords}, nil
	case KindPlanningKeywords:
		kws, err := p.strings("keywords")
		if err != nil {
			return nil, err
		}
		return PlanningKeywords{Keywords: kws}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
}

// params reads loosely-typed strategy parameters as decoded from JSON
// (float64 numbers) or YAML (int numbers).
type params map[string]any

func (p params) int(key string, fallback int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidParam, key, v)
	}
	return n, nil
}

func (p params) strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidParam, key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		default:
			n, ok := toInt(x)
			if !ok {
				return nil, fmt.Errorf("%w: %s entry %v is not a string or integer", ErrInvalidParam, key, item)
			}
			out = append(out, strconv.Itoa(n))
		}
	}
	return out, nil
}

func (p params) yesNo(key string, fallback bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "true", "1":
			return true, nil
		case "no", "false", "0":
			return false, nil
		}
	default:
		if n, ok := toInt(x); ok && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	return false, fmt.Errorf("%w: %s must be yes/no, true/false or 0/1, got %v", ErrInvalidParam, key, v)
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint64:
		if x > math.MaxInt {
			return 0, false
		}
		return int(x), true
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	case json.Number:
		n, err := strconv.Atoi(x.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	default:
		return 0, false
	}
}
