// Package scoring accumulates per-domain points and derives percentages and
// categories for an assessment.
package scoring

import "math"

// Fixed domains used by the three-word registration and recall tasks.
const (
	DomainRegistration = "three_word_registration"
	DomainRecall       = "delayed_recall"

	// OverallKey is the synthesized snapshot entry summing every domain.
	OverallKey = "overall"

	threeWordMax = 3
)

// Category is a coarse label derived from a percentage.
type Category string

const (
	CategoryExcellent      Category = "Excellent"
	CategoryGood           Category = "Good"
	CategoryFair           Category = "Fair"
	CategoryNeedsAttention Category = "Needs Attention"
)

// CategoryFor maps a percentage to its category. A zero maximum always
// yields CategoryNeedsAttention.
func CategoryFor(percent float64, maxPoints int) Category {
	if maxPoints == 0 {
		return CategoryNeedsAttention
	}
	switch {
	case percent >= 85:
		return CategoryExcellent
	case percent >= 70:
		return CategoryGood
	case percent >= 50:
		return CategoryFair
	default:
		return CategoryNeedsAttention
	}
}

// DomainScore is the running total for one domain.
type DomainScore struct {
	ScoredPoints int
	MaxPoints    int
}

// Add accumulates points and maxPoints, clamping negatives to zero.
func (d *DomainScore) Add(points, maxPoints int) {
	d.ScoredPoints += max(0, points)
	d.MaxPoints += max(0, maxPoints)
}

// Percent returns ScoredPoints/MaxPoints*100, or 0 when MaxPoints is 0.
func (d DomainScore) Percent() float64 {
	return percentOf(d.ScoredPoints, d.MaxPoints)
}

// Category returns the category of the domain's own percentage.
func (d DomainScore) Category() Category {
	return CategoryFor(d.Percent(), d.MaxPoints)
}

// Entry is one row of a Snapshot.
type Entry struct {
	Points    int      `json:"points"`
	MaxPoints int      `json:"max_points"`
	Percent   float64  `json:"percent"`
	Category  Category `json:"category"`
}

// Snapshot is a read-only rendering of all domains plus OverallKey.
type Snapshot map[string]Entry

// Overall returns the synthesized overall entry.
func (s Snapshot) Overall() Entry {
	return s[OverallKey]
}

// Engine owns the per-domain accumulators of a single session. It is not
// safe for concurrent use; callers serialize access per session.
type Engine struct {
	domains map[string]*DomainScore
	order   []string
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{domains: make(map[string]*DomainScore)}
}

// AddScore adds points to domain, creating it on first use. Points above
// maxPoints are accepted as given.
func (e *Engine) AddScore(domain string, points, maxPoints int) {
	if e.domains == nil {
		e.domains = make(map[string]*DomainScore)
	}
	d, ok := e.domains[domain]
	if !ok {
		d = &DomainScore{}
		e.domains[domain] = d
		e.order = append(e.order, domain)
	}
	d.Add(points, maxPoints)
}

// AddThreeWordRegistration records the immediate repetition of the three words.
func (e *Engine) AddThreeWordRegistration(correct int) {
	e.AddScore(DomainRegistration, correct, threeWordMax)
}

// AddThreeWordRecall records the delayed recall of the three words.
func (e *Engine) AddThreeWordRecall(correct int) {
	e.AddScore(DomainRecall, correct, threeWordMax)
}

// Domain returns the accumulator for domain and whether it exists.
func (e *Engine) Domain(domain string) (DomainScore, bool) {
	d, ok := e.domains[domain]
	if !ok {
		return DomainScore{}, false
	}
	return *d, true
}

// Domains returns domain names in the order they were first scored.
func (e *Engine) Domains() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Snapshot renders every domain plus the overall totals. It does not modify
// the engine.
func (e *Engine) Snapshot() Snapshot {
	out := make(Snapshot, len(e.domains)+1)
	var totalPoints, totalMax int
	for name, d := range e.domains {
		out[name] = entryFor(d.ScoredPoints, d.MaxPoints)
		totalPoints += d.ScoredPoints
		totalMax += d.MaxPoints
	}
	out[OverallKey] = entryFor(totalPoints, totalMax)
	return out
}

// Clone returns a deep copy of the engine.
func (e *Engine) Clone() *Engine {
	c := &Engine{
		domains: make(map[string]*DomainScore, len(e.domains)),
		order:   make([]string, len(e.order)),
	}
	copy(c.order, e.order)
	for name, d := range e.domains {
		cp := *d
		c.domains[name] = &cp
	}
	return c
}

func entryFor(points, maxPoints int) Entry {
	p := percentOf(points, maxPoints)
	return Entry{
		Points:    points,
		MaxPoints: maxPoints,
		Percent:   round2(p),
		Category:  CategoryFor(p, maxPoints),
	}
}

func percentOf(points, maxPoints int) float64 {
	if maxPoints == 0 {
		return 0
	}
	return float64(points) / float64(maxPoints) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
