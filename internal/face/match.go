package face

import (
	"fmt"
	"math"
)

const (
	DefaultEuclideanTolerance = 0.6
	DefaultCosineThreshold    = 0.4
)

// Policy is a distance or similarity cutoff for one metric.
//
// Euclidean: a candidate qualifies when distance < Threshold.
// Cosine: a candidate qualifies when similarity > Threshold.
type Policy struct {
	Metric    Metric
	Threshold float64
}

// DefaultPolicy returns the stock cutoff for m.
func DefaultPolicy(m Metric) Policy {
	if m == MetricCosine {
		return Policy{Metric: MetricCosine, Threshold: DefaultCosineThreshold}
	}
	return Policy{Metric: MetricEuclidean, Threshold: DefaultEuclideanTolerance}
}

// Candidate is one gallery entry.
type Candidate struct {
	ID       string
	Encoding Encoding
}

// Match is the winning gallery entry.
type Match struct {
	ID    string
	Index int // position in the gallery slice
	// Measure is the raw distance (euclidean) or similarity (cosine).
	Measure float64
	// Score is the confidence: 1 - distance, or the similarity itself.
	Score  float64
	Metric Metric
}

// Matcher compares encodings under a single Policy.
type Matcher struct {
	policy Policy
}

// NewMatcher validates p and returns a Matcher for it.
func NewMatcher(p Policy) (*Matcher, error) {
	switch p.Metric {
	case MetricEuclidean:
		if p.Threshold <= 0 {
			return nil, fmt.Errorf("euclidean tolerance must be positive, got %v", p.Threshold)
		}
	case MetricCosine:
		if p.Threshold < -1 || p.Threshold >= 1 {
			return nil, fmt.Errorf("cosine threshold must be in [-1, 1), got %v", p.Threshold)
		}
	default:
		return nil, fmt.Errorf("unknown metric %q", p.Metric)
	}
	return &Matcher{policy: p}, nil
}

// Policy returns the matcher's policy.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Compare returns the raw measure between a and b.
func (m *Matcher) Compare(a, b Encoding) (float64, error) {
	if err := a.CompatibleWith(b); err != nil {
		return 0, err
	}
	if m.policy.Metric == MetricCosine {
		return CosineSimilarity(a.Vector, b.Vector), nil
	}
	return EuclideanDistance(a.Vector, b.Vector), nil
}

// Qualifies reports whether measure clears the policy cutoff.
func (m *Matcher) Qualifies(measure float64) bool {
	if m.policy.Metric == MetricCosine {
		return measure > m.policy.Threshold
	}
	return measure < m.policy.Threshold
}

// Identify searches the whole gallery (1:N) and returns the best qualifying
// candidate. Ties keep the earlier gallery entry.
func (m *Matcher) Identify(query Encoding, gallery []Candidate) (Match, error) {
	if len(gallery) == 0 {
		return Match{}, ErrEmptyGallery
	}

	best := Match{Index: -1}
	for i, c := range gallery {
		measure, err := m.Compare(query, c.Encoding)
		if err != nil {
			return Match{}, fmt.Errorf("compare with %q: %w", c.ID, err)
		}
		if !m.Qualifies(measure) {
			continue
		}
		if best.Index < 0 || m.better(measure, best.Measure) {
			best = m.match(i, c, measure)
		}
	}

	if best.Index < 0 {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

// Verify checks the query against the single claimed gallery entry (1:1).
// An identifier absent from the gallery is reported as ErrNoMatch.
func (m *Matcher) Verify(query Encoding, gallery []Candidate, id string) (Match, error) {
	if len(gallery) == 0 {
		return Match{}, ErrEmptyGallery
	}

	for i, c := range gallery {
		if c.ID != id {
			continue
		}
		measure, err := m.Compare(query, c.Encoding)
		if err != nil {
			return Match{}, fmt.Errorf("compare with %q: %w", c.ID, err)
		}
		if !m.Qualifies(measure) {
			return Match{}, fmt.Errorf("%w: %q did not clear the threshold", ErrNoMatch, id)
		}
		return m.match(i, c, measure), nil
	}
	return Match{}, fmt.Errorf("%w: %q is not registered", ErrNoMatch, id)
}

func (m *Matcher) better(a, b float64) bool {
	if m.policy.Metric == MetricCosine {
		return a > b
	}
	return a < b
}

func (m *Matcher) match(i int, c Candidate, measure float64) Match {
	score := measure
	if m.policy.Metric == MetricEuclidean {
		score = 1 - measure
	}
	return Match{
		ID:      c.ID,
		Index:   i,
		Measure: measure,
		Score:   score,
		Metric:  m.policy.Metric,
	}
}

// EuclideanDistance is the L2 norm of a-b. Lengths must match.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b)/(|a||b|) clamped to [-1, 1].
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, s))
}
