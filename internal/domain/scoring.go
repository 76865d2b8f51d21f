package domain

import (
	"math"
	"sort"
)

// ScoringConfig holds the weights and thresholds of the confidence score.
// It is passed to NewScorer at construction and never mutated afterwards, so
// tests can inject alternate weight sets. Component weights should sum to
// 1.0; the scorer does not renormalize.
type ScoringConfig struct {
	DistanceWeight float64
	BearingWeight  float64
	SourceWeight   float64
	MetadataWeight float64

	// Distance component: full score at or under FullScoreDistanceM meters,
	// exponential decay with rate DistanceDecay beyond it.
	FullScoreDistanceM float64
	DistanceDecay      float64

	// Bearing component: full score at or under BearingFullDeg of angular
	// difference, zero at or over BearingZeroDeg, linear in between.
	// BearingNeutral is used when the request carried no heading.
	BearingFullDeg float64
	BearingZeroDeg float64
	BearingNeutral float64

	// Reliability encodes observed provider data quality per source.
	// Sources not present in the map fall back to UnknownReliability.
	Reliability        map[Source]float64
	UnknownReliability float64

	// Metadata component: NameScore for a named candidate plus RatingScore
	// when a rating is present, capped at 1.0.
	NameScore   float64
	RatingScore float64
}

// DefaultScoringConfig returns the production scoring parameters.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		DistanceWeight: 0.40,
		BearingWeight:  0.30,
		SourceWeight:   0.20,
		MetadataWeight: 0.10,

		FullScoreDistanceM: 10,
		DistanceDecay:      0.05,

		BearingFullDeg: 15,
		BearingZeroDeg: 90,
		BearingNeutral: 0.5,

		Reliability: map[Source]float64{
			SourceFoursquare: 1.0,
			SourceMapbox:     0.8,
			SourceNominatim:  0.6,
			SourceCache:      0.7,
		},
		UnknownReliability: 0.5,

		NameScore:   0.6,
		RatingScore: 0.4,
	}
}

// Scorer computes candidate confidence scores from distance, heading
// alignment, source reliability, and metadata completeness.
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer creates a Scorer with the given configuration.
func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Confidence maps the scoring inputs to a percentage in [0,100], rounded to
// two decimal places. A nil bearingDiff means no heading was supplied and
// the bearing component scores neutral. Deterministic: identical inputs
// always yield the identical output.
func (s *Scorer) Confidence(distanceM float64, bearingDiff *float64, source Source, hasName, hasRating bool) float64 {
	sum := s.cfg.DistanceWeight*s.distanceScore(distanceM) +
		s.cfg.BearingWeight*s.bearingScore(bearingDiff) +
		s.cfg.SourceWeight*s.sourceScore(source) +
		s.cfg.MetadataWeight*s.metadataScore(hasName, hasRating)

	return math.Round(sum*100*100) / 100
}

// Score fills in a candidate's confidence from its own computed fields.
func (s *Scorer) Score(c *Candidate) {
	c.Confidence = s.Confidence(c.Distance, c.BearingDiff, c.Source, c.HasName(), c.HasRating())
}

func (s *Scorer) distanceScore(d float64) float64 {
	if d <= s.cfg.FullScoreDistanceM {
		return 1.0
	}
	v := math.Exp(-s.cfg.DistanceDecay * (d - s.cfg.FullScoreDistanceM))
	return clamp01(v)
}

func (s *Scorer) bearingScore(diff *float64) float64 {
	if diff == nil {
		return s.cfg.BearingNeutral
	}
	switch {
	case *diff <= s.cfg.BearingFullDeg:
		return 1.0
	case *diff >= s.cfg.BearingZeroDeg:
		return 0.0
	default:
		return 1.0 - (*diff-s.cfg.BearingFullDeg)/(s.cfg.BearingZeroDeg-s.cfg.BearingFullDeg)
	}
}

func (s *Scorer) sourceScore(source Source) float64 {
	if w, ok := s.cfg.Reliability[source]; ok {
		return w
	}
	return s.cfg.UnknownReliability
}

func (s *Scorer) metadataScore(hasName, hasRating bool) float64 {
	v := 0.0
	if hasName {
		v += s.cfg.NameScore
	}
	if hasRating {
		v += s.cfg.RatingScore
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortByConfidence orders candidates by descending confidence. The sort is
// stable: equal scores keep their insertion order.
func SortByConfidence(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
}
