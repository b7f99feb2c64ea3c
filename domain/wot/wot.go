// Package wot defines the web-of-trust scoring contract used to rerank
// search results by social proximity between the viewer and an author.
package wot

import (
	"context"
	"errors"
)

// Score range. UnreachedScore is the floor assigned to targets outside the
// viewer's reachable graph.
const (
	MinScore       = 0.0
	MaxScore       = 1.0
	UnreachedScore = 0.1
)

// MaxAmplification bounds score fusion: a perfect trust score can at most
// double a base relevance score.
const MaxAmplification = 2.0

// ErrNoViewer is returned when scoring is requested without a viewer
// pubkey in the request context.
var ErrNoViewer = errors.New("wot: no viewer pubkey")

// Provider computes trust scores between pubkeys.
type Provider interface {
	// Score returns the trust score of target as seen by viewer, in
	// [MinScore, MaxScore].
	Score(ctx context.Context, viewer, target string) (float64, error)

	// BatchScores returns scores for many targets in one call. Targets
	// missing from the result map are treated as UnreachedScore.
	BatchScores(ctx context.Context, viewer string, targets []string) (map[string]float64, error)
}

// FilterMode decides which candidates are dropped outright based on their
// trust score.
type FilterMode string

// Filter modes and their thresholds.
const (
	ModeStrict   FilterMode = "strict"
	ModeModerate FilterMode = "moderate"
	ModeOpen     FilterMode = "open"
)

// ParseFilterMode validates a filter mode string, defaulting to open.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case ModeStrict, ModeModerate, ModeOpen:
		return FilterMode(s), nil
	case "":
		return ModeOpen, nil
	}
	return "", errors.New("unknown wot filter mode: " + s)
}

// Threshold returns the minimum trust score the mode admits.
func (m FilterMode) Threshold() float64 {
	switch m {
	case ModeStrict:
		return 0.7
	case ModeModerate:
		return 0.3
	default:
		return 0
	}
}

// Admits reports whether a candidate with the given trust score survives
// the mode's filter.
func (m FilterMode) Admits(score float64) bool {
	return score >= m.Threshold()
}

// Adjust fuses a trust score into a base relevance score:
// base x (1 + weight x score), with amplification capped at 2x. Weights
// outside [0, 1] are clamped so the cap holds.
func Adjust(base, score, weight float64) float64 {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	factor := 1 + weight*score
	if factor > MaxAmplification {
		factor = MaxAmplification
	}
	return base * factor
}
