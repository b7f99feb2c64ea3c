package frpei

import (
	"sort"
)

// Signals are the per-candidate ranking inputs, each in [0,1].
type Signals struct {
	ProviderTrust float64
	Relevance     float64
	Freshness     float64
	Popularity    float64
	EntityMatch   float64
	UserAffinity  float64
}

// Union merges two signal sets by taking the stronger value per signal.
func (s Signals) Union(other Signals) Signals {
	return Signals{
		ProviderTrust: max64(s.ProviderTrust, other.ProviderTrust),
		Relevance:     max64(s.Relevance, other.Relevance),
		Freshness:     max64(s.Freshness, other.Freshness),
		Popularity:    max64(s.Popularity, other.Popularity),
		EntityMatch:   max64(s.EntityMatch, other.EntityMatch),
		UserAffinity:  max64(s.UserAffinity, other.UserAffinity),
	}
}

// Weights configure the linear ranking combination.
type Weights struct {
	ProviderTrust float64
	Relevance     float64
	Freshness     float64
	Popularity    float64
	EntityMatch   float64
	UserAffinity  float64
}

// DefaultWeights favor relevance, with trust and freshness as the main
// tiebreakers.
func DefaultWeights() Weights {
	return Weights{
		ProviderTrust: 0.15,
		Relevance:     0.40,
		Freshness:     0.15,
		Popularity:    0.10,
		EntityMatch:   0.15,
		UserAffinity:  0.05,
	}
}

// Contribution is one signal's share of a candidate's final score.
type Contribution struct {
	Signal string
	Value  float64
}

// Ranked pairs a candidate with its final score and, when explaining, the
// top contributing signals.
type Ranked struct {
	Candidate Candidate
	Score     float64
	Why       []Contribution
}

// Ranker scores candidates by a weighted linear combination of signals.
type Ranker struct {
	weights Weights
}

// NewRanker creates a Ranker.
func NewRanker(weights Weights) Ranker {
	return Ranker{weights: weights}
}

// Score computes the weighted combination for one signal set.
func (r Ranker) Score(s Signals) float64 {
	return r.weights.ProviderTrust*s.ProviderTrust +
		r.weights.Relevance*s.Relevance +
		r.weights.Freshness*s.Freshness +
		r.weights.Popularity*s.Popularity +
		r.weights.EntityMatch*s.EntityMatch +
		r.weights.UserAffinity*s.UserAffinity
}

// Rank scores and sorts candidates descending. When explain is set, each
// result carries its contributions sorted by share.
func (r Ranker) Rank(candidates []Candidate, explain bool) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		ranked := Ranked{Candidate: c, Score: r.Score(c.Signals())}
		if explain {
			ranked.Why = r.contributions(c.Signals())
		}
		out = append(out, ranked)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Candidate.CanonicalURL() < out[j].Candidate.CanonicalURL()
	})
	return out
}

func (r Ranker) contributions(s Signals) []Contribution {
	all := []Contribution{
		{Signal: "provider_trust", Value: r.weights.ProviderTrust * s.ProviderTrust},
		{Signal: "relevance", Value: r.weights.Relevance * s.Relevance},
		{Signal: "freshness", Value: r.weights.Freshness * s.Freshness},
		{Signal: "popularity", Value: r.weights.Popularity * s.Popularity},
		{Signal: "entity_match", Value: r.weights.EntityMatch * s.EntityMatch},
		{Signal: "user_affinity", Value: r.weights.UserAffinity * s.UserAffinity},
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Value > all[j].Value })

	var why []Contribution
	for _, c := range all {
		if c.Value > 0 {
			why = append(why, c)
		}
	}
	return why
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
