package frpei

import (
	"context"
)

// EnrichmentStore persists per-candidate enrichment rows.
type EnrichmentStore interface {
	// Save stores the entities and topics attached to a candidate.
	Save(ctx context.Context, candidateID string, entities, topics []string) error

	// ByCandidateID retrieves stored enrichment for a candidate.
	ByCandidateID(ctx context.Context, candidateID string) (entities, topics []string, err error)
}

// RankLogStore persists per-candidate rank breakdowns for explained
// requests.
type RankLogStore interface {
	// Save stores the score and contributions of one ranked candidate.
	Save(ctx context.Context, query string, ranked Ranked) error
}

// FeedbackStore persists relevance judgements.
type FeedbackStore interface {
	// Save stores one judgement.
	Save(ctx context.Context, f Feedback) error

	// ByQuery retrieves judgements for a query.
	ByQuery(ctx context.Context, query string) ([]Feedback, error)
}
