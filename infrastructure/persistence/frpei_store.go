package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/internal/database"
)

// CandidateEnrichmentStore implements frpei.EnrichmentStore using GORM.
type CandidateEnrichmentStore struct {
	db database.Database
}

// NewCandidateEnrichmentStore creates a CandidateEnrichmentStore.
func NewCandidateEnrichmentStore(db database.Database) CandidateEnrichmentStore {
	return CandidateEnrichmentStore{db: db}
}

// Save stores the entities and topics attached to a candidate.
func (s CandidateEnrichmentStore) Save(ctx context.Context, candidateID string, entities, topics []string) error {
	model := CandidateEnrichmentModel{
		CandidateID: candidateID,
		Entities:    StringSlice(entities),
		Topics:      StringSlice(topics),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.db.Session(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("save candidate enrichment: %w", err)
	}
	return nil
}

// ByCandidateID retrieves stored enrichment for a candidate.
func (s CandidateEnrichmentStore) ByCandidateID(ctx context.Context, candidateID string) ([]string, []string, error) {
	var model CandidateEnrichmentModel
	err := s.db.Session(ctx).First(&model, "candidate_id = ?", candidateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: candidate enrichment", database.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("find candidate enrichment: %w", err)
	}
	return model.Entities, model.Topics, nil
}

// storedContribution is the JSON shape of one rank contribution.
type storedContribution struct {
	Signal string  `json:"signal"`
	Value  float64 `json:"value"`
}

// RankLogStore implements frpei.RankLogStore using GORM.
type RankLogStore struct {
	db database.Database
}

// NewRankLogStore creates a RankLogStore.
func NewRankLogStore(db database.Database) RankLogStore {
	return RankLogStore{db: db}
}

// Save stores the score and contributions of one ranked candidate.
func (s RankLogStore) Save(ctx context.Context, query string, ranked frpei.Ranked) error {
	contributions := make([]storedContribution, len(ranked.Why))
	for i, c := range ranked.Why {
		contributions[i] = storedContribution{Signal: c.Signal, Value: c.Value}
	}
	encoded, _ := json.Marshal(contributions)

	model := RankLogModel{
		Query:         query,
		CandidateID:   ranked.Candidate.ID(),
		Score:         ranked.Score,
		Contributions: string(encoded),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.Session(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("save rank log: %w", err)
	}
	return nil
}

// FeedbackStore implements frpei.FeedbackStore using GORM.
type FeedbackStore struct {
	database.Repository[frpei.Feedback, FeedbackModel]
}

// NewFeedbackStore creates a FeedbackStore.
func NewFeedbackStore(db database.Database) FeedbackStore {
	return FeedbackStore{
		Repository: database.NewRepository[frpei.Feedback, FeedbackModel](db, feedbackMapper{}, "feedback"),
	}
}

// Save stores one judgement.
func (s FeedbackStore) Save(ctx context.Context, f frpei.Feedback) error {
	model := feedbackMapper{}.ToModel(f)
	if result := s.DB(ctx).Create(&model); result.Error != nil {
		return fmt.Errorf("save feedback: %w", result.Error)
	}
	return nil
}

// ByQuery retrieves judgements for a query.
func (s FeedbackStore) ByQuery(ctx context.Context, query string) ([]frpei.Feedback, error) {
	return s.Find(ctx,
		storage.WithCondition("query", query),
		storage.WithOrderDesc("recorded_at"),
	)
}
