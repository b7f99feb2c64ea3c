package persistence

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/enrichment"
	"github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/domain/webhook"
)

// DocumentMapper maps between domain Document and DocumentModel.
type DocumentMapper struct{}

// ToDomain converts a DocumentModel to a domain Document.
func (m DocumentMapper) ToDomain(e DocumentModel) document.Document {
	var sourceID string
	if e.SourceID != nil {
		sourceID = *e.SourceID
	}
	var indexedAt, lastModified time.Time
	if e.IndexedAt != nil {
		indexedAt = *e.IndexedAt
	}
	if e.LastModified != nil {
		lastModified = *e.LastModified
	}
	return document.Reconstruct(
		e.ID,
		sourceID,
		e.ExternalID,
		e.Title,
		e.Content,
		e.URL,
		document.Type(e.DocumentType),
		document.NewAttributes(e.Attributes),
		e.PermissionGroups,
		e.QualityScore,
		e.CreatedAt,
		e.UpdatedAt,
		indexedAt,
		lastModified,
	)
}

// ToModel converts a domain Document to a DocumentModel.
func (m DocumentMapper) ToModel(d document.Document) DocumentModel {
	var sourceID *string
	if d.SourceID() != "" {
		s := d.SourceID()
		sourceID = &s
	}
	var indexedAt, lastModified *time.Time
	if !d.IndexedAt().IsZero() {
		t := d.IndexedAt()
		indexedAt = &t
	}
	if !d.LastModified().IsZero() {
		t := d.LastModified()
		lastModified = &t
	}
	return DocumentModel{
		ID:               d.ID(),
		SourceID:         sourceID,
		ExternalID:       d.ExternalID(),
		Title:            d.Title(),
		Content:          d.Content(),
		URL:              d.URL(),
		DocumentType:     string(d.DocumentType()),
		Attributes:       JSONMap(d.Attributes().Map()),
		PermissionGroups: StringSlice(d.PermissionGroups()),
		QualityScore:     d.QualityScore(),
		CreatedAt:        d.CreatedAt(),
		UpdatedAt:        d.UpdatedAt(),
		IndexedAt:        indexedAt,
		LastModified:     lastModified,
	}
}

// ConnectorMapper maps between domain Connector and ConnectorModel.
type ConnectorMapper struct{}

// ToDomain converts a ConnectorModel to a domain Connector. An undecodable
// config yields a connector whose config is nil; callers treat it as
// misconfigured rather than dropping the row.
func (m ConnectorMapper) ToDomain(e ConnectorModel) connector.Connector {
	kind := connector.Type(e.ConnectorType)
	cfg, err := connector.ParseConfig(kind, e.Config)
	if err != nil {
		cfg = nil
	}
	id, _ := uuid.Parse(e.ID)

	var lastRunAt time.Time
	if e.LastRunAt != nil {
		lastRunAt = *e.LastRunAt
	}

	return connector.Reconstruct(
		id,
		e.Name,
		kind,
		cfg,
		connector.NewURLTemplates(e.PortalURL, e.ItemURLTemplate, e.ListURLTemplate, e.SearchURLTemplate),
		e.IsActive,
		e.Schedule,
		e.CreatedAt,
		e.UpdatedAt,
		lastRunAt,
		connector.RunStatus(e.LastRunStatus),
	)
}

// ToModel converts a domain Connector to a ConnectorModel.
func (m ConnectorMapper) ToModel(c connector.Connector) ConnectorModel {
	var cfg JSONMap
	if c.Config() != nil {
		// Round-trip through JSON to get the snake_case wire shape.
		if raw, err := json.Marshal(configToMap(c.Config())); err == nil {
			_ = json.Unmarshal(raw, &cfg)
		}
	}

	var lastRunAt *time.Time
	if !c.LastRunAt().IsZero() {
		t := c.LastRunAt()
		lastRunAt = &t
	}

	templates := c.Templates()
	return ConnectorModel{
		ID:                c.ID().String(),
		Name:              c.Name(),
		ConnectorType:     string(c.Kind()),
		Config:            cfg,
		PortalURL:         templates.PortalURL(),
		ItemURLTemplate:   templates.ItemURLTemplate(),
		ListURLTemplate:   templates.ListURLTemplate(),
		SearchURLTemplate: templates.SearchURLTemplate(),
		IsActive:          c.IsActive(),
		Schedule:          c.Schedule(),
		LastRunAt:         lastRunAt,
		LastRunStatus:     string(c.LastRunStatus()),
		CreatedAt:         c.CreatedAt(),
		UpdatedAt:         c.UpdatedAt(),
	}
}

// configToMap renders a typed config as the untyped map ParseConfig accepts.
func configToMap(cfg connector.Config) map[string]any {
	switch c := cfg.(type) {
	case connector.SQLConfig:
		m := map[string]any{
			"dialect":           c.Dialect,
			"connection_string": c.ConnectionString,
			"metadata_query":    c.MetadataQuery,
			"data_query":        c.DataQuery,
			"content_column":    c.ContentColumn,
		}
		if c.PermissionQuery != "" {
			m["permission_query"] = c.PermissionQuery
		}
		if c.TitleColumn != "" {
			m["title_column"] = c.TitleColumn
		}
		if c.QueryTimeoutSecs > 0 {
			m["query_timeout_seconds"] = c.QueryTimeoutSecs
		}
		return m
	case connector.WebConfig:
		return map[string]any{
			"seed_urls":           c.SeedURLs,
			"max_depth":           c.MaxDepth,
			"max_pages":           c.MaxPages,
			"same_domain_only":    c.SameDomainOnly,
			"include_patterns":    c.IncludePatterns,
			"exclude_patterns":    c.ExcludePatterns,
			"requests_per_second": c.RequestsPerSec,
		}
	case connector.FolderConfig:
		return map[string]any{
			"path":       c.Path,
			"extensions": c.Extensions,
			"watch":      c.Watch,
		}
	case connector.NostrConfig:
		return map[string]any{
			"relays":     c.Relays,
			"strategy":   c.Strategy,
			"kinds":      c.Kinds,
			"authors":    c.Authors,
			"max_events": c.MaxEvents,
		}
	case connector.RSSConfig:
		return map[string]any{
			"feed_url":      c.FeedURL,
			"transcribe":    c.Transcribe,
			"chunk_size":    c.ChunkSize,
			"chunk_overlap": c.ChunkOverlap,
		}
	}
	return map[string]any{}
}

// runLogEntry is the JSON shape of one structured run log record.
type runLogEntry struct {
	At      time.Time      `json:"at"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// RunMapper maps between domain Run and ConnectorRunModel.
type RunMapper struct{}

// ToDomain converts a ConnectorRunModel to a domain Run.
func (m RunMapper) ToDomain(e ConnectorRunModel) connector.Run {
	id, _ := uuid.Parse(e.ID)
	connectorID, _ := uuid.Parse(e.ConnectorID)

	var completedAt time.Time
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}

	var rawLog []runLogEntry
	if e.Log != "" {
		_ = json.Unmarshal([]byte(e.Log), &rawLog)
	}
	log := make([]connector.LogEntry, len(rawLog))
	for i, entry := range rawLog {
		log[i] = connector.NewLogEntry(entry.At, entry.Level, entry.Message, entry.Fields)
	}

	return connector.ReconstructRun(
		id,
		connectorID,
		connector.RunStatus(e.Status),
		e.StartedAt,
		completedAt,
		connector.NewCounters(e.Added, e.Updated, e.Removed),
		log,
		e.ErrorMessage,
	)
}

// ToModel converts a domain Run to a ConnectorRunModel.
func (m RunMapper) ToModel(r connector.Run) ConnectorRunModel {
	var completedAt *time.Time
	if !r.CompletedAt().IsZero() {
		t := r.CompletedAt()
		completedAt = &t
	}

	domainLog := r.Log()
	rawLog := make([]runLogEntry, len(domainLog))
	for i, entry := range domainLog {
		rawLog[i] = runLogEntry{
			At:      entry.At(),
			Level:   entry.Level(),
			Message: entry.Message(),
			Fields:  entry.Fields(),
		}
	}
	encoded, _ := json.Marshal(rawLog)

	counters := r.Counters()
	return ConnectorRunModel{
		ID:           r.ID().String(),
		ConnectorID:  r.ConnectorID().String(),
		Status:       string(r.Status()),
		StartedAt:    r.StartedAt(),
		CompletedAt:  completedAt,
		Added:        counters.Added(),
		Updated:      counters.Updated(),
		Removed:      counters.Removed(),
		Log:          string(encoded),
		ErrorMessage: r.ErrorMessage(),
	}
}

// TriggerMapper maps between domain Trigger and TriggerModel.
type TriggerMapper struct{}

// ToDomain converts a TriggerModel to a domain Trigger. A trigger whose
// stored pattern no longer compiles comes back disabled.
func (m TriggerMapper) ToDomain(e TriggerModel) ontology.Trigger {
	t, err := ontology.NewTrigger(e.ID, e.Pattern, ontology.TriggerAction(e.Action), e.Priority)
	if err != nil {
		t, _ = ontology.NewTrigger(e.ID, "$^", ontology.TriggerAction(e.Action), e.Priority)
		return t.WithEnabled(false)
	}
	if e.DocType != "" {
		t = t.WithDocTypeBoost(e.DocType, e.Boost)
	}
	if len(e.Terms) > 0 {
		t = t.WithInjectedTerms(e.Terms...)
	}
	return t.WithEnabled(e.Enabled)
}

// ToModel converts a domain Trigger to a TriggerModel.
func (m TriggerMapper) ToModel(t ontology.Trigger) TriggerModel {
	return TriggerModel{
		ID:       t.ID(),
		Pattern:  t.Pattern(),
		Action:   string(t.Action()),
		DocType:  t.DocType(),
		Boost:    t.Boost(),
		Terms:    StringSlice(t.Terms()),
		Priority: t.Priority(),
		Enabled:  t.Enabled(),
	}
}

// WebhookMapper maps between domain Webhook and WebhookModel.
type WebhookMapper struct{}

// ToDomain converts a WebhookModel to a domain Webhook.
func (m WebhookMapper) ToDomain(e WebhookModel) webhook.Webhook {
	id, _ := uuid.Parse(e.ID)
	return webhook.Reconstruct(id, e.URL, e.Secret, e.Events, e.IsActive, e.CreatedAt, e.UpdatedAt)
}

// ToModel converts a domain Webhook to a WebhookModel.
func (m WebhookMapper) ToModel(w webhook.Webhook) WebhookModel {
	return WebhookModel{
		ID:        w.ID().String(),
		URL:       w.URL(),
		Secret:    w.Secret(),
		Events:    StringSlice(w.Events()),
		IsActive:  w.IsActive(),
		CreatedAt: w.CreatedAt(),
		UpdatedAt: w.UpdatedAt(),
	}
}

// relationshipMapper maps between domain Relationship and
// EntityRelationshipModel.
type relationshipMapper struct{}

func (relationshipMapper) ToDomain(e EntityRelationshipModel) enrichment.Relationship {
	return enrichment.NewRelationship(enrichment.EntityType(e.EntityType), e.Normalized, e.DocumentIDs)
}

func (relationshipMapper) ToModel(r enrichment.Relationship) EntityRelationshipModel {
	return EntityRelationshipModel{
		EntityType:    string(r.Type()),
		Normalized:    r.Normalized(),
		DocumentIDs:   StringSlice(r.DocumentIDs()),
		DocumentCount: r.DocumentCount(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// storedEntity is the JSON shape of one extracted entity.
type storedEntity struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	Normalized string `json:"normalized"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// enrichmentMapper maps between domain Result and EnrichmentResultModel.
type enrichmentMapper struct{}

func (enrichmentMapper) ToDomain(e EnrichmentResultModel) enrichment.Result {
	if enrichment.Status(e.Status) == enrichment.StatusFailed {
		var failure error
		if e.ErrorMessage != "" {
			failure = errors.New(e.ErrorMessage)
		}
		return enrichment.FailedResult(e.DocumentID, e.Version, failure)
	}

	var rawEntities []storedEntity
	if e.Entities != "" {
		_ = json.Unmarshal([]byte(e.Entities), &rawEntities)
	}
	entities := make([]enrichment.Entity, 0, len(rawEntities))
	for _, raw := range rawEntities {
		entity, err := enrichment.NewEntity(enrichment.EntityType(raw.Type), raw.Value, raw.Start, raw.End)
		if err != nil {
			continue
		}
		entities = append(entities, entity.WithNormalized(raw.Normalized))
	}

	return enrichment.NewResult(
		e.DocumentID,
		e.Version,
		e.Tags,
		entities,
		e.WordCount,
		time.Duration(e.ReadingTimeSeconds)*time.Second,
		enrichment.NewSentiment(enrichment.SentimentLabel(e.SentimentLabel), e.SentimentConfidence),
		enrichment.NewContentFeatures(e.HasCode, e.HasTable, e.HasList),
		e.Author,
		e.Language,
	).WithContentHash(e.ContentHash)
}

func (enrichmentMapper) ToModel(r enrichment.Result) EnrichmentResultModel {
	entities := r.Entities()
	rawEntities := make([]storedEntity, len(entities))
	for i, entity := range entities {
		rawEntities[i] = storedEntity{
			Type:       string(entity.Type()),
			Value:      entity.Value(),
			Normalized: entity.Normalized(),
			Start:      entity.Start(),
			End:        entity.End(),
		}
	}
	encoded, _ := json.Marshal(rawEntities)

	return EnrichmentResultModel{
		DocumentID:          r.DocumentID(),
		Version:             r.Version(),
		Status:              string(r.Status()),
		Tags:                StringSlice(r.Tags()),
		Entities:            string(encoded),
		ContentHash:         r.ContentHash(),
		WordCount:           r.WordCount(),
		ReadingTimeSeconds:  int(r.ReadingTime() / time.Second),
		SentimentLabel:      string(r.Sentiment().Label()),
		SentimentConfidence: r.Sentiment().Confidence(),
		HasCode:             r.Features().HasCode(),
		HasTable:            r.Features().HasTable(),
		HasList:             r.Features().HasList(),
		Author:              r.Author(),
		Language:            r.Language(),
		EnrichedAt:          r.EnrichedAt(),
		ErrorMessage:        r.ErrorMessage(),
	}
}

// feedbackMapper maps between domain Feedback and FeedbackModel.
type feedbackMapper struct{}

func (feedbackMapper) ToDomain(e FeedbackModel) frpei.Feedback {
	return frpei.NewFeedback(e.Query, e.CandidateID, frpei.FeedbackLabel(e.Label))
}

func (feedbackMapper) ToModel(f frpei.Feedback) FeedbackModel {
	return FeedbackModel{
		Query:       f.Query(),
		CandidateID: f.CandidateID(),
		Label:       string(f.Label()),
		RecordedAt:  f.RecordedAt(),
	}
}

// deliveryMapper maps between domain Delivery and WebhookDeliveryModel.
type deliveryMapper struct{}

func (deliveryMapper) ToDomain(e WebhookDeliveryModel) webhook.Delivery {
	id, _ := uuid.Parse(e.ID)
	webhookID, _ := uuid.Parse(e.WebhookID)
	return webhook.ReconstructDelivery(
		id,
		webhookID,
		e.Event,
		[]byte(e.Payload),
		e.Signature,
		webhook.DeliveryStatus(e.Status),
		e.Attempts,
		e.NextAttempt,
		e.LastError,
		e.CreatedAt,
	)
}

func (deliveryMapper) ToModel(d webhook.Delivery) WebhookDeliveryModel {
	return WebhookDeliveryModel{
		ID:          d.ID().String(),
		WebhookID:   d.WebhookID().String(),
		Event:       d.Event(),
		Payload:     string(d.Payload()),
		Signature:   d.Signature(),
		Status:      string(d.Status()),
		Attempts:    d.Attempts(),
		NextAttempt: d.NextAttempt(),
		LastError:   d.LastError(),
		CreatedAt:   d.CreatedAt(),
	}
}
