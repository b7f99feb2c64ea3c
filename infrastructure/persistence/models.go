// Package persistence provides database storage implementations.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringSlice is a custom type for JSON serialization of []string.
type StringSlice []string

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
	return json.Unmarshal(data, s)
}

// Value implements driver.Valuer.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// JSONMap is a custom type for JSON serialization of map[string]any.
type JSONMap map[string]any

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// DocumentModel is the GORM model for the documents table.
type DocumentModel struct {
	ID               string      `gorm:"column:id;primaryKey"`
	SourceID         *string     `gorm:"column:source_id;index;index:idx_documents_source_external,unique,where:source_id IS NOT NULL"`
	ExternalID       string      `gorm:"column:external_id;index:idx_documents_source_external,unique,where:source_id IS NOT NULL"`
	Title            string      `gorm:"column:title"`
	Content          string      `gorm:"column:content"`
	URL              string      `gorm:"column:url"`
	DocumentType     string      `gorm:"column:document_type;index"`
	Attributes       JSONMap     `gorm:"column:attributes;type:json"`
	PermissionGroups StringSlice `gorm:"column:permission_groups;type:json"`
	QualityScore     float64     `gorm:"column:quality_score;index"`
	CreatedAt        time.Time   `gorm:"column:created_at"`
	UpdatedAt        time.Time   `gorm:"column:updated_at"`
	IndexedAt        *time.Time  `gorm:"column:indexed_at;index"`
	LastModified     *time.Time  `gorm:"column:last_modified;index"`
}

// TableName overrides the GORM table name.
func (DocumentModel) TableName() string { return "documents" }

// DocumentTagModel links a document to one tag. Tags live in their own
// table so filters and facets can use plain SQL.
type DocumentTagModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID string `gorm:"column:document_id;index;index:idx_document_tags_doc_tag,unique"`
	Tag        string `gorm:"column:tag;index;index:idx_document_tags_doc_tag,unique"`
}

// TableName overrides the GORM table name.
func (DocumentTagModel) TableName() string { return "document_tags" }

// ConnectorModel is the GORM model for the connectors table.
type ConnectorModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	Name              string     `gorm:"column:name"`
	ConnectorType     string     `gorm:"column:connector_type;index"`
	Config            JSONMap    `gorm:"column:config;type:json"`
	PortalURL         string     `gorm:"column:portal_url"`
	ItemURLTemplate   string     `gorm:"column:item_url_template"`
	ListURLTemplate   string     `gorm:"column:list_url_template"`
	SearchURLTemplate string     `gorm:"column:search_url_template"`
	IsActive          bool       `gorm:"column:is_active;index"`
	Schedule          string     `gorm:"column:schedule"`
	LastRunAt         *time.Time `gorm:"column:last_run_at"`
	LastRunStatus     string     `gorm:"column:last_run_status"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (ConnectorModel) TableName() string { return "connectors" }

// ConnectorRunModel is the GORM model for the connector_runs table.
type ConnectorRunModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	ConnectorID  string     `gorm:"column:connector_id;index"`
	Status       string     `gorm:"column:status;index"`
	StartedAt    time.Time  `gorm:"column:started_at;index"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	Added        int        `gorm:"column:added"`
	Updated      int        `gorm:"column:updated"`
	Removed      int        `gorm:"column:removed"`
	Log          string     `gorm:"column:log;type:text"`
	ErrorMessage string     `gorm:"column:error_message"`
}

// TableName overrides the GORM table name.
func (ConnectorRunModel) TableName() string { return "connector_runs" }

// ContactListModel stores the latest kind-3 follow list per pubkey, the
// input of the local web-of-trust graph.
type ContactListModel struct {
	Pubkey    string      `gorm:"column:pubkey;primaryKey"`
	Follows   StringSlice `gorm:"column:follows;type:json"`
	EventID   string      `gorm:"column:event_id"`
	CreatedAt time.Time   `gorm:"column:created_at"`
	UpdatedAt time.Time   `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (ContactListModel) TableName() string { return "nostr_contact_lists" }

// OntologyTermModel is the GORM model for ontology terms.
type OntologyTermModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	Label    string `gorm:"column:label;index"`
	ParentID string `gorm:"column:parent_id;index"`
	Taxonomy string `gorm:"column:taxonomy;index"`
}

// TableName overrides the GORM table name.
func (OntologyTermModel) TableName() string { return "ontology_terms" }

// OntologyRelationModel links two ontology terms.
type OntologyRelationModel struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	FromID       string `gorm:"column:from_id;index;index:idx_ontology_relations_edge,unique"`
	ToID         string `gorm:"column:to_id;index:idx_ontology_relations_edge,unique"`
	RelationType string `gorm:"column:relation_type;index:idx_ontology_relations_edge,unique"`
}

// TableName overrides the GORM table name.
func (OntologyRelationModel) TableName() string { return "ontology_relations" }

// OntologyAliasModel maps a surface form to a term.
type OntologyAliasModel struct {
	ID      int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Surface string  `gorm:"column:surface;index;index:idx_ontology_aliases_surface_term,unique"`
	TermID  string  `gorm:"column:term_id;index:idx_ontology_aliases_surface_term,unique"`
	Weight  float64 `gorm:"column:weight"`
}

// TableName overrides the GORM table name.
func (OntologyAliasModel) TableName() string { return "ontology_aliases" }

// DictionaryEntryModel maps a shorthand to its expansions.
type DictionaryEntryModel struct {
	Key        string      `gorm:"column:key;primaryKey"`
	Expansions StringSlice `gorm:"column:expansions;type:json"`
	UpdatedAt  time.Time   `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (DictionaryEntryModel) TableName() string { return "dictionary_entries" }

// TriggerModel is the GORM model for query-time triggers.
type TriggerModel struct {
	ID        string      `gorm:"column:id;primaryKey"`
	Pattern   string      `gorm:"column:pattern"`
	Action    string      `gorm:"column:action"`
	DocType   string      `gorm:"column:doc_type"`
	Boost     float64     `gorm:"column:boost"`
	Terms     StringSlice `gorm:"column:terms;type:json"`
	Priority  int         `gorm:"column:priority"`
	Enabled   bool        `gorm:"column:enabled;index"`
	CreatedAt time.Time   `gorm:"column:created_at"`
	UpdatedAt time.Time   `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (TriggerModel) TableName() string { return "triggers" }

// EnrichmentResultModel stores NLP enrichment output per document.
type EnrichmentResultModel struct {
	DocumentID          string      `gorm:"column:document_id;primaryKey"`
	Version             int         `gorm:"column:version"`
	Status              string      `gorm:"column:status;index"`
	ContentHash         string      `gorm:"column:content_hash"`
	Tags                StringSlice `gorm:"column:tags;type:json"`
	Entities            string      `gorm:"column:entities;type:text"`
	WordCount           int         `gorm:"column:word_count"`
	ReadingTimeSeconds  int         `gorm:"column:reading_time_seconds"`
	SentimentLabel      string      `gorm:"column:sentiment_label"`
	SentimentConfidence float64     `gorm:"column:sentiment_confidence"`
	HasCode             bool        `gorm:"column:has_code"`
	HasTable            bool        `gorm:"column:has_table"`
	HasList             bool        `gorm:"column:has_list"`
	Author              string      `gorm:"column:author"`
	Language            string      `gorm:"column:language"`
	EnrichedAt          time.Time   `gorm:"column:enriched_at"`
	ErrorMessage        string      `gorm:"column:error_message"`
}

// TableName overrides the GORM table name.
func (EnrichmentResultModel) TableName() string { return "enrichment_results" }

// EntityRelationshipModel groups documents mentioning one entity.
type EntityRelationshipModel struct {
	ID            int64       `gorm:"column:id;primaryKey;autoIncrement"`
	EntityType    string      `gorm:"column:entity_type;index:idx_entity_relationships_entity,unique"`
	Normalized    string      `gorm:"column:normalized;index;index:idx_entity_relationships_entity,unique"`
	DocumentIDs   StringSlice `gorm:"column:document_ids;type:json"`
	DocumentCount int         `gorm:"column:document_count;index"`
	UpdatedAt     time.Time   `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (EntityRelationshipModel) TableName() string { return "entity_relationships" }

// WebhookModel is the GORM model for webhook subscriptions.
type WebhookModel struct {
	ID        string      `gorm:"column:id;primaryKey"`
	URL       string      `gorm:"column:url"`
	Secret    string      `gorm:"column:secret"`
	Events    StringSlice `gorm:"column:events;type:json"`
	IsActive  bool        `gorm:"column:is_active;index"`
	CreatedAt time.Time   `gorm:"column:created_at"`
	UpdatedAt time.Time   `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (WebhookModel) TableName() string { return "webhooks" }

// WebhookDeliveryModel is the GORM model for delivery records.
type WebhookDeliveryModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	WebhookID   string    `gorm:"column:webhook_id;index"`
	Event       string    `gorm:"column:event;index"`
	Payload     string    `gorm:"column:payload;type:text"`
	Signature   string    `gorm:"column:signature"`
	Status      string    `gorm:"column:status;index"`
	Attempts    int       `gorm:"column:attempts"`
	NextAttempt time.Time `gorm:"column:next_attempt;index"`
	LastError   string    `gorm:"column:last_error"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the GORM table name.
func (WebhookDeliveryModel) TableName() string { return "webhook_deliveries" }

// CandidateEnrichmentModel stores federated-retrieval enrichment rows.
type CandidateEnrichmentModel struct {
	CandidateID string      `gorm:"column:candidate_id;primaryKey"`
	Entities    StringSlice `gorm:"column:entities;type:json"`
	Topics      StringSlice `gorm:"column:topics;type:json"`
	UpdatedAt   time.Time   `gorm:"column:updated_at"`
}

// TableName overrides the GORM table name.
func (CandidateEnrichmentModel) TableName() string { return "frpei_enrichments" }

// RankLogModel records one explained ranking decision.
type RankLogModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Query         string    `gorm:"column:query;index"`
	CandidateID   string    `gorm:"column:candidate_id;index"`
	Score         float64   `gorm:"column:score"`
	Contributions string    `gorm:"column:contributions;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName overrides the GORM table name.
func (RankLogModel) TableName() string { return "frpei_rank_logs" }

// FeedbackModel records a relevance judgement on a federated result.
type FeedbackModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Query       string    `gorm:"column:query;index"`
	CandidateID string    `gorm:"column:candidate_id;index"`
	Label       string    `gorm:"column:label"`
	RecordedAt  time.Time `gorm:"column:recorded_at"`
}

// TableName overrides the GORM table name.
func (FeedbackModel) TableName() string { return "frpei_feedback" }
