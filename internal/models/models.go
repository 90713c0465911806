package models

import "time"

// Entity types produced by the collectors. The set is open; these are the
// ones the rest of the system knows by name.
const (
	EntityTypeRepository        = "repository"
	EntityTypePullRequest       = "pull-request"
	EntityTypeIssue             = "issue"
	EntityTypeCommit            = "commit"
	EntityTypeDecision          = "decision"
	EntityTypeDiscussionSummary = "discussion-summary"
	EntityTypeFeatureContext    = "feature-context"
	EntityTypeFileContext       = "file-context"
)

// Project status values.
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
)

// Project is a tenant registered in the store. Its ID is the value carried
// in KnowledgeEntity.ProjectID.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KnowledgeEntity is a stored fact about a piece of project knowledge.
// (EntityType, ExternalID) is its natural key.
type KnowledgeEntity struct {
	ID             string         `json:"id"`
	EntityType     string         `json:"entity_type" validate:"required,max=64"`
	ExternalID     string         `json:"external_id" validate:"required"`
	Title          string         `json:"title"`
	Content        string         `json:"content,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	PlatformSource string         `json:"platform_source,omitempty"`
	SourceEventIDs []string       `json:"source_event_ids,omitempty"`
	Participants   []string       `json:"participants,omitempty"`
	Embedding      []float32      `json:"embedding,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// KnowledgeRelationship is a directed, typed, weighted edge. Storage keeps
// the direction; traversal ignores it.
type KnowledgeRelationship struct {
	ID               string         `json:"id"`
	SourceEntityID   string         `json:"source_entity_id" validate:"required"`
	TargetEntityID   string         `json:"target_entity_id" validate:"required"`
	RelationshipType string         `json:"relationship_type" validate:"required,max=64"`
	Strength         float64        `json:"strength" validate:"gte=0"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Other returns the endpoint opposite to entityID.
func (r KnowledgeRelationship) Other(entityID string) string {
	if r.SourceEntityID == entityID {
		return r.TargetEntityID
	}
	return r.SourceEntityID
}
