package models

import "time"

// DecisionRecord is an architectural decision linked to its entity.
type DecisionRecord struct {
	DecisionID   string    `json:"decision_id" validate:"required"`
	EntityID     string    `json:"entity_id" validate:"required"`
	ProjectID    string    `json:"project_id,omitempty"`
	Title        string    `json:"title" validate:"required"`
	Context      string    `json:"context,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Consequences string    `json:"consequences,omitempty"`
	Alternatives []string  `json:"alternatives,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DiscussionSummary condenses a chat thread or review conversation.
type DiscussionSummary struct {
	SummaryID    string    `json:"summary_id" validate:"required"`
	EntityID     string    `json:"entity_id" validate:"required"`
	ProjectID    string    `json:"project_id,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	Summary      string    `json:"summary" validate:"required"`
	KeyPoints    []string  `json:"key_points,omitempty"`
	Decisions    []string  `json:"decisions,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	MessageCount int       `json:"message_count" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FeatureContext gathers what is known about a feature across artifacts.
type FeatureContext struct {
	FeatureID    string    `json:"feature_id" validate:"required"`
	EntityID     string    `json:"entity_id" validate:"required"`
	ProjectID    string    `json:"project_id,omitempty"`
	Name         string    `json:"name" validate:"required"`
	Description  string    `json:"description,omitempty"`
	Status       string    `json:"status,omitempty"`
	Files        []string  `json:"files,omitempty"`
	Contributors []string  `json:"contributors,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FileContextHistory is one explained change to a file.
type FileContextHistory struct {
	ContextID     string    `json:"context_id" validate:"required"`
	EntityID      string    `json:"entity_id" validate:"required"`
	ProjectID     string    `json:"project_id,omitempty"`
	FilePath      string    `json:"file_path" validate:"required"`
	ChangeType    string    `json:"change_type,omitempty"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	CommitSHA     string    `json:"commit_sha,omitempty"`
	Author        string    `json:"author,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
