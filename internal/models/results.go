package models

import "time"

// SearchFilters narrows a lexical search. Zero values mean "no filter".
type SearchFilters struct {
	EntityTypes    []string   `json:"entity_types,omitempty"`
	Platforms      []string   `json:"platforms,omitempty"`
	CreatedAfter   *time.Time `json:"created_after,omitempty"`
	CreatedBefore  *time.Time `json:"created_before,omitempty"`
	ProjectID      string     `json:"project_id,omitempty"`
	IncludeContent bool       `json:"include_content,omitempty"`
}

// SearchResult is one ranked lexical hit. Rank is 1-based.
type SearchResult struct {
	Entity    KnowledgeEntity `json:"entity"`
	Rank      int             `json:"rank"`
	Relevance float64         `json:"relevance"`
}

// SimilarityResult is one vector-search hit, most similar first.
type SimilarityResult struct {
	Entity     KnowledgeEntity `json:"entity"`
	Similarity float64         `json:"similarity"`
}

// PathNode is an entity reached by traversal along one path.
type PathNode struct {
	Entity       KnowledgeEntity `json:"entity"`
	Depth        int             `json:"depth"`
	PathStrength float64         `json:"path_strength"`
}

// TraversalResult is the subgraph discovered from a seed entity.
type TraversalResult struct {
	Path          []PathNode              `json:"path"`
	Entities      []KnowledgeEntity       `json:"entities"`
	Relationships []KnowledgeRelationship `json:"relationships"`
	Depth         int                     `json:"depth"`
	TotalStrength float64                 `json:"total_strength"`
}
