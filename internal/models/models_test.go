package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityTypeSpelling(t *testing.T) {
	assert.Equal(t, "pull-request", EntityTypePullRequest)
	assert.Equal(t, "discussion-summary", EntityTypeDiscussionSummary)
	assert.Equal(t, "feature-context", EntityTypeFeatureContext)
	assert.Equal(t, "file-context", EntityTypeFileContext)
}

func TestRelationshipOther(t *testing.T) {
	r := KnowledgeRelationship{SourceEntityID: "a", TargetEntityID: "b"}
	assert.Equal(t, "b", r.Other("a"))
	assert.Equal(t, "a", r.Other("b"))
}
