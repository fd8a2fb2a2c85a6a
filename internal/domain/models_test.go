// Package domain provides domain models and business logic for the Theme Discovery Service.
package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   DocumentStatus
		terminal bool
	}{
		{DocumentStatusIngested, false},
		{DocumentStatusParsed, false},
		{DocumentStatusEnriched, true},
		{DocumentStatusDuplicate, true},
		{DocumentStatusExcluded, true},
		{DocumentStatusFailed, true},
		{DocumentStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestNewDocument(t *testing.T) {
	projectID := uuid.New()
	doc := NewDocument(projectID)

	require.NotNil(t, doc)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, projectID, doc.ProjectID)
	assert.Equal(t, DocumentStatusIngested, doc.Status)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
	assert.Nil(t, doc.ContentHash)
	assert.Nil(t, doc.OriginalDocumentID)
}

func TestStageOutcome_String(t *testing.T) {
	assert.Equal(t, "completed", StageCompleted.String())
	assert.Equal(t, "skipped", StageSkipped.String())
	assert.Equal(t, "failed", StageFailed.String())
	assert.Equal(t, "unknown", StageOutcome(99).String())
}

func TestStageResultConstructors(t *testing.T) {
	t.Run("Completed", func(t *testing.T) {
		result := Completed()
		assert.Equal(t, StageCompleted, result.Outcome)
		assert.Empty(t, result.Reason)
		assert.NoError(t, result.Err)
	})

	t.Run("Skipped carries the reason", func(t *testing.T) {
		result := Skipped("document in terminal state")
		assert.Equal(t, StageSkipped, result.Outcome)
		assert.Equal(t, "document in terminal state", result.Reason)
		assert.NoError(t, result.Err)
	})

	t.Run("Failed wraps the cause", func(t *testing.T) {
		cause := errors.New("boom")
		result := Failed(cause)
		assert.Equal(t, StageFailed, result.Outcome)
		assert.Equal(t, cause, result.Err)
	})
}

func TestNotFoundError(t *testing.T) {
	id := uuid.New()
	err := NewNotFoundError("document", id.String())

	assert.Equal(t, fmt.Sprintf("document not found: %s", id), err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("projectId", "project ID is required")

	assert.Equal(t, "validation error: projectId: project ID is required", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExternalAPIError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewExternalAPIError("crossref", 503, "service unavailable", cause)

	assert.Equal(t, "crossref API error (status 503): service unavailable", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", NewExternalAPIError("embeddings", 500, "internal", nil), true},
		{"bad gateway", NewExternalAPIError("embeddings", 502, "bad gateway", nil), true},
		{"rate limited", NewExternalAPIError("embeddings", 429, "slow down", nil), true},
		{"client error", NewExternalAPIError("embeddings", 400, "bad request", nil), false},
		{"not found", NewExternalAPIError("crossref", 404, "no such DOI", nil), false},
		{"wrapped server error", fmt.Errorf("embed batch: %w", NewExternalAPIError("embeddings", 503, "unavailable", nil)), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
