package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/apperrors"
	"github.com/careerloom/profile-engine/pkg/llm"
	"github.com/careerloom/profile-engine/pkg/models"
)

func TestLLMMatcher_ParsesModelOutput(t *testing.T) {
	userID := uuid.New()
	current := models.NewCanonicalProfile(userID)
	current.Version = 3
	current.Sources = models.SourceSet{"doc-1", "doc-2"}
	current.TotalSourcesProcessed = 2

	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return &llm.GenerateResult{Content: `{
			"profile": {
				"user_id": "00000000-0000-0000-0000-000000000000",
				"version": 99,
				"personal": {"name": "Dana Reyes"},
				"skills": [{"name": "Go", "sources": ["doc-3"]}]
			},
			"changes": [{"type": "skill_added", "description": "Added Go", "impact": "minor"}],
			"summary": {"new_skills": 1, "new_experience": 0, "new_education": 0, "updated_fields": ["name"]}
		}`}, nil
	}

	matcher := NewLLMMatcher(client, 0.2, zap.NewNop())
	result, err := matcher.Match(context.Background(), current, &models.ExtractedCVInfo{Name: "Dana Reyes"}, "doc-3")
	require.NoError(t, err)

	// Identity and bookkeeping come from the engine, not the model output.
	assert.Equal(t, userID, result.Profile.UserID)
	assert.Equal(t, int64(3), result.Profile.Version)
	assert.Equal(t, models.SourceSet{"doc-1", "doc-2"}, result.Profile.Sources)
	assert.Equal(t, 2, result.Profile.TotalSourcesProcessed)

	assert.Equal(t, "Dana Reyes", result.Profile.Personal.Name)
	require.Len(t, result.Profile.Skills, 1)
	assert.Equal(t, models.SourceSet{"doc-3"}, result.Profile.Skills[0].Sources)
	assert.Equal(t, 1, result.Summary.NewItemCount())
	require.Len(t, result.Changes, 1)

	assert.Equal(t, 1, client.GenerateResponseCalls)
	assert.Contains(t, client.LastPrompt, "doc-3")
	assert.Contains(t, client.LastSystemMessage, "non-empty \"sources\"")
}

func TestLLMMatcher_StripsProseAroundJSON(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return &llm.GenerateResult{Content: "Here is the merge:\n```json\n{\"profile\": {\"skills\": []}, \"changes\": [], \"summary\": {}}\n```"}, nil
	}

	matcher := NewLLMMatcher(client, 0.2, zap.NewNop())
	current := models.NewCanonicalProfile(uuid.New())
	result, err := matcher.Match(context.Background(), current, &models.ExtractedCVInfo{}, "doc-1")
	require.NoError(t, err)
	assert.NotNil(t, result.Profile)
}

func TestLLMMatcher_TransportFailure(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return nil, fmt.Errorf("connection refused")
	}

	matcher := NewLLMMatcher(client, 0.2, zap.NewNop())
	_, err := matcher.Match(context.Background(), models.NewCanonicalProfile(uuid.New()), &models.ExtractedCVInfo{}, "doc-1")
	require.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)
}

func TestLLMMatcher_UnparseableOutput(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return &llm.GenerateResult{Content: "I could not merge these documents."}, nil
	}

	matcher := NewLLMMatcher(client, 0.2, zap.NewNop())
	_, err := matcher.Match(context.Background(), models.NewCanonicalProfile(uuid.New()), &models.ExtractedCVInfo{}, "doc-1")
	require.ErrorIs(t, err, apperrors.ErrMatcherContract)
}

func TestLLMMatcher_MissingProfile(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return &llm.GenerateResult{Content: `{"changes": [], "summary": {}}`}, nil
	}

	matcher := NewLLMMatcher(client, 0.2, zap.NewNop())
	_, err := matcher.Match(context.Background(), models.NewCanonicalProfile(uuid.New()), &models.ExtractedCVInfo{}, "doc-1")
	require.ErrorIs(t, err, apperrors.ErrMatcherContract)
}
