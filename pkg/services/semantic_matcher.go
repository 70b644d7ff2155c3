package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/apperrors"
	"github.com/careerloom/profile-engine/pkg/llm"
	"github.com/careerloom/profile-engine/pkg/models"
)

// SemanticMatcher merges newly extracted CV facts into an existing
// canonical profile. Implementations must return a complete replacement
// profile in which every experience, education, and skill entry carries a
// non-empty source set, and every entry the new source contributed
// includes sourceID in its set.
type SemanticMatcher interface {
	Match(ctx context.Context, current *models.CanonicalProfile, extracted *models.ExtractedCVInfo, sourceID string) (*models.MatchResult, error)
}

type llmMatcher struct {
	client      llm.Client
	temperature float64
	logger      *zap.Logger
}

// NewLLMMatcher creates a SemanticMatcher backed by a chat-completion
// model.
func NewLLMMatcher(client llm.Client, temperature float64, logger *zap.Logger) SemanticMatcher {
	return &llmMatcher{
		client:      client,
		temperature: temperature,
		logger:      logger.Named("semantic_matcher"),
	}
}

var _ SemanticMatcher = (*llmMatcher)(nil)

const matcherSystemMessage = `You are a résumé consolidation engine. You merge facts extracted from one new source document into a user's canonical profile.

Rules:
- Experience entries are the same when role and company refer to the same position, even with wording differences. Merge them; do not duplicate.
- When merging into an existing entry, union its highlights and keep the more specific duration and location.
- Every experience, education, and skill entry in your output MUST have a non-empty "sources" array.
- Entries the new source contributed to (created or merged into) MUST include the new source id in "sources". Untouched entries keep their existing "sources" unchanged.
- Scalar fields (name, summary, contact fields) take the new source's value when it is non-empty, otherwise keep the current value.
- Never invent facts that appear in neither input.

Respond with ONLY a JSON object, no prose, shaped as:
{
  "profile": { ...complete replacement canonical profile... },
  "changes": [{"type": "...", "description": "...", "impact": "..."}],
  "summary": {"new_skills": 0, "new_experience": 0, "new_education": 0, "updated_fields": []}
}`

func (m *llmMatcher) Match(ctx context.Context, current *models.CanonicalProfile, extracted *models.ExtractedCVInfo, sourceID string) (*models.MatchResult, error) {
	prompt, err := buildMatchPrompt(current, extracted, sourceID)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("requesting semantic match",
		zap.String("user_id", current.UserID.String()),
		zap.String("source_id", sourceID),
		zap.String("model", m.client.GetModel()))

	result, err := m.client.GenerateResponse(ctx, prompt, matcherSystemMessage, m.temperature)
	if err != nil {
		return nil, fmt.Errorf("semantic matcher call failed: %w: %v", apperrors.ErrCollaboratorUnavailable, err)
	}

	match, err := llm.ParseJSONResponse[models.MatchResult](result.Content)
	if err != nil {
		return nil, fmt.Errorf("semantic matcher returned unparseable output: %w: %v", apperrors.ErrMatcherContract, err)
	}
	if match.Profile == nil {
		return nil, fmt.Errorf("semantic matcher returned no profile: %w", apperrors.ErrMatcherContract)
	}

	// Identity and bookkeeping fields are owned by the engine, not the
	// model. Whatever the model echoed back is overwritten here.
	match.Profile.UserID = current.UserID
	match.Profile.Version = current.Version
	match.Profile.Sources = append(models.SourceSet(nil), current.Sources...)
	match.Profile.TotalSourcesProcessed = current.TotalSourcesProcessed
	match.Profile.CreatedAt = current.CreatedAt

	m.logger.Debug("semantic match complete",
		zap.String("source_id", sourceID),
		zap.Int("changes", len(match.Changes)),
		zap.Int("new_items", match.Summary.NewItemCount()),
		zap.Int("tokens", result.TotalTokens))

	return &match, nil
}

func buildMatchPrompt(current *models.CanonicalProfile, extracted *models.ExtractedCVInfo, sourceID string) (string, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal current profile: %w", err)
	}
	extractedJSON, err := json.MarshalIndent(extracted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal extracted info: %w", err)
	}

	return fmt.Sprintf(`New source id: %s

Current canonical profile:
%s

Facts extracted from the new source:
%s

Merge the extracted facts into the canonical profile and respond with the JSON object described in your instructions.`,
		sourceID, currentJSON, extractedJSON), nil
}
