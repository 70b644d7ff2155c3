package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/apperrors"
	"github.com/careerloom/profile-engine/pkg/models"
	"github.com/careerloom/profile-engine/pkg/repositories"
	"github.com/careerloom/profile-engine/pkg/retry"
)

// ConsolidationService applies source-level changes to a user's canonical
// profile. AddSource merges a new document's extracted facts through the
// semantic matcher; RemoveSource deterministically retracts everything a
// document contributed. Both operations write through a version-conditioned
// compare-and-swap and append an audit record.
type ConsolidationService interface {
	// AddSource merges one source document's extracted facts into the
	// user's profile. Re-adding an already-processed source replaces its
	// prior contribution and leaves membership and TotalSourcesProcessed
	// unchanged, but Version still advances and a new audit record is
	// appended: compare content, not Version, to detect a no-op re-add.
	AddSource(ctx context.Context, userID uuid.UUID, sourceID string, extracted *models.ExtractedCVInfo) (*models.CanonicalProfile, error)

	// RemoveSource retracts everything sourceID contributed. The source
	// must be a member of the profile; retracting an unknown source
	// returns apperrors.ErrNotFound.
	RemoveSource(ctx context.Context, userID uuid.UUID, sourceID string) (*models.CanonicalProfile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error)
	ListAudit(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ProfileAuditRecord, error)
}

type consolidationService struct {
	repo      repositories.ProfileRepository
	matcher   SemanticMatcher
	retryConf *retry.Config
	logger    *zap.Logger
}

// NewConsolidationService creates the consolidation engine.
// maxConflictRetries bounds how many times an operation is re-run after
// losing a compare-and-swap race before the conflict is surfaced.
func NewConsolidationService(repo repositories.ProfileRepository, matcher SemanticMatcher, maxConflictRetries int, logger *zap.Logger) ConsolidationService {
	if maxConflictRetries < 0 {
		maxConflictRetries = 0
	}
	return &consolidationService{
		repo:    repo,
		matcher: matcher,
		retryConf: &retry.Config{
			MaxRetries:   maxConflictRetries,
			InitialDelay: 20 * time.Millisecond,
			MaxDelay:     250 * time.Millisecond,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		logger: logger.Named("consolidation"),
	}
}

var _ ConsolidationService = (*consolidationService)(nil)

// conflictError marks a lost compare-and-swap race as retryable: the whole
// read-merge-write attempt is re-run against the winner's version.
type conflictError struct{ err error }

func (e *conflictError) Error() string     { return e.err.Error() }
func (e *conflictError) Unwrap() error     { return e.err }
func (e *conflictError) IsRetryable() bool { return true }

// permanentError pins everything that is not a conflict (matcher failures,
// contract violations, storage errors) as non-retryable, regardless of
// what its message happens to contain.
type permanentError struct{ err error }

func (e *permanentError) Error() string     { return e.err.Error() }
func (e *permanentError) Unwrap() error     { return e.err }
func (e *permanentError) IsRetryable() bool { return false }

func classifyAttemptError(err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return &conflictError{err: err}
	}
	return &permanentError{err: err}
}

// unwrapAttemptError strips the retry-classification wrapper so callers
// see the original error chain.
func unwrapAttemptError(err error) error {
	var conflict *conflictError
	if errors.As(err, &conflict) {
		return conflict.err
	}
	var permanent *permanentError
	if errors.As(err, &permanent) {
		return permanent.err
	}
	return err
}

func (s *consolidationService) AddSource(ctx context.Context, userID uuid.UUID, sourceID string, extracted *models.ExtractedCVInfo) (*models.CanonicalProfile, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("source id is required: %w", apperrors.ErrInvalidInput)
	}
	if extracted == nil {
		return nil, fmt.Errorf("extracted info is required: %w", apperrors.ErrInvalidInput)
	}

	var result *models.CanonicalProfile
	err := retry.Do(ctx, s.retryConf, func() error {
		updated, err := s.addSourceOnce(ctx, userID, sourceID, extracted)
		if err != nil {
			return classifyAttemptError(err)
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, unwrapAttemptError(err)
	}
	return result, nil
}

func (s *consolidationService) addSourceOnce(ctx context.Context, userID uuid.UUID, sourceID string, extracted *models.ExtractedCVInfo) (*models.CanonicalProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Re-adding a source replaces its previous contribution instead of
	// stacking a second copy, so repeated ingestion of the same document
	// converges on the same profile.
	working := current.Clone()
	reAdd := working.ContainsSource(sourceID)
	if reAdd {
		working.RemoveSource(sourceID)
	}

	match, err := s.matcher.Match(ctx, working, extracted, sourceID)
	if err != nil {
		return nil, err
	}

	if violation := match.Profile.ValidateProvenance(); violation != "" {
		return nil, fmt.Errorf("matcher produced entry without provenance (%s): %w", violation, apperrors.ErrMatcherContract)
	}

	updated := match.Profile
	updated.Version = current.Version + 1
	updated.Sources = current.Sources.Add(sourceID)
	updated.TotalSourcesProcessed = len(updated.Sources)
	updated.CompletenessScore = ComputeCompleteness(updated)
	updated.ConfidenceScore = ComputeConfidence(updated, match.Summary.NewItemCount())

	// Do not commit work for a caller that already gave up.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.CompareAndSwap(ctx, userID, current.Version, updated); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &models.ProfileAuditRecord{
		UserID:           userID,
		ChangeType:       models.ChangeTypeSourceAdded,
		SourceID:         sourceID,
		PreviousProfile:  current,
		NewProfile:       updated,
		Summary:          addSummary(sourceID, match.Summary),
		ConfidenceImpact: updated.ConfidenceScore - current.ConfidenceScore,
	})

	s.logger.Info("source added",
		zap.String("user_id", userID.String()),
		zap.String("source_id", sourceID),
		zap.Bool("re_add", reAdd),
		zap.Int64("version", updated.Version),
		zap.Int("new_items", match.Summary.NewItemCount()),
		zap.Float64("completeness", updated.CompletenessScore),
		zap.Float64("confidence", updated.ConfidenceScore))

	return updated, nil
}

func (s *consolidationService) RemoveSource(ctx context.Context, userID uuid.UUID, sourceID string) (*models.CanonicalProfile, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("source id is required: %w", apperrors.ErrInvalidInput)
	}

	var result *models.CanonicalProfile
	err := retry.Do(ctx, s.retryConf, func() error {
		updated, err := s.removeSourceOnce(ctx, userID, sourceID)
		if err != nil {
			return classifyAttemptError(err)
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, unwrapAttemptError(err)
	}
	return result, nil
}

func (s *consolidationService) removeSourceOnce(ctx context.Context, userID uuid.UUID, sourceID string) (*models.CanonicalProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !current.ContainsSource(sourceID) {
		return nil, fmt.Errorf("source %s is not present in profile: %w", sourceID, apperrors.ErrNotFound)
	}

	updated := current.Clone()
	dropped := updated.RemoveSource(sourceID)
	updated.Version = current.Version + 1
	updated.TotalSourcesProcessed = len(updated.Sources)
	updated.CompletenessScore = ComputeCompleteness(updated)
	updated.ConfidenceScore = ComputeConfidence(updated, 0)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.CompareAndSwap(ctx, userID, current.Version, updated); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &models.ProfileAuditRecord{
		UserID:           userID,
		ChangeType:       models.ChangeTypeSourceRemoved,
		SourceID:         sourceID,
		PreviousProfile:  current,
		NewProfile:       updated,
		Summary:          fmt.Sprintf("source %s removed: %d entries dropped", sourceID, dropped),
		ConfidenceImpact: updated.ConfidenceScore - current.ConfidenceScore,
	})

	s.logger.Info("source removed",
		zap.String("user_id", userID.String()),
		zap.String("source_id", sourceID),
		zap.Int64("version", updated.Version),
		zap.Int("entries_dropped", dropped))

	return updated, nil
}

func (s *consolidationService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error) {
	return s.repo.Get(ctx, userID)
}

func (s *consolidationService) ListAudit(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ProfileAuditRecord, error) {
	return s.repo.ListAudit(ctx, userID, limit)
}

// appendAudit records the change after the profile write has committed.
// An audit failure cannot undo the committed write, so it is logged rather
// than surfaced.
func (s *consolidationService) appendAudit(ctx context.Context, record *models.ProfileAuditRecord) {
	if err := s.repo.AppendAudit(ctx, record); err != nil {
		s.logger.Error("failed to append audit record",
			zap.String("user_id", record.UserID.String()),
			zap.String("source_id", record.SourceID),
			zap.String("change_type", record.ChangeType),
			zap.Error(err))
	}
}

func addSummary(sourceID string, summary models.MatchSummary) string {
	return fmt.Sprintf("source %s added: %d new skills, %d new experience, %d new education, %d fields updated",
		sourceID, summary.NewSkills, summary.NewExperience, summary.NewEducation, len(summary.UpdatedFields))
}
