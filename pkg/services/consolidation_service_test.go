package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/apperrors"
	"github.com/careerloom/profile-engine/pkg/models"
)

// memRepo is an in-memory ProfileRepository with real compare-and-swap
// semantics plus failure injection hooks.
type memRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.CanonicalProfile
	audits   []*models.ProfileAuditRecord

	casCalls int
	// casErr, when set, is consulted before each CompareAndSwap with the
	// 1-based call number. A non-nil return is surfaced instead of writing.
	casErr func(call int) error
}

func newMemRepo() *memRepo {
	return &memRepo{profiles: make(map[uuid.UUID]*models.CanonicalProfile)}
}

func (r *memRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[userID]; ok {
		return p.Clone(), nil
	}
	p := models.NewCanonicalProfile(userID)
	r.profiles[userID] = p
	return p.Clone(), nil
}

func (r *memRepo) Get(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile for user %s: %w", userID, apperrors.ErrNotFound)
	}
	return p.Clone(), nil
}

func (r *memRepo) CompareAndSwap(ctx context.Context, userID uuid.UUID, expectedVersion int64, profile *models.CanonicalProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	if r.casErr != nil {
		if err := r.casErr(r.casCalls); err != nil {
			return err
		}
	}
	stored, ok := r.profiles[userID]
	if !ok || stored.Version != expectedVersion {
		return fmt.Errorf("profile for user %s changed: %w", userID, apperrors.ErrConflict)
	}
	r.profiles[userID] = profile.Clone()
	return nil
}

func (r *memRepo) AppendAudit(ctx context.Context, record *models.ProfileAuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, record)
	return nil
}

func (r *memRepo) ListAudit(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ProfileAuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ProfileAuditRecord, 0)
	for i := len(r.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if r.audits[i].UserID == userID {
			out = append(out, r.audits[i])
		}
	}
	return out, nil
}

// fakeMatcher merges extracted facts deterministically: entries match on
// name (case-insensitive role+company for experience), matched entries
// gain the new source id, unmatched extracted facts become new entries.
type fakeMatcher struct {
	calls int
	// matchErr, when set, is returned instead of matching.
	matchErr error
	// mutate, when set, tampers with the result before returning it.
	mutate func(*models.MatchResult)
}

func (m *fakeMatcher) Match(ctx context.Context, current *models.CanonicalProfile, extracted *models.ExtractedCVInfo, sourceID string) (*models.MatchResult, error) {
	m.calls++
	if m.matchErr != nil {
		return nil, m.matchErr
	}

	merged := current.Clone()
	summary := models.MatchSummary{}

	if extracted.Name != "" {
		merged.Personal.Name = extracted.Name
		summary.UpdatedFields = append(summary.UpdatedFields, "name")
	}
	if extracted.Summary != "" {
		merged.Personal.Summary = extracted.Summary
	}
	if extracted.Contact.Email != "" {
		merged.Contact.Email = extracted.Contact.Email
	}

	for _, exp := range extracted.Experience {
		found := false
		for i, existing := range merged.Experience {
			if strings.EqualFold(existing.Role, exp.Role) && strings.EqualFold(existing.Company, exp.Company) {
				merged.Experience[i].Sources = existing.Sources.Add(sourceID)
				found = true
				break
			}
		}
		if !found {
			merged.Experience = append(merged.Experience, models.ExperienceEntry{
				Role:       exp.Role,
				Company:    exp.Company,
				Duration:   exp.Duration,
				Highlights: exp.Highlights,
				Sources:    models.SourceSet{sourceID},
			})
			summary.NewExperience++
		}
	}

	for _, skill := range extracted.Skills {
		found := false
		for i, existing := range merged.Skills {
			if strings.EqualFold(existing.Name, skill) {
				merged.Skills[i].Sources = existing.Sources.Add(sourceID)
				found = true
				break
			}
		}
		if !found {
			merged.Skills = append(merged.Skills, models.SkillEntry{
				Name:    skill,
				Sources: models.SourceSet{sourceID},
			})
			summary.NewSkills++
		}
	}

	result := &models.MatchResult{Profile: merged, Summary: summary}
	if m.mutate != nil {
		m.mutate(result)
	}
	return result, nil
}

func newTestService(repo *memRepo, matcher SemanticMatcher) ConsolidationService {
	return NewConsolidationService(repo, matcher, 3, zap.NewNop())
}

func cvOne() *models.ExtractedCVInfo {
	return &models.ExtractedCVInfo{
		Name:    "Dana Reyes",
		Contact: models.ContactInfo{Email: "dana@example.com"},
		Experience: []models.ExtractedExperience{
			{Role: "Platform Engineer", Company: "Acme", Duration: "2020-2023"},
		},
		Skills: []string{"Go", "Postgres"},
	}
}

func TestAddSource_FirstSource(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	profile, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)

	assert.Equal(t, int64(1), profile.Version)
	assert.Equal(t, 1, profile.TotalSourcesProcessed)
	assert.Equal(t, models.SourceSet{"doc-1"}, profile.Sources)
	require.Len(t, profile.Experience, 1)
	assert.Equal(t, models.SourceSet{"doc-1"}, profile.Experience[0].Sources)
	require.Len(t, profile.Skills, 2)
	assert.Equal(t, models.SourceSet{"doc-1"}, profile.Skills[0].Sources)

	assert.GreaterOrEqual(t, profile.CompletenessScore, 0.0)
	assert.LessOrEqual(t, profile.CompletenessScore, 1.0)
	assert.GreaterOrEqual(t, profile.ConfidenceScore, profile.CompletenessScore)
	assert.LessOrEqual(t, profile.ConfidenceScore, 1.0)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.ChangeTypeSourceAdded, repo.audits[0].ChangeType)
	assert.Equal(t, "doc-1", repo.audits[0].SourceID)
	assert.Equal(t, int64(0), repo.audits[0].PreviousProfile.Version)
	assert.Equal(t, int64(1), repo.audits[0].NewProfile.Version)
}

func TestAddSource_SameSourceTwiceConverges(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	first, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)
	second, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)

	// Re-ingesting the same document replaces its prior contribution.
	assert.Equal(t, first.Experience, second.Experience)
	assert.Equal(t, first.Skills, second.Skills)
	assert.Equal(t, 1, second.TotalSourcesProcessed)
	assert.Equal(t, int64(2), second.Version)
}

// scalarOnlyCV contributes no experience, education, or skills, so no
// provenanced entry will ever cite its source id.
func scalarOnlyCV() *models.ExtractedCVInfo {
	return &models.ExtractedCVInfo{
		Name:    "Dana Reyes",
		Contact: models.ContactInfo{Email: "dana@example.com"},
	}
}

func TestAddSource_ScalarOnlySourceCountedOnce(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	first, err := svc.AddSource(context.Background(), userID, "doc-1", scalarOnlyCV())
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalSourcesProcessed)
	assert.Equal(t, models.SourceSet{"doc-1"}, first.Sources)

	second, err := svc.AddSource(context.Background(), userID, "doc-1", scalarOnlyCV())
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalSourcesProcessed)
	assert.Equal(t, models.SourceSet{"doc-1"}, second.Sources)
	assert.Equal(t, "Dana Reyes", second.Personal.Name)
}

func TestRemoveSource_ScalarOnlySource(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", scalarOnlyCV())
	require.NoError(t, err)

	// The source cited no entry, but it was processed and must be
	// removable all the same.
	profile, err := svc.RemoveSource(context.Background(), userID, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, profile.Sources)
	assert.Equal(t, 0, profile.TotalSourcesProcessed)

	// Scalars are last-writer-wins with no provenance; they stay.
	assert.Equal(t, "Dana Reyes", profile.Personal.Name)
}

func TestAddSource_SharedEntryAccumulatesSources(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)

	// A second document citing the same position and one new skill.
	cv2 := &models.ExtractedCVInfo{
		Experience: []models.ExtractedExperience{
			{Role: "Platform Engineer", Company: "Acme"},
		},
		Skills: []string{"Kubernetes"},
	}
	profile, err := svc.AddSource(context.Background(), userID, "doc-2", cv2)
	require.NoError(t, err)

	require.Len(t, profile.Experience, 1)
	assert.Equal(t, models.SourceSet{"doc-1", "doc-2"}, profile.Experience[0].Sources)
	assert.Equal(t, models.SourceSet{"doc-1", "doc-2"}, profile.Sources)
	assert.Equal(t, 2, profile.TotalSourcesProcessed)
	require.Len(t, profile.Skills, 3)
}

func TestRemoveSource_SharedEntrySurvives(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)
	cv2 := &models.ExtractedCVInfo{
		Experience: []models.ExtractedExperience{
			{Role: "Platform Engineer", Company: "Acme"},
		},
		Skills: []string{"Kubernetes"},
	}
	_, err = svc.AddSource(context.Background(), userID, "doc-2", cv2)
	require.NoError(t, err)

	profile, err := svc.RemoveSource(context.Background(), userID, "doc-1")
	require.NoError(t, err)

	// The shared position stays, now citing only the surviving source.
	require.Len(t, profile.Experience, 1)
	assert.Equal(t, models.SourceSet{"doc-2"}, profile.Experience[0].Sources)

	// Skills contributed only by doc-1 are gone; doc-2's skill stays.
	require.Len(t, profile.Skills, 1)
	assert.Equal(t, "Kubernetes", profile.Skills[0].Name)
	assert.Equal(t, models.SourceSet{"doc-2"}, profile.Sources)
	assert.Equal(t, 1, profile.TotalSourcesProcessed)

	assert.Empty(t, profile.ValidateProvenance())
}

func TestRemoveSource_ReversesAdd(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)
	profile, err := svc.RemoveSource(context.Background(), userID, "doc-1")
	require.NoError(t, err)

	assert.Empty(t, profile.Experience)
	assert.Empty(t, profile.Skills)
	assert.Empty(t, profile.Education)
	assert.Empty(t, profile.Sources)
	assert.Equal(t, 0, profile.TotalSourcesProcessed)
	assert.Equal(t, int64(2), profile.Version)

	require.Len(t, repo.audits, 2)
	assert.Equal(t, models.ChangeTypeSourceRemoved, repo.audits[1].ChangeType)
}

func TestAddSource_MatcherContractViolation(t *testing.T) {
	repo := newMemRepo()
	matcher := &fakeMatcher{
		mutate: func(r *models.MatchResult) {
			r.Profile.Skills[0].Sources = nil
		},
	}
	svc := newTestService(repo, matcher)
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.ErrorIs(t, err, apperrors.ErrMatcherContract)

	// Contract violations are permanent: one matcher call, nothing written.
	assert.Equal(t, 1, matcher.calls)
	assert.Equal(t, 0, repo.casCalls)
	assert.Empty(t, repo.audits)

	stored, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
	assert.Empty(t, stored.Skills)
}

func TestAddSource_CollaboratorFailureNotRetried(t *testing.T) {
	repo := newMemRepo()
	matcher := &fakeMatcher{
		matchErr: fmt.Errorf("model timed out: %w", apperrors.ErrCollaboratorUnavailable),
	}
	svc := newTestService(repo, matcher)

	_, err := svc.AddSource(context.Background(), uuid.New(), "doc-1", cvOne())
	require.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)
	assert.Equal(t, 1, matcher.calls)
	assert.Empty(t, repo.audits)
}

func TestAddSource_ConflictRetriesThenSucceeds(t *testing.T) {
	repo := newMemRepo()
	repo.casErr = func(call int) error {
		if call <= 2 {
			return fmt.Errorf("lost race: %w", apperrors.ErrConflict)
		}
		return nil
	}
	matcher := &fakeMatcher{}
	svc := newTestService(repo, matcher)

	profile, err := svc.AddSource(context.Background(), uuid.New(), "doc-1", cvOne())
	require.NoError(t, err)
	assert.Equal(t, 3, repo.casCalls)
	// Each retry re-reads and re-matches against the latest profile.
	assert.Equal(t, 3, matcher.calls)
	assert.Equal(t, int64(1), profile.Version)
}

func TestAddSource_ConflictRetriesExhausted(t *testing.T) {
	repo := newMemRepo()
	repo.casErr = func(call int) error {
		return fmt.Errorf("lost race: %w", apperrors.ErrConflict)
	}
	svc := newTestService(repo, &fakeMatcher{})

	_, err := svc.AddSource(context.Background(), uuid.New(), "doc-1", cvOne())
	require.ErrorIs(t, err, apperrors.ErrConflict)
	// Initial attempt plus three bounded retries.
	assert.Equal(t, 4, repo.casCalls)
	assert.Empty(t, repo.audits)
}

func TestAddSource_CancelledContext(t *testing.T) {
	repo := newMemRepo()
	matcher := &fakeMatcher{}
	svc := newTestService(repo, matcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AddSource(ctx, uuid.New(), "doc-1", cvOne())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, matcher.calls)
	assert.Equal(t, 0, repo.casCalls)
}

func TestAddSource_MissingSourceID(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeMatcher{})

	_, err := svc.AddSource(context.Background(), uuid.New(), "", cvOne())
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddSource_NilExtracted(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeMatcher{})

	_, err := svc.AddSource(context.Background(), uuid.New(), "doc-1", nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRemoveSource_UnknownSource(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)

	_, err = svc.RemoveSource(context.Background(), userID, "doc-99")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveSource_NoProfile(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeMatcher{})

	_, err := svc.RemoveSource(context.Background(), uuid.New(), "doc-1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListAudit_NewestFirst(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeMatcher{})
	userID := uuid.New()

	_, err := svc.AddSource(context.Background(), userID, "doc-1", cvOne())
	require.NoError(t, err)
	_, err = svc.RemoveSource(context.Background(), userID, "doc-1")
	require.NoError(t, err)

	records, err := svc.ListAudit(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.ChangeTypeSourceRemoved, records[0].ChangeType)
	assert.Equal(t, models.ChangeTypeSourceAdded, records[1].ChangeType)
}
