// Package repositories provides data access for canonical profiles and
// their audit trail. Everything is keyed strictly by user id; there are no
// cross-user reads.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careerloom/profile-engine/pkg/apperrors"
	"github.com/careerloom/profile-engine/pkg/database"
	"github.com/careerloom/profile-engine/pkg/models"
)

// pgUndefinedTable is the Postgres error code raised when required schema
// is absent, i.e. migrations have not been run.
const pgUndefinedTable = "42P01"

// ProfileRepository is the persistence gateway for canonical profiles.
// Writes are conditioned on the row's version (compare-and-swap) so
// concurrent consolidations of the same user cannot silently overwrite
// each other.
type ProfileRepository interface {
	// GetOrCreate returns the user's canonical profile, creating an empty
	// one at version 0 on first access.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error)

	// Get returns the user's canonical profile, or apperrors.ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error)

	// CompareAndSwap writes the profile only if the stored version still
	// equals expectedVersion. Returns apperrors.ErrConflict when another
	// mutation committed first.
	CompareAndSwap(ctx context.Context, userID uuid.UUID, expectedVersion int64, profile *models.CanonicalProfile) error

	// AppendAudit appends a record to the user's audit trail.
	AppendAudit(ctx context.Context, record *models.ProfileAuditRecord) error

	// ListAudit returns the newest audit records for the user, newest first.
	ListAudit(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ProfileAuditRecord, error)
}

type profileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new ProfileRepository backed by Postgres.
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepository{db: db}
}

var _ ProfileRepository = (*profileRepository)(nil)

func (r *profileRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error) {
	empty := models.NewCanonicalProfile(userID)
	emptyJSON, err := json.Marshal(empty)
	if err != nil {
		return nil, fmt.Errorf("marshal empty profile: %w", err)
	}

	query := `
		INSERT INTO canonical_profiles (user_id, profile, version, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, userID, emptyJSON, empty.CreatedAt); err != nil {
		return nil, mapPgError("create profile", err)
	}

	return r.Get(ctx, userID)
}

func (r *profileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.CanonicalProfile, error) {
	query := `
		SELECT profile, version
		FROM canonical_profiles
		WHERE user_id = $1`

	var profileJSON []byte
	var version int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&profileJSON, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile for user %s: %w", userID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, mapPgError("get profile", err)
	}

	var profile models.CanonicalProfile
	if err := json.Unmarshal(profileJSON, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	// The version column is authoritative; the snapshot may lag it.
	profile.Version = version

	return &profile, nil
}

func (r *profileRepository) CompareAndSwap(ctx context.Context, userID uuid.UUID, expectedVersion int64, profile *models.CanonicalProfile) error {
	profile.UpdatedAt = time.Now()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	query := `
		UPDATE canonical_profiles
		SET profile = $3, version = $4, updated_at = $5
		WHERE user_id = $1 AND version = $2`

	tag, err := r.db.Exec(ctx, query, userID, expectedVersion, profileJSON, profile.Version, profile.UpdatedAt)
	if err != nil {
		return mapPgError("write profile", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile for user %s changed since version %d: %w", userID, expectedVersion, apperrors.ErrConflict)
	}

	return nil
}

func (r *profileRepository) AppendAudit(ctx context.Context, record *models.ProfileAuditRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	previousJSON, err := json.Marshal(record.PreviousProfile)
	if err != nil {
		return fmt.Errorf("marshal previous snapshot: %w", err)
	}
	newJSON, err := json.Marshal(record.NewProfile)
	if err != nil {
		return fmt.Errorf("marshal new snapshot: %w", err)
	}

	query := `
		INSERT INTO profile_audit (
			id, user_id, change_type, source_id,
			previous_profile, new_profile, summary, confidence_impact, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		record.ID, record.UserID, record.ChangeType, record.SourceID,
		previousJSON, newJSON, record.Summary, record.ConfidenceImpact, record.CreatedAt,
	)
	if err != nil {
		return mapPgError("append audit record", err)
	}

	return nil
}

func (r *profileRepository) ListAudit(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ProfileAuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, change_type, source_id,
			previous_profile, new_profile, summary, confidence_impact, created_at
		FROM profile_audit
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, mapPgError("list audit records", err)
	}
	defer rows.Close()

	records := make([]*models.ProfileAuditRecord, 0)
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func scanAuditRecord(rows pgx.Rows) (*models.ProfileAuditRecord, error) {
	var rec models.ProfileAuditRecord
	var previousJSON, newJSON []byte

	err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.ChangeType, &rec.SourceID,
		&previousJSON, &newJSON, &rec.Summary, &rec.ConfidenceImpact, &rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan audit record: %w", err)
	}

	if err := json.Unmarshal(previousJSON, &rec.PreviousProfile); err != nil {
		return nil, fmt.Errorf("unmarshal previous snapshot: %w", err)
	}
	if err := json.Unmarshal(newJSON, &rec.NewProfile); err != nil {
		return nil, fmt.Errorf("unmarshal new snapshot: %w", err)
	}

	return &rec, nil
}

// mapPgError translates driver-level failures into the engine's error
// taxonomy. Missing tables mean migrations have not been applied, which
// callers must be able to distinguish from transient storage failures.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%s: table %q missing, run database migrations (migrations/): %w", op, pgErr.TableName, apperrors.ErrSetupIncomplete)
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrCollaboratorUnavailable, err)
}
