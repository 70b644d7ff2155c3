package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit change types.
const (
	ChangeTypeSourceAdded   = "source_added"
	ChangeTypeSourceRemoved = "source_removed"
)

// ProfileAuditRecord is one append-only entry in a user's consolidation
// audit trail. Records carry full before/after snapshots so removing a
// source later can be traced back to exactly what it contributed.
type ProfileAuditRecord struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	ChangeType       string            `json:"change_type"`
	SourceID         string            `json:"source_id"`
	PreviousProfile  *CanonicalProfile `json:"previous_profile"`
	NewProfile       *CanonicalProfile `json:"new_profile"`
	Summary          string            `json:"summary"`
	ConfidenceImpact float64           `json:"confidence_impact"`
	CreatedAt        time.Time         `json:"created_at"`
}

// MatchChange describes one change the semantic matcher reports for an
// AddSource merge.
type MatchChange struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// MatchSummary aggregates what an AddSource merge contributed.
type MatchSummary struct {
	NewSkills     int      `json:"new_skills"`
	NewExperience int      `json:"new_experience"`
	NewEducation  int      `json:"new_education"`
	UpdatedFields []string `json:"updated_fields"`
}

// NewItemCount returns the number of newly created (not merged) entries.
func (s MatchSummary) NewItemCount() int {
	return s.NewSkills + s.NewExperience + s.NewEducation
}

// MatchResult is the semantic matcher's output: a complete replacement
// profile plus a description of what changed.
type MatchResult struct {
	Profile *CanonicalProfile `json:"profile"`
	Changes []MatchChange     `json:"changes"`
	Summary MatchSummary      `json:"summary"`
}
