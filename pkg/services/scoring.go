// Package services contains the consolidation engine: scoring, semantic
// matching, and the orchestration that applies source changes to a user's
// canonical profile.
package services

import (
	"math"

	"github.com/careerloom/profile-engine/pkg/models"
)

// Completeness component weights. They sum to 1.0 so the score stays in
// [0, 1] without a final normalization step.
const (
	weightPersonal   = 0.20
	weightContact    = 0.20
	weightSkills     = 0.20
	weightExperience = 0.30
	weightEducation  = 0.10
)

// Confidence bonus caps. Confidence rewards corroboration on top of
// completeness but can never exceed 1.0.
const (
	newItemBonus    = 0.02
	newItemBonusCap = 0.2
	expCountBonus   = 0.02
	expCountCap     = 0.1
)

// ComputeCompleteness scores how filled-out a canonical profile is. The
// result is deterministic for a given profile and always within [0, 1].
func ComputeCompleteness(profile *models.CanonicalProfile) float64 {
	if profile == nil {
		return 0
	}

	score := 0.0

	if profile.Personal.Name != "" || profile.Personal.Summary != "" {
		score += weightPersonal
	}

	populated := profile.Contact.PopulatedCount()
	score += weightContact * (float64(populated) / float64(models.ContactFieldCount))

	if len(profile.Skills) > 0 {
		score += weightSkills
	}
	if len(profile.Experience) > 0 {
		score += weightExperience
	}
	if len(profile.Education) > 0 {
		score += weightEducation
	}

	return clampScore(score)
}

// ComputeConfidence scores how much corroborated evidence backs the
// profile. It starts from completeness and adds bounded bonuses for newly
// contributed items and overall experience depth, so confidence is always
// at least the completeness score and never above 1.0.
func ComputeConfidence(profile *models.CanonicalProfile, newItems int) float64 {
	if profile == nil {
		return 0
	}

	score := ComputeCompleteness(profile)
	score += math.Min(newItemBonusCap, float64(newItems)*newItemBonus)
	score += math.Min(expCountCap, float64(len(profile.Experience))*expCountBonus)

	return clampScore(score)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
