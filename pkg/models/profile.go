// Package models contains domain types for profile-engine.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceSet is an ordered set of source document ids. Order is insertion
// order, which keeps JSON snapshots deterministic. Membership is unique.
type SourceSet []string

// Has returns true if the set contains the given source id.
func (s SourceSet) Has(sourceID string) bool {
	for _, id := range s {
		if id == sourceID {
			return true
		}
	}
	return false
}

// Add returns the set with sourceID appended if not already present.
func (s SourceSet) Add(sourceID string) SourceSet {
	if s.Has(sourceID) {
		return s
	}
	return append(s, sourceID)
}

// Remove returns the set without sourceID, preserving order.
func (s SourceSet) Remove(sourceID string) SourceSet {
	out := make(SourceSet, 0, len(s))
	for _, id := range s {
		if id != sourceID {
			out = append(out, id)
		}
	}
	return out
}

// PersonalInfo holds scalar identity fields. Last writer wins; no
// provenance is tracked for scalars.
type PersonalInfo struct {
	Name    string `json:"name,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ContactFieldCount is the number of scalar contact fields scored for
// completeness.
const ContactFieldCount = 5

// ContactInfo holds scalar contact fields. Last writer wins.
type ContactInfo struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
}

// PopulatedCount returns how many of the five contact fields are set.
func (c ContactInfo) PopulatedCount() int {
	count := 0
	for _, v := range []string{c.Email, c.Phone, c.Location, c.LinkedIn, c.Website} {
		if v != "" {
			count++
		}
	}
	return count
}

// ExperienceEntry is a provenanced experience fact. Sources must never be
// empty while the entry is present in a profile.
type ExperienceEntry struct {
	Role       string    `json:"role"`
	Company    string    `json:"company"`
	Duration   string    `json:"duration,omitempty"`
	Location   string    `json:"location,omitempty"`
	Highlights []string  `json:"highlights,omitempty"`
	Sources    SourceSet `json:"sources"`
}

// EducationEntry is a provenanced education fact.
type EducationEntry struct {
	Degree      string    `json:"degree"`
	Institution string    `json:"institution"`
	Field       string    `json:"field,omitempty"`
	Year        string    `json:"year,omitempty"`
	Sources     SourceSet `json:"sources"`
}

// SkillEntry is a provenanced skill fact.
type SkillEntry struct {
	Name    string    `json:"name"`
	Sources SourceSet `json:"sources"`
}

// CanonicalProfile is the single consolidated, cross-document profile
// record for a user. It is mutated only through the consolidation
// engine's AddSource/RemoveSource operations.
type CanonicalProfile struct {
	UserID     uuid.UUID         `json:"user_id"`
	Personal   PersonalInfo      `json:"personal"`
	Contact    ContactInfo       `json:"contact"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
	Skills     []SkillEntry      `json:"skills"`

	// Sources lists every processed source id in insertion order. It is
	// the authoritative membership record: a source that contributed only
	// scalar fields is never cited by an entry but still appears here.
	Sources SourceSet `json:"sources"`

	Version               int64     `json:"version"`
	TotalSourcesProcessed int       `json:"total_sources_processed"`
	ConfidenceScore       float64   `json:"confidence_score"`
	CompletenessScore     float64   `json:"completeness_score"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewCanonicalProfile returns an empty profile for the given user.
// Profiles are created lazily on first AddSource.
func NewCanonicalProfile(userID uuid.UUID) *CanonicalProfile {
	now := time.Now()
	return &CanonicalProfile{
		UserID:     userID,
		Experience: []ExperienceEntry{},
		Education:  []EducationEntry{},
		Skills:     []SkillEntry{},
		Sources:    SourceSet{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy of the profile. Used for audit snapshots and
// for keeping the caller's view unchanged when a mutation fails.
func (p *CanonicalProfile) Clone() *CanonicalProfile {
	if p == nil {
		return nil
	}
	out := *p

	out.Experience = make([]ExperienceEntry, len(p.Experience))
	for i, e := range p.Experience {
		e.Highlights = append([]string(nil), e.Highlights...)
		e.Sources = append(SourceSet(nil), e.Sources...)
		out.Experience[i] = e
	}

	out.Education = make([]EducationEntry, len(p.Education))
	for i, e := range p.Education {
		e.Sources = append(SourceSet(nil), e.Sources...)
		out.Education[i] = e
	}

	out.Skills = make([]SkillEntry, len(p.Skills))
	for i, s := range p.Skills {
		s.Sources = append(SourceSet(nil), s.Sources...)
		out.Skills[i] = s
	}

	out.Sources = append(SourceSet(nil), p.Sources...)

	return &out
}

// RemoveSource strips sourceID from the profile's membership record and
// from every provenanced entry, dropping entries whose source set becomes
// empty. Returns the number of entries dropped. Entries whose sources
// become empty are deleted, never kept as orphans.
func (p *CanonicalProfile) RemoveSource(sourceID string) int {
	p.Sources = p.Sources.Remove(sourceID)
	dropped := 0

	experience := p.Experience[:0]
	for _, e := range p.Experience {
		e.Sources = e.Sources.Remove(sourceID)
		if len(e.Sources) == 0 {
			dropped++
			continue
		}
		experience = append(experience, e)
	}
	p.Experience = experience

	education := p.Education[:0]
	for _, e := range p.Education {
		e.Sources = e.Sources.Remove(sourceID)
		if len(e.Sources) == 0 {
			dropped++
			continue
		}
		education = append(education, e)
	}
	p.Education = education

	skills := p.Skills[:0]
	for _, s := range p.Skills {
		s.Sources = s.Sources.Remove(sourceID)
		if len(s.Sources) == 0 {
			dropped++
			continue
		}
		skills = append(skills, s)
	}
	p.Skills = skills

	return dropped
}

// ContainsSource reports whether sourceID has been processed into the
// profile. Membership comes from the profile's own source record, not
// from entry citations: a source that contributed only scalar fields is
// still a member.
func (p *CanonicalProfile) ContainsSource(sourceID string) bool {
	return p.Sources.Has(sourceID)
}

// ValidateProvenance checks the invariant that every provenanced entry
// carries at least one source id. Returns the offending entry description,
// or empty string if the profile is valid.
func (p *CanonicalProfile) ValidateProvenance() string {
	for i, e := range p.Experience {
		if len(e.Sources) == 0 {
			return fmt.Sprintf("experience[%d] %s @ %s", i, e.Role, e.Company)
		}
	}
	for i, e := range p.Education {
		if len(e.Sources) == 0 {
			return fmt.Sprintf("education[%d] %s @ %s", i, e.Degree, e.Institution)
		}
	}
	for i, s := range p.Skills {
		if len(s.Sources) == 0 {
			return fmt.Sprintf("skills[%d] %s", i, s.Name)
		}
	}
	return ""
}
