package models

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Section identifiers, in fixed declaration order. The order drives
// FirstIncompleteSectionID and the UI's initial focus.
const (
	SectionPersonal       = "personal"
	SectionExperience     = "experience"
	SectionEducation      = "education"
	SectionSkills         = "skills"
	SectionProjects       = "projects"
	SectionCertifications = "certifications"
	SectionLanguages      = "languages"
)

// SectionOrder is the fixed declaration order of profile sections.
var SectionOrder = []string{
	SectionPersonal,
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionProjects,
	SectionCertifications,
	SectionLanguages,
}

// FieldFinding is one rule-table outcome for a tracked field.
type FieldFinding struct {
	Field      string   `json:"field"`
	Label      string   `json:"label"`
	Section    string   `json:"section"`
	IsRequired bool     `json:"is_required"`
	IsMissing  bool     `json:"is_missing"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

// SectionReport aggregates findings for one profile section.
type SectionReport struct {
	ID                   string   `json:"id"`
	Label                string   `json:"label"`
	IsComplete           bool     `json:"is_complete"`
	CompletionPercentage int      `json:"completion_percentage"`
	MissingFields        []string `json:"missing_fields"`
	WarningFields        []string `json:"warning_fields"`
}

// ValidationReport is the deterministic completeness/quality assessment of
// one candidate profile. It is always derived fresh and never persisted.
type ValidationReport struct {
	IsComplete      bool            `json:"is_complete"`
	OverallScore    int             `json:"overall_score"`
	Sections        []SectionReport `json:"sections"`
	CriticalMissing []FieldFinding  `json:"critical_missing"`
	Recommendations []string        `json:"recommendations"`
}
