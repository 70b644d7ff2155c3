// Package validation implements the deterministic completeness/quality
// assessment of one extracted candidate profile. It is pure: no I/O, no
// error path. Every input, including an entirely empty profile, produces a
// well-formed report.
package validation

import (
	"fmt"
	"math"

	"github.com/careerloom/profile-engine/pkg/models"
)

// Tracked-field counts per section. Percentages are computed against these
// totals, so a section with no findings reports 100.
var sectionFieldCounts = map[string]int{
	models.SectionPersonal:       7, // name, email, phone, location, linkedin, seniority, summary
	models.SectionExperience:     3, // has entries, highlights coverage, duration coverage
	models.SectionEducation:      1,
	models.SectionSkills:         2, // has entries, breadth
	models.SectionProjects:       1,
	models.SectionCertifications: 1,
	models.SectionLanguages:      1,
}

var sectionLabels = map[string]string{
	models.SectionPersonal:       "Personal Details",
	models.SectionExperience:     "Work Experience",
	models.SectionEducation:      "Education",
	models.SectionSkills:         "Skills",
	models.SectionProjects:       "Projects",
	models.SectionCertifications: "Certifications",
	models.SectionLanguages:      "Languages",
}

// requiredFieldCount is the number of always-tracked required fields:
// name, email, at least one experience entry, at least one skill.
const requiredFieldCount = 4

// minSkillBreadth is the skill count below which a breadth advisory fires.
const minSkillBreadth = 5

// Validate evaluates one extracted candidate profile against the rule
// table and returns a structured completeness report. Absent fields
// produce findings, never errors.
func Validate(profile *models.ExtractedCVInfo) *models.ValidationReport {
	if profile == nil {
		profile = &models.ExtractedCVInfo{}
	}

	findings := collectFindings(profile)

	var criticalMissing []models.FieldFinding
	for _, f := range findings {
		if f.IsRequired && f.IsMissing {
			criticalMissing = append(criticalMissing, f)
		}
	}

	report := &models.ValidationReport{
		IsComplete:      len(criticalMissing) == 0,
		OverallScore:    overallScore(len(criticalMissing)),
		Sections:        buildSectionReports(findings),
		CriticalMissing: criticalMissing,
		Recommendations: buildRecommendations(profile, findings),
	}
	return report
}

// FirstIncompleteSectionID returns the id of the first section, in fixed
// declaration order, whose IsComplete is false. Returns empty string when
// every section is complete; the consuming UI treats that as "no focus".
func FirstIncompleteSectionID(report *models.ValidationReport) string {
	if report == nil {
		return ""
	}
	bySection := make(map[string]models.SectionReport, len(report.Sections))
	for _, s := range report.Sections {
		bySection[s.ID] = s
	}
	for _, id := range models.SectionOrder {
		if s, ok := bySection[id]; ok && !s.IsComplete {
			return id
		}
	}
	return ""
}

func collectFindings(p *models.ExtractedCVInfo) []models.FieldFinding {
	var findings []models.FieldFinding

	add := func(field, label, section string, required bool, severity models.Severity, missing bool, message string) {
		findings = append(findings, models.FieldFinding{
			Field:      field,
			Label:      label,
			Section:    section,
			IsRequired: required,
			IsMissing:  missing,
			Severity:   severity,
			Message:    message,
		})
	}

	// Personal section: identity, contact and summary rules.
	if p.Name == "" {
		add("name", "Full name", models.SectionPersonal, true, models.SeverityError, true,
			"Add your full name so the profile can be attributed")
	}
	if !p.HasEmail() {
		add("email", "Email address", models.SectionPersonal, true, models.SeverityError, true,
			"Add an email address so employers can reach you")
	}
	if p.Contact.Phone == "" {
		add("phone", "Phone number", models.SectionPersonal, false, models.SeverityWarning, true,
			"A phone number makes you easier to contact")
	}
	if p.Contact.Location == "" {
		add("location", "Location", models.SectionPersonal, false, models.SeverityInfo, true,
			"Location helps match you to local opportunities")
	}
	if p.Contact.LinkedIn == "" {
		add("linkedin", "LinkedIn", models.SectionPersonal, false, models.SeverityInfo, true,
			"A LinkedIn profile adds credibility")
	}
	if p.SeniorityLevel == "" {
		add("seniority_level", "Seniority level", models.SectionPersonal, false, models.SeverityInfo, true,
			"Stating a seniority level sharpens career analysis")
	}
	if p.Summary == "" {
		add("summary", "Professional summary", models.SectionPersonal, false, models.SeverityWarning, true,
			"A short summary gives reviewers immediate context")
	}

	// Experience section: emptiness is fatal; per-entry gaps are counted in
	// aggregate, one finding for all affected entries.
	if len(p.Experience) == 0 {
		add("experience", "Work experience", models.SectionExperience, true, models.SeverityError, true,
			"At least one experience entry is required")
	} else {
		if n := countMissingHighlights(p.Experience); n > 0 {
			add("experience_highlights", "Experience highlights", models.SectionExperience, false, models.SeverityWarning, true,
				fmt.Sprintf("%d experience entr%s no highlights", n, pluralYHave(n)))
		}
		if n := countMissingDurations(p.Experience); n > 0 {
			add("experience_duration", "Experience dates", models.SectionExperience, false, models.SeverityWarning, true,
				fmt.Sprintf("%d experience entr%s no dates", n, pluralYHave(n)))
		}
	}

	if len(p.Education) == 0 {
		add("education", "Education", models.SectionEducation, false, models.SeverityWarning, true,
			"Education entries strengthen most profiles")
	}

	if len(p.Skills) == 0 {
		add("skills", "Skills", models.SectionSkills, true, models.SeverityError, true,
			"At least one skill is required")
	} else if len(p.Skills) < minSkillBreadth {
		add("skills_breadth", "Skill breadth", models.SectionSkills, false, models.SeverityInfo, false,
			fmt.Sprintf("Only %d skills listed; %d or more reads better", len(p.Skills), minSkillBreadth))
	}

	if len(p.Projects) == 0 {
		add("projects", "Projects", models.SectionProjects, false, models.SeverityInfo, true,
			"Projects showcase hands-on work")
	}
	if len(p.Certifications) == 0 {
		add("certifications", "Certifications", models.SectionCertifications, false, models.SeverityInfo, true,
			"Certifications can differentiate similar candidates")
	}
	if len(p.Languages) == 0 {
		add("languages", "Languages", models.SectionLanguages, false, models.SeverityInfo, true,
			"Spoken languages widen your match pool")
	}

	return findings
}

func buildSectionReports(findings []models.FieldFinding) []models.SectionReport {
	bySection := make(map[string][]models.FieldFinding)
	for _, f := range findings {
		bySection[f.Section] = append(bySection[f.Section], f)
	}

	reports := make([]models.SectionReport, 0, len(models.SectionOrder))
	for _, id := range models.SectionOrder {
		sectionFindings := bySection[id]

		missing := 0
		complete := true
		var missingFields, warningFields []string
		for _, f := range sectionFindings {
			if f.IsMissing {
				missing++
				missingFields = append(missingFields, f.Field)
			}
			if f.Severity == models.SeverityWarning {
				warningFields = append(warningFields, f.Field)
			}
			if f.IsRequired && f.IsMissing {
				complete = false
			}
		}

		total := sectionFieldCounts[id]
		reports = append(reports, models.SectionReport{
			ID:                   id,
			Label:                sectionLabels[id],
			IsComplete:           complete,
			CompletionPercentage: percentage(total-missing, total),
			MissingFields:        missingFields,
			WarningFields:        warningFields,
		})
	}
	return reports
}

func buildRecommendations(p *models.ExtractedCVInfo, findings []models.FieldFinding) []string {
	errors, warnings := 0, 0
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityError:
			errors++
		case models.SeverityWarning:
			warnings++
		}
	}

	var recs []string
	if errors > 0 {
		recs = append(recs, fmt.Sprintf("Resolve %d critical gap%s before requesting analysis", errors, plural(errors)))
	}
	if warnings > 0 {
		recs = append(recs, fmt.Sprintf("Address %d warning%s to improve profile quality", warnings, plural(warnings)))
	}
	if n := countMissingHighlights(p.Experience); n > 0 {
		recs = append(recs, "Add achievement highlights to every experience entry; bullet points carry the most weight with reviewers")
	}
	return recs
}

func countMissingHighlights(entries []models.ExtractedExperience) int {
	n := 0
	for _, e := range entries {
		if len(e.Highlights) == 0 {
			n++
		}
	}
	return n
}

func countMissingDurations(entries []models.ExtractedExperience) int {
	n := 0
	for _, e := range entries {
		if e.Duration == "" {
			n++
		}
	}
	return n
}

func overallScore(requiredMissing int) int {
	return percentage(requiredFieldCount-requiredMissing, requiredFieldCount)
}

// percentage returns round(100*present/total) clamped to [0,100].
// A zero total counts as fully present.
func percentage(present, total int) int {
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(100 * float64(present) / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func pluralYHave(n int) string {
	if n == 1 {
		return "y has"
	}
	return "ies have"
}
