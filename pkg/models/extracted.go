package models

import (
	"encoding/json"
	"strings"

	"github.com/careerloom/profile-engine/pkg/jsonutil"
)

// ExtractedCVInfo is the output of the external extraction collaborator,
// consumed as input by validation and consolidation. Field names in the
// raw payload vary by extraction pass (role/title, duration/dates,
// highlights/bullets/responsibilities); UnmarshalJSON normalizes the
// aliases at this boundary so nothing downstream needs fallback chains.
type ExtractedCVInfo struct {
	Name           string                `json:"name"`
	Summary        string                `json:"summary,omitempty"`
	SeniorityLevel string                `json:"seniority_level,omitempty"`
	Contact        ContactInfo           `json:"contact"`
	RawContact     string                `json:"raw_contact,omitempty"`
	Experience     []ExtractedExperience `json:"experience"`
	Education      []ExtractedEducation  `json:"education"`
	Skills         []string              `json:"skills"`
	Projects       []string              `json:"projects,omitempty"`
	Certifications []string              `json:"certifications,omitempty"`
	Languages      []string              `json:"languages,omitempty"`
}

// ExtractedExperience is one un-provenanced experience entry.
type ExtractedExperience struct {
	Role       string   `json:"role"`
	Company    string   `json:"company"`
	Duration   string   `json:"duration,omitempty"`
	Location   string   `json:"location,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// ExtractedEducation is one un-provenanced education entry.
type ExtractedEducation struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Field       string `json:"field,omitempty"`
	Year        string `json:"year,omitempty"`
}

// HasEmail reports whether an email is available, either as a structured
// field or embedded in the raw contact string.
func (e *ExtractedCVInfo) HasEmail() bool {
	if e.Contact.Email != "" {
		return true
	}
	return strings.Contains(e.RawContact, "@")
}

// firstRaw returns the first present key from the raw object.
func firstRaw(obj map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := obj[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

// UnmarshalJSON tolerates the loosely-typed records different extraction
// passes produce: synonymous field names, scalars where strings are
// expected, and skills given either as strings or as {name: ...} objects.
func (e *ExtractedExperience) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	e.Role = jsonutil.FlexibleStringValue(firstRaw(obj, "role", "title", "position"))
	e.Company = jsonutil.FlexibleStringValue(firstRaw(obj, "company", "employer", "organization"))
	e.Duration = jsonutil.FlexibleStringValue(firstRaw(obj, "duration", "dates", "period"))
	e.Location = jsonutil.FlexibleStringValue(firstRaw(obj, "location"))
	e.Highlights = jsonutil.FlexibleStringSlice(firstRaw(obj, "highlights", "bullets", "responsibilities", "achievements"))
	return nil
}

// UnmarshalJSON normalizes education field aliases.
func (e *ExtractedEducation) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	e.Degree = jsonutil.FlexibleStringValue(firstRaw(obj, "degree", "qualification"))
	e.Institution = jsonutil.FlexibleStringValue(firstRaw(obj, "institution", "school", "university"))
	e.Field = jsonutil.FlexibleStringValue(firstRaw(obj, "field", "field_of_study", "major"))
	e.Year = jsonutil.FlexibleStringValue(firstRaw(obj, "year", "dates", "graduation_year"))
	return nil
}

// UnmarshalJSON normalizes top-level field aliases and the skills shapes
// extractors produce ("Go" vs {"name": "Go"}).
func (e *ExtractedCVInfo) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	e.Name = jsonutil.FlexibleStringValue(firstRaw(obj, "name", "full_name"))
	e.Summary = jsonutil.FlexibleStringValue(firstRaw(obj, "summary", "objective", "about"))
	e.SeniorityLevel = jsonutil.FlexibleStringValue(firstRaw(obj, "seniority_level", "seniority"))
	e.RawContact = jsonutil.FlexibleStringValue(firstRaw(obj, "raw_contact"))

	if raw := firstRaw(obj, "contact", "contact_info", "contactInfo"); raw != nil {
		if err := unmarshalContact(raw, &e.Contact, &e.RawContact); err != nil {
			return err
		}
	}

	if raw := firstRaw(obj, "experience", "work_experience", "employment"); raw != nil {
		if err := json.Unmarshal(raw, &e.Experience); err != nil {
			return err
		}
	}
	if raw := firstRaw(obj, "education"); raw != nil {
		if err := json.Unmarshal(raw, &e.Education); err != nil {
			return err
		}
	}

	e.Skills = unmarshalNamedList(firstRaw(obj, "skills"))
	e.Projects = unmarshalNamedList(firstRaw(obj, "projects"))
	e.Certifications = unmarshalNamedList(firstRaw(obj, "certifications"))
	e.Languages = unmarshalNamedList(firstRaw(obj, "languages"))

	return nil
}

// unmarshalContact accepts either a structured contact object or a bare
// string (kept as raw contact for the email heuristic).
func unmarshalContact(raw json.RawMessage, contact *ContactInfo, rawContact *string) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if *rawContact == "" {
			*rawContact = s
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	contact.Email = jsonutil.FlexibleStringValue(firstRaw(obj, "email", "email_address"))
	contact.Phone = jsonutil.FlexibleStringValue(firstRaw(obj, "phone", "phone_number", "mobile"))
	contact.Location = jsonutil.FlexibleStringValue(firstRaw(obj, "location", "address", "city"))
	contact.LinkedIn = jsonutil.FlexibleStringValue(firstRaw(obj, "linkedin", "linkedin_url"))
	contact.Website = jsonutil.FlexibleStringValue(firstRaw(obj, "website", "portfolio", "url"))
	return nil
}

// unmarshalNamedList accepts arrays of strings, arrays of scalars, or
// arrays of objects carrying a name/title field.
func unmarshalNamedList(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return jsonutil.FlexibleStringSlice(raw)
	}

	out := make([]string, 0, len(rawItems))
	for _, item := range rawItems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err == nil {
			if s := jsonutil.FlexibleStringValue(firstRaw(obj, "name", "title", "skill")); s != "" {
				out = append(out, s)
			}
			continue
		}
		if s := jsonutil.FlexibleStringValue(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
