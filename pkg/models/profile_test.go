package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceSet_Add(t *testing.T) {
	s := SourceSet{}
	s = s.Add("h1")
	s = s.Add("h2")
	s = s.Add("h1") // duplicate, no-op

	assert.Equal(t, SourceSet{"h1", "h2"}, s)
	assert.True(t, s.Has("h1"))
	assert.False(t, s.Has("h3"))
}

func TestSourceSet_Remove(t *testing.T) {
	s := SourceSet{"h1", "h2", "h3"}

	assert.Equal(t, SourceSet{"h1", "h3"}, s.Remove("h2"))
	assert.Equal(t, SourceSet{"h1", "h2", "h3"}, s.Remove("missing"))
	assert.Empty(t, SourceSet{"h1"}.Remove("h1"))
}

func TestContactInfo_PopulatedCount(t *testing.T) {
	assert.Equal(t, 0, ContactInfo{}.PopulatedCount())
	assert.Equal(t, 2, ContactInfo{Email: "a@b.c", Phone: "123"}.PopulatedCount())
	assert.Equal(t, 5, ContactInfo{
		Email: "a@b.c", Phone: "1", Location: "x", LinkedIn: "y", Website: "z",
	}.PopulatedCount())
}

func TestCanonicalProfile_RemoveSource(t *testing.T) {
	p := NewCanonicalProfile(uuid.New())
	p.Experience = []ExperienceEntry{
		{Role: "Eng", Company: "Acme", Sources: SourceSet{"h1"}},
		{Role: "SRE", Company: "Beta", Sources: SourceSet{"h1", "h2"}},
	}
	p.Education = []EducationEntry{
		{Degree: "BSc", Institution: "MIT", Sources: SourceSet{"h2"}},
	}
	p.Skills = []SkillEntry{
		{Name: "Go", Sources: SourceSet{"h1"}},
		{Name: "SQL", Sources: SourceSet{"h2"}},
	}
	p.Sources = SourceSet{"h1", "h2"}

	dropped := p.RemoveSource("h1")

	assert.Equal(t, 2, dropped)
	assert.Equal(t, SourceSet{"h2"}, p.Sources)
	assert.False(t, p.ContainsSource("h1"))
	assert.True(t, p.ContainsSource("h2"))
	require.Len(t, p.Experience, 1)
	assert.Equal(t, "SRE", p.Experience[0].Role)
	assert.Equal(t, SourceSet{"h2"}, p.Experience[0].Sources)
	assert.Len(t, p.Education, 1)
	require.Len(t, p.Skills, 1)
	assert.Equal(t, "SQL", p.Skills[0].Name)
	assert.Empty(t, p.ValidateProvenance())
}

func TestCanonicalProfile_RemoveSource_UnknownSource(t *testing.T) {
	p := NewCanonicalProfile(uuid.New())
	p.Skills = []SkillEntry{{Name: "Go", Sources: SourceSet{"h1"}}}

	dropped := p.RemoveSource("h9")

	assert.Equal(t, 0, dropped)
	assert.Len(t, p.Skills, 1)
}

func TestCanonicalProfile_Clone_IsIndependent(t *testing.T) {
	p := NewCanonicalProfile(uuid.New())
	p.Experience = []ExperienceEntry{
		{Role: "Eng", Company: "Acme", Highlights: []string{"built things"}, Sources: SourceSet{"h1"}},
	}
	p.Skills = []SkillEntry{{Name: "Go", Sources: SourceSet{"h1"}}}
	p.Sources = SourceSet{"h1"}

	clone := p.Clone()
	clone.Experience[0].Sources = clone.Experience[0].Sources.Add("h2")
	clone.Experience[0].Highlights[0] = "changed"
	clone.Skills[0].Name = "Rust"
	clone.Sources = clone.Sources.Add("h2")

	assert.Equal(t, SourceSet{"h1"}, p.Experience[0].Sources)
	assert.Equal(t, "built things", p.Experience[0].Highlights[0])
	assert.Equal(t, "Go", p.Skills[0].Name)
	assert.Equal(t, SourceSet{"h1"}, p.Sources)
}

// A source that contributed only scalar fields cites no entry but is
// still a member of the profile.
func TestCanonicalProfile_ContainsSource_ScalarOnlyMember(t *testing.T) {
	p := NewCanonicalProfile(uuid.New())
	p.Personal.Name = "Dana Reyes"
	p.Sources = SourceSet{"h1"}

	assert.True(t, p.ContainsSource("h1"))

	dropped := p.RemoveSource("h1")
	assert.Equal(t, 0, dropped)
	assert.False(t, p.ContainsSource("h1"))
	assert.Empty(t, p.Sources)
}

func TestCanonicalProfile_ValidateProvenance(t *testing.T) {
	p := NewCanonicalProfile(uuid.New())
	assert.Empty(t, p.ValidateProvenance())

	p.Experience = []ExperienceEntry{{Role: "Eng", Company: "Acme"}}
	violation := p.ValidateProvenance()
	assert.Contains(t, violation, "experience[0]")
	assert.Contains(t, violation, "Acme")
}

func TestClone_Nil(t *testing.T) {
	var p *CanonicalProfile
	assert.Nil(t, p.Clone())
}
