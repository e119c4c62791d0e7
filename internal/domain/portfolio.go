package domain

import (
	"encoding/json"
	"sort"
)

// PortfolioContext is the static document describing the portfolio owner.
// It is treated as immutable once loaded.
type PortfolioContext struct {
	Profile        Profile         `json:"profile"`
	Skills         SkillSet        `json:"skills"`
	Experience     []Experience    `json:"experience" validate:"dive"`
	Projects       []Project       `json:"projects" validate:"dive"`
	Education      []Education     `json:"education"`
	Achievements   []string        `json:"achievements"`
	Certifications []Certification `json:"certifications"`
	Keywords       Keywords        `json:"keywords"`
}

// Profile holds identity and contact fields.
type Profile struct {
	Name         string `json:"name" validate:"required"`
	Headline     string `json:"headline"`
	Location     string `json:"location"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	GitHub       string `json:"github"`
	LinkedIn     string `json:"linkedin"`
	Availability string `json:"availability"`
	Summary      string `json:"summary"`
}

// Experience is one position held by the portfolio owner.
type Experience struct {
	Role             string   `json:"role" validate:"required"`
	Company          string   `json:"company" validate:"required"`
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	Description      string   `json:"description"`
	Responsibilities []string `json:"responsibilities"`
	Technologies     []string `json:"technologies"`
}

// Project is one portfolio project.
type Project struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Highlights   []string `json:"highlights"`
}

// Education is one degree or qualification.
type Education struct {
	Degree      string     `json:"degree"`
	Field       string     `json:"field"`
	Institution string     `json:"institution"`
	Year        FlexString `json:"year"`
	GPA         FlexString `json:"gpa"`
}

// Certification is one professional certification.
type Certification struct {
	Name   string     `json:"name"`
	Issuer string     `json:"issuer"`
	Year   FlexString `json:"year"`
}

// Keywords carries document-supplied relevance hints.
type Keywords struct {
	PortfolioRelated []string `json:"portfolio_related"`
}

// SkillSet maps a skill category to its skills.
type SkillSet map[string][]string

// UnmarshalJSON keeps only categories whose value is a list of strings.
// Other shapes are skipped rather than failing the whole document.
func (s *SkillSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(SkillSet, len(raw))
	for category, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			continue
		}
		out[category] = list
	}
	*s = out
	return nil
}

// Categories returns the skill categories in sorted order.
func (s SkillSet) Categories() []string {
	cats := make([]string, 0, len(s))
	for c := range s {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// FlexString accepts a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
