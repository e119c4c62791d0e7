package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillSetSkipsNonListCategories(t *testing.T) {
	doc := `{
		"profile": {"name": "Jane Doe"},
		"skills": {
			"frontend": ["Angular", "TypeScript"],
			"backend": ["Go"],
			"summary": "not a list",
			"levels": [{"name": "Go", "level": "expert"}]
		}
	}`

	var pc PortfolioContext
	require.NoError(t, json.Unmarshal([]byte(doc), &pc))

	assert.Equal(t, "Jane Doe", pc.Profile.Name)
	assert.Equal(t, []string{"backend", "frontend"}, pc.Skills.Categories())
	assert.Equal(t, []string{"Angular", "TypeScript"}, pc.Skills["frontend"])
}

func TestPortfolioContextToleratesMissingFields(t *testing.T) {
	var pc PortfolioContext
	require.NoError(t, json.Unmarshal([]byte(`{"profile":{"name":"A"}}`), &pc))

	assert.Empty(t, pc.Skills)
	assert.Empty(t, pc.Projects)
	assert.Empty(t, pc.Keywords.PortfolioRelated)
}

func TestFlexStringAcceptsNumbers(t *testing.T) {
	var edu Education
	require.NoError(t, json.Unmarshal([]byte(`{"degree":"BSc","year":2020,"gpa":"3.8"}`), &edu))

	assert.Equal(t, FlexString("2020"), edu.Year)
	assert.Equal(t, FlexString("3.8"), edu.GPA)
}
