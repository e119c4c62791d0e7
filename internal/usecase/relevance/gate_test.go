package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"portfolio-assistant/internal/domain"
)

func testContext() *domain.PortfolioContext {
	return &domain.PortfolioContext{
		Profile: domain.Profile{Name: "Jordan Reyes", Headline: "Full Stack Engineer"},
		Experience: []domain.Experience{
			{Role: "Senior Engineer", Company: "Northwind Labs"},
		},
		Keywords: domain.Keywords{PortfolioRelated: []string{"billing"}},
	}
}

func TestCheckEmpty(t *testing.T) {
	g := New()
	for _, in := range []string{"", " ", "\t\n", "   \r\n  "} {
		v := g.Check(in, testContext())
		assert.False(t, v.IsRelevant, "%q", in)
		assert.Equal(t, 0.0, v.Confidence, "%q", in)
		assert.Equal(t, ReasonEmpty, v.Reason)
	}
}

func TestCheckHardBlockers(t *testing.T) {
	g := New()
	inputs := []string{
		"recipe for pasta",
		"What's your opinion on Bitcoin?",
		"tell me about your NFT projects",
		"Any stock tip for an engineer?",
		"cooking with Angular skills",
		"give me exam answers",
		"Jordan, can you help me cheat",
		"need medical advice about my experience",
	}
	for _, ctx := range []*domain.PortfolioContext{nil, testContext()} {
		for _, in := range inputs {
			v := g.Check(in, ctx)
			assert.False(t, v.IsRelevant, "%q", in)
			assert.Equal(t, 0.1, v.Confidence, "%q", in)
			assert.Equal(t, ReasonOffTopic, v.Reason, "%q", in)
		}
	}
}

func TestCheckAccepted(t *testing.T) {
	g := New()
	tests := []struct {
		name string
		in   string
	}{
		{"domain keyword", "What are your Angular skills?"},
		{"bare keyword", "angular"},
		{"keyword any case", "PYTHON?"},
		{"lead-in phrase", "how many languages then"},
		{"about-person pattern", "do you like remote teams"},
		{"tell me more", "tell me more about yourself"},
		{"name part", "Where did Reyes study?"},
		{"full name", "is jordan reyes around"},
		{"employer", "northwind labs stuff"},
		{"document keyword", "billing pipeline details"},
		{"headline", "full stack engineer?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Check(tt.in, testContext())
			assert.True(t, v.IsRelevant, "%q", tt.in)
			assert.Equal(t, 0.95, v.Confidence)
			assert.Equal(t, ReasonAccepted, v.Reason)
		})
	}
}

func TestCheckUncertain(t *testing.T) {
	g := New()
	for _, in := range []string{"hello there", "weather in Paris tomorrow", "ok", "42"} {
		v := g.Check(in, testContext())
		assert.False(t, v.IsRelevant, "%q", in)
		assert.Equal(t, 0.3, v.Confidence, "%q", in)
		assert.Equal(t, ReasonUnsure, v.Reason)
	}
}

func TestCheckProfileMentionNeedsContext(t *testing.T) {
	g := New()
	assert.True(t, g.Check("Where did Reyes study?", testContext()).IsRelevant)
	assert.False(t, g.Check("Where did Reyes study?", nil).IsRelevant)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "node", "and", "typescript"}, tokenize("what? node.js and typescript"))
	assert.Empty(t, tokenize("a an to"))
}
