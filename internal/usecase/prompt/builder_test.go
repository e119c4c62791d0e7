package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/domain"
)

func sampleContext() *domain.PortfolioContext {
	return &domain.PortfolioContext{
		Profile: domain.Profile{
			Name:     "Jordan Reyes",
			Headline: "Full Stack Engineer",
			Email:    "jordan@example.com",
		},
		Skills: domain.SkillSet{
			"frontend": {"Angular", "TypeScript"},
			"backend":  {"Go", "Node.js"},
		},
		Experience: []domain.Experience{{
			Role:             "Senior Engineer",
			Company:          "Northwind Labs",
			StartDate:        "2021-03",
			Responsibilities: []string{"r1", "r2", "r3", "r4"},
			Technologies:     []string{"Go", "Postgres"},
		}},
		Projects: []domain.Project{
			{Title: "p1", Description: "d1", Highlights: []string{"h1", "h2", "h3"}},
			{Title: "p2"}, {Title: "p3"}, {Title: "p4"}, {Title: "p5"}, {Title: "p6"},
		},
		Education: []domain.Education{{
			Degree: "BSc", Field: "Computer Science", Institution: "State University", Year: "2018",
		}},
		Achievements:   []string{"Shipped billing v2", "Mentored four engineers"},
		Certifications: []domain.Certification{{Name: "CKA", Issuer: "CNCF", Year: "2022"}},
	}
}

func TestSystemPromptRendersContext(t *testing.T) {
	p := SystemPrompt(sampleContext())

	assert.True(t, strings.HasPrefix(p, "You are a professional AI assistant representing Jordan Reyes's portfolio"))
	assert.Contains(t, p, "Name: Jordan Reyes\n")
	assert.Contains(t, p, "Email: jordan@example.com\n")
	assert.NotContains(t, p, "Phone:")
	assert.Contains(t, p, "Summary: Professional developer with strong technical skills")
	assert.Contains(t, p, "TECHNICAL SKILLS:\nBackend: Go, Node.js\nFrontend: Angular, TypeScript")
	assert.Contains(t, p, "Senior Engineer at Northwind Labs (2021-03 - Present)")
	assert.Contains(t, p, "Key Responsibilities: r1; r2; r3\n")
	assert.NotContains(t, p, "r4")
	assert.Contains(t, p, "Technologies: Go, Postgres")
	assert.Contains(t, p, "p1 - d1\nTechnologies: N/A\nHighlights: h1; h2")
	assert.NotContains(t, p, "h3")
	assert.Contains(t, p, "p5 - ")
	assert.NotContains(t, p, "p6 - ")
	assert.Contains(t, p, "BSc in Computer Science from State University (2018)\nGPA: N/A")
	assert.Contains(t, p, "CERTIFICATIONS:\nCKA - CNCF (2022)")
	assert.Contains(t, p, "KEY ACHIEVEMENTS:\n1. Shipped billing v2\n2. Mentored four engineers")
	assert.Contains(t, p, "questions about Jordan Reyes's professional profile")
	assert.True(t, strings.HasSuffix(p, "collaborators"))
}

func TestSystemPromptEmptySections(t *testing.T) {
	p := SystemPrompt(&domain.PortfolioContext{Profile: domain.Profile{Name: "Sam"}})

	assert.Contains(t, p, "No skills data available")
	assert.Contains(t, p, "No experience data available")
	assert.Contains(t, p, "No projects data available")
	assert.Contains(t, p, "No education data available")
	assert.NotContains(t, p, "CERTIFICATIONS:")
}

func TestSystemPromptNilContext(t *testing.T) {
	p := SystemPrompt(nil)
	assert.Equal(t, defaultSystemPrompt, p)
	assert.Contains(t, p, "representing a developer's portfolio")
}

func TestBuildFiltersAndCapsHistory(t *testing.T) {
	var history []domain.Message
	for i := 0; i < 8; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	history = append(history,
		domain.Message{Role: domain.RoleAssistant, Content: "blocked", IsDomainBlocked: true},
		domain.Message{Role: domain.RoleAssistant, Content: "failed", Error: "boom"},
		domain.Message{Role: domain.RoleAssistant, IsLoading: true},
		domain.Message{Role: domain.RoleSystem, Content: "note"},
	)

	msgs := NewBuilder(DefaultMaxHistory).Build(sampleContext(), history, "What are your Angular skills?")

	require.Len(t, msgs, 7)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)

	var got []string
	for _, m := range msgs[1:6] {
		got = append(got, m.Role+":"+m.Content)
	}
	assert.Equal(t, []string{
		"user:m4", "assistant:m5", "user:m6", "assistant:m7", "assistant:note",
	}, got)

	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.PromptMessage{Role: domain.RoleUser, Content: "What are your Angular skills?"}, last)
}

func TestBuildRoleMapping(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "q"},
		{Role: domain.RoleSystem, Content: "s"},
	}
	msgs := NewBuilder(5).Build(nil, history, "next")

	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleUser, msgs[1].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[2].Role)
}

func TestBuildZeroHistory(t *testing.T) {
	history := []domain.Message{{Role: domain.RoleUser, Content: "q"}}
	msgs := NewBuilder(0).Build(nil, history, "next")
	assert.Len(t, msgs, 2)
}

func TestRenderTranscript(t *testing.T) {
	msgs := []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: "SYS"},
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
		{Role: domain.RoleUser, Content: "skills?"},
	}
	want := "SYS\n\nCONVERSATION HISTORY:\nUSER: hi\nASSISTANT: hello\n\nUSER: skills?\nASSISTANT:"
	assert.Equal(t, want, RenderTranscript(msgs))
}

func TestRenderTranscriptNoHistory(t *testing.T) {
	msgs := []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: "SYS"},
		{Role: domain.RoleUser, Content: "skills?"},
	}
	assert.Equal(t, "SYS\n\nUSER: skills?\nASSISTANT:", RenderTranscript(msgs))
}
