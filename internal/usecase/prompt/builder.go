// Package prompt turns the portfolio context and recent conversation into the
// message list sent to a provider.
package prompt

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"portfolio-assistant/internal/domain"
)

// DefaultMaxHistory is the number of prior messages carried into a prompt.
const DefaultMaxHistory = 5

const (
	maxResponsibilities = 3
	maxProjects         = 5
	maxHighlights       = 2
)

// Builder assembles prompts. It holds no per-conversation state.
type Builder struct {
	maxHistory int
}

// NewBuilder creates a Builder that includes up to maxHistory prior messages.
// A negative value falls back to DefaultMaxHistory.
func NewBuilder(maxHistory int) *Builder {
	if maxHistory < 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Builder{maxHistory: maxHistory}
}

// Build returns the system prompt, the most recent usable history entries
// in their original order, and the utterance as the final user entry.
// Loading placeholders, blocked replies and error replies never reach the
// prompt. The cap is a message count, not a token budget.
func (b *Builder) Build(pc *domain.PortfolioContext, history []domain.Message, utterance string) []domain.PromptMessage {
	recent := b.recentHistory(history)

	out := make([]domain.PromptMessage, 0, len(recent)+2)
	out = append(out, domain.PromptMessage{Role: domain.RoleSystem, Content: SystemPrompt(pc)})
	for _, m := range recent {
		role := domain.RoleAssistant
		if m.Role == domain.RoleUser {
			role = domain.RoleUser
		}
		out = append(out, domain.PromptMessage{Role: role, Content: m.Content})
	}
	return append(out, domain.PromptMessage{Role: domain.RoleUser, Content: utterance})
}

func (b *Builder) recentHistory(history []domain.Message) []domain.Message {
	usable := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.IsLoading || m.IsDomainBlocked || m.HasError() {
			continue
		}
		usable = append(usable, m)
	}
	if len(usable) > b.maxHistory {
		usable = usable[len(usable)-b.maxHistory:]
	}
	return usable
}

// RenderTranscript flattens a prompt into one string for completion-style
// endpoints: the system text, then "ROLE: content" lines, ending with an
// open "ASSISTANT:" turn.
func RenderTranscript(msgs []domain.PromptMessage) string {
	var sb strings.Builder
	var turns []domain.PromptMessage
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			sb.WriteString(m.Content)
			sb.WriteString("\n\n")
			continue
		}
		turns = append(turns, m)
	}

	if len(turns) > 1 {
		sb.WriteString("CONVERSATION HISTORY:\n")
		for _, m := range turns[:len(turns)-1] {
			fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(m.Role), m.Content)
		}
		sb.WriteString("\n")
	}
	if len(turns) > 0 {
		last := turns[len(turns)-1]
		fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(last.Role), last.Content)
	}
	sb.WriteString("ASSISTANT:")
	return sb.String()
}

const defaultSystemPrompt = `You are a professional AI assistant representing a developer's portfolio.

YOUR ROLE:
- Answer questions about the portfolio owner's professional background
- Provide helpful information about skills, experience, and projects
- Be friendly and professional

GUIDELINES:
1. Respond based on available portfolio information
2. Be honest if information is not available
3. Keep responses focused on professional topics
4. Redirect off-topic questions politely`

// SystemPrompt renders the grounding instructions for pc. A nil context
// yields the generic guideline-only prompt.
func SystemPrompt(pc *domain.PortfolioContext) string {
	if pc == nil {
		return defaultSystemPrompt
	}

	name := pc.Profile.Name
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a professional AI assistant representing %s's portfolio and professional background.\n\n", name)
	sb.WriteString(`YOUR ROLE:
- Answer questions about the portfolio owner's professional profile, skills, experience, and projects
- Provide accurate, helpful information based on the portfolio data provided
- Be conversational, professional, and friendly
- Help visitors understand the portfolio owner's expertise and background

IMPORTANT GUIDELINES:
1. Base all responses on the portfolio information provided below
2. Never make up or fabricate information about projects, skills, or experience
3. If asked about something not in the portfolio, say "I don't have that information in the portfolio"
4. Keep responses clear and concise (max 300 words)
5. Be helpful and encouraging - this is a portfolio, so be positive about accomplishments
`)
	fmt.Fprintf(&sb, "6. For off-topic questions (unrelated to the portfolio), politely redirect: \"I'm specifically here to help with questions about %s's professional profile\"\n\n", name)

	sb.WriteString("PORTFOLIO OWNER INFORMATION:\n")
	writeProfile(&sb, pc.Profile)

	sb.WriteString("\nTECHNICAL SKILLS:\n")
	sb.WriteString(formatSkills(pc.Skills))
	sb.WriteString("\n\nPROFESSIONAL EXPERIENCE:\n")
	sb.WriteString(formatExperience(pc.Experience))
	sb.WriteString("\n\nPROJECTS & PORTFOLIO:\n")
	sb.WriteString(formatProjects(pc.Projects))
	sb.WriteString("\n\nEDUCATION:\n")
	sb.WriteString(formatEducation(pc.Education))
	if len(pc.Certifications) > 0 {
		sb.WriteString("\n\nCERTIFICATIONS:\n")
		sb.WriteString(formatCertifications(pc.Certifications))
	}
	sb.WriteString("\n\nKEY ACHIEVEMENTS:\n")
	sb.WriteString(formatAchievements(pc.Achievements))

	sb.WriteString(`

COMMUNICATION STYLE:
- Be enthusiastic about the portfolio owner's accomplishments
- Explain technical concepts in an accessible way
- Connect related skills and projects when answering
- Provide specific examples from the portfolio when relevant
- Be a helpful guide for potential employers, clients, or collaborators`)

	return sb.String()
}

func writeProfile(sb *strings.Builder, p domain.Profile) {
	fields := []struct{ label, value string }{
		{"Name", p.Name},
		{"Headline", p.Headline},
		{"Location", p.Location},
		{"Email", p.Email},
		{"Phone", p.Phone},
		{"GitHub", p.GitHub},
		{"LinkedIn", p.LinkedIn},
		{"Availability", p.Availability},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(sb, "%s: %s\n", f.label, f.value)
		}
	}
	summary := p.Summary
	if summary == "" {
		summary = "Professional developer with strong technical skills"
	}
	fmt.Fprintf(sb, "Summary: %s\n", summary)
}

func formatSkills(skills domain.SkillSet) string {
	if len(skills) == 0 {
		return "No skills data available"
	}
	lines := make([]string, 0, len(skills))
	for _, cat := range skills.Categories() {
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(cat), strings.Join(skills[cat], ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatExperience(exps []domain.Experience) string {
	if len(exps) == 0 {
		return "No experience data available"
	}
	entries := make([]string, 0, len(exps))
	for _, e := range exps {
		end := e.EndDate
		if end == "" {
			end = "Present"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s at %s (%s - %s)\n", e.Role, e.Company, e.StartDate, end)
		if e.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", e.Description)
		}
		fmt.Fprintf(&sb, "Key Responsibilities: %s\n", joinOrNA(head(e.Responsibilities, maxResponsibilities), "; "))
		fmt.Fprintf(&sb, "Technologies: %s", joinOrNA(e.Technologies, ", "))
		entries = append(entries, sb.String())
	}
	return strings.Join(entries, "\n\n")
}

func formatProjects(projects []domain.Project) string {
	if len(projects) == 0 {
		return "No projects data available"
	}
	entries := make([]string, 0, maxProjects)
	for _, p := range head(projects, maxProjects) {
		entries = append(entries, fmt.Sprintf("%s - %s\nTechnologies: %s\nHighlights: %s",
			p.Title, p.Description,
			joinOrNA(p.Technologies, ", "),
			joinOrNA(head(p.Highlights, maxHighlights), "; "),
		))
	}
	return strings.Join(entries, "\n\n")
}

func formatEducation(edu []domain.Education) string {
	if len(edu) == 0 {
		return "No education data available"
	}
	lines := make([]string, 0, len(edu))
	for _, e := range edu {
		gpa := string(e.GPA)
		if gpa == "" {
			gpa = "N/A"
		}
		lines = append(lines, fmt.Sprintf("%s in %s from %s (%s)\nGPA: %s", e.Degree, e.Field, e.Institution, e.Year, gpa))
	}
	return strings.Join(lines, "\n")
}

func formatCertifications(certs []domain.Certification) string {
	lines := make([]string, 0, len(certs))
	for _, c := range certs {
		line := c.Name
		if c.Issuer != "" {
			line += " - " + c.Issuer
		}
		if c.Year != "" {
			line += " (" + string(c.Year) + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatAchievements(achievements []string) string {
	if len(achievements) == 0 {
		return "No achievements listed"
	}
	lines := make([]string, len(achievements))
	for i, a := range achievements {
		lines[i] = fmt.Sprintf("%d. %s", i+1, a)
	}
	return strings.Join(lines, "\n")
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func joinOrNA(items []string, sep string) string {
	if len(items) == 0 {
		return "N/A"
	}
	return strings.Join(items, sep)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
