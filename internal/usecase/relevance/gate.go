// Package relevance decides whether a user utterance is about the portfolio
// owner. It is a keyword and pattern heuristic: permissive for anything that
// looks like a question about the person or their work, and strict only for
// a short list of clearly off-topic subjects.
package relevance

import (
	"regexp"
	"strings"

	"portfolio-assistant/internal/domain"
)

// BlockedMessage is the assistant reply for an utterance the gate rejects.
const BlockedMessage = "❌ I can only assist with questions about professional portfolios and careers. Please ask about projects, skills, experience, or background."

// Verdict reasons.
const (
	ReasonEmpty    = "Empty query"
	ReasonOffTopic = "Off-topic content"
	ReasonAccepted = "Portfolio-related query accepted"
	ReasonUnsure   = "Query may not be portfolio-related"
)

var domainKeywords = []string{
	"skill", "skills", "expertise", "tech", "technology", "programming",
	"angular", "typescript", "nodejs", "javascript", "python",
	"react", "vue", "express", "api", "database", "sql", "mongodb",
	"experience", "work", "project", "projects", "development", "developer",
	"engineer", "engineering", "job", "position", "role", "company",
	"education", "degree", "university", "qualification", "certification",
	"achievement", "portfolio", "resume", "professional", "career",
	"contact", "email", "phone", "github", "linkedin", "reach",
	"availability", "hire", "opportunity", "open", "available",
	"background", "built", "created", "implemented", "developed", "designed", "architected",
}

// hardBlockers are matched as case-insensitive substrings.
var hardBlockers = []string{
	"cryptocurrency", "bitcoin", "nft", "stock tip", "dating",
	"recipe", "cooking", "medical advice", "prescription",
	"homework help", "cheat", "exam answers",
}

var leadInPhrases = []string{
	"tell me about", "what do you", "do you have", "can you",
	"are you", "how many", "what is your", "what are your",
	"experience with", "worked on", "familiar with",
}

// genericMentions always count as a mention of the profile.
var genericMentions = []string{"developer", "engineer", "portfolio"}

var personPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\byou\b.*(?:skill|experience|project|work|background|expertise)`),
	regexp.MustCompile(`\byour\b.*(?:skill|experience|project|work|background|expertise|phone|email|contact)`),
	regexp.MustCompile(`\byou\b.*(?:do|worked|built|created|developed)`),
	regexp.MustCompile(`tell\s+(?:me\s+)?(?:about|more)\s+(?:your|yourself|you)`),
	regexp.MustCompile(`what.*\b(?:you|your)\b`),
	regexp.MustCompile(`^(?:are|do)\s+you`),
	regexp.MustCompile(`\byou\b.*(?:learn|know|familiar|expertise)`),
}

var nonWord = regexp.MustCompile(`\W+`)

// Gate classifies utterances. The zero value is not usable; call New.
type Gate struct {
	keywords map[string]struct{}
}

// New returns a Gate with the built-in domain vocabulary.
func New() *Gate {
	kw := make(map[string]struct{}, len(domainKeywords))
	for _, k := range domainKeywords {
		kw[k] = struct{}{}
	}
	return &Gate{keywords: kw}
}

// Check classifies utterance. pc may be nil, in which case only the
// built-in vocabulary and patterns are used.
func (g *Gate) Check(utterance string, pc *domain.PortfolioContext) domain.RelevanceVerdict {
	if strings.TrimSpace(utterance) == "" {
		return domain.RelevanceVerdict{IsRelevant: false, Confidence: 0, Reason: ReasonEmpty}
	}

	q := strings.ToLower(utterance)

	for _, b := range hardBlockers {
		if strings.Contains(q, b) {
			return domain.RelevanceVerdict{IsRelevant: false, Confidence: 0.1, Reason: ReasonOffTopic}
		}
	}

	if g.hasDomainVocabulary(q) || mentionsProfile(q, pc) || isAboutPerson(q) {
		return domain.RelevanceVerdict{IsRelevant: true, Confidence: 0.95, Reason: ReasonAccepted}
	}
	return domain.RelevanceVerdict{IsRelevant: false, Confidence: 0.3, Reason: ReasonUnsure}
}

func (g *Gate) hasDomainVocabulary(q string) bool {
	for _, tok := range tokenize(q) {
		if _, ok := g.keywords[tok]; ok {
			return true
		}
	}
	for _, p := range leadInPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// mentionsProfile matches the owner's name, name parts, headline, employers
// and the document's own relevance keywords.
func mentionsProfile(q string, pc *domain.PortfolioContext) bool {
	if pc == nil {
		return false
	}
	for _, m := range profileMentions(pc) {
		if m != "" && strings.Contains(q, m) {
			return true
		}
	}
	return false
}

func profileMentions(pc *domain.PortfolioContext) []string {
	name := strings.ToLower(strings.TrimSpace(pc.Profile.Name))
	out := []string{name, strings.ToLower(strings.TrimSpace(pc.Profile.Headline))}
	for _, part := range strings.Fields(name) {
		if len(part) > 2 {
			out = append(out, part)
		}
	}
	for _, e := range pc.Experience {
		if c := strings.ToLower(strings.TrimSpace(e.Company)); len(c) > 2 {
			out = append(out, c)
		}
	}
	for _, k := range pc.Keywords.PortfolioRelated {
		if k = strings.ToLower(strings.TrimSpace(k)); len(k) > 2 {
			out = append(out, k)
		}
	}
	return append(out, genericMentions...)
}

func isAboutPerson(q string) bool {
	for _, p := range personPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// tokenize splits on non-word runs and keeps tokens longer than two characters.
func tokenize(q string) []string {
	parts := nonWord.Split(q, -1)
	out := parts[:0]
	for _, p := range parts {
		if len(p) > 2 {
			out = append(out, p)
		}
	}
	return out
}
