package domain

// RelevanceVerdict is the outcome of classifying a user utterance.
// Only IsRelevant gates behavior; Confidence is informational.
type RelevanceVerdict struct {
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
