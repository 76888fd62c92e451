package model

// RecentSummary is the gist of a recently asked question.
type RecentSummary struct {
	Text         string `json:"text"`
	CategoryName string `json:"category"`
}

// CategoryKeywords holds the concept keywords seen for one category.
type CategoryKeywords struct {
	CategoryName string   `json:"category"`
	Keywords     []string `json:"keywords"`
}

// AvoidanceContext summarises a learner's question history in three tiers
// so that generation can steer away from content already seen. It is
// derived on demand and never persisted.
type AvoidanceContext struct {
	RecentSummaries    []RecentSummary    `json:"recent_summaries"`
	StructuredKeywords []CategoryKeywords `json:"structured_keywords"`
	OlderKeywords      []string           `json:"older_keywords"`
}

func (a *AvoidanceContext) IsEmpty() bool {
	return len(a.RecentSummaries) == 0 && len(a.StructuredKeywords) == 0 && len(a.OlderKeywords) == 0
}

// KeywordsFor returns the mid-term keywords recorded for a category.
func (a *AvoidanceContext) KeywordsFor(categoryName string) []string {
	for _, ck := range a.StructuredKeywords {
		if ck.CategoryName == categoryName {
			return ck.Keywords
		}
	}
	return nil
}
