package scoring

// Catalog describes a rule set for display.
type Catalog struct {
	QualificationThreshold int               `json:"qualificationThreshold"`
	MaxScore               int               `json:"maxScore"`
	Categories             map[string][]Rule `json:"categories"`
	CategoryOrder          []string          `json:"categoryOrder"`
	IntentKeywords         []IntentRule      `json:"intentKeywords"`
	ScoreRanges            []ScoreRange      `json:"scoreRanges"`
}

func NewCatalog(rs RuleSet, p Policy) Catalog {
	c := Catalog{
		QualificationThreshold: p.Threshold,
		MaxScore:               MaxScore,
		Categories:             map[string][]Rule{},
		CategoryOrder:          rs.Categories(),
		IntentKeywords:         append([]IntentRule{}, rs.Intents...),
		ScoreRanges:            ScoreRanges(),
	}
	for _, r := range rs.Rules {
		c.Categories[r.Category] = append(c.Categories[r.Category], r)
	}
	return c
}
