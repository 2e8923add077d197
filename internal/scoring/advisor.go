package scoring

import (
	"strings"

	"opsportal/internal/domain"
)

const MaxRecommendations = 5

const (
	RecRequestEmail   = "Request email address for follow-up"
	RecObtainPhone    = "Obtain phone number for faster communication"
	RecDiscoveryCall  = "Gather detailed requirements via discovery call"
	RecDiscussBudget  = "Discuss budget expectations"
	HeadlineHot       = "Hot lead - Contact within 1 hour"
	HeadlineQualified = "Qualified - Schedule discovery call within 24 hours"
	HeadlineReview    = "Review manually - Consider qualification criteria"
	HeadlineNurture   = "Add to nurture sequence"
)

// Recommend lists next actions, most urgent first, at most MaxRecommendations.
func Recommend(lead domain.Lead, score int) []string {
	recs := []string{headline(score)}
	if lead.Email == "" {
		recs = append(recs, RecRequestEmail)
	}
	if lead.Phone == "" {
		recs = append(recs, RecObtainPhone)
	}
	if lead.SrsURL == "" && !strings.Contains(strings.ToLower(lead.Message), "requirement") {
		recs = append(recs, RecDiscoveryCall)
	}
	if lead.EstimatedBudget == "" {
		recs = append(recs, RecDiscussBudget)
	}
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

func headline(score int) string {
	switch {
	case score >= 85:
		return HeadlineHot
	case score >= 70:
		return HeadlineQualified
	case score >= 40:
		return HeadlineReview
	default:
		return HeadlineNurture
	}
}
