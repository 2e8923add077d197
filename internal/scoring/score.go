package scoring

import (
	"strings"
	"unicode/utf8"

	"opsportal/internal/domain"
)

const (
	MinScore = 0
	MaxScore = 100
)

type BreakdownEntry struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
	Points   int    `json:"points"`
}

type Result struct {
	Score          int              `json:"score"`
	RawScore       int              `json:"rawScore"`
	Breakdown      []BreakdownEntry `json:"breakdown"`
	CategoryScores map[string]int   `json:"categoryScores"`
}

// Score evaluates the lead against rs. It never fails: a rule that cannot be
// evaluated against the lead contributes nothing.
func Score(lead domain.Lead, rs RuleSet) Result {
	res := Result{
		Breakdown:      []BreakdownEntry{},
		CategoryScores: map[string]int{},
	}
	add := func(category, reason string, points int) {
		res.RawScore += points
		res.CategoryScores[category] += points
		res.Breakdown = append(res.Breakdown, BreakdownEntry{Category: category, Reason: reason, Points: points})
	}
	for _, r := range rs.Rules {
		if evaluate(lead, r) {
			add(r.Category, r.Reason, r.Points)
		}
	}
	if lead.Message != "" {
		for _, in := range rs.Intents {
			re, err := compileFold(in.Pattern)
			if err != nil {
				continue
			}
			if re.MatchString(lead.Message) {
				add(CategoryIntent, in.Reason, in.Points)
			}
		}
	}
	res.Score = Clamp(res.RawScore)
	return res
}

// Clamp bounds a raw total to [MinScore, MaxScore].
func Clamp(total int) int {
	return max(MinScore, min(MaxScore, total))
}

func evaluate(lead domain.Lead, r Rule) bool {
	v, ok := FieldValue(lead, r.Field)
	if !ok {
		return false
	}
	switch r.Condition {
	case CondExists:
		return true
	case CondLengthGT:
		n, ok := intValue(r.Value)
		return ok && utf8.RuneCountInString(v) > n
	case CondEquals:
		want, ok := r.Value.(string)
		return ok && v == want
	case CondContains:
		needle, ok := r.Value.(string)
		return ok && strings.Contains(strings.ToLower(v), strings.ToLower(needle))
	case CondMatches:
		pattern, ok := r.Value.(string)
		if !ok {
			return false
		}
		re, err := compileFold(pattern)
		return err == nil && re.MatchString(v)
	}
	return false
}
