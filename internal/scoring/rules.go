// Package scoring evaluates leads against weighted rules and turns the score
// into a qualification decision and a short list of next actions.
package scoring

import (
	"fmt"
	"math"
	"regexp"

	"opsportal/internal/domain"
)

type Condition string

const (
	CondExists   Condition = "exists"
	CondLengthGT Condition = "length_gt"
	CondEquals   Condition = "equals"
	CondContains Condition = "contains"
	CondMatches  Condition = "matches"
)

// CategoryIntent tags points earned from intent keyword matches.
const CategoryIntent = "intent"

type Rule struct {
	Category  string    `json:"category" yaml:"category"`
	Field     string    `json:"field" yaml:"field"`
	Condition Condition `json:"condition" yaml:"condition" enum:"exists,length_gt,equals,contains,matches"`
	Value     any       `json:"value,omitempty" yaml:"value,omitempty"`
	Points    int       `json:"points" yaml:"points"`
	Reason    string    `json:"reason" yaml:"reason"`
}

// IntentRule is a case-insensitive pattern tested against the lead message.
type IntentRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Points  int    `json:"points" yaml:"points"`
	Reason  string `json:"reason" yaml:"reason"`
}

// RuleSet is evaluated in declaration order: rules first, then intents.
type RuleSet struct {
	Rules   []Rule       `json:"rules" yaml:"rules"`
	Intents []IntentRule `json:"intents" yaml:"intents"`
}

var fieldAccessors = map[string]func(domain.Lead) string{
	"name":            func(l domain.Lead) string { return l.Name },
	"email":           func(l domain.Lead) string { return l.Email },
	"phone":           func(l domain.Lead) string { return l.Phone },
	"company":         func(l domain.Lead) string { return l.Company },
	"message":         func(l domain.Lead) string { return l.Message },
	"service":         func(l domain.Lead) string { return l.Service },
	"techPreferences": func(l domain.Lead) string { return l.TechPreferences },
	"estimatedBudget": func(l domain.Lead) string { return l.EstimatedBudget },
	"source":          func(l domain.Lead) string { return l.Source },
	"srsUrl":          func(l domain.Lead) string { return l.SrsURL },
	"targetPlatforms": func(l domain.Lead) string { return l.TargetPlatforms },
}

// FieldValue reads a lead field by name. Unknown and empty fields report false.
func FieldValue(l domain.Lead, field string) (string, bool) {
	get, ok := fieldAccessors[field]
	if !ok {
		return "", false
	}
	v := get(l)
	return v, v != ""
}

// KnownField reports whether rules may reference field.
func KnownField(field string) bool {
	_, ok := fieldAccessors[field]
	return ok
}

// DefaultRuleSet returns a fresh copy of the standard scoring rules.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Category: "contact", Field: "email", Condition: CondExists, Points: 10, Reason: "Email provided"},
			{Category: "contact", Field: "phone", Condition: CondExists, Points: 8, Reason: "Phone number provided"},
			{Category: "contact", Field: "company", Condition: CondExists, Points: 7, Reason: "Company name provided"},
			{Category: "engagement", Field: "message", Condition: CondLengthGT, Value: 50, Points: 10, Reason: "Detailed message (50+ chars)"},
			{Category: "engagement", Field: "message", Condition: CondLengthGT, Value: 150, Points: 8, Reason: "Comprehensive message (150+ chars)"},
			{Category: "engagement", Field: "message", Condition: CondContains, Value: "budget", Points: 7, Reason: "Mentions budget"},
			{Category: "requirements", Field: "service", Condition: CondExists, Points: 8, Reason: "Service type specified"},
			{Category: "requirements", Field: "srsUrl", Condition: CondExists, Points: 12, Reason: "SRS document provided"},
			{Category: "requirements", Field: "targetPlatforms", Condition: CondExists, Points: 5, Reason: "Target platforms specified"},
			{Category: "business", Field: "estimatedBudget", Condition: CondExists, Points: 10, Reason: "Budget estimate provided"},
			{Category: "business", Field: "company", Condition: CondLengthGT, Value: 3, Points: 5, Reason: "Company name length indicates real company"},
			{Category: "business", Field: "source", Condition: CondEquals, Value: "referral", Points: 10, Reason: "Referral lead"},
		},
		Intents: []IntentRule{
			{Pattern: "asap|urgent|immediately|quickly", Points: 5, Reason: "Urgent timeline"},
			{Pattern: "enterprise|corporate|large", Points: 5, Reason: "Enterprise client indicator"},
			{Pattern: "mvp|minimum viable|startup", Points: 3, Reason: "Startup project"},
			{Pattern: "redesign|rebuild|migrate", Points: 4, Reason: "Existing system upgrade"},
			{Pattern: "integration|api|connect", Points: 3, Reason: "Integration requirements"},
			{Pattern: "mobile|ios|android|app", Points: 3, Reason: "Mobile development"},
			{Pattern: "saas|subscription|platform", Points: 5, Reason: "SaaS platform"},
		},
	}
}

// Validate checks that every rule can be evaluated as written.
func (rs RuleSet) Validate() error {
	for i, r := range rs.Rules {
		if r.Category == "" {
			return fmt.Errorf("rule %d: category is required", i)
		}
		if !KnownField(r.Field) {
			return fmt.Errorf("rule %d: unknown field %q", i, r.Field)
		}
		switch r.Condition {
		case CondExists:
		case CondLengthGT:
			if _, ok := intValue(r.Value); !ok {
				return fmt.Errorf("rule %d: length_gt requires an integer value", i)
			}
		case CondEquals, CondContains:
			if _, ok := r.Value.(string); !ok {
				return fmt.Errorf("rule %d: %s requires a string value", i, r.Condition)
			}
		case CondMatches:
			p, ok := r.Value.(string)
			if !ok {
				return fmt.Errorf("rule %d: matches requires a pattern", i)
			}
			if _, err := compileFold(p); err != nil {
				return fmt.Errorf("rule %d: invalid pattern: %w", i, err)
			}
		default:
			return fmt.Errorf("rule %d: unknown condition %q", i, r.Condition)
		}
	}
	for i, in := range rs.Intents {
		if in.Pattern == "" {
			return fmt.Errorf("intent %d: pattern is required", i)
		}
		if _, err := compileFold(in.Pattern); err != nil {
			return fmt.Errorf("intent %d: invalid pattern: %w", i, err)
		}
	}
	return nil
}

// Categories lists rule categories in first-seen order.
func (rs RuleSet) Categories() []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range rs.Rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

func compileFold(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// intValue accepts the integer shapes produced by Go literals, YAML and JSON.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
