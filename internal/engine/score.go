package engine

import (
	"context"

	"opsportal/internal/domain"
	"opsportal/internal/events"
	"opsportal/internal/scoring"
)

// ScoreOutcome is what scoring a lead reports back to the caller.
type ScoreOutcome struct {
	LeadID          string                   `json:"leadId"`
	Score           int                      `json:"score"`
	RawScore        int                      `json:"rawScore"`
	IsQualified     bool                     `json:"isQualified"`
	Threshold       int                      `json:"threshold"`
	Breakdown       []scoring.BreakdownEntry `json:"breakdown"`
	CategoryScores  map[string]int           `json:"categoryScores"`
	Range           string                   `json:"range"`
	Recommendations []string                 `json:"recommendations"`
	NextAction      string                   `json:"nextAction"`
	Status          string                   `json:"status"`
	ScoredAt        string                   `json:"scoredAt"`
}

// ScoreLead computes a fresh score for the lead and records it. A qualified
// lead still in "new" moves to "in_review"; any other status is left alone.
// recalculate is recorded on the event only: every call scores from scratch.
func (e Engine) ScoreLead(ctx context.Context, leadID string, recalculate bool, actorID string) (ScoreOutcome, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ScoreOutcome{}, err
	}
	defer tx.Rollback()

	l, err := e.Repo.GetLeadTx(ctx, tx, leadID)
	if err != nil {
		return ScoreOutcome{}, err
	}
	policy := e.Config.Policy()
	res := scoring.Score(l, e.Config.RuleSet())
	decision := policy.Qualify(res.Score)
	now := e.timestamp()

	if err := e.Events.Append(ctx, tx, events.LeadScored, events.Scope{LeadID: l.ID}, actorID, events.EventPayload{
		"score":       res.Score,
		"rawScore":    res.RawScore,
		"isQualified": decision.IsQualified,
		"threshold":   policy.Threshold,
		"breakdown":   res.Breakdown,
		"scoredAt":    now,
		"recalculate": recalculate,
	}); err != nil {
		return ScoreOutcome{}, err
	}

	status := l.Status
	if decision.IsQualified {
		moved, err := e.Repo.SetLeadStatusIf(ctx, tx, l.ID, domain.LeadStatusNew, domain.LeadStatusInReview, now)
		if err != nil {
			return ScoreOutcome{}, err
		}
		if moved {
			status = domain.LeadStatusInReview
			if err := e.Events.Append(ctx, tx, events.LeadStatusChanged, events.Scope{LeadID: l.ID}, actorID, events.EventPayload{
				"from":   domain.LeadStatusNew,
				"to":     domain.LeadStatusInReview,
				"reason": "qualified",
			}); err != nil {
				return ScoreOutcome{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return ScoreOutcome{}, err
	}
	return ScoreOutcome{
		LeadID:          l.ID,
		Score:           res.Score,
		RawScore:        res.RawScore,
		IsQualified:     decision.IsQualified,
		Threshold:       policy.Threshold,
		Breakdown:       res.Breakdown,
		CategoryScores:  res.CategoryScores,
		Range:           scoring.RangeFor(res.Score).Label,
		Recommendations: scoring.Recommend(l, res.Score),
		NextAction:      decision.NextAction,
		Status:          status,
		ScoredAt:        now,
	}, nil
}

// ScoringCatalog describes the rules currently in effect.
func (e Engine) ScoringCatalog() scoring.Catalog {
	return scoring.NewCatalog(e.Config.RuleSet(), e.Config.Policy())
}
