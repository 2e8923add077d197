package scoring

const DefaultThreshold = 70

const (
	NextActionFollowup = "schedule_followup"
	NextActionNurture  = "add_to_nurture"
)

type Policy struct {
	Threshold int
}

func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold}
}

type Decision struct {
	IsQualified bool   `json:"isQualified"`
	NextAction  string `json:"nextAction" enum:"schedule_followup,add_to_nurture"`
}

func (p Policy) Qualify(score int) Decision {
	if score >= p.Threshold {
		return Decision{IsQualified: true, NextAction: NextActionFollowup}
	}
	return Decision{IsQualified: false, NextAction: NextActionNurture}
}

// ScoreRange labels a band of scores for reporting only.
type ScoreRange struct {
	Label  string `json:"label"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Color  string `json:"color"`
	Action string `json:"action"`
}

var scoreRanges = []ScoreRange{
	{Label: "Low", Min: 0, Max: 39, Color: "red", Action: "Nurture sequence"},
	{Label: "Medium", Min: 40, Max: 69, Color: "yellow", Action: "Manual review"},
	{Label: "High", Min: 70, Max: 84, Color: "green", Action: "Priority follow-up"},
	{Label: "Hot", Min: 85, Max: 100, Color: "blue", Action: "Immediate contact"},
}

func ScoreRanges() []ScoreRange {
	out := make([]ScoreRange, len(scoreRanges))
	copy(out, scoreRanges)
	return out
}

// RangeFor returns the band containing score after clamping.
func RangeFor(score int) ScoreRange {
	score = Clamp(score)
	for _, r := range scoreRanges {
		if score >= r.Min && score <= r.Max {
			return r
		}
	}
	return scoreRanges[0]
}
