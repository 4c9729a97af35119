package domain

// Signal names one of the comparisons that feed a candidate's score.
type Signal string

// Signals, keyed the way match details are reported to clients.
const (
	SignalSkills   Signal = "TeamVsSkills"
	SignalRoles    Signal = "TeamVsRoles"
	SignalCategory Signal = "CategoryVsCategories"
)

// Weights are the per-signal multipliers of the blended score.
type Weights struct {
	Skills   float64 `json:"skills"`
	Roles    float64 `json:"roles"`
	Category float64 `json:"category"`
}

// DefaultWeights is the production weighting (sums to 1.0).
var DefaultWeights = Weights{Skills: 0.40, Roles: 0.35, Category: 0.25}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Skills + w.Roles + w.Category
}

// For returns the weight of a signal.
func (w Weights) For(s Signal) float64 {
	switch s {
	case SignalSkills:
		return w.Skills
	case SignalRoles:
		return w.Roles
	case SignalCategory:
		return w.Category
	}
	return 0
}

// CandidateSummary is the public part of a candidate profile shown next to a score.
type CandidateSummary struct {
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
	Skills   string `json:"skills,omitempty"`
	Roles    string `json:"roles_in_startup,omitempty"`
}

// MatchResult is one scored candidate. Scores are percentages rounded to two
// decimals; a per-signal score is 0 when that signal was unavailable, and
// Details only carries the signals that contributed.
type MatchResult struct {
	CandidateID   string             `json:"user_id"`
	Candidate     CandidateSummary   `json:"candidate"`
	Score         float64            `json:"match_score"`
	SkillScore    float64            `json:"skill_match_score"`
	RoleScore     float64            `json:"role_match_score"`
	CategoryScore float64            `json:"category_match_score"`
	Details       map[Signal]float64 `json:"match_details"`
}

// GroupedRankings are four independent top-N lists for one startup.
type GroupedRankings struct {
	BySkills   []MatchResult `json:"by_skills"`
	ByRoles    []MatchResult `json:"by_roles"`
	ByCategory []MatchResult `json:"by_category"`
	Overall    []MatchResult `json:"overall"`
}
