package stats

// Personality is the archetype assigned from a year's posting behavior.
type Personality struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// PersonalityRule matches a set of computed metrics to an archetype. Rules
// are evaluated in order; the first match wins.
type PersonalityRule struct {
	Type        string
	Description string
	Match       func(s *Statistics) bool
}

// DefaultPersonalityRules is the standard archetype table. The fallthrough
// rule always matches and must stay last.
func DefaultPersonalityRules() []PersonalityRule {
	return []PersonalityRule{
		{
			Type:        "The Conversationalist",
			Description: "More than half of your posts are replies. You are here for the discussions.",
			Match: func(s *Statistics) bool {
				return s.Conversations.ReplyRate > 50
			},
		},
		{
			Type:        "The Consistent Creator",
			Description: "You showed up most days of the year. Posting is a habit, not an event.",
			Match: func(s *Statistics) bool {
				return s.Consistency > 70
			},
		},
		{
			Type:        "The Dedicated Poster",
			Description: "A posting streak longer than two weeks takes commitment.",
			Match: func(s *Statistics) bool {
				return s.BestStreak > 14
			},
		},
		{
			Type:        "The Engagement Optimizer",
			Description: "Your posts consistently punch above their weight in engagement.",
			Match: func(s *Statistics) bool {
				return s.Efficiency.Score > 5
			},
		},
		{
			Type:        "The Casual Contributor",
			Description: "You post when you have something to say. No pressure.",
			Match: func(s *Statistics) bool {
				return true
			},
		},
	}
}

// classify evaluates the rules against the computed statistics.
func classify(s *Statistics, rules []PersonalityRule) Personality {
	if len(rules) == 0 {
		rules = DefaultPersonalityRules()
	}
	for _, r := range rules {
		if r.Match(s) {
			return Personality{Type: r.Type, Description: r.Description}
		}
	}
	return Personality{}
}
