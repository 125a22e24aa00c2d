package stats

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"xrecap/pkg/socialdata"
)

// BestDay is the single most active day of the year.
type BestDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// HourBucket aggregates activity for one hour of the day.
type HourBucket struct {
	Count         int     `json:"count"`
	Engagement    int     `json:"engagement"`
	Percentage    float64 `json:"percentage"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// HashtagCount is a hashtag with its usage count.
type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// SourceCount is a posting client with its usage count and share of all
// posts.
type SourceCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ViralPost is the year's highest-engagement post.
type ViralPost struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Likes      int     `json:"likes"`
	Reposts    int     `json:"reposts"`
	Engagement int     `json:"engagement"`
	Multiplier float64 `json:"multiplier"`
}

// EngagementAverages are the mean per-post counters for the year.
type EngagementAverages struct {
	Likes    float64 `json:"likes"`
	Retweets float64 `json:"retweets"`
	Replies  float64 `json:"replies"`
	Views    float64 `json:"views"`
}

// Conversations summarizes reply behavior.
type Conversations struct {
	Replies        int     `json:"replies"`
	ReplyRate      float64 `json:"reply_rate"`
	UniquePartners int     `json:"unique_partners"`
}

// Efficiency relates engagement earned to posting volume.
type Efficiency struct {
	TotalEngagement int     `json:"total_engagement"`
	PerPost         float64 `json:"per_post"`
	PerDay          float64 `json:"per_day"`
	Score           float64 `json:"score"`
}

// Statistics is the complete yearly activity report for one account.
type Statistics struct {
	Username   string `json:"username"`
	Year       int    `json:"year"`
	TotalPosts int    `json:"total_posts"`
	ActiveDays int    `json:"active_days"`

	AvgPerDay float64 `json:"avg_per_day"`
	BestDay   BestDay `json:"best_day"`

	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`

	Calendar Calendar `json:"calendar"`

	WeekdayActivity   [7]int  `json:"weekday_activity"`
	MostActiveWeekday string  `json:"most_active_weekday"`
	MonthlyActivity   [12]int `json:"monthly_activity"`
	MostActiveMonth   string  `json:"most_active_month"`

	AvgEngagement EngagementAverages `json:"avg_engagement"`

	HourlyActivity [24]HourBucket `json:"hourly_activity"`
	PeakHour       int            `json:"peak_hour"`
	OptimalHour    int            `json:"optimal_hour"`

	TopHashtags []HashtagCount `json:"top_hashtags"`
	Sources     []SourceCount  `json:"sources"`
	Viral       *ViralPost     `json:"viral,omitempty"`

	Consistency float64 `json:"consistency"`
	Regularity  float64 `json:"regularity"`

	Conversations Conversations `json:"conversations"`
	Efficiency    Efficiency    `json:"efficiency"`
	Personality   Personality   `json:"personality"`
}

// Options tune the computation.
type Options struct {
	// Now anchors "days passed so far" for the current year. Defaults to
	// time.Now.
	Now func() time.Time
	// Rules overrides the personality archetype table.
	Rules []PersonalityRule
	// ActiveStreakOnly zeroes the current streak unless the most recent
	// active day is today or yesterday relative to Now.
	ActiveStreakOnly bool
}

// sourceNamePattern extracts the client name from the HTML anchor the
// upstream API puts in the source field.
var sourceNamePattern = regexp.MustCompile(`>([^<]+)<`)

// Compute builds the full yearly report from an account's posts. Posts
// outside the requested year are ignored; the result is deterministic for a
// given input and clock.
func Compute(username string, tweets []socialdata.Tweet, year int, opts Options) *Statistics {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	s := &Statistics{
		Username: strings.ToLower(strings.TrimPrefix(username, "@")),
		Year:     year,
	}

	dailyCounts := make(map[string]int)
	hashtags := make(map[string]int)
	sources := make(map[string]int)
	partners := make(map[string]bool)
	totalEngagement := 0
	totalLikes, totalReposts, totalReplies, totalViews := 0, 0, 0, 0
	var viral *ViralPost

	for _, t := range tweets {
		ts := t.CreatedTime()
		if ts.IsZero() || ts.Year() != year {
			continue
		}
		ts = ts.UTC()

		s.TotalPosts++
		dailyCounts[ts.Format(dateLayout)]++
		s.WeekdayActivity[int(ts.Weekday())]++
		s.MonthlyActivity[int(ts.Month())-1]++
		s.HourlyActivity[ts.Hour()].Count++
		s.HourlyActivity[ts.Hour()].Engagement += t.Engagement()

		totalEngagement += t.Engagement()
		totalLikes += t.FavoriteCount
		totalReposts += t.RetweetCount
		totalReplies += t.ReplyCount
		totalViews += t.Views()
		if viral == nil || t.Engagement() > viral.Engagement {
			viral = &ViralPost{
				ID:         t.IDStr,
				Text:       t.Body(),
				Likes:      t.FavoriteCount,
				Reposts:    t.RetweetCount,
				Engagement: t.Engagement(),
			}
		}

		for _, h := range t.Entities.Hashtags {
			if h.Text != "" {
				hashtags[strings.ToLower(h.Text)]++
			}
		}
		sources[sourceName(t.Source)]++
		if t.IsReply() {
			s.Conversations.Replies++
			if t.InReplyToScreenName != "" {
				partners[strings.ToLower(t.InReplyToScreenName)] = true
			}
		}
	}

	if s.TotalPosts == 0 {
		s.Calendar = BuildCalendar(year, nil)
		s.Personality = classify(s, opts.Rules)
		return s
	}

	days := daysInYear(year)
	s.ActiveDays = len(dailyCounts)
	s.AvgPerDay = round1(float64(s.TotalPosts) / float64(days))
	s.Calendar = BuildCalendar(year, dailyCounts)

	posts := float64(s.TotalPosts)
	s.AvgEngagement = EngagementAverages{
		Likes:    round1(float64(totalLikes) / posts),
		Retweets: round1(float64(totalReposts) / posts),
		Replies:  round1(float64(totalReplies) / posts),
		Views:    round1(float64(totalViews) / posts),
	}

	for date, count := range dailyCounts {
		if count > s.BestDay.Count || (count == s.BestDay.Count && date < s.BestDay.Date) {
			s.BestDay = BestDay{Date: date, Count: count}
		}
	}

	active := sortedDates(dailyCounts)
	s.CurrentStreak, s.BestStreak = streaks(active)
	if opts.ActiveStreakOnly && !recentlyActive(active, now().UTC()) {
		s.CurrentStreak = 0
	}

	s.MostActiveWeekday = time.Weekday(argmax(s.WeekdayActivity[:])).String()
	s.MostActiveMonth = time.Month(argmax(s.MonthlyActivity[:]) + 1).String()

	for h := range s.HourlyActivity {
		b := &s.HourlyActivity[h]
		if b.Count > 0 {
			b.Percentage = round1(float64(b.Count) / posts * 100)
			b.AvgEngagement = round1(float64(b.Engagement) / float64(b.Count))
		}
	}
	s.PeakHour, s.OptimalHour = hourHighlights(s.HourlyActivity)
	s.TopHashtags = topHashtags(hashtags, 5)
	s.Sources = sortedSources(sources, s.TotalPosts)

	meanEngagement := float64(totalEngagement) / posts
	if viral != nil && viral.Engagement > 0 {
		if meanEngagement > 0 {
			viral.Multiplier = round1(float64(viral.Engagement) / meanEngagement)
		}
		s.Viral = viral
	}

	s.Consistency = consistency(s.ActiveDays, year, now())
	s.Regularity = regularity(active)

	s.Conversations.ReplyRate = round1(float64(s.Conversations.Replies) / posts * 100)
	s.Conversations.UniquePartners = len(partners)

	s.Efficiency = Efficiency{
		TotalEngagement: totalEngagement,
		PerPost:         round1(meanEngagement),
		PerDay:          round1(float64(totalEngagement) / float64(days)),
	}
	if s.AvgPerDay > 0 {
		s.Efficiency.Score = round1(s.Efficiency.PerDay / s.AvgPerDay)
	}

	s.Personality = classify(s, opts.Rules)
	return s
}

// sourceName pulls the human-readable client name out of the source anchor
// tag. Posts with an unrecognized source fall back to the platform name.
func sourceName(source string) string {
	if m := sourceNamePattern.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	if source != "" {
		return source
	}
	return "Twitter"
}

// sortedDates returns the active dates in ascending order.
func sortedDates(counts map[string]int) []time.Time {
	dates := make([]time.Time, 0, len(counts))
	for d := range counts {
		if ts, err := time.Parse(dateLayout, d); err == nil {
			dates = append(dates, ts)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// streaks returns the streak ending at the most recent active day and the
// longest streak of the year.
func streaks(active []time.Time) (current, best int) {
	if len(active) == 0 {
		return 0, 0
	}

	best = 1
	run := 1
	for i := 1; i < len(active); i++ {
		if active[i].Sub(active[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return run, best
}

// recentlyActive reports whether the last active day is the current or the
// previous calendar day.
func recentlyActive(active []time.Time, now time.Time) bool {
	if len(active) == 0 {
		return false
	}
	last := active[len(active)-1].Format(dateLayout)
	return last == now.Format(dateLayout) || last == now.AddDate(0, 0, -1).Format(dateLayout)
}

// consistency is the share of elapsed days with at least one post. For the
// current year only the days passed so far count as the denominator.
func consistency(activeDays, year int, now time.Time) float64 {
	days := daysInYear(year)
	if now.Year() == year {
		days = now.YearDay()
	}
	if days <= 0 {
		return 0
	}
	pct := float64(activeDays) / float64(days) * 100
	if pct > 100 {
		pct = 100
	}
	return round1(pct)
}

// regularity scores how evenly posting days are spaced: 100 minus the
// standard deviation of the gaps between consecutive active days, clamped
// to [0, 100].
func regularity(active []time.Time) float64 {
	if len(active) < 2 {
		return 0
	}

	gaps := make([]float64, 0, len(active)-1)
	sum := 0.0
	for i := 1; i < len(active); i++ {
		gap := active[i].Sub(active[i-1]).Hours() / 24
		gaps = append(gaps, gap)
		sum += gap
	}

	mean := sum / float64(len(gaps))
	variance := 0.0
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))

	score := 100 - math.Sqrt(variance)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return round1(score)
}

// hourHighlights returns the hour with the most posts and the hour with the
// highest average engagement per post. They often differ: posting volume
// peaks do not imply audience attention peaks.
func hourHighlights(hours [24]HourBucket) (peak, optimal int) {
	bestCount := -1
	bestAvg := -1.0
	for h, b := range hours {
		if b.Count > bestCount {
			bestCount = b.Count
			peak = h
		}
		if b.Count > 0 {
			avg := float64(b.Engagement) / float64(b.Count)
			if avg > bestAvg {
				bestAvg = avg
				optimal = h
			}
		}
	}
	return peak, optimal
}

// topHashtags returns the n most used hashtags, ties broken alphabetically.
func topHashtags(counts map[string]int, n int) []HashtagCount {
	out := make([]HashtagCount, 0, len(counts))
	for tag, c := range counts {
		out = append(out, HashtagCount{Tag: tag, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// sortedSources returns all posting clients by usage, ties broken
// alphabetically.
func sortedSources(counts map[string]int, totalPosts int) []SourceCount {
	out := make([]SourceCount, 0, len(counts))
	for name, c := range counts {
		sc := SourceCount{Name: name, Count: c}
		if totalPosts > 0 {
			sc.Percentage = round1(float64(c) / float64(totalPosts) * 100)
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func argmax(values []int) int {
	idx := 0
	for i, v := range values {
		if v > values[idx] {
			idx = i
		}
	}
	return idx
}

// Derived rates are reported at one-decimal precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
