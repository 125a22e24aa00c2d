package stats

import (
	"time"
)

// CalendarDay is one cell of the contribution calendar. Padding cells that
// align the first week have an empty date.
type CalendarDay struct {
	Date  string `json:"date,omitempty"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}

// MonthRange maps a month label to its span of week columns.
type MonthRange struct {
	Month string `json:"month"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Calendar is a year of activity laid out as week columns, GitHub style.
type Calendar struct {
	Weeks       [][]CalendarDay `json:"weeks"`
	MonthRanges []MonthRange    `json:"month_ranges"`
	MaxCount    int             `json:"max_count"`
}

const dateLayout = "2006-01-02"

// activityLevel buckets a day's post count into intensity levels 0 to 4
// relative to the busiest day of the year. Any activity is at least level 1.
func activityLevel(count, max int) int {
	if count <= 0 || max <= 0 {
		return 0
	}
	level := 4 * count / max
	if level < 1 {
		level = 1
	}
	if level > 4 {
		level = 4
	}
	return level
}

// BuildCalendar lays out a year's daily post counts as week columns. The
// first week is padded with empty cells so weekdays line up, Sunday first.
func BuildCalendar(year int, counts map[string]int) Calendar {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := int(start.Weekday())

	days := make([]CalendarDay, offset, offset+366)
	for d := start; d.Year() == year; d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		c := counts[key]
		days = append(days, CalendarDay{
			Date:  key,
			Count: c,
			Level: activityLevel(c, max),
		})
	}

	weeks := make([][]CalendarDay, 0, (len(days)+6)/7)
	for i := 0; i < len(days); i += 7 {
		end := i + 7
		if end > len(days) {
			end = len(days)
		}
		week := make([]CalendarDay, 7)
		copy(week, days[i:end])
		weeks = append(weeks, week)
	}

	return Calendar{
		Weeks:       weeks,
		MonthRanges: monthRanges(year, offset),
		MaxCount:    max,
	}
}

// monthRanges computes the first and last week column of each month.
func monthRanges(year, offset int) []MonthRange {
	ranges := make([]MonthRange, 0, 12)
	for m := time.January; m <= time.December; m++ {
		first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		ranges = append(ranges, MonthRange{
			Month: first.Format("Jan"),
			Start: (offset + first.YearDay() - 1) / 7,
			End:   (offset + last.YearDay() - 1) / 7,
		})
	}
	return ranges
}

// daysInYear returns 366 for leap years, 365 otherwise.
func daysInYear(year int) int {
	if isLeap(year) {
		return 366
	}
	return 365
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
