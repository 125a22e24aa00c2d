package socialdata

import (
	"math/big"
	"sort"
)

// Collection is an ID-keyed set of posts. Keying by id_str makes page
// overlap during pagination harmless: re-adding an existing post is a no-op.
type Collection map[string]Tweet

// NewCollection creates an empty collection.
func NewCollection() Collection {
	return make(Collection)
}

// Add inserts posts and returns how many were not already present.
func (c Collection) Add(tweets ...Tweet) int {
	added := 0
	for _, t := range tweets {
		if t.IDStr == "" {
			continue
		}
		if _, ok := c[t.IDStr]; !ok {
			added++
		}
		c[t.IDStr] = t
	}
	return added
}

// Has reports whether a post ID is already in the collection.
func (c Collection) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// Len returns the number of posts in the collection.
func (c Collection) Len() int { return len(c) }

// Values returns the posts sorted newest first. Post IDs are numeric and
// strictly increase over time, so the numeric ID order is the time order.
func (c Collection) Values() []Tweet {
	out := make([]Tweet, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareIDs(out[i].IDStr, out[j].IDStr) > 0
	})
	return out
}

// OldestID returns the numerically smallest post ID, or "" when empty.
func (c Collection) OldestID() string {
	oldest := ""
	for id := range c {
		if oldest == "" || compareIDs(id, oldest) < 0 {
			oldest = id
		}
	}
	return oldest
}

// FilterYear returns the posts created in the given calendar year, newest
// first.
func (c Collection) FilterYear(year int) []Tweet {
	var out []Tweet
	for _, t := range c.Values() {
		if t.CreatedTime().Year() == year {
			out = append(out, t)
		}
	}
	return out
}

// Years returns the distinct calendar years present, most recent first.
func (c Collection) Years() []int {
	seen := make(map[int]bool)
	for _, t := range c {
		if y := t.CreatedTime().Year(); y > 0 {
			seen[y] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// compareIDs compares two decimal post IDs numerically. IDs exceed int64
// range so the comparison goes through big.Int; unparseable IDs sort first.
func compareIDs(a, b string) int {
	ai, aok := new(big.Int).SetString(a, 10)
	bi, bok := new(big.Int).SetString(b, 10)
	if !aok || !bok {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	return ai.Cmp(bi)
}

// DecrementID returns the decimal ID minus one, used to seed an exclusive
// pagination boundary from the oldest known post. Returns "" for
// unparseable input.
func DecrementID(id string) string {
	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return ""
	}
	n.Sub(n, big.NewInt(1))
	if n.Sign() < 0 {
		return "0"
	}
	return n.String()
}
