package timeline

import "strconv"

// ContributionDay is one cell of the contribution grid.
type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}

// Contributions summarises one year of activity.
type Contributions struct {
	Year  int               `json:"year"`
	Total int               `json:"total"`
	Days  []ContributionDay `json:"days"`
}

// Contribution counts visual items per date. Total only covers year; Days
// lists every bucket of that year newest first.
func Contribution(buckets []DateBucket, year int) Contributions {
	out := Contributions{Year: year, Days: []ContributionDay{}}
	prefix := strconv.Itoa(year) + "-"
	for _, b := range buckets {
		if len(b.Date) < len(prefix) || b.Date[:len(prefix)] != prefix {
			continue
		}
		n := len(b.Items)
		out.Total += n
		out.Days = append(out.Days, ContributionDay{Date: b.Date, Count: n, Level: level(n)})
	}
	return out
}

// level buckets a count into the five-step intensity scale.
func level(n int) int {
	if n > 4 {
		return 4
	}
	if n < 0 {
		return 0
	}
	return n
}
