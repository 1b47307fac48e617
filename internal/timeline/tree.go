package timeline

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TreeDay is a leaf of the navigator.
type TreeDay struct {
	Date  string `json:"date"`
	Day   int    `json:"day"`
	Items int    `json:"items"`
}

// TreeMonth groups days of one month.
type TreeMonth struct {
	Month int       `json:"month"`
	Name  string    `json:"name"`
	Days  []TreeDay `json:"days"`
}

// TreeYear groups months of one year.
type TreeYear struct {
	Year   int         `json:"year"`
	Months []TreeMonth `json:"months"`
}

// Tree builds the year -> month -> day navigator from projected buckets.
// Everything is ordered newest first; dates that do not parse are skipped.
func Tree(buckets []DateBucket) []TreeYear {
	type key struct{ year, month int }
	days := map[key][]TreeDay{}
	years := map[int][]int{}

	for _, b := range buckets {
		y, m, d, ok := splitDate(b.Date)
		if !ok {
			continue
		}
		k := key{y, m}
		if _, seen := days[k]; !seen {
			years[y] = append(years[y], m)
		}
		days[k] = append(days[k], TreeDay{Date: b.Date, Day: d, Items: len(b.Items)})
	}

	out := make([]TreeYear, 0, len(years))
	for y, months := range years {
		sort.Sort(sort.Reverse(sort.IntSlice(months)))
		ty := TreeYear{Year: y}
		for _, m := range months {
			ds := days[key{y, m}]
			sort.Slice(ds, func(i, j int) bool { return ds[i].Day > ds[j].Day })
			ty.Months = append(ty.Months, TreeMonth{Month: m, Name: time.Month(m).String(), Days: ds})
		}
		out = append(out, ty)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out
}

func splitDate(date string) (year, month, day int, ok bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if year, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, false
	}
	if month, err = strconv.Atoi(parts[1]); err != nil || month < 1 || month > 12 {
		return 0, 0, 0, false
	}
	if day, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, false
	}
	return year, month, day, true
}
