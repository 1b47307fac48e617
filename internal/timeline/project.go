package timeline

import (
	"sort"
	"time"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

// DefaultBatchWindow bounds the legacy photo merge heuristic.
const DefaultBatchWindow = 120 * time.Second

// Item is one visual card. Photos uploaded together collapse into one Item
// carrying several media urls.
type Item struct {
	ID        string            `json:"id"`
	RecordIDs []string          `json:"record_ids"`
	Type      models.MemoryType `json:"type"`
	MediaURLs []string          `json:"media_urls"`
	Content   string            `json:"content,omitempty"`
	Likes     int               `json:"likes"`
	Liked     bool              `json:"liked"`
	Author    *models.Author    `json:"author,omitempty"`
	Style     string            `json:"style,omitempty"`
	Metadata  models.Metadata   `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`

	last models.Memory
}

// DateBucket groups every item and comment of one day.
type DateBucket struct {
	Date     string           `json:"date"`
	Items    []Item           `json:"items"`
	Comments []models.Comment `json:"comments"`
}

// ProjectOptions tunes Project.
type ProjectOptions struct {
	BatchWindow time.Duration
	// Liked marks items whose first record the viewer has liked.
	Liked map[string]bool
}

// Project turns flat records and comments into date buckets, newest first.
// Inputs are not modified.
func Project(records []models.Memory, comments []models.Comment, opts ProjectOptions) []DateBucket {
	window := opts.BatchWindow
	if window <= 0 {
		window = DefaultBatchWindow
	}

	sorted := append([]models.Memory(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	buckets := map[string]*DateBucket{}
	var order []string
	for _, rec := range sorted {
		b, ok := buckets[rec.Date]
		if !ok {
			b = &DateBucket{Date: rec.Date, Items: []Item{}, Comments: []models.Comment{}}
			buckets[rec.Date] = b
			order = append(order, rec.Date)
		}

		if rec.Type == models.MemoryPhoto && len(b.Items) > 0 {
			last := &b.Items[len(b.Items)-1]
			if last.Type == models.MemoryPhoto && sameBatch(last.last, rec, window) {
				last.RecordIDs = append(last.RecordIDs, rec.ID)
				if url := rec.MediaURLText(); url != "" {
					last.MediaURLs = append(last.MediaURLs, url)
				}
				last.last = rec
				continue
			}
		}
		b.Items = append(b.Items, newItem(rec, opts.Liked))
	}

	for _, c := range comments {
		if b, ok := buckets[c.MemoryDate]; ok {
			b.Comments = append(b.Comments, c)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(order)))
	out := make([]DateBucket, 0, len(order))
	for _, date := range order {
		out = append(out, *buckets[date])
	}
	return out
}

func newItem(rec models.Memory, liked map[string]bool) Item {
	rec.ResolveAuthor()
	item := Item{
		ID:        rec.ID,
		RecordIDs: []string{rec.ID},
		Type:      rec.Type,
		MediaURLs: []string{},
		Content:   rec.ContentText(),
		Likes:     rec.Likes,
		Liked:     liked[rec.ID],
		Author:    rec.Author,
		Style:     StyleFor(rec),
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
		last:      rec,
	}
	if url := rec.MediaURLText(); url != "" {
		item.MediaURLs = append(item.MediaURLs, url)
	}
	return item
}

// sameBatch compares prev, the last record merged into a card, with next.
// Two batch ids must match exactly; when either is missing the rows must share
// author and caption and sit within window of each other.
func sameBatch(prev, next models.Memory, window time.Duration) bool {
	a, b := prev.Metadata.BatchID(), next.Metadata.BatchID()
	if a != "" && b != "" {
		return a == b
	}
	if prev.AuthorDisplayName() != next.AuthorDisplayName() {
		return false
	}
	if prev.ContentText() != next.ContentText() {
		return false
	}
	gap := prev.CreatedAt.Sub(next.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap < window
}
