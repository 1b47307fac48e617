package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func photo(id, date string, at time.Time, batch, author, caption string) models.Memory {
	m := models.Memory{
		ID:         id,
		Date:       date,
		CreatedAt:  at,
		Type:       models.MemoryPhoto,
		MediaURL:   ptr("https://cdn.test/" + id + ".jpg"),
		Metadata:   models.Metadata{},
		AuthorName: ptr(author),
	}
	if batch != "" {
		m.Metadata[models.MetaBatchID] = batch
	}
	if caption != "" {
		m.Content = ptr(caption)
	}
	return m
}

func TestProjectMergesPhotosSharingBatchID(t *testing.T) {
	records := []models.Memory{
		photo("p1", "2025-06-01", base, "b1", "Ana", ""),
		photo("p2", "2025-06-01", base.Add(time.Second), "b1", "Ana", ""),
		photo("p3", "2025-06-01", base.Add(2*time.Second), "b1", "Ana", ""),
	}

	buckets := Project(records, nil, ProjectOptions{})
	require.Len(t, buckets, 1)
	require.Len(t, buckets[0].Items, 1)
	item := buckets[0].Items[0]
	assert.Len(t, item.MediaURLs, 3)
	assert.Equal(t, []string{"p3", "p2", "p1"}, item.RecordIDs)
	assert.Equal(t, "Ana", item.Author.Name)
}

func TestProjectLegacyHeuristicMergesWithoutBatchID(t *testing.T) {
	records := []models.Memory{
		photo("p1", "2025-06-01", base, "", "Ana", "beach"),
		photo("p2", "2025-06-01", base.Add(20*time.Second), "", "Ana", "beach"),
		photo("p3", "2025-06-01", base.Add(50*time.Second), "", "Ana", "beach"),
	}

	buckets := Project(records, nil, ProjectOptions{})
	require.Len(t, buckets, 1)
	require.Len(t, buckets[0].Items, 1)
	assert.Len(t, buckets[0].Items[0].MediaURLs, 3)
}

func TestProjectDoesNotMerge(t *testing.T) {
	tests := []struct {
		name    string
		records []models.Memory
	}{
		{
			name: "different batch ids",
			records: []models.Memory{
				photo("p1", "2025-06-01", base, "b1", "Ana", ""),
				photo("p2", "2025-06-01", base.Add(time.Second), "b2", "Ana", ""),
			},
		},
		{
			name: "legacy rows outside window",
			records: []models.Memory{
				photo("p1", "2025-06-01", base, "", "Ana", "x"),
				photo("p2", "2025-06-01", base.Add(3*time.Minute), "", "Ana", "x"),
			},
		},
		{
			name: "legacy rows by different authors",
			records: []models.Memory{
				photo("p1", "2025-06-01", base, "", "Ana", "x"),
				photo("p2", "2025-06-01", base.Add(time.Second), "", "Ben", "x"),
			},
		},
		{
			name: "legacy rows with different captions",
			records: []models.Memory{
				photo("p1", "2025-06-01", base, "", "Ana", "x"),
				photo("p2", "2025-06-01", base.Add(time.Second), "", "Ana", "y"),
			},
		},
		{
			name: "a note in between",
			records: []models.Memory{
				photo("p1", "2025-06-01", base, "b1", "Ana", ""),
				{ID: "n1", Date: "2025-06-01", CreatedAt: base.Add(time.Second), Type: models.MemoryNote, Content: ptr("hi")},
				photo("p2", "2025-06-01", base.Add(2*time.Second), "b1", "Ana", ""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := Project(tt.records, nil, ProjectOptions{})
			require.Len(t, buckets, 1)
			assert.Len(t, buckets[0].Items, len(tt.records))
		})
	}
}

func TestProjectMixedBatchFallsBackToHeuristic(t *testing.T) {
	records := []models.Memory{
		photo("p1", "2025-06-01", base, "", "Ana", "x"),
		photo("p2", "2025-06-01", base.Add(10*time.Second), "b1", "Ana", "x"),
	}
	buckets := Project(records, nil, ProjectOptions{})
	require.Len(t, buckets[0].Items, 1)
	assert.Len(t, buckets[0].Items[0].MediaURLs, 2)
}

func TestProjectBucketsAndComments(t *testing.T) {
	records := []models.Memory{
		photo("old", "2025-05-01", base.Add(-48*time.Hour), "b0", "Ana", ""),
		{ID: "n1", Date: "2025-06-01", CreatedAt: base, Type: models.MemoryNote, Content: ptr("hello"), Likes: 2},
		{ID: "v1", Date: "2025-06-01", CreatedAt: base.Add(time.Minute), Type: models.MemoryVideo, MediaURL: ptr("https://cdn.test/v.mp4")},
	}
	comments := []models.Comment{
		{ID: "c1", MemoryDate: "2025-06-01", AuthorName: "Mia", Content: "so cute"},
		{ID: "c2", MemoryDate: "2025-04-01", AuthorName: "Mia", Content: "orphan"},
	}

	buckets := Project(records, comments, ProjectOptions{Liked: map[string]bool{"n1": true}})
	require.Len(t, buckets, 2)
	assert.Equal(t, "2025-06-01", buckets[0].Date)
	assert.Equal(t, "2025-05-01", buckets[1].Date)

	june := buckets[0]
	require.Len(t, june.Items, 2)
	assert.Equal(t, "v1", june.Items[0].ID)
	assert.Equal(t, "n1", june.Items[1].ID)
	assert.True(t, june.Items[1].Liked)
	assert.Equal(t, 2, june.Items[1].Likes)
	assert.Empty(t, june.Items[1].MediaURLs)
	require.Len(t, june.Comments, 1)
	assert.Equal(t, "c1", june.Comments[0].ID)
	assert.Empty(t, buckets[1].Comments)
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	records := []models.Memory{
		photo("a", "2025-06-01", base, "", "Ana", ""),
		photo("b", "2025-06-01", base.Add(time.Hour), "", "Ana", ""),
	}
	Project(records, nil, ProjectOptions{})
	assert.Equal(t, "a", records[0].ID)
	assert.Nil(t, records[0].Author)
}

func TestTreeAndContributions(t *testing.T) {
	records := []models.Memory{
		{ID: "1", Date: "2024-12-31", CreatedAt: base.Add(-3 * time.Hour), Type: models.MemoryNote},
		{ID: "2", Date: "2025-01-15", CreatedAt: base.Add(-2 * time.Hour), Type: models.MemoryNote},
		{ID: "3", Date: "2025-01-15", CreatedAt: base.Add(-time.Hour), Type: models.MemoryNote},
		{ID: "4", Date: "2025-03-02", CreatedAt: base, Type: models.MemoryNote},
		{ID: "5", Date: "2025-01-02", CreatedAt: base, Type: models.MemoryNote},
	}
	buckets := Project(records, nil, ProjectOptions{})

	tree := Tree(buckets)
	require.Len(t, tree, 2)
	assert.Equal(t, 2025, tree[0].Year)
	require.Len(t, tree[0].Months, 2)
	assert.Equal(t, "March", tree[0].Months[0].Name)
	jan := tree[0].Months[1]
	require.Len(t, jan.Days, 2)
	assert.Equal(t, 15, jan.Days[0].Day)
	assert.Equal(t, 2, jan.Days[0].Items)
	assert.Equal(t, 2024, tree[1].Year)

	c := Contribution(buckets, 2025)
	assert.Equal(t, 4, c.Total)
	assert.Len(t, c.Days, 3)
	assert.Equal(t, 0, level(0))
	assert.Equal(t, 3, level(3))
	assert.Equal(t, 4, level(9))
}

func TestStyleSelection(t *testing.T) {
	assert.Equal(t, "kraft", NoteStyleFor("anything", "kraft").ID)
	assert.Equal(t, NoteStyleFor("abc", ""), NoteStyleFor("abc", "unknown"))
	// 'a'+'b'+'c' = 294
	assert.Equal(t, NoteStyles[294%len(NoteStyles)], NoteStyleFor("abc", ""))
	assert.Equal(t, PhotoStyles[294%len(PhotoStyles)], PhotoStyleFor("abc"))
	assert.Equal(t, "", StyleFor(models.Memory{ID: "abc", Type: models.MemoryPDF}))

	found := false
	id := RandomNoteStyleID()
	for _, s := range NoteStyles {
		if s.ID == id {
			found = true
		}
	}
	assert.True(t, found)
}
