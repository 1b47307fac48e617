package timeline

import (
	"math/rand"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

// Style is a decorative presentation variant. Only the identity is served;
// rendering belongs to the client.
type Style struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NoteStyles is the fixed set of note variants.
var NoteStyles = []Style{
	{ID: "classic", Name: "Classic Yellow"},
	{ID: "lined", Name: "Lined Notebook"},
	{ID: "graph", Name: "Graph Paper"},
	{ID: "chalk", Name: "Midnight Chalk"},
	{ID: "kraft", Name: "Kraft Paper"},
	{ID: "peach", Name: "Soft Peach"},
	{ID: "mint", Name: "Mint Leaf"},
	{ID: "receipt", Name: "Retro Receipt"},
	{ID: "index", Name: "Index Card"},
	{ID: "lavender", Name: "Lavender Dream"},
	{ID: "blueprint", Name: "Blueprint"},
	{ID: "cyber", Name: "Cyberpunk"},
	{ID: "water", Name: "Watercolor"},
	{ID: "origami", Name: "Origami"},
	{ID: "starry", Name: "Starry Night"},
}

// PhotoStyles is the fixed set of photo frame variants.
var PhotoStyles = []Style{
	{ID: "classic", Name: "Classic"},
	{ID: "film", Name: "Film Strip"},
	{ID: "clean", Name: "Clean"},
	{ID: "retro", Name: "Retro"},
	{ID: "polaroid", Name: "Polaroid"},
	{ID: "neon", Name: "Neon Cyber"},
	{ID: "gold", Name: "Gold Frame"},
	{ID: "grunge", Name: "Grunge"},
	{ID: "soft", Name: "Soft Cloud"},
	{ID: "wooden", Name: "Wooden"},
}

func seed(id string) int {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	return sum
}

// NoteStyleFor picks a note style. A known styleID wins; otherwise the choice
// is the code-point sum of id modulo the number of variants.
func NoteStyleFor(id, styleID string) Style {
	if styleID != "" {
		for _, s := range NoteStyles {
			if s.ID == styleID {
				return s
			}
		}
	}
	return NoteStyles[seed(id)%len(NoteStyles)]
}

// PhotoStyleFor picks a photo frame from id alone.
func PhotoStyleFor(id string) Style {
	return PhotoStyles[seed(id)%len(PhotoStyles)]
}

// StyleFor dispatches on the memory type. Types without variants get "".
func StyleFor(m models.Memory) string {
	switch m.Type {
	case models.MemoryNote:
		return NoteStyleFor(m.ID, m.Metadata.StyleID()).ID
	case models.MemoryPhoto:
		return PhotoStyleFor(m.ID).ID
	}
	return ""
}

// RandomNoteStyleID is stamped into new notes so their look survives id changes.
func RandomNoteStyleID() string {
	return NoteStyles[rand.Intn(len(NoteStyles))].ID
}
