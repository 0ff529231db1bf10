// Package tour runs a virtual tour of a destination and opens the destination's chat room
// alongside it.
package tour

import (
	"context"

	"github.com/hilthontt/tourchat/internal/domain"
)

type Stop struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type Itinerary struct {
	Destination string `json:"destination"`
	Stops       []Stop `json:"stops"`
}

type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type LocalInfo struct {
	Weather  string `json:"weather,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type Speech struct {
	ContentType string `json:"contentType"`
	Audio       []byte `json:"audio"`
}

// ContentProvider is the generative and search backend of a tour. Every call is keyed by
// text. Callers treat failures as empty results.
type ContentProvider interface {
	Itinerary(ctx context.Context, destination string) (Itinerary, error)
	Images(ctx context.Context, query string) ([]string, error)
	Videos(ctx context.Context, query string) ([]string, error)
	News(ctx context.Context, query string) ([]Article, error)
	Speech(ctx context.Context, text string) (Speech, error)
	LocalInfo(ctx context.Context, destination string) (LocalInfo, error)
}

// StopView is one stop as shown to the visitor.
type StopView struct {
	Stop      Stop    `json:"stop"`
	Narration *Speech `json:"narration,omitempty"`
}

type Gallery struct {
	Images []string  `json:"images"`
	Videos []string  `json:"videos"`
	News   []Article `json:"news"`
}

// Presenter renders the tour as it progresses.
type Presenter interface {
	PresentStop(ctx context.Context, index int, stop StopView) error
	PresentGallery(ctx context.Context, gallery Gallery) error
}

// Tour is the result of one run.
type Tour struct {
	Destination string       `json:"destination"`
	AreaID      string       `json:"areaId,omitempty"`
	Stops       []StopView   `json:"stops"`
	Gallery     Gallery      `json:"gallery"`
	LocalInfo   LocalInfo    `json:"localInfo"`
	Room        *domain.Room `json:"room,omitempty"`
}
