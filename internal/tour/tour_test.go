package tour

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/persistence/memory"
)

type stubProvider struct {
	NopProvider
	itinerary Itinerary
	images    []string
	fail      bool
}

func (p stubProvider) Itinerary(ctx context.Context, destination string) (Itinerary, error) {
	if p.fail {
		return Itinerary{}, errors.New("model overloaded")
	}
	return p.itinerary, nil
}

func (p stubProvider) Images(ctx context.Context, query string) ([]string, error) {
	return p.images, nil
}

func (p stubProvider) Speech(ctx context.Context, text string) (Speech, error) {
	return Speech{ContentType: "audio/mpeg", Audio: []byte(text)}, nil
}

type recordingPresenter struct {
	mu      sync.Mutex
	stops   []int
	gallery *Gallery
}

func (p *recordingPresenter) PresentStop(ctx context.Context, index int, stop StopView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops = append(p.stops, index)
	return nil
}

func (p *recordingPresenter) PresentGallery(ctx context.Context, gallery Gallery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gallery = &gallery
	return nil
}

func newChat() *chat.Service {
	return chat.NewService(memory.NewRoomRepository(), memory.NewMessageRepository(), chat.DefaultConfig())
}

func TestRunPresentsStopsAndOpensRoom(t *testing.T) {
	provider := stubProvider{
		itinerary: Itinerary{Destination: "Paris", Stops: []Stop{
			{Name: "Louvre", Description: "Museum"},
			{Name: "Eiffel Tower"},
		}},
		images: []string{"https://img/1.jpg"},
	}
	o := NewOrchestrator(provider, newChat(), logging.NewNop())
	presenter := &recordingPresenter{}

	result, err := o.Run(context.Background(), " Paris ", &domain.Identity{ID: "u"}, presenter)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.AreaID != "paris" || len(result.Stops) != 2 {
		t.Fatalf("unexpected tour %+v", result)
	}
	if result.Stops[0].Narration == nil || string(result.Stops[0].Narration.Audio) != "Louvre. Museum" {
		t.Fatalf("expected narration of the first stop, got %+v", result.Stops[0].Narration)
	}
	if len(presenter.stops) != 2 || presenter.gallery == nil {
		t.Fatalf("presenter not driven: %+v", presenter)
	}
	if len(result.Gallery.Images) != 1 {
		t.Fatalf("expected gallery images, got %+v", result.Gallery)
	}
	if len(result.Gallery.Videos) != 0 || len(result.Gallery.News) != 0 {
		t.Fatalf("failed content must degrade to empty, got %+v", result.Gallery)
	}
	if result.Room == nil || !result.Room.IsAdmin("u") {
		t.Fatalf("expected the destination room to be opened, got %+v", result.Room)
	}
}

func TestRunDegradesWithoutProviderOrRoom(t *testing.T) {
	o := NewOrchestrator(stubProvider{fail: true}, newChat(), logging.NewNop())

	// Anonymous visitors cannot create the room; the tour still runs.
	result, err := o.Run(context.Background(), "Rome", nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Stops) != 1 || result.Stops[0].Stop.Name != "Rome" {
		t.Fatalf("expected a single fallback stop, got %+v", result.Stops)
	}
	if result.Room != nil {
		t.Fatal("expected no room for an anonymous first visit")
	}
}

func TestRunWithoutAreaIDSkipsRoom(t *testing.T) {
	o := NewOrchestrator(stubProvider{fail: true}, newChat(), logging.NewNop())

	result, err := o.Run(context.Background(), "東京", &domain.Identity{ID: "u"}, nil)
	if err != nil {
		t.Fatalf("a destination without an area id must still tour: %v", err)
	}
	if result.AreaID != "" || result.Room != nil {
		t.Fatalf("expected no chat room, got %q %+v", result.AreaID, result.Room)
	}
	if len(result.Stops) != 1 || result.Stops[0].Stop.Name != "東京" {
		t.Fatalf("expected a single fallback stop, got %+v", result.Stops)
	}
}

func TestRunRejectsInvalidDestination(t *testing.T) {
	o := NewOrchestrator(nil, nil, logging.NewNop())
	_, err := o.Run(context.Background(), " ", &domain.Identity{ID: "u"}, nil)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/itinerary":
			_ = json.NewEncoder(w).Encode(Itinerary{
				Destination: r.URL.Query().Get("destination"),
				Stops:       []Stop{{Name: "Colosseum"}},
			})
		case "/v1/images":
			_ = json.NewEncoder(w).Encode(map[string][]string{"images": {"a.jpg", "b.jpg"}})
		case "/v1/speech":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(Speech{ContentType: "audio/mpeg", Audio: []byte(body["text"])})
		default:
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL+"/v1/", time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	it, err := p.Itinerary(ctx, "Rome")
	if err != nil || it.Destination != "Rome" || len(it.Stops) != 1 {
		t.Fatalf("itinerary: %+v %v", it, err)
	}
	images, err := p.Images(ctx, "Rome")
	if err != nil || len(images) != 2 {
		t.Fatalf("images: %v %v", images, err)
	}
	speech, err := p.Speech(ctx, "hello")
	if err != nil || string(speech.Audio) != "hello" {
		t.Fatalf("speech: %+v %v", speech, err)
	}
	if _, err := p.News(ctx, "Rome"); err == nil {
		t.Fatal("expected backend failure to surface")
	}
}
