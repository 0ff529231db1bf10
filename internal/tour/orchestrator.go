package tour

import (
	"context"
	"strings"

	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"golang.org/x/sync/errgroup"
)

type Orchestrator struct {
	provider ContentProvider
	chat     *chat.Service
	logger   logging.Logger
}

func NewOrchestrator(provider ContentProvider, chatService *chat.Service, logger logging.Logger) *Orchestrator {
	if provider == nil {
		provider = NopProvider{}
	}
	return &Orchestrator{
		provider: provider,
		chat:     chatService,
		logger:   logger,
	}
}

// Run tours destination stop by stop and then shows the gallery. The destination's chat
// room is opened for the duration of the run; chat failures never fail the tour. A nil
// presenter only collects the result.
func (o *Orchestrator) Run(ctx context.Context, destination string, actor *domain.Identity, presenter Presenter) (*Tour, error) {
	destination = strings.TrimSpace(destination)
	if err := domain.ValidateAreaName(destination); err != nil {
		return nil, err
	}
	// Destinations without a usable identifier (e.g. non-Latin names) tour without a room.
	areaID, err := domain.SanitizeAreaID(destination)
	if err != nil {
		o.logger.Warn(logging.Tour, logging.RoomLifecycle, "tour continues without chat room", map[logging.ExtraKey]any{
			"Destination":        destination,
			logging.ErrorMessage: err.Error(),
		})
		areaID = ""
	}

	result := &Tour{
		Destination: destination,
		AreaID:      areaID,
	}

	if o.chat != nil && areaID != "" {
		handle, err := o.chat.OpenRoom(ctx, areaID, destination, actor)
		if err != nil {
			o.logger.Warn(logging.Tour, logging.RoomLifecycle, "tour continues without chat room", map[logging.ExtraKey]any{
				logging.AreaID:       areaID,
				logging.ErrorMessage: err.Error(),
			})
		} else {
			defer handle.Close()
			result.Room = handle.Room()
		}
	}

	itinerary := degrade(o, "itinerary", Itinerary{}, func() (Itinerary, error) {
		return o.provider.Itinerary(ctx, destination)
	})
	if len(itinerary.Stops) == 0 {
		itinerary.Stops = []Stop{{Name: destination}}
	}

	for i, stop := range itinerary.Stops {
		view := StopView{Stop: stop}
		if text := narration(stop); text != "" {
			speech := degrade(o, "speech", Speech{}, func() (Speech, error) {
				return o.provider.Speech(ctx, text)
			})
			if len(speech.Audio) > 0 {
				view.Narration = &speech
			}
		}
		result.Stops = append(result.Stops, view)

		if presenter != nil {
			if err := presenter.PresentStop(ctx, i, view); err != nil {
				return nil, err
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Gallery.Images = degrade(o, "images", []string{}, func() ([]string, error) {
			return o.provider.Images(gctx, destination)
		})
		return nil
	})
	g.Go(func() error {
		result.Gallery.Videos = degrade(o, "videos", []string{}, func() ([]string, error) {
			return o.provider.Videos(gctx, destination)
		})
		return nil
	})
	g.Go(func() error {
		result.Gallery.News = degrade(o, "news", []Article{}, func() ([]Article, error) {
			return o.provider.News(gctx, destination)
		})
		return nil
	})
	g.Go(func() error {
		result.LocalInfo = degrade(o, "local_info", LocalInfo{}, func() (LocalInfo, error) {
			return o.provider.LocalInfo(gctx, destination)
		})
		return nil
	})
	_ = g.Wait()

	if presenter != nil {
		if err := presenter.PresentGallery(ctx, result.Gallery); err != nil {
			return nil, err
		}
	}

	o.logger.Info(logging.Tour, logging.ExternalService, "tour finished", map[logging.ExtraKey]any{
		logging.AreaID: areaID,
		logging.Count:  len(result.Stops),
	})
	return result, nil
}

func narration(stop Stop) string {
	if stop.Description == "" {
		return stop.Name
	}
	return stop.Name + ". " + stop.Description
}

// degrade returns fallback when fetch fails.
func degrade[T any](o *Orchestrator, what string, fallback T, fetch func() (T, error)) T {
	v, err := fetch()
	if err != nil {
		o.logger.Warn(logging.Tour, logging.ExternalService, "content provider call failed", map[logging.ExtraKey]any{
			"Content":            what,
			logging.ErrorMessage: err.Error(),
		})
		return fallback
	}
	return v
}
