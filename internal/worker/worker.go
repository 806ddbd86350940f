// Package worker consumes user lifecycle events and performs the cleanup no
// schema-level cascade exists for, currently removing orphaned avatar
// objects after hard deletes.
package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/services"
	"github.com/accounthub/apiserver/internal/storage"
)

// Worker subscribes to the user event topic and reacts to deletions.
type Worker struct {
	bus     *events.Bus
	objects storage.ObjectStore
	log     zerolog.Logger
}

// New constructs a Worker. objects may be nil when no storage backend is
// configured; deletions are then only logged.
func New(bus *events.Bus, objects storage.ObjectStore, log zerolog.Logger) *Worker {
	return &Worker{bus: bus, objects: objects, log: log}
}

// Run consumes events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Msg("worker consuming user events")
	return w.bus.Subscribe(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, event events.UserEvent) error {
	log := w.log.With().Str("event", event.Type).Str("user_id", event.UserID).Logger()

	if event.Type != events.TypeUserDeleted {
		log.Debug().Msg("no action for event")
		return nil
	}
	if event.AvatarURL == "" || w.objects == nil {
		log.Info().Msg("user deleted, no avatar to clean up")
		return nil
	}

	key, ok := services.AvatarObjectKey(event.AvatarURL)
	if !ok {
		log.Warn().Str("avatar_url", event.AvatarURL).Msg("unrecognized avatar url, skipping cleanup")
		return nil
	}
	if err := w.objects.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to delete avatar object")
		return err
	}
	log.Info().Str("key", key).Msg("deleted orphaned avatar object")
	return nil
}
