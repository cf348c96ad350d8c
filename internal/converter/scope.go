package converter

import (
	"context"

	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// scope owns the transient files created while executing one route.
// release deletes all of them; the final result is never tracked.
type scope struct {
	backend   storage.Backend
	logger    *zap.Logger
	onFailure func(context.Context, CleanupWarning)
	ids       []string
}

func (s *scope) track(id string) {
	s.ids = append(s.ids, id)
}

// release runs on every exit path, including cancellation, so it detaches
// from the caller's cancellation before talking to the backend.
func (s *scope) release(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range s.ids {
		if err := s.backend.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete transient file", zap.String("file_id", id), zap.Error(err))
			if s.onFailure != nil {
				s.onFailure(ctx, CleanupWarning{FileID: id, Err: err})
			}
			continue
		}
		s.logger.Debug("deleted transient file", zap.String("file_id", id))
	}
	s.ids = nil
}
