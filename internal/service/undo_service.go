package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"taskpilot/internal/repository"
)

// UndoSweeper purges expired and spent undo records on its own low-frequency
// schedule. Purging is terminal: tasks whose window lapsed stay tombstoned.
// A user-issued restore is never reversed here.
type UndoSweeper struct {
	undo *repository.UndoRepository
	now  func() time.Time
	log  *logrus.Entry
}

func NewUndoSweeper(undo *repository.UndoRepository, log *logrus.Entry) *UndoSweeper {
	return &UndoSweeper{undo: undo, now: time.Now, log: log}
}

// Sweep removes every record past its expiry. Errors are logged; the next
// sweep picks up whatever this one missed.
func (s *UndoSweeper) Sweep(ctx context.Context) int64 {
	purged, err := s.undo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.log.WithError(err).Error("sweep undo records")
		return 0
	}
	if purged > 0 {
		s.log.WithField("purged", purged).Info("undo records swept")
	}
	return purged
}
