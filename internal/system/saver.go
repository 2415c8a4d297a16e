package system

import (
	"context"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/persist"
	"go.uber.org/zap"
)

// PlayerStore is the player storage the world needs. *persist.PlayerRepo
// implements it.
type PlayerStore interface {
	Load(ctx context.Context, username string) (*persist.PlayerRecord, error)
	Save(ctx context.Context, rec *persist.PlayerRecord) error
	Exists(ctx context.Context, username, password string) (bool, error)
	Create(ctx context.Context, username, password string) (*persist.PlayerRecord, error)
	Delete(ctx context.Context, username string) error
}

var _ PlayerStore = (*persist.PlayerRepo)(nil)

const saveTimeout = 5 * time.Second

// Saver writes player snapshots off the game loop. Records are copied on
// the loop before they are queued, so the worker never touches live state.
type Saver struct {
	store PlayerStore
	queue chan *persist.PlayerRecord
	log   *zap.Logger
}

func NewSaver(store PlayerStore, size int, log *zap.Logger) *Saver {
	return &Saver{
		store: store,
		queue: make(chan *persist.PlayerRecord, size),
		log:   log,
	}
}

// Enqueue hands rec to the worker. It returns false when the queue is
// full; the player stays dirty and is retried on the next pass.
func (s *Saver) Enqueue(rec *persist.PlayerRecord) bool {
	select {
	case s.queue <- rec:
		return true
	default:
		s.log.Warn("save queue full", zap.String("username", rec.Username))
		return false
	}
}

// Run saves queued records until ctx is cancelled, then drains what is
// left before returning.
func (s *Saver) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-s.queue:
			s.save(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.queue:
					s.save(rec)
				default:
					return nil
				}
			}
		}
	}
}

func (s *Saver) save(rec *persist.PlayerRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		s.log.Error("save player", zap.String("username", rec.Username), zap.Error(err))
		return
	}
	s.log.Debug("player saved", zap.String("username", rec.Username))
}
