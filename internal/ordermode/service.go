package ordermode

import (
	"context"
	"time"

	"github.com/wichananm65/storefront-admin/internal/apperr"
	"go.uber.org/zap"
)

var ErrNothingToUpdate = apperr.New(apperr.InvalidArgument, "isQuickActive or isScheduledActive required")

// Service is the injected replacement for a process-wide cached settings
// object: every read goes to the repository.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) Get(ctx context.Context) (OrderMode, error) {
	m, err := s.repo.GetOrCreate(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to load order mode", zap.Error(err))
		return OrderMode{}, apperr.Wrap(apperr.Upstream, "load order mode", err)
	}
	return m, nil
}

// Update toggles the modes. p.UpdatedBy may be empty when the caller is
// not identified.
func (s *Service) Update(ctx context.Context, p Patch) (OrderMode, error) {
	if p.Empty() {
		return OrderMode{}, ErrNothingToUpdate
	}

	m, err := s.repo.Update(ctx, p, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to update order mode", zap.Error(err))
		return OrderMode{}, apperr.Wrap(apperr.Upstream, "update order mode", err)
	}

	s.logger.Info("order mode updated",
		zap.Bool("quick_active", m.IsQuickActive),
		zap.Bool("scheduled_active", m.IsScheduledActive),
		zap.String("updated_by", p.UpdatedBy))
	return m, nil
}
