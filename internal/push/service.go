package push

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wichananm65/storefront-admin/internal/admin"
	"github.com/wichananm65/storefront-admin/internal/apperr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type RecipientLister interface {
	ListRecipientIDs(ctx context.Context, roles []admin.Role) ([]string, error)
}

type Options struct {
	// Timeout bounds each transport call.
	Timeout time.Duration
	// Concurrency caps in-flight transport calls per broadcast.
	Concurrency int
}

type Service struct {
	repo      Repository
	admins    RecipientLister
	transport Transport
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// NewService builds the fan-out service. A nil transport leaves
// subscriptions manageable but makes broadcasts fail with ErrDisabled.
func NewService(repo Repository, admins RecipientLister, transport Transport, logger *zap.Logger, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Service{
		repo:      repo,
		admins:    admins,
		transport: transport,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

type SubscribeRequest struct {
	UserID   string
	Endpoint string
	Keys     Keys
	Browser  string
	Device   string
}

// Subscribe registers an endpoint for a user. Repeating the call for the
// same user and endpoint changes nothing.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) error {
	userID := strings.TrimSpace(req.UserID)
	endpoint := strings.TrimSpace(req.Endpoint)
	switch {
	case userID == "":
		return ErrUserRequired
	case endpoint == "":
		return ErrEndpointRequired
	case req.Keys.P256dh == "" || req.Keys.Auth == "":
		return ErrKeysRequired
	}

	now := s.now().UTC()
	written, err := s.repo.Upsert(ctx, Subscription{
		ID:         uuid.NewString(),
		UserID:     userID,
		Endpoint:   endpoint,
		Keys:       req.Keys,
		Browser:    req.Browser,
		Device:     req.Device,
		LastActive: now,
		CreatedAt:  now,
	})
	if err != nil {
		s.logger.Error("failed to store subscription", zap.String("user_id", userID), zap.Error(err))
		return apperr.Wrap(apperr.Upstream, "store subscription", err)
	}
	if written {
		s.logger.Info("push subscription stored", zap.String("user_id", userID), zap.String("browser", req.Browser))
	}
	return nil
}

func (s *Service) Unsubscribe(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrEndpointRequired
	}
	if err := s.repo.DeleteByEndpoint(ctx, endpoint); err != nil {
		s.logger.Error("failed to delete subscription", zap.Error(err))
		return apperr.Wrap(apperr.Upstream, "delete subscription", err)
	}
	return nil
}

// SendToAllAdmins delivers msg to every subscription owned by an active
// admin or superadmin. Individual delivery failures only show up in the
// counts; endpoints the push service reports gone are pruned. An error is
// returned only when the recipients cannot be resolved.
func (s *Service) SendToAllAdmins(ctx context.Context, msg Message) (Result, error) {
	if s.transport == nil {
		return Result{}, ErrDisabled
	}
	if strings.TrimSpace(msg.Title) == "" || strings.TrimSpace(msg.Body) == "" {
		return Result{}, ErrMessageRequired
	}

	ids, err := s.admins.ListRecipientIDs(ctx, admin.NotificationRoles)
	if err != nil {
		s.logger.Error("failed to list notification recipients", zap.Error(err))
		return Result{}, apperr.Wrap(apperr.Upstream, "list recipients", err)
	}
	if len(ids) == 0 {
		return Result{}, nil
	}
	subs, err := s.repo.ListByUserIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to list subscriptions", zap.Error(err))
		return Result{}, apperr.Wrap(apperr.Upstream, "list subscriptions", err)
	}

	url := msg.URL
	if url == "" {
		url = DefaultURL
	}
	body, err := json.Marshal(payload{Title: msg.Title, Body: msg.Body, Data: payloadData{URL: url}})
	if err != nil {
		return Result{}, err
	}

	var (
		sent, failed atomic.Int64
		g            errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if s.deliver(ctx, sub, body) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Sent: int(sent.Load()), Failed: int(failed.Load()), Total: len(subs)}
	s.logger.Info("admin notification sent",
		zap.String("title", msg.Title),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("total", res.Total))
	return res, nil
}

func (s *Service) deliver(ctx context.Context, sub Subscription, body []byte) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	err := s.transport.Send(callCtx, sub, body)
	cancel()
	if err == nil {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Gone() {
		if derr := s.repo.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
			s.logger.Warn("failed to prune subscription", zap.String("endpoint", sub.Endpoint), zap.Error(derr))
		} else {
			s.logger.Info("pruned expired subscription",
				zap.String("endpoint", sub.Endpoint),
				zap.Int("status_code", statusErr.StatusCode))
		}
		return false
	}
	s.logger.Warn("push delivery failed",
		zap.String("endpoint", sub.Endpoint),
		zap.String("user_id", sub.UserID),
		zap.Error(err))
	return false
}
