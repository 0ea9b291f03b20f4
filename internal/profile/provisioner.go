package profile

import (
	"context"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is the profile table as the provisioner needs it.
type Store interface {
	// GetProfile returns nil, nil when the row does not exist.
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile models.Profile) error
}

// RetryPolicy bounds the reads made before a profile is considered
// absent. Backoff receives the 1-based number of the attempt that just
// came back empty.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy reads up to three times, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: ConstantBackoff(time.Second)}
}

func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Provisioner guarantees a profile row exists for an identity.
type Provisioner struct {
	store  Store
	policy RetryPolicy
	logger *zap.Logger
	now    func() time.Time

	// one ensure in flight per user id
	flights singleflight.Group
}

func NewProvisioner(store Store, policy RetryPolicy, logger *zap.Logger) *Provisioner {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = ConstantBackoff(0)
	}
	return &Provisioner{
		store:  store,
		policy: policy,
		logger: utils.OrNop(logger),
		now:    time.Now,
	}
}

// Ensure returns the profile for id, creating it when absent. The new
// row's username comes from fallbackName's email local-part. Read and
// upsert errors are returned as they are; only absence is retried.
// Concurrent calls for the same id share the first caller's result.
func (p *Provisioner) Ensure(ctx context.Context, id uuid.UUID, fallbackName string) (*models.Profile, error) {
	v, err, _ := p.flights.Do(id.String(), func() (interface{}, error) {
		return p.ensure(ctx, id, fallbackName)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Profile), nil
}

func (p *Provisioner) ensure(ctx context.Context, id uuid.UUID, fallbackName string) (*models.Profile, error) {
	start := time.Now()

	existing, err := p.readWithRetry(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := p.now().UTC()
	created := models.Profile{
		ID:        id,
		Username:  models.UsernameFromEmail(fallbackName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.UpsertProfile(ctx, created); err != nil {
		p.logger.Error("profile create failed", zap.String("user_id", id.String()), zap.Error(err))
		return nil, err
	}

	canonical, err := p.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		return nil, utils.NewAppError(utils.ErrNotFound, "profile not readable after create", nil)
	}
	p.logger.Info("profile created",
		zap.String("user_id", id.String()),
		zap.String("username", canonical.Username),
		zap.Duration("elapsed", time.Since(start)))
	return canonical, nil
}

func (p *Provisioner) readWithRetry(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	for attempt := 1; ; attempt++ {
		profile, err := p.store.GetProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		if profile != nil || attempt >= p.policy.MaxAttempts {
			return profile, nil
		}

		delay := p.policy.Backoff(attempt)
		p.logger.Debug("profile not visible yet, retrying",
			zap.String("user_id", id.String()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if err := sleep(ctx, delay); err != nil {
			return nil, utils.NewAppError(utils.ErrRemoteUnavailable, "profile read abandoned", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
