package database

import (
	"context"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32 // allowed through while half-open
	Interval     time.Duration
	Timeout      time.Duration // open duration before trying half-open
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "remote-store",
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}
}

// BreakerStore fails fast with RemoteUnavailable once the remote store
// has been unreachable for a while. Only transport failures count against
// the breaker; rejected writes and missing rows do not.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, config BreakerConfig, logger *zap.Logger) *BreakerStore {
	logger = utils.OrNop(logger)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !utils.IsErrorCode(err, utils.ErrRemoteUnavailable)
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

// State reports the breaker state, for health checks.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) run(op string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, utils.NewAppError(utils.ErrRemoteUnavailable, "remote store unavailable: "+op, err)
	}
	return result, err
}

func (b *BreakerStore) exec(op string, fn func() error) error {
	_, err := b.run(op, func() (interface{}, error) { return nil, fn() })
	return err
}

func (b *BreakerStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	result, err := b.run(OpGetProfile, func() (interface{}, error) { return b.next.GetProfile(ctx, id) })
	if err != nil {
		return nil, err
	}
	return result.(*models.Profile), nil
}

func (b *BreakerStore) UpsertProfile(ctx context.Context, profile models.Profile) error {
	return b.exec(OpUpsertProfile, func() error { return b.next.UpsertProfile(ctx, profile) })
}

func (b *BreakerStore) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error {
	return b.exec(OpUpdateProfile, func() error { return b.next.UpdateProfile(ctx, id, update) })
}

func (b *BreakerStore) GetUsernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	result, err := b.run(OpGetUsernames, func() (interface{}, error) { return b.next.GetUsernames(ctx, ids) })
	if err != nil {
		return nil, err
	}
	return result.(map[uuid.UUID]string), nil
}

func (b *BreakerStore) ListPosts(ctx context.Context, query models.PostQuery) ([]models.Post, error) {
	result, err := b.run(OpListPosts, func() (interface{}, error) { return b.next.ListPosts(ctx, query) })
	if err != nil {
		return nil, err
	}
	return result.([]models.Post), nil
}

func (b *BreakerStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	result, err := b.run(OpGetPost, func() (interface{}, error) { return b.next.GetPost(ctx, id) })
	if err != nil {
		return nil, err
	}
	return result.(*models.Post), nil
}

func (b *BreakerStore) InsertPost(ctx context.Context, post models.Post) (*models.Post, error) {
	result, err := b.run(OpInsertPost, func() (interface{}, error) { return b.next.InsertPost(ctx, post) })
	if err != nil {
		return nil, err
	}
	return result.(*models.Post), nil
}

func (b *BreakerStore) UpdatePost(ctx context.Context, id uuid.UUID, input models.PostInput) (*models.Post, error) {
	result, err := b.run(OpUpdatePost, func() (interface{}, error) { return b.next.UpdatePost(ctx, id, input) })
	if err != nil {
		return nil, err
	}
	return result.(*models.Post), nil
}

func (b *BreakerStore) SetPostLikes(ctx context.Context, id uuid.UUID, likes int) (*models.Post, error) {
	result, err := b.run(OpSetPostLikes, func() (interface{}, error) { return b.next.SetPostLikes(ctx, id, likes) })
	if err != nil {
		return nil, err
	}
	return result.(*models.Post), nil
}

func (b *BreakerStore) DeletePost(ctx context.Context, id uuid.UUID) error {
	return b.exec(OpDeletePost, func() error { return b.next.DeletePost(ctx, id) })
}

func (b *BreakerStore) InsertLike(ctx context.Context, like models.PostLike) error {
	return b.exec(OpInsertLike, func() error { return b.next.InsertLike(ctx, like) })
}

func (b *BreakerStore) DeleteLike(ctx context.Context, like models.PostLike) error {
	return b.exec(OpDeleteLike, func() error { return b.next.DeleteLike(ctx, like) })
}

func (b *BreakerStore) LikedPostIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	result, err := b.run(OpLikedPostIDs, func() (interface{}, error) { return b.next.LikedPostIDs(ctx, userID) })
	if err != nil {
		return nil, err
	}
	return result.([]uuid.UUID), nil
}

func (b *BreakerStore) HasLiked(ctx context.Context, like models.PostLike) (bool, error) {
	result, err := b.run(OpHasLiked, func() (interface{}, error) { return b.next.HasLiked(ctx, like) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (b *BreakerStore) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	result, err := b.run(OpListComments, func() (interface{}, error) { return b.next.ListComments(ctx, postID) })
	if err != nil {
		return nil, err
	}
	return result.([]models.Comment), nil
}

func (b *BreakerStore) InsertComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	result, err := b.run(OpInsertComment, func() (interface{}, error) { return b.next.InsertComment(ctx, comment) })
	if err != nil {
		return nil, err
	}
	return result.(*models.Comment), nil
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.exec(OpPing, func() error { return b.next.Ping(ctx) })
}

func (b *BreakerStore) Close(ctx context.Context) error {
	return b.next.Close(ctx)
}
