package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kevinye7/PokeHub/internal/auth"
	"github.com/kevinye7/PokeHub/internal/comments"
	"github.com/kevinye7/PokeHub/internal/database"
	"github.com/kevinye7/PokeHub/internal/engagement"
	"github.com/kevinye7/PokeHub/internal/engine/actors"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/profile"
	"github.com/kevinye7/PokeHub/internal/session"
	"github.com/kevinye7/PokeHub/internal/storage"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Options struct {
	Store    database.Store
	Identity auth.Service
	Avatars  storage.AvatarStore
	Metrics  *utils.MetricsCollector
	Logger   *zap.Logger

	ProfileRetry profile.RetryPolicy
	// RequestTimeout bounds requests to the feed actor.
	RequestTimeout time.Duration
}

// Engine coordinates the session tracker, the remote store and the feed
// actor that holds the local view state.
type Engine struct {
	system  *actor.ActorSystem
	feedPID *actor.PID
	local   *localFeed

	store       database.Store
	identity    auth.Service
	avatars     storage.AvatarStore
	tracker     *session.Tracker
	provisioner *profile.Provisioner
	toggler     *engagement.Toggler
	appender    *comments.Appender

	metrics *utils.MetricsCollector
	logger  *zap.Logger

	unsubscribe func()
	background  sync.WaitGroup
}

func NewEngine(system *actor.ActorSystem, opts Options) *Engine {
	logger := utils.OrNop(opts.Logger)
	metrics := opts.Metrics
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if opts.ProfileRetry.MaxAttempts == 0 {
		opts.ProfileRetry = profile.DefaultRetryPolicy()
	}

	feedProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewFeedActor(metrics, logger.Named("feed"))
	})
	feedPID := system.Root.Spawn(feedProps)

	local := &localFeed{
		context: system.Root,
		pid:     feedPID,
		timeout: timeout,
		logger:  logger.Named("feed"),
	}

	return &Engine{
		system:      system,
		feedPID:     feedPID,
		local:       local,
		store:       opts.Store,
		identity:    opts.Identity,
		avatars:     opts.Avatars,
		tracker:     session.NewTracker(opts.Identity, logger.Named("session")),
		provisioner: profile.NewProvisioner(opts.Store, opts.ProfileRetry, logger.Named("profile")),
		toggler:     engagement.NewToggler(opts.Store, local, logger.Named("engagement")),
		appender:    comments.NewAppender(opts.Store, local, logger.Named("comments")),
		metrics:     metrics,
		logger:      logger,
	}
}

// Start begins tracking the session. Identity changes after this point
// keep the liked set and the profile row in step.
func (e *Engine) Start(ctx context.Context) {
	e.unsubscribe = e.tracker.Subscribe(e.onSessionChange)
	e.tracker.Start(ctx)
}

// Close stops tracking, waits for background work and stops the feed actor.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.tracker.Close()
	e.background.Wait()
	e.system.Root.Stop(e.feedPID)
}

func (e *Engine) Metrics() *utils.MetricsCollector {
	return e.metrics
}

// CurrentIdentity is nil when signed out.
func (e *Engine) CurrentIdentity() *models.Identity {
	return e.tracker.Current()
}

func (e *Engine) onSessionChange(change session.Change) {
	if change.Current == nil {
		if change.Previous != nil {
			if _, err := e.local.request(&actors.ClearLikedMsg{}); err != nil {
				e.logger.Error("failed to clear liked set", zap.Error(err))
			}
		}
		return
	}
	if !change.IdentityAvailable() {
		return
	}

	identity := *change.Current
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.refreshIdentityState(ctx, identity)
	}()
}

// refreshIdentityState makes sure the profile exists and reloads the
// liked set for a newly available identity.
func (e *Engine) refreshIdentityState(ctx context.Context, identity models.Identity) {
	if _, err := e.provisioner.Ensure(ctx, identity.ID, identity.Email); err != nil {
		e.logger.Warn("profile ensure after sign-in failed",
			zap.String("user_id", identity.ID.String()),
			zap.Error(err))
	}

	liked, err := e.store.LikedPostIDs(ctx, identity.ID)
	if err != nil {
		e.logger.Warn("liked set reload failed", zap.String("user_id", identity.ID.String()), zap.Error(err))
		return
	}
	if current := e.tracker.Current(); current == nil || current.ID != identity.ID {
		return
	}
	if _, err := e.local.request(&actors.SetLikedMsg{PostIDs: liked}); err != nil {
		e.logger.Error("failed to install liked set", zap.Error(err))
	}
}

// requireIdentity returns the current identity or NOT_AUTHENTICATED.
func (e *Engine) requireIdentity(action string) (*models.Identity, error) {
	identity := e.tracker.Current()
	if identity == nil {
		return nil, utils.NewNotAuthenticatedError(action)
	}
	return identity, nil
}

// observe records latency and counts failures for one operation.
func (e *Engine) observe(op string, start time.Time, err error) {
	e.metrics.AddOperationLatency(op, time.Since(start))
	if err != nil {
		e.metrics.IncrementErrors(err)
	}
}

type HealthReport struct {
	Status     string        `json:"status"`
	Store      string        `json:"store"`
	Breaker    string        `json:"breaker,omitempty"`
	Posts      int           `json:"post_count"`
	LikedPosts int           `json:"liked_count"`
	SignedIn   bool          `json:"signed_in"`
	Uptime     time.Duration `json:"uptime_ns"`
	ServerTime time.Time     `json:"server_time"`
}

// Health reports local state sizes and whether the remote store answers.
func (e *Engine) Health(ctx context.Context) (*HealthReport, error) {
	counts, err := e.local.counts()
	if err != nil {
		return nil, err
	}
	report := &HealthReport{
		Status:     "healthy",
		Store:      "reachable",
		Posts:      counts.Posts,
		LikedPosts: counts.Liked,
		SignedIn:   e.tracker.Current() != nil,
		Uptime:     e.metrics.Uptime(),
		ServerTime: time.Now(),
	}

	if breaker, ok := e.store.(interface{ State() gobreaker.State }); ok {
		state := breaker.State()
		report.Breaker = state.String()
		if state == gobreaker.StateOpen {
			report.Status = "degraded"
			report.Store = "unreachable"
			return report, nil
		}
	}
	if err := e.store.Ping(ctx); err != nil {
		e.logger.Warn("store ping failed", zap.Error(err))
		report.Status = "degraded"
		report.Store = "unreachable"
	}
	return report, nil
}
