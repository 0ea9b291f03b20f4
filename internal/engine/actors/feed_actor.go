package actors

import (
	"fmt"
	"time"

	"github.com/kevinye7/PokeHub/internal/feed"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message types for the local feed state
type (
	// ReplaceFeedMsg installs a full load. Liked nil means anonymous
	// unless LikedErr is set, in which case the liked set is kept.
	ReplaceFeedMsg struct {
		Query    models.PostQuery
		Posts    []models.Post
		Liked    []uuid.UUID
		LikedErr error
	}

	PostCreatedMsg struct {
		Post models.Post
	}

	PostUpdatedMsg struct {
		Post   models.Post
		Fields feed.Field
	}

	PostDeletedMsg struct {
		PostID uuid.UUID
	}

	CommentAddedMsg struct {
		Comment models.Comment
	}

	SetCommentsMsg struct {
		PostID   uuid.UUID
		Comments []models.Comment
	}

	LikeToggledMsg struct {
		PostID uuid.UUID
		Likes  int
		Liked  bool
	}

	IsLikedMsg struct {
		PostID uuid.UUID
	}

	SetLikedMsg struct {
		PostIDs []uuid.UUID
	}

	ClearLikedMsg struct{}

	GetFeedPostMsg struct {
		PostID uuid.UUID
	}

	GetCommentsMsg struct {
		PostID uuid.UUID
	}

	GetSnapshotMsg struct{}

	GetCountsMsg struct{}
)

// FeedCounts answers GetCountsMsg.
type FeedCounts struct {
	Posts int `json:"posts"`
	Liked int `json:"liked"`
}

// LoadedComments answers GetCommentsMsg. Loaded is false when the post's
// comments were never fetched.
type LoadedComments struct {
	Comments []models.Comment
	Loaded   bool
}

// FeedActor owns the local feed state. Every patch, whichever component
// produced it, is applied in mailbox order.
type FeedActor struct {
	state   *feed.State
	metrics *utils.MetricsCollector
	logger  *zap.Logger
}

func NewFeedActor(metrics *utils.MetricsCollector, logger *zap.Logger) actor.Actor {
	return &FeedActor{
		state:   feed.NewState(),
		metrics: metrics,
		logger:  utils.OrNop(logger),
	}
}

func (a *FeedActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.logger.Debug("FeedActor started")
	case *actor.Stopping:
		a.logger.Debug("FeedActor stopping")
	case *actor.Restarting:
		a.logger.Warn("FeedActor restarting")

	case *ReplaceFeedMsg:
		start := time.Now()
		feed.LoadResult{Posts: msg.Posts, Liked: msg.Liked, LikedErr: msg.LikedErr}.Apply(a.state, msg.Query)
		a.observe("replace_feed", start)
		context.Respond(true)

	case *PostCreatedMsg:
		a.state.ApplyCreated(msg.Post)
		context.Respond(true)

	case *PostUpdatedMsg:
		context.Respond(a.state.ApplyUpdated(msg.Post, msg.Fields))

	case *PostDeletedMsg:
		context.Respond(a.state.ApplyDeleted(msg.PostID))

	case *CommentAddedMsg:
		context.Respond(a.state.ApplyCommentAdded(msg.Comment))

	case *SetCommentsMsg:
		a.state.SetComments(msg.PostID, msg.Comments)
		context.Respond(true)

	case *LikeToggledMsg:
		a.state.ApplyLikeToggled(msg.PostID, msg.Likes, msg.Liked)
		context.Respond(true)

	case *IsLikedMsg:
		context.Respond(a.state.IsLiked(msg.PostID))

	case *SetLikedMsg:
		a.state.SetLiked(msg.PostIDs)
		context.Respond(true)

	case *ClearLikedMsg:
		a.state.ClearLiked()
		context.Respond(true)

	case *GetFeedPostMsg:
		if post, ok := a.state.Post(msg.PostID); ok {
			context.Respond(&post)
		} else {
			context.Respond(utils.NewAppError(utils.ErrNotFound, "post not in local feed", nil))
		}

	case *GetCommentsMsg:
		comments, ok := a.state.Comments(msg.PostID)
		context.Respond(&LoadedComments{Comments: comments, Loaded: ok})

	case *GetSnapshotMsg:
		start := time.Now()
		snap := a.state.Snapshot()
		a.observe("feed_snapshot", start)
		context.Respond(&snap)

	case *GetCountsMsg:
		posts, liked := a.state.Counts()
		context.Respond(&FeedCounts{Posts: posts, Liked: liked})

	default:
		a.logger.Debug("FeedActor: unknown message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *FeedActor) observe(op string, start time.Time) {
	if a.metrics != nil {
		a.metrics.AddOperationLatency(op, time.Since(start))
	}
}
