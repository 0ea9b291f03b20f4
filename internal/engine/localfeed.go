package engine

import (
	"time"

	"github.com/kevinye7/PokeHub/internal/engine/actors"
	"github.com/kevinye7/PokeHub/internal/feed"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// localFeed talks to the FeedActor. It is the local state seen by the
// toggle and the comment appender.
type localFeed struct {
	context *actor.RootContext
	pid     *actor.PID
	timeout time.Duration
	logger  *zap.Logger
}

func (l *localFeed) request(msg interface{}) (interface{}, error) {
	result, err := l.context.RequestFuture(l.pid, msg, l.timeout).Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError("FeedActor", err)
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

// patch sends a state change whose answer nobody needs.
func (l *localFeed) patch(msg interface{}) {
	if _, err := l.request(msg); err != nil {
		l.logger.Error("local feed patch failed", zap.Error(err))
	}
}

func (l *localFeed) IsLiked(postID uuid.UUID) bool {
	result, err := l.request(&actors.IsLikedMsg{PostID: postID})
	if err != nil {
		l.logger.Error("liked lookup failed", zap.Error(err))
		return false
	}
	return result.(bool)
}

func (l *localFeed) ApplyLikeToggled(postID uuid.UUID, likes int, liked bool) {
	l.patch(&actors.LikeToggledMsg{PostID: postID, Likes: likes, Liked: liked})
}

func (l *localFeed) ApplyCommentAdded(comment models.Comment) {
	l.patch(&actors.CommentAddedMsg{Comment: comment})
}

func (l *localFeed) replace(query models.PostQuery, result feed.LoadResult) error {
	_, err := l.request(&actors.ReplaceFeedMsg{
		Query:    query,
		Posts:    result.Posts,
		Liked:    result.Liked,
		LikedErr: result.LikedErr,
	})
	return err
}

func (l *localFeed) post(postID uuid.UUID) (*models.Post, bool) {
	result, err := l.request(&actors.GetFeedPostMsg{PostID: postID})
	if err != nil {
		return nil, false
	}
	return result.(*models.Post), true
}

func (l *localFeed) snapshot() (*feed.Snapshot, error) {
	result, err := l.request(&actors.GetSnapshotMsg{})
	if err != nil {
		return nil, err
	}
	return result.(*feed.Snapshot), nil
}

func (l *localFeed) comments(postID uuid.UUID) (*actors.LoadedComments, error) {
	result, err := l.request(&actors.GetCommentsMsg{PostID: postID})
	if err != nil {
		return nil, err
	}
	return result.(*actors.LoadedComments), nil
}

func (l *localFeed) counts() (*actors.FeedCounts, error) {
	result, err := l.request(&actors.GetCountsMsg{})
	if err != nil {
		return nil, err
	}
	return result.(*actors.FeedCounts), nil
}
