package engagement

import (
	"context"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalState is the liked-set and counter cache the toggle reads from and
// patches after a successful counter write.
type LocalState interface {
	IsLiked(postID uuid.UUID) bool
	ApplyLikeToggled(postID uuid.UUID, likes int, liked bool)
}

// Remote holds the two writes of a toggle. They are not atomic.
type Remote interface {
	// SetPostLikes writes an absolute counter value.
	SetPostLikes(ctx context.Context, postID uuid.UUID, likes int) (*models.Post, error)
	InsertLike(ctx context.Context, like models.PostLike) error
	DeleteLike(ctx context.Context, like models.PostLike) error
}

// Result reports the outcome of one toggle.
type Result struct {
	PostID uuid.UUID `json:"post_id"`
	Likes  int       `json:"likes"`
	Liked  bool      `json:"liked"`
	// Applied is false when nothing was written, as for an anonymous caller.
	Applied bool `json:"applied"`
	// MembershipErr is the failed post_likes write, if any. The counter and
	// local state were still updated.
	MembershipErr error `json:"-"`
}

// Toggler flips a user's like on a post. Toggles are not serialized: two
// overlapping toggles of the same post both read the liked flag and
// counter as they were before either write landed.
type Toggler struct {
	remote Remote
	local  LocalState
	logger *zap.Logger
}

func NewToggler(remote Remote, local LocalState, logger *zap.Logger) *Toggler {
	return &Toggler{remote: remote, local: local, logger: utils.OrNop(logger)}
}

// Toggle writes post.Likes±1 to the counter, then inserts or deletes the
// membership row. The counter is not clamped at zero. Local state changes
// only after the counter write succeeds; a failed membership write is
// logged and reported in the result, never returned as an error.
func (t *Toggler) Toggle(ctx context.Context, post models.Post, identity *models.Identity) (Result, error) {
	if identity == nil {
		return Result{PostID: post.ID, Likes: post.Likes, Liked: false}, nil
	}

	wasLiked := t.local.IsLiked(post.ID)
	liked := !wasLiked
	likes := post.Likes + 1
	if wasLiked {
		likes = post.Likes - 1
	}

	if _, err := t.remote.SetPostLikes(ctx, post.ID, likes); err != nil {
		t.logger.Error("like counter write failed",
			zap.String("post_id", post.ID.String()),
			zap.Int("likes", likes),
			zap.Error(err))
		return Result{}, err
	}

	membership := models.PostLike{PostID: post.ID, UserID: identity.ID}
	var membershipErr error
	if liked {
		membershipErr = t.remote.InsertLike(ctx, membership)
	} else {
		membershipErr = t.remote.DeleteLike(ctx, membership)
	}
	if membershipErr != nil {
		t.logger.Warn("like membership write failed, counter already updated",
			zap.String("post_id", post.ID.String()),
			zap.String("user_id", identity.ID.String()),
			zap.Bool("liked", liked),
			zap.Error(membershipErr))
	}

	t.local.ApplyLikeToggled(post.ID, likes, liked)
	return Result{
		PostID:        post.ID,
		Likes:         likes,
		Liked:         liked,
		Applied:       true,
		MembershipErr: membershipErr,
	}, nil
}
