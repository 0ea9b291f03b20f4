package comments

import (
	"context"
	"strings"
	"sync"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Remote interface {
	InsertComment(ctx context.Context, comment models.Comment) (*models.Comment, error)
}

// Sink receives each comment after the remote insert succeeds.
type Sink interface {
	ApplyCommentAdded(comment models.Comment)
}

// Appender adds comments and keeps the unsent text of each post's
// comment box.
type Appender struct {
	remote Remote
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	drafts map[uuid.UUID]string
}

func NewAppender(remote Remote, sink Sink, logger *zap.Logger) *Appender {
	return &Appender{
		remote: remote,
		sink:   sink,
		logger: utils.OrNop(logger),
		drafts: make(map[uuid.UUID]string),
	}
}

// Add inserts body as a comment by identity on postID. A blank body or a
// missing identity fails before any remote call. Body is stored as typed.
func (a *Appender) Add(ctx context.Context, postID uuid.UUID, identity *models.Identity, body string) (*models.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, utils.NewValidationError("Comment cannot be empty")
	}
	if identity == nil {
		return nil, utils.NewNotAuthenticatedError("comment")
	}

	comment, err := a.remote.InsertComment(ctx, models.Comment{
		PostID:  postID,
		UserID:  identity.ID,
		Content: body,
	})
	if err != nil {
		a.logger.Error("comment insert failed",
			zap.String("post_id", postID.String()),
			zap.String("user_id", identity.ID.String()),
			zap.Error(err))
		return nil, err
	}

	a.sink.ApplyCommentAdded(*comment)
	return comment, nil
}

func (a *Appender) SetDraft(postID uuid.UUID, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if text == "" {
		delete(a.drafts, postID)
		return
	}
	a.drafts[postID] = text
}

func (a *Appender) Draft(postID uuid.UUID) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drafts[postID]
}

// Submit adds the post's current draft. The draft is cleared on success
// and kept on any failure so it can be resubmitted.
func (a *Appender) Submit(ctx context.Context, postID uuid.UUID, identity *models.Identity) (*models.Comment, error) {
	draft := a.Draft(postID)
	comment, err := a.Add(ctx, postID, identity, draft)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	// keep text typed while the insert was in flight
	if a.drafts[postID] == draft {
		delete(a.drafts, postID)
	}
	a.mu.Unlock()
	return comment, nil
}
