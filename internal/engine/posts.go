package engine

import (
	"context"
	"strings"
	"time"

	"github.com/kevinye7/PokeHub/internal/engagement"
	"github.com/kevinye7/PokeHub/internal/engine/actors"
	"github.com/kevinye7/PokeHub/internal/feed"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostView is one post with the viewer's liked flag.
type PostView struct {
	models.Post
	Liked bool `json:"liked"`
}

// LoadFeed refetches the feed for query and replaces the local state.
// The liked set is re-read when someone is signed in and cleared
// otherwise. If only that read fails the posts are still installed. On a
// failed post read the local state is left as it was.
func (e *Engine) LoadFeed(ctx context.Context, query models.PostQuery) (snap *feed.Snapshot, err error) {
	start := time.Now()
	defer func() { e.observe("load_feed", start, err) }()

	if query.Sort == "" {
		query.Sort = models.SortNewest
	}
	query.Filter = strings.TrimSpace(query.Filter)

	result, err := feed.Load(ctx, e.store, query, e.tracker.Current())
	if err != nil {
		e.logger.Error("feed load failed", zap.String("sort", string(query.Sort)), zap.Error(err))
		return nil, err
	}
	if result.LikedErr != nil {
		e.logger.Warn("liked set unavailable, keeping the previous one", zap.Error(result.LikedErr))
	}
	if err := e.local.replace(query, result); err != nil {
		return nil, err
	}
	return e.local.snapshot()
}

// FeedState returns the local state without refetching.
func (e *Engine) FeedState() (*feed.Snapshot, error) {
	return e.local.snapshot()
}

// LoadAuthorFeed lists one author's posts, newest first. The home feed
// state is not touched.
func (e *Engine) LoadAuthorFeed(ctx context.Context, authorID uuid.UUID) ([]models.Post, error) {
	return e.store.ListPosts(ctx, models.PostQuery{Sort: models.SortNewest, AuthorID: &authorID})
}

func normalizePostInput(input models.PostInput) (models.PostInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	if input.Title == "" {
		return input, utils.NewValidationError("Title is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return input, err
	}
	return input, nil
}

func (e *Engine) CreatePost(ctx context.Context, input models.PostInput) (post *models.Post, err error) {
	start := time.Now()
	defer func() { e.observe("create_post", start, err) }()

	identity, err := e.requireIdentity("create a post")
	if err != nil {
		return nil, err
	}
	if input, err = normalizePostInput(input); err != nil {
		return nil, err
	}

	post, err = e.store.InsertPost(ctx, models.Post{
		UserID:   identity.ID,
		Title:    input.Title,
		Content:  input.Content,
		ImageURL: input.ImageURL,
		Likes:    0,
	})
	if err != nil {
		return nil, err
	}
	e.local.patch(&actors.PostCreatedMsg{Post: *post})
	return post, nil
}

// ownPost loads a post and checks that identity wrote it.
func (e *Engine) ownPost(ctx context.Context, id uuid.UUID, identity *models.Identity, action string) (*models.Post, error) {
	post, err := e.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != identity.ID {
		return nil, utils.NewAppError(utils.ErrForbidden, "Only the author can "+action+" this post", nil)
	}
	return post, nil
}

func (e *Engine) UpdatePost(ctx context.Context, id uuid.UUID, input models.PostInput) (post *models.Post, err error) {
	start := time.Now()
	defer func() { e.observe("update_post", start, err) }()

	identity, err := e.requireIdentity("edit a post")
	if err != nil {
		return nil, err
	}
	if input, err = normalizePostInput(input); err != nil {
		return nil, err
	}
	if _, err = e.ownPost(ctx, id, identity, "edit"); err != nil {
		return nil, err
	}

	post, err = e.store.UpdatePost(ctx, id, input)
	if err != nil {
		return nil, err
	}
	e.local.patch(&actors.PostUpdatedMsg{Post: *post, Fields: feed.FieldContent})
	return post, nil
}

func (e *Engine) DeletePost(ctx context.Context, id uuid.UUID) (err error) {
	start := time.Now()
	defer func() { e.observe("delete_post", start, err) }()

	identity, err := e.requireIdentity("delete a post")
	if err != nil {
		return err
	}
	if _, err = e.ownPost(ctx, id, identity, "delete"); err != nil {
		return err
	}
	if err = e.store.DeletePost(ctx, id); err != nil {
		return err
	}
	e.local.patch(&actors.PostDeletedMsg{PostID: id})
	return nil
}

// GetPost reads one post and, for a signed-in viewer, checks the
// membership table directly for the liked flag.
func (e *Engine) GetPost(ctx context.Context, id uuid.UUID) (*PostView, error) {
	post, err := e.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &PostView{Post: *post}
	if identity := e.tracker.Current(); identity != nil {
		liked, err := e.store.HasLiked(ctx, models.PostLike{PostID: id, UserID: identity.ID})
		if err != nil {
			return nil, err
		}
		view.Liked = liked
	}
	return view, nil
}

// ToggleLike flips the viewer's like using the locally cached counter.
// Posts outside the local feed are read from the store first.
func (e *Engine) ToggleLike(ctx context.Context, postID uuid.UUID) (result engagement.Result, err error) {
	start := time.Now()
	defer func() { e.observe("toggle_like", start, err) }()

	post, ok := e.local.post(postID)
	if !ok {
		post, err = e.store.GetPost(ctx, postID)
		if err != nil {
			return engagement.Result{}, err
		}
	}
	return e.toggler.Toggle(ctx, *post, e.tracker.Current())
}
