package engine

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/kevinye7/PokeHub/internal/engine/actors"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnknownUsername labels authors whose profile could not be found.
const UnknownUsername = "Trainer"

type ProfileView struct {
	Profile   models.Profile `json:"profile"`
	AvatarURL string         `json:"avatar_public_url,omitempty"`
	IsOwn     bool           `json:"is_own"`
	Posts     []models.Post  `json:"posts"`
}

// AvatarUpload is a new profile picture.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

type ProfileInput struct {
	Username string        `json:"username" validate:"required,max=50"`
	Avatar   *AvatarUpload `json:"-" validate:"-"`
}

// ViewProfile returns userID's profile, creating the row first when it is
// missing. Viewing your own profile names a new row after your email.
func (e *Engine) ViewProfile(ctx context.Context, userID uuid.UUID) (view *ProfileView, err error) {
	start := time.Now()
	defer func() { e.observe("view_profile", start, err) }()

	fallback := models.DefaultUsername
	viewer := e.tracker.Current()
	isOwn := viewer != nil && viewer.ID == userID
	if isOwn {
		fallback = viewer.Email
	}

	profile, err := e.provisioner.Ensure(ctx, userID, fallback)
	if err != nil {
		return nil, err
	}
	posts, err := e.LoadAuthorFeed(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.profileView(*profile, isOwn, posts), nil
}

func (e *Engine) profileView(profile models.Profile, isOwn bool, posts []models.Post) *ProfileView {
	view := &ProfileView{Profile: profile, IsOwn: isOwn, Posts: posts}
	if profile.AvatarURL != nil && *profile.AvatarURL != "" {
		view.AvatarURL = e.avatars.PublicURL(*profile.AvatarURL)
	}
	if view.Posts == nil {
		view.Posts = []models.Post{}
	}
	return view
}

// UpdateProfile changes the signed-in user's username and, optionally,
// avatar. The avatar's storage path is saved, not its URL; without a new
// upload the current path is kept.
func (e *Engine) UpdateProfile(ctx context.Context, input ProfileInput) (view *ProfileView, err error) {
	start := time.Now()
	defer func() { e.observe("update_profile", start, err) }()

	identity, err := e.requireIdentity("update your profile")
	if err != nil {
		return nil, err
	}
	input.Username = strings.TrimSpace(input.Username)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	current, err := e.provisioner.Ensure(ctx, identity.ID, identity.Email)
	if err != nil {
		return nil, err
	}

	avatarPath := current.AvatarURL
	if input.Avatar != nil {
		path, err := e.avatars.Upload(ctx, identity.ID, input.Avatar.Filename, input.Avatar.ContentType, input.Avatar.Data)
		if err != nil {
			e.logger.Error("avatar upload failed", zap.String("user_id", identity.ID.String()), zap.Error(err))
			return nil, err
		}
		avatarPath = &path
	}

	update := models.ProfileUpdate{
		Username:  input.Username,
		AvatarURL: avatarPath,
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.store.UpdateProfile(ctx, identity.ID, update); err != nil {
		return nil, err
	}

	updated, err := e.store.GetProfile(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, utils.NewAppError(utils.ErrNotFound, "profile not readable after update", nil)
	}
	posts, err := e.LoadAuthorFeed(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return e.profileView(*updated, true, posts), nil
}

// Usernames resolves author labels. Ids without a profile map to
// UnknownUsername.
func (e *Engine) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	found, err := e.store.GetUsernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := found[id]; ok && name != "" {
			names[id] = name
		} else {
			names[id] = UnknownUsername
		}
	}
	return names, nil
}

// LoadComments fetches a post's comments, newest first, and replaces the
// local copy.
func (e *Engine) LoadComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	comments, err := e.store.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	e.local.patch(&actors.SetCommentsMsg{PostID: postID, Comments: comments})
	return comments, nil
}

// LocalComments returns the loaded comments of a post without a refetch.
func (e *Engine) LocalComments(postID uuid.UUID) ([]models.Comment, bool, error) {
	loaded, err := e.local.comments(postID)
	if err != nil {
		return nil, false, err
	}
	return loaded.Comments, loaded.Loaded, nil
}

func (e *Engine) AddComment(ctx context.Context, postID uuid.UUID, body string) (comment *models.Comment, err error) {
	start := time.Now()
	defer func() { e.observe("add_comment", start, err) }()
	return e.appender.Add(ctx, postID, e.tracker.Current(), body)
}

func (e *Engine) SetCommentDraft(postID uuid.UUID, text string) {
	e.appender.SetDraft(postID, text)
}

func (e *Engine) CommentDraft(postID uuid.UUID) string {
	return e.appender.Draft(postID)
}

// SubmitComment adds the post's draft, clearing it only on success.
func (e *Engine) SubmitComment(ctx context.Context, postID uuid.UUID) (comment *models.Comment, err error) {
	start := time.Now()
	defer func() { e.observe("add_comment", start, err) }()
	return e.appender.Submit(ctx, postID, e.tracker.Current())
}
