package database

import (
	"context"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

const postColumns = "*, comments:comments(count)"

// RestClient is satisfied by both *supabase.Client and *postgrest.Client.
type RestClient interface {
	From(table string) *postgrest.QueryBuilder
}

// SupabaseStore talks to the project's PostgREST endpoint. Row level
// security is enforced remotely with whatever token the client carries.
type SupabaseStore struct {
	client RestClient
	logger *zap.Logger
}

func NewSupabaseStore(client RestClient, logger *zap.Logger) *SupabaseStore {
	return &SupabaseStore{client: client, logger: utils.OrNop(logger)}
}

type profileRow struct {
	ID        uuid.UUID `json:"id"`
	Username  *string   `json:"username"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// profileUpsert is the payload of UpsertProfile. It has no avatar_url so
// a merge onto an existing row leaves the avatar alone.
type profileUpsert struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r profileRow) toModel() models.Profile {
	p := models.Profile{
		ID:        r.ID,
		AvatarURL: r.AvatarURL,
		CreatedAt: parseTimestamp(r.CreatedAt),
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
	if r.Username != nil {
		p.Username = *r.Username
	}
	return p
}

type postRow struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	ImageURL  *string   `json:"image_url"`
	Likes     *int      `json:"likes"`
	CreatedAt string    `json:"created_at"`
	Comments  []struct {
		Count int `json:"count"`
	} `json:"comments"`
}

func (r postRow) toModel() models.Post {
	p := models.Post{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		CreatedAt: parseTimestamp(r.CreatedAt),
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.ImageURL != nil {
		p.ImageURL = *r.ImageURL
	}
	if r.Likes != nil {
		p.Likes = *r.Likes
	}
	if len(r.Comments) > 0 {
		p.CommentCount = r.Comments[0].Count
	}
	return p
}

type newPostRow struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

type commentRow struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt string    `json:"created_at"`
}

func (r commentRow) toModel() models.Comment {
	return models.Comment{
		ID:        r.ID,
		PostID:    r.PostID,
		UserID:    r.UserID,
		Content:   r.Content,
		CreatedAt: parseTimestamp(r.CreatedAt),
	}
}

// Timestamps may come back with or without a zone, depending on the
// column type. Zoneless values are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// The postgrest client has no context support; a context that is already
// done short-circuits the request.
func (s *SupabaseStore) ready(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return Classify(err, message)
	}
	return nil
}

func (s *SupabaseStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	const msg = "failed to read profile"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	var rows []profileRow
	_, err := s.client.From("profiles").
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	profile := rows[0].toModel()
	return &profile, nil
}

func (s *SupabaseStore) UpsertProfile(ctx context.Context, profile models.Profile) error {
	const msg = "failed to upsert profile"
	if err := s.ready(ctx, msg); err != nil {
		return err
	}
	row := profileUpsert{
		ID:        profile.ID,
		Username:  profile.Username,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
	_, _, err := s.client.From("profiles").
		Upsert(row, "id", "minimal", "").
		Execute()
	return Classify(err, msg)
}

func (s *SupabaseStore) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error {
	const msg = "failed to update profile"
	if err := s.ready(ctx, msg); err != nil {
		return err
	}
	var rows []profileRow
	_, err := s.client.From("profiles").
		Update(update, "representation", "").
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return Classify(err, msg)
	}
	if len(rows) == 0 {
		return utils.NewAppError(utils.ErrNotFound, "profile not found", nil)
	}
	return nil
}

func (s *SupabaseStore) GetUsernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	const msg = "failed to read usernames"
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	var rows []profileRow
	_, err := s.client.From("profiles").
		Select("id, username", "", false).
		In("id", values).
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	for _, row := range rows {
		if row.Username != nil {
			names[row.ID] = *row.Username
		}
	}
	return names, nil
}

func (s *SupabaseStore) ListPosts(ctx context.Context, query models.PostQuery) ([]models.Post, error) {
	const msg = "failed to list posts"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	builder := s.client.From("posts").Select(postColumns, "", false)
	if query.AuthorID != nil {
		builder = builder.Eq("user_id", query.AuthorID.String())
	}
	if query.Filter != "" {
		builder = builder.Ilike("title", "%"+query.Filter+"%")
	}
	switch query.Sort {
	case models.SortLikes:
		builder = builder.Order("likes", &postgrest.OrderOpts{Ascending: true})
	case models.SortLikesDesc:
		builder = builder.Order("likes", &postgrest.OrderOpts{Ascending: false})
	default:
		builder = builder.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	}

	var rows []postRow
	if _, err := builder.ExecuteTo(&rows); err != nil {
		return nil, Classify(err, msg)
	}
	posts := make([]models.Post, len(rows))
	for i, row := range rows {
		posts[i] = row.toModel()
	}
	s.logger.Debug("loaded posts",
		zap.String("sort", string(query.Sort)),
		zap.String("filter", query.Filter),
		zap.Int("count", len(posts)))
	return posts, nil
}

func (s *SupabaseStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	const msg = "failed to read post"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	var rows []postRow
	_, err := s.client.From("posts").
		Select(postColumns, "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	if len(rows) == 0 {
		return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	post := rows[0].toModel()
	return &post, nil
}

func (s *SupabaseStore) InsertPost(ctx context.Context, post models.Post) (*models.Post, error) {
	const msg = "failed to create post"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	row := newPostRow{
		ID:        post.ID,
		UserID:    post.UserID,
		Title:     post.Title,
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		Likes:     post.Likes,
		CreatedAt: post.CreatedAt,
	}
	var rows []postRow
	_, err := s.client.From("posts").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	if len(rows) == 0 {
		return nil, utils.NewAppError(utils.ErrRemote, "insert returned no row", nil)
	}
	created := rows[0].toModel()
	return &created, nil
}

func (s *SupabaseStore) UpdatePost(ctx context.Context, id uuid.UUID, input models.PostInput) (*models.Post, error) {
	return s.patchPost(ctx, id, map[string]interface{}{
		"title":     input.Title,
		"content":   input.Content,
		"image_url": input.ImageURL,
	}, "failed to update post")
}

func (s *SupabaseStore) SetPostLikes(ctx context.Context, id uuid.UUID, likes int) (*models.Post, error) {
	return s.patchPost(ctx, id, map[string]interface{}{"likes": likes}, "failed to update like count")
}

func (s *SupabaseStore) patchPost(ctx context.Context, id uuid.UUID, fields map[string]interface{}, msg string) (*models.Post, error) {
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	var rows []postRow
	_, err := s.client.From("posts").
		Update(fields, "representation", "").
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	if len(rows) == 0 {
		// no row matched, or row level security hid it
		return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	post := rows[0].toModel()
	return &post, nil
}

func (s *SupabaseStore) DeletePost(ctx context.Context, id uuid.UUID) error {
	const msg = "failed to delete post"
	if err := s.ready(ctx, msg); err != nil {
		return err
	}
	var rows []postRow
	_, err := s.client.From("posts").
		Delete("representation", "").
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return Classify(err, msg)
	}
	if len(rows) == 0 {
		return utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	return nil
}

func (s *SupabaseStore) InsertLike(ctx context.Context, like models.PostLike) error {
	const msg = "failed to record like"
	if err := s.ready(ctx, msg); err != nil {
		return err
	}
	_, _, err := s.client.From("post_likes").
		Insert(like, false, "", "minimal", "").
		Execute()
	return Classify(err, msg)
}

func (s *SupabaseStore) DeleteLike(ctx context.Context, like models.PostLike) error {
	const msg = "failed to remove like"
	if err := s.ready(ctx, msg); err != nil {
		return err
	}
	_, _, err := s.client.From("post_likes").
		Delete("minimal", "").
		Eq("post_id", like.PostID.String()).
		Eq("user_id", like.UserID.String()).
		Execute()
	return Classify(err, msg)
}

func (s *SupabaseStore) LikedPostIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	const msg = "failed to read liked posts"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	var rows []models.PostLike
	_, err := s.client.From("post_likes").
		Select("post_id", "", false).
		Eq("user_id", userID.String()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.PostID
	}
	return ids, nil
}

func (s *SupabaseStore) HasLiked(ctx context.Context, like models.PostLike) (bool, error) {
	const msg = "failed to check like status"
	if err := s.ready(ctx, msg); err != nil {
		return false, err
	}
	var rows []models.PostLike
	_, err := s.client.From("post_likes").
		Select("post_id", "", false).
		Eq("post_id", like.PostID.String()).
		Eq("user_id", like.UserID.String()).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return false, Classify(err, msg)
	}
	return len(rows) > 0, nil
}

func (s *SupabaseStore) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	const msg = "failed to load comments"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	var rows []commentRow
	_, err := s.client.From("comments").
		Select("*", "", false).
		Eq("post_id", postID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	comments := make([]models.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.toModel()
	}
	return comments, nil
}

func (s *SupabaseStore) InsertComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	const msg = "failed to add comment"
	if err := s.ready(ctx, msg); err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"post_id": comment.PostID,
		"user_id": comment.UserID,
		"content": comment.Content,
	}
	if comment.ID != uuid.Nil {
		payload["id"] = comment.ID
	}
	var rows []commentRow
	_, err := s.client.From("comments").
		Insert([]map[string]interface{}{payload}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, Classify(err, msg)
	}
	if len(rows) == 0 {
		return nil, utils.NewAppError(utils.ErrRemote, "insert returned no row", nil)
	}
	created := rows[0].toModel()
	return &created, nil
}

func (s *SupabaseStore) Ping(ctx context.Context) error {
	if err := s.ready(ctx, "ping failed"); err != nil {
		return err
	}
	_, _, err := s.client.From("posts").Select("id", "", false).Limit(1, "").Execute()
	if err != nil {
		return Classify(err, "remote store unreachable")
	}
	return nil
}

func (s *SupabaseStore) Close(ctx context.Context) error {
	return nil
}
