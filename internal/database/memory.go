package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
)

// Operation names accepted by MemoryStore.InjectFault.
const (
	OpGetProfile    = "get_profile"
	OpUpsertProfile = "upsert_profile"
	OpUpdateProfile = "update_profile"
	OpGetUsernames  = "get_usernames"
	OpListPosts     = "list_posts"
	OpGetPost       = "get_post"
	OpInsertPost    = "insert_post"
	OpUpdatePost    = "update_post"
	OpSetPostLikes  = "set_post_likes"
	OpDeletePost    = "delete_post"
	OpInsertLike    = "insert_like"
	OpDeleteLike    = "delete_like"
	OpLikedPostIDs  = "liked_post_ids"
	OpHasLiked      = "has_liked"
	OpListComments  = "list_comments"
	OpInsertComment = "insert_comment"
	OpPing          = "ping"
)

// MemoryStore is an in-process Store used for offline runs and tests. It
// mirrors the remote semantics: absolute counter writes, a unique
// (post, user) like pair, cascading post deletes.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]models.Profile
	posts    map[uuid.UUID]models.Post
	order    []uuid.UUID // insertion order, breaks created_at ties
	comments map[uuid.UUID][]models.Comment
	likes    map[models.PostLike]bool
	faults   map[string]error
	calls    map[string]int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[uuid.UUID]models.Profile),
		posts:    make(map[uuid.UUID]models.Post),
		comments: make(map[uuid.UUID][]models.Comment),
		likes:    make(map[models.PostLike]bool),
		faults:   make(map[string]error),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// InjectFault makes every later call of op fail with err until cleared
// with a nil err.
func (m *MemoryStore) InjectFault(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (m *MemoryStore) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// begin records the call and returns the injected fault, if any. Callers
// hold m.mu.
func (m *MemoryStore) begin(op string) error {
	m.calls[op]++
	if err, ok := m.faults[op]; ok {
		return Classify(err, "memory store: "+op+" failed")
	}
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpGetProfile); err != nil {
		return nil, err
	}
	profile, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (m *MemoryStore) UpsertProfile(ctx context.Context, profile models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpUpsertProfile); err != nil {
		return err
	}
	if existing, ok := m.profiles[profile.ID]; ok {
		existing.Username = profile.Username
		existing.UpdatedAt = profile.UpdatedAt
		m.profiles[profile.ID] = existing
		return nil
	}
	profile.AvatarURL = nil
	m.profiles[profile.ID] = profile
	return nil
}

func (m *MemoryStore) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpUpdateProfile); err != nil {
		return err
	}
	profile, ok := m.profiles[id]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "profile not found", nil)
	}
	profile.Username = update.Username
	profile.AvatarURL = update.AvatarURL
	profile.UpdatedAt = update.UpdatedAt
	m.profiles[id] = profile
	return nil
}

func (m *MemoryStore) GetUsernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpGetUsernames); err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if profile, ok := m.profiles[id]; ok {
			names[id] = profile.Username
		}
	}
	return names, nil
}

func (m *MemoryStore) ListPosts(ctx context.Context, query models.PostQuery) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpListPosts); err != nil {
		return nil, err
	}

	filter := strings.ToLower(query.Filter)
	posts := make([]models.Post, 0, len(m.order))
	for _, id := range m.order {
		post := m.posts[id]
		if query.AuthorID != nil && post.UserID != *query.AuthorID {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(post.Title), filter) {
			continue
		}
		post.CommentCount = len(m.comments[id])
		posts = append(posts, post)
	}

	switch query.Sort {
	case models.SortLikes:
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Likes < posts[j].Likes })
	case models.SortLikesDesc:
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Likes > posts[j].Likes })
	default:
		// newest first; later inserts win ties
		for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
			posts[i], posts[j] = posts[j], posts[i]
		}
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	}
	return posts, nil
}

func (m *MemoryStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpGetPost); err != nil {
		return nil, err
	}
	post, ok := m.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	post.CommentCount = len(m.comments[id])
	return &post, nil
}

func (m *MemoryStore) InsertPost(ctx context.Context, post models.Post) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpInsertPost); err != nil {
		return nil, err
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if _, exists := m.posts[post.ID]; exists {
		return nil, utils.NewAppError(utils.ErrConflict, "post already exists", nil)
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = m.now().UTC()
	}
	post.CommentCount = 0
	m.posts[post.ID] = post
	m.order = append(m.order, post.ID)
	return &post, nil
}

func (m *MemoryStore) UpdatePost(ctx context.Context, id uuid.UUID, input models.PostInput) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpUpdatePost); err != nil {
		return nil, err
	}
	post, ok := m.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	post.Title = input.Title
	post.Content = input.Content
	post.ImageURL = input.ImageURL
	m.posts[id] = post
	post.CommentCount = len(m.comments[id])
	return &post, nil
}

func (m *MemoryStore) SetPostLikes(ctx context.Context, id uuid.UUID, likes int) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpSetPostLikes); err != nil {
		return nil, err
	}
	post, ok := m.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	post.Likes = likes
	m.posts[id] = post
	post.CommentCount = len(m.comments[id])
	return &post, nil
}

func (m *MemoryStore) DeletePost(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDeletePost); err != nil {
		return err
	}
	if _, ok := m.posts[id]; !ok {
		return utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	delete(m.posts, id)
	delete(m.comments, id)
	for like := range m.likes {
		if like.PostID == id {
			delete(m.likes, like)
		}
	}
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) InsertLike(ctx context.Context, like models.PostLike) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpInsertLike); err != nil {
		return err
	}
	if _, ok := m.posts[like.PostID]; !ok {
		return utils.NewAppError(utils.ErrConflict, "like references a missing post", nil)
	}
	if m.likes[like] {
		return utils.NewAppError(utils.ErrConflict, "post already liked", nil)
	}
	m.likes[like] = true
	return nil
}

func (m *MemoryStore) DeleteLike(ctx context.Context, like models.PostLike) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDeleteLike); err != nil {
		return err
	}
	delete(m.likes, like)
	return nil
}

func (m *MemoryStore) LikedPostIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpLikedPostIDs); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, postID := range m.order {
		if m.likes[models.PostLike{PostID: postID, UserID: userID}] {
			ids = append(ids, postID)
		}
	}
	return ids, nil
}

func (m *MemoryStore) HasLiked(ctx context.Context, like models.PostLike) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpHasLiked); err != nil {
		return false, err
	}
	return m.likes[like], nil
}

func (m *MemoryStore) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpListComments); err != nil {
		return nil, err
	}
	// stored newest first
	comments := make([]models.Comment, len(m.comments[postID]))
	copy(comments, m.comments[postID])
	return comments, nil
}

func (m *MemoryStore) InsertComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpInsertComment); err != nil {
		return nil, err
	}
	if _, ok := m.posts[comment.PostID]; !ok {
		return nil, utils.NewAppError(utils.ErrConflict, "comment references a missing post", nil)
	}
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = m.now().UTC()
	}
	m.comments[comment.PostID] = append([]models.Comment{comment}, m.comments[comment.PostID]...)
	return &comment, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begin(OpPing)
}

func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}
