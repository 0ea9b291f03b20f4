package feed

import (
	"bytes"
	"slices"

	"github.com/kevinye7/PokeHub/internal/models"

	"github.com/google/uuid"
)

// Field selects which parts of a post an update carries.
type Field uint8

const (
	FieldLikes   Field = 1 << iota
	FieldContent       // title, content and image_url
)

// Snapshot is a copy of the local view state.
type Snapshot struct {
	Query    models.PostQuery               `json:"query"`
	Posts    []models.Post                  `json:"posts"`
	Liked    []uuid.UUID                    `json:"liked"`
	Comments map[uuid.UUID][]models.Comment `json:"comments,omitempty"`
}

// State is the local cache of the remote feed: the ordered posts, the
// posts the current identity has liked and each post's loaded comments.
// Incremental patches never reorder posts; only Replace does. State is
// not safe for concurrent use.
type State struct {
	query    models.PostQuery
	posts    []models.Post
	liked    map[uuid.UUID]bool
	comments map[uuid.UUID][]models.Comment
}

func NewState() *State {
	return &State{
		liked:    make(map[uuid.UUID]bool),
		comments: make(map[uuid.UUID][]models.Comment),
	}
}

// Replace installs the result of a full load. Loaded comments are kept
// for posts that are still present.
func (s *State) Replace(query models.PostQuery, posts []models.Post) {
	s.query = query
	s.posts = append([]models.Post(nil), posts...)

	present := make(map[uuid.UUID]bool, len(posts))
	for _, p := range posts {
		present[p.ID] = true
	}
	for id := range s.comments {
		if !present[id] {
			delete(s.comments, id)
		}
	}
}

// ApplyCreated puts post at the front, whatever the sort key.
func (s *State) ApplyCreated(post models.Post) {
	s.remove(post.ID)
	s.posts = append([]models.Post{post}, s.posts...)
}

// ApplyUpdated copies the selected fields of post onto the cached post
// with the same id, in place. It reports false when that post is not
// cached, which makes a late response for a removed post harmless.
func (s *State) ApplyUpdated(post models.Post, fields Field) bool {
	i := s.index(post.ID)
	if i < 0 {
		return false
	}
	cached := &s.posts[i]
	if fields&FieldLikes != 0 {
		cached.Likes = post.Likes
	}
	if fields&FieldContent != 0 {
		cached.Title = post.Title
		cached.Content = post.Content
		cached.ImageURL = post.ImageURL
	}
	return true
}

// ApplyDeleted removes the post with its comments and liked flag.
func (s *State) ApplyDeleted(id uuid.UUID) bool {
	delete(s.comments, id)
	delete(s.liked, id)
	return s.remove(id)
}

// ApplyCommentAdded prepends comment to its post's loaded comments and
// bumps the cached comment count. Comments that were never loaded for the
// post stay unloaded.
func (s *State) ApplyCommentAdded(comment models.Comment) bool {
	applied := false
	if existing, ok := s.comments[comment.PostID]; ok {
		s.comments[comment.PostID] = append([]models.Comment{comment}, existing...)
		applied = true
	}
	if i := s.index(comment.PostID); i >= 0 {
		s.posts[i].CommentCount++
		applied = true
	}
	return applied
}

// SetComments replaces a post's loaded comments, newest first.
func (s *State) SetComments(postID uuid.UUID, comments []models.Comment) {
	s.comments[postID] = append([]models.Comment{}, comments...)
}

// ApplyLikeToggled records a successful counter write.
func (s *State) ApplyLikeToggled(postID uuid.UUID, likes int, liked bool) {
	if liked {
		s.liked[postID] = true
	} else {
		delete(s.liked, postID)
	}
	s.ApplyUpdated(models.Post{ID: postID, Likes: likes}, FieldLikes)
}

func (s *State) IsLiked(postID uuid.UUID) bool {
	return s.liked[postID]
}

// SetLiked replaces the liked set.
func (s *State) SetLiked(ids []uuid.UUID) {
	s.liked = make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		s.liked[id] = true
	}
}

func (s *State) ClearLiked() {
	s.liked = make(map[uuid.UUID]bool)
}

func (s *State) Post(id uuid.UUID) (models.Post, bool) {
	if i := s.index(id); i >= 0 {
		return s.posts[i], true
	}
	return models.Post{}, false
}

func (s *State) Comments(postID uuid.UUID) ([]models.Comment, bool) {
	comments, ok := s.comments[postID]
	if !ok {
		return nil, false
	}
	return append([]models.Comment{}, comments...), true
}

// Counts returns the number of cached posts and liked posts.
func (s *State) Counts() (posts, liked int) {
	return len(s.posts), len(s.liked)
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Query: s.query,
		Posts: append([]models.Post{}, s.posts...),
		Liked: make([]uuid.UUID, 0, len(s.liked)),
	}
	// liked ids in feed order first, then any others in id order
	seen := make(map[uuid.UUID]bool, len(s.liked))
	for _, p := range s.posts {
		if s.liked[p.ID] {
			snap.Liked = append(snap.Liked, p.ID)
			seen[p.ID] = true
		}
	}
	var others []uuid.UUID
	for id := range s.liked {
		if !seen[id] {
			others = append(others, id)
		}
	}
	slices.SortFunc(others, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	snap.Liked = append(snap.Liked, others...)
	if len(s.comments) > 0 {
		snap.Comments = make(map[uuid.UUID][]models.Comment, len(s.comments))
		for id, comments := range s.comments {
			snap.Comments[id] = append([]models.Comment{}, comments...)
		}
	}
	return snap
}

func (s *State) index(id uuid.UUID) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) remove(id uuid.UUID) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	return true
}
