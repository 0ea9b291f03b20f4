package feed

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/kevinye7/PokeHub/internal/database"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(posts []models.Post) []uuid.UUID {
	out := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

// Sorted by likes ascending, a counter update does not move the post
// until the next full load.
func TestApplyUpdatedDoesNotReorder(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	first, err := store.InsertPost(ctx, models.Post{UserID: uuid.New(), Title: "one", Likes: 5})
	require.NoError(t, err)
	second, err := store.InsertPost(ctx, models.Post{UserID: uuid.New(), Title: "two", Likes: 2})
	require.NoError(t, err)

	query := models.PostQuery{Sort: models.SortLikes}
	state := NewState()
	result, err := Load(ctx, store, query, nil)
	require.NoError(t, err)
	result.Apply(state, query)
	assert.Equal(t, []uuid.UUID{second.ID, first.ID}, ids(state.Snapshot().Posts))

	// local order [1:5, 2:2] as loaded in a stale window
	state.Replace(query, []models.Post{*first, *second})
	assert.True(t, state.ApplyUpdated(models.Post{ID: second.ID, Likes: 10}, FieldLikes))

	snap := state.Snapshot()
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids(snap.Posts))
	assert.Equal(t, 10, snap.Posts[1].Likes)
	assert.Equal(t, "two", snap.Posts[1].Title, "likes-only update keeps content")

	_, err = store.SetPostLikes(ctx, second.ID, 10)
	require.NoError(t, err)
	result, err = Load(ctx, store, query, nil)
	require.NoError(t, err)
	result.Apply(state, query)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids(state.Snapshot().Posts))
}

func TestApplyUpdatedMergesOnlySelectedFields(t *testing.T) {
	state := NewState()
	post := models.Post{ID: uuid.New(), Title: "old", Content: "body", Likes: 3, CommentCount: 2}
	state.Replace(models.PostQuery{}, []models.Post{post})

	state.ApplyUpdated(models.Post{ID: post.ID, Title: "new", Content: "edited", Likes: 0}, FieldContent)
	got, ok := state.Post(post.ID)
	require.True(t, ok)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "edited", got.Content)
	assert.Equal(t, 3, got.Likes)
	assert.Equal(t, 2, got.CommentCount)

	assert.False(t, state.ApplyUpdated(models.Post{ID: uuid.New(), Likes: 1}, FieldLikes))
}

func TestApplyCreatedAndDeleted(t *testing.T) {
	state := NewState()
	old := models.Post{ID: uuid.New(), Title: "old", Likes: 50}
	state.Replace(models.PostQuery{Sort: models.SortLikesDesc}, []models.Post{old})
	state.SetLiked([]uuid.UUID{old.ID})
	state.SetComments(old.ID, []models.Comment{{ID: uuid.New(), PostID: old.ID}})

	created := models.Post{ID: uuid.New(), Title: "new"}
	state.ApplyCreated(created)
	assert.Equal(t, []uuid.UUID{created.ID, old.ID}, ids(state.Snapshot().Posts))

	assert.True(t, state.ApplyDeleted(old.ID))
	assert.False(t, state.IsLiked(old.ID))
	_, ok := state.Comments(old.ID)
	assert.False(t, ok)
	assert.False(t, state.ApplyDeleted(old.ID))

	posts, liked := state.Counts()
	assert.Equal(t, 1, posts)
	assert.Equal(t, 0, liked)
}

func TestApplyCommentAdded(t *testing.T) {
	state := NewState()
	post := models.Post{ID: uuid.New(), CommentCount: 1}
	earlier := models.Comment{ID: uuid.New(), PostID: post.ID, Content: "first", CreatedAt: time.Now().Add(-time.Minute)}
	state.Replace(models.PostQuery{}, []models.Post{post})
	state.SetComments(post.ID, []models.Comment{earlier})

	added := models.Comment{ID: uuid.New(), PostID: post.ID, Content: "second"}
	assert.True(t, state.ApplyCommentAdded(added))

	comments, ok := state.Comments(post.ID)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{added.ID, earlier.ID}, []uuid.UUID{comments[0].ID, comments[1].ID})
	got, _ := state.Post(post.ID)
	assert.Equal(t, 2, got.CommentCount)

	// unknown post, nothing loaded
	assert.False(t, state.ApplyCommentAdded(models.Comment{ID: uuid.New(), PostID: uuid.New()}))
}

func TestApplyLikeToggled(t *testing.T) {
	state := NewState()
	post := models.Post{ID: uuid.New(), Likes: 1}
	state.Replace(models.PostQuery{}, []models.Post{post})

	state.ApplyLikeToggled(post.ID, 2, true)
	assert.True(t, state.IsLiked(post.ID))
	got, _ := state.Post(post.ID)
	assert.Equal(t, 2, got.Likes)

	state.ApplyLikeToggled(post.ID, 1, false)
	assert.False(t, state.IsLiked(post.ID))
}

func TestLoadReadsLikedSetForIdentity(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	post, err := store.InsertPost(ctx, models.Post{UserID: uuid.New(), Title: "Psyduck"})
	require.NoError(t, err)
	user := &models.Identity{ID: uuid.New()}
	require.NoError(t, store.InsertLike(ctx, models.PostLike{PostID: post.ID, UserID: user.ID}))

	state := NewState()
	result, err := Load(ctx, store, models.PostQuery{}, user)
	require.NoError(t, err)
	result.Apply(state, models.PostQuery{})
	assert.True(t, state.IsLiked(post.ID))

	// anonymous reload drops the liked set
	result, err = Load(ctx, store, models.PostQuery{}, nil)
	require.NoError(t, err)
	result.Apply(state, models.PostQuery{})
	assert.False(t, state.IsLiked(post.ID))
	assert.Equal(t, 1, store.Calls(database.OpLikedPostIDs))
}

func TestLoadFailureLeavesStateUntouched(t *testing.T) {
	store := database.NewMemoryStore()
	store.InjectFault(database.OpListPosts, syscall.ECONNREFUSED)
	state := NewState()
	kept := models.Post{ID: uuid.New()}
	state.Replace(models.PostQuery{}, []models.Post{kept})

	_, err := Load(context.Background(), store, models.PostQuery{}, nil)
	assert.True(t, utils.IsErrorCode(err, utils.ErrRemoteUnavailable))
	assert.Equal(t, []uuid.UUID{kept.ID}, ids(state.Snapshot().Posts))
}

func TestLoadKeepsPostsWhenLikedSetFails(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	post, err := store.InsertPost(ctx, models.Post{UserID: uuid.New(), Title: "Snorlax blocking Route 12"})
	require.NoError(t, err)
	user := &models.Identity{ID: uuid.New()}

	state := NewState()
	state.SetLiked([]uuid.UUID{post.ID})
	store.InjectFault(database.OpLikedPostIDs, syscall.ECONNRESET)

	result, err := Load(ctx, store, models.PostQuery{}, user)
	require.NoError(t, err)
	assert.Error(t, result.LikedErr)
	result.Apply(state, models.PostQuery{})

	assert.Equal(t, []uuid.UUID{post.ID}, ids(state.Snapshot().Posts))
	assert.True(t, state.IsLiked(post.ID))
}

func TestSnapshotLikedOrderIsStable(t *testing.T) {
	inFeed := uuid.MustParse("ffffffff-0000-4000-8000-000000000000")
	low := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	mid := uuid.MustParse("7fffffff-0000-4000-8000-000000000000")

	state := NewState()
	state.Replace(models.PostQuery{}, []models.Post{{ID: inFeed}})
	state.SetLiked([]uuid.UUID{mid, inFeed, low})

	for i := 0; i < 20; i++ {
		assert.Equal(t, []uuid.UUID{inFeed, low, mid}, state.Snapshot().Liked)
	}
}
