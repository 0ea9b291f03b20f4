package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a disposable database named by POKEHUB_TEST_DATABASE_URL.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("POKEHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POKEHUB_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := NewPostgresDB(dsn, nil)
	require.NoError(t, err)
	defer db.Close(ctx)
	require.NoError(t, db.InitializeTables(ctx))

	author := models.Profile{ID: uuid.New(), Username: "misty", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, db.UpsertProfile(ctx, author))

	got, err := db.GetProfile(ctx, author.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "misty", got.Username)

	avatar := author.ID.String() + "/" + author.ID.String() + "-1700000000000.png"
	require.NoError(t, db.UpdateProfile(ctx, author.ID, models.ProfileUpdate{Username: "misty", AvatarURL: &avatar, UpdatedAt: time.Now().UTC()}))
	require.NoError(t, db.UpsertProfile(ctx, models.Profile{ID: author.ID, Username: "Misty", CreatedAt: time.Now().UTC().Add(time.Hour), UpdatedAt: time.Now().UTC()}))
	got, err = db.GetProfile(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "Misty", got.Username)
	require.NotNil(t, got.AvatarURL)
	assert.Equal(t, avatar, *got.AvatarURL)
	assert.WithinDuration(t, author.CreatedAt, got.CreatedAt, time.Second)

	missing, err := db.GetProfile(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	post, err := db.InsertPost(ctx, models.Post{UserID: author.ID, Title: "Starmie counters"})
	require.NoError(t, err)

	updated, err := db.SetPostLikes(ctx, post.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, updated.Likes)

	like := models.PostLike{PostID: post.ID, UserID: author.ID}
	require.NoError(t, db.InsertLike(ctx, like))
	err = db.InsertLike(ctx, like)
	assert.True(t, utils.IsErrorCode(err, utils.ErrConflict))

	liked, err := db.HasLiked(ctx, like)
	require.NoError(t, err)
	assert.True(t, liked)

	_, err = db.InsertComment(ctx, models.Comment{PostID: post.ID, UserID: author.ID, Content: "nice"})
	require.NoError(t, err)

	posts, err := db.ListPosts(ctx, models.PostQuery{AuthorID: &author.ID, Filter: "STARMIE"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 1, posts[0].CommentCount)

	require.NoError(t, db.DeletePost(ctx, post.ID))
	err = db.DeletePost(ctx, post.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}
