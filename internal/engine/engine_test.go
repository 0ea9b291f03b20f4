package engine

import (
	"bytes"
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/kevinye7/PokeHub/internal/auth"
	"github.com/kevinye7/PokeHub/internal/database"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/profile"
	"github.com/kevinye7/PokeHub/internal/storage"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	engine  *Engine
	store   *database.MemoryStore
	avatars *storage.MemoryAvatars
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := database.NewMemoryStore()
	avatars := storage.NewMemoryAvatars("http://localhost:8080/storage/v1")
	identity := auth.NewLocalIdentity("test-secret", nil).WithHashCost(bcrypt.MinCost)

	e := NewEngine(actor.NewActorSystem(), Options{
		Store:        store,
		Identity:     identity,
		Avatars:      avatars,
		ProfileRetry: profile.RetryPolicy{MaxAttempts: 3, Backoff: profile.ConstantBackoff(time.Millisecond)},
	})
	e.Start(context.Background())
	t.Cleanup(e.Close)
	return &fixture{engine: e, store: store, avatars: avatars}
}

func (f *fixture) signUp(t *testing.T, email string) *models.Identity {
	t.Helper()
	result, err := f.engine.SignUp(context.Background(), Credentials{Email: email, Password: "pikachu"})
	require.NoError(t, err)
	require.NotNil(t, result.Identity)
	f.engine.background.Wait()
	return result.Identity
}

func TestSignUpCreatesProfile(t *testing.T) {
	f := newFixture(t)

	identity := f.signUp(t, "ash@pallet.town")
	assert.Equal(t, identity.ID, f.engine.CurrentIdentity().ID)

	stored, err := f.store.GetProfile(context.Background(), identity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ash", stored.Username)

	_, err = f.engine.SignUp(context.Background(), Credentials{Email: "ash@pallet.town", Password: "pikachu"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrConflict))

	_, err = f.engine.SignUp(context.Background(), Credentials{Email: "not-an-email", Password: "pikachu"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
}

func TestToggleLikeRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "brock@pewter.gym")

	post, err := f.engine.CreatePost(ctx, models.PostInput{Title: "  Onix evolves  ", Content: "with a metal coat"})
	require.NoError(t, err)
	assert.Equal(t, "Onix evolves", post.Title)
	assert.Equal(t, 0, post.Likes)

	_, err = f.engine.LoadFeed(ctx, models.PostQuery{})
	require.NoError(t, err)

	result, err := f.engine.ToggleLike(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.Liked)
	assert.Equal(t, 1, result.Likes)

	liked, err := f.store.HasLiked(ctx, models.PostLike{PostID: post.ID, UserID: user.ID})
	require.NoError(t, err)
	assert.True(t, liked)

	snap, err := f.engine.FeedState()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{post.ID}, snap.Liked)
	assert.Equal(t, 1, snap.Posts[0].Likes)

	result, err = f.engine.ToggleLike(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, 0, result.Likes)

	view, err := f.engine.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, view.Liked)
	assert.Equal(t, 0, view.Likes)
}

func TestAnonymousToggleWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post, err := f.store.InsertPost(ctx, models.Post{UserID: uuid.New(), Title: "Eevee", Likes: 3})
	require.NoError(t, err)
	_, err = f.engine.LoadFeed(ctx, models.PostQuery{})
	require.NoError(t, err)

	result, err := f.engine.ToggleLike(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, 3, result.Likes)
	assert.Zero(t, f.store.Calls(database.OpSetPostLikes))
	assert.Zero(t, f.store.Calls(database.OpInsertLike))
}

func TestSignOutClearsLikedSetAndSignInReloadsIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "misty@cerulean.gym")

	post, err := f.engine.CreatePost(ctx, models.PostInput{Title: "Starmie"})
	require.NoError(t, err)
	_, err = f.engine.ToggleLike(ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.SignOut(ctx))
	assert.Nil(t, f.engine.CurrentIdentity())
	snap, err := f.engine.FeedState()
	require.NoError(t, err)
	assert.Empty(t, snap.Liked)

	_, err = f.engine.SignIn(ctx, Credentials{Email: "misty@cerulean.gym", Password: "pikachu"})
	require.NoError(t, err)
	f.engine.background.Wait()
	snap, err = f.engine.FeedState()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{post.ID}, snap.Liked)

	_, err = f.engine.SignIn(ctx, Credentials{Email: "misty@cerulean.gym", Password: "psyduck"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidCredentials))
}

func TestOnlyAuthorEditsOrDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "gary@pallet.town")
	post, err := f.engine.CreatePost(ctx, models.PostInput{Title: "Smell ya later"})
	require.NoError(t, err)

	f.signUp(t, "ash@pallet.town")
	_, err = f.engine.UpdatePost(ctx, post.ID, models.PostInput{Title: "hijacked"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrForbidden))
	err = f.engine.DeletePost(ctx, post.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrForbidden))

	_, err = f.engine.UpdatePost(ctx, uuid.New(), models.PostInput{Title: "ghost"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = f.engine.GetPost(ctx, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = f.engine.ToggleLike(ctx, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	require.NoError(t, f.engine.SignOut(ctx))
	_, err = f.engine.UpdatePost(ctx, post.ID, models.PostInput{Title: "anon"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotAuthenticated))
	_, err = f.engine.CreatePost(ctx, models.PostInput{Title: "anon"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotAuthenticated))
}

func TestAuthorUpdatesAndDeletesPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "erika@celadon.gym")
	post, err := f.engine.CreatePost(ctx, models.PostInput{Title: "Gloom"})
	require.NoError(t, err)
	_, err = f.engine.LoadFeed(ctx, models.PostQuery{})
	require.NoError(t, err)

	updated, err := f.engine.UpdatePost(ctx, post.ID, models.PostInput{Title: "Vileplume", ImageURL: "https://img.example/vileplume.png"})
	require.NoError(t, err)
	assert.Equal(t, "Vileplume", updated.Title)

	snap, err := f.engine.FeedState()
	require.NoError(t, err)
	assert.Equal(t, "Vileplume", snap.Posts[0].Title)
	assert.Equal(t, "https://img.example/vileplume.png", snap.Posts[0].ImageURL)

	require.NoError(t, f.engine.DeletePost(ctx, post.ID))
	snap, err = f.engine.FeedState()
	require.NoError(t, err)
	assert.Empty(t, snap.Posts)
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "sabrina@saffron.gym")

	_, err := f.engine.CreatePost(ctx, models.PostInput{Title: "   "})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
	_, err = f.engine.CreatePost(ctx, models.PostInput{Title: "Kadabra", ImageURL: "spoon"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
	assert.Zero(t, f.store.Calls(database.OpInsertPost))
}

func TestLoadFeedFailureKeepsLocalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.InsertPost(ctx, models.Post{UserID: uuid.New(), Title: "Snorlax"})
	require.NoError(t, err)
	_, err = f.engine.LoadFeed(ctx, models.PostQuery{Sort: models.SortLikesDesc})
	require.NoError(t, err)

	f.store.InjectFault(database.OpListPosts, syscall.ECONNREFUSED)
	_, err = f.engine.LoadFeed(ctx, models.PostQuery{Filter: "zzz"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrRemoteUnavailable))

	snap, err := f.engine.FeedState()
	require.NoError(t, err)
	assert.Len(t, snap.Posts, 1)
	assert.Equal(t, models.SortLikesDesc, snap.Query.Sort)
}

func TestLoadFeedKeepsPostsWhenLikedSetFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "sabrina@saffron.gym")
	post, err := f.engine.CreatePost(ctx, models.PostInput{Title: "Alakazam spoons"})
	require.NoError(t, err)
	_, err = f.engine.ToggleLike(ctx, post.ID)
	require.NoError(t, err)

	f.store.InjectFault(database.OpLikedPostIDs, syscall.ECONNRESET)
	snap, err := f.engine.LoadFeed(ctx, models.PostQuery{})
	require.NoError(t, err)
	require.Len(t, snap.Posts, 1)
	assert.Equal(t, post.ID, snap.Posts[0].ID)
	assert.Equal(t, []uuid.UUID{post.ID}, snap.Liked)
}

func TestProfileViewAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "koga@fuchsia.gym")

	view, err := f.engine.ViewProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, view.IsOwn)
	assert.Equal(t, "koga", view.Profile.Username)
	assert.Empty(t, view.AvatarURL)

	view, err = f.engine.UpdateProfile(ctx, ProfileInput{
		Username: " Koga ",
		Avatar:   &AvatarUpload{Filename: "weezing.PNG", ContentType: "image/png", Data: bytes.NewReader([]byte("png"))},
	})
	require.NoError(t, err)
	assert.Equal(t, "Koga", view.Profile.Username)
	require.NotNil(t, view.Profile.AvatarURL)
	path := *view.Profile.AvatarURL
	assert.True(t, strings.HasPrefix(path, user.ID.String()+"/"+user.ID.String()+"-"), path)
	assert.True(t, strings.HasSuffix(path, ".png"), path)
	assert.Equal(t, "http://localhost:8080/storage/v1/object/public/avatars/"+path, view.AvatarURL)
	stored, ok := f.avatars.Object(path)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), stored)

	// no new upload keeps the current avatar
	view, err = f.engine.UpdateProfile(ctx, ProfileInput{Username: "Koga"})
	require.NoError(t, err)
	require.NotNil(t, view.Profile.AvatarURL)
	assert.Equal(t, path, *view.Profile.AvatarURL)

	_, err = f.engine.UpdateProfile(ctx, ProfileInput{Username: "  "})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))

	stranger := uuid.New()
	view, err = f.engine.ViewProfile(ctx, stranger)
	require.NoError(t, err)
	assert.False(t, view.IsOwn)
	assert.Equal(t, models.DefaultUsername, view.Profile.Username)
	assert.Empty(t, view.Posts)
}

func TestUsernamesFallBack(t *testing.T) {
	f := newFixture(t)
	user := f.signUp(t, "blaine@cinnabar.gym")
	unknown := uuid.New()

	names, err := f.engine.Usernames(context.Background(), []uuid.UUID{user.ID, unknown})
	require.NoError(t, err)
	assert.Equal(t, "blaine", names[user.ID])
	assert.Equal(t, UnknownUsername, names[unknown])
}

func TestCommentsFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "surge@vermilion.gym")
	post, err := f.engine.CreatePost(ctx, models.PostInput{Title: "Raichu"})
	require.NoError(t, err)

	comments, err := f.engine.LoadComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	first, err := f.engine.AddComment(ctx, post.ID, "Thunderbolt")
	require.NoError(t, err)

	f.engine.SetCommentDraft(post.ID, "Thunder")
	assert.Equal(t, "Thunder", f.engine.CommentDraft(post.ID))
	second, err := f.engine.SubmitComment(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, f.engine.CommentDraft(post.ID))

	local, loaded, err := f.engine.LocalComments(post.ID)
	require.NoError(t, err)
	assert.True(t, loaded)
	require.Len(t, local, 2)
	assert.Equal(t, second.ID, local[0].ID)
	assert.Equal(t, first.ID, local[1].ID)

	_, err = f.engine.AddComment(ctx, post.ID, " ")
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
}

func TestHealthReportsBreaker(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(actor.NewActorSystem(), Options{
		Store:    database.NewBreakerStore(store, database.DefaultBreakerConfig(), nil),
		Identity: auth.NewLocalIdentity("test-secret", nil),
		Avatars:  storage.NewMemoryAvatars(""),
	})
	e.Start(context.Background())
	defer e.Close()

	report, err := e.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, "closed", report.Breaker)
	assert.False(t, report.SignedIn)

	store.InjectFault(database.OpPing, syscall.ECONNREFUSED)
	report, err = e.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unreachable", report.Store)
}
