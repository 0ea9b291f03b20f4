package feed

import (
	"context"

	"github.com/kevinye7/PokeHub/internal/models"

	"github.com/google/uuid"
)

// Source is the remote side of a full feed load.
type Source interface {
	ListPosts(ctx context.Context, query models.PostQuery) ([]models.Post, error)
	LikedPostIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type LoadResult struct {
	Posts []models.Post
	// Liked is nil for an anonymous load.
	Liked []uuid.UUID
	// LikedErr is set when the liked set could not be read. The posts are
	// still installed and the local liked set is left as it was.
	LikedErr error
}

// Load fetches the posts for query, already filtered, sorted and carrying
// comment counts, and the liked set of identity when one is given. Only a
// failed post read is an error; the liked set is best effort.
func Load(ctx context.Context, src Source, query models.PostQuery, identity *models.Identity) (LoadResult, error) {
	posts, err := src.ListPosts(ctx, query)
	if err != nil {
		return LoadResult{}, err
	}
	result := LoadResult{Posts: posts}
	if identity == nil {
		return result, nil
	}

	liked, err := src.LikedPostIDs(ctx, identity.ID)
	if err != nil {
		result.LikedErr = err
		return result, nil
	}
	if liked == nil {
		liked = []uuid.UUID{}
	}
	result.Liked = liked
	return result, nil
}

// Apply installs a load result into state.
func (r LoadResult) Apply(state *State, query models.PostQuery) {
	state.Replace(query, r.Posts)
	if r.LikedErr != nil {
		return
	}
	if r.Liked == nil {
		state.ClearLiked()
		return
	}
	state.SetLiked(r.Liked)
}
