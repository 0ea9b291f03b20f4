package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kevinye7/PokeHub/internal/feed"
	"github.com/kevinye7/PokeHub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "pokehub", cmd.Use)

	for _, name := range []string{"serve", "feed", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	logLevel := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, logLevel)
	assert.Equal(t, "", logLevel.DefValue)
}

func TestFeedCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	feedCmd, _, err := cmd.Find([]string{"feed"})
	require.NoError(t, err)

	assert.Equal(t, "newest", feedCmd.Flags().Lookup("sort").DefValue)
	assert.Equal(t, "text", feedCmd.Flags().Lookup("format").DefValue)
	assert.NotNil(t, feedCmd.Flags().Lookup("filter"))
}

func sampleSnapshot() *feed.Snapshot {
	id := uuid.MustParse("6f1c54a4-0f8e-4d8a-9b46-2b0c2f3c9d11")
	return &feed.Snapshot{
		Query: models.PostQuery{Sort: models.SortLikesDesc},
		Posts: []models.Post{{
			ID:           id,
			Title:        "Shiny Gyarados at Lake of Rage",
			Likes:        12,
			CommentCount: 3,
			CreatedAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		}},
		Liked: []uuid.UUID{id},
	}
}

func TestPrintFeedText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printFeed(&out, "text", sampleSnapshot()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[1], "Shiny Gyarados at Lake of Rage")
	assert.Contains(t, lines[1], "2024-05-01 09:30")

	out.Reset()
	require.NoError(t, printFeed(&out, "text", &feed.Snapshot{}))
	assert.Equal(t, "No posts.\n", out.String())
}

func TestPrintFeedStructured(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printFeed(&out, "json", sampleSnapshot()))
	var decoded feed.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 12, decoded.Posts[0].Likes)

	out.Reset()
	require.NoError(t, printFeed(&out, "yaml", sampleSnapshot()))
	var generic map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &generic))
	posts, ok := generic["posts"].([]interface{})
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, "Shiny Gyarados at Lake of Rage", posts[0].(map[string]interface{})["title"])
}

func TestFeedCommandMemoryBackend(t *testing.T) {
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"feed", "--format", "json", "--sort", "likes"})
	require.NoError(t, cmd.Execute())

	var snap feed.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, models.SortLikes, snap.Query.Sort)
	assert.Empty(t, snap.Posts)
}

func TestFeedCommandRejectsBadInput(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"feed", "--format", "xml"})
	assert.ErrorContains(t, cmd.Execute(), "invalid format")

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"feed", "--sort", "karma"})
	assert.ErrorContains(t, cmd.Execute(), "unknown sort key")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("LOG_LEVEL", "error")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate"})
	assert.ErrorContains(t, cmd.Execute(), "STORE_TYPE=postgres")
}
